package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/kanview/internal/adapters/server"
	"github.com/evanschultz/kanview/internal/adapters/server/httpapi"
	"github.com/evanschultz/kanview/internal/adapters/storage/postgres"
	"github.com/evanschultz/kanview/internal/adapters/storage/sqlite"
	"github.com/evanschultz/kanview/internal/app"
	"github.com/evanschultz/kanview/internal/config"
	"github.com/evanschultz/kanview/internal/domain"
)

// serveCommandRunner starts the HTTP, REST and MCP server. Tests replace it.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// cardStore is a card repository the CLI can ping and close.
type cardStore interface {
	app.Repository
	Ping(context.Context) error
	Close() error
}

// openStore opens the configured card store.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *runtimeLogger) (cardStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		logger.Info("opening postgres repository")
		repo, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			logger.Error("postgres open failed", "err", err)
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		logger.Info("postgres repository ready", "migrations", "ensured")
		return repo, nil
	case config.DriverSQLite, "":
		logger.Info("opening sqlite repository", "db_path", cfg.Path)
		repo, err := sqlite.Open(cfg.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		logger.Info("sqlite repository ready", "db_path", cfg.Path, "migrations", "ensured")
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// withService opens the store, builds the card service and runs fn.
func withService(ctx context.Context, flags *globalFlags, command string, stderr io.Writer, fn func(context.Context, *runtimeEnv, cardStore, *app.Service) error) error {
	rt, err := loadRuntime(flags, command, stderr)
	if err != nil {
		return err
	}
	defer rt.close(stderr)
	logger := rt.logger

	store, err := openStore(ctx, rt.cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("repository close failed", "driver", rt.cfg.Database.Driver, "err", closeErr)
		}
	}()

	svc := app.NewService(store, time.Now, app.ServiceConfig{Logger: logger.Component("cards")})
	logger.Info("command flow start", "command", command)
	if err := fn(ctx, rt, store, svc); err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	logger.Info("command flow complete", "command", command)
	return nil
}

// newServeCommand builds `kanview serve`.
func newServeCommand(flags *globalFlags, stderr io.Writer) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST, MCP and health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), flags, "serve", stderr, func(ctx context.Context, rt *runtimeEnv, store cardStore, svc *app.Service) error {
				srv := rt.cfg.Server
				if cmd.Flags().Changed("http") {
					srv.HTTP = httpBind
				}
				if cmd.Flags().Changed("api-endpoint") {
					srv.APIEndpoint = apiEndpoint
				}
				if cmd.Flags().Changed("mcp-endpoint") {
					srv.MCPEndpoint = mcpEndpoint
				}
				if strings.TrimSpace(srv.JWTSecret) == "" {
					rt.logger.Warn("jwt secret not configured; API and MCP endpoints accept unauthenticated requests")
				}
				return serveCommandRunner(ctx, serveradapter.Config{
					HTTPBind:      srv.HTTP,
					APIEndpoint:   srv.APIEndpoint,
					MCPEndpoint:   srv.MCPEndpoint,
					ServerName:    flags.appName,
					ServerVersion: version,
					CORSOrigins:   srv.CORSOrigins,
					JWTSecret:     srv.JWTSecret,
				}, serveradapter.Dependencies{
					Cards:  svc,
					Ready:  store.Ping,
					Logger: rt.logger.Component("http"),
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (overrides server.http)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST base endpoint (overrides server.api_endpoint)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (overrides server.mcp_endpoint)")
	return cmd
}

// newExportCommand builds `kanview export`.
func newExportCommand(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		outPath         string
		includeArchived bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), flags, "export", stderr, func(ctx context.Context, _ *runtimeEnv, _ cardStore, svc *app.Service) error {
				return runExport(ctx, svc, outPath, includeArchived, stdout)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", true, "include archived cards")
	return cmd
}

// runExport encodes the snapshot to outPath.
func runExport(ctx context.Context, svc *app.Service, outPath string, includeArchived bool, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	snap, err := svc.ExportSnapshot(ctx, includeArchived)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" || outPath == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// newImportCommand builds `kanview import`.
func newImportCommand(flags *globalFlags, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert cards from a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return withService(cmd.Context(), flags, "import", stderr, func(ctx context.Context, _ *runtimeEnv, _ cardStore, svc *app.Service) error {
				return runImport(ctx, svc, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// runImport decodes the snapshot at inPath and imports it.
func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if err := svc.ImportSnapshot(app.WithActor(ctx, "kanview-import"), snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// newTokenCommand builds `kanview token`.
func newTokenCommand(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the configured server secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(flags, "token", stderr)
			if err != nil {
				return err
			}
			defer rt.close(stderr)

			secret := strings.TrimSpace(rt.cfg.Server.JWTSecret)
			if secret == "" {
				return errors.New("server.jwt_secret (or KANVIEW_JWT_SECRET) is required to mint tokens")
			}
			token, err := httpapi.IssueToken([]byte(secret), subject, ttl, time.Now())
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			rt.logger.Info("token issued", "subject", subject, "ttl", ttl)
			_, err = fmt.Fprintln(stdout, token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "kanview", "token subject, recorded as the mutation actor")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime (0 never expires)")
	return cmd
}

// newPathsCommand builds `kanview paths`.
func newPathsCommand(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and log paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := resolvePaths(flags)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", flags.appName)
			_, _ = fmt.Fprintf(stdout, "profile: %s\n", paths.Profile)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s (%s)\n", paths.ConfigPath, paths.ConfigFrom)
			_, _ = fmt.Fprintf(stdout, "env: %s\n", paths.EnvPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s (%s)\n", paths.DBPath, paths.DBFrom)
			_, _ = fmt.Fprintf(stdout, "log: %s\n", paths.LogPath)
			return nil
		},
	}
}

// newPaletteCommand builds `kanview palette`.
func newPaletteCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "palette",
		Short: "Show the column color palette",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(stdout, renderPalette())
			return err
		},
	}
}

// renderPalette renders the column palette as a table with one swatch per color.
func renderPalette() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(domain.Palette()))
	for _, c := range domain.Palette() {
		swatch := lipgloss.NewStyle().
			Background(lipgloss.Color(c.Hex())).
			Render("      ")
		rows = append(rows, []string{string(c), c.Hex(), swatch})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers("COLOR", "HEX", "SWATCH").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}
