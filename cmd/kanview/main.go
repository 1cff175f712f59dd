package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/evanschultz/kanview/internal/board"
	"github.com/evanschultz/kanview/internal/config"
	"github.com/evanschultz/kanview/internal/platform"
	"github.com/evanschultz/kanview/internal/restclient"
	"github.com/evanschultz/kanview/internal/tui"
)

// version is stamped at build time.
var version = "dev"

// program is the part of tea.Program the root command needs.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program. Tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes the CLI with args. It is the test entry point.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// newRootCommand builds the command tree. The root command runs the TUI.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	flags := &globalFlags{appName: "kanview"}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("KANVIEW_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("KANVIEW_APP_NAME")); envApp != "" {
		flags.appName = envApp
	}

	root := &cobra.Command{
		Use:           "kanview",
		Short:         "Terminal Kanban board for the /kanban/cards/ API",
		Long:          "kanview renders the card board in the terminal and talks to a kanview server (see `kanview serve`).",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), flags, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config TOML")
	pf.StringVar(&flags.dbPath, "db", "", "path to sqlite database")
	pf.StringVar(&flags.appName, "app", flags.appName, "application name for config/data path resolution")
	pf.BoolVar(&flags.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newServeCommand(flags, stderr),
		newExportCommand(flags, stdout, stderr),
		newImportCommand(flags, stderr),
		newTokenCommand(flags, stdout, stderr),
		newPathsCommand(flags, stdout),
		newPaletteCommand(stdout),
	)
	return root
}

// runtimeEnv is the resolved configuration for one command run.
type runtimeEnv struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
}

// resolvePaths resolves the profile layout and the --config/--db overrides.
func resolvePaths(flags *globalFlags) (platform.Paths, error) {
	return platform.Resolve(platform.Options{
		AppName:    flags.appName,
		DevMode:    flags.devMode,
		ConfigFlag: flags.configPath,
		DBFlag:     flags.dbPath,
	})
}

// loadRuntime loads .env files, the TOML config, environment overrides and the runtime logger.
func loadRuntime(flags *globalFlags, command string, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := resolvePaths(flags)
	if err != nil {
		return nil, err
	}
	if err := loadDotEnv(".env", paths.EnvPath); err != nil {
		return nil, err
	}

	configPath := paths.ConfigPath
	cfg, err := config.Load(configPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg.ApplyEnv(os.Getenv)
	if paths.DBOverridden() {
		cfg.Database.Path = paths.DBPath
	}
	if paths.DBFrom == platform.SourceFlag {
		cfg.Database.Driver = config.DriverSQLite
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := newRuntimeLogger(stderr, flags.appName, cfg.Logging, paths.LogPath)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", flags.appName, "dev_mode", flags.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "config_from", paths.ConfigFrom, "db_from", paths.DBFrom, "data_dir", paths.DataDir, "env_path", paths.EnvPath)
	logger.Info("configuration loaded", "config_path", configPath, "driver", cfg.Database.Driver, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return &runtimeEnv{paths: paths, configPath: configPath, cfg: cfg, logger: logger}, nil
}

// close releases the runtime logger.
func (r *runtimeEnv) close(stderr io.Writer) {
	if closeErr := r.logger.Close(); closeErr != nil && r.logger.consoleEnabled {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
	}
}

// loadDotEnv loads every existing file in paths. Variables already set win.
func loadDotEnv(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat env file %q: %w", path, err)
		}
		existing = append(existing, path)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// runTUI starts the board against the configured API.
func runTUI(ctx context.Context, flags *globalFlags, stderr io.Writer) error {
	rt, err := loadRuntime(flags, "tui", stderr)
	if err != nil {
		return err
	}
	defer rt.close(stderr)
	logger := rt.logger

	m, err := newBoardModel(rt)
	if err != nil {
		logger.Error("board setup failed", "err", err)
		return err
	}
	logger.Info("starting tui program loop", "api", rt.cfg.API.BaseURL)
	defer m.Close()
	if _, err := programFactory(m).Run(); err != nil {
		logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	logger.Info("command flow complete", "command", "tui")
	return nil
}

// newBoardModel wires the REST client, the board and the view from config.
func newBoardModel(rt *runtimeEnv) (tui.Model, error) {
	cfg := rt.cfg
	timeout, err := cfg.APITimeout()
	if err != nil {
		return tui.Model{}, err
	}
	columns, err := cfg.Columns()
	if err != nil {
		return tui.Model{}, err
	}
	componentLogger := rt.logger.Component("board")

	client, err := restclient.New(restclient.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: timeout,
		Logger:  rt.logger.Component("api"),
	})
	if err != nil {
		return tui.Model{}, fmt.Errorf("configure api client: %w", err)
	}

	events := tui.NewEvents()
	b := board.New(client, events, board.Config{
		Columns:     columns,
		DefaultTags: cfg.Board.DefaultTags,
		Logger:      componentLogger,
	})
	return tui.NewModel(b, events,
		tui.WithConfirm(cfg.Confirm.DeleteCard),
		tui.WithSearchHint(cfg.Board.SearchFieldsHint),
		tui.WithRequestTimeout(timeout),
		tui.WithKeyConfig(toKeyConfig(cfg.Keys)),
	), nil
}

// toKeyConfig maps the [keys] section onto view bindings.
func toKeyConfig(keys config.KeysConfig) tui.KeyConfig {
	return tui.KeyConfig{
		NewCard:   keys.NewCard,
		EditCard:  keys.EditCard,
		Search:    keys.Search,
		Grab:      keys.Grab,
		Reorder:   keys.Reorder,
		NewColumn: keys.NewColumn,
		YankCard:  keys.YankCard,
	}
}

// parseBoolEnv reads a boolean environment variable. The second result is false when
// the variable is unset or malformed.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// requestTimeout bounds one-shot CLI commands.
const requestTimeout = 30 * time.Second
