// Package config loads kanview's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/kanview/internal/domain"
)

// DatabaseDriver selects the server card store.
type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

// DefaultAPIBaseURL is where `kanview serve` listens by default.
const DefaultAPIBaseURL = "http://127.0.0.1:5437/api/v1"

type Config struct {
	API      APIConfig      `toml:"api"`
	Board    BoardConfig    `toml:"board"`
	Confirm  ConfirmConfig  `toml:"confirm"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Keys     KeysConfig     `toml:"keys"`
}

type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	Timeout string `toml:"timeout"`
}

type BoardConfig struct {
	Columns          []ColumnConfig `toml:"columns"`
	DefaultTags      []string       `toml:"default_tags"`
	SearchFieldsHint bool           `toml:"search_fields_hint"`
}

type ColumnConfig struct {
	ID    string `toml:"id"`
	Label string `toml:"label"`
	Color string `toml:"color"`
}

// ConfirmConfig toggles optional confirmation prompts. Column deletion always asks.
type ConfirmConfig struct {
	DeleteCard bool `toml:"delete_card"`
}

type ServerConfig struct {
	HTTP        string   `toml:"http"`
	APIEndpoint string   `toml:"api_endpoint"`
	MCPEndpoint string   `toml:"mcp_endpoint"`
	CORSOrigins []string `toml:"cors_origins"`
	JWTSecret   string   `toml:"jwt_secret"`
}

type DatabaseConfig struct {
	Driver DatabaseDriver `toml:"driver"`
	Path   string         `toml:"path"`
	DSN    string         `toml:"dsn"`
}

// KeysConfig overrides TUI bindings. Blank entries keep the built-in keys.
type KeysConfig struct {
	NewCard   string `toml:"new_card"`
	EditCard  string `toml:"edit_card"`
	Search    string `toml:"search"`
	Grab      string `toml:"grab"`
	Reorder   string `toml:"reorder"`
	NewColumn string `toml:"new_column"`
	YankCard  string `toml:"yank_card"`
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	DevFile bool   `toml:"dev_file"`
}

func defaultColumns() []ColumnConfig {
	cols := domain.DefaultColumns()
	out := make([]ColumnConfig, 0, len(cols))
	for _, col := range cols {
		out = append(out, ColumnConfig{ID: col.ID, Label: col.Label, Color: string(col.Color)})
	}
	return out
}

func Default(dbPath string) Config {
	return Config{
		API: APIConfig{
			BaseURL: DefaultAPIBaseURL,
			Timeout: "10s",
		},
		Board: BoardConfig{
			Columns:          defaultColumns(),
			DefaultTags:      []string{"urgent", "warranty", "follow-up"},
			SearchFieldsHint: true,
		},
		Confirm: ConfirmConfig{
			DeleteCard: true,
		},
		Server: ServerConfig{
			HTTP:        "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	// List fields decode from scratch; absent lists keep their defaults.
	cfg.Board.Columns = nil
	cfg.Board.DefaultTags = nil
	cfg.Server.CORSOrigins = nil
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if cfg.Board.Columns == nil {
		cfg.Board.Columns = defaults.Board.Columns
	}
	if cfg.Board.DefaultTags == nil {
		cfg.Board.DefaultTags = defaults.Board.DefaultTags
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overlays KANVIEW_* environment overrides. A database DSN switches the
// driver to postgres.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("KANVIEW_DATABASE_DSN")); v != "" {
		c.Database.DSN = v
		c.Database.Driver = DriverPostgres
	}
	if v := strings.TrimSpace(getenv("KANVIEW_API_URL")); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("KANVIEW_API_TOKEN")); v != "" {
		c.API.Token = v
	}
	if v := strings.TrimSpace(getenv("KANVIEW_JWT_SECRET")); v != "" {
		c.Server.JWTSecret = v
	}
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required")
	}
	if _, err := c.APITimeout(); err != nil {
		return err
	}

	if _, err := c.Columns(); err != nil {
		return err
	}

	if _, err := log.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// APITimeout parses api.timeout. Empty means 10s.
func (c Config) APITimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.API.Timeout)
	if raw == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid api.timeout: %q", c.API.Timeout)
	}
	return d, nil
}

// Columns converts board.columns into domain columns. A missing id is derived
// from the label.
func (c Config) Columns() ([]domain.Column, error) {
	if len(c.Board.Columns) == 0 {
		return nil, errors.New("board.columns must include at least one column")
	}
	out := make([]domain.Column, 0, len(c.Board.Columns))
	seen := map[string]struct{}{}
	for idx, raw := range c.Board.Columns {
		col, err := domain.NewColumn(raw.Label, domain.Color(strings.TrimSpace(strings.ToLower(raw.Color))), nil)
		if err != nil {
			return nil, fmt.Errorf("board.columns[%d]: %w", idx, err)
		}
		if id := strings.TrimSpace(raw.ID); id != "" {
			col.ID = id
		}
		if _, ok := seen[col.ID]; ok {
			return nil, fmt.Errorf("board.columns[%d].id is duplicated: %s", idx, col.ID)
		}
		seen[col.ID] = struct{}{}
		out = append(out, col)
	}
	return out, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
