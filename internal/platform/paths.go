// Package platform decides where a kanview profile keeps its config file, .env file,
// SQLite database and dev log, and which of those an operator has overridden.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment variables that relocate a profile's files.
const (
	EnvConfigPath = "KANVIEW_CONFIG"
	EnvDBPath     = "KANVIEW_DB_PATH"
)

// DefaultAppName is the profile directory used when no app name is given.
const DefaultAppName = "kanview"

// Source records where a resolved path came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Paths is the resolved file layout of one profile.
type Paths struct {
	Profile    string
	ConfigPath string
	ConfigFrom Source
	EnvPath    string
	DataDir    string
	DBPath     string
	DBFrom     Source
	LogPath    string
}

// DBOverridden reports whether the database location was chosen explicitly.
func (p Paths) DBOverridden() bool {
	return p.DBFrom != SourceDefault
}

// Options selects a profile and carries command-line overrides.
type Options struct {
	AppName    string
	DevMode    bool
	ConfigFlag string
	DBFlag     string
}

// Env is the slice of the host that path resolution reads.
type Env struct {
	GOOS       string
	Home       string
	ConfigHome string
	Getenv     func(string) string
}

// HostEnv captures the running process's OS, home and config directories.
func HostEnv() (Env, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return Env{}, fmt.Errorf("user config dir: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("user home dir: %w", err)
	}
	return Env{GOOS: runtime.GOOS, Home: home, ConfigHome: configHome, Getenv: os.Getenv}, nil
}

// Resolve resolves opts against the running host.
func Resolve(opts Options) (Paths, error) {
	env, err := HostEnv()
	if err != nil {
		return Paths{}, err
	}
	return ResolveIn(env, opts)
}

// ResolveIn lays out the profile under the host's config and data roots, then applies
// overrides. A flag beats its environment variable, which beats the default.
func ResolveIn(env Env, opts Options) (Paths, error) {
	if env.Getenv == nil {
		env.Getenv = func(string) string { return "" }
	}
	profile := strings.TrimSpace(opts.AppName)
	if profile == "" {
		profile = DefaultAppName
	}
	if strings.ContainsAny(profile, `/\`) {
		return Paths{}, fmt.Errorf("app name %q must not contain path separators", profile)
	}
	if opts.DevMode {
		profile += "-dev"
	}

	configRoot, dataRoot, err := roots(env)
	if err != nil {
		return Paths{}, err
	}
	configDir := filepath.Join(configRoot, profile)
	dataDir := filepath.Join(dataRoot, profile)
	p := Paths{
		Profile:    profile,
		ConfigPath: filepath.Join(configDir, "config.toml"),
		ConfigFrom: SourceDefault,
		EnvPath:    filepath.Join(configDir, ".env"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, profile+".db"),
		DBFrom:     SourceDefault,
		LogPath:    filepath.Join(dataDir, "logs", profile+".log"),
	}

	p.ConfigPath, p.ConfigFrom = override(env, p.ConfigPath, opts.ConfigFlag, EnvConfigPath)
	p.DBPath, p.DBFrom = override(env, p.DBPath, opts.DBFlag, EnvDBPath)
	return p, nil
}

// roots picks the per-user config and data roots. Linux honours XDG and falls back to
// ~/.local/share for data; Windows splits roaming config from local data.
func roots(env Env) (string, string, error) {
	configRoot := env.ConfigHome
	dataRoot := env.ConfigHome
	switch env.GOOS {
	case "windows":
		if v := strings.TrimSpace(env.Getenv("APPDATA")); v != "" {
			configRoot = v
		}
		if v := strings.TrimSpace(env.Getenv("LOCALAPPDATA")); v != "" {
			dataRoot = v
		}
	case "darwin":
		// Application Support holds both.
	default:
		if v := strings.TrimSpace(env.Getenv("XDG_CONFIG_HOME")); v != "" {
			configRoot = v
		}
		if v := strings.TrimSpace(env.Getenv("XDG_DATA_HOME")); v != "" {
			dataRoot = v
		} else if env.Home != "" {
			dataRoot = filepath.Join(env.Home, ".local", "share")
		}
	}
	if configRoot == "" || dataRoot == "" {
		return "", "", errors.New("cannot determine config and data directories")
	}
	return configRoot, dataRoot, nil
}

func override(env Env, def, flag, envName string) (string, Source) {
	if v := strings.TrimSpace(flag); v != "" {
		return expandHome(env.Home, v), SourceFlag
	}
	if v := strings.TrimSpace(env.Getenv(envName)); v != "" {
		return expandHome(env.Home, v), SourceEnv
	}
	return def, SourceDefault
}

// expandHome replaces a leading "~/" with home.
func expandHome(home, path string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}
