// Package config loads tasksync's configuration: built-in defaults, then
// the global file (~/.tasksync/config.yaml), then the project file
// (./.tasksync/config.yaml), then TASKSYNC_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JamesPrial/tasksync/internal/pathutil"
	"github.com/JamesPrial/tasksync/internal/remote"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".tasksync"

// Config is the full tasksync configuration.
type Config struct {
	// OwnerID is the signed-in user. Empty means nobody is signed in.
	OwnerID string `yaml:"owner_id" mapstructure:"owner_id"`

	// DataDir anchors every relative path below.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	Debug bool `yaml:"debug" mapstructure:"debug"`

	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Progress ProgressConfig `yaml:"progress" mapstructure:"progress"`
	Prefs    PrefsConfig    `yaml:"prefs" mapstructure:"prefs"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
}

// StoreConfig selects and configures the remote task store.
type StoreConfig struct {
	Backend      string        `yaml:"backend" mapstructure:"backend"`
	SQLitePath   string        `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresURL  string        `yaml:"postgres_url" mapstructure:"postgres_url"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// ProgressConfig configures daily progress tracking.
type ProgressConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `yaml:"db_path" mapstructure:"db_path"`

	// PostgresURL, when set, keeps progress in PostgreSQL instead of DBPath.
	PostgresURL string `yaml:"postgres_url" mapstructure:"postgres_url"`
}

// PrefsConfig configures the preference store.
type PrefsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// HTTPConfig configures the JSON API server.
type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Store: StoreConfig{
			Backend:      remote.BackendSQLite,
			SQLitePath:   "tasks.db",
			PollInterval: remote.DefaultPollInterval,
		},
		Progress: ProgressConfig{
			Enabled: true,
			DBPath:  "progress.db",
		},
		Prefs: PrefsConfig{
			Dir: "prefs",
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// StoreOptions converts the store section for remote.NewStore.
func (c *Config) StoreOptions() remote.Options {
	return remote.Options{
		Backend:      c.Store.Backend,
		SQLitePath:   c.Store.SQLitePath,
		PostgresURL:  c.Store.PostgresURL,
		PollInterval: c.Store.PollInterval,
	}
}

// Resolve expands "~" in DataDir and makes every file path absolute. Relative
// paths must stay inside DataDir.
func (c *Config) Resolve() error {
	dataDir, err := expandHome(c.DataDir)
	if err != nil {
		return err
	}
	if dataDir, err = filepath.Abs(dataDir); err != nil {
		return fmt.Errorf("failed to resolve data_dir: %w", err)
	}
	c.DataDir = dataDir

	if c.Store.SQLitePath != "" {
		if c.Store.SQLitePath, err = pathutil.ResolveDataPath(dataDir, c.Store.SQLitePath); err != nil {
			return fmt.Errorf("invalid store.sqlite_path: %w", err)
		}
	}
	if c.Progress.DBPath != "" {
		if c.Progress.DBPath, err = pathutil.ResolveDataPath(dataDir, c.Progress.DBPath); err != nil {
			return fmt.Errorf("invalid progress.db_path: %w", err)
		}
	}
	if c.Prefs.Dir != "" {
		if c.Prefs.Dir, err = pathutil.ResolveDataPath(dataDir, c.Prefs.Dir); err != nil {
			return fmt.Errorf("invalid prefs.dir: %w", err)
		}
	}
	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Store.Backend)) {
	case "", remote.BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case remote.BackendPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres backend")
		}
	case remote.BackendMemory:
	default:
		return fmt.Errorf("unknown store.backend %q. Expected 'memory', 'sqlite' or 'postgres'", c.Store.Backend)
	}
	if c.Store.PollInterval < 0 {
		return fmt.Errorf("store.poll_interval must not be negative")
	}
	if c.Progress.Enabled && c.Progress.DBPath == "" && c.Progress.PostgresURL == "" {
		return fmt.Errorf("progress.db_path or progress.postgres_url is required when progress is enabled")
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
