package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TASKSYNC_STORE_BACKEND.
const EnvPrefix = "TASKSYNC"

// Load reads the global config, then the project config, then the
// environment, and resolves every path.
func Load() (*Config, error) {
	paths := []string{ProjectConfigPath()}
	if global, err := GlobalConfigPath(); err == nil {
		paths = append([]string{global}, paths...)
	}
	return LoadFiles(paths...)
}

// LoadFiles merges the given YAML files over the defaults in order, then
// applies TASKSYNC_* environment overrides. Missing files are skipped.
func LoadFiles(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("owner_id", d.OwnerID)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.postgres_url", d.Store.PostgresURL)
	v.SetDefault("store.poll_interval", d.Store.PollInterval)
	v.SetDefault("progress.enabled", d.Progress.Enabled)
	v.SetDefault("progress.db_path", d.Progress.DBPath)
	v.SetDefault("progress.postgres_url", d.Progress.PostgresURL)
	v.SetDefault("prefs.dir", d.Prefs.Dir)
	v.SetDefault("http.addr", d.HTTP.Addr)
}

// GlobalConfigPath returns ~/.tasksync/config.yaml.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

// ProjectConfigPath returns .tasksync/config.yaml under the working directory.
func ProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(DirName, "config.yaml")
	}
	return filepath.Join(cwd, DirName, "config.yaml")
}

const defaultHeader = `# tasksync configuration
#
# Relative paths resolve against data_dir. Every key can be overridden by an
# environment variable, e.g. TASKSYNC_STORE_BACKEND=postgres.

`

// WriteDefault writes the default configuration to path. An existing file
// is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644)
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
