package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JamesPrial/tasksync/internal/remote"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// realDir resolves symlinks so expectations match resolved config paths.
func realDir(t *testing.T, dir string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	return resolved
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg.Store.Backend != remote.BackendSQLite {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Store.PollInterval != remote.DefaultPollInterval {
		t.Errorf("Store.PollInterval = %v", cfg.Store.PollInterval)
	}
	if !cfg.Progress.Enabled {
		t.Error("progress tracking disabled by default")
	}
	if cfg.OwnerID != "" {
		t.Errorf("OwnerID = %q, want empty", cfg.OwnerID)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults fail validation: %v", err)
	}
}

func TestLoadFiles_ProjectOverridesGlobal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	global := writeConfig(t, dir, "global.yaml", `
owner_id: alice
data_dir: `+dir+`
store:
  backend: sqlite
  sqlite_path: global.db
http:
  addr: ":9000"
`)
	project := writeConfig(t, dir, "project.yaml", `
store:
  sqlite_path: project.db
  poll_interval: 2s
progress:
  enabled: false
`)

	cfg, err := LoadFiles(global, project, filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}

	if cfg.OwnerID != "alice" {
		t.Errorf("OwnerID = %q", cfg.OwnerID)
	}
	resolved := realDir(t, dir)
	if cfg.Store.SQLitePath != filepath.Join(resolved, "project.db") {
		t.Errorf("SQLitePath = %q", cfg.Store.SQLitePath)
	}
	if cfg.Store.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v", cfg.Store.PollInterval)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Progress.Enabled {
		t.Error("project file did not disable progress")
	}
	if cfg.Prefs.Dir != filepath.Join(resolved, "prefs") {
		t.Errorf("Prefs.Dir = %q, want default under data_dir", cfg.Prefs.Dir)
	}
}

func TestLoadFiles_EnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
owner_id: alice
data_dir: `+dir+`
`)
	t.Setenv("TASKSYNC_OWNER_ID", "bob")
	t.Setenv("TASKSYNC_STORE_BACKEND", "memory")

	cfg, err := LoadFiles(path)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if cfg.OwnerID != "bob" {
		t.Errorf("OwnerID = %q, want env override", cfg.OwnerID)
	}
	if cfg.Store.Backend != remote.BackendMemory {
		t.Errorf("Store.Backend = %q, want env override", cfg.Store.Backend)
	}
}

func TestLoadFiles_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "store: [unterminated",
			wantErr: "failed to read config",
		},
		{
			name:    "unknown backend",
			content: "store:\n  backend: redis\n",
			wantErr: "unknown store.backend",
		},
		{
			name:    "postgres without url",
			content: "store:\n  backend: postgres\n",
			wantErr: "postgres_url is required",
		},
		{
			name:    "path escapes data dir",
			content: "progress:\n  db_path: ../../elsewhere.db\n",
			wantErr: "invalid progress.db_path",
		},
		{
			name:    "progress without a database",
			content: "progress:\n  enabled: true\n  db_path: \"\"\n",
			wantErr: "progress.db_path or progress.postgres_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := writeConfig(t, dir, "config.yaml", "data_dir: "+dir+"\n"+tt.content)

			_, err := LoadFiles(path)
			if err == nil {
				t.Fatal("LoadFiles succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolve_AbsolutePathsKept(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere.db")

	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.Store.SQLitePath = abs
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Store.SQLitePath != abs {
		t.Errorf("SQLitePath = %q, want %q", cfg.Store.SQLitePath, abs)
	}
	if cfg.Progress.DBPath != filepath.Join(realDir(t, dir), "progress.db") {
		t.Errorf("DBPath = %q", cfg.Progress.DBPath)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, DirName, "config.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Error("second WriteDefault without force succeeded")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("forced WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "# tasksync configuration") {
		t.Error("written config lacks header")
	}

	cfg, err := LoadFiles(path)
	if err != nil {
		t.Fatalf("LoadFiles(written default): %v", err)
	}
	if cfg.Store.PollInterval != remote.DefaultPollInterval {
		t.Errorf("PollInterval round trip = %v", cfg.Store.PollInterval)
	}
}

func TestStoreOptions(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Store.Backend = remote.BackendPostgres
	cfg.Store.PostgresURL = "postgres://localhost/tasks"

	opts := cfg.StoreOptions()
	if opts.Backend != remote.BackendPostgres || opts.PostgresURL != cfg.Store.PostgresURL {
		t.Errorf("StoreOptions = %+v", opts)
	}
}
