package pathutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JamesPrial/tasksync/internal/pathutil"
)

func Test_ResolveSafePath_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(t *testing.T, dataDir string)
		userPath func(dataDir string) string
		wantErr  bool
		wantRel  string // expected path relative to the resolved data dir
	}{
		// -----------------------------------------------------------------
		// Success cases
		// -----------------------------------------------------------------
		{
			name:     "relative file",
			userPath: func(string) string { return "tasks.db" },
			wantRel:  "tasks.db",
		},
		{
			name:     "missing nested directories",
			userPath: func(string) string { return "prefs/alice.json" },
			wantRel:  filepath.Join("prefs", "alice.json"),
		},
		{
			name:     "absolute path inside",
			userPath: func(dir string) string { return filepath.Join(dir, "progress.db") },
			wantRel:  "progress.db",
		},
		{
			name:     "normalized dot segments",
			userPath: func(string) string { return "./prefs//../tasks.db" },
			wantRel:  "tasks.db",
		},
		{
			name: "symlink inside data dir",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				mustMkdirAll(t, filepath.Join(dir, "real"))
				if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "link")); err != nil {
					t.Skipf("symlinks not supported: %v", err)
				}
			},
			userPath: func(string) string { return "link/tasks.db" },
			wantRel:  filepath.Join("real", "tasks.db"),
		},

		// -----------------------------------------------------------------
		// Error cases
		// -----------------------------------------------------------------
		{name: "empty", userPath: func(string) string { return "" }, wantErr: true},
		{name: "whitespace", userPath: func(string) string { return "  " }, wantErr: true},
		{name: "null byte", userPath: func(string) string { return "a\x00b" }, wantErr: true},
		{name: "dot-dot", userPath: func(string) string { return "../outside.db" }, wantErr: true},
		{name: "dot-dot in middle", userPath: func(string) string { return "prefs/../../outside.db" }, wantErr: true},
		{name: "absolute outside", userPath: func(string) string { return "/etc/passwd" }, wantErr: true},
		{
			name: "symlink escaping",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				if err := os.Symlink(os.TempDir(), filepath.Join(dir, "escape")); err != nil {
					t.Skipf("symlinks not supported: %v", err)
				}
			},
			userPath: func(string) string { return "escape/tasks.db" },
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dataDir := t.TempDir()
			if tt.setup != nil {
				tt.setup(t, dataDir)
			}

			userPath := tt.userPath(dataDir)
			got, err := pathutil.ResolveSafePath(dataDir, userPath)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ResolveSafePath(%q) = %q, want error", userPath, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveSafePath(%q) error: %v", userPath, err)
			}

			base, err := filepath.EvalSymlinks(dataDir)
			if err != nil {
				t.Fatalf("EvalSymlinks: %v", err)
			}
			if want := filepath.Join(base, tt.wantRel); got != want {
				t.Errorf("ResolveSafePath(%q) = %q, want %q", userPath, got, want)
			}
		})
	}
}

func Test_ResolveSafePath_DataDirNotCreatedYet(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	dataDir := filepath.Join(parent, "not", "yet")

	got, err := pathutil.ResolveSafePath(dataDir, "tasks.db")
	if err != nil {
		t.Fatalf("ResolveSafePath error: %v", err)
	}
	resolvedParent, _ := filepath.EvalSymlinks(parent)
	if want := filepath.Join(resolvedParent, "not", "yet", "tasks.db"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func Test_ResolveSafePath_EscapeErrorIsDescriptive(t *testing.T) {
	t.Parallel()

	_, err := pathutil.ResolveSafePath(t.TempDir(), "../outside.db")
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Errorf("error = %v, want a message about escaping", err)
	}
}

// ---------------------------------------------------------------------------
// Data paths
// ---------------------------------------------------------------------------

func Test_ResolveDataPath(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()

	abs := filepath.Join(t.TempDir(), "elsewhere", "tasks.db")
	if got, err := pathutil.ResolveDataPath(dataDir, abs); err != nil || got != abs {
		t.Errorf("absolute path = %q, %v; want %q unchanged", got, err, abs)
	}
	if _, err := pathutil.ResolveDataPath(dataDir, "../escape.db"); err == nil {
		t.Error("relative escape accepted")
	}
	if _, err := pathutil.ResolveDataPath(dataDir, "/tmp/a\x00b"); err == nil {
		t.Error("null byte accepted")
	}
}

// ---------------------------------------------------------------------------
// Owner files
// ---------------------------------------------------------------------------

func Test_EscapeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"alice", "alice"},
		{"user_01-x", "user_01-x"},
		{"../etc", "%2e%2e%2fetc"},
		{"a b", "a%20b"},
		{"a%20b", "a%2520b"},
	}
	for _, tt := range tests {
		if got := pathutil.EscapeName(tt.in); got != tt.want {
			t.Errorf("EscapeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func Test_OwnerFile_StaysInDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for _, owner := range []string{"alice", "../../root", "a/b", ".."} {
		got, err := pathutil.OwnerFile(dir, owner, ".json")
		if err != nil {
			t.Fatalf("OwnerFile(%q) error: %v", owner, err)
		}
		base, _ := filepath.EvalSymlinks(dir)
		if filepath.Dir(got) != base {
			t.Errorf("OwnerFile(%q) = %q, not directly inside %q", owner, got, base)
		}
	}
	if _, err := pathutil.OwnerFile(dir, "", ".json"); err == nil {
		t.Error("empty owner accepted")
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): %v", path, err)
	}
}
