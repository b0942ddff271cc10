// Package pathutil resolves the on-disk locations of tasksync's data files.
//
// Paths that come from configuration or from owner ids must never escape
// the data directory, so every derived path goes through ResolveSafePath.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveSafePath resolves userPath against baseDir and returns the
// symlink-resolved result. Relative paths are joined with baseDir; absolute
// paths are accepted only if they already lie inside it. Files and parent
// directories that do not exist yet are allowed.
//
// It fails for empty paths, paths containing a NUL byte and paths that
// leave baseDir, including through a symlink.
func ResolveSafePath(baseDir, userPath string) (string, error) {
	if strings.TrimSpace(userPath) == "" {
		return "", fmt.Errorf("path is empty or whitespace-only")
	}
	if strings.Contains(userPath, "\x00") {
		return "", fmt.Errorf("path contains null byte")
	}

	candidate := userPath
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(baseDir, candidate)
	}
	resolved, err := resolveExisting(filepath.Clean(candidate))
	if err != nil {
		return "", err
	}

	base, err := resolveExisting(filepath.Clean(baseDir))
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", userPath)
	}
	return resolved, nil
}

// ResolveDataPath returns path unchanged when it is absolute and otherwise
// resolves it safely under dataDir. Absolute paths are an explicit operator
// choice in the config file; relative ones may come from anywhere.
func ResolveDataPath(dataDir, path string) (string, error) {
	if filepath.IsAbs(path) {
		if strings.Contains(path, "\x00") {
			return "", fmt.Errorf("path contains null byte")
		}
		return filepath.Clean(path), nil
	}
	return ResolveSafePath(dataDir, path)
}

// OwnerFile returns the path of the per-owner file dir/<owner><ext>. Any
// byte of ownerID outside [A-Za-z0-9_-] is hex-escaped so that distinct
// owners always map to distinct files inside dir.
func OwnerFile(dir, ownerID, ext string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("owner id is empty")
	}
	return ResolveSafePath(dir, EscapeName(ownerID)+ext)
}

// EscapeName maps s to a string usable as a single path element.
func EscapeName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02x", c)
		}
	}
	return b.String()
}

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and re-appends the parts that do not exist yet.
func resolveExisting(path string) (string, error) {
	current := path
	var missing []string

	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing parent directory found")
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
