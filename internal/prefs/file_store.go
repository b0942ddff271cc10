package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JamesPrial/tasksync/internal/pathutil"
)

// FileStore keeps each owner's preferences in <Dir>/<owner>.json.
//
// Writes go to a temporary file in the same directory followed by a rename,
// so a reader never sees a partially written file.
type FileStore struct {
	// Dir is the directory holding the preference files.
	Dir string

	// Logger receives a line when a stored file cannot be read. Nil
	// discards.
	Logger *log.Logger

	now func() time.Time
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, now: time.Now}
}

// ErrCorrupt is returned (wrapped) by Update when the owner's stored file
// exists but cannot be read or decoded. The file is left as it is.
var ErrCorrupt = errors.New("preferences file is corrupt")

func (s *FileStore) logf(format string, args ...any) {
	logger := s.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf(format, args...)
}

func (s *FileStore) path(ownerID string) (string, error) {
	p, err := pathutil.OwnerFile(s.Dir, ownerID, ".json")
	if err != nil {
		return "", fmt.Errorf("failed to resolve preferences path: %w", err)
	}
	return p, nil
}

// Load returns the owner's preferences. A missing file yields the
// defaults, and fields missing from the file keep their default values. An
// unreadable or corrupt file is logged and also yields the defaults.
func (s *FileStore) Load(ownerID string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.loadLocked(ownerID)
	if errors.Is(err, ErrCorrupt) {
		s.logf("using default preferences for %s: %v", ownerID, err)
		return Defaults(), nil
	}
	return p, err
}

func (s *FileStore) loadLocked(ownerID string) (Preferences, error) {
	path, err := s.path(ownerID)
	if err != nil {
		return Preferences{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	p := Defaults()
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return p.normalize(), nil
}

// DailyGoal returns the owner's daily goal.
func (s *FileStore) DailyGoal(ownerID string) (int, error) {
	p, err := s.Load(ownerID)
	if err != nil {
		return 0, err
	}
	return p.DailyGoal, nil
}

// Update applies patch to the owner's preferences and saves the result.
// The first save records the account creation time. A corrupt stored file
// is never overwritten; Update fails with ErrCorrupt instead.
func (s *FileStore) Update(ownerID string, patch Patch) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ownerID)
	if err != nil {
		return Preferences{}, err
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return Preferences{}, err
	}
	if next.AccountCreated.IsZero() {
		next.AccountCreated = s.now().UTC().Truncate(time.Second)
	}
	if err := s.writeLocked(ownerID, next); err != nil {
		return Preferences{}, err
	}
	return next, nil
}

func (s *FileStore) writeLocked(ownerID string, p Preferences) error {
	path, err := s.path(ownerID)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	data = append(data, '\n')

	tmpFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write preferences: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write preferences: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace preferences file: %w", err)
	}
	return nil
}
