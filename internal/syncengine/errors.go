package syncengine

import (
	"errors"
	"fmt"

	"github.com/JamesPrial/tasksync/internal/task"
)

var (
	// ErrNotAuthenticated is returned by every operation of an engine
	// constructed without an owner id.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrDuplicateTask is the kind of every DuplicateTaskError.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrInvalidTask wraps input validation failures. It is task.ErrInvalid
	// so callers can match either.
	ErrInvalidTask = task.ErrInvalid

	// ErrTaskNotFound is returned when an intent names a task that is not visible.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotSynced is returned when an intent names a task whose creation
	// the remote store has not acknowledged yet.
	ErrTaskNotSynced = errors.New("task not synced yet")

	// ErrRemoteWrite is the kind of every RemoteWriteError.
	ErrRemoteWrite = errors.New("remote write failed")

	// ErrSubscription is the kind of every SubscriptionError.
	ErrSubscription = errors.New("subscription failed")
)

// DuplicateTaskError is returned when a title collides, after
// normalization, with another visible task. It never reaches the store.
type DuplicateTaskError struct {
	Title      string
	ExistingID string
}

func (e *DuplicateTaskError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %q already exists", ErrDuplicateTask, e.Title)
}

func (e *DuplicateTaskError) Unwrap() error { return ErrDuplicateTask }

// RemoteWriteError reports a failed create, update or delete. Undone is
// set when the optimistic change was rolled back; it is false when a
// snapshot or a later delete had already settled the change.
type RemoteWriteError struct {
	Op     string
	TaskID string
	Err    error
	Undone bool
}

func (e *RemoteWriteError) Error() string {
	if e == nil {
		return ""
	}
	if e.TaskID == "" {
		return fmt.Sprintf("%s: %s: %v", ErrRemoteWrite, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrRemoteWrite, e.Op, e.TaskID, e.Err)
}

// Unwrap exposes both the kind and the store error.
func (e *RemoteWriteError) Unwrap() []error { return []error{ErrRemoteWrite, e.Err} }

// Retryable reports whether retrying the same intent may succeed.
func (e *RemoteWriteError) Retryable() bool { return true }

// SubscriptionError reports that the snapshot stream failed. The cache keeps
// its last state until a new subscription delivers a snapshot.
type SubscriptionError struct {
	OwnerID string
	Err     error
}

func (e *SubscriptionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s for %s: %v", ErrSubscription, e.OwnerID, e.Err)
}

func (e *SubscriptionError) Unwrap() []error { return []error{ErrSubscription, e.Err} }

// Describe returns a short message for err suitable for showing to the user.
// Unknown errors fall back to err.Error().
func Describe(err error) string {
	var (
		dup *DuplicateTaskError
		rw  *RemoteWriteError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &dup):
		return fmt.Sprintf("A task titled %q already exists.", dup.Title)
	case errors.Is(err, ErrNotAuthenticated):
		return "You need to sign in first."
	case errors.Is(err, ErrTaskNotSynced):
		return "That task is still being saved. Try again in a moment."
	case errors.Is(err, ErrTaskNotFound):
		return "Task not found."
	case errors.Is(err, ErrInvalidTask):
		return fmt.Sprintf("Invalid task: %v", err)
	case errors.As(err, &rw) && !rw.Undone:
		return fmt.Sprintf("The change could not be saved: %v", err)
	case errors.Is(err, ErrRemoteWrite):
		return fmt.Sprintf("The change could not be saved and was undone: %v", err)
	case errors.Is(err, ErrSubscription):
		return "Live updates are unavailable. Showing the last known tasks."
	default:
		return err.Error()
	}
}
