// Package task defines the task record shared by the sync engine, the
// remote stores and the presentation surfaces.
//
// A Task is owned by exactly one user. Every query and mutation in the
// system is scoped to Task.OwnerID.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the completion state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Toggled returns the opposite status.
func (s Status) Toggled() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// Priority ranks tasks for display and dashboard counts.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ErrInvalid is returned (wrapped) by every validation failure in this package.
var ErrInvalid = errors.New("invalid task")

// Task represents a single unit of work tracked by a user.
//
// The JSON tags use camelCase to match the document schema the web client
// has always used.
type Task struct {
	// ID is either a store-assigned identifier or a temporary id (see NewTemporaryID).
	ID string `json:"id"`

	// Title is the non-empty task title. Uniqueness is checked on NormalizeTitle(Title).
	Title string `json:"title"`

	// Description is optional free text.
	Description string `json:"description"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	// DueDate is the calendar day the task is due. The zero value means no due date.
	DueDate Date `json:"dueDate"`

	// CreatedAt is the creation instant in UTC, used as the display tiebreaker.
	CreatedAt time.Time `json:"createdAt"`

	// OwnerID identifies the owning user.
	OwnerID string `json:"ownerId"`
}

// Validate checks the invariants every stored task must satisfy.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalid)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, t.Priority)
	}
	if err := t.DueDate.Validate(); err != nil {
		return err
	}
	if t.OwnerID == "" {
		return fmt.Errorf("%w: owner is empty", ErrInvalid)
	}
	return nil
}

// Completed reports whether the task is done.
func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// NormalizeTitle returns the form of a title used for duplicate detection:
// surrounding whitespace removed and lower-cased.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

const temporaryPrefix = "tmp-"

// NewTemporaryID returns a locally generated id for a task that the remote
// store has not confirmed yet.
func NewTemporaryID() string {
	return temporaryPrefix + uuid.NewString()
}

// IsTemporaryID reports whether id was produced by NewTemporaryID.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, temporaryPrefix)
}

// CreatedAtNow returns the current instant truncated the way stores persist it.
func CreatedAtNow(now time.Time) time.Time {
	return now.UTC().Truncate(time.Millisecond)
}
