// Package remote provides the remote task store contract and its backends.
//
// A Store is the long-term source of truth for every user's tasks. Clients
// never read it synchronously: they observe it through a Subscription that
// delivers full-set snapshots, and they write to it with Create, Update and
// Delete. No ordering is guaranteed between a write's completion and the
// next snapshot.
package remote

import (
	"context"
	"errors"

	"github.com/JamesPrial/tasksync/internal/task"
)

// ErrNotFound is returned by Update and Delete when the id does not exist
// for the given owner.
var ErrNotFound = errors.New("task not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Snapshot is a complete replacement view of one owner's task set.
type Snapshot struct {
	// OwnerID is the owner the snapshot was taken for.
	OwnerID string

	// Tasks is every task the owner has, in no particular order.
	Tasks []task.Task

	// Revision is the owner's store revision at the time the snapshot was
	// taken, or 0 when the backend does not track revisions.
	Revision int64
}

// WriteResult reports the outcome of a successful write.
type WriteResult struct {
	// ID is the id of the written task. For Create it is the assigned id.
	ID string

	// Revision is the owner's store revision after the write, or 0 when
	// the backend does not track revisions. A snapshot with an equal or
	// higher revision reflects the write.
	Revision int64
}

// Store defines the contract for remote task persistence.
//
// Implementations must scope every operation to the owner: Update and
// Delete of a task owned by someone else behave as if the id did not exist.
type Store interface {
	// Subscribe starts a snapshot stream for ownerID. The first snapshot is
	// the owner's current set. The stream is restartable: after a failure
	// callers subscribe again.
	Subscribe(ctx context.Context, ownerID string) (Subscription, error)

	// Create persists t (its ID is ignored) and returns the assigned id.
	Create(ctx context.Context, t task.Task) (WriteResult, error)

	// Update applies the set fields to the task with the given id.
	Update(ctx context.Context, ownerID, id string, fields task.Fields) (WriteResult, error)

	// Delete removes the task with the given id.
	Delete(ctx context.Context, ownerID, id string) (WriteResult, error)

	// Close releases the store's resources.
	Close() error
}

// Subscription is a cancellable handle on a snapshot stream.
type Subscription interface {
	// Snapshots yields snapshots until the subscription is closed or fails.
	// The channel is closed afterwards.
	Snapshots() <-chan Snapshot

	// Err returns the failure that ended the stream, or nil if it is still
	// running or was closed by the caller.
	Err() error

	// Close stops the stream. When Close returns no further snapshot will
	// be delivered. Close is idempotent.
	Close() error
}
