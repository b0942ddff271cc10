package remote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JamesPrial/tasksync/internal/remote"
	"github.com/JamesPrial/tasksync/internal/task"
)

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

var createdAt = time.Date(2024, 6, 1, 9, 30, 0, 123_000_000, time.UTC)

func newTask(owner, title string) task.Task {
	return task.Task{
		Title:       title,
		Description: "desc " + title,
		Status:      task.StatusPending,
		Priority:    task.PriorityHigh,
		DueDate:     "2024-06-01",
		CreatedAt:   createdAt,
		OwnerID:     owner,
	}
}

// nextSnapshot waits for the next snapshot whose predicate holds, failing
// the test after a timeout.
func nextSnapshot(t *testing.T, sub remote.Subscription, pred func(remote.Snapshot) bool) remote.Snapshot {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			if !ok {
				t.Fatalf("subscription closed while waiting for snapshot (err: %v)", sub.Err())
			}
			if pred(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func hasTitle(title string) func(remote.Snapshot) bool {
	return func(s remote.Snapshot) bool {
		for _, tk := range s.Tasks {
			if tk.Title == title {
				return true
			}
		}
		return false
	}
}

func findByID(s remote.Snapshot, id string) (task.Task, bool) {
	for _, tk := range s.Tasks {
		if tk.ID == id {
			return tk, true
		}
	}
	return task.Task{}, false
}

// ---------------------------------------------------------------------------
// Contract suite
// ---------------------------------------------------------------------------

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) remote.Store) {
	t.Run("first snapshot is current set", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.Create(ctx, newTask("alice", "existing")); err != nil {
			t.Fatalf("Create: %v", err)
		}

		sub, err := store.Subscribe(ctx, "alice")
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer func() { _ = sub.Close() }()

		snap := nextSnapshot(t, sub, func(remote.Snapshot) bool { return true })
		if snap.OwnerID != "alice" {
			t.Errorf("OwnerID = %q, want alice", snap.OwnerID)
		}
		if len(snap.Tasks) != 1 || snap.Tasks[0].Title != "existing" {
			t.Fatalf("first snapshot tasks = %+v, want one 'existing' task", snap.Tasks)
		}
	})

	t.Run("create round trips every field", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		want := newTask("alice", "Buy milk")
		res, err := store.Create(ctx, want)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if res.ID == "" {
			t.Fatal("Create returned empty id")
		}

		sub, err := store.Subscribe(ctx, "alice")
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer func() { _ = sub.Close() }()

		snap := nextSnapshot(t, sub, hasTitle("Buy milk"))
		got, ok := findByID(snap, res.ID)
		if !ok {
			t.Fatalf("task %s missing from snapshot %+v", res.ID, snap.Tasks)
		}
		want.ID = res.ID
		if got.Title != want.Title || got.Description != want.Description ||
			got.Status != want.Status || got.Priority != want.Priority ||
			got.DueDate != want.DueDate || got.OwnerID != want.OwnerID {
			t.Errorf("stored task = %+v, want %+v", got, want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
		}
		if snap.Revision != 0 && snap.Revision < res.Revision {
			t.Errorf("snapshot revision %d older than write revision %d", snap.Revision, res.Revision)
		}
	})

	t.Run("writes push new snapshots", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub, err := store.Subscribe(ctx, "alice")
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer func() { _ = sub.Close() }()
		nextSnapshot(t, sub, func(remote.Snapshot) bool { return true })

		res, err := store.Create(ctx, newTask("alice", "first"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		nextSnapshot(t, sub, hasTitle("first"))

		done := task.StatusCompleted
		if _, err := store.Update(ctx, "alice", res.ID, task.Fields{Status: &done}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		nextSnapshot(t, sub, func(s remote.Snapshot) bool {
			tk, ok := findByID(s, res.ID)
			return ok && tk.Status == task.StatusCompleted
		})

		if _, err := store.Delete(ctx, "alice", res.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		nextSnapshot(t, sub, func(s remote.Snapshot) bool {
			_, ok := findByID(s, res.ID)
			return !ok
		})
	})

	t.Run("owner scoping", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		res, err := store.Create(ctx, newTask("alice", "private"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		title := "stolen"
		if _, err := store.Update(ctx, "mallory", res.ID, task.Fields{Title: &title}); !errors.Is(err, remote.ErrNotFound) {
			t.Errorf("Update by other owner error = %v, want ErrNotFound", err)
		}
		if _, err := store.Delete(ctx, "mallory", res.ID); !errors.Is(err, remote.ErrNotFound) {
			t.Errorf("Delete by other owner error = %v, want ErrNotFound", err)
		}

		sub, err := store.Subscribe(ctx, "mallory")
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer func() { _ = sub.Close() }()
		snap := nextSnapshot(t, sub, func(remote.Snapshot) bool { return true })
		if len(snap.Tasks) != 0 {
			t.Errorf("mallory sees %d tasks, want 0", len(snap.Tasks))
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		title := "x"
		if _, err := store.Update(ctx, "alice", "999999", task.Fields{Title: &title}); !errors.Is(err, remote.ErrNotFound) {
			t.Errorf("Update unknown id error = %v, want ErrNotFound", err)
		}
		if _, err := store.Delete(ctx, "alice", "999999"); !errors.Is(err, remote.ErrNotFound) {
			t.Errorf("Delete unknown id error = %v, want ErrNotFound", err)
		}
	})

	t.Run("close is synchronous and idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub, err := store.Subscribe(ctx, "alice")
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		nextSnapshot(t, sub, func(remote.Snapshot) bool { return true })

		if err := sub.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if _, err := store.Create(ctx, newTask("alice", "after close")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, ok := <-sub.Snapshots(); ok {
			t.Error("received a snapshot after Close returned")
		}
		if err := sub.Err(); err != nil {
			t.Errorf("Err() after caller Close = %v, want nil", err)
		}
		if err := sub.Close(); err != nil {
			t.Errorf("second Close: %v", err)
		}
	})

	t.Run("revisions are monotonic", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var last int64
		for _, title := range []string{"a", "b", "c"} {
			res, err := store.Create(ctx, newTask("alice", title))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if res.Revision <= last {
				t.Fatalf("revision %d not greater than previous %d", res.Revision, last)
			}
			last = res.Revision
		}
	})
}
