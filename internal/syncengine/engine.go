// Package syncengine applies user intents to the local task cache
// optimistically, writes them to the remote store and reconciles the cache
// with the snapshots the store pushes.
//
// Every access to the cache goes through the engine's lock. Remote calls
// run outside it and their completions re-enter through it, so intents may
// be in flight concurrently while the cache only ever sees one change at a
// time.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/JamesPrial/tasksync/internal/cache"
	"github.com/JamesPrial/tasksync/internal/remote"
	"github.com/JamesPrial/tasksync/internal/task"
)

// errStreamEnded is reported when a subscription closes without an error.
var errStreamEnded = errors.New("snapshot stream ended")

// Change is delivered to listeners after every visible change.
type Change struct {
	// Version increases with every change; listeners never see it go backwards.
	Version uint64
	Tasks   []task.Task
}

// Listener receives changes. It runs on the goroutine that made the change
// and must not issue intents itself.
type Listener func(Change)

// Status describes the engine's sync state.
type Status struct {
	OwnerID         string `json:"ownerId"`
	Synced          bool   `json:"synced"`
	Revision        int64  `json:"revision"`
	Version         uint64 `json:"version"`
	Pending         int    `json:"pending"`
	SubscriptionErr error  `json:"-"`
}

// MarshalJSON renders SubscriptionErr as a message.
func (s Status) MarshalJSON() ([]byte, error) {
	type plain Status
	out := struct {
		plain
		SubscriptionError string `json:"subscriptionError,omitempty"`
	}{plain: plain(s)}
	if s.SubscriptionErr != nil {
		out.SubscriptionError = s.SubscriptionErr.Error()
	}
	return json.Marshal(out)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for rollbacks, id reconciliation and stream
// failures. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the clock used for task creation times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine is the sync engine for a single owner.
type Engine struct {
	store   remote.Store
	ownerID string
	logger  *log.Logger
	now     func() time.Time

	mu        sync.Mutex
	cache     *cache.Cache
	subErr    error
	listeners []Listener

	synced     chan struct{}
	syncedOnce sync.Once

	notifyMu  sync.Mutex
	delivered uint64
}

// New returns an engine for ownerID backed by store. With an empty ownerID
// the engine is inert: it subscribes to nothing and every intent fails with
// ErrNotAuthenticated.
func New(store remote.Store, ownerID string, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		ownerID: ownerID,
		logger:  log.New(io.Discard, "", 0),
		now:     time.Now,
		cache:   cache.New(ownerID),
		synced:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OwnerID returns the owner the engine syncs.
func (e *Engine) OwnerID() string { return e.ownerID }

// OnChange registers a listener for visible changes.
func (e *Engine) OnChange(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// CurrentTasks returns the visible tasks in display order.
func (e *Engine) CurrentTasks() []task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.CurrentTasks()
}

// Get returns the visible task with the given id.
func (e *Engine) Get(id string) (task.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Get(id)
}

// Pending returns the in-flight mutations.
func (e *Engine) Pending() []cache.PendingMutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Pending()
}

// SubscriptionErr returns the last stream failure, or nil once a
// subscription has delivered a snapshot since.
func (e *Engine) SubscriptionErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subErr
}

// Status reports the current sync state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		OwnerID:         e.ownerID,
		Synced:          e.cache.Synced(),
		Revision:        e.cache.Revision(),
		Version:         e.cache.Version(),
		Pending:         len(e.cache.Pending()),
		SubscriptionErr: e.subErr,
	}
}

// WaitSynced blocks until the first snapshot has been reconciled.
func (e *Engine) WaitSynced(ctx context.Context) error {
	if e.ownerID == "" {
		return ErrNotAuthenticated
	}
	select {
	case <-e.synced:
		return nil
	case <-ctx.Done():
		if err := e.SubscriptionErr(); err != nil {
			return err
		}
		return fmt.Errorf("failed waiting for first snapshot: %w", ctx.Err())
	}
}

// ---------------------------------------------------------------------------
// Intents
// ---------------------------------------------------------------------------

// AddTask creates a task from d. The task is visible under a temporary id
// as soon as AddTask has validated it; the returned task carries the
// store-assigned id.
func (e *Engine) AddTask(ctx context.Context, d task.Draft) (task.Task, error) {
	if e.ownerID == "" {
		return task.Task{}, ErrNotAuthenticated
	}
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}

	priority := d.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}
	t := task.Task{
		ID:          task.NewTemporaryID(),
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Status:      task.StatusPending,
		Priority:    priority,
		DueDate:     d.DueDate,
		CreatedAt:   task.CreatedAtNow(e.now()),
		OwnerID:     e.ownerID,
	}

	e.mu.Lock()
	if existing, dup := e.cache.FindTitle(t.Title, ""); dup {
		e.mu.Unlock()
		return task.Task{}, &DuplicateTaskError{Title: t.Title, ExistingID: existing.ID}
	}
	pm, err := e.cache.ApplyOptimistic(cache.Mutation{Kind: cache.KindAdd, TaskID: t.ID, Task: t})
	change := e.changeLocked()
	e.mu.Unlock()
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to apply add: %w", err)
	}
	e.publish(change)

	res, err := e.store.Create(ctx, t)
	if err != nil {
		undone := e.rollback(pm, err)
		return task.Task{}, &RemoteWriteError{Op: string(remote.OpCreate), TaskID: t.ID, Err: err, Undone: undone}
	}

	e.acknowledge(pm, res)
	if res.ID != "" {
		e.logger.Printf("reconciled %s to %s", t.ID, res.ID)
		t.ID = res.ID
	}
	return t, nil
}

// UpdateTask applies fields to the task with the given id and returns the
// task as now visible.
func (e *Engine) UpdateTask(ctx context.Context, id string, fields task.Fields) (task.Task, error) {
	if e.ownerID == "" {
		return task.Task{}, ErrNotAuthenticated
	}
	if err := fields.Validate(); err != nil {
		return task.Task{}, err
	}
	return e.mutate(ctx, cache.Mutation{Kind: cache.KindUpdate, TaskID: id, Fields: fields})
}

// ToggleStatus flips the task between pending and completed.
func (e *Engine) ToggleStatus(ctx context.Context, id string) (task.Task, error) {
	if e.ownerID == "" {
		return task.Task{}, ErrNotAuthenticated
	}
	return e.mutate(ctx, cache.Mutation{Kind: cache.KindToggle, TaskID: id})
}

// DeleteTask removes the task. If the write fails the task reappears in its
// previous position.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	if e.ownerID == "" {
		return ErrNotAuthenticated
	}
	_, err := e.mutate(ctx, cache.Mutation{Kind: cache.KindDelete, TaskID: id})
	return err
}

// mutate handles update, toggle and delete.
func (e *Engine) mutate(ctx context.Context, m cache.Mutation) (task.Task, error) {
	e.mu.Lock()
	if err := e.checkTargetLocked(m); err != nil {
		e.mu.Unlock()
		return task.Task{}, err
	}
	pm, err := e.cache.ApplyOptimistic(m)
	if err != nil {
		e.mu.Unlock()
		return task.Task{}, fmt.Errorf("failed to apply %s: %w", m.Kind, err)
	}
	visible, _ := e.cache.Get(m.TaskID)
	change := e.changeLocked()
	e.mu.Unlock()
	e.publish(change)

	var (
		res remote.WriteResult
		op  remote.Op
	)
	if m.Kind == cache.KindDelete {
		op = remote.OpDelete
		res, err = e.store.Delete(ctx, e.ownerID, m.TaskID)
		if errors.Is(err, remote.ErrNotFound) {
			// Already gone: the intended end state holds.
			res, err = remote.WriteResult{ID: m.TaskID}, nil
		}
	} else {
		op = remote.OpUpdate
		res, err = e.store.Update(ctx, e.ownerID, m.TaskID, pm.Fields)
	}
	if err != nil {
		undone := e.rollback(pm, err)
		return task.Task{}, &RemoteWriteError{Op: string(op), TaskID: m.TaskID, Err: err, Undone: undone}
	}

	e.acknowledge(pm, res)
	return visible, nil
}

func (e *Engine) checkTargetLocked(m cache.Mutation) error {
	current, ok := e.cache.Get(m.TaskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, m.TaskID)
	}
	if task.IsTemporaryID(m.TaskID) {
		return fmt.Errorf("%w: %s", ErrTaskNotSynced, m.TaskID)
	}
	if m.Kind == cache.KindUpdate && m.Fields.Title != nil {
		if existing, dup := e.cache.FindTitle(*m.Fields.Title, current.ID); dup {
			return &DuplicateTaskError{Title: strings.TrimSpace(*m.Fields.Title), ExistingID: existing.ID}
		}
	}
	return nil
}

// rollback discards pm after its write failed and reports whether the
// visible change was actually reverted.
func (e *Engine) rollback(pm cache.PendingMutation, cause error) bool {
	e.mu.Lock()
	_, err := e.cache.Rollback(pm.Seq)
	change := e.changeLocked()
	e.mu.Unlock()

	if errors.Is(err, cache.ErrUnknownMutation) {
		// Settled by a snapshot or superseded by a confirmed delete.
		e.logger.Printf("ignored failure of settled %s %s: %v", pm.Kind, pm.TaskID, cause)
		return false
	}
	if err != nil {
		e.logger.Printf("failed to roll back %s %s: %v", pm.Kind, pm.TaskID, err)
		return false
	}
	e.logger.Printf("rolled back %s %s: %v", pm.Kind, pm.TaskID, cause)
	e.publish(change)
	return true
}

func (e *Engine) acknowledge(pm cache.PendingMutation, res remote.WriteResult) {
	e.mu.Lock()
	_, err := e.cache.Acknowledge(pm.Seq, res)
	change := e.changeLocked()
	e.mu.Unlock()

	if err != nil && !errors.Is(err, cache.ErrUnknownMutation) {
		e.logger.Printf("failed to acknowledge %s %s: %v", pm.Kind, pm.TaskID, err)
		return
	}
	e.publish(change)
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// OnSnapshot reconciles the cache with s. Applying the same snapshot twice
// leaves the cache as applying it once.
func (e *Engine) OnSnapshot(s remote.Snapshot) {
	if e.ownerID == "" || s.OwnerID != e.ownerID {
		return
	}

	e.mu.Lock()
	changed := e.cache.ReconcileSnapshot(s)
	e.subErr = nil
	change := e.changeLocked()
	e.mu.Unlock()

	e.syncedOnce.Do(func() { close(e.synced) })
	if changed {
		e.publish(change)
	}
}

// Run subscribes to the owner's snapshots and reconciles each one until ctx
// is cancelled or the stream fails. A stream failure is returned as a
// *SubscriptionError and reported by SubscriptionErr until a later Run
// delivers a snapshot; the cache keeps its last state meanwhile.
func (e *Engine) Run(ctx context.Context) error {
	if e.ownerID == "" {
		return ErrNotAuthenticated
	}

	sub, err := e.store.Subscribe(ctx, e.ownerID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return e.failSubscription(err)
	}
	defer func() { _ = sub.Close() }()

	for snap := range sub.Snapshots() {
		e.OnSnapshot(snap)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	cause := sub.Err()
	if cause == nil {
		cause = errStreamEnded
	}
	return e.failSubscription(cause)
}

func (e *Engine) failSubscription(cause error) error {
	subErr := &SubscriptionError{OwnerID: e.ownerID, Err: cause}
	e.mu.Lock()
	e.subErr = subErr
	e.mu.Unlock()
	e.logger.Printf("subscription for %s failed: %v", e.ownerID, cause)
	return subErr
}

// ---------------------------------------------------------------------------
// Change delivery
// ---------------------------------------------------------------------------

func (e *Engine) changeLocked() Change {
	return Change{Version: e.cache.Version(), Tasks: e.cache.CurrentTasks()}
}

// publish delivers ch to every listener unless a newer change was already
// delivered.
func (e *Engine) publish(ch Change) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	if ch.Version <= e.delivered {
		return
	}
	e.delivered = ch.Version

	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, l := range listeners {
		l(ch)
	}
}
