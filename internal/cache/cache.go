// Package cache holds the locally visible task set for one owner.
//
// The visible set is always derived: the last authoritative snapshot (the
// base) with every pending optimistic mutation replayed over it in sequence
// order. Rolling a mutation back removes it and re-derives the view, and
// reconciling a snapshot replaces the base and drops every mutation the
// snapshot already reflects. Both operations are therefore exact and
// repeatable.
//
// Cache is not safe for concurrent use; the sync engine serializes access.
package cache

import (
	"errors"
	"fmt"

	"github.com/JamesPrial/tasksync/internal/remote"
	"github.com/JamesPrial/tasksync/internal/task"
)

var (
	// ErrUnknownTask is returned when a mutation targets a task that is not visible.
	ErrUnknownTask = errors.New("task not in cache")

	// ErrUnknownMutation is returned for a sequence number that is no longer
	// pending, usually because a snapshot already confirmed it.
	ErrUnknownMutation = errors.New("mutation not pending")

	// ErrDuplicateID is returned when an add reuses a visible id.
	ErrDuplicateID = errors.New("task id already in cache")

	// ErrInvalidTransition is returned when a mutation is moved to a state
	// its current state does not allow.
	ErrInvalidTransition = errors.New("invalid mutation state transition")
)

// Cache is the local task set of one owner.
type Cache struct {
	ownerID string

	base         map[string]task.Task
	baseRevision int64
	hasBase      bool

	pending []*PendingMutation
	view    map[string]task.Task

	seq     uint64
	version uint64
}

// New returns an empty cache for ownerID.
func New(ownerID string) *Cache {
	return &Cache{
		ownerID: ownerID,
		base:    make(map[string]task.Task),
		view:    make(map[string]task.Task),
	}
}

// OwnerID returns the owner the cache belongs to.
func (c *Cache) OwnerID() string { return c.ownerID }

// Version increases every time the visible set changes.
func (c *Cache) Version() uint64 { return c.version }

// Synced reports whether at least one snapshot has been reconciled.
func (c *Cache) Synced() bool { return c.hasBase }

// Revision returns the revision of the last reconciled snapshot.
func (c *Cache) Revision() int64 { return c.baseRevision }

// CurrentTasks returns a copy of the visible tasks in display order.
func (c *Cache) CurrentTasks() []task.Task {
	out := make([]task.Task, 0, len(c.view))
	for _, t := range c.view {
		out = append(out, t)
	}
	task.SortForDisplay(out)
	return out
}

// Get returns the visible task with the given id.
func (c *Cache) Get(id string) (task.Task, bool) {
	t, ok := c.view[id]
	return t, ok
}

// FindTitle returns a visible task whose normalized title matches title,
// ignoring the task with id exceptID.
func (c *Cache) FindTitle(title, exceptID string) (task.Task, bool) {
	want := task.NormalizeTitle(title)
	for id, t := range c.view {
		if id != exceptID && task.NormalizeTitle(t.Title) == want {
			return t, true
		}
	}
	return task.Task{}, false
}

// Pending returns copies of the outstanding mutations in sequence order.
func (c *Cache) Pending() []PendingMutation {
	out := make([]PendingMutation, len(c.pending))
	for i, m := range c.pending {
		out[i] = m.clone()
	}
	return out
}

// PendingFor reports whether any outstanding mutation targets id.
func (c *Cache) PendingFor(id string) bool {
	for _, m := range c.pending {
		if m.TaskID == id {
			return true
		}
	}
	return false
}

// ApplyOptimistic records m as pending and makes its effect visible
// immediately. For KindToggle the status is resolved against the task as
// currently visible, so replaying the mutation later is idempotent.
func (c *Cache) ApplyOptimistic(m Mutation) (PendingMutation, error) {
	pm := &PendingMutation{
		Kind:   m.Kind,
		TaskID: m.TaskID,
		State:  StateApplied,
	}

	switch m.Kind {
	case KindAdd:
		if m.Task.ID != m.TaskID {
			return PendingMutation{}, fmt.Errorf("add mutation id %q does not match task id %q", m.TaskID, m.Task.ID)
		}
		if _, exists := c.view[m.TaskID]; exists {
			return PendingMutation{}, fmt.Errorf("%w: %s", ErrDuplicateID, m.TaskID)
		}
		pm.Task = m.Task
	case KindUpdate, KindToggle, KindDelete:
		current, ok := c.view[m.TaskID]
		if !ok {
			return PendingMutation{}, fmt.Errorf("%w: %s", ErrUnknownTask, m.TaskID)
		}
		before := current
		pm.Before = &before
		switch m.Kind {
		case KindUpdate:
			pm.Fields = m.Fields
		case KindToggle:
			pm.Fields = task.StatusFields(current.Status.Toggled())
		case KindDelete:
			for _, earlier := range c.pending {
				if earlier.TaskID == m.TaskID && earlier.Kind != KindDelete {
					earlier.superseded = true
				}
			}
		}
	default:
		return PendingMutation{}, fmt.Errorf("unknown mutation kind %s", m.Kind)
	}

	c.seq++
	pm.Seq = c.seq
	c.pending = append(c.pending, pm)
	c.rebuild()
	return pm.clone(), nil
}

// Acknowledge records that the remote write for seq succeeded. For adds,
// res.ID replaces the temporary id everywhere it is referenced. If the
// current base already reflects the write the mutation is confirmed at once.
func (c *Cache) Acknowledge(seq uint64, res remote.WriteResult) (PendingMutation, error) {
	pm := c.find(seq)
	if pm == nil {
		return PendingMutation{}, fmt.Errorf("%w: %d", ErrUnknownMutation, seq)
	}
	if err := pm.transition(StateAcknowledged); err != nil {
		return PendingMutation{}, err
	}
	pm.Revision = res.Revision

	if pm.Kind == KindAdd && res.ID != "" && res.ID != pm.TaskID {
		c.rekey(pm.TaskID, res.ID)
	}

	c.confirmReflected()
	c.rebuild()
	return pm.clone(), nil
}

// Rollback discards the pending mutation seq, restoring the visible set to
// what it would be had the mutation never been applied.
func (c *Cache) Rollback(seq uint64) (PendingMutation, error) {
	pm := c.find(seq)
	if pm == nil {
		return PendingMutation{}, fmt.Errorf("%w: %d", ErrUnknownMutation, seq)
	}
	if err := pm.transition(StateRolledBack); err != nil {
		return PendingMutation{}, err
	}
	c.remove(seq)
	if pm.Kind == KindDelete && !c.deletePending(pm.TaskID) {
		for _, other := range c.pending {
			if other.TaskID == pm.TaskID {
				other.superseded = false
			}
		}
	}
	c.rebuild()
	return pm.clone(), nil
}

// ReconcileSnapshot makes s the new base and clears every pending mutation
// it reflects. Snapshots for another owner, or older than the current base,
// are ignored. It reports whether the visible set changed.
func (c *Cache) ReconcileSnapshot(s remote.Snapshot) bool {
	if s.OwnerID != c.ownerID {
		return false
	}
	if c.hasBase && s.Revision > 0 && s.Revision < c.baseRevision {
		return false
	}

	base := make(map[string]task.Task, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.OwnerID != "" && t.OwnerID != c.ownerID {
			continue
		}
		base[t.ID] = t
	}
	first := !c.hasBase
	c.base = base
	c.baseRevision = s.Revision
	c.hasBase = true

	c.adoptCreated()
	c.confirmReflected()
	changed := c.rebuild()
	if first && !changed {
		// The first snapshot is a change even when the list is empty.
		c.version++
		changed = true
	}
	return changed
}

// adoptCreated matches adds that are still waiting for their write to
// return against tasks the snapshot already contains, by owner, normalized
// title and creation time, and adopts the server id.
func (c *Cache) adoptCreated() {
	claimed := make(map[string]bool)
	for _, pm := range c.pending {
		if pm.Kind != KindAdd || !task.IsTemporaryID(pm.TaskID) {
			continue
		}
		for id, t := range c.base {
			if claimed[id] || c.knownID(id) {
				continue
			}
			if t.OwnerID == pm.Task.OwnerID &&
				task.NormalizeTitle(t.Title) == task.NormalizeTitle(pm.Task.Title) &&
				t.CreatedAt.Equal(pm.Task.CreatedAt) {
				claimed[id] = true
				c.rekey(pm.TaskID, id)
				break
			}
		}
	}
}

// knownID reports whether some pending mutation other than a temporary add
// already refers to id.
func (c *Cache) knownID(id string) bool {
	for _, pm := range c.pending {
		if pm.TaskID == id {
			return true
		}
	}
	return false
}

// confirmReflected drops every pending mutation the base already reflects.
// A mutation is only judged by the fields it sets once every earlier
// mutation of the same task is gone, so a snapshot taken between two quick
// toggles cannot confirm the second one early. A delete waits only for the
// add of its task.
func (c *Cache) confirmReflected() {
	outstanding := make(map[string]bool)
	adding := make(map[string]bool)
	var keep []*PendingMutation
	var deleted []string

	for _, pm := range c.pending {
		blocked := outstanding[pm.TaskID]
		if pm.Kind == KindDelete {
			blocked = adding[pm.TaskID]
		}
		if c.reflected(pm, blocked) {
			_ = pm.transition(StateConfirmed)
			if pm.Kind == KindDelete {
				deleted = append(deleted, pm.TaskID)
			}
			continue
		}
		outstanding[pm.TaskID] = true
		if pm.Kind == KindAdd {
			adding[pm.TaskID] = true
		}
		keep = append(keep, pm)
	}

	// A confirmed delete settles every superseded update of the same task.
	if len(deleted) > 0 {
		filtered := keep[:0]
		for _, pm := range keep {
			if pm.superseded && contains(deleted, pm.TaskID) {
				pm.State = StateConfirmed
				continue
			}
			filtered = append(filtered, pm)
		}
		keep = filtered
	}
	c.pending = keep
}

func (c *Cache) reflected(pm *PendingMutation, blocked bool) bool {
	if !c.hasBase {
		return false
	}
	if pm.State == StateAcknowledged && pm.Revision > 0 && c.baseRevision >= pm.Revision {
		return true
	}

	current, inBase := c.base[pm.TaskID]
	switch pm.Kind {
	case KindAdd:
		return inBase && !task.IsTemporaryID(pm.TaskID)
	case KindDelete:
		// While the add that created the task is unconfirmed, a base without
		// it may predate the create.
		return !inBase && !blocked
	case KindUpdate, KindToggle:
		if !inBase {
			// Removed by someone else after our write landed.
			return pm.State == StateAcknowledged
		}
		return !blocked && pm.Fields.ReflectedIn(current)
	}
	return false
}

// rekey replaces a temporary id with the store id in every pending mutation.
func (c *Cache) rekey(from, to string) {
	for _, pm := range c.pending {
		if pm.TaskID != from {
			continue
		}
		pm.TaskID = to
		if pm.Kind == KindAdd {
			pm.Task.ID = to
		}
		if pm.Before != nil {
			pm.Before.ID = to
		}
	}
}

func (c *Cache) deletePending(id string) bool {
	for _, pm := range c.pending {
		if pm.TaskID == id && pm.Kind == KindDelete {
			return true
		}
	}
	return false
}

func (c *Cache) find(seq uint64) *PendingMutation {
	for _, pm := range c.pending {
		if pm.Seq == seq {
			return pm
		}
	}
	return nil
}

func (c *Cache) remove(seq uint64) {
	for i, pm := range c.pending {
		if pm.Seq == seq {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// rebuild re-derives the view and bumps the version if it changed.
func (c *Cache) rebuild() bool {
	view := make(map[string]task.Task, len(c.base)+len(c.pending))
	for id, t := range c.base {
		view[id] = t
	}
	for _, pm := range c.pending {
		pm.apply(view)
	}
	if sameTasks(view, c.view) {
		return false
	}
	c.view = view
	c.version++
	return true
}

func sameTasks(a, b map[string]task.Task) bool {
	if len(a) != len(b) {
		return false
	}
	for id, ta := range a {
		tb, ok := b[id]
		if !ok || ta.ID != tb.ID || ta.Title != tb.Title || ta.Description != tb.Description ||
			ta.Status != tb.Status || ta.Priority != tb.Priority || ta.DueDate != tb.DueDate ||
			ta.OwnerID != tb.OwnerID || !ta.CreatedAt.Equal(tb.CreatedAt) {
			return false
		}
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
