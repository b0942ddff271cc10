package cache

import (
	"fmt"

	"github.com/JamesPrial/tasksync/internal/task"
)

// Kind is the type of an optimistic change.
type Kind int

const (
	KindAdd Kind = iota + 1
	KindUpdate
	KindDelete
	KindToggle
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindToggle:
		return "toggle"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is where a pending mutation is in its lifecycle:
//
//	Applied -> Acknowledged -> Confirmed
//	Applied -> Confirmed      (a snapshot reflected it before the write returned)
//	Applied -> RolledBack     (the write failed)
type State int

const (
	StateApplied State = iota + 1
	StateAcknowledged
	StateConfirmed
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateApplied:
		return "applied"
	case StateAcknowledged:
		return "acknowledged"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether the mutation has left the pending set.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateRolledBack
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateApplied:
		return to == StateAcknowledged || to == StateConfirmed || to == StateRolledBack
	case StateAcknowledged:
		return to == StateConfirmed
	default:
		return false
	}
}

// Mutation is the input to ApplyOptimistic.
type Mutation struct {
	Kind Kind

	// TaskID is the target. For KindAdd it is the new task's (temporary) id.
	TaskID string

	// Task is the full new task for KindAdd.
	Task task.Task

	// Fields is the partial update for KindUpdate. For KindToggle it is
	// filled in by the cache from the task's current status.
	Fields task.Fields
}

// PendingMutation records an in-flight optimistic change.
type PendingMutation struct {
	// Seq orders mutations; later mutations are replayed over earlier ones.
	Seq uint64

	Kind   Kind
	TaskID string

	// Before is the task as it was visible when the mutation was applied,
	// nil for adds.
	Before *task.Task

	// Task is the optimistic task for adds.
	Task task.Task

	// Fields is the change for updates and toggles.
	Fields task.Fields

	State State

	// Revision is the store revision reported by the acknowledging write,
	// 0 until acknowledged or when the store does not track revisions.
	Revision int64

	// superseded marks an update whose task a later pending delete removes;
	// it is cleared together with that delete.
	superseded bool
}

func (m *PendingMutation) transition(to State) error {
	if !isAllowedTransition(m.State, to) {
		return fmt.Errorf("%w: mutation %d (%s %s): %s -> %s",
			ErrInvalidTransition, m.Seq, m.Kind, m.TaskID, m.State, to)
	}
	m.State = to
	return nil
}

// apply replays the mutation onto view.
func (m *PendingMutation) apply(view map[string]task.Task) {
	switch m.Kind {
	case KindAdd:
		view[m.TaskID] = m.Task
	case KindUpdate, KindToggle:
		if current, ok := view[m.TaskID]; ok {
			view[m.TaskID] = m.Fields.Apply(current)
		}
	case KindDelete:
		delete(view, m.TaskID)
	}
}

func (m *PendingMutation) clone() PendingMutation {
	out := *m
	if m.Before != nil {
		before := *m.Before
		out.Before = &before
	}
	return out
}
