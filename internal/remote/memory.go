package remote

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/JamesPrial/tasksync/internal/task"
)

// Op names a store write for hooks and fault injection.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// WriteHook is called before every write with the operation and target id
// (empty for create). A non-nil error fails the write without applying it.
// Hooks may block; they run without the store lock held.
type WriteHook func(ctx context.Context, op Op, id string) error

// MemoryStore is an in-process Store. Snapshots are pushed to subscribers
// after every successful write. It is used for development sessions and as
// the test double for the sync engine.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int
	tasks     map[string]task.Task // by id
	revisions map[string]int64     // by owner
	watchers  map[string]map[*memoryWatcher]struct{}
	hook      WriteHook
	failures  map[Op][]error
	closed    bool
}

type memoryWatcher struct {
	signal chan struct{}
	broken chan error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:     make(map[string]task.Task),
		revisions: make(map[string]int64),
		watchers:  make(map[string]map[*memoryWatcher]struct{}),
		failures:  make(map[Op][]error),
	}
}

// SetHook installs a hook called before every write. Pass nil to remove it.
func (s *MemoryStore) SetHook(hook WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// FailNext makes the next write of kind op fail with err. Calls queue up.
func (s *MemoryStore) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// BreakSubscriptions ends every active subscription with err, as if the
// connection to the store had been lost.
func (s *MemoryStore) BreakSubscriptions(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, set := range s.watchers {
		for w := range set {
			select {
			case w.broken <- err:
			default:
			}
		}
	}
}

// Seed inserts t as if another client had created it, bypassing hooks.
// The assigned id is returned.
func (s *MemoryStore) Seed(t task.Task) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.insertLocked(t)
	s.bumpLocked(t.OwnerID)
	return id
}

// Snapshot returns the owner's current set without subscribing.
func (s *MemoryStore) Snapshot(ownerID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(ownerID)
}

func (s *MemoryStore) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	w := &memoryWatcher{
		signal: make(chan struct{}, 1),
		broken: make(chan error, 1),
	}
	if s.watchers[ownerID] == nil {
		s.watchers[ownerID] = make(map[*memoryWatcher]struct{})
	}
	s.watchers[ownerID][w] = struct{}{}
	s.mu.Unlock()

	// The initial snapshot is queued through the same signal path.
	w.signal <- struct{}{}

	return startFeed(ctx, func(ctx context.Context, emit func(Snapshot) bool) error {
		defer s.removeWatcher(ownerID, w)
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-w.broken:
				return err
			case <-w.signal:
				if !emit(s.Snapshot(ownerID)) {
					return nil
				}
			}
		}
	}), nil
}

func (s *MemoryStore) Create(ctx context.Context, t task.Task) (WriteResult, error) {
	if err := s.before(ctx, OpCreate, ""); err != nil {
		return WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return WriteResult{}, ErrClosed
	}
	id := s.insertLocked(t)
	rev := s.bumpLocked(t.OwnerID)
	return WriteResult{ID: id, Revision: rev}, nil
}

func (s *MemoryStore) Update(ctx context.Context, ownerID, id string, fields task.Fields) (WriteResult, error) {
	if err := s.before(ctx, OpUpdate, id); err != nil {
		return WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return WriteResult{}, ErrClosed
	}
	current, ok := s.tasks[id]
	if !ok || current.OwnerID != ownerID {
		return WriteResult{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	s.tasks[id] = fields.Apply(current)
	rev := s.bumpLocked(ownerID)
	return WriteResult{ID: id, Revision: rev}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerID, id string) (WriteResult, error) {
	if err := s.before(ctx, OpDelete, id); err != nil {
		return WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return WriteResult{}, ErrClosed
	}
	current, ok := s.tasks[id]
	if !ok || current.OwnerID != ownerID {
		return WriteResult{}, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	rev := s.bumpLocked(ownerID)
	return WriteResult{ID: id, Revision: rev}, nil
}

// Close ends every subscription and rejects further writes.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, set := range s.watchers {
		for w := range set {
			select {
			case w.broken <- ErrClosed:
			default:
			}
		}
	}
	return nil
}

// before runs queued failures and the hook for one write.
func (s *MemoryStore) before(ctx context.Context, op Op, id string) error {
	s.mu.Lock()
	var injected error
	if queue := s.failures[op]; len(queue) > 0 {
		injected = queue[0]
		s.failures[op] = queue[1:]
	}
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, op, id); err != nil {
			return err
		}
	}
	if injected != nil {
		return injected
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *MemoryStore) insertLocked(t task.Task) string {
	s.nextID++
	t.ID = strconv.Itoa(s.nextID)
	s.tasks[t.ID] = t
	return t.ID
}

// bumpLocked increments the owner's revision and wakes its subscribers.
func (s *MemoryStore) bumpLocked(ownerID string) int64 {
	s.revisions[ownerID]++
	for w := range s.watchers[ownerID] {
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
	return s.revisions[ownerID]
}

func (s *MemoryStore) snapshotLocked(ownerID string) Snapshot {
	tasks := make([]task.Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			tasks = append(tasks, t)
		}
	}
	task.SortForDisplay(tasks)
	return Snapshot{OwnerID: ownerID, Tasks: tasks, Revision: s.revisions[ownerID]}
}

func (s *MemoryStore) removeWatcher(ownerID string, w *memoryWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[ownerID], w)
	if len(s.watchers[ownerID]) == 0 {
		delete(s.watchers, ownerID)
	}
}
