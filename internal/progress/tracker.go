package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/JamesPrial/tasksync/internal/task"
)

// DefaultDailyGoal is used when no preference is available.
const DefaultDailyGoal = 5

// GoalFunc returns the owner's current daily goal preference.
type GoalFunc func(ctx context.Context) (int, error)

// Report combines the aggregate summary with today's stored record.
type Report struct {
	Summary
	Daily        DailyProgress `json:"daily"`
	GoalProgress float64       `json:"goalProgress"`
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the tracker's logger.
func WithTrackerLogger(l *log.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithTrackerClock sets the clock and the location whose calendar defines "today".
func WithTrackerClock(now func() time.Time, loc *time.Location) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
		if loc != nil {
			t.loc = loc
		}
	}
}

// Tracker keeps an owner's DailyProgress records in step with the task set.
type Tracker struct {
	store   Store
	ownerID string
	goal    GoalFunc
	now     func() time.Time
	loc     *time.Location
	logger  *log.Logger

	// mu serializes Ensure so concurrent callers create at most one record.
	mu sync.Mutex
}

// NewTracker returns a tracker for ownerID. goal may be nil, in which case
// new records get DefaultDailyGoal.
func NewTracker(store Store, ownerID string, goal GoalFunc, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:   store,
		ownerID: ownerID,
		goal:    goal,
		now:     time.Now,
		loc:     time.Local,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Today returns the current calendar day in the tracker's location.
func (t *Tracker) Today() task.Date {
	return task.DateOf(t.now().In(t.loc))
}

// Ensure returns the record for date, creating it with zero counts and the
// current goal preference if it does not exist yet.
func (t *Tracker) Ensure(ctx context.Context, date task.Date) (DailyProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.store.Get(ctx, t.ownerID, date)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return DailyProgress{}, err
	}

	rec, err = t.store.Create(ctx, DailyProgress{
		OwnerID:   t.ownerID,
		Date:      date,
		DailyGoal: t.currentGoal(ctx),
	})
	if err != nil {
		// Another process may have created it first.
		if existing, getErr := t.store.Get(ctx, t.ownerID, date); getErr == nil {
			return existing, nil
		}
		return DailyProgress{}, err
	}
	t.logger.Printf("created daily progress for %s on %s (goal %d)", t.ownerID, date, rec.DailyGoal)
	return rec, nil
}

func (t *Tracker) currentGoal(ctx context.Context) int {
	if t.goal == nil {
		return DefaultDailyGoal
	}
	goal, err := t.goal(ctx)
	if err != nil {
		t.logger.Printf("failed to read daily goal, using %d: %v", DefaultDailyGoal, err)
		return DefaultDailyGoal
	}
	if goal <= 0 {
		return DefaultDailyGoal
	}
	return goal
}

// Observe records today's counts for tasks. The store is only written when
// the counts differ from the stored ones.
func (t *Tracker) Observe(ctx context.Context, tasks []task.Task) error {
	today := t.Today()
	s := Compute(tasks, today)

	rec, err := t.Ensure(ctx, today)
	if err != nil {
		return err
	}
	if rec.TotalTasks == s.TotalToday && rec.CompletedTasks == s.CompletedToday {
		return nil
	}
	if err := t.store.UpdateCounts(ctx, rec.ID, s.TotalToday, s.CompletedToday); err != nil {
		return err
	}
	return nil
}

// SetGoal changes the goal of the record for date. Existing records are
// otherwise never touched when the preference changes.
func (t *Tracker) SetGoal(ctx context.Context, date task.Date, goal int) (DailyProgress, error) {
	if goal <= 0 {
		return DailyProgress{}, fmt.Errorf("daily goal must be positive, got %d", goal)
	}
	rec, err := t.Ensure(ctx, date)
	if err != nil {
		return DailyProgress{}, err
	}
	if err := t.store.UpdateGoal(ctx, rec.ID, goal); err != nil {
		return DailyProgress{}, err
	}
	rec.DailyGoal = goal
	return rec, nil
}

// Report summarizes tasks together with today's record.
func (t *Tracker) Report(ctx context.Context, tasks []task.Task) (Report, error) {
	today := t.Today()
	rec, err := t.Ensure(ctx, today)
	if err != nil {
		return Report{}, err
	}
	s := Compute(tasks, today)
	return Report{
		Summary:      s,
		Daily:        rec,
		GoalProgress: GoalProgress(s.CompletedToday, rec.DailyGoal),
	}, nil
}

// History returns every stored record for the owner, newest first.
func (t *Tracker) History(ctx context.Context) ([]DailyProgress, error) {
	return t.store.List(ctx, t.ownerID)
}
