// Package session assembles everything one signed-in owner needs: the
// remote store, the sync engine, the daily progress tracker and the
// preference store. There is no global session; callers construct one and
// pass it to the presentation layers.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JamesPrial/tasksync/internal/prefs"
	"github.com/JamesPrial/tasksync/internal/progress"
	"github.com/JamesPrial/tasksync/internal/remote"
	"github.com/JamesPrial/tasksync/internal/syncengine"
	"github.com/JamesPrial/tasksync/internal/task"
)

// ErrNotConfigured is returned when an optional store the call needs was
// not configured.
var ErrNotConfigured = errors.New("not configured")

// Identity supplies the current owner id. ok is false when nobody is
// signed in.
type Identity interface {
	OwnerID() (id string, ok bool)
}

// StaticIdentity is an Identity fixed by configuration.
type StaticIdentity string

func (s StaticIdentity) OwnerID() (string, bool) {
	return string(s), s != ""
}

// observeTimeout bounds one progress write triggered by a task change.
const observeTimeout = 10 * time.Second

// Options configures a Session. Store is required; the others are optional.
type Options struct {
	Store remote.Store

	// Progress enables daily progress tracking.
	Progress progress.Store

	// Prefs supplies the daily goal and the preferences surfaced by the API.
	Prefs *prefs.FileStore

	Logger   *log.Logger
	Location *time.Location
	Now      func() time.Time

	// NewBackOff returns the reconnect policy. The default is exponential
	// with no overall deadline.
	NewBackOff func() backoff.BackOff
}

// Session is the explicit per-owner state of a running tasksync client.
type Session struct {
	ownerID  string
	store    remote.Store
	engine   *syncengine.Engine
	tracker  *progress.Tracker
	rollover *progress.Rollover
	progress progress.Store
	prefs    *prefs.FileStore
	logger   *log.Logger
	loc      *time.Location
	now      func() time.Time

	newBackOff func() backoff.BackOff

	closeOnce sync.Once
	closeErr  error
}

// New builds a session for the owner id reports. Without a signed-in owner
// the session is still returned but its engine is inert.
func New(id Identity, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("session requires a store")
	}
	ownerID, ok := id.OwnerID()
	if !ok {
		ownerID = ""
	}

	s := &Session{
		ownerID:    ownerID,
		store:      opts.Store,
		progress:   opts.Progress,
		prefs:      opts.Prefs,
		logger:     opts.Logger,
		loc:        opts.Location,
		now:        opts.Now,
		newBackOff: opts.NewBackOff,
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newBackOff == nil {
		s.newBackOff = defaultBackOff
	}

	s.engine = syncengine.New(opts.Store, ownerID,
		syncengine.WithLogger(s.logger),
		syncengine.WithClock(s.now),
	)

	if opts.Progress != nil && ownerID != "" {
		s.tracker = progress.NewTracker(opts.Progress, ownerID, s.goal,
			progress.WithTrackerLogger(s.logger),
			progress.WithTrackerClock(s.now, s.loc),
		)
		s.rollover = progress.NewRollover(s.tracker, s.loc, s.engine.CurrentTasks)
		s.engine.OnChange(s.observe)
	}
	return s, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// OwnerID returns the signed-in owner, or "" when there is none.
func (s *Session) OwnerID() string { return s.ownerID }

// Engine returns the session's sync engine.
func (s *Session) Engine() *syncengine.Engine { return s.engine }

// Tracker returns the progress tracker, or nil when tracking is disabled.
func (s *Session) Tracker() *progress.Tracker { return s.tracker }

func (s *Session) goal(context.Context) (int, error) {
	if s.prefs == nil {
		return prefs.DefaultDailyGoal, nil
	}
	return s.prefs.DailyGoal(s.ownerID)
}

func (s *Session) observe(c syncengine.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
	defer cancel()
	if err := s.tracker.Observe(ctx, c.Tasks); err != nil {
		s.logger.Printf("failed to record progress: %v", err)
	}
}

// Preferences returns the owner's preferences.
func (s *Session) Preferences() (prefs.Preferences, error) {
	if s.ownerID == "" {
		return prefs.Preferences{}, syncengine.ErrNotAuthenticated
	}
	if s.prefs == nil {
		return prefs.Defaults(), nil
	}
	return s.prefs.Load(s.ownerID)
}

// UpdatePreferences applies patch to the owner's preferences. A new daily
// goal also becomes today's goal; records of earlier days keep theirs.
func (s *Session) UpdatePreferences(ctx context.Context, patch prefs.Patch) (prefs.Preferences, error) {
	if s.ownerID == "" {
		return prefs.Preferences{}, syncengine.ErrNotAuthenticated
	}
	if s.prefs == nil {
		return prefs.Preferences{}, fmt.Errorf("preferences: %w", ErrNotConfigured)
	}
	p, err := s.prefs.Update(s.ownerID, patch)
	if err != nil {
		return prefs.Preferences{}, err
	}
	if patch.DailyGoal != nil && s.tracker != nil {
		if _, err := s.tracker.SetGoal(ctx, s.tracker.Today(), p.DailyGoal); err != nil {
			s.logger.Printf("failed to apply daily goal to today's progress: %v", err)
		}
	}
	return p, nil
}

// Progress reports the current summary. Without a tracker the daily record
// is synthesized from the preference goal and not stored.
func (s *Session) Progress(ctx context.Context) (progress.Report, error) {
	if s.ownerID == "" {
		return progress.Report{}, syncengine.ErrNotAuthenticated
	}
	tasks := s.engine.CurrentTasks()
	if s.tracker != nil {
		return s.tracker.Report(ctx, tasks)
	}

	today := task.DateOf(s.now().In(s.loc))
	summary := progress.Compute(tasks, today)
	goal, err := s.goal(ctx)
	if err != nil || goal <= 0 {
		goal = prefs.DefaultDailyGoal
	}
	return progress.Report{
		Summary: summary,
		Daily: progress.DailyProgress{
			OwnerID:        s.ownerID,
			Date:           today,
			TotalTasks:     summary.TotalToday,
			CompletedTasks: summary.CompletedToday,
			DailyGoal:      goal,
		},
		GoalProgress: progress.GoalProgress(summary.CompletedToday, goal),
	}, nil
}

// History returns the owner's stored daily records, newest first. It is
// empty when progress tracking is disabled.
func (s *Session) History(ctx context.Context) ([]progress.DailyProgress, error) {
	if s.ownerID == "" {
		return nil, syncengine.ErrNotAuthenticated
	}
	if s.tracker == nil {
		return []progress.DailyProgress{}, nil
	}
	return s.tracker.History(ctx)
}

// Run keeps the owner's subscription alive until ctx is cancelled,
// resubscribing with backoff after every stream failure. It also runs the
// midnight progress rollover.
func (s *Session) Run(ctx context.Context) error {
	if s.ownerID == "" {
		return syncengine.ErrNotAuthenticated
	}

	if s.rollover != nil {
		if err := s.rollover.Start(); err != nil {
			return fmt.Errorf("failed to schedule progress rollover: %w", err)
		}
		defer s.rollover.Stop()
	}

	b := s.newBackOff()
	for {
		started := s.now()
		err := s.engine.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, syncengine.ErrNotAuthenticated) {
			return err
		}

		// A subscription that stayed up for a while earns a fresh schedule.
		if s.now().Sub(started) > time.Minute {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		s.logger.Printf("resubscribing in %v: %v", wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// WaitSynced blocks until the first snapshot has been applied.
func (s *Session) WaitSynced(ctx context.Context) error {
	return s.engine.WaitSynced(ctx)
}

// Close releases the stores. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close task store: %w", err))
		}
		if s.progress != nil {
			if err := s.progress.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close progress store: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
