package progress

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JamesPrial/tasksync/internal/task"
)

// midnightSpec fires at 00:00:00 every day (cron with seconds).
const midnightSpec = "0 0 0 * * *"

// Rollover creates each new day's record at local midnight and fills it
// from the current task set, so the day exists even before the first change.
type Rollover struct {
	cron    *cron.Cron
	tracker *Tracker
	tasks   func() []task.Task
	timeout time.Duration
}

// NewRollover schedules tracker's midnight job in loc. tasks returns the
// visible task set at the time the job runs.
func NewRollover(tracker *Tracker, loc *time.Location, tasks func() []task.Task) *Rollover {
	if loc == nil {
		loc = time.Local
	}
	return &Rollover{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		tracker: tracker,
		tasks:   tasks,
		timeout: 30 * time.Second,
	}
}

// Start registers the job and starts the scheduler.
func (r *Rollover) Start() error {
	if _, err := r.cron.AddFunc(midnightSpec, r.Run); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Run performs one rollover immediately.
func (r *Rollover) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if r.tasks != nil {
		if err := r.tracker.Observe(ctx, r.tasks()); err != nil {
			r.tracker.logger.Printf("rollover failed: %v", err)
		}
		return
	}
	if _, err := r.tracker.Ensure(ctx, r.tracker.Today()); err != nil {
		r.tracker.logger.Printf("rollover failed: %v", err)
	}
}

// Next returns when the job fires next, or the zero time if not started.
func (r *Rollover) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops the scheduler and waits for a running job to finish.
func (r *Rollover) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
