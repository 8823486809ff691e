package alarm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// NewScheduler creates a gocron scheduler on clock that logs through logger.
func NewScheduler(clock clockwork.Clock, logger *log.Logger) (gocron.Scheduler, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	if logger != nil {
		opts = append(opts, gocron.WithLogger(schedulerLogger{logger}))
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return s, nil
}

// schedulerLogger adapts a charm logger to [gocron.Logger].
type schedulerLogger struct {
	l *log.Logger
}

func (s schedulerLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s schedulerLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s schedulerLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s schedulerLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }

// CronAlarm implements [Alarm] as a gocron one-time job. The scheduler must be started by the caller.
type CronAlarm struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock

	mu       sync.Mutex
	job      uuid.UUID
	deadline time.Time
	gen      uint64
}

// NewCronAlarm creates a [CronAlarm]. clock must be the clock the scheduler was built with.
func NewCronAlarm(s gocron.Scheduler, clock clockwork.Clock) *CronAlarm {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CronAlarm{scheduler: s, clock: clock}
}

func (a *CronAlarm) Set(at time.Time, fn func()) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelLocked()
	a.gen++
	gen := a.gen
	task := gocron.NewTask(func() {
		if a.fired(gen) {
			fn()
		}
	})

	start := gocron.OneTimeJobStartDateTime(at)
	if !at.After(a.clock.Now()) {
		start = gocron.OneTimeJobStartImmediately()
	}

	job, err := a.scheduler.NewJob(gocron.OneTimeJob(start), task, gocron.WithName("card-expiry"))
	if errors.Is(err, gocron.ErrOneTimeJobStartDateTimePast) {
		job, err = a.scheduler.NewJob(gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()), task, gocron.WithName("card-expiry"))
	}
	if err != nil {
		return fmt.Errorf("failed to schedule expiry at %s: %w", at.Format(time.RFC3339), err)
	}

	a.job = job.ID()
	a.deadline = at
	return nil
}

func (a *CronAlarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
}

// Deadline returns the armed deadline.
func (a *CronAlarm) Deadline() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadline, a.job != uuid.Nil
}

func (a *CronAlarm) cancelLocked() {
	if a.job != uuid.Nil {
		// A job that already ran may be gone; ErrJobNotFound is expected then.
		_ = a.scheduler.RemoveJob(a.job)
		a.job = uuid.Nil
	}
	a.deadline = time.Time{}
	a.gen++
}

func (a *CronAlarm) fired(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return false
	}
	a.job = uuid.Nil
	a.deadline = time.Time{}
	return true
}
