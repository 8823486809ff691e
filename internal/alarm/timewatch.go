package alarm

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// TimeWatcher reports wall-clock changes by comparing wall progress against monotonic progress between ticks.
type TimeWatcher struct {
	threshold time.Duration
	onChange  func()
	logger    *log.Logger

	wall func() time.Time
	mono func() time.Duration

	mu       sync.Mutex
	lastWall time.Time
	lastMono time.Duration
	started  bool
}

// NewTimeWatcher creates a watcher that calls onChange when the wall clock drifts more than threshold from the
// monotonic clock between two ticks.
func NewTimeWatcher(threshold time.Duration, onChange func(), logger *log.Logger) *TimeWatcher {
	origin := time.Now()
	return &TimeWatcher{
		threshold: threshold,
		onChange:  onChange,
		logger:    logger,
		wall:      func() time.Time { return time.Now().Round(0) },
		mono:      func() time.Duration { return time.Since(origin) },
	}
}

// Tick samples both clocks and reports whether a change was detected. The first tick only records a baseline.
func (w *TimeWatcher) Tick() bool {
	w.mu.Lock()
	wall, mono := w.wall(), w.mono()
	if !w.started {
		w.lastWall, w.lastMono, w.started = wall, mono, true
		w.mu.Unlock()
		return false
	}

	drift := wall.Sub(w.lastWall) - (mono - w.lastMono)
	w.lastWall, w.lastMono = wall, mono
	w.mu.Unlock()

	if drift < 0 {
		drift = -drift
	}
	if drift <= w.threshold {
		return false
	}

	if w.logger != nil {
		w.logger.Info("wall clock changed", "drift", drift)
	}
	if w.onChange != nil {
		w.onChange()
	}
	return true
}

// Schedule registers Tick as a gocron duration job and takes the first sample immediately.
func (w *TimeWatcher) Schedule(s gocron.Scheduler, interval time.Duration) (uuid.UUID, error) {
	w.Tick()
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { w.Tick() }),
		gocron.WithName("time-watch"),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create time watch job: %w", err)
	}
	return job.ID(), nil
}
