// Package alarm provides the one-shot deadline timer the controller arms for card expiry, and a watcher that
// reports wall-clock changes.
//
// Two [Alarm] backends exist: [ClockAlarm] on a [clockwork.Clock] and [CronAlarm] on a gocron scheduler.
// Both keep at most one deadline armed. A callback that was already in flight when its deadline was replaced is
// dropped.
package alarm

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Alarm wakes the caller once at an absolute time.
type Alarm interface {
	// Set arms fn to run at at, replacing any armed deadline. A deadline in the past fires immediately.
	Set(at time.Time, fn func()) error
	// Cancel disarms the current deadline, if any.
	Cancel()
}

// ClockAlarm implements [Alarm] with [clockwork.Clock.AfterFunc].
type ClockAlarm struct {
	clock clockwork.Clock

	mu       sync.Mutex
	timer    clockwork.Timer
	deadline time.Time
	gen      uint64
}

// NewClockAlarm creates a [ClockAlarm]. A nil clock uses the real clock.
func NewClockAlarm(clock clockwork.Clock) *ClockAlarm {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockAlarm{clock: clock}
}

func (a *ClockAlarm) Set(at time.Time, fn func()) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelLocked()
	a.gen++
	gen := a.gen
	a.deadline = at
	a.timer = a.clock.AfterFunc(a.clock.Until(at), func() {
		if a.fired(gen) {
			fn()
		}
	})
	return nil
}

func (a *ClockAlarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
}

// Deadline returns the armed deadline.
func (a *ClockAlarm) Deadline() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadline, a.timer != nil
}

func (a *ClockAlarm) cancelLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.deadline = time.Time{}
	a.gen++
}

// fired clears the armed state and reports whether gen is still the current deadline.
func (a *ClockAlarm) fired(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return false
	}
	a.timer = nil
	a.deadline = time.Time{}
	return true
}
