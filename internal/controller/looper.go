package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Looper runs posted tasks one at a time, in post order, on a single goroutine.
//
// The queue is unbounded so [Looper.Post] never blocks. Stopping drains what is already queued.
type Looper struct {
	name   string
	logger *log.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	started bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewLooper creates a stopped [Looper]. Call [Looper.Start] before posting work that must run.
func NewLooper(name string, logger *log.Logger) *Looper {
	return &Looper{
		name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. It runs until ctx is done or [Looper.Stop] is called.
func (l *Looper) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.closed {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go l.run(ctx)
}

// Post queues fn and reports whether it was accepted. Tasks posted after Stop are dropped.
func (l *Looper) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish.
//
// Calling it from a task on the same loop deadlocks.
func (l *Looper) Call(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	<-done
	return true
}

// Flush waits until every task posted before the call has run.
func (l *Looper) Flush() {
	l.Call(func() {})
}

// Stop rejects new tasks, waits for queued tasks to run and for the loop to exit.
func (l *Looper) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		started := l.started
		l.mu.Unlock()

		close(l.stop)
		if started {
			<-l.done
		}
	})
}

func (l *Looper) run(ctx context.Context) {
	defer close(l.done)
	for {
		if fn, ok := l.next(); ok {
			l.exec(fn)
			continue
		}

		select {
		case <-l.wake:
		case <-l.stop:
			l.drain()
			return
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
			l.drain()
			return
		}
	}
}

func (l *Looper) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Looper) drain() {
	for {
		fn, ok := l.next()
		if !ok {
			return
		}
		l.exec(fn)
	}
}

func (l *Looper) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Error("task panicked", "loop", l.name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
