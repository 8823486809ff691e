// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/shared"
)

// MockProducer is a test double for [controller.Producer] that counts signals.
type MockProducer struct {
	mu      sync.Mutex
	enable  int
	expired int
	Err     error
}

func (m *MockProducer) EnableUpdates(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enable++
	return m.Err
}

func (m *MockProducer) Expired(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired++
	return m.Err
}

func (m *MockProducer) EnableCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable
}

func (m *MockProducer) ExpiredCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expired
}

// RecordingSubscriber keeps every callback it receives.
type RecordingSubscriber struct {
	mu       sync.Mutex
	states   []models.State
	producer int
	privacy  []bool
}

func (r *RecordingSubscriber) OnStateUpdated(state models.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *RecordingSubscriber) OnProducerAvailabilityChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producer++
}

func (r *RecordingSubscriber) OnPrivacyModeChanged(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.privacy = append(r.privacy, enabled)
}

// States returns a copy of every state received, oldest first.
func (r *RecordingSubscriber) States() []models.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.State(nil), r.states...)
}

// Last returns the most recent state and whether any was received.
func (r *RecordingSubscriber) Last() (models.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return models.State{}, false
	}
	return r.states[len(r.states)-1], true
}

func (r *RecordingSubscriber) ProducerChanges() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.producer
}

func (r *RecordingSubscriber) PrivacyChanges() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.privacy...)
}

// ManualAlarm is an [alarm.Alarm] that only fires when told to.
type ManualAlarm struct {
	mu       sync.Mutex
	deadline time.Time
	fn       func()
	sets     int
	cancels  int
}

func (a *ManualAlarm) Set(at time.Time, fn func()) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deadline, a.fn = at, fn
	a.sets++
	return nil
}

func (a *ManualAlarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deadline, a.fn = time.Time{}, nil
	a.cancels++
}

// Deadline returns the armed deadline, if any.
func (a *ManualAlarm) Deadline() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadline, a.fn != nil
}

// Sets returns how many times Set was called.
func (a *ManualAlarm) Sets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sets
}

// Fire runs the armed callback and disarms it. It reports false when nothing was armed.
func (a *ManualAlarm) Fire() bool {
	a.mu.Lock()
	fn := a.fn
	a.deadline, a.fn = time.Time{}, nil
	a.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// FailingBlobStore fails every operation with [shared.ErrStoreFailure].
type FailingBlobStore struct{}

func (FailingBlobStore) Store(key string, data []byte) error {
	return shared.ErrStoreFailure
}

func (FailingBlobStore) Load(key string) ([]byte, error) {
	return nil, shared.ErrStoreFailure
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
