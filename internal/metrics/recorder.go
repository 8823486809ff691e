package metrics

import "time"

// Rejection reasons.
const (
	ReasonForeignUser = "foreign_user"
	ReasonDisabled    = "disabled"
	ReasonStopped     = "stopped"
)

// Store operations.
const (
	OpPut       = "put"
	OpTombstone = "tombstone"
	OpLoad      = "load"
)

// Recorder receives card pipeline events.
type Recorder interface {
	IncUpdateIngested(slot string)
	IncUpdateRejected(reason string)
	IncDecodeFailure()
	IncExpiration()
	IncNotification()
	IncStoreError(op string)
	SetNextExpiry(at time.Time)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) IncUpdateIngested(string) {}
func (NoopRecorder) IncUpdateRejected(string) {}
func (NoopRecorder) IncDecodeFailure()        {}
func (NoopRecorder) IncExpiration()           {}
func (NoopRecorder) IncNotification()         {}
func (NoopRecorder) IncStoreError(string)     {}
func (NoopRecorder) SetNextExpiry(time.Time)  {}
