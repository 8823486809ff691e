package controller

import "github.com/desertthunder/glance/internal/models"

// Subscriber receives every state change. Implementations must be comparable so they can be removed.
type Subscriber interface {
	OnStateUpdated(state models.State)
}

// ProducerAware subscribers are told when the producer's availability changes.
type ProducerAware interface {
	OnProducerAvailabilityChanged()
}

// PrivacyAware subscribers are told when privacy mode is toggled.
type PrivacyAware interface {
	OnPrivacyModeChanged(enabled bool)
}

// SubscriberFuncs adapts plain functions to all three subscriber interfaces. Nil fields are no-ops.
//
// Register a pointer so removal can find it again.
type SubscriberFuncs struct {
	StateUpdated    func(models.State)
	ProducerChanged func()
	PrivacyChanged  func(enabled bool)
}

func (s *SubscriberFuncs) OnStateUpdated(state models.State) {
	if s.StateUpdated != nil {
		s.StateUpdated(state)
	}
}

func (s *SubscriberFuncs) OnProducerAvailabilityChanged() {
	if s.ProducerChanged != nil {
		s.ProducerChanged()
	}
}

func (s *SubscriberFuncs) OnPrivacyModeChanged(enabled bool) {
	if s.PrivacyChanged != nil {
		s.PrivacyChanged(enabled)
	}
}
