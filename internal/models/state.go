package models

import "time"

// State holds the live primary and secondary cards.
type State struct {
	Primary   *Card
	Secondary *Card
}

// Get returns the card in slot, or nil.
func (s *State) Get(slot Slot) *Card {
	if slot == SlotSecondary {
		return s.Secondary
	}
	return s.Primary
}

// Set replaces the card in slot. A nil card empties the slot.
func (s *State) Set(slot Slot, c *Card) {
	if slot == SlotSecondary {
		s.Secondary = c
		return
	}
	s.Primary = c
}

// HandleExpire clears every slot whose deadline is at or before now and reports whether anything was cleared.
func (s *State) HandleExpire(now time.Time) bool {
	cleared := false
	if s.Primary.Expired(now) {
		s.Primary = nil
		cleared = true
	}
	if s.Secondary.Expired(now) {
		s.Secondary = nil
		cleared = true
	}
	return cleared
}

// NextExpiry returns the earliest non-zero deadline across both slots.
func (s *State) NextExpiry() (time.Time, bool) {
	var next time.Time
	for _, c := range []*Card{s.Primary, s.Secondary} {
		if c == nil || c.ExpiresAt.IsZero() {
			continue
		}
		if next.IsZero() || c.ExpiresAt.Before(next) {
			next = c.ExpiresAt
		}
	}
	return next, !next.IsZero()
}

// Clear empties both slots.
func (s *State) Clear() {
	s.Primary = nil
	s.Secondary = nil
}

// Empty reports whether neither slot holds a card.
func (s State) Empty() bool {
	return s.Primary == nil && s.Secondary == nil
}

// PendingUpdate is a classified update travelling from the gateway to the controller.
//
// Payload is the persisted wrapper form and is what the controller decodes on apply.
type PendingUpdate struct {
	Slot        Slot
	Payload     []byte
	Discard     bool
	UserID      int
	PublishTime time.Time
}
