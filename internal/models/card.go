package models

import (
	"fmt"
	"time"
)

// Slot identifies one of the two display positions.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotSecondary
)

// Priority values carried on the wire.
const (
	PrioritySecondary = 1
	PriorityPrimary   = 2
)

// SlotForPriority maps a wire priority onto a [Slot].
//
// Unknown priorities fall back to [SlotPrimary]; ok reports whether the value was recognized.
func SlotForPriority(priority int) (slot Slot, ok bool) {
	switch priority {
	case PrioritySecondary:
		return SlotSecondary, true
	case PriorityPrimary:
		return SlotPrimary, true
	default:
		return SlotPrimary, false
	}
}

// IsPrimary reports whether s is the primary slot. It is the boolean used in persistence keys.
func (s Slot) IsPrimary() bool {
	return s == SlotPrimary
}

func (s Slot) String() string {
	switch s {
	case SlotPrimary:
		return "primary"
	case SlotSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// ParseSlot converts "primary"/"secondary" back into a [Slot].
func ParseSlot(s string) (Slot, error) {
	switch s {
	case "primary":
		return SlotPrimary, nil
	case "secondary", "weather":
		return SlotSecondary, nil
	default:
		return SlotPrimary, fmt.Errorf("unknown slot %q", s)
	}
}

// Format parameter kinds.
const (
	ParamEventStart = 1
	ParamEventEnd   = 2
	ParamText       = 3
)

// FormatParam is one substitution for a [FormattedText] template.
type FormatParam struct {
	Text string `json:"text,omitempty"`
	Args int    `json:"args"`
}

// FormattedText is a printf-style template plus its parameters.
type FormattedText struct {
	Text   string        `json:"text"`
	Params []FormatParam `json:"params,omitempty"`
}

// Message is the title and subtitle shown for one phase of an event.
type Message struct {
	Title    FormattedText `json:"title"`
	Subtitle FormattedText `json:"subtitle"`
}

// ActionKind selects how a tap target is launched.
type ActionKind int

const (
	ActionNone      ActionKind = 0
	ActionBroadcast ActionKind = 1
	ActionActivity  ActionKind = 2
)

func (k ActionKind) String() string {
	switch k {
	case ActionBroadcast:
		return "broadcast"
	case ActionActivity:
		return "activity"
	default:
		return "none"
	}
}

// Action is a deferred tap target. The core never interprets Target.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target"`
}

// Launchable reports whether the action has a kind the rendering side can start.
func (a *Action) Launchable() bool {
	return a != nil && (a.Kind == ActionBroadcast || a.Kind == ActionActivity)
}

// Card is one decoded update. A zero ExpiresAt never expires.
type Card struct {
	ID            int64
	Slot          Slot
	Priority      int
	CardType      int
	PreEvent      *Message
	DuringEvent   *Message
	PostEvent     *Message
	EventTime     time.Time
	EventDuration time.Duration
	Action        *Action
	Icon          []byte
	IconGrayscale bool
	PublishTime   time.Time
	ExpiresAt     time.Time
	Discard       bool
}

// Expired reports whether the card has a deadline at or before now.
func (c *Card) Expired(now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}

// ExpirationRemaining returns the time left until ExpiresAt, or zero for cards without a deadline.
func (c *Card) ExpirationRemaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt.IsZero() {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// EventEnd returns EventTime + EventDuration.
func (c *Card) EventEnd() time.Time {
	return c.EventTime.Add(c.EventDuration)
}

// Message selects the pre, during or post event message for now.
//
// Before the event starts the pre-event message is used, after it ends the post-event message, and the during-event
// message in between. during reports whether the during-event message was picked.
func (c *Card) Message(now time.Time) (msg *Message, during bool) {
	switch {
	case now.Before(c.EventTime):
		return c.PreEvent, false
	case now.After(c.EventEnd()):
		return c.PostEvent, false
	default:
		return c.DuringEvent, true
	}
}
