package formatter

import (
	"time"

	"github.com/desertthunder/glance/internal/models"
)

// CardView is the JSON shape of a rendered card.
type CardView struct {
	ID             int64          `json:"id"`
	Slot           string         `json:"slot"`
	Title          string         `json:"title"`
	Subtitle       string         `json:"subtitle"`
	FormattedTitle string         `json:"formatted_title,omitempty"`
	CardType       int            `json:"card_type"`
	EventTime      int64          `json:"event_time_ms,omitempty"`
	ExpiresAt      int64          `json:"expires_at_ms"`
	PublishTime    int64          `json:"published_at_ms"`
	Action         *models.Action `json:"action,omitempty"`
	HasIcon        bool           `json:"has_icon"`
	IconGrayscale  bool           `json:"icon_grayscale,omitempty"`
}

// StateView is the JSON shape of the whole controller state.
type StateView struct {
	User        int       `json:"user"`
	Enabled     bool      `json:"enabled"`
	PrivacyMode bool      `json:"privacy_mode"`
	Primary     *CardView `json:"primary"`
	Secondary   *CardView `json:"secondary"`
	RenderedAt  int64     `json:"rendered_at_ms"`
}

// NewCardView renders c at now. A nil card gives a nil view.
func NewCardView(c *models.Card, now time.Time) *CardView {
	if c == nil {
		return nil
	}
	return &CardView{
		ID:             c.ID,
		Slot:           c.Slot.String(),
		Title:          Title(c, now),
		Subtitle:       Subtitle(c, now),
		FormattedTitle: FormattedTitle(c, now),
		CardType:       c.CardType,
		EventTime:      millis(c.EventTime),
		ExpiresAt:      millis(c.ExpiresAt),
		PublishTime:    millis(c.PublishTime),
		Action:         c.Action,
		HasIcon:        len(c.Icon) > 0,
		IconGrayscale:  c.IconGrayscale,
	}
}

// NewStateView renders both slots of state at now.
func NewStateView(state models.State, now time.Time) StateView {
	return StateView{
		Primary:    NewCardView(state.Primary, now),
		Secondary:  NewCardView(state.Secondary, now),
		RenderedAt: now.UnixMilli(),
	}
}

// Stream event types.
const (
	EventState    = "state"
	EventPrivacy  = "privacy"
	EventProducer = "producer"
)

// StreamEvent is one message on the websocket stream.
type StreamEvent struct {
	Type    string     `json:"type"`
	State   *StateView `json:"state,omitempty"`
	Enabled *bool      `json:"enabled,omitempty"`
}
