package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/glance/internal/formatter"
)

var _ list.Item = eventItem{}

// eventItem wraps a received [formatter.StreamEvent] to implement [list.Item].
type eventItem struct {
	at    time.Time
	event formatter.StreamEvent
}

func (i eventItem) FilterValue() string { return i.event.Type }

func (i eventItem) Title() string {
	return fmt.Sprintf("%s  %s", i.at.Format(time.TimeOnly), i.event.Type)
}

func (i eventItem) Description() string {
	switch i.event.Type {
	case formatter.EventState:
		if i.event.State == nil {
			return ""
		}
		return fmt.Sprintf("primary: %s • secondary: %s", cardLine(i.event.State.Primary), cardLine(i.event.State.Secondary))
	case formatter.EventPrivacy:
		if i.event.Enabled != nil && *i.event.Enabled {
			return "privacy mode on"
		}
		return "privacy mode off"
	case formatter.EventProducer:
		return "producer availability changed"
	default:
		return ""
	}
}

func cardLine(c *formatter.CardView) string {
	if c == nil {
		return formatter.None
	}
	if c.FormattedTitle != "" {
		return c.FormattedTitle
	}
	return c.Title
}
