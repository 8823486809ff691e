package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/glance/internal/formatter"
)

const maxHistory = 100

// Actions is the subset of the server API the watch view drives.
type Actions interface {
	SetPrivacy(ctx context.Context, enabled bool) error
	Reload(ctx context.Context) error
	ProducerChanged(ctx context.Context) error
	TimeChanged(ctx context.Context) error
}

// EventSource yields stream events until it fails or is closed.
type EventSource interface {
	Next() (formatter.StreamEvent, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	actions Actions
	source  EventSource
	now     func() time.Time
	width   int
	height  int
	state   *formatter.StateView
	privacy bool
	history list.Model
	status  string
	closed  bool
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model reading from source and sending key actions through actions.
func NewModel(ctx context.Context, actions Actions, source EventSource) *Model {
	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "Events"
	history.SetShowHelp(false)
	history.SetFilteringEnabled(false)

	return &Model{
		ctx:     ctx,
		actions: actions,
		source:  source,
		now:     time.Now,
		history: history,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts reading the event stream.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.history.SetSize(msg.Width-4, max(msg.Height-16, 4))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgStreamEvent:
			return m, tea.Batch(m.apply(msg.data.(formatter.StreamEvent)), m.waitForEvent())
		case MsgStreamClosed:
			m.closed = true
			if err, ok := msg.data.(error); ok {
				m.err = err
			}
			return m, nil
		case MsgActionDone:
			res := msg.data.(actionResult)
			if res.err != nil {
				m.status = theme.bad.Render(fmt.Sprintf("%s failed: %v", res.action, res.err))
			} else {
				m.status = theme.good.Render(res.action + " sent")
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m *Model) apply(e formatter.StreamEvent) tea.Cmd {
	switch e.Type {
	case formatter.EventState:
		if e.State != nil {
			m.state = e.State
			m.privacy = e.State.PrivacyMode
		}
	case formatter.EventPrivacy:
		if e.Enabled != nil {
			m.privacy = *e.Enabled
		}
	}

	cmd := m.history.InsertItem(0, eventItem{at: m.now(), event: e})
	if n := len(m.history.Items()); n > maxHistory {
		m.history.RemoveItem(n - 1)
	}
	return cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.privacy):
		enabled := !m.privacy
		return m, m.act("privacy", func(ctx context.Context) error { return m.actions.SetPrivacy(ctx, enabled) })
	case key.Matches(msg, m.keys.reload):
		return m, m.act("reload", m.actions.Reload)
	case key.Matches(msg, m.keys.producer):
		return m, m.act("producer changed", m.actions.ProducerChanged)
	case key.Matches(msg, m.keys.time):
		return m, m.act("time changed", m.actions.TimeChanged)
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m *Model) act(name string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(name, fn(m.ctx))
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.source == nil {
		return nil
	}
	return func() tea.Msg {
		e, err := m.source.Next()
		if err != nil {
			return streamClosedMsg(err)
		}
		return streamEventMsg(e)
	}
}

// View renders the card panels, privacy line, event history and help.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(theme.heading.Render("Glance"))
	b.WriteString("\n")

	if m.state == nil {
		b.WriteString(theme.muted.Render("waiting for state..."))
	} else {
		user := fmt.Sprintf("user %d", m.state.User)
		if !m.state.Enabled {
			user += " • " + theme.caution.Render("disabled")
		}
		b.WriteString(user)
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderCard("Primary", m.state.Primary),
			m.renderCard("Secondary", m.state.Secondary),
		))
	}
	b.WriteString("\n")

	if m.privacy {
		b.WriteString(theme.caution.Render("privacy mode on"))
	} else {
		b.WriteString(theme.good.Render("privacy mode off"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.history.View())
	b.WriteString("\n")

	if m.closed {
		msg := "stream closed"
		if m.err != nil {
			msg = fmt.Sprintf("stream closed: %v", m.err)
		}
		b.WriteString(theme.bad.Render(msg))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderCard(label string, c *formatter.CardView) string {
	panel := theme.panel(label)
	lines := []string{theme.slot.Render(label)}
	if c == nil {
		lines = append(lines, theme.muted.Render(formatter.None))
		return panel.Render(strings.Join(lines, "\n"))
	}

	head := cardLine(c)
	if c.Action.Launchable() {
		head += " " + theme.badge.Render(c.Action.Kind.String())
	}
	lines = append(lines, head)
	if c.Subtitle != "" {
		lines = append(lines, c.Subtitle)
	}
	if c.ExpiresAt > 0 {
		left := time.UnixMilli(c.ExpiresAt).Sub(m.now())
		if left > 0 {
			lines = append(lines, theme.muted.Render("expires in "+formatter.DurationText(left)))
		} else {
			lines = append(lines, theme.caution.Render("expired"))
		}
	}
	return panel.Render(strings.Join(lines, "\n"))
}
