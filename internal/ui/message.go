package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/glance/internal/formatter"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStreamEvent MsgKind = iota
	MsgStreamClosed
	MsgActionDone
)

// streamEventMsg is the constructor for [MsgStreamEvent]
func streamEventMsg(e formatter.StreamEvent) Msg {
	return Msg{kind: MsgStreamEvent, data: e}
}

// streamClosedMsg is the constructor for [MsgStreamClosed]
func streamClosedMsg(err error) Msg {
	return Msg{kind: MsgStreamClosed, data: err}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action string, err error) Msg {
	return Msg{
		kind: MsgActionDone,
		data: actionResult{action: action, err: err},
	}
}

type actionResult struct {
	action string
	err    error
}
