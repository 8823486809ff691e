package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	privacy  key.Binding
	reload   key.Binding
	producer key.Binding
	time     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		privacy:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "privacy")),
		reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		producer: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "producer changed")),
		time:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "time changed")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.privacy, k.reload, k.producer, k.time, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.privacy, k.reload},
		{k.producer, k.time, k.quit},
	}
}
