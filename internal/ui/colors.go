package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const panelWidth = 44

var theme = newTheme(lipgloss.AdaptiveColor{Light: "#5A3FD1", Dark: "#7D56F4"})

// Theme holds the styles for the watch view. Panel borders are tinted per slot.
type Theme struct {
	heading   lipgloss.Style
	slot      lipgloss.Style
	badge     lipgloss.Style
	muted     lipgloss.Style
	good      lipgloss.Style
	bad       lipgloss.Style
	caution   lipgloss.Style
	primary   lipgloss.Style
	secondary lipgloss.Style
}

func newTheme(accent lipgloss.AdaptiveColor) *Theme {
	muted := lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"}
	panel := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(panelWidth)

	return &Theme{
		heading: lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		slot:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(accent).
			Padding(0, 1),
		muted:     lipgloss.NewStyle().Foreground(muted).Italic(true),
		good:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		bad:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4F4F")),
		caution:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		primary:   panel.BorderForeground(accent),
		secondary: panel.BorderForeground(muted),
	}
}

// panel returns the border style for the named slot.
func (t *Theme) panel(slot string) lipgloss.Style {
	if slot == "Primary" {
		return t.primary
	}
	return t.secondary
}
