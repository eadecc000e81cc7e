package tui

import (
	"github.com/charmbracelet/lipgloss"

	"circles/internal/notify"
)

var (
	// Colors taken from Catppuccin Mocha palette
	primaryColor   = lipgloss.Color("#89b4fa")
	secondaryColor = lipgloss.Color("#a6e3a1")
	dangerColor    = lipgloss.Color("#f38ba8")
	warningColor   = lipgloss.Color("#fab387")
	mutedColor     = lipgloss.Color("#6c7086")
	textColor      = lipgloss.Color("#f5e0dc")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(primaryColor).
			Padding(0, 1)

	normalStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	successStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	focusedInputStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(mutedColor)

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(textColor).
			Background(primaryColor).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// Recovery phrase grid.
	wordStyle = lipgloss.NewStyle().
			Width(16).
			Foreground(textColor)

	hiddenWordStyle = wordStyle.
			Foreground(mutedColor)

	cursorWordStyle = wordStyle.
			Foreground(textColor).
			Background(primaryColor)

	wrongWordStyle = wordStyle.
			Foreground(dangerColor).
			Strikethrough(true)

	revealedWordStyle = wordStyle.
				Foreground(secondaryColor).
				Bold(true)

	notificationStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				PaddingLeft(1)
)

func notificationColor(t notify.Type) lipgloss.Color {
	switch t {
	case notify.Success:
		return secondaryColor
	case notify.Warning:
		return warningColor
	case notify.Error:
		return dangerColor
	}
	return primaryColor
}

const logo = `
     _          _
 ___(_)_ __ ___| | ___  ___
/ __| | '__/ __| |/ _ \/ __|
| (__| | | | (__| |  __/\__ \
\___|_|_|  \___|_|\___||___/
`
