package client

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	primaryColor = lipgloss.Color("#7C3AED")
	mutedColor   = lipgloss.Color("#6B7280")
	botColor     = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	directColor  = lipgloss.Color("#F59E0B")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	authorStyle = lipgloss.NewStyle().Bold(true)
	botStyle    = lipgloss.NewStyle().Bold(true).Foreground(botColor)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle  = lipgloss.NewStyle().Foreground(errorColor)
	directStyle = lipgloss.NewStyle().Foreground(directColor)
)
