package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	requestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45B7D1"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#96E6A1"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	attemptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC857"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)
