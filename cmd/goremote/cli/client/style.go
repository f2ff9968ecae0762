package client

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	partialStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	ignoredStyle = lipgloss.NewStyle().Faint(true)
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
