package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	label    lipgloss.Style
	focused  lipgloss.Style
	prompt   lipgloss.Style
	info     lipgloss.Style
	warning  lipgloss.Style
	errorMsg lipgloss.Style
	help     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		label:    lipgloss.NewStyle().Width(11).Foreground(lipgloss.Color("8")),
		focused:  lipgloss.NewStyle().Width(11).Bold(true).Foreground(lipgloss.Color("14")),
		prompt:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8")),
		info:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		errorMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}
