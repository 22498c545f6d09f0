package ui

import "github.com/charmbracelet/lipgloss"

// Styles defines the lipgloss styles used by the CLI
var Styles = struct {
	Bold       lipgloss.Style
	Muted      lipgloss.Style
	Header     lipgloss.Style
	Cell       lipgloss.Style
	SuccessBox lipgloss.Style
}{
	Bold:   lipgloss.NewStyle().Bold(true),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Header: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),

	SuccessBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("42")).
		Padding(0, 1).
		Width(60),
}
