package cmd

import (
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	failed  lipgloss.Style
	muted   lipgloss.Style
	summary lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{
			title:   plain.Bold(true),
			ok:      plain,
			warn:    plain,
			failed:  plain,
			muted:   plain,
			summary: plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
		}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		failed:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		summary: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1),
	}
}
