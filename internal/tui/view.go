package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	timerRunningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82")).
				Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func clock(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("taskflow timer"))
	b.WriteString("\n\n")
	switch {
	case !m.loaded:
		b.WriteString(labelStyle.Render("Loading..."))
	case m.Running != nil:
		l := m.Running
		what := l.CardTitle
		if l.SubtaskName != "" {
			what += " / " + l.SubtaskName
		}
		b.WriteString(what + "\n")
		b.WriteString(timerRunningStyle.Render(clock(m.Elapsed())) + "\n")
		b.WriteString(labelStyle.Render("started " + l.StartTime))
		if l.Description != "" {
			b.WriteString("\n" + labelStyle.Render(l.Description))
		}
		if m.stopping {
			b.WriteString("\n" + labelStyle.Render("stopping..."))
		}
	default:
		b.WriteString(labelStyle.Render("No timer running."))
	}
	if m.LastStop != nil {
		fmt.Fprintf(&b, "\n\nLast stopped: %s (card now %.2f h)", m.LastStop.FormattedDuration, m.LastStop.CardActualHours)
	}
	if m.Err != nil {
		b.WriteString("\n\n" + errorStyle.Render(m.Err.Error()))
	}
	return boxStyle.Render(b.String()) + "\n" + helpStyle.Render("s stop • r refresh • q quit")
}
