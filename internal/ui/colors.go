package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/sp2yt/internal/models"
)

var styles = newPalette(lipgloss.AdaptiveColor{Light: "#5A3FD6", Dark: "#7D56F4"}, "#04B575", "#E5484D", "#FFA500", "#626262")

// Palette holds the monitor's styles, named after what they render.
type Palette struct {
	title   lipgloss.Style
	found   lipgloss.Style
	failed  lipgloss.Style
	stopped lipgloss.Style
	muted   lipgloss.Style
	label   lipgloss.Style
}

func newPalette(title lipgloss.TerminalColor, found, failed, stopped, muted string) *Palette {
	return &Palette{
		title:   lipgloss.NewStyle().Foreground(title).Bold(true).MarginBottom(1),
		found:   fg(found).Bold(true),
		failed:  fg(failed).Bold(true),
		stopped: fg(stopped),
		muted:   fg(muted).Italic(true),
		label:   fg(muted).Width(10),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Headline renders the one-line verdict for a finished job.
func (p *Palette) Headline(o models.Outcome) string {
	switch o {
	case models.OutcomeCompleted:
		return p.found.Render("✓ Conversion complete")
	case models.OutcomeFailed:
		return p.failed.Render("✗ Conversion failed")
	default:
		return p.stopped.Render(fmt.Sprintf("! Conversion %s", strings.ReplaceAll(string(o), "_", " ")))
	}
}

// Stat renders a labelled counter.
func (p *Palette) Stat(label string, value any, style lipgloss.Style) string {
	return p.label.Render(label) + style.Render(fmt.Sprint(value))
}
