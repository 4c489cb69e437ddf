package ux

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/felixgeelhaar/smith/internal/health"
)

// Styles are the terminal styles used for human-readable output.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Muted lipgloss.Style
	OK    lipgloss.Style
	Warn  lipgloss.Style
	Fail  lipgloss.Style
}

// NewStyles returns styles bound to w. With noColor every style renders its
// text unchanged.
func NewStyles(w io.Writer, noColor bool) Styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		plain := r.NewStyle()
		return Styles{Title: plain, Label: plain, Muted: plain, OK: plain, Warn: plain, Fail: plain}
	}
	return Styles{
		Title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Label: r.NewStyle().Bold(true),
		Muted: r.NewStyle().Foreground(lipgloss.Color("245")),
		OK:    r.NewStyle().Foreground(lipgloss.Color("42")),
		Warn:  r.NewStyle().Foreground(lipgloss.Color("214")),
		Fail:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// NoColor reports whether w should receive plain text: NO_COLOR is set or
// w is not a terminal.
func NoColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	return !term.IsTerminal(int(f.Fd()))
}

// Status renders a health status with its icon.
func (s Styles) Status(status health.Status) string {
	switch status {
	case health.StatusHealthy:
		return s.OK.Render("✓ " + string(status))
	case health.StatusDegraded:
		return s.Warn.Render("! " + string(status))
	default:
		return s.Fail.Render("✗ " + string(status))
	}
}
