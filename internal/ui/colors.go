package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#1DB954", "#1ED760", "#FF5F56", "#FFA500", "#626262")

// Palette is the stylesheet of the now playing screen.
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	track  lipgloss.Style
	filled lipgloss.Style
	empty  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		track:  lipgloss.NewStyle().Bold(true),
		filled: NewStyle(s),
		empty:  NewStyle(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Bar draws a width cell progress bar filled to fraction.
func (p *Palette) Bar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(fraction*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return p.filled.Render(strings.Repeat("━", filled)) + p.empty.Render(strings.Repeat("─", width-filled))
}
