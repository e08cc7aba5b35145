package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/anitrack/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF5F87", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	cursor lipgloss.Style
	status map[models.Status]lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		cursor: NewBold(t),
		status: map[models.Status]lipgloss.Style{
			models.StatusWatching:    NewStyle("#5FAFFF"),
			models.StatusCompleted:   NewStyle(s),
			models.StatusPlanToWatch: NewStyle(w),
			models.StatusDropped:     NewStyle(h),
		},
	}
}

// Status renders a status label in its color.
func (p *Palette) Status(s models.Status) string {
	if st, ok := p.status[s]; ok {
		return st.Render(s.Label())
	}
	return s.Label()
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
