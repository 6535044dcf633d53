package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/sidegen/internal/tui/styles"
)

// List shows a window of rows with a scrollbar in the rightmost column. It
// backs the checkpoint table, which can outgrow small terminals.
type List struct {
	viewport viewport.Model
	rows     []string
	width    int
	height   int
}

// NewList creates a list; width includes the scrollbar column.
func NewList(width, height int) List {
	l := List{viewport: viewport.New(0, 0)}
	l.SetSize(width, height)
	return l
}

// SetSize updates the dimensions and clamps the scroll offset.
func (l *List) SetSize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	l.width, l.height = width, height
	l.viewport.Width = l.ContentWidth()
	l.viewport.Height = height
	l.viewport.SetContent(strings.Join(l.rows, "\n"))
	l.viewport.SetYOffset(l.viewport.YOffset)
}

// SetRows replaces the rows, keeping the current offset where possible.
func (l *List) SetRows(rows []string) {
	l.rows = append([]string(nil), rows...)
	l.viewport.SetContent(strings.Join(l.rows, "\n"))
	l.viewport.SetYOffset(l.viewport.YOffset)
}

// Len returns the number of rows.
func (l List) Len() int { return len(l.rows) }

// Offset returns the index of the first visible row.
func (l List) Offset() int { return l.viewport.YOffset }

// ContentWidth returns the width left for rows.
func (l List) ContentWidth() int {
	if l.width < 1 {
		return 0
	}
	return l.width - 1
}

// Reveal scrolls the minimum amount needed to show row i.
func (l *List) Reveal(i int) {
	if i < 0 || i >= len(l.rows) || l.height == 0 {
		return
	}
	top := l.viewport.YOffset
	switch {
	case i < top:
		l.viewport.SetYOffset(i)
	case i >= top+l.height:
		l.viewport.SetYOffset(i - l.height + 1)
	}
}

// Update handles scroll keys and the mouse wheel.
func (l List) Update(msg tea.Msg) (List, tea.Cmd) {
	var cmd tea.Cmd
	l.viewport, cmd = l.viewport.Update(msg)
	return l, cmd
}

// View renders exactly height lines.
func (l List) View() string {
	if l.height == 0 {
		return ""
	}
	content := strings.Split(l.viewport.View(), "\n")
	bar := strings.Split(Scrollbar(l.height, len(l.rows), l.viewport.YOffset), "\n")

	cell := lipgloss.NewStyle().Width(l.ContentWidth()).MaxWidth(l.ContentWidth())
	var b strings.Builder
	for i := 0; i < l.height; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		line := ""
		if i < len(content) {
			line = content[i]
		}
		b.WriteString(cell.Render(line))
		b.WriteString(bar[i])
	}
	return b.String()
}

// Scrollbar renders a one-column scrollbar of height lines for total rows
// scrolled to offset. It is a blank gutter while everything fits.
func Scrollbar(height, total, offset int) string {
	if height <= 0 {
		return ""
	}
	if total <= height {
		return strings.Repeat(" \n", height-1) + " "
	}

	thumb := max(height*height/total, 1)
	room := height - thumb
	maxOffset := total - height
	offset = min(max(offset, 0), maxOffset)
	top := 0
	if maxOffset > 0 {
		top = (offset*room + maxOffset/2) / maxOffset
	}

	track := styles.SubtleStyle.Render("│")
	var b strings.Builder
	for i := 0; i < height; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i >= top && i < top+thumb {
			b.WriteString("█")
		} else {
			b.WriteString(track)
		}
	}
	return b.String()
}
