// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette is the set of colors components render with.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Error     lipgloss.Color
	Inverse   lipgloss.Color
}

// DefaultPalette matches the civic console theme.
var DefaultPalette = Palette{
	Primary:   lipgloss.Color("#4FC3F7"),
	Secondary: lipgloss.Color("#0288D1"),
	Accent:    lipgloss.Color("#B3E5FC"),
	Muted:     lipgloss.Color("#546E7A"),
	Error:     lipgloss.Color("#EF5350"),
	Inverse:   lipgloss.Color("#000000"),
}

// Column defines a table column. Columns with a zero Weight keep their
// Width; weighted columns share the remaining space and never shrink
// below Width. When the table does not fit, columns with the lowest
// Priority are hidden first.
type Column struct {
	Title    string
	Width    int
	Weight   float64
	Priority int
	Align    lipgloss.Position
}

// Table is a simple table component.
type Table struct {
	columns     []Column
	rows        [][]string
	selected    int
	offset      int
	visibleRows int
	focused     bool

	headerStyle   lipgloss.Style
	rowStyle      lipgloss.Style
	rowAltStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	borderStyle   lipgloss.Style

	currentPage int
	totalPages  int
	totalRows   int
}

// NewTable creates a new table with the given columns.
func NewTable(columns []Column) *Table {
	t := &Table{
		columns:     columns,
		rows:        [][]string{},
		visibleRows: 10,
	}
	t.SetPalette(DefaultPalette)
	return t
}

// SetPalette restyles the table.
func (t *Table) SetPalette(p Palette) {
	t.headerStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Accent)
	t.rowStyle = lipgloss.NewStyle().Foreground(p.Primary)
	t.rowAltStyle = lipgloss.NewStyle().Foreground(p.Secondary)
	t.selectedStyle = lipgloss.NewStyle().Background(p.Primary).Foreground(p.Inverse)
	t.borderStyle = lipgloss.NewStyle().Foreground(p.Muted)
}

// SetRows replaces the table data and keeps the selection in range.
func (t *Table) SetRows(rows [][]string) {
	t.rows = rows
	if t.selected >= len(rows) {
		t.selected = max(len(rows)-1, 0)
	}
	if t.offset > t.selected {
		t.offset = t.selected
	}
}

// SetPagination sets pagination info.
func (t *Table) SetPagination(page, totalPages, totalRows int) {
	t.currentPage = page
	t.totalPages = totalPages
	t.totalRows = totalRows
}

// SetVisibleRows sets the number of visible rows.
func (t *Table) SetVisibleRows(n int) {
	if n < 1 {
		n = 1
	}
	t.visibleRows = n
}

// Focus sets the table focus state.
func (t *Table) Focus(focused bool) {
	t.focused = focused
}

// Selected returns the currently selected row index.
func (t *Table) Selected() int {
	return t.selected
}

// MoveUp moves the selection up.
func (t *Table) MoveUp() {
	if t.selected > 0 {
		t.selected--
		if t.selected < t.offset {
			t.offset = t.selected
		}
	}
}

// MoveDown moves the selection down.
func (t *Table) MoveDown() {
	if t.selected < len(t.rows)-1 {
		t.selected++
		if t.selected >= t.offset+t.visibleRows {
			t.offset = t.selected - t.visibleRows + 1
		}
	}
}

// columnGap is the width of the " | " separator.
const columnGap = 3

// computeWidths lays the columns out in width characters. A zero width
// disables the layout and every column keeps its Width. Hidden columns
// get width 0.
func (t *Table) computeWidths(width int) []int {
	widths := make([]int, len(t.columns))
	if width <= 0 {
		for i, c := range t.columns {
			widths[i] = c.Width
		}
		return widths
	}

	visible := make([]bool, len(t.columns))
	for i := range visible {
		visible[i] = true
	}
	needed := func() (total int, weight float64, count int) {
		for i, c := range t.columns {
			if !visible[i] {
				continue
			}
			total += c.Width
			weight += c.Weight
			count++
		}
		if count > 1 {
			total += (count - 1) * columnGap
		}
		return total + 2, weight, count
	}

	total, weight, count := needed()
	for total > width && count > 1 {
		lowest := -1
		for i, c := range t.columns {
			if visible[i] && (lowest < 0 || c.Priority < t.columns[lowest].Priority) {
				lowest = i
			}
		}
		visible[lowest] = false
		total, weight, count = needed()
	}

	// Spare room goes to weighted columns on top of their minimum.
	spare := max(width-total, 0)
	for i, c := range t.columns {
		if !visible[i] {
			continue
		}
		widths[i] = c.Width
		if c.Weight > 0 && weight > 0 {
			widths[i] += int(float64(spare) * c.Weight / weight)
		}
	}
	return widths
}

// RenderResponsive renders the table laid out for the given width.
func (t *Table) RenderResponsive(width int) string {
	widths := t.computeWidths(width)

	lineWidth := 2
	shown := 0
	for _, w := range widths {
		if w > 0 {
			lineWidth += w
			shown++
		}
	}
	if shown > 1 {
		lineWidth += (shown - 1) * columnGap
	}

	var b strings.Builder
	b.WriteString(t.renderRow(t.headers(), widths, t.headerStyle))
	b.WriteString("\n")
	b.WriteString(t.borderStyle.Render(strings.Repeat("-", lineWidth)))
	b.WriteString("\n")

	end := min(t.offset+t.visibleRows, len(t.rows))
	for i := t.offset; i < end; i++ {
		style := t.rowStyle
		switch {
		case i == t.selected && t.focused:
			style = t.selectedStyle
		case (i-t.offset)%2 == 1:
			style = t.rowAltStyle
		}
		b.WriteString(t.renderRow(t.rows[i], widths, style))
		b.WriteString("\n")
	}

	if t.totalPages > 0 {
		b.WriteString(t.borderStyle.Render(strings.Repeat("-", lineWidth)))
		b.WriteString("\n")
		b.WriteString(t.borderStyle.Render(fmt.Sprintf("Page %d/%d | %d total", t.currentPage, t.totalPages, t.totalRows)))
	}
	return b.String()
}

func (t *Table) headers() []string {
	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = col.Title
	}
	return headers
}

func (t *Table) renderRow(cells []string, widths []int, style lipgloss.Style) string {
	var parts []string
	for i, col := range t.columns {
		w := widths[i]
		if w == 0 {
			continue
		}
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts = append(parts, style.Render(fit(cell, w, col.Align)))
	}
	return " " + strings.Join(parts, " | ") + " "
}

// fit truncates or pads s to exactly width runes.
func fit(s string, width int, align lipgloss.Position) string {
	r := []rune(s)
	if len(r) > width {
		if width == 1 {
			return "…"
		}
		return string(r[:width-1]) + "…"
	}
	pad := width - len(r)
	switch align {
	case lipgloss.Right:
		return strings.Repeat(" ", pad) + s
	case lipgloss.Center:
		left := pad / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	default:
		return s + strings.Repeat(" ", pad)
	}
}

// Empty returns true if the table has no rows.
func (t *Table) Empty() bool {
	return len(t.rows) == 0
}

