package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LayoutBreakpoint defines terminal width thresholds for responsive layout.
type LayoutBreakpoint int

const (
	// BreakpointNarrow is for terminals under 60 columns.
	BreakpointNarrow LayoutBreakpoint = 60
	// BreakpointMedium is for terminals between 60 and 100 columns.
	BreakpointMedium LayoutBreakpoint = 100
	// BreakpointWide is for terminals of 100 columns or more.
	BreakpointWide LayoutBreakpoint = 140
)

// GetBreakpoint returns the layout breakpoint for the given width.
func GetBreakpoint(width int) LayoutBreakpoint {
	switch {
	case width < int(BreakpointNarrow):
		return BreakpointNarrow
	case width < int(BreakpointMedium):
		return BreakpointMedium
	default:
		return BreakpointWide
	}
}

// Panel renders a bordered panel with the title set into the top border.
func (t *Theme) Panel(title, content string, width int) string {
	rendered := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.SecondaryColor).
		Width(width-2).
		Padding(0, 1).
		Render(content)

	if title == "" {
		return rendered
	}
	lines := strings.Split(rendered, "\n")
	label := t.Accent.Bold(true).Render(" " + title + " ")
	labelWidth := lipgloss.Width(label)
	top := []rune(lines[0])
	if labelWidth+4 < len(top) {
		lines[0] = string(top[:2]) + label + string(top[2+labelWidth:])
	}
	return strings.Join(lines, "\n")
}

// SideBySide renders two blocks next to each other, stacking them when
// they do not fit in totalWidth.
func SideBySide(left, right string, totalWidth, gap int) string {
	if lipgloss.Width(left)+lipgloss.Width(right)+gap > totalWidth {
		return left + "\n\n" + right
	}
	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")
	rows := max(len(leftLines), len(rightLines))

	var b strings.Builder
	for i := 0; i < rows; i++ {
		var l, r string
		if i < len(leftLines) {
			l = leftLines[i]
		}
		if i < len(rightLines) {
			r = rightLines[i]
		}
		b.WriteString(l)
		b.WriteString(strings.Repeat(" ", max(totalWidth/2-lipgloss.Width(l), 1)))
		b.WriteString(r)
		if i < rows-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// LoadBar renders value/limit as a bar that turns from green to red as it
// fills, for workloads and SLA consumption.
func (t *Theme) LoadBar(value, limit float64, width int) string {
	if limit <= 0 {
		limit = 1
	}
	ratio := min(max(value/limit, 0), 1)
	cells := max(width-2, 4)
	filled := int(ratio * float64(cells))
	bar := "[" + strings.Repeat("█", filled) + strings.Repeat("░", cells-filled) + "]"

	switch {
	case ratio >= 0.8:
		return t.Error.Render(bar)
	case ratio >= 0.5:
		return t.Warning.Render(bar)
	default:
		return t.Success.Render(bar)
	}
}

// Truncate shortens s to maxWidth cells, adding an ellipsis if needed.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	runes := []rune(s)
	if maxWidth <= 3 {
		return string(runes[:maxWidth])
	}
	return string(runes[:maxWidth-1]) + "…"
}

// PadRight pads s with spaces to width cells.
func PadRight(s string, width int) string {
	return s + strings.Repeat(" ", max(width-lipgloss.Width(s), 0))
}

// PadLeft pads s on the left with spaces to width cells.
func PadLeft(s string, width int) string {
	return strings.Repeat(" ", max(width-lipgloss.Width(s), 0)) + s
}

// ContentWidth returns the usable content width, clamped to [minWidth,
// maxWidth]. A zero maxWidth means no upper bound.
func ContentWidth(termWidth, minWidth, maxWidth int) int {
	w := max(termWidth, minWidth)
	if maxWidth > 0 {
		w = min(w, maxWidth)
	}
	return w
}

// ContentHeight returns the height left after chromeLines of header and
// footer, never less than 5.
func ContentHeight(termHeight, chromeLines int) int {
	return max(termHeight-chromeLines, 5)
}
