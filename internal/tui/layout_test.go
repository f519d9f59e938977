package tui

import (
	"strings"
	"testing"

	"github.com/civicflow/civicflow/internal/config"
	"github.com/civicflow/civicflow/internal/models"
)

func TestGetBreakpoint(t *testing.T) {
	tests := []struct {
		width    int
		expected LayoutBreakpoint
	}{
		{40, BreakpointNarrow},
		{59, BreakpointNarrow},
		{60, BreakpointMedium},
		{99, BreakpointMedium},
		{100, BreakpointWide},
		{200, BreakpointWide},
	}

	for _, tt := range tests {
		if got := GetBreakpoint(tt.width); got != tt.expected {
			t.Errorf("GetBreakpoint(%d) = %d, want %d", tt.width, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxWidth int
		expected string
	}{
		{"pothole", 10, "pothole"},
		{"pothole", 7, "pothole"},
		{"streetlight out", 6, "stree…"},
		{"hi", 0, ""},
		{"streetlight", 3, "str"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.input, tt.maxWidth); got != tt.expected {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.expected)
		}
	}
}

func TestPadding(t *testing.T) {
	if got := PadRight("ok", 5); got != "ok   " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadLeft("ok", 5); got != "   ok" {
		t.Errorf("PadLeft = %q", got)
	}
	if got := PadRight("toolong", 3); got != "toolong" {
		t.Errorf("PadRight on wider input = %q", got)
	}
}

func TestContentWidth(t *testing.T) {
	tests := []struct {
		termWidth, minWidth, maxWidth, expected int
	}{
		{80, 40, 120, 80},
		{30, 40, 120, 40},
		{200, 40, 120, 120},
		{80, 40, 0, 80},
	}

	for _, tt := range tests {
		if got := ContentWidth(tt.termWidth, tt.minWidth, tt.maxWidth); got != tt.expected {
			t.Errorf("ContentWidth(%d, %d, %d) = %d, want %d",
				tt.termWidth, tt.minWidth, tt.maxWidth, got, tt.expected)
		}
	}
}

func TestContentHeight(t *testing.T) {
	if got := ContentHeight(24, 6); got != 18 {
		t.Errorf("ContentHeight(24, 6) = %d, want 18", got)
	}
	if got := ContentHeight(5, 6); got != 5 {
		t.Errorf("ContentHeight(5, 6) = %d, want 5", got)
	}
}

func TestSideBySide(t *testing.T) {
	horizontal := SideBySide("LEFT", "RIGHT", 80, 4)
	if strings.Contains(horizontal, "\n\n") {
		t.Error("expected horizontal layout when both blocks fit")
	}

	vertical := SideBySide(strings.Repeat("L", 50), strings.Repeat("R", 50), 60, 4)
	if !strings.Contains(vertical, "\n\n") {
		t.Error("expected stacked layout when blocks do not fit")
	}
}

func TestLoadBar(t *testing.T) {
	theme := NewTheme(config.ColorSchemeCivic)

	half := theme.LoadBar(3, 6, 20)
	if !strings.Contains(half, "█") || !strings.Contains(half, "░") {
		t.Errorf("half bar = %q", half)
	}
	if full := theme.LoadBar(9, 6, 20); strings.Contains(full, "░") {
		t.Error("overfull bar should be clamped to full")
	}
	if empty := theme.LoadBar(0, 6, 20); strings.Contains(empty, "█") {
		t.Error("empty bar should have no filled cells")
	}
}

func TestNewTheme_Schemes(t *testing.T) {
	for _, scheme := range []config.ColorScheme{config.ColorSchemeCivic, config.ColorSchemeAmber, config.ColorSchemeMono, ""} {
		theme := NewTheme(scheme)
		if theme.Palette().Primary == "" {
			t.Errorf("scheme %q has no primary color", scheme)
		}
	}
}

func TestTheme_Risk(t *testing.T) {
	theme := NewTheme(config.ColorSchemeCivic)
	if got := theme.Risk(models.RiskCritical); !strings.Contains(got, "critical") {
		t.Errorf("Risk(critical) = %q", got)
	}
	if got := theme.Risk(""); !strings.Contains(got, "-") {
		t.Errorf("Risk(\"\") = %q", got)
	}
}
