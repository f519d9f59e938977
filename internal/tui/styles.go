// Package tui provides the operations console for CivicFlow.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/civicflow/civicflow/internal/config"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/tui/components"
)

// Theme contains all style definitions for the TUI.
type Theme struct {
	PrimaryColor    lipgloss.Color
	SecondaryColor  lipgloss.Color
	AccentColor     lipgloss.Color
	BackgroundColor lipgloss.Color
	ErrorColor      lipgloss.Color
	WarningColor    lipgloss.Color
	SuccessColor    lipgloss.Color
	MutedColor      lipgloss.Color

	Base lipgloss.Style
	Bold lipgloss.Style

	Primary   lipgloss.Style
	Secondary lipgloss.Style
	Accent    lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Muted     lipgloss.Style

	Header    lipgloss.Style
	Footer    lipgloss.Style
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Box       lipgloss.Style
	Selected  lipgloss.Style
	Alert     lipgloss.Style
	AlertWarn lipgloss.Style
	AlertCrit lipgloss.Style

	StatusDivider lipgloss.Style
}

// NewTheme creates a theme for the configured color scheme.
func NewTheme(scheme config.ColorScheme) *Theme {
	switch scheme {
	case config.ColorSchemeAmber:
		return newAmberTheme()
	case config.ColorSchemeMono:
		return newMonoTheme()
	default:
		return newCivicTheme()
	}
}

// newCivicTheme is the default blue municipal palette.
func newCivicTheme() *Theme {
	return buildTheme(
		lipgloss.Color("#4FC3F7"), // primary
		lipgloss.Color("#0288D1"), // secondary
		lipgloss.Color("#B3E5FC"), // accent
		lipgloss.Color("#000000"),
		lipgloss.Color("#546E7A"), // muted
		lipgloss.Color("#EF5350"),
		lipgloss.Color("#FFCA28"),
		lipgloss.Color("#66BB6A"),
	)
}

func newAmberTheme() *Theme {
	return buildTheme(
		lipgloss.Color("#FFAA00"),
		lipgloss.Color("#AA7700"),
		lipgloss.Color("#FFCC66"),
		lipgloss.Color("#000000"),
		lipgloss.Color("#664400"),
		lipgloss.Color("#FF4444"),
		lipgloss.Color("#FFFF00"),
		lipgloss.Color("#FFAA00"),
	)
}

func newMonoTheme() *Theme {
	return buildTheme(
		lipgloss.Color("#FFFFFF"),
		lipgloss.Color("#AAAAAA"),
		lipgloss.Color("#FFFFFF"),
		lipgloss.Color("#000000"),
		lipgloss.Color("#666666"),
		lipgloss.Color("#FF4444"),
		lipgloss.Color("#FFAA00"),
		lipgloss.Color("#00FF00"),
	)
}

func buildTheme(primary, secondary, accent, background, muted, errorColor, warningColor, successColor lipgloss.Color) *Theme {
	t := &Theme{
		PrimaryColor:    primary,
		SecondaryColor:  secondary,
		AccentColor:     accent,
		BackgroundColor: background,
		MutedColor:      muted,
		ErrorColor:      errorColor,
		WarningColor:    warningColor,
		SuccessColor:    successColor,
	}

	t.Base = lipgloss.NewStyle().Foreground(primary)
	t.Bold = t.Base.Bold(true)

	t.Primary = lipgloss.NewStyle().Foreground(primary)
	t.Secondary = lipgloss.NewStyle().Foreground(secondary)
	t.Accent = lipgloss.NewStyle().Foreground(accent)
	t.Error = lipgloss.NewStyle().Foreground(errorColor)
	t.Warning = lipgloss.NewStyle().Foreground(warningColor)
	t.Success = lipgloss.NewStyle().Foreground(successColor)
	t.Muted = lipgloss.NewStyle().Foreground(muted)

	t.Header = lipgloss.NewStyle().Foreground(primary).Bold(true).Padding(0, 1)
	t.Footer = lipgloss.NewStyle().Foreground(secondary).Padding(0, 1)
	t.Title = lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	t.Subtitle = lipgloss.NewStyle().Foreground(primary).Padding(0, 1)
	t.Label = lipgloss.NewStyle().Foreground(secondary)
	t.Value = lipgloss.NewStyle().Foreground(primary)

	t.Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondary).
		Padding(0, 1)

	t.Selected = lipgloss.NewStyle().
		Foreground(background).
		Background(primary).
		Bold(true)

	t.Alert = lipgloss.NewStyle().Foreground(primary).Bold(true)
	t.AlertWarn = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	t.AlertCrit = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Blink(true)

	t.StatusDivider = lipgloss.NewStyle().Foreground(muted).SetString(" │ ")

	return t
}

// Palette returns the colors handed to components and views.
func (t *Theme) Palette() components.Palette {
	return components.Palette{
		Primary:   t.PrimaryColor,
		Secondary: t.SecondaryColor,
		Accent:    t.AccentColor,
		Muted:     t.MutedColor,
		Error:     t.ErrorColor,
		Inverse:   t.BackgroundColor,
	}
}

// Risk renders a risk level in its alarm color.
func (t *Theme) Risk(level models.RiskLevel) string {
	switch level {
	case models.RiskCritical:
		return t.AlertCrit.Render(string(level))
	case models.RiskHigh:
		return t.Error.Render(string(level))
	case models.RiskMedium:
		return t.Warning.Render(string(level))
	case models.RiskLow:
		return t.Success.Render(string(level))
	default:
		return t.Muted.Render("-")
	}
}

const (
	boxHorizontal       = "─"
	boxDoubleHorizontal = "═"
)

// DrawHorizontalLine draws a horizontal line.
func (t *Theme) DrawHorizontalLine(width int) string {
	return t.Secondary.Render(strings.Repeat(boxHorizontal, max(width, 0)))
}

// DrawDoubleLine draws a double horizontal line.
func (t *Theme) DrawDoubleLine(width int) string {
	return t.Primary.Render(strings.Repeat(boxDoubleHorizontal, max(width, 0)))
}
