// Package briefing provides the console view of the daily briefing.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/civicflow/civicflow/internal/models"
	briefingsvc "github.com/civicflow/civicflow/internal/services/briefing"
	"github.com/civicflow/civicflow/internal/tui/components"
)

// View shows the latest briefing in a scrollable pane.
type View struct {
	generator *briefingsvc.Generator
	latest    *models.DailyBriefing
	viewport  viewport.Model
	err       error
	width     int
	palette   components.Palette
}

// NewView creates a briefing view. A nil generator disables the view.
func NewView(generator *briefingsvc.Generator) *View {
	return &View{
		generator: generator,
		viewport:  viewport.New(80, 20),
		width:     80,
		palette:   components.DefaultPalette,
	}
}

// SetPalette restyles the view.
func (v *View) SetPalette(p components.Palette) {
	v.palette = p
	v.refresh()
}

// SetSize sets the pane size.
func (v *View) SetSize(width, height int) {
	v.width = max(width, 20)
	v.viewport.Width = v.width
	v.viewport.Height = max(height, 3)
	v.refresh()
}

// Load fetches the most recent briefing. Having none yet is not an error.
func (v *View) Load(ctx context.Context) error {
	v.err = nil
	if v.generator == nil {
		return nil
	}
	b, err := v.generator.Latest(ctx)
	switch {
	case errors.Is(err, models.ErrNotFound):
		v.latest = nil
	case err != nil:
		v.err = err
		return err
	default:
		v.latest = b
	}
	v.refresh()
	return nil
}

// Generate produces and stores a fresh briefing.
func (v *View) Generate(ctx context.Context) error {
	if v.generator == nil {
		return errors.New("briefing generation is not configured")
	}
	b, err := v.generator.Generate(ctx)
	if err != nil {
		v.err = err
		return err
	}
	v.err = nil
	v.latest = b
	v.refresh()
	v.viewport.GotoTop()
	return nil
}

// Latest returns the briefing on display.
func (v *View) Latest() *models.DailyBriefing { return v.latest }

// Update scrolls the pane.
func (v *View) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return cmd
}

func (v *View) refresh() {
	v.viewport.SetContent(v.body())
}

func (v *View) body() string {
	if v.latest == nil {
		return ""
	}
	sectionStyle := lipgloss.NewStyle().Foreground(v.palette.Primary).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary).Width(22)
	valueStyle := lipgloss.NewStyle().Foreground(v.palette.Primary)
	textStyle := lipgloss.NewStyle().Foreground(v.palette.Primary).Width(max(v.width-2, 10))

	b := v.latest
	var s strings.Builder
	s.WriteString(sectionStyle.Render("BRIEFING FOR " + b.BriefDate.Format("Monday, 2 January 2006")))
	s.WriteString("\n\n")
	s.WriteString(textStyle.Render(b.Narrative))
	s.WriteString("\n\n")

	s.WriteString(sectionStyle.Render("FIGURES"))
	s.WriteString("\n")
	for _, row := range []struct {
		label string
		value int
	}{
		{"New complaints", b.NewComplaints},
		{"Resolved today", b.ResolvedToday},
		{"Open", b.TotalOpen},
		{"SLA at risk (12h)", b.SLAAtRisk},
		{"Escalations today", b.EscalationsToday},
		{"Clusters detected", b.ClustersDetected},
	} {
		s.WriteString(labelStyle.Render(row.label+":") + " " + valueStyle.Render(fmt.Sprintf("%d", row.value)) + "\n")
	}

	if len(b.OpenByCategory) > 0 {
		s.WriteString("\n")
		s.WriteString(sectionStyle.Render("OPEN BY CATEGORY"))
		s.WriteString("\n")
		cats := make([]models.Category, 0, len(b.OpenByCategory))
		for c := range b.OpenByCategory {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool {
			if b.OpenByCategory[cats[i]] != b.OpenByCategory[cats[j]] {
				return b.OpenByCategory[cats[i]] > b.OpenByCategory[cats[j]]
			}
			return cats[i] < cats[j]
		})
		for _, c := range cats {
			s.WriteString(labelStyle.Render(string(c)+":") + " " + valueStyle.Render(fmt.Sprintf("%d", b.OpenByCategory[c])) + "\n")
		}
	}
	return s.String()
}

// Render renders the view.
func (v *View) Render() string {
	titleStyle := lipgloss.NewStyle().Foreground(v.palette.Accent).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary)
	errStyle := lipgloss.NewStyle().Foreground(v.palette.Error)

	var b strings.Builder
	b.WriteString(titleStyle.Render("═══ DAILY BRIEFING ═══"))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(errStyle.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	}

	switch {
	case v.generator == nil:
		b.WriteString(labelStyle.Render("Briefings are disabled in the configuration."))
		b.WriteString("\n")
	case v.latest == nil:
		b.WriteString(labelStyle.Render("No briefing has been generated yet."))
		b.WriteString("\n")
	default:
		b.WriteString(v.viewport.View())
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%3.f%%", v.viewport.ScrollPercent()*100)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("g:Generate now  Up/Down:Scroll  r:Refresh"))
	return b.String()
}
