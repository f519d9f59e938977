// Package contractors provides the console contractor roster.
package contractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/tui/components"
)

// RosterView lists contractors with their workload and rating.
type RosterView struct {
	service     *admin.Service
	table       *components.Table
	contractors []*models.Contractor
	drift       []repository.WorkloadDrift
	err         error
	palette     components.Palette
}

// NewRosterView creates a roster.
func NewRosterView(service *admin.Service) *RosterView {
	columns := []components.Column{
		{Title: "Name", Width: 16, Weight: 2, Priority: 10},
		{Title: "Specializations", Width: 16, Weight: 3, Priority: 7},
		{Title: "Rating", Width: 6, Align: lipgloss.Right, Priority: 8},
		{Title: "Workload", Width: 8, Align: lipgloss.Right, Priority: 9},
		{Title: "Zone", Width: 12, Weight: 1, Priority: 5},
		{Title: "Phone", Width: 16, Priority: 3},
	}
	table := components.NewTable(columns)
	table.SetVisibleRows(20)
	table.Focus(true)

	return &RosterView{
		service: service,
		table:   table,
		palette: components.DefaultPalette,
	}
}

// SetPalette restyles the view.
func (v *RosterView) SetPalette(p components.Palette) {
	v.palette = p
	v.table.SetPalette(p)
}

// Load fetches contractors and checks their workload counters.
func (v *RosterView) Load(ctx context.Context) error {
	v.err = nil
	contractors, err := v.service.ListContractors(ctx)
	if err != nil {
		v.err = err
		return err
	}
	drift, err := v.service.CheckWorkloads(ctx)
	if err != nil {
		v.err = err
		return err
	}

	v.contractors = contractors
	v.drift = drift
	rows := make([][]string, len(contractors))
	for i, c := range contractors {
		specs := make([]string, len(c.Specializations))
		for j, s := range c.Specializations {
			specs[j] = string(s)
		}
		rows[i] = []string{
			c.Name,
			strings.Join(specs, ","),
			fmt.Sprintf("%.2f", c.Rating),
			fmt.Sprintf("%d", c.ActiveWorkload),
			c.Zone,
			c.Phone,
		}
	}
	v.table.SetRows(rows)
	return nil
}

// Reconcile rewrites drifted workload counters and reloads.
func (v *RosterView) Reconcile(ctx context.Context) (int, error) {
	n, err := v.service.ReconcileWorkloads(ctx)
	if err != nil {
		return 0, err
	}
	return n, v.Load(ctx)
}

// HasDrift reports whether any counter disagrees with the active orders.
func (v *RosterView) HasDrift() bool { return len(v.drift) > 0 }

// MoveUp moves the selection up.
func (v *RosterView) MoveUp() { v.table.MoveUp() }

// MoveDown moves the selection down.
func (v *RosterView) MoveDown() { v.table.MoveDown() }

// SetVisibleRows sets the number of visible table rows.
func (v *RosterView) SetVisibleRows(n int) { v.table.SetVisibleRows(n) }

// SelectedContractor returns the highlighted contractor.
func (v *RosterView) SelectedContractor() *models.Contractor {
	idx := v.table.Selected()
	if idx >= 0 && idx < len(v.contractors) {
		return v.contractors[idx]
	}
	return nil
}

// Render renders the roster.
func (v *RosterView) Render(width, height int) string {
	titleStyle := lipgloss.NewStyle().Foreground(v.palette.Accent).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary)
	errStyle := lipgloss.NewStyle().Foreground(v.palette.Error)

	var b strings.Builder
	b.WriteString(titleStyle.Render("═══ CONTRACTOR ROSTER ═══"))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(errStyle.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	}
	if v.HasDrift() {
		b.WriteString(errStyle.Render(fmt.Sprintf("Workload drift on %d contractor(s):", len(v.drift))))
		b.WriteString("\n")
		for _, d := range v.drift {
			b.WriteString(errStyle.Render(fmt.Sprintf("  %s stored %d, actual %d", d.Name, d.Stored, d.Actual)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if v.table.Empty() {
		b.WriteString(labelStyle.Render("No contractors registered."))
		b.WriteString("\n")
	} else {
		b.WriteString(v.table.RenderResponsive(width))
	}

	b.WriteString("\n")
	help := "Up/Down:Select  r:Refresh"
	if v.HasDrift() {
		help += "  x:Reconcile workloads"
	}
	b.WriteString(labelStyle.Render(help))
	return b.String()
}
