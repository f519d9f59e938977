// Package workorders provides the console work order board.
package workorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/tui/components"
	"github.com/civicflow/civicflow/internal/util"
)

// statusFilters is the cycle the filter key steps through; "" is active
// orders only.
var statusFilters = []models.WorkOrderStatus{
	"",
	models.WorkOrderCreated,
	models.WorkOrderAssigned,
	models.WorkOrderInProgress,
	models.WorkOrderCompleted,
}

// BoardView lists work orders with their SLA position.
type BoardView struct {
	service     *admin.Service
	table       *components.Table
	orders      []*models.WorkOrder
	contractors map[string]string
	page        models.Pagination
	filter      models.WorkOrderFilter
	statusIx    int
	err         error
	now         time.Time
	palette     components.Palette
}

// NewBoardView creates a work order board showing active orders.
func NewBoardView(service *admin.Service) *BoardView {
	columns := []components.Column{
		{Title: "Order", Width: 8, Priority: 6},
		{Title: "Origin", Width: 8, Priority: 3},
		{Title: "Department", Width: 14, Weight: 1, Priority: 4},
		{Title: "Contractor", Width: 14, Weight: 1, Priority: 8},
		{Title: "Status", Width: 11, Priority: 9},
		{Title: "SLA", Width: 12, Align: lipgloss.Right, Priority: 10},
		{Title: "Cost", Width: 9, Align: lipgloss.Right, Priority: 2},
	}
	table := components.NewTable(columns)
	table.SetVisibleRows(20)
	table.Focus(true)

	return &BoardView{
		service:     service,
		table:       table,
		contractors: map[string]string{},
		page:        models.Pagination{Page: 1, PageSize: 20},
		filter:      models.WorkOrderFilter{ActiveOnly: true},
		palette:     components.DefaultPalette,
	}
}

// SetPalette restyles the view.
func (v *BoardView) SetPalette(p components.Palette) {
	v.palette = p
	v.table.SetPalette(p)
}

// SetNow sets the time SLA positions are measured against.
func (v *BoardView) SetNow(t time.Time) {
	v.now = t
}

// Load fetches the current page of work orders and the contractor names.
func (v *BoardView) Load(ctx context.Context) error {
	v.err = nil
	result, err := v.service.ListWorkOrders(ctx, v.filter, v.page)
	if err != nil {
		v.err = err
		return err
	}
	contractors, err := v.service.ListContractors(ctx)
	if err != nil {
		v.err = err
		return err
	}
	for _, c := range contractors {
		v.contractors[c.ID] = c.Name
	}

	v.orders = result.WorkOrders
	rows := make([][]string, len(v.orders))
	for i, wo := range v.orders {
		rows[i] = []string{
			shortID(wo.ID),
			string(wo.Origin),
			wo.Department,
			v.contractorName(wo),
			string(wo.Status),
			v.slaLabel(wo),
			fmt.Sprintf("₹%.0f", wo.EstimatedCost),
		}
	}
	v.table.SetRows(rows)
	v.table.SetPagination(result.Page, result.TotalPages, result.Total)
	return nil
}

// CycleStatus steps the status filter.
func (v *BoardView) CycleStatus() {
	v.statusIx = (v.statusIx + 1) % len(statusFilters)
	status := statusFilters[v.statusIx]
	v.filter = models.WorkOrderFilter{ActiveOnly: status == ""}
	if status != "" {
		v.filter.Status = &status
	}
	v.page.Page = 1
}

// FilterLabel describes the current filter.
func (v *BoardView) FilterLabel() string {
	if v.filter.Status != nil {
		return string(*v.filter.Status)
	}
	return "active"
}

// NextPage moves to the next page.
func (v *BoardView) NextPage() { v.page.Page++ }

// PrevPage moves to the previous page.
func (v *BoardView) PrevPage() {
	if v.page.Page > 1 {
		v.page.Page--
	}
}

// MoveUp moves the selection up.
func (v *BoardView) MoveUp() { v.table.MoveUp() }

// MoveDown moves the selection down.
func (v *BoardView) MoveDown() { v.table.MoveDown() }

// SetVisibleRows sets the number of visible table rows.
func (v *BoardView) SetVisibleRows(n int) { v.table.SetVisibleRows(n) }

// SelectedWorkOrder returns the highlighted order.
func (v *BoardView) SelectedWorkOrder() *models.WorkOrder {
	idx := v.table.Selected()
	if idx >= 0 && idx < len(v.orders) {
		return v.orders[idx]
	}
	return nil
}

// Advance moves the selected order to status through the admin service,
// which keeps contractor workloads in step.
func (v *BoardView) Advance(ctx context.Context, status models.WorkOrderStatus) (*models.WorkOrder, error) {
	wo := v.SelectedWorkOrder()
	if wo == nil {
		return nil, fmt.Errorf("no work order selected: %w", models.ErrInvalidInput)
	}
	if wo.Status == models.WorkOrderCompleted {
		return nil, fmt.Errorf("work order %s is already completed: %w", shortID(wo.ID), models.ErrConflict)
	}
	return v.service.PatchWorkOrder(ctx, wo.ID, admin.WorkOrderPatch{Status: &status})
}

func (v *BoardView) contractorName(wo *models.WorkOrder) string {
	if wo.ContractorID == nil {
		return "unassigned"
	}
	if name, ok := v.contractors[*wo.ContractorID]; ok {
		return name
	}
	return shortID(*wo.ContractorID)
}

// slaLabel shows the time left, or how long ago the deadline passed.
func (v *BoardView) slaLabel(wo *models.WorkOrder) string {
	if wo.Status == models.WorkOrderCompleted {
		return "done"
	}
	if v.now.After(wo.SLADeadline) {
		return "BREACHED"
	}
	return util.RelativeTimeString(wo.SLADeadline, v.now)
}

// Render renders the board.
func (v *BoardView) Render(width, height int) string {
	titleStyle := lipgloss.NewStyle().Foreground(v.palette.Accent).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary)
	valueStyle := lipgloss.NewStyle().Foreground(v.palette.Primary)
	errStyle := lipgloss.NewStyle().Foreground(v.palette.Error)

	var b strings.Builder
	b.WriteString(titleStyle.Render("═══ WORK ORDERS ═══"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Showing: ") + valueStyle.Render(v.FilterLabel()))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(errStyle.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	}
	if v.table.Empty() {
		b.WriteString(labelStyle.Render("No work orders found."))
		b.WriteString("\n")
	} else {
		b.WriteString(v.table.RenderResponsive(width))
	}

	b.WriteString("\n")
	if width < 60 {
		b.WriteString(labelStyle.Render("↑↓:Nav  p:Start  c:Complete"))
	} else {
		b.WriteString(labelStyle.Render("Up/Down:Select  Enter:Details  f:Filter  p:Start work  c:Complete  PgUp/Dn:Page"))
	}
	return b.String()
}

// RenderDetail renders the selected order.
func (v *BoardView) RenderDetail(width int) string {
	titleStyle := lipgloss.NewStyle().Foreground(v.palette.Accent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(v.palette.Primary)
	helpStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary)
	labelWidth := 16
	if width < 60 {
		labelWidth = 12
	}
	labelStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary).Width(labelWidth)

	wo := v.SelectedWorkOrder()
	if wo == nil {
		return labelStyle.Render("No work order selected")
	}

	field := func(label, value string) string {
		return labelStyle.Render(label+":") + " " + valueStyle.Render(value) + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("═══ WORK ORDER " + shortID(wo.ID) + " ═══"))
	b.WriteString("\n\n")
	b.WriteString(field("Complaint", wo.ComplaintID))
	b.WriteString(field("Origin", string(wo.Origin)))
	b.WriteString(field("Department", wo.Department))
	b.WriteString(field("Contractor", v.contractorName(wo)))
	b.WriteString(field("Status", string(wo.Status)))
	b.WriteString(field("Created", wo.CreatedAt.Format("2006-01-02 15:04")))
	b.WriteString(field("SLA deadline", wo.SLADeadline.Format("2006-01-02 15:04")+" ("+v.slaLabel(wo)+")"))
	if frac, ok := wo.ElapsedFraction(v.now); ok && wo.Status.IsActive() {
		b.WriteString(field("SLA used", fmt.Sprintf("%.0f%%", min(frac, 9.99)*100)))
	}
	if wo.CompletedAt != nil {
		b.WriteString(field("Completed", wo.CompletedAt.Format("2006-01-02 15:04")))
	}
	b.WriteString(field("Estimated cost", fmt.Sprintf("₹%.2f", wo.EstimatedCost)))
	b.WriteString(field("Materials", wo.Materials))
	if wo.Notes != "" {
		b.WriteString(field("Notes", wo.Notes))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Esc:Back  p:Start work  c:Complete"))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
