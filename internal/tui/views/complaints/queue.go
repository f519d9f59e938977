// Package complaints provides the console views for the complaint queue
// and phone-in intake.
package complaints

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/services/admin"
	complaintsvc "github.com/civicflow/civicflow/internal/services/complaints"
	"github.com/civicflow/civicflow/internal/tui/components"
	"github.com/civicflow/civicflow/internal/util"
)

// statusFilters is the cycle the status filter key steps through. The
// empty entry shows every complaint.
var statusFilters = []models.ComplaintStatus{
	"",
	models.ComplaintStatusSubmitted,
	models.ComplaintStatusClassified,
	models.ComplaintStatusWorkOrderCreated,
	models.ComplaintStatusEscalated,
	models.ComplaintStatusInProgress,
	models.ComplaintStatusResolved,
	models.ComplaintStatusClosed,
}

// QueueView lists complaints for officers.
type QueueView struct {
	admin    *admin.Service
	tracker  *complaintsvc.Service
	table    *components.Table
	items    []*models.Complaint
	page     models.Pagination
	filter   models.ComplaintFilter
	statusIx int
	search   string
	loading  bool
	err      error
	now      time.Time
	palette  components.Palette

	// tracking is the detail of the selected complaint, loaded on demand.
	tracking *complaintsvc.Tracking
}

// NewQueueView creates a complaint queue.
func NewQueueView(adminSvc *admin.Service, tracker *complaintsvc.Service) *QueueView {
	columns := []components.Column{
		{Title: "Code", Width: 12, Priority: 10},
		{Title: "Category", Width: 13, Priority: 8},
		{Title: "Risk", Width: 8, Priority: 9},
		{Title: "Score", Width: 5, Align: lipgloss.Right, Priority: 4},
		{Title: "Status", Width: 18, Priority: 7},
		{Title: "District", Width: 10, Weight: 1, Priority: 3},
		{Title: "Description", Width: 16, Weight: 3, Priority: 6},
		{Title: "Age", Width: 8, Align: lipgloss.Right, Priority: 5},
	}

	table := components.NewTable(columns)
	table.SetVisibleRows(20)
	table.Focus(true)

	return &QueueView{
		admin:   adminSvc,
		tracker: tracker,
		table:   table,
		page:    models.Pagination{Page: 1, PageSize: 20},
		palette: components.DefaultPalette,
	}
}

// SetPalette restyles the view.
func (v *QueueView) SetPalette(p components.Palette) {
	v.palette = p
	v.table.SetPalette(p)
}

// Load fetches the current page of complaints.
func (v *QueueView) Load(ctx context.Context) error {
	v.loading = true
	v.err = nil

	result, err := v.admin.ListComplaints(ctx, v.filter, v.page)
	v.loading = false
	if err != nil {
		v.err = err
		return err
	}

	v.items = result.Complaints
	rows := make([][]string, len(v.items))
	for i, c := range v.items {
		rows[i] = []string{
			c.TrackingCode,
			orDash(string(c.CategoryOrEmpty())),
			orDash(string(c.RiskOrEmpty())),
			fmt.Sprintf("%d", c.PriorityScore),
			string(c.Status),
			orDash(c.District),
			c.Description,
			util.RelativeTimeString(c.CreatedAt, v.now),
		}
	}
	v.table.SetRows(rows)
	v.table.SetPagination(result.Page, result.TotalPages, result.Total)
	return nil
}

// LoadDetail fetches the tracking view of the selected complaint.
func (v *QueueView) LoadDetail(ctx context.Context) error {
	v.tracking = nil
	c := v.SelectedComplaint()
	if c == nil {
		return nil
	}
	t, err := v.tracker.Track(ctx, c.TrackingCode)
	if err != nil {
		return err
	}
	v.tracking = t
	return nil
}

// SetNow sets the time complaint ages are measured against.
func (v *QueueView) SetNow(t time.Time) {
	v.now = t
}

// SetSearch filters on description, tracking code and address.
func (v *QueueView) SetSearch(term string) {
	v.search = term
	v.filter.Search = term
	v.page.Page = 1
}

// CycleStatus steps the status filter and returns the new value, "" for
// all statuses.
func (v *QueueView) CycleStatus() models.ComplaintStatus {
	v.statusIx = (v.statusIx + 1) % len(statusFilters)
	status := statusFilters[v.statusIx]
	if status == "" {
		v.filter.Status = nil
	} else {
		v.filter.Status = &status
	}
	v.page.Page = 1
	return status
}

// ToggleOpenOnly hides or shows finished complaints.
func (v *QueueView) ToggleOpenOnly() {
	v.filter.OpenOnly = !v.filter.OpenOnly
	v.page.Page = 1
}

// SetVisibleRows sets the number of visible table rows.
func (v *QueueView) SetVisibleRows(n int) {
	v.table.SetVisibleRows(n)
}

// NextPage moves to the next page.
func (v *QueueView) NextPage() {
	v.page.Page++
}

// PrevPage moves to the previous page.
func (v *QueueView) PrevPage() {
	if v.page.Page > 1 {
		v.page.Page--
	}
}

// MoveUp moves the selection up.
func (v *QueueView) MoveUp() { v.table.MoveUp() }

// MoveDown moves the selection down.
func (v *QueueView) MoveDown() { v.table.MoveDown() }

// SelectedComplaint returns the highlighted complaint.
func (v *QueueView) SelectedComplaint() *models.Complaint {
	idx := v.table.Selected()
	if idx >= 0 && idx < len(v.items) {
		return v.items[idx]
	}
	return nil
}

// Render renders the queue for the given terminal size.
func (v *QueueView) Render(width, height int) string {
	titleStyle := lipgloss.NewStyle().Foreground(v.palette.Accent).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary)
	valueStyle := lipgloss.NewStyle().Foreground(v.palette.Primary)
	errStyle := lipgloss.NewStyle().Foreground(v.palette.Error)

	var b strings.Builder
	b.WriteString(titleStyle.Render("═══ COMPLAINT QUEUE ═══"))
	b.WriteString("\n\n")

	var filters []string
	if v.search != "" {
		filters = append(filters, labelStyle.Render("Search: ")+valueStyle.Render(v.search))
	}
	if v.filter.Status != nil {
		filters = append(filters, labelStyle.Render("Status: ")+valueStyle.Render(string(*v.filter.Status)))
	}
	if v.filter.OpenOnly {
		filters = append(filters, valueStyle.Render("open only"))
	}
	if len(filters) > 0 {
		b.WriteString(strings.Join(filters, "  "))
		b.WriteString("\n\n")
	}

	if v.err != nil {
		b.WriteString(errStyle.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	}

	switch {
	case v.loading:
		b.WriteString(labelStyle.Render("Loading..."))
		b.WriteString("\n")
	case v.table.Empty():
		b.WriteString(labelStyle.Render("No complaints found."))
		b.WriteString("\n")
	default:
		b.WriteString(v.table.RenderResponsive(width))
	}

	b.WriteString("\n")
	if width < 60 {
		b.WriteString(labelStyle.Render("↑↓:Nav  Enter:View  a:Phone-in"))
	} else {
		b.WriteString(labelStyle.Render("Up/Down:Select  Enter:Details  /:Search  f:Status  o:Open only  a:Phone-in  PgUp/Dn:Page"))
	}
	return b.String()
}

// RenderDetail renders the selected complaint with its work order and
// escalation history.
func (v *QueueView) RenderDetail(width int) string {
	titleStyle := lipgloss.NewStyle().Foreground(v.palette.Accent).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(v.palette.Primary).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(v.palette.Primary)
	helpStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary)

	labelWidth := 18
	if width < 60 {
		labelWidth = 12
	}
	labelStyle := lipgloss.NewStyle().Foreground(v.palette.Secondary).Width(labelWidth)
	field := func(label, value string) string {
		return labelStyle.Render(label+":") + " " + valueStyle.Render(value) + "\n"
	}

	var c *models.Complaint
	if v.tracking != nil {
		c = v.tracking.Complaint
	} else {
		c = v.SelectedComplaint()
	}
	if c == nil {
		return labelStyle.Render("No complaint selected")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("═══ COMPLAINT " + c.TrackingCode + " ═══"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("REPORT"))
	b.WriteString("\n")
	b.WriteString(field("Citizen", strings.TrimSpace(c.CitizenName+" <"+c.CitizenEmail+">")))
	if c.CitizenPhone != "" {
		b.WriteString(field("Phone", c.CitizenPhone))
	}
	b.WriteString(field("Description", c.Description))
	b.WriteString(field("Location", orDash(strings.Join(nonEmpty(c.Address, c.Ward, c.District, c.City), ", "))))
	if c.HasCoordinates() {
		b.WriteString(field("Coordinates", fmt.Sprintf("%.5f, %.5f", *c.Latitude, *c.Longitude)))
	}
	b.WriteString(field("Received", c.CreatedAt.Format("2006-01-02 15:04")))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("TRIAGE"))
	b.WriteString("\n")
	b.WriteString(field("Status", string(c.Status)))
	b.WriteString(field("Category", orDash(string(c.CategoryOrEmpty()))))
	b.WriteString(field("Risk", fmt.Sprintf("%s (score %d)", orDash(string(c.RiskOrEmpty())), c.PriorityScore)))
	b.WriteString(field("Department", orDash(c.Department)))
	if c.NeedsHumanReview {
		b.WriteString(field("Review", fmt.Sprintf("needed, confidence %.2f", c.ClassificationConfidence)))
	}
	if c.SatisfactionRating != nil {
		b.WriteString(field("Rating", fmt.Sprintf("%d/5 %s", *c.SatisfactionRating, c.SatisfactionComment)))
	}
	if c.ReopenCount > 0 {
		b.WriteString(field("Reopened", fmt.Sprintf("%d times", c.ReopenCount)))
	}

	if v.tracking != nil {
		if wo := v.tracking.WorkOrder; wo != nil {
			b.WriteString("\n")
			b.WriteString(sectionStyle.Render("WORK ORDER"))
			b.WriteString("\n")
			b.WriteString(field("Status", string(wo.Status)))
			b.WriteString(field("Department", orDash(wo.Department)))
			b.WriteString(field("SLA deadline", wo.SLADeadline.Format("2006-01-02 15:04")))
			b.WriteString(field("Estimated cost", fmt.Sprintf("₹%.0f", wo.EstimatedCost)))
		}
		if len(v.tracking.Escalations) > 0 {
			b.WriteString("\n")
			b.WriteString(sectionStyle.Render("ESCALATIONS"))
			b.WriteString("\n")
			for _, e := range v.tracking.Escalations {
				b.WriteString(valueStyle.Render(fmt.Sprintf("  %s  %s -> %s  %s",
					e.EscalatedAt.Format("2006-01-02 15:04"), e.FromLevel, e.ToLevel, e.Reason)))
				b.WriteString("\n")
			}
		}
		if len(v.tracking.Media) > 0 {
			b.WriteString(field("Attachments", fmt.Sprintf("%d", len(v.tracking.Media))))
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Esc:Back"))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
