// Package sla watches active work orders against their deadlines, warns
// citizens as a deadline approaches and escalates breached orders up the
// jurisdiction ladder.
package sla

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civicflow/civicflow/internal/assignment"
	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

// Elapsed-fraction thresholds.
const (
	WarnAt     = 0.50
	UrgentAt   = 0.75
	EscalateAt = 1.0
)

// Citizen messages.
const (
	WarningMessage = "Your complaint is being actively worked on. SLA deadline approaching"
	UrgentMessage  = "SLA warning: escalating priority"
)

// errSkip aborts an escalation without counting it as a failure.
var errSkip = errors.New("escalation not needed")

// Notifier delivers the monitor's citizen messages.
type Notifier interface {
	SLAWarning(ctx context.Context, c *models.Complaint, message string) error
	Escalated(ctx context.Context, c *models.Complaint, message string) error
}

// Monitor scans active work orders.
type Monitor struct {
	db          *sql.DB
	complaints  *repository.ComplaintRepository
	workOrders  *repository.WorkOrderRepository
	contractors *repository.ContractorRepository
	escalations *repository.EscalationRepository

	scorer       *assignment.Scorer
	notifier     Notifier
	clock        util.Clock
	logger       *slog.Logger
	escalateOnce bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock.
func WithClock(c util.Clock) Option { return func(m *Monitor) { m.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.logger = l } }

// WithNotifier sets who receives warnings and escalation notices.
func WithNotifier(n Notifier) Option { return func(m *Monitor) { m.notifier = n } }

// WithEscalateOnce limits breach escalation to one per work order. By
// default every scan escalates a still-breached order again.
func WithEscalateOnce(once bool) Option { return func(m *Monitor) { m.escalateOnce = once } }

// NewMonitor creates a monitor.
func NewMonitor(db *sql.DB, opts ...Option) *Monitor {
	m := &Monitor{
		db:          db,
		complaints:  repository.NewComplaintRepository(db),
		workOrders:  repository.NewWorkOrderRepository(db),
		contractors: repository.NewContractorRepository(db),
		escalations: repository.NewEscalationRepository(db),
		scorer:      assignment.NewScorer(),
		clock:       util.SystemClock{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Result summarises one scan.
type Result struct {
	Scanned     int `json:"scanned"`
	Warnings    int `json:"warnings"`
	Urgent      int `json:"urgent"`
	Escalations int `json:"escalations"`
	Reassigned  int `json:"reassigned"`
	Skipped     int `json:"skipped"`
}

// Scan checks every active work order once. Failures on a single order
// are logged and counted as skipped; only a failure to list orders is
// returned.
func (m *Monitor) Scan(ctx context.Context) (*Result, error) {
	orders, err := m.workOrders.ListActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing active work orders: %w", err)
	}

	now := m.clock.Now()
	result := &Result{}
	for _, wo := range orders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		elapsed, ok := wo.ElapsedFraction(now)
		if !ok {
			result.Skipped++
			continue
		}

		switch {
		case elapsed >= EscalateAt:
			m.breach(ctx, wo.ID, result)
		case elapsed >= UrgentAt:
			if m.warn(ctx, wo, UrgentMessage) {
				result.Urgent++
			} else {
				result.Skipped++
			}
		case elapsed >= WarnAt:
			if m.warn(ctx, wo, WarningMessage) {
				result.Warnings++
			} else {
				result.Skipped++
			}
		}
	}

	m.logger.Info("sla scan complete",
		"scanned", result.Scanned,
		"warnings", result.Warnings,
		"urgent", result.Urgent,
		"escalations", result.Escalations,
		"reassigned", result.Reassigned,
		"skipped", result.Skipped)
	return result, nil
}

func (m *Monitor) warn(ctx context.Context, wo *models.WorkOrder, message string) bool {
	c, err := m.complaints.GetByID(ctx, nil, wo.ComplaintID)
	if err != nil {
		m.logger.Warn("sla warning: loading complaint failed", "work_order", wo.ID, "error", err)
		return false
	}
	m.notify(ctx, c, message, false)
	return true
}

// escalation is the committed outcome of a breach.
type escalation struct {
	complaint  *models.Complaint
	to         models.JurisdictionLevel
	contractor *models.Contractor
}

func (m *Monitor) breach(ctx context.Context, workOrderID string, result *Result) {
	var out escalation
	err := database.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		var err error
		out, err = m.escalate(ctx, tx, workOrderID)
		return err
	})
	switch {
	case errors.Is(err, errSkip):
		result.Skipped++
		return
	case err != nil:
		m.logger.Error("sla escalation failed", "work_order", workOrderID, "error", err)
		result.Skipped++
		return
	}

	result.Escalations++
	message := fmt.Sprintf("Escalated to %s level. SLA breached.", out.to)
	if out.contractor != nil {
		result.Reassigned++
		message += " New contractor assigned automatically."
	}
	m.logger.Info("work order escalated",
		"work_order", workOrderID,
		"complaint", out.complaint.ID,
		"tracking_code", out.complaint.TrackingCode,
		"level", out.to)
	m.notify(ctx, out.complaint, message, true)
}

// escalate applies one breach inside tx: reassignment with workload
// transfer, the escalation record and the complaint status.
func (m *Monitor) escalate(ctx context.Context, tx *sql.Tx, workOrderID string) (escalation, error) {
	wo, err := m.workOrders.GetByID(ctx, tx, workOrderID)
	if err != nil {
		return escalation{}, err
	}
	if !wo.Status.IsActive() {
		return escalation{}, errSkip
	}
	c, err := m.complaints.GetByID(ctx, tx, wo.ComplaintID)
	if err != nil {
		return escalation{}, err
	}
	if m.escalateOnce {
		exists, err := m.escalations.ExistsForWorkOrder(ctx, tx, wo.ID)
		if err != nil {
			return escalation{}, err
		}
		if exists {
			return escalation{}, errSkip
		}
	}

	now := m.clock.Now()
	from := models.JurisdictionFor(c.Location)
	out := escalation{complaint: c, to: from.Next()}

	candidates, err := m.contractors.ListByTenant(ctx, tx, c.TenantID)
	if err != nil {
		return escalation{}, err
	}
	current := ""
	if wo.ContractorID != nil {
		current = *wo.ContractorID
	}
	category := c.CategoryOrEmpty()
	if category == "" {
		category = models.CategoryOther
	}

	reason := fmt.Sprintf("SLA breached at %s. ", wo.SLADeadline.UTC().Format(time.RFC3339))
	if next := m.scorer.Best(candidates, category, c.District, current); next != nil {
		if old := wo.ActiveContractor(); old != "" {
			if err := m.contractors.DecrementWorkload(ctx, tx, old); err != nil {
				return escalation{}, err
			}
		}
		if err := m.contractors.IncrementWorkload(ctx, tx, next.ID); err != nil {
			return escalation{}, err
		}
		wo.ContractorID = &next.ID
		wo.Status = models.WorkOrderAssigned
		wo.UpdatedAt = now
		if err := m.workOrders.Update(ctx, tx, wo); err != nil {
			return escalation{}, err
		}
		out.contractor = next
		reason += fmt.Sprintf("Auto-reassigned to %s after SLA breach.", next.Name)
	} else {
		reason += "No available contractor for reassignment."
	}

	orderID := wo.ID
	if err := m.escalations.Create(ctx, tx, &models.Escalation{
		ID:          util.NewID(),
		ComplaintID: c.ID,
		WorkOrderID: &orderID,
		FromLevel:   from,
		ToLevel:     out.to,
		Reason:      reason,
		EscalatedAt: now,
	}); err != nil {
		return escalation{}, err
	}

	c.Status = models.ComplaintStatusEscalated
	c.UpdatedAt = now
	if err := m.complaints.UpdateStatus(ctx, tx, c.ID, c.Status, now); err != nil {
		return escalation{}, err
	}
	return out, nil
}

func (m *Monitor) notify(ctx context.Context, c *models.Complaint, message string, escalated bool) {
	if m.notifier == nil {
		return
	}
	var err error
	if escalated {
		err = m.notifier.Escalated(ctx, c, message)
	} else {
		err = m.notifier.SLAWarning(ctx, c, message)
	}
	if err != nil {
		m.logger.Warn("sla notification failed", "complaint", c.ID, "error", err)
	}
}
