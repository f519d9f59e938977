// Package admin provides the officer-facing operations: complaint and work
// order management with workload bookkeeping, analytics and the public
// dashboard.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

// ResolvedMessage tells the citizen their work order was completed.
const ResolvedMessage = "Your complaint has been resolved. Please rate the work or let us know if the problem persists."

// Notifier tells a citizen about an officer-made status change.
type Notifier interface {
	StatusChanged(ctx context.Context, c *models.Complaint, message string) error
}

// Service provides admin operations.
type Service struct {
	db          *sql.DB
	complaints  *repository.ComplaintRepository
	workOrders  *repository.WorkOrderRepository
	contractors *repository.ContractorRepository
	analytics   *repository.AnalyticsRepository
	briefings   *repository.BriefingRepository

	notifier Notifier
	clock    util.Clock
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock.
func WithClock(c util.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithNotifier sets who is told when a work order completes.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// NewService creates an admin service.
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:          db,
		complaints:  repository.NewComplaintRepository(db),
		workOrders:  repository.NewWorkOrderRepository(db),
		contractors: repository.NewContractorRepository(db),
		analytics:   repository.NewAnalyticsRepository(db),
		briefings:   repository.NewBriefingRepository(db),
		clock:       util.SystemClock{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListComplaints returns complaints matching filter, newest first.
func (s *Service) ListComplaints(ctx context.Context, filter models.ComplaintFilter, page models.Pagination) (*models.ComplaintList, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.complaints.List(ctx, filter, page)
}

// GetComplaint returns a complaint by ID.
func (s *Service) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	return s.complaints.GetByID(ctx, nil, id)
}

// ComplaintPatch holds the fields an officer may change on a complaint.
type ComplaintPatch struct {
	Status       *models.ComplaintStatus `json:"status,omitempty"`
	ContractorID *string                 `json:"contractor_id,omitempty"`
}

// PatchComplaint sets a complaint's status directly and moves its
// pipeline work order to another contractor.
func (s *Service) PatchComplaint(ctx context.Context, id string, patch ComplaintPatch) (*models.Complaint, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q: %w", *patch.Status, models.ErrInvalidInput)
	}

	var c *models.Complaint
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = s.complaints.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if patch.Status != nil && *patch.Status != c.Status {
			c.Status = *patch.Status
			c.UpdatedAt = now
			if err := s.complaints.UpdateStatus(ctx, tx, c.ID, c.Status, now); err != nil {
				return err
			}
		}
		if patch.ContractorID != nil {
			wo, err := s.workOrders.GetByComplaint(ctx, tx, c.ID, models.OriginPipeline)
			if err != nil {
				return fmt.Errorf("complaint %s has no work order to reassign: %w", c.ID, err)
			}
			if _, err := s.applyWorkOrder(ctx, tx, wo, WorkOrderPatch{ContractorID: patch.ContractorID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("complaint updated", "complaint", c.ID, "status", c.Status)
	return c, nil
}

// ListWorkOrders returns work orders matching filter, newest first.
func (s *Service) ListWorkOrders(ctx context.Context, filter models.WorkOrderFilter, page models.Pagination) (*models.WorkOrderList, error) {
	return s.workOrders.List(ctx, filter, page)
}

// WorkOrderPatch holds the fields an officer may change on a work order.
type WorkOrderPatch struct {
	Status       *models.WorkOrderStatus `json:"status,omitempty"`
	ContractorID *string                 `json:"contractor_id,omitempty"`
	Notes        *string                 `json:"notes,omitempty"`
}

// PatchWorkOrder updates a work order. When the order's active contractor
// changes, the old contractor loses one unit of workload and the new one
// gains one, in the same transaction. Completing an order resolves its
// complaint.
func (s *Service) PatchWorkOrder(ctx context.Context, id string, patch WorkOrderPatch) (*models.WorkOrder, error) {
	var (
		wo       *models.WorkOrder
		resolved *models.Complaint
	)
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		wo, err = s.workOrders.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		resolved, err = s.applyWorkOrder(ctx, tx, wo, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order updated", "work_order", wo.ID, "status", wo.Status, "contractor", wo.ActiveContractor())
	if resolved != nil && s.notifier != nil {
		if err := s.notifier.StatusChanged(ctx, resolved, ResolvedMessage); err != nil {
			s.logger.Warn("resolution notification failed", "complaint", resolved.ID, "error", err)
		}
	}
	return wo, nil
}

// applyWorkOrder applies patch to wo inside tx. It returns the complaint
// when the patch completed the order.
func (s *Service) applyWorkOrder(ctx context.Context, tx *sql.Tx, wo *models.WorkOrder, patch WorkOrderPatch) (*models.Complaint, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q: %w", *patch.Status, models.ErrInvalidInput)
	}
	now := s.clock.Now()
	before := wo.ActiveContractor()
	wasCompleted := wo.Status == models.WorkOrderCompleted

	if patch.ContractorID != nil {
		contractor, err := s.contractors.GetByID(ctx, tx, *patch.ContractorID)
		if err != nil {
			return nil, err
		}
		wo.ContractorID = &contractor.ID
		if wo.Status == models.WorkOrderCreated {
			wo.Status = models.WorkOrderAssigned
		}
	}
	if patch.Status != nil {
		wo.Status = *patch.Status
	}
	if patch.Notes != nil {
		wo.Notes = *patch.Notes
	}
	switch {
	case wo.Status == models.WorkOrderCompleted && !wasCompleted:
		wo.CompletedAt = &now
	case wo.Status != models.WorkOrderCompleted:
		wo.CompletedAt = nil
	}
	wo.UpdatedAt = now

	if after := wo.ActiveContractor(); after != before {
		if before != "" {
			if err := s.contractors.DecrementWorkload(ctx, tx, before); err != nil {
				return nil, err
			}
		}
		if after != "" {
			if err := s.contractors.IncrementWorkload(ctx, tx, after); err != nil {
				return nil, err
			}
		}
	}
	if err := s.workOrders.Update(ctx, tx, wo); err != nil {
		return nil, err
	}

	if wo.Status != models.WorkOrderCompleted || wasCompleted {
		return nil, nil
	}
	c, err := s.complaints.GetByID(ctx, tx, wo.ComplaintID)
	if err != nil {
		return nil, err
	}
	if c.Status == models.ComplaintStatusResolved || c.Status == models.ComplaintStatusClosed {
		return nil, nil
	}
	c.Status = models.ComplaintStatusResolved
	c.UpdatedAt = now
	if err := s.complaints.UpdateStatus(ctx, tx, c.ID, c.Status, now); err != nil {
		return nil, err
	}
	return c, nil
}

// Analytics returns complaint volume by status, category and risk.
func (s *Service) Analytics(ctx context.Context) (*models.Analytics, error) {
	return s.analytics.Analytics(ctx)
}

// Performance returns resolution times, SLA breach rate and contractor
// delivery figures.
func (s *Service) Performance(ctx context.Context) (*models.Performance, error) {
	return s.analytics.Performance(ctx)
}

// ListContractors returns all contractors.
func (s *Service) ListContractors(ctx context.Context) ([]*models.Contractor, error) {
	return s.contractors.List(ctx)
}

// LatestBriefing returns the most recent daily briefing.
func (s *Service) LatestBriefing(ctx context.Context) (*models.DailyBriefing, error) {
	return s.briefings.Latest(ctx, nil)
}

// PublicDashboard returns the anonymous transparency view.
func (s *Service) PublicDashboard(ctx context.Context) (*models.PublicDashboard, error) {
	return s.analytics.PublicDashboard(ctx)
}

// CheckWorkloads reports contractors whose stored workload differs from
// their active work orders.
func (s *Service) CheckWorkloads(ctx context.Context) ([]repository.WorkloadDrift, error) {
	return s.contractors.CheckWorkloads(ctx)
}

// ReconcileWorkloads rewrites every stored workload from the active work
// orders and returns the number of contractors corrected.
func (s *Service) ReconcileWorkloads(ctx context.Context) (int, error) {
	var n int
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		n, err = s.contractors.ReconcileWorkloads(ctx, tx)
		return err
	})
	return n, err
}
