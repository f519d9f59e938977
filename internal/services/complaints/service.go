// Package complaints provides the citizen-facing complaint operations:
// submission, background processing through the pipeline, tracking and
// feedback.
package complaints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/pipeline"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

// trackingCodeAttempts bounds the retries on a tracking code collision.
const trackingCodeAttempts = 5

// backfillBatch is the most complaints one backfill reprocesses.
const backfillBatch = 500

// StatusNotifier tells a citizen about a status change made outside the
// pipeline.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, c *models.Complaint, message string) error
}

// Service provides complaint operations.
type Service struct {
	db          *sql.DB
	complaints  *repository.ComplaintRepository
	workOrders  *repository.WorkOrderRepository
	contractors *repository.ContractorRepository
	escalations *repository.EscalationRepository
	tenants     *repository.TenantRepository

	runner   *pipeline.Runner
	notifier StatusNotifier
	clock    util.Clock
	logger   *slog.Logger
	pool     *pool
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock.
func WithClock(c util.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithNotifier sets who is told about reopened and closed complaints.
func WithNotifier(n StatusNotifier) Option { return func(s *Service) { s.notifier = n } }

// NewService creates a complaint service that processes complaints with
// the given stages.
func NewService(db *sql.DB, stages []pipeline.Stage, opts ...Option) *Service {
	s := &Service{
		db:          db,
		complaints:  repository.NewComplaintRepository(db),
		workOrders:  repository.NewWorkOrderRepository(db),
		contractors: repository.NewContractorRepository(db),
		escalations: repository.NewEscalationRepository(db),
		tenants:     repository.NewTenantRepository(db),
		clock:       util.SystemClock{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = pipeline.NewRunner(stages, pipeline.WithCheckpoint(s.checkpoint), pipeline.WithLogger(s.logger))
	return s
}

// StartWorkers begins background processing of submitted complaints.
// Without workers, Submit only stores the complaint.
func (s *Service) StartWorkers(ctx context.Context, workers, queueSize int) {
	s.pool = newPool(ctx, workers, queueSize, s.logger, func(ctx context.Context, id string) {
		if _, err := s.Process(ctx, id); err != nil {
			s.logger.Error("processing complaint failed", "complaint", id, "error", err)
		}
	})
}

// Close drains queued complaints and waits for the workers.
func (s *Service) Close() {
	if s.pool != nil {
		s.pool.close()
	}
}

// MediaInput references an already stored attachment.
type MediaInput struct {
	FilePath         string           `json:"file_path"`
	OriginalFilename string           `json:"original_filename,omitempty"`
	MediaType        models.MediaType `json:"media_type,omitempty"`
}

// SubmitInput contains a citizen submission.
type SubmitInput struct {
	TenantID     *string      `json:"tenant_id,omitempty"`
	CitizenEmail string       `json:"citizen_email"`
	CitizenPhone string       `json:"citizen_phone,omitempty"`
	CitizenName  string       `json:"citizen_name,omitempty"`
	Description  string       `json:"description"`
	Latitude     *float64     `json:"latitude,omitempty"`
	Longitude    *float64     `json:"longitude,omitempty"`
	Address      string       `json:"address,omitempty"`
	Media        []MediaInput `json:"media,omitempty"`
}

// Submit stores a new complaint with its attachments and queues it for
// processing. The returned complaint is still in status submitted.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*models.Complaint, error) {
	email := strings.TrimSpace(input.CitizenEmail)
	if email == "" {
		return nil, fmt.Errorf("citizen_email is required: %w", models.ErrInvalidInput)
	}

	tenantID := input.TenantID
	if tenantID == nil {
		t, err := s.tenants.First(ctx, nil)
		switch {
		case err == nil:
			tenantID = &t.ID
		case !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("resolving default tenant: %w", err)
		}
	}

	now := s.clock.Now()
	c := &models.Complaint{
		ID:           util.NewID(),
		TenantID:     tenantID,
		CitizenEmail: email,
		CitizenPhone: input.CitizenPhone,
		CitizenName:  input.CitizenName,
		Description:  input.Description,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		Location:     models.Location{Address: strings.TrimSpace(input.Address)},
		Status:       models.ComplaintStatusSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		code, err := s.uniqueTrackingCode(ctx, tx)
		if err != nil {
			return err
		}
		c.TrackingCode = code

		if err := s.complaints.Create(ctx, tx, c); err != nil {
			return err
		}
		for _, m := range input.Media {
			media := &models.Media{
				ID:               util.NewID(),
				ComplaintID:      c.ID,
				FilePath:         m.FilePath,
				MediaType:        m.MediaType,
				OriginalFilename: m.OriginalFilename,
				CreatedAt:        now,
			}
			if !media.MediaType.Valid() {
				media.MediaType = models.MediaTypeForFilename(firstNonEmpty(m.OriginalFilename, m.FilePath))
			}
			if err := s.complaints.AddMedia(ctx, tx, media); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submitting complaint: %w", err)
	}

	s.logger.Info("complaint submitted", "complaint", c.ID, "tracking_code", c.TrackingCode)
	if s.pool != nil {
		s.pool.enqueue(c.ID)
	}
	return c, nil
}

func (s *Service) uniqueTrackingCode(ctx context.Context, tx *sql.Tx) (string, error) {
	for i := 0; i < trackingCodeAttempts; i++ {
		code := util.NewTrackingCode()
		exists, err := s.complaints.TrackingCodeExists(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free tracking code after %d attempts: %w", trackingCodeAttempts, models.ErrConflict)
}

// Process runs the pipeline for a stored complaint. Complaint-level
// problems are reported in the returned context's Errors; the error is
// only set when the complaint could not be loaded.
func (s *Service) Process(ctx context.Context, complaintID string) (*pipeline.Context, error) {
	c, err := s.complaints.GetByID(ctx, nil, complaintID)
	if err != nil {
		return nil, err
	}
	media, err := s.complaints.ListMedia(ctx, nil, c.ID)
	if err != nil {
		return nil, err
	}

	pc := pipeline.NewContext(c, media)
	s.runner.Run(ctx, pc)
	return pc, nil
}

// checkpoint persists the complaint after every stage. A status changed
// by anyone else since the previous checkpoint halts the run.
func (s *Service) checkpoint(ctx context.Context, pc *pipeline.Context, stage string) error {
	c := pc.Complaint
	c.UpdatedAt = s.clock.Now()
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.complaints.SaveProgress(ctx, tx, c, pc.PersistedStatus()); err != nil {
			return err
		}
		if stage != pipeline.StageIntake {
			return nil
		}
		for _, m := range pc.Media {
			if m.ExtractedText == "" {
				continue
			}
			if err := s.complaints.SetMediaText(ctx, tx, m.ID, m.ExtractedText); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	pc.MarkPersisted()
	return nil
}

// Tracking is the public view of a complaint.
type Tracking struct {
	Complaint   *models.Complaint    `json:"complaint"`
	Media       []*models.Media      `json:"media"`
	WorkOrder   *models.WorkOrder    `json:"work_order,omitempty"`
	Escalations []*models.Escalation `json:"escalations"`
}

// Track looks a complaint up by its public tracking code.
func (s *Service) Track(ctx context.Context, code string) (*Tracking, error) {
	if !util.IsTrackingCode(code) {
		return nil, fmt.Errorf("malformed tracking code %q: %w", code, models.ErrInvalidInput)
	}
	c, err := s.complaints.GetByTrackingCode(ctx, nil, code)
	if err != nil {
		return nil, err
	}

	t := &Tracking{Complaint: c}
	if t.Media, err = s.complaints.ListMedia(ctx, nil, c.ID); err != nil {
		return nil, err
	}
	if t.Escalations, err = s.escalations.ListByComplaint(ctx, nil, c.ID); err != nil {
		return nil, err
	}
	if t.WorkOrder, err = s.currentOrder(ctx, nil, c.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return t, nil
}

// ListByEmail returns a citizen's complaints, newest first.
func (s *Service) ListByEmail(ctx context.Context, email string, page models.Pagination) (*models.ComplaintList, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", models.ErrInvalidInput)
	}
	return s.complaints.List(ctx, models.ComplaintFilter{CitizenEmail: email}, page)
}

// Rate records a citizen's satisfaction rating. A rating of 2 or less on a
// resolved or closed complaint reopens it. The rating is folded into the
// assigned contractor's average.
func (s *Service) Rate(ctx context.Context, code string, rating int, comment string) (*models.Complaint, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5: %w", models.ErrInvalidInput)
	}

	var c *models.Complaint
	var reopened bool
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = s.complaints.GetByTrackingCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if !c.Status.Rateable() {
			return fmt.Errorf("complaint in status %s cannot be rated: %w", c.Status, models.ErrConflict)
		}
		if c.SatisfactionRating != nil {
			return fmt.Errorf("complaint %s already rated: %w", c.TrackingCode, models.ErrConflict)
		}

		c.SatisfactionRating = &rating
		c.SatisfactionComment = strings.TrimSpace(comment)
		if rating <= 2 && c.Status.IsFinished() {
			notFixed := false
			c.VerifiedFixed = &notFixed
			if err := s.reopen(ctx, tx, c); err != nil {
				return err
			}
			reopened = true
		}

		if err := s.rateContractor(ctx, tx, c.ID, rating); err != nil {
			return err
		}
		c.UpdatedAt = s.clock.Now()
		return s.complaints.SaveFeedback(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}

	if reopened {
		s.tell(ctx, c, "Your complaint has been reopened after your feedback. We will follow up with the contractor.")
	}
	return c, nil
}

func (s *Service) rateContractor(ctx context.Context, tx *sql.Tx, complaintID string, rating int) error {
	order, err := s.currentOrder(ctx, tx, complaintID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && order.ContractorID == nil) {
		return nil
	}
	if err != nil {
		return err
	}
	contractor, err := s.contractors.GetByID(ctx, tx, *order.ContractorID)
	if err != nil {
		return err
	}
	return s.contractors.UpdateRating(ctx, tx, contractor.ID, models.BlendRating(contractor.Rating, rating))
}

// Verify records whether the citizen confirms the fix. A confirmed fix
// closes the complaint; otherwise it is reopened.
func (s *Service) Verify(ctx context.Context, code string, fixed bool) (*models.Complaint, error) {
	var c *models.Complaint
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = s.complaints.GetByTrackingCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if !c.Status.IsFinished() {
			return fmt.Errorf("complaint in status %s is not resolved: %w", c.Status, models.ErrConflict)
		}

		c.VerifiedFixed = &fixed
		if fixed {
			c.Status = models.ComplaintStatusClosed
		} else if err := s.reopen(ctx, tx, c); err != nil {
			return err
		}
		c.UpdatedAt = s.clock.Now()
		return s.complaints.SaveFeedback(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}

	if fixed {
		s.tell(ctx, c, "Thank you for confirming. Your complaint is now closed.")
	} else {
		s.tell(ctx, c, "Your complaint has been reopened. We will follow up with the contractor.")
	}
	return c, nil
}

// reopen moves a finished complaint back to in_progress and reactivates
// its completed work order, booking the contractor again.
func (s *Service) reopen(ctx context.Context, tx *sql.Tx, c *models.Complaint) error {
	c.Status = models.ComplaintStatusInProgress
	c.ReopenCount++

	order, err := s.currentOrder(ctx, tx, c.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if order.Status != models.WorkOrderCompleted {
		return nil
	}

	order.Status = models.WorkOrderInProgress
	order.CompletedAt = nil
	order.UpdatedAt = s.clock.Now()
	if err := s.workOrders.Update(ctx, tx, order); err != nil {
		return err
	}
	if order.ContractorID != nil {
		return s.contractors.IncrementWorkload(ctx, tx, *order.ContractorID)
	}
	return nil
}

// currentOrder returns the complaint's pipeline order, or its cluster
// order when it anchors a cluster without one.
func (s *Service) currentOrder(ctx context.Context, tx *sql.Tx, complaintID string) (*models.WorkOrder, error) {
	order, err := s.workOrders.GetByComplaint(ctx, tx, complaintID, models.OriginPipeline)
	if errors.Is(err, models.ErrNotFound) {
		return s.workOrders.GetByComplaint(ctx, tx, complaintID, models.OriginCluster)
	}
	return order, err
}

func (s *Service) tell(ctx context.Context, c *models.Complaint, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StatusChanged(ctx, c, message); err != nil {
		s.logger.Warn("status notification failed", "complaint", c.ID, "error", err)
	}
}

// BackfillResult reports a backfill run.
type BackfillResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
}

// Backfill reprocesses complaints that never received a classification,
// for example because the process stopped while they were queued.
func (s *Service) Backfill(ctx context.Context) (*BackfillResult, error) {
	pending, err := s.complaints.ListUnclassified(ctx, backfillBatch)
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{}
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		pc, err := s.Process(ctx, c.ID)
		if err != nil {
			s.logger.Warn("backfill: processing failed", "complaint", c.ID, "error", err)
			continue
		}
		result.Processed++
		if pc.Complaint.IsClassified() {
			result.Updated++
		}
	}
	s.logger.Info("backfill complete", "processed", result.Processed, "updated", result.Updated)
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
