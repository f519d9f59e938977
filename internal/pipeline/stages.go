package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/civicflow/civicflow/internal/assignment"
	"github.com/civicflow/civicflow/internal/collab"
	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

// Stage names, in execution order.
const (
	StageIntake     = "Intake"
	StageValidate   = "Validate"
	StageClassify   = "Classify"
	StageRiskAssess = "RiskAssess"
	StageRoute      = "Route"
	StageWorkOrder  = "CreateWorkOrder"
	StageNotify     = "Notify"
)

const (
	minDescription   = 10
	noIssuesFinding  = "no issues visible"
	voiceTextHeading = "\n\nVoice transcription: "
)

// Notifier tells the citizen their complaint has been processed.
type Notifier interface {
	ComplaintProcessed(ctx context.Context, c *models.Complaint, order *models.WorkOrder, summary string) error
}

// Deps holds everything the standard stages need. Nil collaborators make
// the stages use their local fallbacks.
type Deps struct {
	DB          *sql.DB
	Contractors *repository.ContractorRepository
	WorkOrders  *repository.WorkOrderRepository
	Scorer      *assignment.Scorer
	Clock       util.Clock
	Logger      *slog.Logger

	Classifier    collab.Classifier
	Validator     collab.Validator
	RiskAssessor  collab.RiskAssessor
	Geocoder      collab.Geocoder
	Transcriber   collab.Transcriber
	ImageAnalyzer collab.ImageAnalyzer
	Notifier      Notifier

	// Timeout bounds each collaborator call.
	Timeout time.Duration
	// ReviewThreshold is the confidence below which a classification is
	// flagged for human review.
	ReviewThreshold float64
}

// DefaultStages returns the standard stage sequence.
func DefaultStages(d Deps) []Stage {
	if d.Clock == nil {
		d.Clock = util.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Scorer == nil {
		d.Scorer = assignment.NewScorer()
	}
	if d.ReviewThreshold == 0 {
		d.ReviewThreshold = 0.7
	}
	return []Stage{
		&Intake{Transcriber: d.Transcriber, Images: d.ImageAnalyzer, Geocoder: d.Geocoder, Timeout: d.Timeout, Logger: d.Logger},
		&Validate{Validator: d.Validator, Timeout: d.Timeout, Logger: d.Logger},
		&Classify{Classifier: d.Classifier, Timeout: d.Timeout, ReviewThreshold: d.ReviewThreshold, Logger: d.Logger},
		&RiskAssess{Assessor: d.RiskAssessor, Timeout: d.Timeout, Logger: d.Logger},
		&Route{Contractors: d.Contractors, Scorer: d.Scorer},
		&CreateWorkOrder{DB: d.DB, WorkOrders: d.WorkOrders, Contractors: d.Contractors, Clock: d.Clock},
		&Notify{Notifier: d.Notifier, Logger: d.Logger},
	}
}

// Intake folds attachment text into the description and resolves the
// location. It never fails the complaint.
type Intake struct {
	Transcriber collab.Transcriber
	Images      collab.ImageAnalyzer
	Geocoder    collab.Geocoder
	Timeout     time.Duration
	Logger      *slog.Logger
}

func (s *Intake) Name() string { return StageIntake }

func (s *Intake) Process(ctx context.Context, pc *Context) error {
	c := pc.Complaint
	result := IntakeResult{Location: c.Location}

	for _, m := range pc.Media {
		switch m.MediaType {
		case models.MediaVoice:
			text := s.extract(ctx, m, func(ctx context.Context) (string, error) {
				if s.Transcriber == nil {
					return "", nil
				}
				return s.Transcriber.Transcribe(ctx, m)
			})
			if text != "" {
				result.Transcriptions = append(result.Transcriptions, text)
			}
		case models.MediaImage:
			finding := s.extract(ctx, m, func(ctx context.Context) (string, error) {
				if s.Images == nil {
					return "", nil
				}
				return s.Images.AnalyzeImage(ctx, m)
			})
			if finding != "" && !strings.EqualFold(finding, noIssuesFinding) {
				result.ImageFindings = append(result.ImageFindings, finding)
			}
		}
	}

	if len(result.Transcriptions) > 0 {
		c.Description = appendOnce(c.Description, voiceTextHeading+strings.Join(result.Transcriptions, " "))
	}
	for _, f := range result.ImageFindings {
		c.Description = appendOnce(c.Description, "\n[Image analysis: "+f+"]")
	}
	result.MediaText = strings.Join(append(append([]string{}, result.Transcriptions...), result.ImageFindings...), " ")

	if c.HasCoordinates() && s.Geocoder != nil {
		lat, lon := *c.Latitude, *c.Longitude
		geo, err := collab.Call(ctx, s.Timeout, func(ctx context.Context) (models.Location, error) {
			return s.Geocoder.ReverseGeocode(ctx, lat, lon)
		})
		if err != nil {
			s.Logger.Warn("intake: reverse geocoding failed", "complaint", c.ID, "error", err)
		} else {
			result.Location = mergeLocation(result.Location, geo)
			result.Geocoded = true
		}
	}

	pc.SetIntake(result)
	return nil
}

// extract returns the stored text of an attachment or asks the
// collaborator for it. Failures are logged and yield "".
func (s *Intake) extract(ctx context.Context, m *models.Media, fn func(context.Context) (string, error)) string {
	if m.ExtractedText != "" {
		return m.ExtractedText
	}
	text, err := collab.Call(ctx, s.Timeout, fn)
	if err != nil {
		s.Logger.Warn("intake: media extraction failed", "media", m.ID, "type", m.MediaType, "error", err)
		return ""
	}
	m.ExtractedText = strings.TrimSpace(text)
	return m.ExtractedText
}

// appendOnce appends suffix unless a previous run already did.
func appendOnce(s, suffix string) string {
	if strings.Contains(s, suffix) {
		return s
	}
	return s + suffix
}

// mergeLocation overlays geocoded fields on the citizen's. A citizen
// supplied address is kept.
func mergeLocation(citizen, geo models.Location) models.Location {
	out := citizen
	if out.Address == "" {
		out.Address = geo.Address
	}
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&out.Ward, geo.Ward)
	pick(&out.Block, geo.Block)
	pick(&out.District, geo.District)
	pick(&out.City, geo.City)
	pick(&out.State, geo.State)
	return out
}

// Validate rejects complaints that are too short, have no location, or
// are not about infrastructure.
type Validate struct {
	Validator collab.Validator
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (s *Validate) Name() string { return StageValidate }

func (s *Validate) Process(ctx context.Context, pc *Context) error {
	c := pc.Complaint
	if utf8.RuneCountInString(strings.TrimSpace(c.Description)) < minDescription {
		pc.Reject("Description too short or missing")
		return nil
	}
	if c.Address == "" && !c.HasCoordinates() {
		pc.Reject("Location information missing")
		return nil
	}

	if s.Validator != nil {
		v, err := collab.Call(ctx, s.Timeout, func(ctx context.Context) (*collab.Validation, error) {
			return s.Validator.Validate(ctx, c.Description)
		})
		switch {
		case err != nil:
			s.Logger.Warn("validate: collaborator unavailable, accepting", "complaint", c.ID, "error", err)
		case v != nil && !v.Valid:
			reason := v.RejectionReason
			if reason == "" {
				reason = "unknown"
			}
			pc.Reject("Not an infrastructure complaint: " + reason)
			return nil
		}
	}

	pc.SetValidation(ValidationResult{Valid: true})
	return nil
}

// Classify assigns a category, falling back to keyword matching.
type Classify struct {
	Classifier      collab.Classifier
	Timeout         time.Duration
	ReviewThreshold float64
	Logger          *slog.Logger
}

func (s *Classify) Name() string { return StageClassify }

func (s *Classify) Process(ctx context.Context, pc *Context) error {
	c := pc.Complaint
	mediaText := pc.MediaText()

	if s.Classifier != nil {
		res, err := collab.Call(ctx, s.Timeout, func(ctx context.Context) (*collab.Classification, error) {
			return s.Classifier.Classify(ctx, c.Description, mediaText)
		})
		switch {
		case err != nil:
			s.Logger.Warn("classify: collaborator unavailable, using keywords", "complaint", c.ID, "error", err)
		case res == nil || !res.Category.Valid():
			s.Logger.Warn("classify: unknown category, using keywords", "complaint", c.ID)
		default:
			pc.SetClassification(ClassificationResult{
				Category:    res.Category,
				Subcategory: res.Subcategory,
				Confidence:  min(max(res.Confidence, 0), 1),
			}, s.ReviewThreshold)
			return nil
		}
	}

	pc.SetClassification(KeywordClassify(c.Description+" "+mediaText), s.ReviewThreshold)
	return nil
}

// RiskAssess scores urgency and fixes the complaint's category and risk.
type RiskAssess struct {
	Assessor collab.RiskAssessor
	Timeout  time.Duration
	Logger   *slog.Logger
}

func (s *RiskAssess) Name() string { return StageRiskAssess }

func (s *RiskAssess) Process(ctx context.Context, pc *Context) error {
	category, ok := pc.Category()
	if !ok {
		return eris.New("risk assessment requires a classification")
	}
	c := pc.Complaint

	if s.Assessor != nil {
		res, err := collab.Call(ctx, s.Timeout, func(ctx context.Context) (*collab.RiskAssessment, error) {
			return s.Assessor.AssessRisk(ctx, c.Description, category, pc.MediaText())
		})
		switch {
		case err != nil:
			s.Logger.Warn("risk: collaborator unavailable, using defaults", "complaint", c.ID, "error", err)
		case res == nil || res.PriorityScore < 0 || res.PriorityScore > 100:
			s.Logger.Warn("risk: score out of range, using defaults", "complaint", c.ID)
		default:
			level := res.RiskLevel
			if !level.Valid() {
				level = models.RiskLevelForScore(res.PriorityScore)
			}
			pc.SetRisk(RiskResult{Score: res.PriorityScore, Level: level})
			return nil
		}
	}

	score := category.DefaultScore()
	pc.SetRisk(RiskResult{Score: score, Level: models.RiskLevelForScore(score), Fallback: true})
	return nil
}

// Route picks the department, jurisdiction and best contractor.
type Route struct {
	Contractors *repository.ContractorRepository
	Scorer      *assignment.Scorer
}

func (s *Route) Name() string { return StageRoute }

func (s *Route) Process(ctx context.Context, pc *Context) error {
	category, ok := pc.Category()
	if !ok {
		return eris.New("routing requires a classification")
	}
	c := pc.Complaint

	contractors, err := s.Contractors.ListByTenant(ctx, nil, c.TenantID)
	if err != nil {
		return eris.Wrap(err, "listing contractors")
	}

	pc.SetRouting(RoutingResult{
		Department:   category.Department(),
		Contractor:   s.Scorer.Best(contractors, category, c.District, ""),
		Jurisdiction: models.JurisdictionFor(c.Location),
	})
	return nil
}

// CreateWorkOrder opens the pipeline work order and books the contractor.
type CreateWorkOrder struct {
	DB          *sql.DB
	WorkOrders  *repository.WorkOrderRepository
	Contractors *repository.ContractorRepository
	Clock       util.Clock
}

func (s *CreateWorkOrder) Name() string { return StageWorkOrder }

func (s *CreateWorkOrder) Process(ctx context.Context, pc *Context) error {
	c := pc.Complaint
	risk, ok := pc.Risk()
	if !ok {
		return eris.New("work order requires a risk assessment")
	}
	routing, ok := pc.Routing()
	if !ok {
		return eris.New("work order requires routing")
	}
	category, _ := pc.Category()
	summary := Summary(category, risk.Level, risk.Score, c.Address, routing.Department)

	existing, err := s.WorkOrders.GetByComplaint(ctx, nil, c.ID, models.OriginPipeline)
	switch {
	case err == nil:
		pc.SetWorkOrder(WorkOrderResult{Order: existing, Summary: summary, Existing: true})
		return nil
	case !errors.Is(err, models.ErrNotFound):
		return eris.Wrap(err, "looking up work order")
	}

	now := s.Clock.Now()
	order := &models.WorkOrder{
		ID:            util.NewID(),
		ComplaintID:   c.ID,
		TenantID:      c.TenantID,
		Origin:        models.OriginPipeline,
		Department:    routing.Department,
		Status:        models.WorkOrderCreated,
		SLADeadline:   now.Add(risk.Level.SLA()),
		EstimatedCost: category.BaseCost() * risk.Level.CostMultiplier(),
		Materials:     category.Materials(),
		Notes:         summary,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if routing.Contractor != nil {
		id := routing.Contractor.ID
		order.ContractorID = &id
		order.Status = models.WorkOrderAssigned
	}

	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := s.WorkOrders.Create(ctx, tx, order); err != nil {
			return err
		}
		if order.ContractorID != nil {
			return s.Contractors.IncrementWorkload(ctx, tx, *order.ContractorID)
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "creating work order")
	}

	pc.SetWorkOrder(WorkOrderResult{Order: order, Summary: summary})
	return nil
}

// Summary is the one-line description stored on a pipeline work order.
func Summary(category models.Category, level models.RiskLevel, score int, address, department string) string {
	if address == "" {
		address = "N/A"
	}
	return fmt.Sprintf("Category: %s | Priority: %s (Score: %d) | Location: %s | Department: %s",
		category, level, score, address, department)
}

// Notify tells the citizen. Delivery problems are logged and never fail
// the complaint.
type Notify struct {
	Notifier Notifier
	Logger   *slog.Logger
}

func (s *Notify) Name() string { return StageNotify }

func (s *Notify) Process(ctx context.Context, pc *Context) error {
	wo, ok := pc.WorkOrder()
	if !ok {
		return eris.New("notification requires a work order")
	}
	pc.MarkAssigned()
	if s.Notifier == nil {
		return nil
	}
	if err := s.Notifier.ComplaintProcessed(ctx, pc.Complaint, wo.Order, wo.Summary); err != nil {
		s.Logger.Warn("notify: delivery failed", "complaint", pc.Complaint.ID, "error", err)
	}
	return nil
}
