// Package pipeline runs a submitted complaint through the fixed sequence of
// processing stages that turn it into a classified, prioritized and
// assigned piece of work.
package pipeline

import (
	"github.com/civicflow/civicflow/internal/models"
)

// IntakeResult is what the intake stage learned from attachments and
// coordinates.
type IntakeResult struct {
	// MediaText joins everything extracted from attachments.
	MediaText      string
	Transcriptions []string
	ImageFindings  []string
	Location       models.Location
	Geocoded       bool
}

// ValidationResult is the verdict of the validation stage.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// ClassificationResult is the category chosen for a complaint.
type ClassificationResult struct {
	Category    models.Category
	Subcategory string
	Confidence  float64
	// Fallback is true when the keyword classifier was used.
	Fallback bool
}

// RiskResult is the urgency of a complaint.
type RiskResult struct {
	Score    int
	Level    models.RiskLevel
	Fallback bool
}

// RoutingResult names who is responsible for a complaint.
type RoutingResult struct {
	Department   string
	Contractor   *models.Contractor
	Jurisdiction models.JurisdictionLevel
}

// WorkOrderResult is the order created for a complaint.
type WorkOrderResult struct {
	Order   *models.WorkOrder
	Summary string
	// Existing is true when the order was created by an earlier run.
	Existing bool
}

// Context carries one complaint through the pipeline. Stages attach their
// results with the Set methods; later stages read them back with the
// accessors, which report whether a result is present.
type Context struct {
	Complaint *models.Complaint
	Media     []*models.Media
	Errors    []string

	intake         *IntakeResult
	validation     *ValidationResult
	classification *ClassificationResult
	risk           *RiskResult
	routing        *RoutingResult
	workOrder      *WorkOrderResult

	// persisted is the status last written by this run.
	persisted models.ComplaintStatus
}

// NewContext starts a run for a stored complaint and its attachments.
func NewContext(c *models.Complaint, media []*models.Media) *Context {
	return &Context{Complaint: c, Media: media, persisted: c.Status}
}

// PersistedStatus returns the status the store held when this run last
// wrote the complaint.
func (c *Context) PersistedStatus() models.ComplaintStatus {
	return c.persisted
}

// MarkPersisted records that the complaint's current status was written.
func (c *Context) MarkPersisted() {
	c.persisted = c.Complaint.Status
}

// Status returns the complaint's current lifecycle state.
func (c *Context) Status() models.ComplaintStatus {
	return c.Complaint.Status
}

// Fail records a complaint-level error. The runner halts after the stage.
func (c *Context) Fail(msg string) {
	c.Errors = append(c.Errors, msg)
}

// Reject fails the complaint and marks it rejected.
func (c *Context) Reject(reason string) {
	c.validation = &ValidationResult{Valid: false, Reason: reason}
	c.Complaint.Status = models.ComplaintStatusRejected
	c.Fail(reason)
}

// Failed reports whether any stage recorded an error.
func (c *Context) Failed() bool {
	return len(c.Errors) > 0
}

// SetIntake stores the intake result and copies the resolved location
// onto the complaint.
func (c *Context) SetIntake(r IntakeResult) *Context {
	c.intake = &r
	c.Complaint.Location = r.Location
	c.Complaint.Status = models.ComplaintStatusIntakeComplete
	return c
}

// Intake returns the intake result.
func (c *Context) Intake() (*IntakeResult, bool) {
	return c.intake, c.intake != nil
}

// MediaText returns the text extracted from attachments, if any.
func (c *Context) MediaText() string {
	if c.intake == nil {
		return ""
	}
	return c.intake.MediaText
}

// SetValidation stores a passing validation.
func (c *Context) SetValidation(r ValidationResult) *Context {
	c.validation = &r
	if r.Valid {
		c.Complaint.Status = models.ComplaintStatusValidated
	}
	return c
}

// Validation returns the validation verdict.
func (c *Context) Validation() (*ValidationResult, bool) {
	return c.validation, c.validation != nil
}

// SetClassification stores the category. The complaint's category column
// is only written by SetRisk, so a checkpoint taken between the two
// stages never persists a category without a risk level.
func (c *Context) SetClassification(r ClassificationResult, reviewThreshold float64) *Context {
	c.classification = &r
	c.Complaint.Subcategory = r.Subcategory
	c.Complaint.ClassificationConfidence = r.Confidence
	c.Complaint.NeedsHumanReview = r.Confidence < reviewThreshold
	c.Complaint.Status = models.ComplaintStatusClassified
	return c
}

// Classification returns the pending or applied classification.
func (c *Context) Classification() (*ClassificationResult, bool) {
	return c.classification, c.classification != nil
}

// Category returns the classified category, falling back to the one
// already stored on the complaint.
func (c *Context) Category() (models.Category, bool) {
	if c.classification != nil {
		return c.classification.Category, true
	}
	if c.Complaint.Category != nil {
		return *c.Complaint.Category, true
	}
	return "", false
}

// SetRisk stores the risk and writes category and risk level onto the
// complaint together.
func (c *Context) SetRisk(r RiskResult) *Context {
	c.risk = &r
	category, _ := c.Category()
	level := r.Level
	c.Complaint.Category = &category
	c.Complaint.RiskLevel = &level
	c.Complaint.PriorityScore = r.Score
	c.Complaint.Status = models.ComplaintStatusPrioritized
	return c
}

// Risk returns the risk assessment.
func (c *Context) Risk() (*RiskResult, bool) {
	return c.risk, c.risk != nil
}

// SetRouting stores the routing decision.
func (c *Context) SetRouting(r RoutingResult) *Context {
	c.routing = &r
	c.Complaint.Department = r.Department
	c.Complaint.Status = models.ComplaintStatusRouted
	return c
}

// Routing returns the routing decision.
func (c *Context) Routing() (*RoutingResult, bool) {
	return c.routing, c.routing != nil
}

// SetWorkOrder stores the created work order.
func (c *Context) SetWorkOrder(r WorkOrderResult) *Context {
	c.workOrder = &r
	c.Complaint.Status = models.ComplaintStatusWorkOrderCreated
	return c
}

// WorkOrder returns the created work order.
func (c *Context) WorkOrder() (*WorkOrderResult, bool) {
	return c.workOrder, c.workOrder != nil
}

// MarkAssigned moves the complaint to assigned once the citizen has been
// told about a contractor.
func (c *Context) MarkAssigned() {
	if c.workOrder != nil && c.workOrder.Order.ContractorID != nil {
		c.Complaint.Status = models.ComplaintStatusAssigned
	}
}
