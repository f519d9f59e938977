package models

import (
	"fmt"
	"time"
)

// WorkOrderStatus represents the state of a work order.
type WorkOrderStatus string

const (
	WorkOrderCreated    WorkOrderStatus = "created"
	WorkOrderAssigned   WorkOrderStatus = "assigned"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
)

// Valid returns true if the status is known.
func (s WorkOrderStatus) Valid() bool {
	switch s {
	case WorkOrderCreated, WorkOrderAssigned, WorkOrderInProgress, WorkOrderCompleted:
		return true
	default:
		return false
	}
}

// IsActive returns true if the order counts towards a contractor's workload.
func (s WorkOrderStatus) IsActive() bool {
	return s == WorkOrderCreated || s == WorkOrderAssigned || s == WorkOrderInProgress
}

// ActiveWorkOrderStatuses lists the statuses that count as active.
var ActiveWorkOrderStatuses = []WorkOrderStatus{WorkOrderCreated, WorkOrderAssigned, WorkOrderInProgress}

// WorkOrderOrigin records which process created a work order.
type WorkOrderOrigin string

const (
	OriginPipeline WorkOrderOrigin = "pipeline"
	OriginCluster  WorkOrderOrigin = "cluster"
)

// Valid returns true if the origin is known.
func (o WorkOrderOrigin) Valid() bool {
	return o == OriginPipeline || o == OriginCluster
}

// ClusterTag prefixes the notes of grouped work orders.
const ClusterTag = "[CLUSTER]"

// WorkOrder is the actionable unit of repair work.
type WorkOrder struct {
	ID            string          `json:"id"`
	ComplaintID   string          `json:"complaint_id"`
	TenantID      *string         `json:"tenant_id,omitempty"`
	ContractorID  *string         `json:"contractor_id,omitempty"`
	Origin        WorkOrderOrigin `json:"origin"`
	Department    string          `json:"department,omitempty"`
	Status        WorkOrderStatus `json:"status"`
	SLADeadline   time.Time       `json:"sla_deadline"`
	EstimatedCost float64         `json:"estimated_cost"`
	Materials     string          `json:"materials,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// ActiveContractor returns the contractor this order contributes workload
// to, or "" when it contributes none.
func (w *WorkOrder) ActiveContractor() string {
	if w.ContractorID == nil || !w.Status.IsActive() {
		return ""
	}
	return *w.ContractorID
}

// ElapsedFraction returns how much of the SLA window has passed at now.
// ok is false when the window is empty or inverted.
func (w *WorkOrder) ElapsedFraction(now time.Time) (fraction float64, ok bool) {
	total := w.SLADeadline.Sub(w.CreatedAt)
	if total <= 0 {
		return 0, false
	}
	remaining := w.SLADeadline.Sub(now)
	return 1 - float64(remaining)/float64(total), true
}

// Validate checks if the work order data is valid.
func (w *WorkOrder) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("id is required")
	}
	if w.ComplaintID == "" {
		return fmt.Errorf("complaint_id is required")
	}
	if !w.Origin.Valid() {
		return fmt.Errorf("invalid origin: %s", w.Origin)
	}
	if !w.Status.Valid() {
		return fmt.Errorf("invalid status: %s", w.Status)
	}
	if w.SLADeadline.IsZero() {
		return fmt.Errorf("sla_deadline is required")
	}
	if w.EstimatedCost < 0 {
		return fmt.Errorf("estimated_cost cannot be negative")
	}
	return nil
}

// WorkOrderFilter defines filter options for listing work orders.
type WorkOrderFilter struct {
	Status       *WorkOrderStatus
	ContractorID *string
	Origin       *WorkOrderOrigin
	ActiveOnly   bool
}

// WorkOrderList represents a paginated list of work orders.
type WorkOrderList struct {
	WorkOrders []*WorkOrder `json:"work_orders"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}
