package models

import "time"

// BriefingStats are the aggregates that feed a daily briefing.
type BriefingStats struct {
	NewComplaints    int              `json:"new_complaints"`
	ResolvedToday    int              `json:"resolved_today"`
	TotalOpen        int              `json:"total_open"`
	SLAAtRisk        int              `json:"sla_at_risk"`
	EscalationsToday int              `json:"escalations_today"`
	ClustersDetected int              `json:"clusters_detected"`
	OpenByCategory   map[Category]int `json:"open_by_category"`
}

// DailyBriefing is a persisted snapshot plus narrative.
type DailyBriefing struct {
	ID        string    `json:"id"`
	TenantID  *string   `json:"tenant_id,omitempty"`
	BriefDate time.Time `json:"brief_date"`
	BriefingStats
	Narrative string    `json:"narrative"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationKind categorises outbound citizen messages.
type NotificationKind string

const (
	NotifyConfirmation NotificationKind = "confirmation"
	NotifyStatusUpdate NotificationKind = "status_update"
	NotifyEscalation   NotificationKind = "escalation"
)

// Notification is the audit record of one outbound message.
type Notification struct {
	ID          string           `json:"id"`
	ComplaintID *string          `json:"complaint_id,omitempty"`
	Recipient   string           `json:"recipient"`
	Kind        NotificationKind `json:"kind"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	Sent        bool             `json:"sent"`
	SentAt      *time.Time       `json:"sent_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
