// Package models defines the domain models for CivicFlow.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ComplaintStatus represents where a complaint is in its lifecycle.
type ComplaintStatus string

const (
	ComplaintStatusSubmitted        ComplaintStatus = "submitted"
	ComplaintStatusIntakeComplete   ComplaintStatus = "intake_complete"
	ComplaintStatusValidated        ComplaintStatus = "validated"
	ComplaintStatusRejected         ComplaintStatus = "rejected"
	ComplaintStatusClassified       ComplaintStatus = "classified"
	ComplaintStatusPrioritized      ComplaintStatus = "prioritized"
	ComplaintStatusRouted           ComplaintStatus = "routed"
	ComplaintStatusWorkOrderCreated ComplaintStatus = "work_order_created"
	ComplaintStatusAssigned         ComplaintStatus = "assigned"
	ComplaintStatusGrouped          ComplaintStatus = "grouped"
	ComplaintStatusEscalated        ComplaintStatus = "escalated"
	ComplaintStatusInProgress       ComplaintStatus = "in_progress"
	ComplaintStatusResolved         ComplaintStatus = "resolved"
	ComplaintStatusClosed           ComplaintStatus = "closed"
)

// Valid returns true if the status is a known lifecycle state.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintStatusSubmitted, ComplaintStatusIntakeComplete, ComplaintStatusValidated,
		ComplaintStatusRejected, ComplaintStatusClassified, ComplaintStatusPrioritized,
		ComplaintStatusRouted, ComplaintStatusWorkOrderCreated, ComplaintStatusAssigned,
		ComplaintStatusGrouped, ComplaintStatusEscalated, ComplaintStatusInProgress,
		ComplaintStatusResolved, ComplaintStatusClosed:
		return true
	default:
		return false
	}
}

// IsFinished returns true for resolved and closed complaints.
func (s ComplaintStatus) IsFinished() bool {
	return s == ComplaintStatusResolved || s == ComplaintStatusClosed
}

// IsOpen returns true while the complaint still needs work.
func (s ComplaintStatus) IsOpen() bool {
	return !s.IsFinished() && s != ComplaintStatusRejected
}

// Rateable returns true if a citizen may leave a satisfaction rating.
func (s ComplaintStatus) Rateable() bool {
	return s.IsFinished() || s == ComplaintStatusInProgress
}

// RiskLevel is the priority band derived from a priority score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid returns true if the risk level is known.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// RiskLevelForScore maps a 0-100 priority score onto its band.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 76:
		return RiskCritical
	case score >= 51:
		return RiskHigh
	case score >= 26:
		return RiskMedium
	default:
		return RiskLow
	}
}

// SLAHours returns the resolution window for the level.
func (r RiskLevel) SLAHours() int {
	switch r {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 24
	case RiskLow:
		return 168
	default:
		return 72
	}
}

// SLA returns the resolution window as a duration.
func (r RiskLevel) SLA() time.Duration {
	return time.Duration(r.SLAHours()) * time.Hour
}

// CostMultiplier scales the base cost of a category.
func (r RiskLevel) CostMultiplier() float64 {
	switch r {
	case RiskCritical:
		return 2.0
	case RiskHigh:
		return 1.5
	case RiskLow:
		return 0.8
	default:
		return 1.0
	}
}

// Location is the resolved place a complaint refers to.
type Location struct {
	Address  string `json:"address,omitempty"`
	Ward     string `json:"ward,omitempty"`
	Block    string `json:"block,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
}

// Complaint is a citizen report of an infrastructure problem.
type Complaint struct {
	ID           string  `json:"id"`
	TenantID     *string `json:"tenant_id,omitempty"`
	TrackingCode string  `json:"tracking_code"`

	// Citizen
	CitizenEmail string `json:"citizen_email"`
	CitizenPhone string `json:"citizen_phone,omitempty"`
	CitizenName  string `json:"citizen_name,omitempty"`

	Description string `json:"description"`

	// Where
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Location

	// Classification and risk are written together or not at all.
	Category                 *Category  `json:"category,omitempty"`
	Subcategory              string     `json:"subcategory,omitempty"`
	ClassificationConfidence float64    `json:"classification_confidence"`
	NeedsHumanReview         bool       `json:"needs_human_review"`
	PriorityScore            int        `json:"priority_score"`
	RiskLevel                *RiskLevel `json:"risk_level,omitempty"`
	Department               string     `json:"department,omitempty"`

	Status ComplaintStatus `json:"status"`

	// Feedback
	SatisfactionRating  *int   `json:"satisfaction_rating,omitempty"`
	SatisfactionComment string `json:"satisfaction_comment,omitempty"`
	VerifiedFixed       *bool  `json:"verified_fixed,omitempty"`
	ReopenCount         int    `json:"reopen_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCoordinates returns true if a usable coordinate pair is present.
// (0, 0) is treated as absent.
func (c *Complaint) HasCoordinates() bool {
	if c.Latitude == nil || c.Longitude == nil {
		return false
	}
	return *c.Latitude != 0 || *c.Longitude != 0
}

// IsClassified returns true once category and risk level are set.
func (c *Complaint) IsClassified() bool {
	return c.Category != nil && c.RiskLevel != nil
}

// CategoryOrEmpty returns the category, or "" when unclassified.
func (c *Complaint) CategoryOrEmpty() Category {
	if c.Category == nil {
		return ""
	}
	return *c.Category
}

// RiskOrEmpty returns the risk level, or "" when unclassified.
func (c *Complaint) RiskOrEmpty() RiskLevel {
	if c.RiskLevel == nil {
		return ""
	}
	return *c.RiskLevel
}

// Validate checks if the complaint data is valid.
func (c *Complaint) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !strings.HasPrefix(c.TrackingCode, TrackingCodePrefix) {
		return fmt.Errorf("invalid tracking_code: %q", c.TrackingCode)
	}
	if c.CitizenEmail == "" {
		return fmt.Errorf("citizen_email is required")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	if (c.Category == nil) != (c.RiskLevel == nil) {
		return fmt.Errorf("category and risk_level must be set together")
	}
	if c.Category != nil && !c.Category.Valid() {
		return fmt.Errorf("invalid category: %s", *c.Category)
	}
	if c.RiskLevel != nil && !c.RiskLevel.Valid() {
		return fmt.Errorf("invalid risk_level: %s", *c.RiskLevel)
	}
	if c.PriorityScore < 0 || c.PriorityScore > 100 {
		return fmt.Errorf("priority_score must be between 0 and 100")
	}
	if c.SatisfactionRating != nil && (*c.SatisfactionRating < 1 || *c.SatisfactionRating > 5) {
		return fmt.Errorf("satisfaction_rating must be between 1 and 5")
	}
	return nil
}

// TrackingCodePrefix starts every public tracking code.
const TrackingCodePrefix = "CIV-"

// MediaType classifies an attachment.
type MediaType string

const (
	MediaImage   MediaType = "image"
	MediaVoice   MediaType = "voice"
	MediaVideo   MediaType = "video"
	MediaUnknown MediaType = "unknown"
)

// Valid returns true if the media type is known.
func (m MediaType) Valid() bool {
	switch m {
	case MediaImage, MediaVoice, MediaVideo, MediaUnknown:
		return true
	default:
		return false
	}
}

// MediaTypeForFilename guesses the media type from a file extension.
func MediaTypeForFilename(name string) MediaType {
	lower := strings.ToLower(name)
	dot := strings.LastIndexByte(lower, '.')
	if dot < 0 {
		return MediaUnknown
	}
	switch lower[dot+1:] {
	case "jpg", "jpeg", "png", "gif", "webp", "heic":
		return MediaImage
	case "mp3", "wav", "ogg", "m4a", "webm", "aac":
		return MediaVoice
	case "mp4", "mov", "avi", "mkv":
		return MediaVideo
	default:
		return MediaUnknown
	}
}

// Media is a stored attachment reference.
type Media struct {
	ID               string    `json:"id"`
	ComplaintID      string    `json:"complaint_id"`
	FilePath         string    `json:"file_path"`
	MediaType        MediaType `json:"media_type"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	ExtractedText    string    `json:"extracted_text,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ComplaintFilter defines filter options for listing complaints.
type ComplaintFilter struct {
	TenantID     *string
	Status       *ComplaintStatus
	Category     *Category
	RiskLevel    *RiskLevel
	CitizenEmail string
	Search       string
	// OpenOnly excludes resolved, closed and rejected complaints.
	OpenOnly bool
}

// ComplaintList represents a paginated list of complaints.
type ComplaintList struct {
	Complaints []*Complaint `json:"complaints"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}
