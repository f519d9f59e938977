package models

import (
	"strings"
	"testing"
	"time"
)

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{100, RiskCritical},
		{76, RiskCritical},
		{75, RiskHigh},
		{60, RiskHigh},
		{51, RiskHigh},
		{50, RiskMedium},
		{26, RiskMedium},
		{25, RiskLow},
		{0, RiskLow},
	}

	for _, tt := range tests {
		if got := RiskLevelForScore(tt.score); got != tt.want {
			t.Errorf("RiskLevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRiskLevel_SLAAndCost(t *testing.T) {
	tests := []struct {
		level      RiskLevel
		hours      int
		multiplier float64
	}{
		{RiskCritical, 4, 2.0},
		{RiskHigh, 24, 1.5},
		{RiskMedium, 72, 1.0},
		{RiskLow, 168, 0.8},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.SLAHours(); got != tt.hours {
				t.Errorf("SLAHours() = %d, want %d", got, tt.hours)
			}
			if got := tt.level.SLA(); got != time.Duration(tt.hours)*time.Hour {
				t.Errorf("SLA() = %v", got)
			}
			if got := tt.level.CostMultiplier(); got != tt.multiplier {
				t.Errorf("CostMultiplier() = %v, want %v", got, tt.multiplier)
			}
		})
	}
}

func TestComplaintStatus_Predicates(t *testing.T) {
	tests := []struct {
		status   ComplaintStatus
		open     bool
		rateable bool
	}{
		{ComplaintStatusSubmitted, true, false},
		{ComplaintStatusAssigned, true, false},
		{ComplaintStatusEscalated, true, false},
		{ComplaintStatusInProgress, true, true},
		{ComplaintStatusResolved, false, true},
		{ComplaintStatusClosed, false, true},
		{ComplaintStatusRejected, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if !tt.status.Valid() {
				t.Fatalf("status should be valid")
			}
			if got := tt.status.IsOpen(); got != tt.open {
				t.Errorf("IsOpen() = %v, want %v", got, tt.open)
			}
			if got := tt.status.Rateable(); got != tt.rateable {
				t.Errorf("Rateable() = %v, want %v", got, tt.rateable)
			}
		})
	}
}

func validComplaint() *Complaint {
	return &Complaint{
		ID:           "c-1",
		TrackingCode: "CIV-ABCD1234",
		CitizenEmail: "citizen@example.com",
		Description:  "Large pothole near the bus stop",
		Status:       ComplaintStatusSubmitted,
	}
}

func TestComplaint_Validate(t *testing.T) {
	cat := CategoryRoads
	risk := RiskHigh
	badRating := 6

	tests := []struct {
		name    string
		mutate  func(*Complaint)
		wantErr string
	}{
		{"valid unclassified", func(*Complaint) {}, ""},
		{"valid classified", func(c *Complaint) { c.Category = &cat; c.RiskLevel = &risk; c.PriorityScore = 60 }, ""},
		{"missing id", func(c *Complaint) { c.ID = "" }, "id is required"},
		{"bad tracking code", func(c *Complaint) { c.TrackingCode = "XYZ" }, "tracking_code"},
		{"missing email", func(c *Complaint) { c.CitizenEmail = "" }, "citizen_email"},
		{"category without risk", func(c *Complaint) { c.Category = &cat }, "set together"},
		{"risk without category", func(c *Complaint) { c.RiskLevel = &risk }, "set together"},
		{"score out of range", func(c *Complaint) { c.PriorityScore = 101 }, "priority_score"},
		{"rating out of range", func(c *Complaint) { c.SatisfactionRating = &badRating }, "satisfaction_rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validComplaint()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestComplaint_HasCoordinates(t *testing.T) {
	zero := 0.0
	lat := 12.97
	lon := 77.59

	tests := []struct {
		name string
		lat  *float64
		lon  *float64
		want bool
	}{
		{"both present", &lat, &lon, true},
		{"missing longitude", &lat, nil, false},
		{"none", nil, nil, false},
		{"both zero", &zero, &zero, false},
		{"one zero", &zero, &lon, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Complaint{Latitude: tt.lat, Longitude: tt.lon}
			if got := c.HasCoordinates(); got != tt.want {
				t.Errorf("HasCoordinates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMediaTypeForFilename(t *testing.T) {
	tests := []struct {
		name string
		want MediaType
	}{
		{"photo.JPG", MediaImage},
		{"note.m4a", MediaVoice},
		{"clip.mp4", MediaVideo},
		{"README", MediaUnknown},
		{"archive.zip", MediaUnknown},
	}
	for _, tt := range tests {
		if got := MediaTypeForFilename(tt.name); got != tt.want {
			t.Errorf("MediaTypeForFilename(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}
