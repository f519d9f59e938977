package models

import (
	"math"
	"testing"
	"time"
)

func TestWorkOrderStatus_IsActive(t *testing.T) {
	tests := []struct {
		status WorkOrderStatus
		want   bool
	}{
		{WorkOrderCreated, true},
		{WorkOrderAssigned, true},
		{WorkOrderInProgress, true},
		{WorkOrderCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsActive(); got != tt.want {
			t.Errorf("%s.IsActive() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestWorkOrder_ActiveContractor(t *testing.T) {
	id := "ctr-1"

	tests := []struct {
		name string
		wo   WorkOrder
		want string
	}{
		{"assigned with contractor", WorkOrder{ContractorID: &id, Status: WorkOrderAssigned}, id},
		{"completed with contractor", WorkOrder{ContractorID: &id, Status: WorkOrderCompleted}, ""},
		{"active without contractor", WorkOrder{Status: WorkOrderCreated}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.wo.ActiveContractor(); got != tt.want {
				t.Errorf("ActiveContractor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkOrder_ElapsedFraction(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	wo := WorkOrder{CreatedAt: start, SLADeadline: start.Add(24 * time.Hour)}

	tests := []struct {
		name  string
		at    time.Time
		want  float64
		valid bool
	}{
		{"at creation", start, 0, true},
		{"exactly half", start.Add(12 * time.Hour), 0.5, true},
		{"three quarters", start.Add(18 * time.Hour), 0.75, true},
		{"at deadline", start.Add(24 * time.Hour), 1.0, true},
		{"past deadline", start.Add(25 * time.Hour), 25.0 / 24.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := wo.ElapsedFraction(tt.at)
			if ok != tt.valid {
				t.Fatalf("ok = %v, want %v", ok, tt.valid)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ElapsedFraction() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("empty window", func(t *testing.T) {
		degenerate := WorkOrder{CreatedAt: start, SLADeadline: start}
		if _, ok := degenerate.ElapsedFraction(start); ok {
			t.Error("expected ok=false for a zero-length window")
		}
	})
}

func TestWorkOrder_Validate(t *testing.T) {
	wo := WorkOrder{
		ID:          "wo-1",
		ComplaintID: "c-1",
		Origin:      OriginPipeline,
		Status:      WorkOrderCreated,
		SLADeadline: time.Now(),
	}
	if err := wo.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wo.Origin = "manual"
	if err := wo.Validate(); err == nil {
		t.Error("expected error for unknown origin")
	}
}
