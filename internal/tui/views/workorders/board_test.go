package workorders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/testutil"
)

func TestBoardView_EmptyRender(t *testing.T) {
	view := NewBoardView(nil)
	output := view.Render(120, 40)

	if !strings.Contains(output, "WORK ORDERS") {
		t.Error("expected title in output")
	}
	if !strings.Contains(output, "No work orders found") {
		t.Error("expected empty state message")
	}
	if !strings.Contains(output, "Showing: active") {
		t.Error("expected active filter by default")
	}
}

func TestBoardView_CycleStatus(t *testing.T) {
	view := NewBoardView(nil)

	view.CycleStatus()
	if view.FilterLabel() != string(models.WorkOrderCreated) || view.filter.ActiveOnly {
		t.Errorf("filter after one cycle = %+v", view.filter)
	}
	for i := 1; i < len(statusFilters); i++ {
		view.CycleStatus()
	}
	if view.FilterLabel() != "active" || !view.filter.ActiveOnly {
		t.Errorf("filter should wrap back to active, got %+v", view.filter)
	}
}

func TestBoardView_AdvanceWithoutSelection(t *testing.T) {
	view := NewBoardView(nil)
	_, err := view.Advance(context.Background(), models.WorkOrderInProgress)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Advance() error = %v, want ErrInvalidInput", err)
	}
}

func TestBoardView_LoadAndComplete(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	ctx := context.Background()

	contractor := testutil.FixtureContractor(func(c *models.Contractor) {
		c.Name = "RoadFix India"
		c.ActiveWorkload = 1
	})
	if err := repository.NewContractorRepository(db.DB).Create(ctx, nil, contractor); err != nil {
		t.Fatal(err)
	}
	complaint := testutil.FixtureClassifiedComplaint(models.CategoryRoads, models.RiskHigh, func(c *models.Complaint) {
		c.Status = models.ComplaintStatusWorkOrderCreated
	})
	if err := repository.NewComplaintRepository(db.DB).Create(ctx, nil, complaint); err != nil {
		t.Fatal(err)
	}
	order := testutil.FixtureWorkOrder(complaint.ID, testutil.AssignedTo(contractor.ID))
	if err := repository.NewWorkOrderRepository(db.DB).Create(ctx, nil, order); err != nil {
		t.Fatal(err)
	}

	view := NewBoardView(admin.NewService(db.DB))
	view.SetNow(time.Now())
	if err := view.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	output := view.Render(140, 40)
	if !strings.Contains(output, "RoadFix India") || !strings.Contains(output, "assigned") {
		t.Errorf("expected the assigned order in output:\n%s", output)
	}
	if detail := view.RenderDetail(120); !strings.Contains(detail, complaint.ID) {
		t.Error("expected complaint id in detail")
	}

	if _, err := view.Advance(ctx, models.WorkOrderInProgress); err != nil {
		t.Fatalf("Advance(in_progress) error = %v", err)
	}
	if got := db.Workload(t, contractor.ID); got != 1 {
		t.Errorf("workload while in progress = %d, want 1", got)
	}

	if err := view.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := view.Advance(ctx, models.WorkOrderCompleted); err != nil {
		t.Fatalf("Advance(completed) error = %v", err)
	}
	if got := db.Workload(t, contractor.ID); got != 0 {
		t.Errorf("workload after completion = %d, want 0", got)
	}
	resolved, err := repository.NewComplaintRepository(db.DB).GetByID(ctx, nil, complaint.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != models.ComplaintStatusResolved {
		t.Errorf("complaint status = %s, want resolved", resolved.Status)
	}

	if err := view.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if view.SelectedWorkOrder() != nil {
		t.Error("completed order should drop off the active board")
	}
}
