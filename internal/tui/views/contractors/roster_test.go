package contractors

import (
	"context"
	"strings"
	"testing"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/testutil"
)

func TestRosterView_EmptyRender(t *testing.T) {
	view := NewRosterView(nil)
	output := view.Render(120, 40)

	if !strings.Contains(output, "CONTRACTOR ROSTER") {
		t.Error("expected title in output")
	}
	if !strings.Contains(output, "No contractors registered") {
		t.Error("expected empty state message")
	}
	if strings.Contains(output, "Reconcile") {
		t.Error("reconcile hint should only show with drift")
	}
}

func TestRosterView_DriftAndReconcile(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	ctx := context.Background()

	// Stored workload 3 with no active orders behind it.
	drifted := testutil.FixtureContractor(func(c *models.Contractor) {
		c.Name = "AquaFlow Services"
		c.Specializations = []models.Category{models.CategoryWater, models.CategorySewage}
		c.ActiveWorkload = 3
	})
	if err := repository.NewContractorRepository(db.DB).Create(ctx, nil, drifted); err != nil {
		t.Fatal(err)
	}

	view := NewRosterView(admin.NewService(db.DB))
	if err := view.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	output := view.Render(140, 40)
	for _, want := range []string{"AquaFlow Services", "WATER,SEWAGE", "stored 3, actual 0", "Reconcile"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}

	n, err := view.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Reconcile() = %d, want 1", n)
	}
	if view.HasDrift() {
		t.Error("drift should be cleared after reconcile")
	}
	if got := db.Workload(t, drifted.ID); got != 0 {
		t.Errorf("workload = %d, want 0", got)
	}
	if c := view.SelectedContractor(); c == nil || c.ActiveWorkload != 0 {
		t.Errorf("SelectedContractor() = %+v", c)
	}
}
