package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/testutil"
)

func setupTestDB(t *testing.T) *testutil.TestDB {
	t.Helper()
	return testutil.NewMigratedDB(t)
}

func TestContractorRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContractorRepository(db.DB)
	ctx := context.Background()

	c := testutil.FixtureContractor(func(c *models.Contractor) {
		c.Specializations = []models.Category{models.CategoryRoads, models.CategoryWater}
		c.Rating = 4.5
	})
	if err := repo.Create(ctx, nil, c); err != nil {
		t.Fatalf("failed to create contractor: %v", err)
	}

	found, err := repo.GetByID(ctx, nil, c.ID)
	if err != nil {
		t.Fatalf("failed to get contractor: %v", err)
	}
	if found.Name != c.Name {
		t.Errorf("expected name %s, got %s", c.Name, found.Name)
	}
	if len(found.Specializations) != 2 || found.Specializations[1] != models.CategoryWater {
		t.Errorf("unexpected specializations %v", found.Specializations)
	}
	if found.Rating != 4.5 {
		t.Errorf("expected rating 4.5, got %v", found.Rating)
	}

	_, err = repo.GetByID(ctx, nil, "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestContractorRepository_ListByTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContractorRepository(db.DB)
	tenants := NewTenantRepository(db.DB)
	ctx := context.Background()

	tenant := testutil.FixtureTenant()
	if err := tenants.Create(ctx, nil, tenant); err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"First", "Second"} {
		c := testutil.FixtureContractor(func(c *models.Contractor) {
			c.Name = name
			c.TenantID = &tenant.ID
			c.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		})
		if err := repo.Create(ctx, nil, c); err != nil {
			t.Fatalf("failed to create contractor: %v", err)
		}
	}
	if err := repo.Create(ctx, nil, testutil.FixtureContractor(func(c *models.Contractor) { c.Name = "Untenanted" })); err != nil {
		t.Fatalf("failed to create contractor: %v", err)
	}

	list, err := repo.ListByTenant(ctx, nil, &tenant.ID)
	if err != nil {
		t.Fatalf("failed to list contractors: %v", err)
	}
	if len(list) != 2 || list[0].Name != "First" || list[1].Name != "Second" {
		t.Fatalf("unexpected tenant contractors %+v", list)
	}

	untenanted, err := repo.ListByTenant(ctx, nil, nil)
	if err != nil {
		t.Fatalf("failed to list contractors: %v", err)
	}
	if len(untenanted) != 1 || untenanted[0].Name != "Untenanted" {
		t.Errorf("nil tenant should match only untenanted contractors, got %d", len(untenanted))
	}
}

func TestContractorRepository_Workload(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContractorRepository(db.DB)
	ctx := context.Background()

	c := testutil.FixtureContractor()
	if err := repo.Create(ctx, nil, c); err != nil {
		t.Fatalf("failed to create contractor: %v", err)
	}

	t.Run("increment and decrement", func(t *testing.T) {
		if err := repo.IncrementWorkload(ctx, nil, c.ID); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if err := repo.IncrementWorkload(ctx, nil, c.ID); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got := db.Workload(t, c.ID); got != 2 {
			t.Errorf("expected workload 2, got %d", got)
		}
		if err := repo.DecrementWorkload(ctx, nil, c.ID); err != nil {
			t.Fatalf("decrement failed: %v", err)
		}
		if got := db.Workload(t, c.ID); got != 1 {
			t.Errorf("expected workload 1, got %d", got)
		}
	})

	t.Run("decrement never goes negative", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := repo.DecrementWorkload(ctx, nil, c.ID); err != nil {
				t.Fatalf("decrement failed: %v", err)
			}
		}
		if got := db.Workload(t, c.ID); got != 0 {
			t.Errorf("expected workload 0, got %d", got)
		}
	})

	t.Run("unknown contractor", func(t *testing.T) {
		if err := repo.IncrementWorkload(ctx, nil, "missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestContractorRepository_CheckAndReconcileWorkloads(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContractorRepository(db.DB)
	complaints := NewComplaintRepository(db.DB)
	orders := NewWorkOrderRepository(db.DB)
	ctx := context.Background()

	c := testutil.FixtureContractor()
	if err := repo.Create(ctx, nil, c); err != nil {
		t.Fatalf("failed to create contractor: %v", err)
	}
	complaint := testutil.FixtureClassifiedComplaint(models.CategoryRoads, models.RiskHigh)
	if err := complaints.Create(ctx, nil, complaint); err != nil {
		t.Fatalf("failed to create complaint: %v", err)
	}
	if err := orders.Create(ctx, nil, testutil.FixtureWorkOrder(complaint.ID, testutil.AssignedTo(c.ID))); err != nil {
		t.Fatalf("failed to create work order: %v", err)
	}

	drift, err := repo.CheckWorkloads(ctx)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(drift) != 1 || drift[0].Stored != 0 || drift[0].Actual != 1 {
		t.Fatalf("expected one drifted contractor, got %+v", drift)
	}

	n, err := repo.ReconcileWorkloads(ctx, nil)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 contractor reconciled, got %d", n)
	}
	if got := db.Workload(t, c.ID); got != 1 {
		t.Errorf("expected workload 1 after reconcile, got %d", got)
	}

	drift, err = repo.CheckWorkloads(ctx)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(drift) != 0 {
		t.Errorf("expected no drift after reconcile, got %+v", drift)
	}
}
