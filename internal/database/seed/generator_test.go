package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/testutil"
	"github.com/civicflow/civicflow/internal/util"
)

func TestDefaultDataset(t *testing.T) {
	d, err := DefaultDataset()
	if err != nil {
		t.Fatalf("DefaultDataset() error = %v", err)
	}
	if d.Tenant != "Bangalore Municipal Corporation" {
		t.Errorf("Tenant = %q", d.Tenant)
	}
	if len(d.Contractors) != 8 {
		t.Errorf("len(Contractors) = %d, want 8", len(d.Contractors))
	}

	covered := map[models.Category]bool{}
	for _, c := range d.Contractors {
		for _, s := range c.Specializations {
			covered[s] = true
		}
	}
	for _, cat := range models.Categories() {
		if cat == models.CategoryStrayAnimals {
			continue
		}
		if !covered[cat] {
			t.Errorf("no contractor specializes in %s", cat)
		}
	}
}

func TestParseDataset_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing tenant", "contractors: []", "tenant name is required"},
		{"unknown category", "tenant: X\ncontractors:\n  - {name: A, specializations: [ROCKETS], rating: 4}", "unknown specialization"},
		{"no specialization", "tenant: X\ncontractors:\n  - {name: A, rating: 4}", "at least one specialization"},
		{"bad rating", "tenant: X\ncontractors:\n  - {name: A, specializations: [ROADS], rating: 7}", "rating must be between"},
		{"bad yaml", "tenant: [", "parsing seed dataset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDataset([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseDataset() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	ctx := context.Background()
	data, err := DefaultDataset()
	if err != nil {
		t.Fatal(err)
	}
	clock := util.NewManualClock(time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.DemoComplaints = 12

	result, err := NewGenerator(db.DB, data, cfg, clock).Generate(ctx)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.AlreadySeeded || result.Contractors != 8 || result.Complaints != 12 {
		t.Errorf("result = %+v", result)
	}
	db.AssertRowCount(t, "tenants", 1)
	db.AssertRowCount(t, "contractors", 8)
	db.AssertRowCount(t, "complaints", 12)

	contractors, err := repository.NewContractorRepository(db.DB).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range contractors {
		if c.ActiveWorkload != 0 {
			t.Errorf("%s workload = %d, want 0", c.Name, c.ActiveWorkload)
		}
		if c.TenantID == nil || *c.TenantID != result.TenantID {
			t.Errorf("%s not attached to the seeded tenant", c.Name)
		}
	}

	pending, err := repository.NewComplaintRepository(db.DB).ListUnclassified(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 12 {
		t.Fatalf("unclassified complaints = %d, want 12", len(pending))
	}
	for _, c := range pending {
		if !util.IsTrackingCode(c.TrackingCode) {
			t.Errorf("bad tracking code %q", c.TrackingCode)
		}
		if strings.Contains(c.Description, "{area}") {
			t.Errorf("template not expanded: %q", c.Description)
		}
		if c.CreatedAt.After(clock.Now()) || c.CreatedAt.Before(clock.Now().Add(-cfg.Spread)) {
			t.Errorf("created_at %s outside the spread", c.CreatedAt)
		}
	}
}

func TestGenerate_TenantOnlyOnce(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	ctx := context.Background()
	data, err := DefaultDataset()
	if err != nil {
		t.Fatal(err)
	}

	first, err := NewGenerator(db.DB, data, DefaultConfig(), nil).Generate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.DemoComplaints = 3
	second, err := NewGenerator(db.DB, data, cfg, nil).Generate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !second.AlreadySeeded || second.TenantID != first.TenantID || second.Contractors != 0 {
		t.Errorf("second run = %+v", second)
	}
	db.AssertRowCount(t, "contractors", 8)
	db.AssertRowCount(t, "complaints", 3)
}
