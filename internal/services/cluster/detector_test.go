package cluster

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/testutil"
	"github.com/civicflow/civicflow/internal/util"
)

var now = time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

func complaint(category models.Category, score int, overrides ...func(*models.Complaint)) *models.Complaint {
	return testutil.FixtureClassifiedComplaint(category, models.RiskLevelForScore(score), append([]func(*models.Complaint){
		func(c *models.Complaint) {
			c.PriorityScore = score
			c.Status = models.ComplaintStatusAssigned
			c.CreatedAt = now.Add(-time.Hour)
			c.UpdatedAt = c.CreatedAt
		},
	}, overrides...)...)
}

func TestCell(t *testing.T) {
	tests := []struct {
		name string
		c    *models.Complaint
		want string
	}{
		{"coordinates", testutil.FixtureComplaint(testutil.WithCoordinates(12.97164, 77.59456)), "12.97_77.59"},
		{"rounding up", testutil.FixtureComplaint(testutil.WithCoordinates(12.9699, 77.5951)), "12.97_77.60"},
		{"zero point uses district", testutil.FixtureComplaint(testutil.WithCoordinates(0, 0)), "Central"},
		{"ward", testutil.FixtureComplaint(func(c *models.Complaint) { c.District = ""; c.Ward = "Ward 7" }), "Ward 7"},
		{"unknown", testutil.FixtureComplaint(func(c *models.Complaint) { c.District = "" }), UnknownArea},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cell(tt.c, 2))
		})
	}
}

func TestBuckets_FirstSeenOrder(t *testing.T) {
	a := complaint(models.CategoryWater, 60, testutil.WithCoordinates(12.971, 77.594))
	b := complaint(models.CategoryRoads, 60, testutil.WithCoordinates(12.971, 77.594))
	c := complaint(models.CategoryWater, 60, testutil.WithCoordinates(12.972, 77.591))
	unclassified := testutil.FixtureComplaint()

	got := Buckets([]*models.Complaint{a, b, c, unclassified}, 2)

	require.Len(t, got, 2)
	assert.Equal(t, "WATER|12.97_77.59", got[0].Key)
	assert.Equal(t, []*models.Complaint{a, c}, got[0].Members)
	assert.Equal(t, "ROADS|12.97_77.59", got[1].Key)
}

func TestAnchor_FirstOnTies(t *testing.T) {
	a := complaint(models.CategoryWater, 70)
	b := complaint(models.CategoryWater, 80)
	c := complaint(models.CategoryWater, 80)

	assert.Same(t, b, Anchor([]*models.Complaint{a, b, c}))
}

func TestNotes(t *testing.T) {
	var members []*models.Complaint
	for i := 0; i < 12; i++ {
		members = append(members, complaint(models.CategoryWater, 60, func(c *models.Complaint) {
			c.Description = strings.Repeat("x", 100)
		}))
	}

	notes := Notes(members, models.CategoryWater, "")

	assert.True(t, strings.HasPrefix(notes, "[CLUSTER] 12 related WATER complaints detected in unknown district. Auto-generated grouped work order. Complaint IDs: "))
	assert.Contains(t, notes, members[9].ID)
	assert.NotContains(t, notes, members[10].ID)
	samples := notes[strings.Index(notes, "Sample descriptions: ")+len("Sample descriptions: "):]
	parts := strings.Split(samples, "; ")
	require.Len(t, parts, 5)
	assert.Len(t, parts[0], 80)
}

type harness struct {
	db          *testutil.TestDB
	complaints  *repository.ComplaintRepository
	workOrders  *repository.WorkOrderRepository
	contractors *repository.ContractorRepository
	detector    *Detector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewMigratedDB(t)
	return &harness{
		db:          db,
		complaints:  repository.NewComplaintRepository(db.DB),
		workOrders:  repository.NewWorkOrderRepository(db.DB),
		contractors: repository.NewContractorRepository(db.DB),
		detector:    NewDetector(db.DB, DefaultSettings(), WithClock(util.NewManualClock(now))),
	}
}

func (h *harness) store(t *testing.T, cs ...*models.Complaint) {
	t.Helper()
	for _, c := range cs {
		require.NoError(t, h.complaints.Create(context.Background(), nil, c))
	}
}

func TestDetect_ThreeWaterComplaints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	plumber := testutil.FixtureContractor(func(c *models.Contractor) {
		c.Name = "Jal Plumbing"
		c.Specializations = []models.Category{models.CategoryWater}
	})
	require.NoError(t, h.contractors.Create(ctx, nil, plumber))

	first := complaint(models.CategoryWater, 65, testutil.WithCoordinates(12.9716, 77.5946))
	anchor := complaint(models.CategoryWater, 80, testutil.WithCoordinates(12.9721, 77.5949))
	third := complaint(models.CategoryWater, 70, testutil.WithCoordinates(12.9699, 77.5901))
	lonely := complaint(models.CategoryRoads, 60, testutil.WithCoordinates(12.9716, 77.5946))
	elsewhere := complaint(models.CategoryWater, 65, testutil.WithCoordinates(13.0358, 77.5970))
	h.store(t, first, anchor, third, lonely, elsewhere)

	created, err := h.detector.Detect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	order, err := h.workOrders.GetByComplaint(ctx, nil, anchor.ID, models.OriginCluster)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderAssigned, order.Status)
	require.NotNil(t, order.ContractorID)
	assert.Equal(t, plumber.ID, *order.ContractorID)
	assert.InDelta(t, 8400.0, order.EstimatedCost, 1e-9)
	assert.True(t, order.SLADeadline.Equal(now.Add(48*time.Hour)))
	assert.Equal(t, models.CategoryWater.Department(), order.Department)
	assert.True(t, strings.HasPrefix(order.Notes, "[CLUSTER] 3 related WATER complaints detected in Central district."))
	assert.Equal(t, 1, h.db.Workload(t, plumber.ID))

	statuses := map[string]models.ComplaintStatus{}
	for _, c := range []*models.Complaint{first, anchor, third, lonely, elsewhere} {
		stored, err := h.complaints.GetByID(ctx, nil, c.ID)
		require.NoError(t, err)
		statuses[c.ID] = stored.Status
	}
	assert.Equal(t, models.ComplaintStatusGrouped, statuses[first.ID])
	assert.Equal(t, models.ComplaintStatusGrouped, statuses[third.ID])
	assert.Equal(t, models.ComplaintStatusAssigned, statuses[anchor.ID])
	assert.Equal(t, models.ComplaintStatusAssigned, statuses[lonely.ID])
	assert.Equal(t, models.ComplaintStatusAssigned, statuses[elsewhere.ID])

	again, err := h.detector.Detect(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
	h.db.AssertRowCount(t, "work_orders", 1)
	assert.Equal(t, 1, h.db.Workload(t, plumber.ID))
}

func TestDetect_SkipsExistingClusterOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := complaint(models.CategorySanitation, 45)
	b := complaint(models.CategorySanitation, 50)
	h.store(t, a, b)
	require.NoError(t, h.workOrders.Create(ctx, nil, testutil.FixtureWorkOrder(a.ID, func(w *models.WorkOrder) {
		w.Origin = models.OriginCluster
	})))

	created, err := h.detector.Detect(ctx)
	require.NoError(t, err)

	assert.Zero(t, created)
	h.db.AssertRowCount(t, "work_orders", 1)
}

func TestDetect_WithoutContractorAndOutsideLookback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	old := complaint(models.CategorySanitation, 45, func(c *models.Complaint) {
		c.CreatedAt = now.Add(-8 * 24 * time.Hour)
	})
	a := complaint(models.CategorySanitation, 45)
	b := complaint(models.CategorySanitation, 50)
	h.store(t, old, a, b)

	created, err := h.detector.Detect(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	order, err := h.workOrders.GetByComplaint(ctx, nil, b.ID, models.OriginCluster)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderCreated, order.Status)
	assert.Nil(t, order.ContractorID)
	assert.InDelta(t, 2000*2*0.7, order.EstimatedCost, 1e-9)

	stored, err := h.complaints.GetByID(ctx, nil, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusAssigned, stored.Status)
}

func TestDetect_SingletonsCreateNothing(t *testing.T) {
	h := newHarness(t)
	h.store(t,
		complaint(models.CategoryWater, 65, testutil.WithCoordinates(12.97, 77.59)),
		complaint(models.CategoryRoads, 60, testutil.WithCoordinates(12.97, 77.59)),
	)

	created, err := h.detector.Detect(context.Background())
	require.NoError(t, err)

	assert.Zero(t, created)
	h.db.AssertRowCount(t, "work_orders", 0)
}
