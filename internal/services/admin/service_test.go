package admin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/testutil"
	"github.com/civicflow/civicflow/internal/util"
)

var start = time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) StatusChanged(_ context.Context, c *models.Complaint, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, c.TrackingCode+"|"+string(c.Status)+"|"+message)
	return nil
}

type fixture struct {
	db          *testutil.TestDB
	svc         *Service
	clock       *util.ManualClock
	notifier    *recordingNotifier
	complaints  *repository.ComplaintRepository
	workOrders  *repository.WorkOrderRepository
	contractors *repository.ContractorRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewMigratedDB(t)
	f := &fixture{
		db:          db,
		clock:       util.NewManualClock(start),
		notifier:    &recordingNotifier{},
		complaints:  repository.NewComplaintRepository(db.DB),
		workOrders:  repository.NewWorkOrderRepository(db.DB),
		contractors: repository.NewContractorRepository(db.DB),
	}
	f.svc = NewService(db.DB, WithClock(f.clock), WithNotifier(f.notifier))
	return f
}

func (f *fixture) contractor(t *testing.T, workload int) *models.Contractor {
	t.Helper()
	c := testutil.FixtureContractor(func(c *models.Contractor) { c.ActiveWorkload = workload })
	require.NoError(t, f.contractors.Create(context.Background(), nil, c))
	return c
}

func (f *fixture) order(t *testing.T, overrides ...func(*models.WorkOrder)) (*models.Complaint, *models.WorkOrder) {
	t.Helper()
	ctx := context.Background()
	c := testutil.FixtureClassifiedComplaint(models.CategoryRoads, models.RiskHigh, func(c *models.Complaint) {
		c.Status = models.ComplaintStatusAssigned
	})
	require.NoError(t, f.complaints.Create(ctx, nil, c))
	wo := testutil.FixtureWorkOrder(c.ID, append([]func(*models.WorkOrder){func(w *models.WorkOrder) {
		w.CreatedAt = start
		w.UpdatedAt = start
		w.SLADeadline = start.Add(24 * time.Hour)
	}}, overrides...)...)
	require.NoError(t, f.workOrders.Create(ctx, nil, wo))
	return c, wo
}

func statusPtr(s models.WorkOrderStatus) *models.WorkOrderStatus { return &s }

func TestPatchWorkOrder_Reassign(t *testing.T) {
	f := newFixture(t)
	a := f.contractor(t, 1)
	b := f.contractor(t, 0)
	_, wo := f.order(t, testutil.AssignedTo(a.ID))

	got, err := f.svc.PatchWorkOrder(context.Background(), wo.ID, WorkOrderPatch{ContractorID: &b.ID})
	require.NoError(t, err)

	assert.Equal(t, b.ID, *got.ContractorID)
	assert.Equal(t, models.WorkOrderAssigned, got.Status)
	assert.Equal(t, 0, f.db.Workload(t, a.ID))
	assert.Equal(t, 1, f.db.Workload(t, b.ID))
}

func TestPatchWorkOrder_AssignCreatedOrder(t *testing.T) {
	f := newFixture(t)
	a := f.contractor(t, 0)
	_, wo := f.order(t)

	got, err := f.svc.PatchWorkOrder(context.Background(), wo.ID, WorkOrderPatch{ContractorID: &a.ID})
	require.NoError(t, err)

	assert.Equal(t, models.WorkOrderAssigned, got.Status)
	assert.Equal(t, 1, f.db.Workload(t, a.ID))
}

func TestPatchWorkOrder_CompleteResolvesComplaint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.contractor(t, 1)
	c, wo := f.order(t, testutil.AssignedTo(a.ID))
	f.clock.Set(start.Add(10 * time.Hour))

	got, err := f.svc.PatchWorkOrder(ctx, wo.ID, WorkOrderPatch{Status: statusPtr(models.WorkOrderCompleted)})
	require.NoError(t, err)

	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(start.Add(10*time.Hour)))
	assert.Equal(t, 0, f.db.Workload(t, a.ID))

	stored, err := f.complaints.GetByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusResolved, stored.Status)
	assert.Equal(t, []string{c.TrackingCode + "|resolved|" + ResolvedMessage}, f.notifier.messages)

	// Completing again changes nothing.
	_, err = f.svc.PatchWorkOrder(ctx, wo.ID, WorkOrderPatch{Status: statusPtr(models.WorkOrderCompleted)})
	require.NoError(t, err)
	assert.Equal(t, 0, f.db.Workload(t, a.ID))
	assert.Len(t, f.notifier.messages, 1)

	// Reopening books the contractor again and clears the completion time.
	got, err = f.svc.PatchWorkOrder(ctx, wo.ID, WorkOrderPatch{Status: statusPtr(models.WorkOrderInProgress)})
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, 1, f.db.Workload(t, a.ID))
}

func TestPatchWorkOrder_Notes(t *testing.T) {
	f := newFixture(t)
	a := f.contractor(t, 1)
	_, wo := f.order(t, testutil.AssignedTo(a.ID))
	notes := "Crew dispatched"

	got, err := f.svc.PatchWorkOrder(context.Background(), wo.ID, WorkOrderPatch{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, notes, got.Notes)
	assert.Equal(t, 1, f.db.Workload(t, a.ID))
}

func TestPatchWorkOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.contractor(t, 1)
	_, wo := f.order(t, testutil.AssignedTo(a.ID))
	missing := util.NewID()

	_, err := f.svc.PatchWorkOrder(ctx, wo.ID, WorkOrderPatch{Status: statusPtr("paused")})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = f.svc.PatchWorkOrder(ctx, wo.ID, WorkOrderPatch{ContractorID: &missing})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = f.svc.PatchWorkOrder(ctx, missing, WorkOrderPatch{Status: statusPtr(models.WorkOrderCompleted)})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	stored, err := f.workOrders.GetByID(ctx, nil, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, *stored.ContractorID)
	assert.Equal(t, 1, f.db.Workload(t, a.ID))
}

func TestPatchWorkOrder_ConcurrentPatchesKeepCountersExact(t *testing.T) {
	f := newFixture(t)
	a := f.contractor(t, 0)
	b := f.contractor(t, 0)
	var orders []*models.WorkOrder
	for i := 0; i < 6; i++ {
		_, wo := f.order(t)
		orders = append(orders, wo)
	}

	var wg sync.WaitGroup
	for i, wo := range orders {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			target := a.ID
			if i%2 == 1 {
				target = b.ID
			}
			_, err := f.svc.PatchWorkOrder(context.Background(), id, WorkOrderPatch{ContractorID: &target})
			assert.NoError(t, err)
			if i%3 == 0 {
				_, err = f.svc.PatchWorkOrder(context.Background(), id, WorkOrderPatch{Status: statusPtr(models.WorkOrderCompleted)})
				assert.NoError(t, err)
			}
		}(i, wo.ID)
	}
	wg.Wait()

	drift, err := f.svc.CheckWorkloads(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drift)
	assert.Equal(t, 2, f.db.Workload(t, a.ID))
	assert.Equal(t, 2, f.db.Workload(t, b.ID))
}

func TestPatchComplaint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.contractor(t, 1)
	b := f.contractor(t, 0)
	c, wo := f.order(t, testutil.AssignedTo(a.ID))
	inProgress := models.ComplaintStatusInProgress

	got, err := f.svc.PatchComplaint(ctx, c.ID, ComplaintPatch{Status: &inProgress, ContractorID: &b.ID})
	require.NoError(t, err)

	assert.Equal(t, models.ComplaintStatusInProgress, got.Status)
	stored, err := f.workOrders.GetByID(ctx, nil, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, *stored.ContractorID)
	assert.Equal(t, 0, f.db.Workload(t, a.ID))
	assert.Equal(t, 1, f.db.Workload(t, b.ID))

	bogus := models.ComplaintStatus("lost")
	_, err = f.svc.PatchComplaint(ctx, c.ID, ComplaintPatch{Status: &bogus})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestPatchComplaint_ContractorWithoutOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.contractor(t, 0)
	c := testutil.FixtureComplaint()
	require.NoError(t, f.complaints.Create(ctx, nil, c))

	_, err := f.svc.PatchComplaint(ctx, c.ID, ComplaintPatch{ContractorID: &a.ID})

	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Equal(t, 0, f.db.Workload(t, a.ID))
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.contractor(t, 1)
	f.order(t, testutil.AssignedTo(a.ID))
	f.order(t)

	complaints, err := f.svc.ListComplaints(ctx, models.ComplaintFilter{}, models.DefaultPagination())
	require.NoError(t, err)
	assert.Equal(t, 2, complaints.Total)

	contractorID := a.ID
	orders, err := f.svc.ListWorkOrders(ctx, models.WorkOrderFilter{ContractorID: &contractorID}, models.DefaultPagination())
	require.NoError(t, err)
	assert.Equal(t, 1, orders.Total)

	contractors, err := f.svc.ListContractors(ctx)
	require.NoError(t, err)
	assert.Len(t, contractors, 1)

	analytics, err := f.svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.Total)
	assert.Equal(t, 2, analytics.ByCategory["ROADS"])

	_, err = f.svc.LatestBriefing(ctx)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestPerformance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.contractor(t, 2)
	_, quick := f.order(t, testutil.AssignedTo(a.ID))
	_, slow := f.order(t, testutil.AssignedTo(a.ID))

	f.clock.Set(start.Add(10 * time.Hour))
	_, err := f.svc.PatchWorkOrder(ctx, quick.ID, WorkOrderPatch{Status: statusPtr(models.WorkOrderCompleted)})
	require.NoError(t, err)
	f.clock.Set(start.Add(30 * time.Hour))
	_, err = f.svc.PatchWorkOrder(ctx, slow.ID, WorkOrderPatch{Status: statusPtr(models.WorkOrderCompleted)})
	require.NoError(t, err)

	perf, err := f.svc.Performance(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, perf.TotalMeasured)
	assert.Equal(t, 1, perf.SLABreaches)
	assert.InDelta(t, 50.0, perf.SLABreachRate, 1e-9)
	assert.InDelta(t, 20.0, perf.AvgResolutionHours["ROADS"], 1e-9)
	require.Len(t, perf.Contractors, 1)
	assert.Equal(t, 2, perf.Contractors[0].Completed)
	assert.Equal(t, 0, f.db.Workload(t, a.ID))
}

func TestPublicDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, c := range []*models.Complaint{
		testutil.FixtureClassifiedComplaint(models.CategoryWater, models.RiskMedium, testutil.WithCoordinates(12.97, 77.59)),
		testutil.FixtureClassifiedComplaint(models.CategoryRoads, models.RiskHigh, testutil.WithCoordinates(0, 0), func(c *models.Complaint) {
			c.Status = models.ComplaintStatusResolved
		}),
	} {
		require.NoError(t, f.complaints.Create(ctx, nil, c))
	}

	d, err := f.svc.PublicDashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Total)
	assert.Equal(t, 1, d.Resolved)
	assert.InDelta(t, 50.0, d.ResolutionRate, 1e-9)
	require.Len(t, d.Heatmap, 1)
	assert.Equal(t, models.CategoryWater, d.Heatmap[0].Category)
}
