package sla

import (
	"context"
	"strings"
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

var start = time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)

type sent struct {
	code      string
	message   string
	escalated bool
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) SLAWarning(_ context.Context, c *models.Complaint, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{code: c.TrackingCode, message: message})
	return nil
}

func (n *recordingNotifier) Escalated(_ context.Context, c *models.Complaint, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{code: c.TrackingCode, message: message, escalated: true})
	return nil
}

type harness struct {
	db          *testutil.TestDB
	clock       *util.ManualClock
	notifier    *recordingNotifier
	complaints  *repository.ComplaintRepository
	workOrders  *repository.WorkOrderRepository
	contractors *repository.ContractorRepository
	escalations *repository.EscalationRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewMigratedDB(t)
	return &harness{
		db:          db,
		clock:       util.NewManualClock(start),
		notifier:    &recordingNotifier{},
		complaints:  repository.NewComplaintRepository(db.DB),
		workOrders:  repository.NewWorkOrderRepository(db.DB),
		contractors: repository.NewContractorRepository(db.DB),
		escalations: repository.NewEscalationRepository(db.DB),
	}
}

func (h *harness) monitor(opts ...Option) *Monitor {
	return NewMonitor(h.db.DB, append([]Option{WithClock(h.clock), WithNotifier(h.notifier)}, opts...)...)
}

func (h *harness) contractor(t *testing.T, name string, rating float64, workload int) *models.Contractor {
	t.Helper()
	c := testutil.FixtureContractor(func(c *models.Contractor) {
		c.Name = name
		c.Rating = rating
		c.ActiveWorkload = workload
	})
	require.NoError(t, h.contractors.Create(context.Background(), nil, c))
	return c
}

// order stores an assigned ROADS complaint with a 24h order created at start.
func (h *harness) order(t *testing.T, contractorID string, overrides ...func(*models.Complaint)) (*models.Complaint, *models.WorkOrder) {
	t.Helper()
	ctx := context.Background()
	c := testutil.FixtureClassifiedComplaint(models.CategoryRoads, models.RiskHigh, append([]func(*models.Complaint){
		func(c *models.Complaint) { c.Status = models.ComplaintStatusAssigned },
	}, overrides...)...)
	require.NoError(t, h.complaints.Create(ctx, nil, c))

	wo := testutil.FixtureWorkOrder(c.ID, func(w *models.WorkOrder) {
		w.CreatedAt = start
		w.UpdatedAt = start
		w.SLADeadline = start.Add(24 * time.Hour)
	})
	if contractorID != "" {
		testutil.AssignedTo(contractorID)(wo)
	}
	require.NoError(t, h.workOrders.Create(ctx, nil, wo))
	return c, wo
}

func TestScan_ElapsedBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    Result
	}{
		{"before half", 12*time.Hour - time.Second, Result{Scanned: 1}},
		{"exactly half", 12 * time.Hour, Result{Scanned: 1, Warnings: 1}},
		{"just before urgent", 18*time.Hour - time.Second, Result{Scanned: 1, Warnings: 1}},
		{"exactly urgent", 18 * time.Hour, Result{Scanned: 1, Urgent: 1}},
		{"just before deadline", 24*time.Hour - time.Second, Result{Scanned: 1, Urgent: 1}},
		{"exactly deadline", 24 * time.Hour, Result{Scanned: 1, Escalations: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.order(t, "")
			h.clock.Set(start.Add(tt.elapsed))

			got, err := h.monitor().Scan(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestScan_WarningMessages(t *testing.T) {
	h := newHarness(t)
	c, _ := h.order(t, "")
	m := h.monitor()

	h.clock.Set(start.Add(13 * time.Hour))
	_, err := m.Scan(context.Background())
	require.NoError(t, err)
	h.clock.Set(start.Add(20 * time.Hour))
	_, err = m.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, h.notifier.sent, 2)
	assert.Equal(t, sent{code: c.TrackingCode, message: WarningMessage}, h.notifier.sent[0])
	assert.Equal(t, sent{code: c.TrackingCode, message: UrgentMessage}, h.notifier.sent[1])
}

func TestScan_UrgentThenBreachReassigns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	current := h.contractor(t, "Current Works", 4.0, 1)
	standby := h.contractor(t, "Standby Works", 3.5, 0)
	c, wo := h.order(t, current.ID)
	m := h.monitor()

	h.clock.Set(start.Add(18 * time.Hour))
	got, err := m.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Urgent)
	assert.Zero(t, got.Escalations)
	h.db.AssertRowCount(t, "escalations", 0)

	h.clock.Set(start.Add(25 * time.Hour))
	got, err = m.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1, Escalations: 1, Reassigned: 1}, *got)

	order, err := h.workOrders.GetByID(ctx, nil, wo.ID)
	require.NoError(t, err)
	require.NotNil(t, order.ContractorID)
	assert.Equal(t, standby.ID, *order.ContractorID)
	assert.Equal(t, models.WorkOrderAssigned, order.Status)
	assert.Equal(t, 0, h.db.Workload(t, current.ID))
	assert.Equal(t, 1, h.db.Workload(t, standby.ID))

	log, err := h.escalations.ListByComplaint(ctx, nil, c.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, models.LevelDistrict, log[0].FromLevel)
	assert.Equal(t, models.LevelCity, log[0].ToLevel)
	assert.Equal(t, "SLA breached at 2026-07-02T06:00:00Z. Auto-reassigned to Standby Works after SLA breach.", log[0].Reason)
	require.NotNil(t, log[0].WorkOrderID)
	assert.Equal(t, wo.ID, *log[0].WorkOrderID)

	stored, err := h.complaints.GetByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusEscalated, stored.Status)

	last := h.notifier.sent[len(h.notifier.sent)-1]
	assert.True(t, last.escalated)
	assert.Equal(t, "Escalated to city level. SLA breached. New contractor assigned automatically.", last.message)
}

func TestScan_BreachWithoutCandidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	only := h.contractor(t, "Only Works", 4.0, 1)
	c, wo := h.order(t, only.ID, func(c *models.Complaint) {
		c.Ward = "Ward 12"
	})
	h.clock.Set(start.Add(30 * time.Hour))

	got, err := h.monitor().Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1, Escalations: 1}, *got)

	order, err := h.workOrders.GetByID(ctx, nil, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, only.ID, *order.ContractorID)
	assert.Equal(t, 1, h.db.Workload(t, only.ID))

	log, err := h.escalations.ListByComplaint(ctx, nil, c.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, models.LevelWard, log[0].FromLevel)
	assert.Equal(t, models.LevelBlock, log[0].ToLevel)
	assert.True(t, strings.HasSuffix(log[0].Reason, "No available contractor for reassignment."))
	assert.Equal(t, "Escalated to block level. SLA breached.", h.notifier.sent[0].message)
}

func TestScan_RepeatedBreach(t *testing.T) {
	t.Run("compounds by default", func(t *testing.T) {
		h := newHarness(t)
		first := h.contractor(t, "First Works", 4.0, 1)
		second := h.contractor(t, "Second Works", 3.5, 0)
		h.order(t, first.ID)
		h.clock.Set(start.Add(25 * time.Hour))
		m := h.monitor()

		for i := 0; i < 2; i++ {
			_, err := m.Scan(context.Background())
			require.NoError(t, err)
		}

		h.db.AssertRowCount(t, "escalations", 2)
		assert.Equal(t, 1, h.db.Workload(t, first.ID), "second breach moves the order back")
		assert.Equal(t, 0, h.db.Workload(t, second.ID))
	})

	t.Run("escalate once", func(t *testing.T) {
		h := newHarness(t)
		first := h.contractor(t, "First Works", 4.0, 1)
		second := h.contractor(t, "Second Works", 3.5, 0)
		h.order(t, first.ID)
		h.clock.Set(start.Add(25 * time.Hour))
		m := h.monitor(WithEscalateOnce(true))

		_, err := m.Scan(context.Background())
		require.NoError(t, err)
		got, err := m.Scan(context.Background())
		require.NoError(t, err)

		assert.Equal(t, Result{Scanned: 1, Skipped: 1}, *got)
		h.db.AssertRowCount(t, "escalations", 1)
		assert.Equal(t, 0, h.db.Workload(t, first.ID))
		assert.Equal(t, 1, h.db.Workload(t, second.ID))
	})
}

func TestScan_IgnoresCompletedAndEmptyWindows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := testutil.FixtureClassifiedComplaint(models.CategoryWater, models.RiskMedium)
	require.NoError(t, h.complaints.Create(ctx, nil, c))
	done := start
	require.NoError(t, h.workOrders.Create(ctx, nil, testutil.FixtureWorkOrder(c.ID, func(w *models.WorkOrder) {
		w.Status = models.WorkOrderCompleted
		w.CompletedAt = &done
		w.CreatedAt = start
		w.SLADeadline = start.Add(time.Hour)
	})))
	require.NoError(t, h.workOrders.Create(ctx, nil, testutil.FixtureWorkOrder(c.ID, func(w *models.WorkOrder) {
		w.Origin = models.OriginCluster
		w.CreatedAt = start
		w.SLADeadline = start
	})))
	h.clock.Set(start.Add(48 * time.Hour))

	got, err := h.monitor().Scan(ctx)
	require.NoError(t, err)

	assert.Equal(t, Result{Scanned: 1, Skipped: 1}, *got)
	h.db.AssertRowCount(t, "escalations", 0)
}
