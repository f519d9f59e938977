package briefing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/testutil"
	"github.com/civicflow/civicflow/internal/util"
)

var now = time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

type narratorFunc func(ctx context.Context, stats models.BriefingStats) (string, error)

func (f narratorFunc) Narrate(ctx context.Context, stats models.BriefingStats) (string, error) {
	return f(ctx, stats)
}

func seedDay(t *testing.T, db *testutil.TestDB) {
	t.Helper()
	ctx := context.Background()
	complaints := repository.NewComplaintRepository(db.DB)
	workOrders := repository.NewWorkOrderRepository(db.DB)

	today := testutil.FixtureClassifiedComplaint(models.CategoryRoads, models.RiskHigh, func(c *models.Complaint) {
		c.Status = models.ComplaintStatusAssigned
		c.CreatedAt = now.Add(-2 * time.Hour)
		c.UpdatedAt = c.CreatedAt
	})
	resolved := testutil.FixtureClassifiedComplaint(models.CategoryWater, models.RiskMedium, func(c *models.Complaint) {
		c.Status = models.ComplaintStatusResolved
		c.CreatedAt = now.Add(-26 * time.Hour)
		c.UpdatedAt = now.Add(-time.Hour)
	})
	closedEarlier := testutil.FixtureClassifiedComplaint(models.CategoryWater, models.RiskMedium, func(c *models.Complaint) {
		c.Status = models.ComplaintStatusClosed
		c.CreatedAt = now.Add(-72 * time.Hour)
		c.UpdatedAt = now.Add(-20 * time.Hour)
	})
	for _, c := range []*models.Complaint{today, resolved, closedEarlier} {
		require.NoError(t, complaints.Create(ctx, nil, c))
	}

	require.NoError(t, workOrders.Create(ctx, nil, testutil.FixtureWorkOrder(today.ID, func(w *models.WorkOrder) {
		w.CreatedAt = now.Add(-2 * time.Hour)
		w.SLADeadline = now.Add(6 * time.Hour)
	})))
	require.NoError(t, workOrders.Create(ctx, nil, testutil.FixtureWorkOrder(today.ID, func(w *models.WorkOrder) {
		w.Origin = models.OriginCluster
		w.CreatedAt = now.Add(-time.Hour)
		w.SLADeadline = now.Add(47 * time.Hour)
	})))
	require.NoError(t, repository.NewEscalationRepository(db.DB).Create(ctx, nil, &models.Escalation{
		ID:          util.NewID(),
		ComplaintID: today.ID,
		FromLevel:   models.LevelDistrict,
		ToLevel:     models.LevelCity,
		Reason:      "SLA breached",
		EscalatedAt: now.Add(-30 * time.Minute),
	}))
}

func TestGenerate_CollectsTodaysFigures(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	seedDay(t, db)
	var seen models.BriefingStats
	g := NewGenerator(db.DB,
		WithClock(util.NewManualClock(now)),
		WithLocation(time.UTC),
		WithNarrator(narratorFunc(func(_ context.Context, s models.BriefingStats) (string, error) {
			seen = s
			return "  A quiet morning.  ", nil
		})))

	b, err := g.Generate(context.Background())
	require.NoError(t, err)

	want := models.BriefingStats{
		NewComplaints:    1,
		ResolvedToday:    1,
		TotalOpen:        1,
		SLAAtRisk:        1,
		EscalationsToday: 1,
		ClustersDetected: 1,
		OpenByCategory:   map[models.Category]int{models.CategoryRoads: 1},
	}
	assert.Equal(t, want, b.BriefingStats)
	assert.Equal(t, want, seen)
	assert.Equal(t, "A quiet morning.", b.Narrative)

	latest, err := g.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)
	assert.Equal(t, want, latest.BriefingStats)
}

func TestGenerate_FallsBackWhenNarratorFails(t *testing.T) {
	db := testutil.NewMigratedDB(t)
	g := NewGenerator(db.DB,
		WithClock(util.NewManualClock(now)),
		WithLocation(time.UTC),
		WithNarrator(narratorFunc(func(context.Context, models.BriefingStats) (string, error) {
			return "", errors.New("quota exceeded")
		})))

	b, err := g.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FallbackNarrative(models.BriefingStats{}), b.Narrative)
	db.AssertRowCount(t, "daily_briefings", 1)
}

func TestLatest_NoneYet(t *testing.T) {
	db := testutil.NewMigratedDB(t)

	_, err := NewGenerator(db.DB).Latest(context.Background())

	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestFallbackNarrative(t *testing.T) {
	quiet := FallbackNarrative(models.BriefingStats{NewComplaints: 3, ResolvedToday: 1, TotalOpen: 9})
	assert.Equal(t, "Good morning. As of today, 3 new complaints have been submitted and 1 have been resolved. "+
		"There are currently 9 open complaints in the system. "+
		"Overdue complaints have been reassigned automatically and clustered issues grouped into shared work orders. "+
		"No manual intervention is required unless flagged above.", quiet)

	busy := FallbackNarrative(models.BriefingStats{SLAAtRisk: 2, EscalationsToday: 4, ClustersDetected: 1})
	assert.Contains(t, busy, "ATTENTION: 2 complaint(s) are at risk of SLA breach within the next 12 hours")
	assert.Contains(t, busy, "4 escalation(s) were raised today due to SLA breaches.")
	assert.Contains(t, busy, "1 grouped work order(s) were created for clustered issues.")
}
