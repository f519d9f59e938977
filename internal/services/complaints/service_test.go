package complaints

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/pipeline"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/testutil"
	"github.com/civicflow/civicflow/internal/util"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) StatusChanged(_ context.Context, c *models.Complaint, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, string(c.Status)+": "+message)
	return nil
}

type fixture struct {
	db          *testutil.TestDB
	svc         *Service
	complaints  *repository.ComplaintRepository
	contractors *repository.ContractorRepository
	workOrders  *repository.WorkOrderRepository
	notifier    *recordingNotifier
	clock       *util.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewMigratedDB(t)
	clock := util.NewManualClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	f := &fixture{
		db:          db,
		complaints:  repository.NewComplaintRepository(db.DB),
		contractors: repository.NewContractorRepository(db.DB),
		workOrders:  repository.NewWorkOrderRepository(db.DB),
		notifier:    &recordingNotifier{},
		clock:       clock,
	}
	f.useStages(pipeline.DefaultStages(f.deps()))
	return f
}

func (f *fixture) deps() pipeline.Deps {
	return pipeline.Deps{
		DB:          f.db.DB,
		Contractors: f.contractors,
		WorkOrders:  f.workOrders,
		Clock:       f.clock,
	}
}

// useStages rebuilds the service around stages.
func (f *fixture) useStages(stages []pipeline.Stage) {
	f.svc = NewService(f.db.DB, stages, WithClock(f.clock), WithNotifier(f.notifier))
}

// statusChanger moves the stored complaint to another status while the
// pipeline is notifying the citizen.
type statusChanger struct {
	db     *testutil.TestDB
	t      *testing.T
	status models.ComplaintStatus
}

func (n *statusChanger) ComplaintProcessed(_ context.Context, c *models.Complaint, _ *models.WorkOrder, _ string) error {
	n.db.ExecSQL(n.t, `UPDATE complaints SET status = ? WHERE id = ?`, string(n.status), c.ID)
	return nil
}

// beforeStage runs hook once, the first time the wrapped stage starts.
type beforeStage struct {
	pipeline.Stage
	hook func()
}

func (s *beforeStage) Process(ctx context.Context, pc *pipeline.Context) error {
	if hook := s.hook; hook != nil {
		s.hook = nil
		hook()
	}
	return s.Stage.Process(ctx, pc)
}

func (f *fixture) contractor(t *testing.T, overrides ...func(*models.Contractor)) *models.Contractor {
	t.Helper()
	c := testutil.FixtureContractor(overrides...)
	require.NoError(t, f.contractors.Create(context.Background(), nil, c))
	return c
}

// resolved stores a resolved complaint whose completed order belongs to
// contractor.
func (f *fixture) resolved(t *testing.T, contractor *models.Contractor) (*models.Complaint, *models.WorkOrder) {
	t.Helper()
	ctx := context.Background()
	c := testutil.FixtureClassifiedComplaint(models.CategoryRoads, models.RiskHigh, func(c *models.Complaint) {
		c.Status = models.ComplaintStatusResolved
	})
	require.NoError(t, f.complaints.Create(ctx, nil, c))
	done := f.clock.Now().Add(-time.Hour)
	wo := testutil.FixtureWorkOrder(c.ID, testutil.AssignedTo(contractor.ID), func(w *models.WorkOrder) {
		w.Status = models.WorkOrderCompleted
		w.CompletedAt = &done
	})
	require.NoError(t, f.workOrders.Create(ctx, nil, wo))
	return c, wo
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := testutil.FixtureTenant()
	require.NoError(t, repository.NewTenantRepository(f.db.DB).Create(ctx, nil, tenant))

	c, err := f.svc.Submit(ctx, SubmitInput{
		CitizenEmail: " asha@example.com ",
		Description:  "Pothole on Main Street",
		Address:      "Main Street, Jayanagar",
		Media: []MediaInput{
			{FilePath: "uploads/x/1.jpg"},
			{FilePath: "uploads/x/2", OriginalFilename: "note.ogg"},
		},
	})
	require.NoError(t, err)

	assert.True(t, util.IsTrackingCode(c.TrackingCode))
	assert.Equal(t, models.ComplaintStatusSubmitted, c.Status)
	assert.Equal(t, "asha@example.com", c.CitizenEmail)
	require.NotNil(t, c.TenantID)
	assert.Equal(t, tenant.ID, *c.TenantID)

	media, err := f.complaints.ListMedia(ctx, nil, c.ID)
	require.NoError(t, err)
	require.Len(t, media, 2)
	types := []models.MediaType{media[0].MediaType, media[1].MediaType}
	assert.ElementsMatch(t, []models.MediaType{models.MediaImage, models.MediaVoice}, types)
}

func TestSubmit_RequiresEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), SubmitInput{Description: "Broken streetlight"})

	assert.True(t, errors.Is(err, models.ErrInvalidInput))
	f.db.AssertRowCount(t, "complaints", 0)
}

func TestSubmit_WorkersProcessInBackground(t *testing.T) {
	f := newFixture(t)
	f.contractor(t)
	f.svc.StartWorkers(context.Background(), 2, 8)

	c, err := f.svc.Submit(context.Background(), SubmitInput{
		CitizenEmail: "ravi@example.com",
		Description:  "Pothole on Main Street",
		Address:      "Main Street",
	})
	require.NoError(t, err)
	f.svc.Close()

	stored, err := f.complaints.GetByID(context.Background(), nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusAssigned, stored.Status)
	assert.True(t, stored.IsClassified())
}

func TestProcess_StoresClassification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Submit(ctx, SubmitInput{
		CitizenEmail: "ravi@example.com",
		Description:  "Water pipe burst near the school gate",
		Address:      "School Road",
	})
	require.NoError(t, err)

	pc, err := f.svc.Process(ctx, c.ID)
	require.NoError(t, err)

	assert.Empty(t, pc.Errors)
	stored, err := f.complaints.GetByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusWorkOrderCreated, stored.Status)
	assert.Equal(t, models.CategoryWater, *stored.Category)
	assert.True(t, stored.NeedsHumanReview)
}

func TestProcess_KeepsStatusChangedDuringRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contractor(t)
	deps := f.deps()
	deps.Notifier = &statusChanger{db: f.db, t: t, status: models.ComplaintStatusGrouped}
	f.useStages(pipeline.DefaultStages(deps))

	c, err := f.svc.Submit(ctx, SubmitInput{
		CitizenEmail: "ravi@example.com",
		Description:  "Pothole on Main Street",
		Address:      "Main Street",
	})
	require.NoError(t, err)

	pc, err := f.svc.Process(ctx, c.ID)
	require.NoError(t, err)

	require.NotEmpty(t, pc.Errors, "the run must halt on the conflicting write")
	assert.Contains(t, pc.Errors[0], pipeline.StageNotify)
	stored, err := f.complaints.GetByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusGrouped, stored.Status)
}

func TestProcess_OverlappingRunsCreateOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractor := f.contractor(t)

	stages := pipeline.DefaultStages(f.deps())
	first := &beforeStage{Stage: stages[0]}
	stages[0] = first
	f.useStages(stages)

	c, err := f.svc.Submit(ctx, SubmitInput{
		CitizenEmail: "ravi@example.com",
		Description:  "Pothole on Main Street",
		Address:      "Main Street",
	})
	require.NoError(t, err)

	// A second run, such as a backfill picking up a still-queued complaint,
	// finishes while the first is at its first stage.
	var inner *pipeline.Context
	first.hook = func() {
		inner, err = f.svc.Process(ctx, c.ID)
		require.NoError(t, err)
	}

	outer, err := f.svc.Process(ctx, c.ID)
	require.NoError(t, err)

	assert.Empty(t, inner.Errors)
	assert.NotEmpty(t, outer.Errors, "the overtaken run must halt")
	stored, err := f.complaints.GetByID(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusAssigned, stored.Status)
	f.db.AssertRowCount(t, "work_orders", 1)
	assert.Equal(t, 1, f.db.Workload(t, contractor.ID))
}

func TestProcess_UnknownComplaint(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Process(context.Background(), util.NewID())

	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Submit(ctx, SubmitInput{CitizenEmail: "a@b.c", Description: "Garbage dump on the corner", Address: "Corner"})
	require.NoError(t, err)
	_, err = f.svc.Process(ctx, c.ID)
	require.NoError(t, err)

	got, err := f.svc.Track(ctx, strings.ToLower(c.TrackingCode))
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.Complaint.ID)
	require.NotNil(t, got.WorkOrder)
	assert.Equal(t, models.OriginPipeline, got.WorkOrder.Origin)
	assert.Empty(t, got.Escalations)

	_, err = f.svc.Track(ctx, "not-a-code")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = f.svc.Track(ctx, "CIV-ZZZZ9999")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestListByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(ctx, SubmitInput{CitizenEmail: "mine@example.com", Description: "Broken bench in park", Address: "Park"})
		require.NoError(t, err)
	}
	_, err := f.svc.Submit(ctx, SubmitInput{CitizenEmail: "other@example.com", Description: "Broken bench in park", Address: "Park"})
	require.NoError(t, err)

	list, err := f.svc.ListByEmail(ctx, "mine@example.com", models.DefaultPagination())
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)

	_, err = f.svc.ListByEmail(ctx, " ", models.DefaultPagination())
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestRate_LowRatingReopensAndBlendsContractorRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractor := f.contractor(t)
	c, wo := f.resolved(t, contractor)
	assert.Equal(t, 0, f.db.Workload(t, contractor.ID))

	got, err := f.svc.Rate(ctx, c.TrackingCode, 1, "still broken")
	require.NoError(t, err)

	assert.Equal(t, models.ComplaintStatusInProgress, got.Status)
	assert.Equal(t, 1, got.ReopenCount)
	require.NotNil(t, got.VerifiedFixed)
	assert.False(t, *got.VerifiedFixed)

	order, err := f.workOrders.GetByID(ctx, nil, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderInProgress, order.Status)
	assert.Nil(t, order.CompletedAt)
	assert.Equal(t, 1, f.db.Workload(t, contractor.ID))

	updated, err := f.contractors.GetByID(ctx, nil, contractor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.1, updated.Rating, 1e-9)

	require.Len(t, f.notifier.messages, 1)
	assert.True(t, strings.HasPrefix(f.notifier.messages[0], "in_progress: "))
}

func TestRate_HighRatingKeepsStatus(t *testing.T) {
	f := newFixture(t)
	contractor := f.contractor(t)
	c, _ := f.resolved(t, contractor)

	got, err := f.svc.Rate(context.Background(), c.TrackingCode, 5, "")
	require.NoError(t, err)

	assert.Equal(t, models.ComplaintStatusResolved, got.Status)
	assert.Equal(t, 0, got.ReopenCount)
	updated, err := f.contractors.GetByID(context.Background(), nil, contractor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.3, updated.Rating, 1e-9)
	assert.Empty(t, f.notifier.messages)
}

func TestRate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractor := f.contractor(t)
	c, _ := f.resolved(t, contractor)
	open := testutil.FixtureComplaint()
	require.NoError(t, f.complaints.Create(ctx, nil, open))

	_, err := f.svc.Rate(ctx, c.TrackingCode, 6, "")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = f.svc.Rate(ctx, open.TrackingCode, 4, "")
	assert.True(t, errors.Is(err, models.ErrConflict))

	_, err = f.svc.Rate(ctx, c.TrackingCode, 4, "")
	require.NoError(t, err)
	_, err = f.svc.Rate(ctx, c.TrackingCode, 4, "")
	assert.True(t, errors.Is(err, models.ErrConflict), "second rating is rejected")
}

func TestVerify(t *testing.T) {
	t.Run("fixed closes", func(t *testing.T) {
		f := newFixture(t)
		c, _ := f.resolved(t, f.contractor(t))

		got, err := f.svc.Verify(context.Background(), c.TrackingCode, true)
		require.NoError(t, err)

		assert.Equal(t, models.ComplaintStatusClosed, got.Status)
		require.NotNil(t, got.VerifiedFixed)
		assert.True(t, *got.VerifiedFixed)
	})

	t.Run("not fixed reopens", func(t *testing.T) {
		f := newFixture(t)
		contractor := f.contractor(t)
		c, _ := f.resolved(t, contractor)

		got, err := f.svc.Verify(context.Background(), c.TrackingCode, false)
		require.NoError(t, err)

		assert.Equal(t, models.ComplaintStatusInProgress, got.Status)
		assert.Equal(t, 1, got.ReopenCount)
		assert.Equal(t, 1, f.db.Workload(t, contractor.ID))
	})

	t.Run("open complaint is rejected", func(t *testing.T) {
		f := newFixture(t)
		open := testutil.FixtureComplaint()
		require.NoError(t, f.complaints.Create(context.Background(), nil, open))

		_, err := f.svc.Verify(context.Background(), open.TrackingCode, true)
		assert.True(t, errors.Is(err, models.ErrConflict))
	})
}

func TestBackfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contractor(t)
	for _, desc := range []string{"Pothole on Main Street", "Streetlight not working at night", "x"} {
		_, err := f.svc.Submit(ctx, SubmitInput{CitizenEmail: "a@b.c", Description: desc, Address: "Somewhere"})
		require.NoError(t, err)
	}

	result, err := f.svc.Backfill(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Updated)

	again, err := f.svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Processed, "rejected and classified complaints are not picked up again")
}
