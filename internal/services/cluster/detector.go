// Package cluster groups related open complaints that share a category and
// a small geographic cell into a single work order.
package cluster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/civicflow/civicflow/internal/assignment"
	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

// UnknownArea is the cell of complaints without coordinates or area.
const UnknownArea = "unknown_area"

const (
	maxNoteIDs         = 10
	maxNoteSamples     = 5
	maxSampleRunes     = 80
	unknownDistrictTag = "unknown"
)

var errExists = errors.New("cluster already has a work order")

// Settings tune detection.
type Settings struct {
	Lookback   time.Duration
	MinSize    int
	Precision  int
	SLA        time.Duration
	CostFactor float64
}

// DefaultSettings returns the standard detection settings.
func DefaultSettings() Settings {
	return Settings{
		Lookback:   7 * 24 * time.Hour,
		MinSize:    2,
		Precision:  2,
		SLA:        48 * time.Hour,
		CostFactor: 0.7,
	}
}

// Detector finds clusters and creates their grouped work orders.
type Detector struct {
	db          *sql.DB
	complaints  *repository.ComplaintRepository
	workOrders  *repository.WorkOrderRepository
	contractors *repository.ContractorRepository

	settings Settings
	scorer   *assignment.Scorer
	clock    util.Clock
	logger   *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock sets the clock.
func WithClock(c util.Clock) Option { return func(d *Detector) { d.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Detector) { d.logger = l } }

// NewDetector creates a detector. Zero settings fall back to defaults.
func NewDetector(db *sql.DB, settings Settings, opts ...Option) *Detector {
	def := DefaultSettings()
	if settings.Lookback <= 0 {
		settings.Lookback = def.Lookback
	}
	if settings.MinSize < 2 {
		settings.MinSize = def.MinSize
	}
	if settings.Precision < 0 {
		settings.Precision = def.Precision
	}
	if settings.SLA <= 0 {
		settings.SLA = def.SLA
	}
	if settings.CostFactor <= 0 {
		settings.CostFactor = def.CostFactor
	}
	d := &Detector{
		db:          db,
		complaints:  repository.NewComplaintRepository(db),
		workOrders:  repository.NewWorkOrderRepository(db),
		contractors: repository.NewContractorRepository(db),
		settings:    settings,
		scorer:      assignment.NewScorer(),
		clock:       util.SystemClock{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cell returns the geographic cell of a complaint: rounded coordinates
// when present, otherwise the district, then the ward.
func Cell(c *models.Complaint, precision int) string {
	if c.HasCoordinates() {
		return roundCoord(*c.Latitude, precision) + "_" + roundCoord(*c.Longitude, precision)
	}
	if c.District != "" {
		return c.District
	}
	if c.Ward != "" {
		return c.Ward
	}
	return UnknownArea
}

func roundCoord(v float64, precision int) string {
	p := math.Pow(10, float64(precision))
	return strconv.FormatFloat(math.Round(v*p)/p, 'f', precision, 64)
}

// Bucket is a group of candidate complaints sharing a key.
type Bucket struct {
	Key     string
	Members []*models.Complaint
}

// Buckets groups complaints by category and cell, preserving the order
// in which each key is first seen.
func Buckets(complaints []*models.Complaint, precision int) []Bucket {
	index := make(map[string]int)
	var out []Bucket
	for _, c := range complaints {
		if c.Category == nil {
			continue
		}
		key := string(*c.Category) + "|" + Cell(c, precision)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Bucket{Key: key})
		}
		out[i].Members = append(out[i].Members, c)
	}
	return out
}

// Anchor returns the member with the highest priority score, the first
// one on ties.
func Anchor(members []*models.Complaint) *models.Complaint {
	var anchor *models.Complaint
	for _, c := range members {
		if anchor == nil || c.PriorityScore > anchor.PriorityScore {
			anchor = c
		}
	}
	return anchor
}

// Detect runs one detection pass and returns the number of clusters
// created. A failure on one cluster is logged and does not stop the pass.
func (d *Detector) Detect(ctx context.Context) (int, error) {
	now := d.clock.Now()
	candidates, err := d.complaints.ListClusterCandidates(ctx, nil, now.Add(-d.settings.Lookback))
	if err != nil {
		return 0, fmt.Errorf("listing cluster candidates: %w", err)
	}

	created := 0
	for _, b := range Buckets(candidates, d.settings.Precision) {
		if len(b.Members) < d.settings.MinSize {
			continue
		}
		if err := ctx.Err(); err != nil {
			return created, err
		}

		var order *models.WorkOrder
		err := database.WithTx(ctx, d.db, func(tx *sql.Tx) error {
			var err error
			order, err = d.group(ctx, tx, b.Members, now)
			return err
		})
		switch {
		case errors.Is(err, errExists):
			continue
		case err != nil:
			d.logger.Error("creating cluster failed", "cluster", b.Key, "error", err)
			continue
		}
		created++
		d.logger.Info("cluster detected",
			"cluster", b.Key,
			"complaints", len(b.Members),
			"work_order", order.ID,
			"complaint", order.ComplaintID)
	}
	return created, nil
}

func (d *Detector) group(ctx context.Context, tx *sql.Tx, members []*models.Complaint, now time.Time) (*models.WorkOrder, error) {
	ids := make([]string, len(members))
	for i, c := range members {
		ids[i] = c.ID
	}
	exists, err := d.workOrders.HasClusterOrder(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errExists
	}

	anchor := Anchor(members)
	category := *anchor.Category
	contractors, err := d.contractors.ListByTenant(ctx, tx, anchor.TenantID)
	if err != nil {
		return nil, err
	}
	best := d.scorer.Best(contractors, category, anchor.District, "")

	order := &models.WorkOrder{
		ID:            util.NewID(),
		ComplaintID:   anchor.ID,
		TenantID:      anchor.TenantID,
		Origin:        models.OriginCluster,
		Department:    category.Department(),
		Status:        models.WorkOrderCreated,
		SLADeadline:   now.Add(d.settings.SLA),
		EstimatedCost: category.BaseCost() * float64(len(members)) * d.settings.CostFactor,
		Materials:     category.Materials(),
		Notes:         Notes(members, category, anchor.District),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if best != nil {
		order.ContractorID = &best.ID
		order.Status = models.WorkOrderAssigned
	}
	if err := d.workOrders.Create(ctx, tx, order); err != nil {
		return nil, err
	}
	if best != nil {
		if err := d.contractors.IncrementWorkload(ctx, tx, best.ID); err != nil {
			return nil, err
		}
	}

	for _, c := range members {
		if c.ID == anchor.ID || !c.Status.IsOpen() {
			continue
		}
		if err := d.complaints.UpdateStatus(ctx, tx, c.ID, models.ComplaintStatusGrouped, now); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Notes builds the description of a grouped work order.
func Notes(members []*models.Complaint, category models.Category, district string) string {
	if district == "" {
		district = unknownDistrictTag
	}
	ids := make([]string, 0, maxNoteIDs)
	samples := make([]string, 0, maxNoteSamples)
	for i, c := range members {
		if i < maxNoteIDs {
			ids = append(ids, c.ID)
		}
		if i < maxNoteSamples {
			samples = append(samples, truncate(c.Description, maxSampleRunes))
		}
	}
	return fmt.Sprintf("%s %d related %s complaints detected in %s district. Auto-generated grouped work order. Complaint IDs: %s. Sample descriptions: %s",
		models.ClusterTag, len(members), category, district, strings.Join(ids, ", "), strings.Join(samples, "; "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
