package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// HeatmapLimit caps the number of points on the public map.
const HeatmapLimit = 500

// SLARiskWindow is how close to its deadline an active order must be to
// count as at risk in the daily briefing.
const SLARiskWindow = 12 * time.Hour

// AnalyticsRepository answers aggregate queries for the admin and public
// dashboards and the daily briefing.
type AnalyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Analytics returns complaint counts overall and by status, category and risk.
func (r *AnalyticsRepository) Analytics(ctx context.Context) (*models.Analytics, error) {
	a := &models.Analytics{}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`).Scan(&a.Total); err != nil {
		return nil, fmt.Errorf("counting complaints: %w", err)
	}

	var err error
	if a.ByStatus, err = countBy(ctx, r.db, `SELECT status, COUNT(*) FROM complaints GROUP BY status`); err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	if a.ByCategory, err = countBy(ctx, r.db, `SELECT category, COUNT(*) FROM complaints GROUP BY category`); err != nil {
		return nil, fmt.Errorf("counting by category: %w", err)
	}
	if a.ByRiskLevel, err = countBy(ctx, r.db, `SELECT risk_level, COUNT(*) FROM complaints GROUP BY risk_level`); err != nil {
		return nil, fmt.Errorf("counting by risk level: %w", err)
	}
	return a, nil
}

type completedOrder struct {
	category     sql.NullString
	contractorID sql.NullString
	hours        float64
	breached     bool
}

// Performance summarises completed work against SLAs.
func (r *AnalyticsRepository) Performance(ctx context.Context) (*models.Performance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.category, w.contractor_id, w.created_at, w.completed_at, w.sla_deadline
		FROM work_orders w
		JOIN complaints c ON c.id = w.complaint_id
		WHERE w.status = 'completed' AND w.completed_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("querying completed orders: %w", err)
	}

	var orders []completedOrder
	for rows.Next() {
		var o completedOrder
		var created, completed, deadline string
		if err := rows.Scan(&o.category, &o.contractorID, &created, &completed, &deadline); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning completed order: %w", err)
		}
		createdAt, completedAt := parseTime(created), parseTime(completed)
		o.hours = completedAt.Sub(createdAt).Hours()
		o.breached = completedAt.After(parseTime(deadline))
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating completed orders: %w", err)
	}

	perf := &models.Performance{
		AvgResolutionHours: make(map[string]float64),
		TotalMeasured:      len(orders),
		Contractors:        []models.ContractorPerformance{},
	}

	type acc struct {
		sum float64
		n   int
	}
	byCategory := make(map[string]*acc)
	byContractor := make(map[string]*acc)
	for _, o := range orders {
		cat := "unclassified"
		if o.category.Valid {
			cat = o.category.String
		}
		if byCategory[cat] == nil {
			byCategory[cat] = &acc{}
		}
		byCategory[cat].sum += o.hours
		byCategory[cat].n++

		if o.contractorID.Valid {
			if byContractor[o.contractorID.String] == nil {
				byContractor[o.contractorID.String] = &acc{}
			}
			byContractor[o.contractorID.String].sum += o.hours
			byContractor[o.contractorID.String].n++
		}
		if o.breached {
			perf.SLABreaches++
		}
	}
	for cat, a := range byCategory {
		perf.AvgResolutionHours[cat] = round1(a.sum / float64(a.n))
	}
	if perf.TotalMeasured > 0 {
		perf.SLABreachRate = round1(float64(perf.SLABreaches) / float64(perf.TotalMeasured) * 100)
	}

	contractors, err := NewContractorRepository(r.db).List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range contractors {
		cp := models.ContractorPerformance{ContractorID: c.ID, Name: c.Name, Rating: c.Rating}
		if a := byContractor[c.ID]; a != nil {
			cp.Completed = a.n
			cp.AvgResolutionHours = round1(a.sum / float64(a.n))
		}
		perf.Contractors = append(perf.Contractors, cp)
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM escalations`).Scan(&perf.TotalEscalations); err != nil {
		return nil, fmt.Errorf("counting escalations: %w", err)
	}
	return perf, nil
}

// PublicDashboard returns the anonymous transparency view.
func (r *AnalyticsRepository) PublicDashboard(ctx context.Context) (*models.PublicDashboard, error) {
	d := &models.PublicDashboard{Heatmap: []models.HeatmapPoint{}}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status IN ('resolved', 'closed') THEN 1 ELSE 0 END), 0)
		FROM complaints`).Scan(&d.Total, &d.Resolved)
	if err != nil {
		return nil, fmt.Errorf("counting complaints: %w", err)
	}
	if d.Total > 0 {
		d.ResolutionRate = round1(float64(d.Resolved) / float64(d.Total) * 100)
	}

	if d.ByCategory, err = countBy(ctx, r.db, `SELECT category, COUNT(*) FROM complaints GROUP BY category`); err != nil {
		return nil, fmt.Errorf("counting by category: %w", err)
	}
	if d.ByStatus, err = countBy(ctx, r.db, `SELECT status, COUNT(*) FROM complaints GROUP BY status`); err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT latitude, longitude, category, risk_level FROM complaints
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL AND category IS NOT NULL
			AND NOT (latitude = 0 AND longitude = 0)
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, HeatmapLimit)
	if err != nil {
		return nil, fmt.Errorf("querying heatmap: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.HeatmapPoint
		if err := rows.Scan(&p.Latitude, &p.Longitude, &p.Category, &p.RiskLevel); err != nil {
			return nil, fmt.Errorf("scanning heatmap point: %w", err)
		}
		d.Heatmap = append(d.Heatmap, p)
	}
	return d, rows.Err()
}

// BriefingStats collects the daily briefing aggregates for the day that
// starts at dayStart.
func (r *AnalyticsRepository) BriefingStats(ctx context.Context, dayStart, now time.Time) (*models.BriefingStats, error) {
	s := &models.BriefingStats{OpenByCategory: make(map[models.Category]int)}
	start := formatTime(dayStart)

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&s.NewComplaints, `SELECT COUNT(*) FROM complaints WHERE created_at >= ?`, []any{start}},
		{&s.ResolvedToday, `SELECT COUNT(*) FROM complaints WHERE status IN ('resolved', 'closed') AND updated_at >= ?`, []any{start}},
		{&s.TotalOpen, `SELECT COUNT(*) FROM complaints WHERE status NOT IN ('resolved', 'closed')`, nil},
		{&s.SLAAtRisk, `SELECT COUNT(*) FROM work_orders WHERE status IN ('created', 'assigned', 'in_progress') AND sla_deadline <= ?`,
			[]any{formatTime(now.Add(SLARiskWindow))}},
		{&s.EscalationsToday, `SELECT COUNT(*) FROM escalations WHERE escalated_at >= ?`, []any{start}},
		{&s.ClustersDetected, `SELECT COUNT(*) FROM work_orders WHERE origin = 'cluster' AND created_at >= ?`, []any{start}},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("collecting briefing stats: %w", err)
		}
	}

	byCategory, err := countBy(ctx, r.db, `
		SELECT category, COUNT(*) FROM complaints
		WHERE category IS NOT NULL AND status NOT IN ('resolved', 'closed')
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("counting open by category: %w", err)
	}
	for cat, n := range byCategory {
		s.OpenByCategory[models.Category(cat)] = n
	}
	return s, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
