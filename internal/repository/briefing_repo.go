package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// BriefingRepository stores generated daily briefings.
type BriefingRepository struct {
	db *sql.DB
}

// NewBriefingRepository creates a new briefing repository.
func NewBriefingRepository(db *sql.DB) *BriefingRepository {
	return &BriefingRepository{db: db}
}

// Create persists a briefing.
func (r *BriefingRepository) Create(ctx context.Context, tx *sql.Tx, b *models.DailyBriefing) error {
	if b.ID == "" || b.Narrative == "" {
		return fmt.Errorf("validation failed: id and narrative are required: %w", models.ErrInvalidInput)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.OpenByCategory == nil {
		b.OpenByCategory = map[models.Category]int{}
	}
	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO daily_briefings (
			id, tenant_id, brief_date, new_complaints, resolved_today, total_open,
			sla_at_risk, escalations_today, clusters_detected, open_by_category,
			narrative, created_at
		) VALUES (`+placeholders(12)+`)`,
		b.ID, b.TenantID, formatTime(b.BriefDate),
		b.NewComplaints, b.ResolvedToday, b.TotalOpen,
		b.SLAAtRisk, b.EscalationsToday, b.ClustersDetected, marshalJSON(b.OpenByCategory),
		b.Narrative, formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting briefing: %w", err)
	}
	return nil
}

// Latest returns the most recently generated briefing.
func (r *BriefingRepository) Latest(ctx context.Context, tx *sql.Tx) (*models.DailyBriefing, error) {
	var (
		b                  models.DailyBriefing
		tenantID           sql.NullString
		date, created, obc string
	)
	err := conn(r.db, tx).QueryRowContext(ctx, `
		SELECT id, tenant_id, brief_date, new_complaints, resolved_today, total_open,
			sla_at_risk, escalations_today, clusters_detected, open_by_category,
			narrative, created_at
		FROM daily_briefings
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`).Scan(
		&b.ID, &tenantID, &date, &b.NewComplaints, &b.ResolvedToday, &b.TotalOpen,
		&b.SLAAtRisk, &b.EscalationsToday, &b.ClustersDetected, &obc,
		&b.Narrative, &created,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("briefing: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning briefing: %w", err)
	}
	b.TenantID = stringPtr(tenantID)
	b.BriefDate = parseTime(date)
	b.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(obc), &b.OpenByCategory); err != nil {
		return nil, fmt.Errorf("decoding open_by_category: %w", err)
	}
	return &b, nil
}
