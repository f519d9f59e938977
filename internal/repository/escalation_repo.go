package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// EscalationRepository handles the append-only escalation log.
type EscalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new escalation repository.
func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// Create appends an escalation record.
func (r *EscalationRepository) Create(ctx context.Context, tx *sql.Tx, e *models.Escalation) error {
	if e.ID == "" || e.ComplaintID == "" {
		return fmt.Errorf("validation failed: id and complaint_id are required: %w", models.ErrInvalidInput)
	}
	if !e.FromLevel.Valid() || !e.ToLevel.Valid() {
		return fmt.Errorf("validation failed: invalid levels %q -> %q: %w", e.FromLevel, e.ToLevel, models.ErrInvalidInput)
	}
	if e.EscalatedAt.IsZero() {
		e.EscalatedAt = time.Now().UTC()
	}
	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO escalations (id, complaint_id, work_order_id, from_level, to_level, reason, escalated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ComplaintID, e.WorkOrderID, string(e.FromLevel), string(e.ToLevel), e.Reason, formatTime(e.EscalatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting escalation: %w", err)
	}
	return nil
}

// ListByComplaint returns the escalations of a complaint, oldest first.
func (r *EscalationRepository) ListByComplaint(ctx context.Context, tx *sql.Tx, complaintID string) ([]*models.Escalation, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, `
		SELECT id, complaint_id, work_order_id, from_level, to_level, reason, escalated_at
		FROM escalations WHERE complaint_id = ?
		ORDER BY escalated_at, rowid`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("querying escalations: %w", err)
	}
	defer rows.Close()

	var out []*models.Escalation
	for rows.Next() {
		var e models.Escalation
		var workOrderID sql.NullString
		var at string
		if err := rows.Scan(&e.ID, &e.ComplaintID, &workOrderID, &e.FromLevel, &e.ToLevel, &e.Reason, &at); err != nil {
			return nil, fmt.Errorf("scanning escalation row: %w", err)
		}
		e.WorkOrderID = stringPtr(workOrderID)
		e.EscalatedAt = parseTime(at)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ExistsForWorkOrder reports whether a work order has been escalated before.
func (r *EscalationRepository) ExistsForWorkOrder(ctx context.Context, tx *sql.Tx, workOrderID string) (bool, error) {
	var n int
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM escalations WHERE work_order_id = ?`, workOrderID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking escalations: %w", err)
	}
	return n > 0, nil
}

// CountSince counts escalations recorded at or after since.
func (r *EscalationRepository) CountSince(ctx context.Context, tx *sql.Tx, since time.Time) (int, error) {
	var n int
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM escalations WHERE escalated_at >= ?`, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting escalations: %w", err)
	}
	return n, nil
}
