package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// NotificationRepository stores the outbound message audit trail.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create records a notification.
func (r *NotificationRepository) Create(ctx context.Context, tx *sql.Tx, n *models.Notification) error {
	if n.ID == "" || n.Recipient == "" {
		return fmt.Errorf("validation failed: id and recipient are required: %w", models.ErrInvalidInput)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO notifications (id, complaint_id, recipient, kind, subject, body, sent, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ComplaintID, n.Recipient, string(n.Kind), n.Subject, n.Body,
		n.Sent, nullableTimePtr(n.SentAt), formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// MarkSent flags a notification as delivered.
func (r *NotificationRepository) MarkSent(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	result, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE notifications SET sent = 1, sent_at = ? WHERE id = ?`, formatTime(at), id)
	return checkUpdated(result, err, "notification", id)
}

// ListByComplaint returns the notifications of a complaint, oldest first.
func (r *NotificationRepository) ListByComplaint(ctx context.Context, tx *sql.Tx, complaintID string) ([]*models.Notification, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, `
		SELECT id, complaint_id, recipient, kind, subject, body, sent, sent_at, created_at
		FROM notifications WHERE complaint_id = ?
		ORDER BY created_at, rowid`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		var complaint, sentAt sql.NullString
		var created string
		if err := rows.Scan(&n.ID, &complaint, &n.Recipient, &n.Kind, &n.Subject, &n.Body, &n.Sent, &sentAt, &created); err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		n.ComplaintID = stringPtr(complaint)
		n.SentAt = timePtr(sentAt)
		n.CreatedAt = parseTime(created)
		out = append(out, &n)
	}
	return out, rows.Err()
}
