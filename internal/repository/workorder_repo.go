package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// WorkOrderRepository handles work order data access.
type WorkOrderRepository struct {
	db *sql.DB
}

// NewWorkOrderRepository creates a new work order repository.
func NewWorkOrderRepository(db *sql.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

const workOrderColumns = `
	id, complaint_id, tenant_id, contractor_id, origin, department, status,
	sla_deadline, estimated_cost, materials, notes, created_at, updated_at, completed_at`

// Create inserts a new work order. A second order of the same origin for
// a complaint is rejected with ErrConflict.
func (r *WorkOrderRepository) Create(ctx context.Context, tx *sql.Tx, w *models.WorkOrder) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = w.CreatedAt
	}

	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO work_orders (`+workOrderColumns+`)
		VALUES (`+placeholders(14)+`)`,
		w.ID,
		w.ComplaintID,
		w.TenantID,
		w.ContractorID,
		string(w.Origin),
		nullableString(w.Department),
		string(w.Status),
		formatTime(w.SLADeadline),
		w.EstimatedCost,
		nullableString(w.Materials),
		nullableString(w.Notes),
		formatTime(w.CreatedAt),
		formatTime(w.UpdatedAt),
		nullableTimePtr(w.CompletedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%s work order for complaint %s: %w", w.Origin, w.ComplaintID, models.ErrConflict)
		}
		return fmt.Errorf("inserting work order: %w", err)
	}
	return nil
}

// GetByID retrieves a work order by ID.
func (r *WorkOrderRepository) GetByID(ctx context.Context, tx *sql.Tx, id string) (*models.WorkOrder, error) {
	w, err := scanWorkOrder(conn(r.db, tx).QueryRowContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("work order %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning work order: %w", err)
	}
	return w, nil
}

// GetByComplaint returns the order of the given origin for a complaint.
func (r *WorkOrderRepository) GetByComplaint(ctx context.Context, tx *sql.Tx, complaintID string, origin models.WorkOrderOrigin) (*models.WorkOrder, error) {
	w, err := scanWorkOrder(conn(r.db, tx).QueryRowContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE complaint_id = ? AND origin = ?`,
		complaintID, string(origin)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s work order for complaint %s: %w", origin, complaintID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning work order: %w", err)
	}
	return w, nil
}

// ListByComplaint returns every order for a complaint, oldest first.
func (r *WorkOrderRepository) ListByComplaint(ctx context.Context, tx *sql.Tx, complaintID string) ([]*models.WorkOrder, error) {
	return r.query(ctx, tx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE complaint_id = ? ORDER BY created_at, id`, complaintID)
}

// ListActive returns all orders that are not completed, earliest deadline first.
func (r *WorkOrderRepository) ListActive(ctx context.Context, tx *sql.Tx) ([]*models.WorkOrder, error) {
	return r.query(ctx, tx, `
		SELECT `+workOrderColumns+` FROM work_orders
		WHERE status IN ('created', 'assigned', 'in_progress')
		ORDER BY sla_deadline, id`)
}

// List retrieves work orders with filtering and pagination, newest first.
func (r *WorkOrderRepository) List(ctx context.Context, filter models.WorkOrderFilter, page models.Pagination) (*models.WorkOrderList, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.ContractorID != nil {
		conditions = append(conditions, "contractor_id = ?")
		args = append(args, *filter.ContractorID)
	}
	if filter.Origin != nil {
		conditions = append(conditions, "origin = ?")
		args = append(args, string(*filter.Origin))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "status IN ('created', 'assigned', 'in_progress')")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM work_orders "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting work orders: %w", err)
	}

	orders, err := r.query(ctx, nil,
		fmt.Sprintf(`SELECT %s FROM work_orders %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, workOrderColumns, where),
		append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, err
	}

	return &models.WorkOrderList{
		WorkOrders: orders,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.Limit(),
		TotalPages: page.TotalPages(total),
	}, nil
}

// Update persists contractor, status, cost, notes and completion time.
func (r *WorkOrderRepository) Update(ctx context.Context, tx *sql.Tx, w *models.WorkOrder) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	w.UpdatedAt = nowIfZero(w.UpdatedAt)

	result, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE work_orders SET
			contractor_id = ?, department = ?, status = ?, sla_deadline = ?,
			estimated_cost = ?, materials = ?, notes = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		w.ContractorID,
		nullableString(w.Department),
		string(w.Status),
		formatTime(w.SLADeadline),
		w.EstimatedCost,
		nullableString(w.Materials),
		nullableString(w.Notes),
		formatTime(w.UpdatedAt),
		nullableTimePtr(w.CompletedAt),
		w.ID,
	)
	return checkUpdated(result, err, "work order", w.ID)
}

// HasClusterOrder reports whether any of the complaints already has a
// cluster work order.
func (r *WorkOrderRepository) HasClusterOrder(ctx context.Context, tx *sql.Tx, complaintIDs []string) (bool, error) {
	if len(complaintIDs) == 0 {
		return false, nil
	}
	args := make([]any, 0, len(complaintIDs))
	for _, id := range complaintIDs {
		args = append(args, id)
	}
	var n int
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM work_orders WHERE origin = 'cluster' AND complaint_id IN (`+placeholders(len(args))+`)`,
		args...).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking cluster orders: %w", err)
	}
	return n > 0, nil
}

// CountClustersSince counts cluster orders created at or after since.
func (r *WorkOrderRepository) CountClustersSince(ctx context.Context, tx *sql.Tx, since time.Time) (int, error) {
	var n int
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM work_orders WHERE origin = 'cluster' AND created_at >= ?`, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting cluster orders: %w", err)
	}
	return n, nil
}

func (r *WorkOrderRepository) query(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]*models.WorkOrder, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying work orders: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkOrder
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning work order row: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating work orders: %w", err)
	}
	return out, nil
}

func scanWorkOrder(row rowScanner) (*models.WorkOrder, error) {
	var (
		w                               models.WorkOrder
		tenantID, contractorID          sql.NullString
		department, materials, notes    sql.NullString
		deadline, created, updated      string
		completed                       sql.NullString
	)
	err := row.Scan(
		&w.ID, &w.ComplaintID, &tenantID, &contractorID, &w.Origin, &department, &w.Status,
		&deadline, &w.EstimatedCost, &materials, &notes, &created, &updated, &completed,
	)
	if err != nil {
		return nil, err
	}

	w.TenantID = stringPtr(tenantID)
	w.ContractorID = stringPtr(contractorID)
	w.Department = department.String
	w.Materials = materials.String
	w.Notes = notes.String
	w.SLADeadline = parseTime(deadline)
	w.CreatedAt = parseTime(created)
	w.UpdatedAt = parseTime(updated)
	w.CompletedAt = timePtr(completed)
	return &w, nil
}
