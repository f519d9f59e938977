package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// ContractorRepository handles contractor data access, including the
// active workload counter.
type ContractorRepository struct {
	db *sql.DB
}

// NewContractorRepository creates a new contractor repository.
func NewContractorRepository(db *sql.DB) *ContractorRepository {
	return &ContractorRepository{db: db}
}

const contractorColumns = `id, tenant_id, name, specializations, rating, active_workload, zone, phone, created_at`

// Create inserts a new contractor.
func (r *ContractorRepository) Create(ctx context.Context, tx *sql.Tx, c *models.Contractor) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Specializations == nil {
		c.Specializations = []models.Category{}
	}

	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO contractors (`+contractorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.TenantID,
		c.Name,
		marshalJSON(c.Specializations),
		c.Rating,
		c.ActiveWorkload,
		nullableString(c.Zone),
		nullableString(c.Phone),
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting contractor: %w", err)
	}
	return nil
}

// GetByID retrieves a contractor by ID.
func (r *ContractorRepository) GetByID(ctx context.Context, tx *sql.Tx, id string) (*models.Contractor, error) {
	row := conn(r.db, tx).QueryRowContext(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE id = ?`, id)
	c, err := scanContractor(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contractor %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning contractor: %w", err)
	}
	return c, nil
}

// ListByTenant returns the contractors of a tenant in creation order.
// A nil tenant matches contractors that have no tenant.
func (r *ContractorRepository) ListByTenant(ctx context.Context, tx *sql.Tx, tenantID *string) ([]*models.Contractor, error) {
	return r.query(ctx, tx, `
		SELECT `+contractorColumns+` FROM contractors
		WHERE tenant_id IS ?
		ORDER BY created_at, id`, tenantID)
}

// List returns all contractors in creation order.
func (r *ContractorRepository) List(ctx context.Context) ([]*models.Contractor, error) {
	return r.query(ctx, nil, `SELECT `+contractorColumns+` FROM contractors ORDER BY created_at, id`)
}

func (r *ContractorRepository) query(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]*models.Contractor, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying contractors: %w", err)
	}
	defer rows.Close()

	var out []*models.Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contractor row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contractors: %w", err)
	}
	return out, nil
}

// IncrementWorkload adds one active work order to the contractor.
func (r *ContractorRepository) IncrementWorkload(ctx context.Context, tx *sql.Tx, id string) error {
	return r.adjust(ctx, tx, id, `UPDATE contractors SET active_workload = active_workload + 1 WHERE id = ?`)
}

// DecrementWorkload removes one active work order, never going below zero.
func (r *ContractorRepository) DecrementWorkload(ctx context.Context, tx *sql.Tx, id string) error {
	return r.adjust(ctx, tx, id, `UPDATE contractors SET active_workload = MAX(active_workload - 1, 0) WHERE id = ?`)
}

func (r *ContractorRepository) adjust(ctx context.Context, tx *sql.Tx, id, query string) error {
	result, err := conn(r.db, tx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("updating contractor workload: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("contractor %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// UpdateRating stores a new average rating.
func (r *ContractorRepository) UpdateRating(ctx context.Context, tx *sql.Tx, id string, rating float64) error {
	result, err := conn(r.db, tx).ExecContext(ctx, `UPDATE contractors SET rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return fmt.Errorf("updating contractor rating: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("contractor %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// WorkloadDrift is a contractor whose stored counter disagrees with the
// number of active work orders referencing it.
type WorkloadDrift struct {
	ContractorID string
	Name         string
	Stored       int
	Actual       int
}

// CheckWorkloads compares every stored counter against the active work
// orders that reference the contractor.
func (r *ContractorRepository) CheckWorkloads(ctx context.Context) ([]WorkloadDrift, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.active_workload,
			(SELECT COUNT(*) FROM work_orders w
			 WHERE w.contractor_id = c.id AND w.status IN ('created', 'assigned', 'in_progress')) AS actual
		FROM contractors c
		ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("checking workloads: %w", err)
	}
	defer rows.Close()

	var drift []WorkloadDrift
	for rows.Next() {
		var d WorkloadDrift
		if err := rows.Scan(&d.ContractorID, &d.Name, &d.Stored, &d.Actual); err != nil {
			return nil, fmt.Errorf("scanning workload row: %w", err)
		}
		if d.Stored != d.Actual {
			drift = append(drift, d)
		}
	}
	return drift, rows.Err()
}

// ReconcileWorkloads rewrites every counter from the active work orders.
// It returns the number of contractors whose counter changed.
func (r *ContractorRepository) ReconcileWorkloads(ctx context.Context, tx *sql.Tx) (int, error) {
	result, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE contractors SET active_workload = (
			SELECT COUNT(*) FROM work_orders w
			WHERE w.contractor_id = contractors.id AND w.status IN ('created', 'assigned', 'in_progress')
		)
		WHERE active_workload != (
			SELECT COUNT(*) FROM work_orders w
			WHERE w.contractor_id = contractors.id AND w.status IN ('created', 'assigned', 'in_progress')
		)`)
	if err != nil {
		return 0, fmt.Errorf("reconciling workloads: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContractor(row rowScanner) (*models.Contractor, error) {
	var (
		c           models.Contractor
		tenantID    sql.NullString
		specs       string
		zone, phone sql.NullString
		createdStr  string
	)
	if err := row.Scan(&c.ID, &tenantID, &c.Name, &specs, &c.Rating, &c.ActiveWorkload, &zone, &phone, &createdStr); err != nil {
		return nil, err
	}

	c.TenantID = stringPtr(tenantID)
	c.Zone = zone.String
	c.Phone = phone.String
	c.CreatedAt = parseTime(createdStr)
	if err := json.Unmarshal([]byte(specs), &c.Specializations); err != nil {
		return nil, fmt.Errorf("decoding specializations for %s: %w", c.ID, err)
	}
	return &c, nil
}
