package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// TenantRepository handles tenant data access.
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create inserts a new tenant.
func (r *TenantRepository) Create(ctx context.Context, tx *sql.Tx, t *models.Tenant) error {
	if t.ID == "" || t.Name == "" {
		return fmt.Errorf("validation failed: id and name are required: %w", models.ErrInvalidInput)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := conn(r.db, tx).ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Name, formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

// GetByName retrieves a tenant by its unique name.
func (r *TenantRepository) GetByName(ctx context.Context, tx *sql.Tx, name string) (*models.Tenant, error) {
	return r.scanOne(conn(r.db, tx).QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE name = ?`, name))
}

// First returns the oldest tenant. Submissions without a tenant are
// attached to it.
func (r *TenantRepository) First(ctx context.Context, tx *sql.Tx) (*models.Tenant, error) {
	return r.scanOne(conn(r.db, tx).QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants ORDER BY created_at, id LIMIT 1`))
}

func (r *TenantRepository) scanOne(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	var created string
	err := row.Scan(&t.ID, &t.Name, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tenant: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	t.CreatedAt = parseTime(created)
	return &t, nil
}
