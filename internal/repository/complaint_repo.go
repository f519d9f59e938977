package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/civicflow/civicflow/internal/models"
)

// ComplaintRepository handles complaint and attachment data access.
type ComplaintRepository struct {
	db *sql.DB
}

// NewComplaintRepository creates a new complaint repository.
func NewComplaintRepository(db *sql.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

const complaintColumns = `
	id, tenant_id, tracking_code, citizen_email, citizen_phone, citizen_name,
	description, latitude, longitude, address, ward, block, district, city, state,
	category, subcategory, classification_confidence, needs_human_review,
	priority_score, risk_level, department, status,
	satisfaction_rating, satisfaction_comment, verified_fixed, reopen_count,
	created_at, updated_at`

// Create inserts a new complaint.
func (r *ComplaintRepository) Create(ctx context.Context, tx *sql.Tx, c *models.Complaint) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES (`+placeholders(29)+`)`,
		c.ID,
		c.TenantID,
		c.TrackingCode,
		c.CitizenEmail,
		nullableString(c.CitizenPhone),
		nullableString(c.CitizenName),
		c.Description,
		nullableFloat(c.Latitude),
		nullableFloat(c.Longitude),
		nullableString(c.Address),
		nullableString(c.Ward),
		nullableString(c.Block),
		nullableString(c.District),
		nullableString(c.City),
		nullableString(c.State),
		c.Category,
		nullableString(c.Subcategory),
		c.ClassificationConfidence,
		c.NeedsHumanReview,
		c.PriorityScore,
		c.RiskLevel,
		nullableString(c.Department),
		string(c.Status),
		nullableInt(c.SatisfactionRating),
		nullableString(c.SatisfactionComment),
		nullableBool(c.VerifiedFixed),
		c.ReopenCount,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting complaint: %w", err)
	}
	return nil
}

// GetByID retrieves a complaint by ID.
func (r *ComplaintRepository) GetByID(ctx context.Context, tx *sql.Tx, id string) (*models.Complaint, error) {
	return r.getOne(ctx, tx, `SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
}

// GetByTrackingCode retrieves a complaint by its public tracking code.
func (r *ComplaintRepository) GetByTrackingCode(ctx context.Context, tx *sql.Tx, code string) (*models.Complaint, error) {
	return r.getOne(ctx, tx, `SELECT `+complaintColumns+` FROM complaints WHERE tracking_code = ?`, strings.ToUpper(code))
}

func (r *ComplaintRepository) getOne(ctx context.Context, tx *sql.Tx, query string, arg any) (*models.Complaint, error) {
	c, err := scanComplaint(conn(r.db, tx).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("complaint %v: %w", arg, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning complaint: %w", err)
	}
	return c, nil
}

// TrackingCodeExists reports whether a tracking code is already taken.
func (r *ComplaintRepository) TrackingCodeExists(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var n int
	if err := conn(r.db, tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints WHERE tracking_code = ?`, code).Scan(&n); err != nil {
		return false, fmt.Errorf("checking tracking code: %w", err)
	}
	return n > 0, nil
}

// SaveProgress persists the pipeline-owned fields of a complaint: status,
// resolved location, classification, risk and routing. The write only
// applies while the stored status is still expected; otherwise someone
// else moved the complaint and ErrConflict is returned.
func (r *ComplaintRepository) SaveProgress(ctx context.Context, tx *sql.Tx, c *models.Complaint, expected models.ComplaintStatus) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	c.UpdatedAt = nowIfZero(c.UpdatedAt)

	result, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE complaints SET
			address = ?, ward = ?, block = ?, district = ?, city = ?, state = ?,
			description = ?,
			category = ?, subcategory = ?, classification_confidence = ?, needs_human_review = ?,
			priority_score = ?, risk_level = ?, department = ?,
			status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		nullableString(c.Address),
		nullableString(c.Ward),
		nullableString(c.Block),
		nullableString(c.District),
		nullableString(c.City),
		nullableString(c.State),
		c.Description,
		c.Category,
		nullableString(c.Subcategory),
		c.ClassificationConfidence,
		c.NeedsHumanReview,
		c.PriorityScore,
		c.RiskLevel,
		nullableString(c.Department),
		string(c.Status),
		formatTime(c.UpdatedAt),
		c.ID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("updating complaint: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = conn(r.db, tx).QueryRowContext(ctx, `SELECT status FROM complaints WHERE id = ?`, c.ID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("complaint %s: %w", c.ID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking complaint status: %w", err)
	}
	return fmt.Errorf("complaint %s is %s, expected %s: %w", c.ID, current, expected, models.ErrConflict)
}

// SaveFeedback persists rating, verification and reopen state.
func (r *ComplaintRepository) SaveFeedback(ctx context.Context, tx *sql.Tx, c *models.Complaint) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	c.UpdatedAt = nowIfZero(c.UpdatedAt)

	result, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE complaints SET
			satisfaction_rating = ?, satisfaction_comment = ?, verified_fixed = ?,
			reopen_count = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		nullableInt(c.SatisfactionRating),
		nullableString(c.SatisfactionComment),
		nullableBool(c.VerifiedFixed),
		c.ReopenCount,
		string(c.Status),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	return checkUpdated(result, err, "complaint", c.ID)
}

// UpdateStatus sets the lifecycle status of a complaint.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status models.ComplaintStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q: %w", status, models.ErrInvalidInput)
	}
	result, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE complaints SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(at), id,
	)
	return checkUpdated(result, err, "complaint", id)
}

// List retrieves complaints with filtering and pagination, newest first.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter, page models.Pagination) (*models.ComplaintList, error) {
	where, args := complaintWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM complaints "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting complaints: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM complaints %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, complaintColumns, where)
	complaints, err := r.query(ctx, nil, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, err
	}

	return &models.ComplaintList{
		Complaints: complaints,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.Limit(),
		TotalPages: page.TotalPages(total),
	}, nil
}

func complaintWhere(filter models.ComplaintFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.TenantID != nil {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, *filter.TenantID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, string(*filter.Category))
	}
	if filter.RiskLevel != nil {
		conditions = append(conditions, "risk_level = ?")
		args = append(args, string(*filter.RiskLevel))
	}
	if filter.CitizenEmail != "" {
		conditions = append(conditions, "citizen_email = ?")
		args = append(args, filter.CitizenEmail)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(description LIKE ? OR tracking_code LIKE ? OR address LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if filter.OpenOnly {
		conditions = append(conditions, "status NOT IN ('resolved', 'closed', 'rejected')")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ListUnclassified returns non-rejected complaints still missing a
// category or risk level, oldest first.
func (r *ComplaintRepository) ListUnclassified(ctx context.Context, limit int) ([]*models.Complaint, error) {
	return r.query(ctx, nil, `
		SELECT `+complaintColumns+` FROM complaints
		WHERE (category IS NULL OR risk_level IS NULL) AND status != 'rejected'
		ORDER BY created_at, id
		LIMIT ?`, limit)
}

// ListClusterCandidates returns classified complaints created at or after
// since that are still eligible for grouping, oldest first.
func (r *ComplaintRepository) ListClusterCandidates(ctx context.Context, tx *sql.Tx, since time.Time) ([]*models.Complaint, error) {
	return r.query(ctx, tx, `
		SELECT `+complaintColumns+` FROM complaints
		WHERE category IS NOT NULL
			AND status NOT IN ('resolved', 'closed', 'grouped', 'rejected')
			AND created_at >= ?
		ORDER BY created_at, id`, formatTime(since))
}

func (r *ComplaintRepository) query(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]*models.Complaint, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying complaints: %w", err)
	}
	defer rows.Close()

	var out []*models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning complaint row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating complaints: %w", err)
	}
	return out, nil
}

// AddMedia records an attachment reference.
func (r *ComplaintRepository) AddMedia(ctx context.Context, tx *sql.Tx, m *models.Media) error {
	if m.ID == "" || m.ComplaintID == "" || m.FilePath == "" {
		return fmt.Errorf("validation failed: media id, complaint_id and file_path are required: %w", models.ErrInvalidInput)
	}
	if !m.MediaType.Valid() {
		m.MediaType = models.MediaTypeForFilename(m.FilePath)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO complaint_media (id, complaint_id, file_path, media_type, original_filename, extracted_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ComplaintID, m.FilePath, string(m.MediaType),
		nullableString(m.OriginalFilename), nullableString(m.ExtractedText), formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting media: %w", err)
	}
	return nil
}

// ListMedia returns the attachments of a complaint in upload order.
func (r *ComplaintRepository) ListMedia(ctx context.Context, tx *sql.Tx, complaintID string) ([]*models.Media, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, `
		SELECT id, complaint_id, file_path, media_type, original_filename, extracted_text, created_at
		FROM complaint_media WHERE complaint_id = ? ORDER BY created_at, id`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("querying media: %w", err)
	}
	defer rows.Close()

	var out []*models.Media
	for rows.Next() {
		var m models.Media
		var original, extracted sql.NullString
		var created string
		if err := rows.Scan(&m.ID, &m.ComplaintID, &m.FilePath, &m.MediaType, &original, &extracted, &created); err != nil {
			return nil, fmt.Errorf("scanning media row: %w", err)
		}
		m.OriginalFilename = original.String
		m.ExtractedText = extracted.String
		m.CreatedAt = parseTime(created)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SetMediaText stores the text a collaborator extracted from an attachment.
func (r *ComplaintRepository) SetMediaText(ctx context.Context, tx *sql.Tx, mediaID, text string) error {
	result, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE complaint_media SET extracted_text = ? WHERE id = ?`, nullableString(text), mediaID)
	return checkUpdated(result, err, "media", mediaID)
}

func scanComplaint(row rowScanner) (*models.Complaint, error) {
	var (
		c                                             models.Complaint
		tenantID, phone, name                         sql.NullString
		lat, lon                                      sql.NullFloat64
		address, ward, block, district, city, state   sql.NullString
		category, subcategory, riskLevel, department  sql.NullString
		rating                                        sql.NullInt64
		comment                                       sql.NullString
		verified                                      sql.NullBool
		createdStr, updatedStr                        string
	)

	err := row.Scan(
		&c.ID, &tenantID, &c.TrackingCode, &c.CitizenEmail, &phone, &name,
		&c.Description, &lat, &lon, &address, &ward, &block, &district, &city, &state,
		&category, &subcategory, &c.ClassificationConfidence, &c.NeedsHumanReview,
		&c.PriorityScore, &riskLevel, &department, &c.Status,
		&rating, &comment, &verified, &c.ReopenCount,
		&createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	c.TenantID = stringPtr(tenantID)
	c.CitizenPhone = phone.String
	c.CitizenName = name.String
	c.Latitude = floatPtr(lat)
	c.Longitude = floatPtr(lon)
	c.Location = models.Location{
		Address:  address.String,
		Ward:     ward.String,
		Block:    block.String,
		District: district.String,
		City:     city.String,
		State:    state.String,
	}
	if category.Valid {
		cat := models.Category(category.String)
		c.Category = &cat
	}
	if riskLevel.Valid {
		level := models.RiskLevel(riskLevel.String)
		c.RiskLevel = &level
	}
	c.Subcategory = subcategory.String
	c.Department = department.String
	c.SatisfactionRating = intPtr(rating)
	c.SatisfactionComment = comment.String
	c.VerifiedFixed = boolPtr(verified)
	c.CreatedAt = parseTime(createdStr)
	c.UpdatedAt = parseTime(updatedStr)
	return &c, nil
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func checkUpdated(result sql.Result, err error, entity, id string) error {
	if err != nil {
		return fmt.Errorf("updating %s: %w", entity, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, models.ErrNotFound)
	}
	return nil
}
