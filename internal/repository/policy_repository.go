package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ikk-backend/internal/models"
)

var ErrPolicyNotFound = errors.New("policy not found")

// PolicyRepository handles policy database operations
type PolicyRepository struct {
	db *sql.DB
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

const policyColumns = `id, name, sector, effective_date, evidence_link, agency_id, analyst_id,
       status, sent_to_center, final_score, created_by, updated_by, created_at, updated_at`

func scanPolicy(row interface{ Scan(...interface{}) error }, policy *models.Policy) error {
	return row.Scan(
		&policy.ID,
		&policy.Name,
		&policy.Sector,
		&policy.EffectiveDate,
		&policy.EvidenceLink,
		&policy.AgencyID,
		&policy.AnalystID,
		&policy.Status,
		&policy.SentToCenter,
		&policy.FinalScore,
		&policy.CreatedBy,
		&policy.UpdatedBy,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
}

// Create creates a new policy in DIAJUKAN status
func (r *PolicyRepository) Create(policy *models.Policy) error {
	query := `
		INSERT INTO policies (name, sector, effective_date, evidence_link, agency_id,
		                      status, sent_to_center, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		policy.Name,
		policy.Sector,
		policy.EffectiveDate,
		policy.EvidenceLink,
		policy.AgencyID,
		policy.Status,
		policy.SentToCenter,
		policy.CreatedBy,
		now,
		now,
	).Scan(&policy.ID)

	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	policy.CreatedAt = now
	policy.UpdatedAt = now
	return nil
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(id uint) (*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`

	policy := &models.Policy{}
	err := scanPolicy(r.db.QueryRow(query, id), policy)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return policy, nil
}

// GetByIDWithDetails retrieves a policy with agency, analyst, and creator names
func (r *PolicyRepository) GetByIDWithDetails(id uint) (*models.PolicyWithDetails, error) {
	query := `
		SELECT p.id, p.name, p.sector, p.effective_date, p.evidence_link, p.agency_id, p.analyst_id,
		       p.status, p.sent_to_center, p.final_score, p.created_by, p.updated_by, p.created_at, p.updated_at,
		       a.name, COALESCE(an.name, ''), COALESCE(c.name, '')
		FROM policies p
		INNER JOIN agencies a ON p.agency_id = a.id
		LEFT JOIN users an ON p.analyst_id = an.id
		LEFT JOIN users c ON p.created_by = c.id
		WHERE p.id = $1
	`

	detail := &models.PolicyWithDetails{}
	err := r.db.QueryRow(query, id).Scan(
		&detail.ID,
		&detail.Name,
		&detail.Sector,
		&detail.EffectiveDate,
		&detail.EvidenceLink,
		&detail.AgencyID,
		&detail.AnalystID,
		&detail.Status,
		&detail.SentToCenter,
		&detail.FinalScore,
		&detail.CreatedBy,
		&detail.UpdatedBy,
		&detail.CreatedAt,
		&detail.UpdatedAt,
		&detail.AgencyName,
		&detail.AnalystName,
		&detail.CreatorName,
	)

	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy details: %w", err)
	}

	return detail, nil
}

// PolicyFilters holds filter parameters for policy queries
type PolicyFilters struct {
	AgencyID     *uint
	AnalystID    *uint
	Statuses     []string
	SentToCenter *bool
	Search       string
}

func (f PolicyFilters) apply(query string, args []interface{}) (string, []interface{}) {
	argPos := len(args) + 1

	if f.AgencyID != nil {
		query += fmt.Sprintf(` AND p.agency_id = $%d`, argPos)
		args = append(args, *f.AgencyID)
		argPos++
	}

	if f.AnalystID != nil {
		query += fmt.Sprintf(` AND p.analyst_id = $%d`, argPos)
		args = append(args, *f.AnalystID)
		argPos++
	}

	if len(f.Statuses) > 0 {
		query += fmt.Sprintf(` AND p.status = ANY($%d)`, argPos)
		args = append(args, pq.Array(f.Statuses))
		argPos++
	}

	if f.SentToCenter != nil {
		query += fmt.Sprintf(` AND p.sent_to_center = $%d`, argPos)
		args = append(args, *f.SentToCenter)
		argPos++
	}

	if f.Search != "" {
		query += fmt.Sprintf(` AND (p.name ILIKE $%d OR p.sector ILIKE $%d)`, argPos, argPos)
		args = append(args, "%"+f.Search+"%")
	}

	return query, args
}

// GetAllWithFilters retrieves policies with details, filtering, and pagination,
// newest first
func (r *PolicyRepository) GetAllWithFilters(filters PolicyFilters, limit, offset int) ([]models.PolicyWithDetails, error) {
	query := `
		SELECT p.id, p.name, p.sector, p.effective_date, p.evidence_link, p.agency_id, p.analyst_id,
		       p.status, p.sent_to_center, p.final_score, p.created_by, p.updated_by, p.created_at, p.updated_at,
		       a.name, COALESCE(an.name, ''), COALESCE(c.name, '')
		FROM policies p
		INNER JOIN agencies a ON p.agency_id = a.id
		LEFT JOIN users an ON p.analyst_id = an.id
		LEFT JOIN users c ON p.created_by = c.id
		WHERE 1=1
	`

	args := []interface{}{}
	query, args = filters.apply(query, args)

	query += fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get policies: %w", err)
	}
	defer rows.Close()

	var policies []models.PolicyWithDetails
	for rows.Next() {
		var detail models.PolicyWithDetails
		if err := rows.Scan(
			&detail.ID,
			&detail.Name,
			&detail.Sector,
			&detail.EffectiveDate,
			&detail.EvidenceLink,
			&detail.AgencyID,
			&detail.AnalystID,
			&detail.Status,
			&detail.SentToCenter,
			&detail.FinalScore,
			&detail.CreatedBy,
			&detail.UpdatedBy,
			&detail.CreatedAt,
			&detail.UpdatedAt,
			&detail.AgencyName,
			&detail.AnalystName,
			&detail.CreatorName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, detail)
	}

	return policies, nil
}

// CountWithFilters returns the total count of policies matching the filters
func (r *PolicyRepository) CountWithFilters(filters PolicyFilters) (int, error) {
	query := `SELECT COUNT(*) FROM policies p WHERE 1=1`

	args := []interface{}{}
	query, args = filters.apply(query, args)

	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count policies: %w", err)
	}

	return count, nil
}

// Update updates a policy's editable fields
func (r *PolicyRepository) Update(policy *models.Policy) error {
	query := `
		UPDATE policies
		SET name = $1, sector = $2, effective_date = $3, evidence_link = $4,
		    updated_by = $5, updated_at = $6
		WHERE id = $7
	`

	policy.UpdatedAt = time.Now()
	_, err := r.db.Exec(
		query,
		policy.Name,
		policy.Sector,
		policy.EffectiveDate,
		policy.EvidenceLink,
		policy.UpdatedBy,
		policy.UpdatedAt,
		policy.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	return nil
}

// UpdateStatus updates the workflow status of a policy
func (r *PolicyRepository) UpdateStatus(policyID uint, status models.PolicyStatus, updatedBy uint) error {
	query := `
		UPDATE policies
		SET status = $1, updated_by = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.Exec(query, status, updatedBy, time.Now(), policyID)
	if err != nil {
		return fmt.Errorf("failed to update policy status: %w", err)
	}

	return nil
}

// SetSentToCenter marks a policy as forwarded to the national coordinator
func (r *PolicyRepository) SetSentToCenter(policyID uint, updatedBy uint) error {
	query := `
		UPDATE policies
		SET sent_to_center = true, updated_by = $1, updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(query, updatedBy, time.Now(), policyID)
	if err != nil {
		return fmt.Errorf("failed to mark policy as sent: %w", err)
	}

	return nil
}

// AssignAnalyst sets or replaces the analyst responsible for a policy
func (r *PolicyRepository) AssignAnalyst(policyID, analystID, updatedBy uint) error {
	query := `
		UPDATE policies
		SET analyst_id = $1, updated_by = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.Exec(query, analystID, updatedBy, time.Now(), policyID)
	if err != nil {
		return fmt.Errorf("failed to assign analyst: %w", err)
	}

	return nil
}

// SetFinalScore stores the computed final score of a finalized policy
func (r *PolicyRepository) SetFinalScore(policyID uint, finalScore float64, updatedBy uint) error {
	query := `
		UPDATE policies
		SET final_score = $1, updated_by = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.Exec(query, finalScore, updatedBy, time.Now(), policyID)
	if err != nil {
		return fmt.Errorf("failed to set final score: %w", err)
	}

	return nil
}

// Delete deletes a policy and its assessment data via cascading foreign keys
func (r *PolicyRepository) Delete(id uint) error {
	query := `DELETE FROM policies WHERE id = $1`
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	return nil
}

// GetStalled retrieves unfinished policies that have not been touched since
// the given cutoff. Used by the stage reminder scheduler.
func (r *PolicyRepository) GetStalled(cutoff time.Time) ([]models.PolicyWithDetails, error) {
	query := `
		SELECT p.id, p.name, p.sector, p.effective_date, p.evidence_link, p.agency_id, p.analyst_id,
		       p.status, p.sent_to_center, p.final_score, p.created_by, p.updated_by, p.created_at, p.updated_at,
		       a.name, COALESCE(an.name, ''), COALESCE(c.name, '')
		FROM policies p
		INNER JOIN agencies a ON p.agency_id = a.id
		LEFT JOIN users an ON p.analyst_id = an.id
		LEFT JOIN users c ON p.created_by = c.id
		WHERE p.status != $1 AND p.updated_at < $2
		ORDER BY p.updated_at
	`

	rows, err := r.db.Query(query, models.StatusSelesai, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get stalled policies: %w", err)
	}
	defer rows.Close()

	var policies []models.PolicyWithDetails
	for rows.Next() {
		var detail models.PolicyWithDetails
		if err := rows.Scan(
			&detail.ID,
			&detail.Name,
			&detail.Sector,
			&detail.EffectiveDate,
			&detail.EvidenceLink,
			&detail.AgencyID,
			&detail.AnalystID,
			&detail.Status,
			&detail.SentToCenter,
			&detail.FinalScore,
			&detail.CreatedBy,
			&detail.UpdatedBy,
			&detail.CreatedAt,
			&detail.UpdatedAt,
			&detail.AgencyName,
			&detail.AnalystName,
			&detail.CreatorName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stalled policy: %w", err)
		}
		policies = append(policies, detail)
	}

	return policies, nil
}
