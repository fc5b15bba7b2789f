package repository

import (
	"database/sql"
	"fmt"
	"time"

	"ikk-backend/internal/models"
)

// AssessmentRepository handles questionnaire answer database operations:
// per-policy assessment records, per-question scores, dimension notes,
// and supporting file links.
type AssessmentRepository struct {
	db *sql.DB
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *sql.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// EnsureAssessment creates the one-per-policy assessment record if it does
// not exist yet
func (r *AssessmentRepository) EnsureAssessment(policyID, userID uint) error {
	query := `
		INSERT INTO policy_assessments (policy_id, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $2, $3, $3)
		ON CONFLICT (policy_id) DO NOTHING
	`

	now := time.Now()
	_, err := r.db.Exec(query, policyID, userID, now)
	if err != nil {
		return fmt.Errorf("failed to ensure assessment: %w", err)
	}

	return nil
}

// GetAssessment retrieves the assessment record for a policy.
// Returns nil, nil when the questionnaire has not been started.
func (r *AssessmentRepository) GetAssessment(policyID uint) (*models.PolicyAssessment, error) {
	query := `
		SELECT policy_id, jf, created_by, updated_by, created_at, updated_at
		FROM policy_assessments
		WHERE policy_id = $1
	`

	assessment := &models.PolicyAssessment{}
	err := r.db.QueryRow(query, policyID).Scan(
		&assessment.PolicyID,
		&assessment.JF,
		&assessment.CreatedBy,
		&assessment.UpdatedBy,
		&assessment.CreatedAt,
		&assessment.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return assessment, nil
}

// SetJF stores the functional-position (jabatan fungsional) answer
func (r *AssessmentRepository) SetJF(policyID uint, jf bool, userID uint) error {
	query := `
		INSERT INTO policy_assessments (policy_id, jf, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $4, $4)
		ON CONFLICT (policy_id) DO UPDATE
		SET jf = EXCLUDED.jf, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(query, policyID, jf, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set jf answer: %w", err)
	}

	return nil
}

// UpsertSelfScore writes the analyst's score for one question column.
// The verifier_score column is never touched by this path.
func (r *AssessmentRepository) UpsertSelfScore(policyID uint, columnCode string, score int64, userID uint) error {
	query := `
		INSERT INTO assessment_scores (policy_id, column_code, self_score, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (policy_id, column_code) DO UPDATE
		SET self_score = EXCLUDED.self_score, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(query, policyID, columnCode, score, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert self score: %w", err)
	}

	return nil
}

// UpsertVerifierScore writes the verifier's score for one question column.
// The self_score column is never touched by this path.
func (r *AssessmentRepository) UpsertVerifierScore(policyID uint, columnCode string, score int64, userID uint) error {
	query := `
		INSERT INTO assessment_scores (policy_id, column_code, verifier_score, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (policy_id, column_code) DO UPDATE
		SET verifier_score = EXCLUDED.verifier_score, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(query, policyID, columnCode, score, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert verifier score: %w", err)
	}

	return nil
}

// GetScores retrieves all scores of a policy in catalog order
func (r *AssessmentRepository) GetScores(policyID uint) ([]models.AssessmentScore, error) {
	query := `
		SELECT s.id, s.policy_id, s.column_code, s.self_score, s.verifier_score, s.updated_by, s.created_at, s.updated_at
		FROM assessment_scores s
		INNER JOIN questions q ON s.column_code = q.column_code
		WHERE s.policy_id = $1
		ORDER BY q.sort_order
	`

	rows, err := r.db.Query(query, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	defer rows.Close()

	var scores []models.AssessmentScore
	for rows.Next() {
		var score models.AssessmentScore
		if err := rows.Scan(
			&score.ID,
			&score.PolicyID,
			&score.ColumnCode,
			&score.SelfScore,
			&score.VerifierScore,
			&score.UpdatedBy,
			&score.CreatedAt,
			&score.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, score)
	}

	return scores, nil
}

// UpsertNote writes the analyst's free-text note for one dimension
func (r *AssessmentRepository) UpsertNote(policyID uint, dimension, note string, userID uint) error {
	query := `
		INSERT INTO dimension_notes (policy_id, dimension, note, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (policy_id, dimension) DO UPDATE
		SET note = EXCLUDED.note, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(query, policyID, dimension, note, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}

	return nil
}

// UpsertVerifierNote writes the verifier's free-text note for one dimension
func (r *AssessmentRepository) UpsertVerifierNote(policyID uint, dimension, note string, userID uint) error {
	query := `
		INSERT INTO dimension_notes (policy_id, dimension, verifier_note, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (policy_id, dimension) DO UPDATE
		SET verifier_note = EXCLUDED.verifier_note, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(query, policyID, dimension, note, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert verifier note: %w", err)
	}

	return nil
}

// GetNotes retrieves all dimension notes of a policy
func (r *AssessmentRepository) GetNotes(policyID uint) ([]models.DimensionNote, error) {
	query := `
		SELECT id, policy_id, dimension, note, verifier_note, updated_by, created_at, updated_at
		FROM dimension_notes
		WHERE policy_id = $1
		ORDER BY dimension
	`

	rows, err := r.db.Query(query, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	defer rows.Close()

	var notes []models.DimensionNote
	for rows.Next() {
		var note models.DimensionNote
		if err := rows.Scan(
			&note.ID,
			&note.PolicyID,
			&note.Dimension,
			&note.Note,
			&note.VerifierNote,
			&note.UpdatedBy,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	return notes, nil
}

// UpsertSupportingFile writes the evidence link for one question column
func (r *AssessmentRepository) UpsertSupportingFile(policyID uint, columnCode, link string, userID uint) error {
	query := `
		INSERT INTO supporting_files (policy_id, column_code, link, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (policy_id, column_code) DO UPDATE
		SET link = EXCLUDED.link, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(query, policyID, columnCode, link, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert supporting file: %w", err)
	}

	return nil
}

// DeleteSupportingFile removes the evidence link of one question column
func (r *AssessmentRepository) DeleteSupportingFile(policyID uint, columnCode string) error {
	query := `DELETE FROM supporting_files WHERE policy_id = $1 AND column_code = $2`
	_, err := r.db.Exec(query, policyID, columnCode)
	if err != nil {
		return fmt.Errorf("failed to delete supporting file: %w", err)
	}
	return nil
}

// GetSupportingFiles retrieves all evidence links of a policy in catalog order
func (r *AssessmentRepository) GetSupportingFiles(policyID uint) ([]models.SupportingFile, error) {
	query := `
		SELECT f.id, f.policy_id, f.column_code, f.link, f.updated_by, f.created_at, f.updated_at
		FROM supporting_files f
		INNER JOIN questions q ON f.column_code = q.column_code
		WHERE f.policy_id = $1
		ORDER BY q.sort_order
	`

	rows, err := r.db.Query(query, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get supporting files: %w", err)
	}
	defer rows.Close()

	var files []models.SupportingFile
	for rows.Next() {
		var file models.SupportingFile
		if err := rows.Scan(
			&file.ID,
			&file.PolicyID,
			&file.ColumnCode,
			&file.Link,
			&file.UpdatedBy,
			&file.CreatedAt,
			&file.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan supporting file: %w", err)
		}
		files = append(files, file)
	}

	return files, nil
}

// GetMissingSelfScoreColumns returns the column codes without a self score
// for a policy, in catalog order
func (r *AssessmentRepository) GetMissingSelfScoreColumns(policyID uint) ([]string, error) {
	return r.getMissingColumns(policyID, "self_score")
}

// GetMissingVerifierScoreColumns returns the column codes without a verifier
// score for a policy, in catalog order
func (r *AssessmentRepository) GetMissingVerifierScoreColumns(policyID uint) ([]string, error) {
	return r.getMissingColumns(policyID, "verifier_score")
}

func (r *AssessmentRepository) getMissingColumns(policyID uint, scoreColumn string) ([]string, error) {
	// scoreColumn is one of two fixed identifiers, never user input
	query := fmt.Sprintf(`
		SELECT q.column_code
		FROM questions q
		LEFT JOIN assessment_scores s ON s.column_code = q.column_code AND s.policy_id = $1
		WHERE s.%s IS NULL
		ORDER BY q.sort_order
	`, scoreColumn)

	rows, err := r.db.Query(query, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get missing columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var columnCode string
		if err := rows.Scan(&columnCode); err != nil {
			return nil, fmt.Errorf("failed to scan column code: %w", err)
		}
		columns = append(columns, columnCode)
	}

	return columns, nil
}

// CountQuestions returns the catalog size
func (r *AssessmentRepository) CountQuestions() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}
