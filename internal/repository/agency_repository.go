package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ikk-backend/internal/models"
)

var ErrAgencyNotFound = errors.New("agency not found")

// AgencyRepository handles agency database operations
type AgencyRepository struct {
	db *sql.DB
}

// NewAgencyRepository creates a new agency repository
func NewAgencyRepository(db *sql.DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// Create creates a new agency
func (r *AgencyRepository) Create(agency *models.Agency) error {
	query := `
		INSERT INTO agencies (name, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(query, agency.Name, agency.Category, now, now).Scan(&agency.ID)
	if err != nil {
		return fmt.Errorf("failed to create agency: %w", err)
	}

	agency.CreatedAt = now
	agency.UpdatedAt = now
	return nil
}

// GetByID retrieves an agency by ID
func (r *AgencyRepository) GetByID(id uint) (*models.Agency, error) {
	query := `
		SELECT id, name, category, created_at, updated_at
		FROM agencies
		WHERE id = $1
	`

	agency := &models.Agency{}
	err := r.db.QueryRow(query, id).Scan(
		&agency.ID,
		&agency.Name,
		&agency.Category,
		&agency.CreatedAt,
		&agency.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrAgencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}

	return agency, nil
}

// GetAll retrieves all agencies
func (r *AgencyRepository) GetAll() ([]models.Agency, error) {
	query := `
		SELECT id, name, category, created_at, updated_at
		FROM agencies
		ORDER BY name
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get agencies: %w", err)
	}
	defer rows.Close()

	var agencies []models.Agency
	for rows.Next() {
		var agency models.Agency
		if err := rows.Scan(&agency.ID, &agency.Name, &agency.Category, &agency.CreatedAt, &agency.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		agencies = append(agencies, agency)
	}

	return agencies, nil
}

// Update updates an agency
func (r *AgencyRepository) Update(agency *models.Agency) error {
	query := `
		UPDATE agencies
		SET name = $1, category = $2, updated_at = $3
		WHERE id = $4
	`

	agency.UpdatedAt = time.Now()
	_, err := r.db.Exec(query, agency.Name, agency.Category, agency.UpdatedAt, agency.ID)
	if err != nil {
		return fmt.Errorf("failed to update agency: %w", err)
	}

	return nil
}

// Delete deletes an agency
func (r *AgencyRepository) Delete(id uint) error {
	query := `DELETE FROM agencies WHERE id = $1`
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete agency: %w", err)
	}
	return nil
}
