package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ikk-backend/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, nip, nik, email, phone, position, work_unit, agency_id,
       password_hash, is_active, active_year, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }, user *models.User) error {
	return row.Scan(
		&user.ID,
		&user.Name,
		&user.NIP,
		&user.NIK,
		&user.Email,
		&user.Phone,
		&user.Position,
		&user.WorkUnit,
		&user.AgencyID,
		&user.PasswordHash,
		&user.IsActive,
		&user.ActiveYear,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
}

// Create creates a new user
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (name, nip, nik, email, phone, position, work_unit, agency_id,
		                   password_hash, is_active, active_year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		user.Name,
		user.NIP,
		user.NIK,
		user.Email,
		user.Phone,
		user.Position,
		user.WorkUnit,
		user.AgencyID,
		user.PasswordHash,
		user.IsActive,
		user.ActiveYear,
		now,
		now,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user := &models.User{}
	err := scanUser(r.db.QueryRow(query, id), user)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByNIP retrieves a user by NIP (the login identifier)
func (r *UserRepository) GetByNIP(nip string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE nip = $1`

	user := &models.User{}
	err := scanUser(r.db.QueryRow(query, nip), user)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by NIP: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user := &models.User{}
	err := scanUser(r.db.QueryRow(query, email), user)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// Update updates a user
func (r *UserRepository) Update(user *models.User) error {
	query := `
		UPDATE users
		SET name = $1, nik = $2, email = $3, phone = $4, position = $5, work_unit = $6,
		    agency_id = $7, is_active = $8, active_year = $9, updated_at = $10
		WHERE id = $11
	`

	user.UpdatedAt = time.Now()
	_, err := r.db.Exec(
		query,
		user.Name,
		user.NIK,
		user.Email,
		user.Phone,
		user.Position,
		user.WorkUnit,
		user.AgencyID,
		user.IsActive,
		user.ActiveYear,
		user.UpdatedAt,
		user.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// UpdatePassword updates a user's password
func (r *UserRepository) UpdatePassword(userID uint, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(query, passwordHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// UpdateActiveStatus updates the is_active status of a user
func (r *UserRepository) UpdateActiveStatus(userID uint, isActive bool) error {
	query := `
		UPDATE users
		SET is_active = $1, updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(query, isActive, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update active status: %w", err)
	}

	return nil
}

// Delete deletes a user
func (r *UserRepository) Delete(id uint) error {
	query := `DELETE FROM users WHERE id = $1`
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// GetUserRoles retrieves all roles for a user
func (r *UserRepository) GetUserRoles(userID uint) ([]models.Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		INNER JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = $1
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, nil
}

// AssignRole assigns a role to a user
func (r *UserRepository) AssignRole(userID, roleID uint) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`

	_, err := r.db.Exec(query, userID, roleID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}

// RemoveRole removes a role from a user
func (r *UserRepository) RemoveRole(userID, roleID uint) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`
	_, err := r.db.Exec(query, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

// UserFilters holds filter parameters for user queries
type UserFilters struct {
	Search    string
	RoleIDs   []int
	AgencyID  *uint
	IsActive  *bool
	SortBy    string
	SortOrder string
}

// GetAllWithFilters retrieves users with filtering, sorting, and pagination
func (r *UserRepository) GetAllWithFilters(filters UserFilters, limit, offset int) ([]models.User, error) {
	query := `
		SELECT DISTINCT u.id, u.name, u.nip, u.nik, u.email, u.phone, u.position, u.work_unit,
		       u.agency_id, u.password_hash, u.is_active, u.active_year, u.created_at, u.updated_at
		FROM users u
		LEFT JOIN user_roles ur ON u.id = ur.user_id
		WHERE 1=1
	`

	args := []interface{}{}
	argPos := 1

	// Search filter (name, NIP, or email)
	if filters.Search != "" {
		query += fmt.Sprintf(` AND (u.name ILIKE $%d OR u.nip ILIKE $%d OR u.email ILIKE $%d)`, argPos, argPos, argPos)
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	if len(filters.RoleIDs) > 0 {
		query += fmt.Sprintf(` AND ur.role_id = ANY($%d)`, argPos)
		args = append(args, pq.Array(filters.RoleIDs))
		argPos++
	}

	if filters.AgencyID != nil {
		query += fmt.Sprintf(` AND u.agency_id = $%d`, argPos)
		args = append(args, *filters.AgencyID)
		argPos++
	}

	if filters.IsActive != nil {
		query += fmt.Sprintf(` AND u.is_active = $%d`, argPos)
		args = append(args, *filters.IsActive)
		argPos++
	}

	sortColumn := "u.created_at"
	sortOrder := "DESC"

	switch filters.SortBy {
	case "id":
		sortColumn = "u.id"
	case "name":
		sortColumn = "u.name"
	case "nip":
		sortColumn = "u.nip"
	case "created_at":
		sortColumn = "u.created_at"
	}

	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	query += fmt.Sprintf(` ORDER BY %s %s LIMIT $%d OFFSET $%d`, sortColumn, sortOrder, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, nil
}

// CountWithFilters returns the total count of users matching the filters
func (r *UserRepository) CountWithFilters(filters UserFilters) (int, error) {
	query := `
		SELECT COUNT(DISTINCT u.id)
		FROM users u
		LEFT JOIN user_roles ur ON u.id = ur.user_id
		WHERE 1=1
	`

	args := []interface{}{}
	argPos := 1

	if filters.Search != "" {
		query += fmt.Sprintf(` AND (u.name ILIKE $%d OR u.nip ILIKE $%d OR u.email ILIKE $%d)`, argPos, argPos, argPos)
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	if len(filters.RoleIDs) > 0 {
		query += fmt.Sprintf(` AND ur.role_id = ANY($%d)`, argPos)
		args = append(args, pq.Array(filters.RoleIDs))
		argPos++
	}

	if filters.AgencyID != nil {
		query += fmt.Sprintf(` AND u.agency_id = $%d`, argPos)
		args = append(args, *filters.AgencyID)
		argPos++
	}

	if filters.IsActive != nil {
		query += fmt.Sprintf(` AND u.is_active = $%d`, argPos)
		args = append(args, *filters.IsActive)
		argPos++
	}

	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}

// GetByAgencyAndRole retrieves the active users of one agency holding a role.
// Used to list assignable analysts for an agency coordinator.
func (r *UserRepository) GetByAgencyAndRole(agencyID uint, roleName string) ([]models.User, error) {
	query := `
		SELECT DISTINCT u.id, u.name, u.nip, u.nik, u.email, u.phone, u.position, u.work_unit,
		       u.agency_id, u.password_hash, u.is_active, u.active_year, u.created_at, u.updated_at
		FROM users u
		INNER JOIN user_roles ur ON u.id = ur.user_id
		INNER JOIN roles r ON ur.role_id = r.id
		WHERE u.agency_id = $1 AND r.name = $2 AND u.is_active = true
		ORDER BY u.name
	`

	rows, err := r.db.Query(query, agencyID, roleName)
	if err != nil {
		return nil, fmt.Errorf("failed to get agency users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, nil
}

// CountActiveAdmins returns the number of active users with the admin role
func (r *UserRepository) CountActiveAdmins() (int, error) {
	query := `
		SELECT COUNT(DISTINCT u.id)
		FROM users u
		JOIN user_roles ur ON u.id = ur.user_id
		JOIN roles r ON ur.role_id = r.id
		WHERE u.is_active = true AND r.name = $1
	`

	var count int
	err := r.db.QueryRow(query, models.RoleAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active admins: %w", err)
	}

	return count, nil
}

// IsLastActiveAdmin checks if a user is the last active admin in the system
func (r *UserRepository) IsLastActiveAdmin(userID uint) (bool, error) {
	count, err := r.CountActiveAdmins()
	if err != nil {
		return false, err
	}

	if count == 1 {
		query := `
			SELECT EXISTS(
				SELECT 1
				FROM users u
				JOIN user_roles ur ON u.id = ur.user_id
				JOIN roles r ON ur.role_id = r.id
				WHERE u.id = $1 AND u.is_active = true AND r.name = $2
			)
		`

		var isAdmin bool
		err := r.db.QueryRow(query, userID, models.RoleAdmin).Scan(&isAdmin)
		if err != nil {
			return false, fmt.Errorf("failed to check if user is admin: %w", err)
		}

		return isAdmin, nil
	}

	return false, nil
}
