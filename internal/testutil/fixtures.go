package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ikk-backend/internal/models"
)

// Fixtures holds the standard test data set: one agency with a full set of
// role holders plus a national coordinator, verifier and admin
type Fixtures struct {
	DB *sql.DB

	Agency      *models.Agency
	OtherAgency *models.Agency

	Admin               *models.User
	NationalCoordinator *models.User
	Verifier            *models.User
	AgencyCoordinator   *models.User
	SecondCoordinator   *models.User
	Analyst             *models.User
	SecondAnalyst       *models.User
	OtherCoordinator    *models.User
}

// SetupFixtures creates the standard test data set. Roles and the question
// catalog are seeded by the migrations.
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	f := &Fixtures{DB: db}

	f.Agency = createAgency(t, db, "Kementerian Keuangan", "kementerian")
	f.OtherAgency = createAgency(t, db, "Kementerian Kesehatan", "kementerian")

	f.Admin = createUser(t, db, "Admin Pusat", "199001012015011001", "admin@ikk.test", nil, models.RoleAdmin)
	f.NationalCoordinator = createUser(t, db, "Koordinator Nasional", "198501012010011002", "kornas@ikk.test", nil, models.RoleKoordinatorNasional)
	f.Verifier = createUser(t, db, "Tim Verifikator", "198601012010011003", "verifikator@ikk.test", nil, models.RoleVerifikator)
	f.AgencyCoordinator = createUser(t, db, "Koordinator Instansi", "198701012010011004", "korin@ikk.test", &f.Agency.ID, models.RoleKoordinatorInstansi)
	f.SecondCoordinator = createUser(t, db, "Koordinator Pendamping", "199201012010011008", "korin3@ikk.test", &f.Agency.ID, models.RoleKoordinatorInstansi)
	f.Analyst = createUser(t, db, "Analis Satu", "198801012010011005", "analis1@ikk.test", &f.Agency.ID, models.RoleAnalisInstansi)
	f.SecondAnalyst = createUser(t, db, "Analis Dua", "198901012010011006", "analis2@ikk.test", &f.Agency.ID, models.RoleAnalisInstansi)
	f.OtherCoordinator = createUser(t, db, "Koordinator Lain", "199101012010011007", "korin2@ikk.test", &f.OtherAgency.ID, models.RoleKoordinatorInstansi)

	return f
}

// CreatePolicy inserts a policy in the given status for the fixture agency.
// The effective date sits safely inside the assessable window.
func (f *Fixtures) CreatePolicy(t *testing.T, name string, status models.PolicyStatus, sentToCenter bool, analystID *uint) *models.Policy {
	t.Helper()

	effectiveDate := time.Now().AddDate(-1, -6, 0)

	policy := &models.Policy{
		Name:          name,
		Sector:        "keuangan",
		EffectiveDate: effectiveDate,
		AgencyID:      f.Agency.ID,
		AnalystID:     analystID,
		Status:        status,
		SentToCenter:  sentToCenter,
		CreatedBy:     f.AgencyCoordinator.ID,
	}

	err := f.DB.QueryRow(`
		INSERT INTO policies (name, sector, effective_date, agency_id, analyst_id, status, sent_to_center, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, policy.Name, policy.Sector, policy.EffectiveDate, policy.AgencyID, policy.AnalystID,
		policy.Status, policy.SentToCenter, policy.CreatedBy,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)

	if err != nil {
		t.Fatalf("Failed to create policy %s: %v", name, err)
	}

	return policy
}

// QuestionColumnCodes returns every column code of the seeded catalog in order
func (f *Fixtures) QuestionColumnCodes(t *testing.T) []string {
	t.Helper()

	rows, err := f.DB.Query(`SELECT column_code FROM questions ORDER BY sort_order`)
	if err != nil {
		t.Fatalf("Failed to load question column codes: %v", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			t.Fatalf("Failed to scan column code: %v", err)
		}
		codes = append(codes, code)
	}

	return codes
}

func createAgency(t *testing.T, db *sql.DB, name, category string) *models.Agency {
	t.Helper()

	agency := &models.Agency{Name: name, Category: category}
	err := db.QueryRow(`
		INSERT INTO agencies (name, category)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, name, category).Scan(&agency.ID, &agency.CreatedAt, &agency.UpdatedAt)

	if err != nil {
		t.Fatalf("Failed to create agency %s: %v", name, err)
	}

	return agency
}

func createUser(t *testing.T, db *sql.DB, name, nip, email string, agencyID *uint, roleNames ...string) *models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Name:     name,
		NIP:      nip,
		Email:    email,
		AgencyID: agencyID,
		IsActive: true,
	}

	err = db.QueryRow(`
		INSERT INTO users (name, nip, email, agency_id, password_hash, is_active, active_year)
		VALUES ($1, $2, $3, $4, $5, true, $6)
		RETURNING id, created_at, updated_at
	`, name, nip, email, agencyID, string(hashed), time.Now().Year(),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		t.Fatalf("Failed to create user %s: %v", nip, err)
	}

	for _, roleName := range roleNames {
		var roleID uint
		if err := db.QueryRow(`SELECT id FROM roles WHERE name = $1`, roleName).Scan(&roleID); err != nil {
			t.Fatalf("Seeded role %s not found: %v", roleName, err)
		}
		if _, err := db.Exec(`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, user.ID, roleID); err != nil {
			t.Fatalf("Failed to assign role %s to user %s: %v", roleName, nip, err)
		}
	}

	return user
}

// RoleNames returns the fixture user's role names, as middleware would
// resolve them per request
func (f *Fixtures) RoleNames(t *testing.T, userID uint) []string {
	t.Helper()

	rows, err := f.DB.Query(`
		SELECT r.name FROM roles r
		JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = $1
	`, userID)
	if err != nil {
		t.Fatalf("Failed to load roles for user %d: %v", userID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("Failed to scan role name: %v", err)
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		t.Fatalf("user %d has no roles", userID)
	}

	return names
}

// MustExec runs a statement and fails the test on error
func MustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("Exec failed (%s): %v", fmt.Sprintf("%.60s", query), err)
	}
}
