package models

import (
	"time"
)

// PolicyStatus is the lifecycle state of a policy submission
type PolicyStatus string

const (
	StatusDiajukan         PolicyStatus = "DIAJUKAN"          // submitted by agency coordinator
	StatusDisetujui        PolicyStatus = "DISETUJUI"         // approved by national coordinator
	StatusProses           PolicyStatus = "PROSES"            // analyst assigned, self-assessment in progress
	StatusMenungguValidasi PolicyStatus = "MENUNGGU_VALIDASI" // awaiting verification
	StatusSelesai          PolicyStatus = "SELESAI"           // finalized with both score sets
)

// Dimension identifies one of the four fixed policy-quality dimensions
type Dimension string

const (
	DimensionPlanning       Dimension = "a" // Perencanaan
	DimensionImplementation Dimension = "b" // Implementasi
	DimensionEvaluation     Dimension = "c" // Evaluasi dan Keberlanjutan
	DimensionTransparency   Dimension = "d" // Transparansi dan Partisipasi
)

// Role names
const (
	RoleAdmin               = "admin"
	RoleKoordinatorNasional = "koordinator-nasional"
	RoleVerifikator         = "verifikator"
	RoleKoordinatorInstansi = "koordinator-instansi"
	RoleAnalisInstansi      = "analis-instansi"
)

// User represents a user in the system
type User struct {
	ID           uint      `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	NIP          string    `json:"nip" db:"nip"`
	NIK          string    `json:"nik" db:"nik"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	Position     string    `json:"position" db:"position"`
	WorkUnit     string    `json:"work_unit" db:"work_unit"`
	AgencyID     *uint     `json:"agency_id,omitempty" db:"agency_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	ActiveYear   int       `json:"active_year" db:"active_year"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Role represents a user role
type Role struct {
	ID          uint      `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UserRole represents the many-to-many relationship between users and roles
type UserRole struct {
	UserID    uint      `json:"user_id" db:"user_id"`
	RoleID    uint      `json:"role_id" db:"role_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserWithRoles extends User with roles information
type UserWithRoles struct {
	User
	Roles []Role `json:"roles"`
}

// Agency represents a government agency (instansi)
type Agency struct {
	ID        uint      `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Session represents an issued token pair member
type Session struct {
	ID             uint      `json:"id" db:"id"`
	UserID         uint      `json:"user_id" db:"user_id"`
	SessionID      string    `json:"session_id" db:"session_id"` // Groups access and refresh tokens from same login
	JTI            string    `json:"jti" db:"jti"`
	TokenType      string    `json:"token_type" db:"token_type"` // "access" or "refresh"
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	IPAddress      string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string    `json:"user_agent,omitempty" db:"user_agent"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        uint      `json:"id" db:"id"`
	UserID    *uint     `json:"user_id,omitempty" db:"user_id"`
	UserNIP   *string   `json:"user_nip,omitempty" db:"user_nip"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource" db:"resource"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Policy represents a policy record under assessment
type Policy struct {
	ID            uint         `json:"id" db:"id"`
	Name          string       `json:"name" db:"name"`
	Sector        string       `json:"sector" db:"sector"`
	EffectiveDate time.Time    `json:"effective_date" db:"effective_date"`
	EvidenceLink  string       `json:"evidence_link" db:"evidence_link"`
	AgencyID      uint         `json:"agency_id" db:"agency_id"`
	AnalystID     *uint        `json:"analyst_id,omitempty" db:"analyst_id"`
	Status        PolicyStatus `json:"status" db:"status"`
	SentToCenter  bool         `json:"sent_to_center" db:"sent_to_center"`
	FinalScore    *float64     `json:"final_score,omitempty" db:"final_score"`
	CreatedBy     uint         `json:"created_by" db:"created_by"`
	UpdatedBy     *uint        `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// PolicyWithDetails includes agency and analyst information for dashboards
type PolicyWithDetails struct {
	Policy
	AgencyName  string `json:"agency_name,omitempty"`
	AnalystName string `json:"analyst_name,omitempty"`
	CreatorName string `json:"creator_name,omitempty"`
}

// AnswerLevel is one selectable level of a question, with its score
type AnswerLevel struct {
	ID          uint   `json:"id" db:"id"`
	QuestionID  uint   `json:"question_id" db:"question_id"`
	LevelID     int    `json:"level_id" db:"level_id"`
	Score       int64  `json:"score" db:"score"`
	Description string `json:"description" db:"description"`
}

// Question is one scored question of the catalog
type Question struct {
	ID          uint      `json:"id" db:"id"`
	Dimension   Dimension `json:"dimension" db:"dimension"`
	ColumnCode  string    `json:"column_code" db:"column_code"`
	Text        string    `json:"text" db:"text"`
	Description string    `json:"description" db:"description"`
	SortOrder   int       `json:"sort_order" db:"sort_order"`
}

// QuestionWithLevels extends Question with its ordered answer levels
type QuestionWithLevels struct {
	Question
	AnswerLevels []AnswerLevel `json:"answer_levels"`
}

// PolicyAssessment is the one-per-policy questionnaire record
type PolicyAssessment struct {
	PolicyID  uint      `json:"policy_id" db:"policy_id"`
	JF        *bool     `json:"jf,omitempty" db:"jf"`
	CreatedBy *uint     `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy *uint     `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AssessmentScore holds the self-assessment and verifier score for one
// question column of one policy. Both values coexist; neither write path
// touches the other column.
type AssessmentScore struct {
	ID            uint      `json:"id" db:"id"`
	PolicyID      uint      `json:"policy_id" db:"policy_id"`
	ColumnCode    string    `json:"column_code" db:"column_code"`
	SelfScore     *int64    `json:"self_score,omitempty" db:"self_score"`
	VerifierScore *int64    `json:"verifier_score,omitempty" db:"verifier_score"`
	UpdatedBy     *uint     `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DimensionNote holds the free-text notes for one dimension of one policy
type DimensionNote struct {
	ID           uint      `json:"id" db:"id"`
	PolicyID     uint      `json:"policy_id" db:"policy_id"`
	Dimension    string    `json:"dimension" db:"dimension"`
	Note         string    `json:"note" db:"note"`
	VerifierNote string    `json:"verifier_note" db:"verifier_note"`
	UpdatedBy    *uint     `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SupportingFile is a per-question evidence link captured during
// self-assessment or verification
type SupportingFile struct {
	ID         uint      `json:"id" db:"id"`
	PolicyID   uint      `json:"policy_id" db:"policy_id"`
	ColumnCode string    `json:"column_code" db:"column_code"`
	Link       string    `json:"link" db:"link"`
	UpdatedBy  *uint     `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// AssessmentCompleteness reports how much of the questionnaire is answered
type AssessmentCompleteness struct {
	TotalQuestions     int      `json:"total_questions"`
	AnsweredQuestions  int      `json:"answered_questions"`
	IsComplete         bool     `json:"is_complete"`
	MissingColumnCodes []string `json:"missing_column_codes,omitempty"`
}

// AssessmentDetail bundles everything a questionnaire screen needs
type AssessmentDetail struct {
	Assessment      *PolicyAssessment `json:"assessment,omitempty"`
	Scores          []AssessmentScore `json:"scores"`
	Notes           []DimensionNote   `json:"notes"`
	SupportingFiles []SupportingFile  `json:"supporting_files"`
}
