package service

import (
	"fmt"
	"math"

	"ikk-backend/internal/autosave"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
)

var noteDimensions = map[string]bool{
	string(models.DimensionPlanning):       true,
	string(models.DimensionImplementation): true,
	string(models.DimensionEvaluation):     true,
	string(models.DimensionTransparency):   true,
	"jf":                                   true,
}

// AssessmentService handles questionnaire business logic: score writes for
// both assessment rounds, notes, evidence links, completeness, and the
// final score computation
type AssessmentService struct {
	assessmentRepo *repository.AssessmentRepository
	policyRepo     *repository.PolicyRepository
	questionRepo   *repository.QuestionRepository
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(
	assessmentRepo *repository.AssessmentRepository,
	policyRepo *repository.PolicyRepository,
	questionRepo *repository.QuestionRepository,
) *AssessmentService {
	return &AssessmentService{
		assessmentRepo: assessmentRepo,
		policyRepo:     policyRepo,
		questionRepo:   questionRepo,
	}
}

// AuthorizeSelfAssessment checks that the user may edit the self-assessment
// of a policy: they are its assigned analyst and the policy is in PROSES
func (s *AssessmentService) AuthorizeSelfAssessment(policyID uint, user *models.User, roles []string) (*models.Policy, error) {
	policy, err := s.policyRepo.GetByID(policyID)
	if err != nil {
		return nil, err
	}

	if !hasRole(roles, models.RoleAnalisInstansi) {
		return nil, fmt.Errorf("permission denied: requires analyst role")
	}
	if policy.AnalystID == nil || *policy.AnalystID != user.ID {
		return nil, fmt.Errorf("permission denied: policy is assigned to another analyst")
	}
	if policy.Status != models.StatusProses {
		return nil, fmt.Errorf("self-assessment is only editable while the policy is in %s", models.StatusProses)
	}

	return policy, nil
}

// AuthorizeVerification checks that the user may write verifier scores:
// they hold the verifier role and the policy awaits validation
func (s *AssessmentService) AuthorizeVerification(policyID uint, roles []string) (*models.Policy, error) {
	policy, err := s.policyRepo.GetByID(policyID)
	if err != nil {
		return nil, err
	}

	if !hasRole(roles, models.RoleVerifikator) {
		return nil, fmt.Errorf("permission denied: requires verifier role")
	}
	if policy.Status != models.StatusMenungguValidasi {
		return nil, fmt.Errorf("verification is only possible while the policy is in %s", models.StatusMenungguValidasi)
	}

	return policy, nil
}

// ValidatePatch checks every value of a questionnaire patch against the
// catalog before it is queued for autosave
func (s *AssessmentService) ValidatePatch(patch autosave.Patch) error {
	if len(patch.Scores) > 0 {
		valid, err := s.questionRepo.GetValidScores()
		if err != nil {
			return err
		}
		for columnCode, score := range patch.Scores {
			levels, ok := valid[columnCode]
			if !ok {
				return fmt.Errorf("unknown column code %q", columnCode)
			}
			if !levels[score] {
				return fmt.Errorf("score %d is not a selectable level for column %s", score, columnCode)
			}
		}
	}

	for dimension := range patch.Notes {
		if !noteDimensions[dimension] {
			return fmt.Errorf("unknown dimension %q", dimension)
		}
	}

	for columnCode := range patch.Files {
		if _, err := s.questionRepo.GetByColumnCode(columnCode); err != nil {
			return fmt.Errorf("unknown column code %q", columnCode)
		}
	}

	return nil
}

// ApplySelfPatch persists a coalesced self-assessment patch. Used as the
// autosave flush function; validation and authorization happened at queue
// time.
func (s *AssessmentService) ApplySelfPatch(policyID, userID uint, patch autosave.Patch) error {
	if err := s.assessmentRepo.EnsureAssessment(policyID, userID); err != nil {
		return err
	}

	for columnCode, score := range patch.Scores {
		if err := s.assessmentRepo.UpsertSelfScore(policyID, columnCode, score, userID); err != nil {
			return err
		}
	}
	for dimension, note := range patch.Notes {
		if err := s.assessmentRepo.UpsertNote(policyID, dimension, note, userID); err != nil {
			return err
		}
	}
	for columnCode, link := range patch.Files {
		if err := s.assessmentRepo.UpsertSupportingFile(policyID, columnCode, link, userID); err != nil {
			return err
		}
	}
	if patch.JF != nil {
		if err := s.assessmentRepo.SetJF(policyID, *patch.JF, userID); err != nil {
			return err
		}
	}

	return nil
}

// SaveVerifierScore writes one verifier score after authorization
func (s *AssessmentService) SaveVerifierScore(policyID uint, columnCode string, score int64, userID uint, roles []string) error {
	if _, err := s.AuthorizeVerification(policyID, roles); err != nil {
		return err
	}

	valid, err := s.questionRepo.GetValidScores()
	if err != nil {
		return err
	}
	levels, ok := valid[columnCode]
	if !ok {
		return fmt.Errorf("unknown column code %q", columnCode)
	}
	if !levels[score] {
		return fmt.Errorf("score %d is not a selectable level for column %s", score, columnCode)
	}

	return s.assessmentRepo.UpsertVerifierScore(policyID, columnCode, score, userID)
}

// SaveVerifierNote writes one verifier note after authorization
func (s *AssessmentService) SaveVerifierNote(policyID uint, dimension, note string, userID uint, roles []string) error {
	if _, err := s.AuthorizeVerification(policyID, roles); err != nil {
		return err
	}

	if !noteDimensions[dimension] {
		return fmt.Errorf("unknown dimension %q", dimension)
	}

	return s.assessmentRepo.UpsertVerifierNote(policyID, dimension, note, userID)
}

// DeleteSupportingFile removes an evidence link from the self-assessment
func (s *AssessmentService) DeleteSupportingFile(policyID uint, columnCode string, user *models.User, roles []string) error {
	if _, err := s.AuthorizeSelfAssessment(policyID, user, roles); err != nil {
		return err
	}
	return s.assessmentRepo.DeleteSupportingFile(policyID, columnCode)
}

// GetDetail bundles everything a questionnaire screen needs for one policy
func (s *AssessmentService) GetDetail(policyID uint) (*models.AssessmentDetail, error) {
	assessment, err := s.assessmentRepo.GetAssessment(policyID)
	if err != nil {
		return nil, err
	}

	scores, err := s.assessmentRepo.GetScores(policyID)
	if err != nil {
		return nil, err
	}

	notes, err := s.assessmentRepo.GetNotes(policyID)
	if err != nil {
		return nil, err
	}

	files, err := s.assessmentRepo.GetSupportingFiles(policyID)
	if err != nil {
		return nil, err
	}

	return &models.AssessmentDetail{
		Assessment:      assessment,
		Scores:          scores,
		Notes:           notes,
		SupportingFiles: files,
	}, nil
}

// SelfCompleteness reports how much of the self-assessment is answered
func (s *AssessmentService) SelfCompleteness(policyID uint) (*models.AssessmentCompleteness, error) {
	missing, err := s.assessmentRepo.GetMissingSelfScoreColumns(policyID)
	if err != nil {
		return nil, err
	}
	return s.completeness(missing)
}

// VerifierCompleteness reports how much of the verification is answered
func (s *AssessmentService) VerifierCompleteness(policyID uint) (*models.AssessmentCompleteness, error) {
	missing, err := s.assessmentRepo.GetMissingVerifierScoreColumns(policyID)
	if err != nil {
		return nil, err
	}
	return s.completeness(missing)
}

func (s *AssessmentService) completeness(missing []string) (*models.AssessmentCompleteness, error) {
	total, err := s.assessmentRepo.CountQuestions()
	if err != nil {
		return nil, err
	}

	return &models.AssessmentCompleteness{
		TotalQuestions:     total,
		AnsweredQuestions:  total - len(missing),
		IsComplete:         len(missing) == 0,
		MissingColumnCodes: missing,
	}, nil
}

// ComputeFinalScore calculates the final score of a policy as the arithmetic
// mean of its verifier scores, rounded to two decimals. Requires a complete
// verification round.
func (s *AssessmentService) ComputeFinalScore(policyID uint) (float64, error) {
	scores, err := s.assessmentRepo.GetScores(policyID)
	if err != nil {
		return 0, err
	}

	total, err := s.assessmentRepo.CountQuestions()
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, fmt.Errorf("question catalog is empty, no score to compute")
	}

	var sum int64
	var answered int
	for _, score := range scores {
		if score.VerifierScore != nil {
			sum += *score.VerifierScore
			answered++
		}
	}

	if answered < total {
		return 0, fmt.Errorf("verification incomplete: %d of %d questions scored", answered, total)
	}

	return meanRounded(sum, answered), nil
}

// meanRounded computes sum/count rounded to two decimals
func meanRounded(sum int64, count int) float64 {
	mean := float64(sum) / float64(count)
	return math.Round(mean*100) / 100
}
