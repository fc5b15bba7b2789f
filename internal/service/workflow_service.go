package service

import (
	"fmt"
	"log/slog"
	"time"

	"ikk-backend/internal/email"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/workflow"
)

// pendingFlusher drains debounced questionnaire edits before a submission
// is evaluated, so a just-made edit cannot be lost between autosave and
// the completeness check
type pendingFlusher interface {
	Flush()
}

// WorkflowService drives policies through their lifecycle. Every status
// change runs through the workflow transition table plus the per-action
// guard implemented here.
type WorkflowService struct {
	policyRepo     *repository.PolicyRepository
	userRepo       *repository.UserRepository
	roleRepo       *repository.RoleRepository
	auditRepo      *repository.AuditRepository
	assessmentSvc  *AssessmentService
	emailSvc       *email.Service
	pendingFlusher pendingFlusher
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(
	policyRepo *repository.PolicyRepository,
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	auditRepo *repository.AuditRepository,
	assessmentSvc *AssessmentService,
	emailSvc *email.Service,
	flusher pendingFlusher,
) *WorkflowService {
	return &WorkflowService{
		policyRepo:     policyRepo,
		userRepo:       userRepo,
		roleRepo:       roleRepo,
		auditRepo:      auditRepo,
		assessmentSvc:  assessmentSvc,
		emailSvc:       emailSvc,
		pendingFlusher: flusher,
	}
}

// SendToCenter forwards a submitted policy to the national coordinator
func (s *WorkflowService) SendToCenter(policyID uint, user *models.User, roles []string) (*models.Policy, error) {
	policy, transition, err := s.resolve(policyID, workflow.ActionSendToCenter, user, roles)
	if err != nil {
		return nil, err
	}

	if user.AgencyID == nil || policy.AgencyID != *user.AgencyID {
		return nil, fmt.Errorf("permission denied: policy belongs to another agency")
	}
	if policy.SentToCenter {
		return nil, fmt.Errorf("policy already sent to the national coordinator")
	}

	if err := s.policyRepo.SetSentToCenter(policyID, user.ID); err != nil {
		return nil, err
	}

	s.audit(user, "policy.send_to_center", policyID, "")
	return s.finish(policyID, transition, user)
}

// Approve accepts a forwarded policy into the assessment pipeline
func (s *WorkflowService) Approve(policyID uint, user *models.User, roles []string) (*models.Policy, error) {
	policy, transition, err := s.resolve(policyID, workflow.ActionApprove, user, roles)
	if err != nil {
		return nil, err
	}

	if !policy.SentToCenter {
		return nil, fmt.Errorf("policy has not been sent to the national coordinator")
	}

	s.audit(user, "policy.approve", policyID, "")
	return s.finish(policyID, transition, user)
}

// AssignAnalyst puts an analyst of the policy's agency in charge of the
// self-assessment. Re-assignment during PROSES hands all recorded answers
// to the new analyst.
func (s *WorkflowService) AssignAnalyst(policyID, analystID uint, user *models.User, roles []string) (*models.Policy, error) {
	policy, transition, err := s.resolve(policyID, workflow.ActionAssignAnalyst, user, roles)
	if err != nil {
		return nil, err
	}

	if user.AgencyID == nil || policy.AgencyID != *user.AgencyID {
		return nil, fmt.Errorf("permission denied: policy belongs to another agency")
	}

	analyst, err := s.userRepo.GetByID(analystID)
	if err != nil {
		return nil, fmt.Errorf("analyst not found")
	}
	if analyst.AgencyID == nil || *analyst.AgencyID != policy.AgencyID {
		return nil, fmt.Errorf("analyst belongs to another agency")
	}
	if !analyst.IsActive {
		return nil, fmt.Errorf("analyst account is inactive")
	}

	analystRoles, err := s.userRepo.GetUserRoles(analystID)
	if err != nil {
		return nil, err
	}
	isAnalyst := false
	for _, role := range analystRoles {
		if role.Name == models.RoleAnalisInstansi {
			isAnalyst = true
			break
		}
	}
	if !isAnalyst {
		return nil, fmt.Errorf("user %s does not hold the analyst role", analyst.Name)
	}

	if err := s.policyRepo.AssignAnalyst(policyID, analystID, user.ID); err != nil {
		return nil, err
	}

	s.audit(user, "policy.assign_analyst", policyID, fmt.Sprintf("analyst_id=%d", analystID))

	if err := s.emailSvc.SendAnalystAssignedNotification(analyst.Email, analyst.Name, policy.Name, policyID); err != nil {
		slog.Warn("Failed to send assignment notification", "policy_id", policyID, "error", err)
	}

	return s.finish(policyID, transition, user)
}

// SubmitAssessment hands a complete self-assessment over to verification
func (s *WorkflowService) SubmitAssessment(policyID uint, user *models.User, roles []string) (*models.Policy, error) {
	policy, transition, err := s.resolve(policyID, workflow.ActionSubmitAssessment, user, roles)
	if err != nil {
		return nil, err
	}

	if policy.AnalystID == nil || *policy.AnalystID != user.ID {
		return nil, fmt.Errorf("permission denied: policy is assigned to another analyst")
	}

	// Edits may still sit in the autosave debouncer
	if s.pendingFlusher != nil {
		s.pendingFlusher.Flush()
	}

	completeness, err := s.assessmentSvc.SelfCompleteness(policyID)
	if err != nil {
		return nil, err
	}
	if !completeness.IsComplete {
		return nil, fmt.Errorf("self-assessment incomplete: %d of %d questions scored, missing %v",
			completeness.AnsweredQuestions, completeness.TotalQuestions, completeness.MissingColumnCodes)
	}

	assessment, err := s.assessmentSvc.assessmentRepo.GetAssessment(policyID)
	if err != nil {
		return nil, err
	}
	if assessment == nil || assessment.JF == nil {
		return nil, fmt.Errorf("self-assessment incomplete: the functional position question is unanswered")
	}

	s.audit(user, "policy.submit_assessment", policyID, "")
	s.notifyVerifiers(policy)
	s.notifyAgencyCoordinators(policy)

	return s.finish(policyID, transition, user)
}

// Finalize closes the verification round: computes the final score from the
// verifier scores and marks the policy SELESAI
func (s *WorkflowService) Finalize(policyID uint, user *models.User, roles []string) (*models.Policy, error) {
	policy, transition, err := s.resolve(policyID, workflow.ActionFinalize, user, roles)
	if err != nil {
		return nil, err
	}

	finalScore, err := s.assessmentSvc.ComputeFinalScore(policyID)
	if err != nil {
		return nil, err
	}

	if err := s.policyRepo.SetFinalScore(policyID, finalScore, user.ID); err != nil {
		return nil, err
	}

	s.audit(user, "policy.finalize", policyID, fmt.Sprintf("final_score=%.2f", finalScore))

	if creator, err := s.userRepo.GetByID(policy.CreatedBy); err == nil {
		if err := s.emailSvc.SendFinalizedNotification(creator.Email, creator.Name, policy.Name, finalScore); err != nil {
			slog.Warn("Failed to send finalization notification", "policy_id", policyID, "error", err)
		}
	}

	return s.finish(policyID, transition, user)
}

// AvailableActions returns the workflow actions the caller may take on a policy
func (s *WorkflowService) AvailableActions(policyID uint, roles []string) ([]workflow.Action, error) {
	policy, err := s.policyRepo.GetByID(policyID)
	if err != nil {
		return nil, err
	}
	return workflow.Actions(policy.Status, roles), nil
}

// resolve loads the policy and checks the transition table
func (s *WorkflowService) resolve(policyID uint, action workflow.Action, user *models.User, roles []string) (*models.Policy, workflow.Transition, error) {
	policy, err := s.policyRepo.GetByID(policyID)
	if err != nil {
		return nil, workflow.Transition{}, err
	}

	transition, err := workflow.Resolve(policy.Status, action, roles)
	if err != nil {
		return nil, workflow.Transition{}, err
	}

	return policy, transition, nil
}

// finish writes the transition's target status and returns the fresh policy
func (s *WorkflowService) finish(policyID uint, transition workflow.Transition, user *models.User) (*models.Policy, error) {
	if err := s.policyRepo.UpdateStatus(policyID, transition.Next, user.ID); err != nil {
		return nil, err
	}
	return s.policyRepo.GetByID(policyID)
}

// notifyVerifiers emails every active verifier that a policy awaits validation
func (s *WorkflowService) notifyVerifiers(policy *models.Policy) {
	role, err := s.roleRepo.GetByName(models.RoleVerifikator)
	if err != nil {
		slog.Warn("Verifier role not found, skipping notification", "error", err)
		return
	}

	active := true
	verifiers, err := s.userRepo.GetAllWithFilters(repository.UserFilters{
		RoleIDs:  []int{int(role.ID)},
		IsActive: &active,
	}, 100, 0)
	if err != nil {
		slog.Warn("Failed to list verifiers for notification", "error", err)
		return
	}

	detail, err := s.policyRepo.GetByIDWithDetails(policy.ID)
	agencyName := ""
	if err == nil {
		agencyName = detail.AgencyName
	}

	for _, verifier := range verifiers {
		if err := s.emailSvc.SendVerificationRequestNotification(verifier.Email, policy.Name, agencyName, policy.ID); err != nil {
			slog.Warn("Failed to send verification notification", "policy_id", policy.ID, "to", verifier.Email, "error", err)
		}
	}
}

// notifyAgencyCoordinators tells the policy's agency coordinators the
// self-assessment went out for validation
func (s *WorkflowService) notifyAgencyCoordinators(policy *models.Policy) {
	coordinators, err := s.userRepo.GetByAgencyAndRole(policy.AgencyID, models.RoleKoordinatorInstansi)
	if err != nil {
		slog.Warn("Failed to list agency coordinators for notification", "policy_id", policy.ID, "error", err)
		return
	}

	for _, coordinator := range coordinators {
		if err := s.emailSvc.SendAssessmentSubmittedNotification(coordinator.Email, coordinator.Name, policy.Name, policy.ID); err != nil {
			slog.Warn("Failed to send submission notification", "policy_id", policy.ID, "to", coordinator.Email, "error", err)
		}
	}
}

func (s *WorkflowService) audit(user *models.User, action string, policyID uint, details string) {
	log := &models.AuditLog{
		UserID:   &user.ID,
		UserNIP:  &user.NIP,
		Action:   action,
		Resource: fmt.Sprintf("policy/%d", policyID),
		Details:  details,
	}
	if err := s.auditRepo.Create(log); err != nil {
		slog.Error("Failed to write workflow audit log", "action", action, "policy_id", policyID, "error", err)
	}
}

// StalledPolicies returns unfinished policies untouched for longer than staleAfter
func (s *WorkflowService) StalledPolicies(staleAfter time.Duration) ([]models.PolicyWithDetails, error) {
	return s.policyRepo.GetStalled(time.Now().Add(-staleAfter))
}
