package service

import (
	"fmt"
	"time"

	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
)

// PolicyService handles policy business logic
type PolicyService struct {
	policyRepo *repository.PolicyRepository
	userRepo   *repository.UserRepository
}

// NewPolicyService creates a new policy service
func NewPolicyService(policyRepo *repository.PolicyRepository, userRepo *repository.UserRepository) *PolicyService {
	return &PolicyService{
		policyRepo: policyRepo,
		userRepo:   userRepo,
	}
}

// validateEffectiveDate checks that a policy's effective date falls in the
// assessable window: between two years and one year before now. Policies
// outside the window are either too fresh to evaluate or too old to matter.
func validateEffectiveDate(effectiveDate, now time.Time) error {
	earliest := now.AddDate(-2, 0, 0)
	latest := now.AddDate(-1, 0, 0)

	if effectiveDate.Before(earliest) {
		return fmt.Errorf("effective date must not be older than %s", earliest.Format("2006-01-02"))
	}
	if effectiveDate.After(latest) {
		return fmt.Errorf("effective date must be at least one year ago (%s or earlier)", latest.Format("2006-01-02"))
	}
	return nil
}

// Create registers a new policy submission for the coordinator's agency
func (s *PolicyService) Create(policy *models.Policy, creator *models.User) (*models.Policy, error) {
	if creator.AgencyID == nil {
		return nil, fmt.Errorf("permission denied: user has no agency")
	}

	if err := validateEffectiveDate(policy.EffectiveDate, time.Now()); err != nil {
		return nil, err
	}

	policy.AgencyID = *creator.AgencyID
	policy.Status = models.StatusDiajukan
	policy.SentToCenter = false
	policy.CreatedBy = creator.ID

	if err := s.policyRepo.Create(policy); err != nil {
		return nil, err
	}

	return policy, nil
}

// Update edits a policy's descriptive fields. Only possible while the policy
// has not been forwarded to the national coordinator.
func (s *PolicyService) Update(policyID uint, name, sector, evidenceLink string, effectiveDate time.Time, user *models.User, roles []string) (*models.Policy, error) {
	policy, err := s.policyRepo.GetByID(policyID)
	if err != nil {
		return nil, err
	}

	if err := s.requireAgencyCoordinator(policy, user, roles); err != nil {
		return nil, err
	}
	if policy.Status != models.StatusDiajukan || policy.SentToCenter {
		return nil, fmt.Errorf("policy already forwarded and can no longer be edited")
	}

	if err := validateEffectiveDate(effectiveDate, time.Now()); err != nil {
		return nil, err
	}

	policy.Name = name
	policy.Sector = sector
	policy.EvidenceLink = evidenceLink
	policy.EffectiveDate = effectiveDate
	policy.UpdatedBy = &user.ID

	if err := s.policyRepo.Update(policy); err != nil {
		return nil, err
	}

	return policy, nil
}

// Delete removes a policy that has not entered the assessment pipeline.
// A forwarded policy is never hard-deleted: its scores and audit trail must
// survive. Admins may clean up unforwarded submissions of any agency;
// coordinators only their own.
func (s *PolicyService) Delete(policyID uint, user *models.User, roles []string) error {
	policy, err := s.policyRepo.GetByID(policyID)
	if err != nil {
		return err
	}

	if policy.Status != models.StatusDiajukan || policy.SentToCenter {
		return fmt.Errorf("policy already forwarded and can no longer be deleted")
	}

	if !hasRole(roles, models.RoleAdmin) {
		if err := s.requireAgencyCoordinator(policy, user, roles); err != nil {
			return err
		}
		if policy.CreatedBy != user.ID {
			return fmt.Errorf("permission denied: only the creator may delete a submission")
		}
	}

	return s.policyRepo.Delete(policyID)
}

// GetByID retrieves a policy with details, enforcing role-based visibility
func (s *PolicyService) GetByID(policyID uint, user *models.User, roles []string) (*models.PolicyWithDetails, error) {
	policy, err := s.policyRepo.GetByIDWithDetails(policyID)
	if err != nil {
		return nil, err
	}

	if !s.canView(&policy.Policy, user, roles) {
		return nil, fmt.Errorf("permission denied: policy belongs to another agency")
	}

	return policy, nil
}

// List retrieves the policies visible to the caller, scoped by role:
// national roles see everything relevant to them, agency roles only their own
func (s *PolicyService) List(filters repository.PolicyFilters, user *models.User, roles []string, limit, offset int) ([]models.PolicyWithDetails, int, error) {
	switch {
	case hasRole(roles, models.RoleAdmin):
		// unrestricted
	case hasRole(roles, models.RoleKoordinatorNasional):
		// the center only sees what agencies have forwarded
		sent := true
		filters.SentToCenter = &sent
	case hasRole(roles, models.RoleVerifikator):
		filters.Statuses = []string{
			string(models.StatusMenungguValidasi),
			string(models.StatusSelesai),
		}
	case hasRole(roles, models.RoleKoordinatorInstansi):
		if user.AgencyID == nil {
			return nil, 0, fmt.Errorf("permission denied: user has no agency")
		}
		filters.AgencyID = user.AgencyID
	case hasRole(roles, models.RoleAnalisInstansi):
		filters.AnalystID = &user.ID
	default:
		return nil, 0, fmt.Errorf("permission denied: no role grants policy access")
	}

	policies, err := s.policyRepo.GetAllWithFilters(filters, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.policyRepo.CountWithFilters(filters)
	if err != nil {
		return nil, 0, err
	}

	return policies, total, nil
}

// ListAssignableAnalysts returns the active analysts of the coordinator's agency
func (s *PolicyService) ListAssignableAnalysts(user *models.User) ([]models.User, error) {
	if user.AgencyID == nil {
		return nil, fmt.Errorf("permission denied: user has no agency")
	}
	return s.userRepo.GetByAgencyAndRole(*user.AgencyID, models.RoleAnalisInstansi)
}

// canView applies the same per-role visibility rules as List to one policy
func (s *PolicyService) canView(policy *models.Policy, user *models.User, roles []string) bool {
	switch {
	case hasRole(roles, models.RoleAdmin):
		return true
	case hasRole(roles, models.RoleKoordinatorNasional):
		return policy.SentToCenter
	case hasRole(roles, models.RoleVerifikator):
		return policy.Status == models.StatusMenungguValidasi || policy.Status == models.StatusSelesai
	case hasRole(roles, models.RoleKoordinatorInstansi):
		return user.AgencyID != nil && policy.AgencyID == *user.AgencyID
	case hasRole(roles, models.RoleAnalisInstansi):
		return policy.AnalystID != nil && *policy.AnalystID == user.ID
	}
	return false
}

// requireAgencyCoordinator checks the caller coordinates the policy's agency
func (s *PolicyService) requireAgencyCoordinator(policy *models.Policy, user *models.User, roles []string) error {
	if !hasRole(roles, models.RoleKoordinatorInstansi) {
		return fmt.Errorf("permission denied: requires agency coordinator role")
	}
	if user.AgencyID == nil || policy.AgencyID != *user.AgencyID {
		return fmt.Errorf("permission denied: policy belongs to another agency")
	}
	return nil
}

func hasRole(roles []string, name string) bool {
	for _, role := range roles {
		if role == name {
			return true
		}
	}
	return false
}
