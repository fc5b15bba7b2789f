package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ikk-backend/internal/middleware"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/service"
	"ikk-backend/pkg/validator"
)

// PolicyHandler handles policy CRUD requests
type PolicyHandler struct {
	policyService *service.PolicyService
	userRepo      *repository.UserRepository
	auditMw       *middleware.AuditMiddleware
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(policyService *service.PolicyService, userRepo *repository.UserRepository, auditMw *middleware.AuditMiddleware) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
		userRepo:      userRepo,
		auditMw:       auditMw,
	}
}

// PolicyRequest represents a policy create/update request
type PolicyRequest struct {
	Name          string `json:"name" validate:"required"`
	Sector        string `json:"sector" validate:"required"`
	EffectiveDate string `json:"effective_date" validate:"required"` // YYYY-MM-DD
	EvidenceLink  string `json:"evidence_link"`
}

func (req *PolicyRequest) parseEffectiveDate() (time.Time, error) {
	return time.Parse("2006-01-02", req.EffectiveDate)
}

// caller loads the authenticated user and their context roles
func (h *PolicyHandler) caller(r *http.Request) (*models.User, []string, error) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		return nil, nil, fmt.Errorf("user ID not found in context")
	}
	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}
	roles, _ := middleware.GetUserRoles(r)
	return user, roles, nil
}

// Create registers a new policy
// @Summary Create policy
// @Description Register a policy submission for the coordinator's agency
// @Tags Policies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PolicyRequest true "Policy data"
// @Success 201 {object} models.Policy
// @Failure 400 {object} map[string]string "Effective date outside the assessable window"
// @Router /policies [post]
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	effectiveDate, err := req.parseEffectiveDate()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Effective date must be formatted YYYY-MM-DD")
		return
	}

	policy := &models.Policy{
		Name:          validator.SanitizeString(req.Name),
		Sector:        req.Sector,
		EffectiveDate: effectiveDate,
		EvidenceLink:  req.EvidenceLink,
	}

	created, err := h.policyService.Create(policy, user)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.logAction(r, "policy.create", fmt.Sprintf("Created policy %d (%s)", created.ID, created.Name))
	respondWithJSON(w, http.StatusCreated, created)
}

// List returns the policies visible to the caller
// @Summary List policies
// @Description List policies scoped by the caller's role
// @Tags Policies
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name or sector"
// @Param status query string false "Comma-separated statuses"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{} "Policies with total count"
// @Router /policies [get]
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	limit, offset := parsePagination(r)

	filters := repository.PolicyFilters{
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				filters.Statuses = append(filters.Statuses, trimmed)
			}
		}
	}

	policies, total, err := h.policyService.List(filters, user, roles, limit, offset)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"policies": policies,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get returns one policy with details
// @Summary Get policy
// @Tags Policies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} models.PolicyWithDetails
// @Failure 403 {object} map[string]string "Policy not visible to the caller"
// @Failure 404 {object} map[string]string "Policy not found"
// @Router /policies/{id} [get]
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	policy, err := h.policyService.GetByID(id, user, roles)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, policy)
}

// Update edits a policy's descriptive fields
// @Summary Update policy
// @Description Edit a policy while it has not been forwarded to the center
// @Tags Policies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Param request body PolicyRequest true "Policy data"
// @Success 200 {object} models.Policy
// @Failure 409 {object} map[string]string "Policy already forwarded"
// @Router /policies/{id} [put]
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	effectiveDate, err := req.parseEffectiveDate()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Effective date must be formatted YYYY-MM-DD")
		return
	}

	policy, err := h.policyService.Update(id, validator.SanitizeString(req.Name), req.Sector, req.EvidenceLink, effectiveDate, user, roles)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.logAction(r, "policy.update", fmt.Sprintf("Updated policy %d", id))
	respondWithJSON(w, http.StatusOK, policy)
}

// Delete removes a policy
// @Summary Delete policy
// @Description Delete a policy that has not entered the assessment pipeline
// @Tags Policies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} map[string]string "Policy deleted"
// @Failure 409 {object} map[string]string "Policy already forwarded"
// @Router /policies/{id} [delete]
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	if err := h.policyService.Delete(id, user, roles); err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.logAction(r, "policy.delete", fmt.Sprintf("Deleted policy %d", id))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Policy deleted"})
}

// ListAnalysts returns the analysts the caller can assign policies to
// @Summary List assignable analysts
// @Description List the active analysts of the coordinator's agency
// @Tags Policies
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /policies/analysts [get]
func (h *PolicyHandler) ListAnalysts(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	analysts, err := h.policyService.ListAssignableAnalysts(user)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, analysts)
}

func (h *PolicyHandler) logAction(r *http.Request, action, details string) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		return
	}
	var nip *string
	if n, ok := middleware.GetUserNIP(r); ok {
		nip = &n
	}
	_ = h.auditMw.LogAction(&userID, nip, action, "policies", details, getIP(r), r.UserAgent())
}
