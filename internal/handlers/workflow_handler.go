package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ikk-backend/internal/middleware"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/service"
)

// WorkflowHandler exposes the policy lifecycle actions
type WorkflowHandler struct {
	workflowService *service.WorkflowService
	userRepo        *repository.UserRepository
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflowService *service.WorkflowService, userRepo *repository.UserRepository) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		userRepo:        userRepo,
	}
}

// AssignAnalystRequest represents an analyst assignment request
type AssignAnalystRequest struct {
	AnalystID uint `json:"analyst_id" validate:"required"`
}

func (h *WorkflowHandler) caller(r *http.Request) (*models.User, []string, error) {
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

// SendToCenter forwards a policy to the national coordinator
// @Summary Send policy to center
// @Description Forward a submitted policy to the national coordinator for approval
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} models.Policy
// @Failure 409 {object} map[string]string "Policy already sent"
// @Router /policies/{id}/send-to-center [post]
func (h *WorkflowHandler) SendToCenter(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.workflowService.SendToCenter)
}

// Approve accepts a forwarded policy into the assessment pipeline
// @Summary Approve policy
// @Description Accept a forwarded policy into the assessment pipeline
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} models.Policy
// @Failure 400 {object} map[string]string "Policy not yet sent to the center"
// @Router /policies/{id}/approve [post]
func (h *WorkflowHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.workflowService.Approve)
}

// AssignAnalyst assigns or re-assigns the policy's analyst
// @Summary Assign analyst
// @Description Put an analyst of the policy's agency in charge of the self-assessment. Re-assignment hands all recorded answers to the new analyst.
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Param request body AssignAnalystRequest true "Analyst"
// @Success 200 {object} models.Policy
// @Failure 400 {object} map[string]string "Analyst not assignable"
// @Router /policies/{id}/assign-analyst [post]
func (h *WorkflowHandler) AssignAnalyst(w http.ResponseWriter, r *http.Request) {
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

	var req AssignAnalystRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.AnalystID == 0 {
		respondWithError(w, http.StatusBadRequest, "analyst_id is required")
		return
	}

	policy, err := h.workflowService.AssignAnalyst(id, req.AnalystID, user, roles)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, policy)
}

// SubmitAssessment hands a complete self-assessment over to verification
// @Summary Submit self-assessment
// @Description Submit the self-assessment for verification. Pending autosaved edits are flushed first; an incomplete questionnaire is rejected with the missing column codes.
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} models.Policy
// @Failure 400 {object} map[string]string "Self-assessment incomplete"
// @Router /policies/{id}/submit-assessment [post]
func (h *WorkflowHandler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.workflowService.SubmitAssessment)
}

// Finalize closes the verification round and computes the final score
// @Summary Finalize policy
// @Description Compute the final score from the verifier scores and mark the policy SELESAI
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} models.Policy
// @Failure 400 {object} map[string]string "Verification incomplete"
// @Router /policies/{id}/finalize [post]
func (h *WorkflowHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.workflowService.Finalize)
}

// AvailableActions returns the workflow actions the caller may take
// @Summary List available actions
// @Description Return the workflow actions the caller's roles permit on the policy in its current status
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} map[string][]string "Available actions"
// @Router /policies/{id}/actions [get]
func (h *WorkflowHandler) AvailableActions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	roles, _ := middleware.GetUserRoles(r)

	actions, err := h.workflowService.AvailableActions(id, roles)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, string(action))
	}

	respondWithJSON(w, http.StatusOK, map[string][]string{"actions": names})
}

// action runs one parameterless workflow transition
func (h *WorkflowHandler) action(w http.ResponseWriter, r *http.Request, fn func(uint, *models.User, []string) (*models.Policy, error)) {
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

	policy, err := fn(id, user, roles)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, policy)
}
