package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ikk-backend/internal/autosave"
	"ikk-backend/internal/middleware"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/service"
)

// AssessmentHandler handles questionnaire requests: autosaved self-assessment
// edits, verifier writes, evidence links, and completeness reporting
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
	policyService     *service.PolicyService
	userRepo          *repository.UserRepository
	debouncer         *autosave.Debouncer
	auditMw           *middleware.AuditMiddleware
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(
	assessmentService *service.AssessmentService,
	policyService *service.PolicyService,
	userRepo *repository.UserRepository,
	debouncer *autosave.Debouncer,
	auditMw *middleware.AuditMiddleware,
) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		policyService:     policyService,
		userRepo:          userRepo,
		debouncer:         debouncer,
		auditMw:           auditMw,
	}
}

// PatchRequest represents a partial questionnaire edit. Only the fields
// present are touched; maps are keyed by column code (scores, files) or
// dimension (notes).
type PatchRequest struct {
	Scores map[string]int64  `json:"scores,omitempty"`
	Notes  map[string]string `json:"notes,omitempty"`
	Files  map[string]string `json:"files,omitempty"`
	JF     *bool             `json:"jf,omitempty"`
}

// VerifierScoreRequest represents one verifier score write
type VerifierScoreRequest struct {
	ColumnCode string `json:"column_code" validate:"required"`
	Score      int64  `json:"score"`
}

// VerifierNoteRequest represents one verifier note write
type VerifierNoteRequest struct {
	Dimension string `json:"dimension" validate:"required"`
	Note      string `json:"note"`
}

func (h *AssessmentHandler) caller(r *http.Request) (*models.User, []string, error) {
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

// Patch queues a self-assessment edit for autosave
// @Summary Autosave questionnaire edit
// @Description Queue a partial self-assessment edit. Rapid edits within the quiet period are coalesced into one write.
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Param request body PatchRequest true "Partial edit"
// @Success 202 {object} map[string]string "Edit queued"
// @Failure 400 {object} map[string]string "Unknown column or non-selectable score"
// @Failure 403 {object} map[string]string "Not the assigned analyst"
// @Router /policies/{id}/assessment [patch]
func (h *AssessmentHandler) Patch(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if _, err := h.assessmentService.AuthorizeSelfAssessment(policyID, user, roles); err != nil {
		respondWithServiceError(w, err)
		return
	}

	patch := autosave.Patch{
		Scores: req.Scores,
		Notes:  req.Notes,
		Files:  req.Files,
		JF:     req.JF,
	}

	if err := h.assessmentService.ValidatePatch(patch); err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.debouncer.Queue(policyID, user.ID, patch)

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"save_state": string(h.debouncer.State(policyID)),
	})
}

// SaveState reports the autosave state of a policy's questionnaire
// @Summary Get autosave state
// @Description Report whether the policy's pending edits are saved, saving, or failed
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} map[string]string "Current save state"
// @Router /policies/{id}/assessment/save-state [get]
func (h *AssessmentHandler) SaveState(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"save_state": string(h.debouncer.State(policyID)),
	})
}

// GetDetail returns the full questionnaire state of a policy
// @Summary Get assessment detail
// @Description Return the policy's assessment record, scores of both rounds, notes, and evidence links
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} models.AssessmentDetail
// @Failure 403 {object} map[string]string "Policy not visible to the caller"
// @Router /policies/{id}/assessment [get]
func (h *AssessmentHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	// Visibility follows the policy itself
	if _, err := h.policyService.GetByID(policyID, user, roles); err != nil {
		respondWithServiceError(w, err)
		return
	}

	detail, err := h.assessmentService.GetDetail(policyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// Completeness reports how much of each assessment round is answered
// @Summary Get assessment completeness
// @Description Report answered counts and missing column codes for both rounds
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Success 200 {object} map[string]models.AssessmentCompleteness
// @Router /policies/{id}/assessment/completeness [get]
func (h *AssessmentHandler) Completeness(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	if _, err := h.policyService.GetByID(policyID, user, roles); err != nil {
		respondWithServiceError(w, err)
		return
	}

	self, err := h.assessmentService.SelfCompleteness(policyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	verifier, err := h.assessmentService.VerifierCompleteness(policyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]*models.AssessmentCompleteness{
		"self":     self,
		"verifier": verifier,
	})
}

// SaveVerifierScore writes one verifier score
// @Summary Save verifier score
// @Description Write one verifier score. The analyst's self score is untouched.
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Param request body VerifierScoreRequest true "Score"
// @Success 200 {object} map[string]string "Score saved"
// @Failure 403 {object} map[string]string "Not a verifier or wrong stage"
// @Router /policies/{id}/assessment/verifier/scores [put]
func (h *AssessmentHandler) SaveVerifierScore(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req VerifierScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.ColumnCode == "" {
		respondWithError(w, http.StatusBadRequest, "column_code is required")
		return
	}

	if err := h.assessmentService.SaveVerifierScore(policyID, req.ColumnCode, req.Score, user.ID, roles); err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.logAction(r, "assessment.verifier.score", fmt.Sprintf("Scored %s on policy %d", req.ColumnCode, policyID))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Score saved"})
}

// SaveVerifierNote writes one verifier note
// @Summary Save verifier note
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Param request body VerifierNoteRequest true "Note"
// @Success 200 {object} map[string]string "Note saved"
// @Router /policies/{id}/assessment/verifier/notes [put]
func (h *AssessmentHandler) SaveVerifierNote(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req VerifierNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if req.Dimension == "" {
		respondWithError(w, http.StatusBadRequest, "dimension is required")
		return
	}

	if err := h.assessmentService.SaveVerifierNote(policyID, req.Dimension, req.Note, user.ID, roles); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Note saved"})
}

// DeleteSupportingFile removes an evidence link
// @Summary Delete evidence link
// @Description Remove the evidence link of one question from the self-assessment
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Policy ID"
// @Param columnCode path string true "Question column code"
// @Success 200 {object} map[string]string "Evidence link removed"
// @Router /policies/{id}/assessment/files/{columnCode} [delete]
func (h *AssessmentHandler) DeleteSupportingFile(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidPolicyID)
		return
	}

	columnCode := r.PathValue("columnCode")
	if columnCode == "" {
		respondWithError(w, http.StatusBadRequest, "column code is required")
		return
	}

	user, roles, err := h.caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	if err := h.assessmentService.DeleteSupportingFile(policyID, columnCode, user, roles); err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.logAction(r, "assessment.file.delete", fmt.Sprintf("Removed evidence link %s from policy %d", columnCode, policyID))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Evidence link removed"})
}

func (h *AssessmentHandler) logAction(r *http.Request, action, details string) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		return
	}
	var nip *string
	if n, ok := middleware.GetUserNIP(r); ok {
		nip = &n
	}
	_ = h.auditMw.LogAction(&userID, nip, action, "assessments", details, getIP(r), r.UserAgent())
}
