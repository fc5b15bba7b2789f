package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"ikk-backend/internal/middleware"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/pkg/validator"
)

// AgencyHandler handles agency administration requests
type AgencyHandler struct {
	agencyRepo *repository.AgencyRepository
	auditMw    *middleware.AuditMiddleware
}

// NewAgencyHandler creates a new agency handler
func NewAgencyHandler(agencyRepo *repository.AgencyRepository, auditMw *middleware.AuditMiddleware) *AgencyHandler {
	return &AgencyHandler{
		agencyRepo: agencyRepo,
		auditMw:    auditMw,
	}
}

// AgencyRequest represents an agency create/update request
type AgencyRequest struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
}

// List returns all agencies
// @Summary List agencies
// @Tags Agencies
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Agency
// @Router /agencies [get]
func (h *AgencyHandler) List(w http.ResponseWriter, r *http.Request) {
	agencies, err := h.agencyRepo.GetAll()
	if err != nil {
		slog.Error("Failed to list agencies", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list agencies")
		return
	}

	respondWithJSON(w, http.StatusOK, agencies)
}

// Get returns one agency
// @Summary Get agency
// @Tags Agencies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agency ID"
// @Success 200 {object} models.Agency
// @Failure 404 {object} map[string]string "Agency not found"
// @Router /agencies/{id} [get]
func (h *AgencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidAgencyID)
		return
	}

	agency, err := h.agencyRepo.GetByID(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Agency not found")
		return
	}

	respondWithJSON(w, http.StatusOK, agency)
}

// Create creates a new agency
// @Summary Create agency
// @Tags Agencies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AgencyRequest true "Agency data"
// @Success 201 {object} models.Agency
// @Router /agencies [post]
func (h *AgencyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AgencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	agency := &models.Agency{
		Name:     validator.SanitizeString(req.Name),
		Category: req.Category,
	}

	if err := h.agencyRepo.Create(agency); err != nil {
		slog.Error("Failed to create agency", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create agency")
		return
	}

	h.logAction(r, "agency.create", fmt.Sprintf("Created agency %s", agency.Name))
	respondWithJSON(w, http.StatusCreated, agency)
}

// Update updates an agency
// @Summary Update agency
// @Tags Agencies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agency ID"
// @Param request body AgencyRequest true "Agency data"
// @Success 200 {object} models.Agency
// @Failure 404 {object} map[string]string "Agency not found"
// @Router /agencies/{id} [put]
func (h *AgencyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidAgencyID)
		return
	}

	var req AgencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	agency, err := h.agencyRepo.GetByID(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Agency not found")
		return
	}

	agency.Name = validator.SanitizeString(req.Name)
	agency.Category = req.Category

	if err := h.agencyRepo.Update(agency); err != nil {
		slog.Error("Failed to update agency", "agency_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to update agency")
		return
	}

	h.logAction(r, "agency.update", fmt.Sprintf("Updated agency %d", id))
	respondWithJSON(w, http.StatusOK, agency)
}

// Delete removes an agency
// @Summary Delete agency
// @Tags Agencies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agency ID"
// @Success 200 {object} map[string]string "Agency deleted"
// @Router /agencies/{id} [delete]
func (h *AgencyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidAgencyID)
		return
	}

	if _, err := h.agencyRepo.GetByID(id); err != nil {
		respondWithError(w, http.StatusNotFound, "Agency not found")
		return
	}

	if err := h.agencyRepo.Delete(id); err != nil {
		slog.Error("Failed to delete agency", "agency_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete agency")
		return
	}

	h.logAction(r, "agency.delete", fmt.Sprintf("Deleted agency %d", id))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Agency deleted"})
}

func (h *AgencyHandler) logAction(r *http.Request, action, details string) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		return
	}
	var nip *string
	if n, ok := middleware.GetUserNIP(r); ok {
		nip = &n
	}
	_ = h.auditMw.LogAction(&userID, nip, action, "agencies", details, getIP(r), r.UserAgent())
}
