package handlers

import (
	"log/slog"
	"net/http"

	"ikk-backend/internal/service"
)

// CatalogHandler serves the questionnaire catalog
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// GetQuestionnaire returns the full questionnaire catalog
// @Summary Get questionnaire
// @Description Return all questions in catalog order with their answer levels
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.QuestionWithLevels
// @Router /questionnaire [get]
func (h *CatalogHandler) GetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	questions, err := h.catalogService.GetQuestionnaire()
	if err != nil {
		slog.Error("Failed to load questionnaire", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load questionnaire")
		return
	}

	respondWithJSON(w, http.StatusOK, questions)
}

// GetByDimension returns the questionnaire grouped by dimension
// @Summary Get questionnaire by dimension
// @Description Return the questionnaire grouped into the four dimensions
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]models.QuestionWithLevels
// @Router /questionnaire/dimensions [get]
func (h *CatalogHandler) GetByDimension(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.catalogService.GetQuestionsByDimension()
	if err != nil {
		slog.Error("Failed to load questionnaire", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load questionnaire")
		return
	}

	respondWithJSON(w, http.StatusOK, grouped)
}
