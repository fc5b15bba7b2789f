package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ikk-backend/internal/repository"
)

// AuditHandler serves the audit trail to administrators
type AuditHandler struct {
	auditRepo *repository.AuditRepository
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditRepo *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

// List returns audit log entries, newest first
// @Summary List audit logs
// @Description List audit log entries filtered by user, action, resource and time range (admin only)
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param user_id query int false "User ID"
// @Param action query string false "Action"
// @Param resource query string false "Resource"
// @Param from query string false "Start of range (RFC 3339)"
// @Param to query string false "End of range (RFC 3339)"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{} "Audit logs with total count"
// @Router /audit-logs [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	filters := repository.AuditFilters{
		Action:   r.URL.Query().Get("action"),
		Resource: r.URL.Query().Get("resource"),
	}

	if v := r.URL.Query().Get("user_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			userID := uint(id)
			filters.UserID = &userID
		}
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = &from
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = &to
		}
	}

	logs, err := h.auditRepo.GetAllWithFilters(filters, limit, offset)
	if err != nil {
		slog.Error("Failed to list audit logs", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list audit logs")
		return
	}

	total, err := h.auditRepo.CountWithFilters(filters)
	if err != nil {
		slog.Error("Failed to count audit logs", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list audit logs")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
