package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error"}`))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps service-layer errors onto HTTP status codes
// by their message conventions: permission denied -> 403, not found -> 404,
// conflicts -> 409, validation problems -> 400
func respondWithServiceError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "permission denied"):
		respondWithError(w, http.StatusForbidden, msg)
	case strings.Contains(msg, "not found"):
		respondWithError(w, http.StatusNotFound, msg)
	case strings.Contains(msg, "already") || strings.Contains(msg, "exists"):
		respondWithError(w, http.StatusConflict, msg)
	case strings.Contains(msg, "incomplete") ||
		strings.Contains(msg, "not allowed") ||
		strings.Contains(msg, "unknown") ||
		strings.Contains(msg, "must") ||
		strings.Contains(msg, "required") ||
		strings.Contains(msg, "only") ||
		strings.Contains(msg, "inactive") ||
		strings.Contains(msg, "selectable") ||
		strings.Contains(msg, "cannot"):
		respondWithError(w, http.StatusBadRequest, msg)
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// parseIDParam reads a numeric path parameter from a Go 1.22 route pattern
func parseIDParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// parsePagination reads limit/offset query parameters with sane defaults
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

func getIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return forwarded
	}
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
