package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"ikk-backend/internal/config"
	"ikk-backend/internal/middleware"
	"ikk-backend/internal/service"
	"ikk-backend/pkg/validator"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
	auditMw     *middleware.AuditMiddleware
	config      *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, auditMw *middleware.AuditMiddleware, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		auditMw:     auditMw,
		config:      cfg,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	NIP      string `json:"nip" validate:"required,nip"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents a token refresh request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// Login handles user login
// @Summary User login
// @Description Authenticate by NIP and password and return JWT tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{} "Login successful with tokens"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, user, err := h.authService.Login(req.NIP, req.Password, getIP(r), r.UserAgent())
	if err != nil {
		slog.Warn("Login failed", "nip", req.NIP, "error", err, "ip", getIP(r))
		_ = h.auditMw.LogAction(nil, nil, "user.login.failed", "users", "Failed login attempt for NIP "+req.NIP, getIP(r), r.UserAgent())
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	slog.Info("User logged in", "user_id", user.ID, "nip", user.NIP, "ip", getIP(r))
	_ = h.auditMw.LogAction(&user.ID, &user.NIP, "user.login", "users", "User logged in", getIP(r), r.UserAgent())

	h.setRefreshCookie(w, r, pair.RefreshToken)

	userWithRoles, err := h.authService.GetUserWithRoles(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load user roles")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.config.JWT.Expiration.Seconds()),
		"user":          userWithRoles,
	})
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh tokens
// @Description Exchange a valid refresh token for a new access and refresh token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest false "Refresh token (falls back to cookie)"
// @Success 200 {object} map[string]interface{} "New token pair"
// @Failure 401 {object} map[string]string "Invalid refresh token"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		if cookie, err := r.Cookie("refresh_token"); err == nil {
			refreshToken = cookie.Value
		}
	}
	if refreshToken == "" {
		respondWithError(w, http.StatusUnauthorized, "Missing refresh token")
		return
	}

	pair, user, err := h.authService.Refresh(refreshToken, getIP(r), r.UserAgent())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	_ = h.auditMw.LogAction(&user.ID, &user.NIP, "user.token.refresh", "users", "Token pair refreshed", getIP(r), r.UserAgent())

	h.setRefreshCookie(w, r, pair.RefreshToken)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.config.JWT.Expiration.Seconds()),
	})
}

// Logout revokes the caller's session
// @Summary User logout
// @Description Revoke the current session so its tokens can no longer be used
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logged out"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		respondWithError(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}

	if err := h.authService.Logout(parts[1]); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if userID, ok := middleware.GetUserID(r); ok {
		var nip *string
		if n, ok := middleware.GetUserNIP(r); ok {
			nip = &n
		}
		_ = h.auditMw.LogAction(&userID, nip, "user.logout", "users", "User logged out", getIP(r), r.UserAgent())
	}

	// Clear the refresh cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     AuthAPIBasePath,
		MaxAge:   -1,
		HttpOnly: true,
	})

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me returns the authenticated user with their roles
// @Summary Current user
// @Description Return the authenticated user's profile and roles
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserWithRoles
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUserIDNotFound)
		return
	}

	user, err := h.authService.GetUserWithRoles(userID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

// ChangePassword sets a new password for the authenticated user
// @Summary Change password
// @Description Verify the current password and replace it, revoking all sessions
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Password change"
// @Success 200 {object} map[string]string "Password changed"
// @Failure 401 {object} map[string]string "Wrong current password"
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUserIDNotFound)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		if err == service.ErrInvalidCredentials {
			respondWithError(w, http.StatusUnauthorized, "Current password is incorrect")
			return
		}
		respondWithServiceError(w, err)
		return
	}

	var nip *string
	if n, ok := middleware.GetUserNIP(r); ok {
		nip = &n
	}
	_ = h.auditMw.LogAction(&userID, nip, "user.password.change", "users", "Password changed", getIP(r), r.UserAgent())

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, r *http.Request, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     AuthAPIBasePath,
		MaxAge:   int(h.config.JWT.RefreshExpiration.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}
