package middleware

import (
	"context"
	"net/http"
	"strings"

	"ikk-backend/internal/auth"
	"ikk-backend/internal/repository"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserNIPKey   contextKey = "user_nip"
	UserRolesKey contextKey = "user_roles"
)

// AuthMiddleware validates JWT tokens
type AuthMiddleware struct {
	authService *auth.Service
	sessionRepo *repository.SessionRepository
	userRepo    *repository.UserRepository
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *auth.Service, sessionRepo *repository.SessionRepository, userRepo *repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
	}
}

// Authenticate validates the JWT token and adds user info to context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		token := parts[1]

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// Check if session exists (validates that token hasn't been invalidated)
		if claims.ID != "" {
			session, err := m.sessionRepo.GetByJTI(claims.ID)
			if err != nil || session == nil {
				respondWithError(w, http.StatusUnauthorized, "Token has been invalidated")
				return
			}
		}

		// Resolve role names once so downstream handlers can scope queries
		roles, err := m.userRepo.GetUserRoles(claims.UserID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load user roles")
			return
		}
		roleNames := make([]string, 0, len(roles))
		for _, role := range roles {
			roleNames = append(roleNames, role.Name)
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UserNIPKey, claims.NIP)
		ctx = context.WithValue(ctx, UserRolesKey, roleNames)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID retrieves the user ID from the request context
func GetUserID(r *http.Request) (uint, bool) {
	userID, ok := r.Context().Value(UserIDKey).(uint)
	return userID, ok
}

// GetUserNIP retrieves the user NIP from the request context
func GetUserNIP(r *http.Request) (string, bool) {
	nip, ok := r.Context().Value(UserNIPKey).(string)
	return nip, ok
}

// GetUserRoles retrieves the authenticated user's role names from the request context
func GetUserRoles(r *http.Request) ([]string, bool) {
	roles, ok := r.Context().Value(UserRolesKey).([]string)
	return roles, ok
}

// HasRole reports whether the request context carries the given role
func HasRole(r *http.Request, roleName string) bool {
	roles, ok := GetUserRoles(r)
	if !ok {
		return false
	}
	for _, role := range roles {
		if role == roleName {
			return true
		}
	}
	return false
}

// Helper function to respond with JSON error
func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
