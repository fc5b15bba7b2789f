package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ikk-backend/internal/middleware"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/service"
	"ikk-backend/pkg/validator"
)

// UserHandler handles user administration requests
type UserHandler struct {
	userRepo    *repository.UserRepository
	roleRepo    *repository.RoleRepository
	authService *service.AuthService
	auditMw     *middleware.AuditMiddleware
}

// NewUserHandler creates a new user handler
func NewUserHandler(userRepo *repository.UserRepository, roleRepo *repository.RoleRepository, authService *service.AuthService, auditMw *middleware.AuditMiddleware) *UserHandler {
	return &UserHandler{
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		authService: authService,
		auditMw:     auditMw,
	}
}

// CreateUserRequest represents a user creation request
type CreateUserRequest struct {
	Name       string   `json:"name" validate:"required"`
	NIP        string   `json:"nip" validate:"required,nip"`
	NIK        string   `json:"nik"`
	Email      string   `json:"email" validate:"required,email"`
	Phone      string   `json:"phone"`
	Position   string   `json:"position"`
	WorkUnit   string   `json:"work_unit"`
	AgencyID   *uint    `json:"agency_id"`
	ActiveYear int      `json:"active_year"`
	Password   string   `json:"password" validate:"required,min=8"`
	Roles      []string `json:"roles"`
}

// UpdateUserRequest represents a user update request
type UpdateUserRequest struct {
	Name       string `json:"name" validate:"required"`
	NIK        string `json:"nik"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone"`
	Position   string `json:"position"`
	WorkUnit   string `json:"work_unit"`
	AgencyID   *uint  `json:"agency_id"`
	ActiveYear int    `json:"active_year"`
}

// SetActiveRequest represents an activation toggle request
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// RoleAssignmentRequest represents a role assignment request
type RoleAssignmentRequest struct {
	RoleID uint `json:"role_id" validate:"required"`
}

// List returns users with filtering and pagination
// @Summary List users
// @Description List users filtered by search term, roles, agency and active status
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name, NIP or email"
// @Param role_ids query string false "Comma-separated role IDs"
// @Param agency_id query int false "Agency ID"
// @Param is_active query bool false "Active status"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{} "Users with total count"
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	filters := repository.UserFilters{
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	if v := r.URL.Query().Get("role_ids"); v != "" {
		for _, part := range strings.Split(v, ",") {
			if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				filters.RoleIDs = append(filters.RoleIDs, id)
			}
		}
	}
	if v := r.URL.Query().Get("agency_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			agencyID := uint(id)
			filters.AgencyID = &agencyID
		}
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filters.IsActive = &active
		}
	}

	users, err := h.userRepo.GetAllWithFilters(filters, limit, offset)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	total, err := h.userRepo.CountWithFilters(filters)
	if err != nil {
		slog.Error("Failed to count users", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	// Attach roles so the admin UI can render them without extra requests
	result := make([]models.UserWithRoles, 0, len(users))
	for _, user := range users {
		roles, err := h.userRepo.GetUserRoles(user.ID)
		if err != nil {
			slog.Error("Failed to load user roles", "user_id", user.ID, "error", err)
			roles = []models.Role{}
		}
		result = append(result, models.UserWithRoles{User: user, Roles: roles})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"users":  result,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Create creates a new user account
// @Summary Create user
// @Description Create a user account with the given roles (admin only)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User data"
// @Success 201 {object} models.UserWithRoles
// @Failure 409 {object} map[string]string "NIP or email already in use"
// @Router /users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := &models.User{
		Name:       validator.SanitizeString(req.Name),
		NIP:        req.NIP,
		NIK:        req.NIK,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      req.Phone,
		Position:   req.Position,
		WorkUnit:   req.WorkUnit,
		AgencyID:   req.AgencyID,
		IsActive:   true,
		ActiveYear: req.ActiveYear,
	}

	created, err := h.authService.Register(user, req.Password, req.Roles)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	h.logAction(r, "user.create", fmt.Sprintf("Created user %s (NIP %s)", created.Name, created.NIP))

	withRoles, err := h.authService.GetUserWithRoles(created.ID)
	if err != nil {
		respondWithJSON(w, http.StatusCreated, created)
		return
	}
	respondWithJSON(w, http.StatusCreated, withRoles)
}

// Get returns one user with their roles
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.UserWithRoles
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/{id} [get]
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidUserID)
		return
	}

	user, err := h.authService.GetUserWithRoles(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

// Update updates a user's profile fields
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "User data"
// @Success 200 {object} models.User
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/{id} [put]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidUserID)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userRepo.GetByID(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	user.Name = validator.SanitizeString(req.Name)
	user.NIK = req.NIK
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.Phone = req.Phone
	user.Position = req.Position
	user.WorkUnit = req.WorkUnit
	user.AgencyID = req.AgencyID
	user.ActiveYear = req.ActiveYear

	if err := h.userRepo.Update(user); err != nil {
		slog.Error("Failed to update user", "user_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	h.logAction(r, "user.update", fmt.Sprintf("Updated user %d", id))
	respondWithJSON(w, http.StatusOK, user)
}

// SetActive activates or deactivates a user account
// @Summary Toggle user active status
// @Description Activate or deactivate a user. The last active admin cannot be deactivated.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body SetActiveRequest true "Active flag"
// @Success 200 {object} map[string]string "Status updated"
// @Failure 409 {object} map[string]string "Last active admin"
// @Router /users/{id}/active [put]
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidUserID)
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if _, err := h.userRepo.GetByID(id); err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	if !req.IsActive {
		isLast, err := h.userRepo.IsLastActiveAdmin(id)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to update active status")
			return
		}
		if isLast {
			respondWithError(w, http.StatusConflict, "Cannot deactivate the last active admin")
			return
		}
	}

	if err := h.userRepo.UpdateActiveStatus(id, req.IsActive); err != nil {
		slog.Error("Failed to update active status", "user_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to update active status")
		return
	}

	action := "user.deactivate"
	if req.IsActive {
		action = "user.activate"
	}
	h.logAction(r, action, fmt.Sprintf("Set user %d active=%t", id, req.IsActive))

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

// Delete removes a user account
// @Summary Delete user
// @Description Delete a user. The last active admin cannot be deleted.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string "User deleted"
// @Failure 409 {object} map[string]string "Last active admin"
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidUserID)
		return
	}

	if _, err := h.userRepo.GetByID(id); err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	isLast, err := h.userRepo.IsLastActiveAdmin(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	if isLast {
		respondWithError(w, http.StatusConflict, "Cannot delete the last active admin")
		return
	}

	if err := h.userRepo.Delete(id); err != nil {
		slog.Error("Failed to delete user", "user_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	h.logAction(r, "user.delete", fmt.Sprintf("Deleted user %d", id))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// AssignRole grants a role to a user
// @Summary Assign role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body RoleAssignmentRequest true "Role ID"
// @Success 200 {object} map[string]string "Role assigned"
// @Router /users/{id}/roles [post]
func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidUserID)
		return
	}

	var req RoleAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if _, err := h.userRepo.GetByID(id); err != nil {
		respondWithError(w, http.StatusNotFound, ErrMsgUserNotFound)
		return
	}

	role, err := h.roleRepo.GetByID(req.RoleID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Role not found")
		return
	}

	if err := h.userRepo.AssignRole(id, role.ID); err != nil {
		slog.Error("Failed to assign role", "user_id", id, "role_id", role.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to assign role")
		return
	}

	h.logAction(r, "user.role.assign", fmt.Sprintf("Assigned role %s to user %d", role.Name, id))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Role assigned"})
}

// RemoveRole revokes a role from a user
// @Summary Remove role
// @Description Remove a role. The admin role cannot be removed from the last active admin.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param roleId path int true "Role ID"
// @Success 200 {object} map[string]string "Role removed"
// @Failure 409 {object} map[string]string "Last active admin"
// @Router /users/{id}/roles/{roleId} [delete]
func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidUserID)
		return
	}

	roleID, err := parseIDParam(r, "roleId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid role ID")
		return
	}

	role, err := h.roleRepo.GetByID(roleID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Role not found")
		return
	}

	if role.Name == models.RoleAdmin {
		isLast, err := h.userRepo.IsLastActiveAdmin(id)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to remove role")
			return
		}
		if isLast {
			respondWithError(w, http.StatusConflict, "Cannot remove the admin role from the last active admin")
			return
		}
	}

	if err := h.userRepo.RemoveRole(id, roleID); err != nil {
		slog.Error("Failed to remove role", "user_id", id, "role_id", roleID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to remove role")
		return
	}

	h.logAction(r, "user.role.remove", fmt.Sprintf("Removed role %s from user %d", role.Name, id))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Role removed"})
}

// ListRoles returns all defined roles
// @Summary List roles
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Role
// @Router /roles [get]
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleRepo.GetAll()
	if err != nil {
		slog.Error("Failed to list roles", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list roles")
		return
	}

	respondWithJSON(w, http.StatusOK, roles)
}

func (h *UserHandler) logAction(r *http.Request, action, details string) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		return
	}
	var nip *string
	if n, ok := middleware.GetUserNIP(r); ok {
		nip = &n
	}
	_ = h.auditMw.LogAction(&userID, nip, action, "users", details, getIP(r), r.UserAgent())
}
