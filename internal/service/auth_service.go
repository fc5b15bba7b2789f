package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ikk-backend/internal/auth"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user account is inactive")
)

// TokenPair bundles the tokens issued by a login or refresh
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessJTI    string
	RefreshJTI   string
	SessionID    string
}

// AuthService handles authentication business logic
type AuthService struct {
	userRepo    *repository.UserRepository
	roleRepo    *repository.RoleRepository
	sessionRepo *repository.SessionRepository
	authSvc     *auth.Service
	jwtExp      time.Duration
	refreshExp  time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	sessionRepo *repository.SessionRepository,
	authSvc *auth.Service,
	jwtExp, refreshExp time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		sessionRepo: sessionRepo,
		authSvc:     authSvc,
		jwtExp:      jwtExp,
		refreshExp:  refreshExp,
	}
}

// Register creates a new user account with the given roles. Accounts are
// created by administrators; there is no open self-registration.
func (s *AuthService) Register(user *models.User, password string, roleNames []string) (*models.User, error) {
	if existing, _ := s.userRepo.GetByNIP(user.NIP); existing != nil {
		return nil, fmt.Errorf("user with NIP %s already exists", user.NIP)
	}
	if existing, _ := s.userRepo.GetByEmail(user.Email); existing != nil {
		return nil, fmt.Errorf("user with email %s already exists", user.Email)
	}

	passwordHash, err := s.authSvc.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = passwordHash

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	for _, roleName := range roleNames {
		role, err := s.roleRepo.GetByName(roleName)
		if err != nil {
			slog.Warn("Skipping unknown role during registration", "role", roleName, "user_id", user.ID)
			continue
		}
		if err := s.userRepo.AssignRole(user.ID, role.ID); err != nil {
			slog.Error("Failed to assign role", "role", roleName, "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// Login authenticates a user by NIP and password and issues a token pair
func (s *AuthService) Login(nip, password, ipAddress, userAgent string) (*TokenPair, *models.User, error) {
	user, err := s.userRepo.GetByNIP(nip)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	pair, err := s.issueTokens(user, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair.
// The old token pair's sessions are revoked.
func (s *AuthService) Refresh(refreshToken, ipAddress, userAgent string) (*TokenPair, *models.User, error) {
	claims, err := s.authSvc.ValidateToken(refreshToken)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.sessionRepo.GetByJTI(claims.ID)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if session.TokenType != "refresh" {
		return nil, nil, fmt.Errorf("permission denied: access token cannot be used to refresh")
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	if err := s.sessionRepo.DeleteBySessionID(session.SessionID); err != nil {
		slog.Error("Failed to revoke old session during refresh", "session_id", session.SessionID, "error", err)
	}

	pair, err := s.issueTokens(user, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Logout revokes the session the given access token belongs to.
// Works for expired tokens too, so a stale client can always log out.
func (s *AuthService) Logout(accessToken string) error {
	jti, err := s.authSvc.ExtractJTI(accessToken)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	session, err := s.sessionRepo.GetByJTI(jti)
	if err != nil {
		// Session already gone, logout is idempotent
		return nil
	}

	return s.sessionRepo.DeleteBySessionID(session.SessionID)
}

// ChangePassword verifies the current password and sets a new one,
// revoking every other session of the user
func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return fmt.Errorf("user not found")
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	passwordHash, err := s.authSvc.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(userID, passwordHash); err != nil {
		return err
	}

	return s.sessionRepo.DeleteAllUserSessions(userID)
}

// GetUserWithRoles retrieves a user together with their roles
func (s *AuthService) GetUserWithRoles(userID uint) (*models.UserWithRoles, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	roles, err := s.userRepo.GetUserRoles(userID)
	if err != nil {
		return nil, err
	}

	return &models.UserWithRoles{User: *user, Roles: roles}, nil
}

// issueTokens generates an access and refresh token for a user and records
// both JTIs as sessions under one session ID
func (s *AuthService) issueTokens(user *models.User, ipAddress, userAgent string) (*TokenPair, error) {
	accessToken, accessJTI, err := s.authSvc.GenerateToken(user.ID, user.NIP)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, refreshJTI, err := s.authSvc.GenerateRefreshToken(user.ID, user.NIP)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	sessionID, err := auth.GenerateRandomToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	sessions := []models.Session{
		{
			UserID:         user.ID,
			SessionID:      sessionID,
			JTI:            accessJTI,
			TokenType:      "access",
			ExpiresAt:      now.Add(s.jwtExp),
			LastActivityAt: now,
			CreatedAt:      now,
			IPAddress:      ipAddress,
			UserAgent:      userAgent,
		},
		{
			UserID:         user.ID,
			SessionID:      sessionID,
			JTI:            refreshJTI,
			TokenType:      "refresh",
			ExpiresAt:      now.Add(s.refreshExp),
			LastActivityAt: now,
			CreatedAt:      now,
			IPAddress:      ipAddress,
			UserAgent:      userAgent,
		},
	}

	for i := range sessions {
		if err := s.sessionRepo.Create(&sessions[i]); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessJTI:    accessJTI,
		RefreshJTI:   refreshJTI,
		SessionID:    sessionID,
	}, nil
}
