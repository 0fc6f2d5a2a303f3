package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenShutterCore/internal/config"
	"github.com/KevinKickass/OpenShutterCore/internal/storage"
	"github.com/google/uuid"
)

type Permission string

const (
	// PermOperator darf Behänge fahren und Zustände lesen.
	PermOperator Permission = "operator"
	// PermInstaller darf pairen, kalibrieren und den Stick verwalten.
	PermInstaller Permission = "installer"
	PermAdmin     Permission = "admin"
)

type AuthService struct {
	storage        *storage.PostgresClient
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
}

func NewAuthService(store *storage.PostgresClient, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		storage:        store,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		passwordHasher: NewPasswordHasher(),
	}
}

// LoginUser authenticates a user and returns an access token
func (a *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := a.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	// Check if account is locked
	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return "", fmt.Errorf("account locked until %v", user.LockedUntil)
	}

	// Verify password
	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		a.storage.IncrementFailedLoginAttempts(ctx, user.ID)
		return "", fmt.Errorf("invalid credentials")
	}

	a.storage.ResetFailedLoginAttempts(ctx, user.ID)

	accessToken, err := a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	a.storage.UpdateLastLogin(ctx, user.ID)
	return accessToken, nil
}

// ValidateToken validates an access token and returns the permissions
// derived from its role claim. Used by transports that cannot run the
// gin middleware, like the WebSocket auth handshake.
func (a *AuthService) ValidateToken(token string) ([]Permission, error) {
	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return a.roleToPermissions(claims.Role), nil
}

func (a *AuthService) roleToPermissions(role string) []Permission {
	switch role {
	case "admin":
		return []Permission{PermOperator, PermInstaller, PermAdmin}
	case "installer":
		return []Permission{PermOperator, PermInstaller}
	default:
		return []Permission{PermOperator}
	}
}

// CreateUser creates a new user
func (a *AuthService) CreateUser(ctx context.Context, username, password, role string) (*storage.User, error) {
	passwordHash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return a.storage.CreateUser(ctx, username, passwordHash, role)
}

// GetUserByID retrieves a user by ID
func (a *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	return a.storage.GetUserByID(ctx, userID)
}

// UpdatePassword sets a new password for a user
func (a *AuthService) UpdatePassword(ctx context.Context, userID uuid.UUID, password string) error {
	passwordHash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return a.storage.UpdateUserPassword(ctx, userID, passwordHash)
}

// EnsureUser creates the user if it does not exist yet. Used at startup
// to bootstrap the initial admin account.
func (a *AuthService) EnsureUser(ctx context.Context, username, password, role string) error {
	if _, err := a.storage.GetUserByUsername(ctx, username); err == nil {
		return nil
	}
	_, err := a.CreateUser(ctx, username, password, role)
	return err
}
