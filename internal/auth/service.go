package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atlasops/backoffice/internal/models"
	"github.com/atlasops/backoffice/internal/store"
)

// Sentinel errors returned by Service methods.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserInactive       = errors.New("user account is deactivated")
)

// Service provides bearer-token authentication for the admin API.
type Service struct {
	users    store.UserStore
	sessions store.SessionStore
	maxAge   time.Duration
}

// NewService creates a new auth service with the given stores and token max age in hours.
func NewService(users store.UserStore, sessions store.SessionStore, maxAgeHours int) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
	}
}

// Login authenticates an admin by email and password and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrUserInactive
	}

	token, err := GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if _, err := s.sessions.CreateSession(ctx, token, user.ID, time.Now().Add(s.maxAge)); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	return token, user, nil
}

// Logout invalidates the given bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

// ValidateToken resolves a bearer token to its user. Inactive users are
// rejected even while they hold unexpired sessions.
func (s *Service) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	session, err := s.sessions.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return user, nil
}

// SeedAdmin creates the bootstrap admin account if no user exists for
// the given email. It is a no-op when email or password is empty.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	if _, err := s.users.CreateUser(ctx, email, hash, "Administrator", "admin"); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	slog.Info("seeded bootstrap admin user", "email", email)
	return nil
}
