package user_services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trash2cash/chatsync/internal/auth"
	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/repository/session"
	"github.com/trash2cash/chatsync/internal/repository/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionEnded       = errors.New("session expired or revoked")
)

// AuthService logs users in and out of the reference backend. Every login
// opens a session; refresh tokens only work while their session is live.
type AuthService struct {
	userRepo    user.UserRepository
	sessionRepo session.SessionRepository
	issuer      *auth.TokenIssuer
	logger      Logger
	now         func() time.Time
}

func NewAuthService(userRepo user.UserRepository, sessionRepo session.SessionRepository, issuer *auth.TokenIssuer, logger Logger) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		issuer:      issuer,
		logger:      logger,
		now:         time.Now,
	}
}

// Register creates an account. The backend has no signup endpoint; this
// serves seeding and tests.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	u := &domain.User{Username: username, Email: strings.TrimSpace(email)}
	if err := u.IsValid(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := u.HashPassword(password); err != nil {
		s.logger.Warn("registration validation failed", "username", masked(username), "error", err.Error())
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	created, err := s.userRepo.Create(ctx, u)
	if err != nil {
		s.logger.Warn("registration failed", "username", masked(username), "error", err)
		return nil, err
	}
	s.logger.Info("user registered", "username", masked(username), "user_id", created.ID)
	return created, nil
}

// Login checks a password and returns a new token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	if username == "" || password == "" {
		s.logger.Warn("login attempt with empty credentials",
			"has_username", username != "",
			"has_password", password != "")
		return auth.TokenPair{}, ErrInvalidCredentials
	}

	s.logger.Info("user login attempt", "username", masked(username))

	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Warn("login failed - user not found", "username", masked(username), "error", "user_not_found")
		return auth.TokenPair{}, ErrInvalidCredentials
	}
	if err := u.ValidatePassword(password); err != nil {
		s.logger.Warn("login failed - invalid password",
			"username", masked(username),
			"user_id", u.ID,
			"error", "invalid_password")
		return auth.TokenPair{}, ErrInvalidCredentials
	}

	now := s.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.issuer.RefreshTTL()),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		s.logger.Error("session creation failed", "user_id", u.ID, "error", err)
		return auth.TokenPair{}, fmt.Errorf("failed to open session: %w", err)
	}

	pair, err := s.issuer.Issue(u.ID, u.Username, sess.ID)
	if err != nil {
		s.logger.Error("JWT token generation failed", "error", err, "user_id", u.ID)
		return auth.TokenPair{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("login successful", "username", masked(username), "user_id", u.ID)
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.issuer.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		s.logger.Debug("refresh rejected", "error", err)
		return "", ErrSessionEnded
	}
	if err := s.liveSession(ctx, claims); err != nil {
		return "", err
	}
	access, err := s.issuer.Access(claims.UserID, claims.Username, claims.SessionID)
	if err != nil {
		s.logger.Error("JWT token generation failed", "error", err, "user_id", claims.UserID)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return access, nil
}

// Logout revokes the session behind an access token.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.issuer.Parse(accessToken, auth.TypeAccess)
	if err != nil {
		return ErrSessionEnded
	}
	if err := s.sessionRepo.Revoke(ctx, claims.SessionID, s.now()); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionEnded
		}
		s.logger.Error("session revoke failed", "user_id", claims.UserID, "error", err)
		return err
	}
	s.logger.Info("user logged out", "user_id", claims.UserID)
	return nil
}

// Authenticate resolves an access token to a user ID. Tokens of revoked
// sessions are rejected even before they expire.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (uint, error) {
	claims, err := s.issuer.Parse(accessToken, auth.TypeAccess)
	if err != nil {
		return 0, ErrSessionEnded
	}
	if err := s.liveSession(ctx, claims); err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Profile returns the user's own profile.
func (s *AuthService) Profile(ctx context.Context, userID uint) (domain.UserProfile, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return u.Profile(), nil
}

// Directory lists every account's profile, oldest first.
func (s *AuthService) Directory(ctx context.Context) ([]domain.UserProfile, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Profile())
	}
	return out, nil
}

func (s *AuthService) liveSession(ctx context.Context, claims *auth.Claims) error {
	sess, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionEnded
		}
		return err
	}
	if sess.UserID != claims.UserID || !sess.IsValid(s.now()) {
		return ErrSessionEnded
	}
	return nil
}
