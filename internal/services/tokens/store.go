// Package tokens owns the access/refresh credential: it logs in, refreshes on
// demand, and clears everything when the session can no longer be renewed.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/metrics"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
)

// Store is the Token Store. It satisfies apiclient.TokenSource.
type Store struct {
	api    *apiclient.Client
	creds  CredentialStore
	config *Config
	logger Logger
	now    func() time.Time

	refreshGroup singleflight.Group

	mu             sync.Mutex
	cached         *domain.Credential
	loaded         bool
	onAuthRequired []func()
}

func NewStore(api *apiclient.Client, creds CredentialStore, config *Config, logger Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid token store config: %w", err)
	}
	return &Store{api: api, creds: creds, config: config, logger: logger, now: time.Now}, nil
}

// OnAuthRequired registers fn to run whenever credentials are cleared because
// the session could not be renewed. The UI shell uses it to return to login.
func (s *Store) OnAuthRequired(fn func()) {
	s.mu.Lock()
	s.onAuthRequired = append(s.onAuthRequired, fn)
	s.mu.Unlock()
}

// AccessToken returns the persisted access token, if any.
func (s *Store) AccessToken(ctx context.Context) (string, bool) {
	cred, err := s.load(ctx)
	if err != nil {
		s.logger.Error("Failed to read stored credential", "error", err)
		return "", false
	}
	if cred == nil || cred.AccessToken == "" {
		return "", false
	}
	return cred.AccessToken, true
}

// CurrentUserID reads the user id claim from the held access token.
func (s *Store) CurrentUserID(ctx context.Context) (int64, bool) {
	token, ok := s.AccessToken(ctx)
	if !ok {
		return 0, false
	}
	return userID(token)
}

// Login exchanges username and password for a token pair and persists it.
func (s *Store) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return apiclient.NewValidationError("tokens.login", "username and password are required")
	}

	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	err := s.api.Do(ctx, "", apiclient.Request{
		Operation: "tokens.login",
		Method:    http.MethodPost,
		Path:      s.config.LoginPath,
		Body:      map[string]string{"username": username, "password": password},
		Out:       &pair,
	})
	if err != nil {
		if code := apiclient.StatusCode(err); code == http.StatusUnauthorized || code == http.StatusBadRequest {
			return apiclient.NewAuthRequiredError("tokens.login", "invalid username or password", err)
		}
		return err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return apiclient.NewNetworkError("tokens.login", 0, "token response missing access or refresh", nil)
	}

	s.logger.Info("Logged in", "username", maskUsername(username))
	return s.save(ctx, &domain.Credential{AccessToken: pair.Access, RefreshToken: pair.Refresh})
}

// Refresh performs one refresh round-trip. Concurrent callers share a single
// in-flight request, which runs detached from any one caller so a caller
// giving up does not fail the others. A rejected refresh clears the stored
// credential; a caller that gives up gets a NETWORK error and keeps it.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	ch := s.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.RefreshTimeout)
		defer cancel()
		return s.refresh(rctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", apiclient.NewNetworkError("tokens.refresh", 0, "refresh abandoned by caller", ctx.Err())
	}
}

func (s *Store) refresh(ctx context.Context) (string, error) {
	cred, err := s.load(ctx)
	if err != nil {
		return "", apiclient.NewAuthRequiredError("tokens.refresh", "stored credential unreadable", err)
	}
	if cred == nil || cred.RefreshToken == "" {
		s.invalidate(ctx, "no refresh token")
		return "", apiclient.NewAuthRequiredError("tokens.refresh", "no refresh token available", nil)
	}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	err = s.api.Do(ctx, "", apiclient.Request{
		Operation: "tokens.refresh",
		Method:    http.MethodPost,
		Path:      s.config.RefreshPath,
		Body:      map[string]string{"refresh": cred.RefreshToken},
		Out:       &out,
	})
	if err == nil && out.Access == "" {
		err = apiclient.NewNetworkError("tokens.refresh", 0, "refresh response missing access token", nil)
	}
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		metrics.TokenRefreshesTotal.WithLabelValues("timeout").Inc()
		return "", apiclient.NewNetworkError("tokens.refresh", 0, "refresh timed out", err)
	}
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		s.invalidate(ctx, "refresh failed")
		return "", apiclient.NewAuthRequiredError("tokens.refresh", "session could not be renewed", err)
	}
	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()

	next := &domain.Credential{AccessToken: out.Access, RefreshToken: cred.RefreshToken}
	if out.Refresh != "" {
		// rotating refresh tokens
		next.RefreshToken = out.Refresh
	}
	if err := s.save(ctx, next); err != nil {
		return "", apiclient.NewAuthRequiredError("tokens.refresh", "failed to persist refreshed token", err)
	}
	s.logger.Debug("Access token refreshed")
	return out.Access, nil
}

// EnsureValidAccessToken returns an access token the server accepts, refreshing
// at most once. It fails with AUTH_REQUIRED when that is impossible.
func (s *Store) EnsureValidAccessToken(ctx context.Context) (string, error) {
	token, ok := s.AccessToken(ctx)
	if !ok || expired(token, s.now(), s.config.ExpirySkew) {
		return s.Refresh(ctx)
	}

	err := s.api.Do(ctx, token, apiclient.Request{
		Operation: "tokens.probe",
		Method:    http.MethodGet,
		Path:      s.config.ProbePath,
	})
	switch {
	case err == nil:
		return token, nil
	case apiclient.StatusCode(err) == http.StatusUnauthorized:
		return s.Refresh(ctx)
	default:
		return "", err
	}
}

// Logout asks the server to end the session and always clears local state.
// Only a failure to clear local state is returned.
func (s *Store) Logout(ctx context.Context) error {
	cred, _ := s.load(ctx)
	if cred != nil && s.config.SessionPath != "" {
		err := s.api.Do(ctx, cred.AccessToken, apiclient.Request{
			Operation: "tokens.logout",
			Method:    http.MethodDelete,
			Path:      s.config.SessionPath,
			Body:      map[string]string{"refresh": cred.RefreshToken},
		})
		if err != nil {
			s.logger.Warn("Server session deletion failed, clearing locally anyway", "error", err)
		}
	}
	return s.clear(ctx)
}

func (s *Store) load(ctx context.Context) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached, nil
	}
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.cached = cred
	s.loaded = true
	return cred, nil
}

func (s *Store) save(ctx context.Context, cred *domain.Credential) error {
	if err := s.creds.Save(ctx, cred); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	s.mu.Lock()
	s.cached = cred
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Store) clear(ctx context.Context) error {
	s.mu.Lock()
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()
	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// invalidate clears credentials and notifies OnAuthRequired hooks. Hooks run
// only when something was actually held, so pollers hitting an already
// cleared store do not re-signal on every tick.
func (s *Store) invalidate(ctx context.Context, reason string) {
	s.mu.Lock()
	held := !s.cached.Empty()
	hooks := append([]func(){}, s.onAuthRequired...)
	s.mu.Unlock()

	if err := s.clear(ctx); err != nil {
		s.logger.Error("Failed to clear credentials", "error", err)
	}
	if !held {
		return
	}
	s.logger.Warn("Credentials cleared", "reason", reason)
	for _, fn := range hooks {
		fn()
	}
}

func maskUsername(username string) string {
	if len(username) <= 2 {
		return "**"
	}
	return username[:2] + "***"
}
