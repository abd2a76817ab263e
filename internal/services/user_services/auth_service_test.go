package user_services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/auth"
	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/repository/session"
	"github.com/trash2cash/chatsync/internal/repository/user"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Session{}))

	issuer, err := auth.NewTokenIssuer([]byte("test-secret"), time.Minute, time.Hour)
	require.NoError(t, err)
	return NewAuthService(user.NewGormUserRepository(db), session.NewSessionRepository(db), issuer, nopLogger{})
}

func TestLoginIssuesWorkingTokens(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()
	alice, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	id, err := svc.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, id)

	profile, err := svc.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "", "password123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bob", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshMintsAccessForLiveSession(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "", "password123")
	require.NoError(t, err)
	pair, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	access, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, access)
	assert.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestLogoutEndsSession(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "", "password123")
	require.NoError(t, err)
	pair, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.Access))

	_, err = svc.Authenticate(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrSessionEnded)
	_, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestRegisterValidates(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "al", "", "password123")
	assert.Error(t, err)
	_, err = svc.Register(ctx, "alice", "", "short")
	assert.Error(t, err)

	_, err = svc.Register(ctx, "alice", "", "password123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "", "password123")
	assert.ErrorIs(t, err, user.ErrUsernameTaken)
}

func TestDirectoryListsProfiles(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		_, err := svc.Register(ctx, name, name+"@example.com", "password123")
		require.NoError(t, err)
	}

	profiles, err := svc.Directory(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, "bob", profiles[1].Username)
	assert.NotZero(t, profiles[1].ID)
}

func TestMasked(t *testing.T) {
	assert.Equal(t, "alic****", masked("alice"))
	assert.Equal(t, "al****", masked("al"))
}
