package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/auth"
	"github.com/trash2cash/chatsync/internal/config"
	"github.com/trash2cash/chatsync/internal/messaging"
	"github.com/trash2cash/chatsync/internal/repository/credential"
	"github.com/trash2cash/chatsync/internal/server"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/notify"
)

type backend struct {
	app   *server.Application
	url   string
	users map[string]uint
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, server.Migrate(db))

	issuer, err := auth.NewTokenIssuer([]byte("client-test-secret"), time.Minute, time.Hour)
	require.NoError(t, err)
	app, err := server.New(server.Deps{DB: db, Issuer: issuer})
	require.NoError(t, err)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})

	b := &backend{app: app, url: srv.URL, users: map[string]uint{}}
	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := app.AuthService.Register(context.Background(), name, name+"@example.com", "password123")
		require.NoError(t, err)
		b.users[name] = u.ID
	}
	return b
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		APIBaseURL:                baseURL + "/api",
		RoomsPollInterval:         time.Hour,
		MessagesPollInterval:      time.Hour,
		TypingPollInterval:        time.Hour,
		TypingDebounce:            50 * time.Millisecond,
		UnreadPollInterval:        time.Hour,
		NotificationsPollInterval: time.Hour,
		APIRateLimit:              1000,
		APIRateBurst:              100,
		HTTPTimeout:               5 * time.Second,
		SoundEnabledDefault:       true,
	}
}

func localDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "client.db")), &gorm.Config{})
	require.NoError(t, err)
	return db
}

type fakeSubscriber struct {
	mu           sync.Mutex
	subscribed   []int64
	unsubscribed []int64
}

func (f *fakeSubscriber) SubscribeUserEvents(userID int64, handler func(messaging.UserEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, userID)
	return nil
}

func (f *fakeSubscriber) UnsubscribeUserEvents(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, userID)
	return nil
}

func newClient(t *testing.T, b *backend, db *gorm.DB, opts Options) *Client {
	t.Helper()
	opts.Config = testConfig(b.url)
	opts.DB = db
	if opts.Chime == nil {
		opts.Chime = notify.ChimeFunc(func(context.Context) error { return nil })
	}
	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestLoginSendAndLogout(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	sub := &fakeSubscriber{}
	c := newClient(t, b, localDB(t), Options{Subscriber: sub})

	require.NoError(t, c.Login(ctx, "alice", "password123"))
	profile, ok := c.Profile()
	require.True(t, ok)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, int64(b.users["alice"]), profile.ID)
	assert.Equal(t, []int64{profile.ID}, sub.subscribed)

	roomID, err := c.MessageUser(ctx, int64(b.users["bob"]))
	require.NoError(t, err)
	require.NotZero(t, roomID)

	session, err := c.OpenSession(ctx, &roomID)
	require.NoError(t, err)
	defer session.Close()

	selected, ok := session.Selected()
	require.True(t, ok)
	assert.Equal(t, roomID, selected)
	assert.Equal(t, &roomID, c.Unread.ActiveViewingChatroom())

	require.NoError(t, session.Send(ctx, "  hello  "))
	msgs, err := session.Stream().Load(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "hello", last.Content)
	assert.Equal(t, profile.ID, last.SenderID)

	require.NoError(t, c.Chat.Directory().Refresh(ctx))
	rooms := session.Rooms()
	require.NotEmpty(t, rooms)
	assert.Equal(t, roomID, rooms[0].ID)

	var signedOut int32
	c.OnSignedOut(func() { atomic.AddInt32(&signedOut, 1) })
	require.NoError(t, c.Logout(ctx))

	assert.Equal(t, int32(1), atomic.LoadInt32(&signedOut))
	_, ok = c.Profile()
	assert.False(t, ok)
	_, held := c.Tokens.AccessToken(ctx)
	assert.False(t, held)
	assert.Equal(t, []int64{profile.ID}, sub.unsubscribed)
}

func TestStartRefreshesRejectedAccessToken(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	db := localDB(t)

	first := newClient(t, b, db, Options{})
	require.NoError(t, first.Login(ctx, "bob", "password123"))
	first.Close()

	repo := credential.NewGormCredentialRepository(db)
	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	stored.AccessToken = "not-a-jwt"
	require.NoError(t, repo.Save(ctx, stored))

	second := newClient(t, b, db, Options{})
	require.NoError(t, second.Start(ctx))

	profile, ok := second.Profile()
	require.True(t, ok)
	assert.Equal(t, "bob", profile.Username)

	after, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.NotEqual(t, "not-a-jwt", after.AccessToken)
	assert.Equal(t, stored.RefreshToken, after.RefreshToken)
}

func TestStartWithoutCredentials(t *testing.T) {
	b := newBackend(t)
	c := newClient(t, b, localDB(t), Options{})

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, apiclient.IsAuthRequired(err))
	_, ok := c.Profile()
	assert.False(t, ok)
}

func TestRevokedSessionSignsOut(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	c := newClient(t, b, localDB(t), Options{})
	require.NoError(t, c.Login(ctx, "carol", "password123"))

	var signedOut int32
	c.OnSignedOut(func() { atomic.AddInt32(&signedOut, 1) })

	access, ok := c.Tokens.AccessToken(ctx)
	require.True(t, ok)
	require.NoError(t, b.app.AuthService.Logout(ctx, access))

	_, err := c.Unread.FetchUnreadCounts(ctx)
	require.Error(t, err)
	assert.True(t, apiclient.IsAuthRequired(err))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&signedOut) == 1 }, time.Second, 10*time.Millisecond)
	_, held := c.Tokens.AccessToken(ctx)
	assert.False(t, held)
	_, started := c.Profile()
	assert.False(t, started)

	_, err = c.Unread.FetchUnreadCounts(ctx)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&signedOut))
}

func TestChimeSkipsActiveRoom(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	alice, bob, carol := b.users["alice"], b.users["bob"], b.users["carol"]

	bobRoom, err := b.app.ChatService.GetOrCreateChatroom(ctx, bob, alice)
	require.NoError(t, err)
	carolRoom, err := b.app.ChatService.GetOrCreateChatroom(ctx, carol, alice)
	require.NoError(t, err)

	var chimes int32
	c := newClient(t, b, localDB(t), Options{
		Chime: notify.ChimeFunc(func(context.Context) error {
			atomic.AddInt32(&chimes, 1)
			return nil
		}),
	})
	require.NoError(t, c.Login(ctx, "alice", "password123"))

	active := int64(bobRoom)
	session, err := c.OpenSession(ctx, &active)
	require.NoError(t, err)
	defer session.Close()

	_, err = c.Unread.FetchUnreadCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&chimes))

	_, err = b.app.ChatService.Send(ctx, bob, bobRoom, "are you there?")
	require.NoError(t, err)
	_, err = c.Unread.FetchUnreadCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&chimes))

	_, err = b.app.ChatService.Send(ctx, carol, carolRoom, "ping")
	require.NoError(t, err)
	counts, err := c.Unread.FetchUnreadCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[int64(carolRoom)])
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&chimes) == 1 }, time.Second, 10*time.Millisecond)

	_, err = c.Unread.FetchUnreadCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&chimes))
}
