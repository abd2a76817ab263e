package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/poller"
)

// recordingTracker remembers every room entered, and a 0 for every leave.
type recordingTracker struct {
	mu   sync.Mutex
	seen []int64
}

func (r *recordingTracker) EnterChatroom(roomID int64) func() {
	r.record(roomID)
	return func() { r.record(0) }
}

func (r *recordingTracker) record(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, id)
}

func (r *recordingTracker) history() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.seen...)
}

func newTestService(t *testing.T, api apiclient.Doer) (*Service, *poller.Shared) {
	return newTestServiceWith(t, api, testConfig())
}

func newTestServiceWith(t *testing.T, api apiclient.Doer, cfg *Config) (*Service, *poller.Shared) {
	t.Helper()
	shared := poller.NewShared(context.Background(), nil)
	t.Cleanup(shared.Close)
	svc, err := NewService(context.Background(), api, shared, cfg, nopLogger{})
	require.NoError(t, err)
	return svc, shared
}

func TestServiceRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TypingDebounce = 0
	_, err := NewService(context.Background(), newFakeAPI(), poller.NewShared(context.Background(), nil), cfg, nopLogger{})
	assert.Error(t, err)
}

func TestSessionWithNoRooms(t *testing.T) {
	api := newFakeAPI()
	svc, _ := newTestService(t, api)
	tracker := &recordingTracker{}
	session := NewSession(svc, tracker, nopLogger{})

	require.NoError(t, session.Open(context.Background(), nil))
	defer session.Close()

	_, ok := session.Selected()
	assert.False(t, ok)
	assert.Nil(t, session.Stream())
	assert.Empty(t, session.Rooms())

	err := session.Send(context.Background(), "hello")
	assert.True(t, apiclient.IsValidation(err))

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, api.count("GET /chat/messages/"))
	assert.Empty(t, tracker.history())
}

func TestSessionSelectsDeepLinkOrMostRecent(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []domain.Chatroom{room(7, at(time.Hour)), room(42, at(-time.Hour))}
	svc, _ := newTestService(t, api)

	deepLink := int64(42)
	linked := NewSession(svc, nil, nopLogger{})
	require.NoError(t, linked.Open(context.Background(), &deepLink))
	defer linked.Close()
	id, ok := linked.Selected()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	unknown := int64(1000)
	fallback := NewSession(svc, nil, nopLogger{})
	require.NoError(t, fallback.Open(context.Background(), &unknown))
	defer fallback.Close()
	id, ok = fallback.Selected()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestSessionSelectUnknownRoom(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []domain.Chatroom{room(7, nil)}
	svc, _ := newTestService(t, api)
	session := NewSession(svc, nil, nopLogger{})
	require.NoError(t, session.Open(context.Background(), nil))
	defer session.Close()

	err := session.Select(8)
	assert.True(t, apiclient.IsValidation(err))
	id, _ := session.Selected()
	assert.Equal(t, int64(7), id)
}

func TestSessionSendMovesRoomToFront(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []domain.Chatroom{room(7, at(-time.Minute)), room(42, at(-time.Hour))}
	api.messages[42] = []domain.Message{{ID: 1, Content: "earlier", Timestamp: t0.Add(-time.Hour)}}
	svc, _ := newTestService(t, api)
	session := NewSession(svc, nil, nopLogger{})
	require.NoError(t, session.Open(context.Background(), nil))
	defer session.Close()
	assert.Equal(t, []int64{7, 42}, roomIDs(session.Rooms()))

	require.NoError(t, session.Select(42))
	require.NoError(t, session.Send(context.Background(), "hello"))

	msgs := session.Stream().Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "hello", msgs[len(msgs)-1].Content)
	assert.Equal(t, []int64{42, 7}, roomIDs(session.Rooms()))
}

func TestSessionSendInvalidKeepsTyping(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []domain.Chatroom{room(42, nil)}
	cfg := testConfig()
	cfg.TypingDebounce = time.Hour
	svc, _ := newTestServiceWith(t, api, cfg)
	session := NewSession(svc, nil, nopLogger{})
	require.NoError(t, session.Open(context.Background(), nil))
	defer session.Close()

	session.Keystroke()
	err := session.Send(context.Background(), "   ")
	assert.True(t, apiclient.IsValidation(err))
	assert.True(t, session.Typing().IsTyping())
	assert.Zero(t, api.count("POST /chat/send/"))

	require.NoError(t, session.Send(context.Background(), "done"))
	assert.False(t, session.Typing().IsTyping())
}

func TestSessionTracksActiveRoom(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []domain.Chatroom{room(7, at(time.Hour)), room(42, nil)}
	svc, shared := newTestService(t, api)
	tracker := &recordingTracker{}
	session := NewSession(svc, tracker, nopLogger{})

	require.NoError(t, session.Open(context.Background(), nil))
	require.NoError(t, session.Select(42))
	assert.Equal(t, 1, shared.Refs(KeyChatrooms))
	assert.Equal(t, 1, shared.Refs("messages/42"))
	assert.Zero(t, shared.Refs("messages/7"))

	session.Close()
	assert.Equal(t, []int64{7, 0, 42, 0}, tracker.history())
	assert.Zero(t, shared.Refs(KeyChatrooms))
	assert.Zero(t, shared.Refs("messages/42"))
	assert.Zero(t, shared.Refs("typing/42"))
	assert.Zero(t, svc.Watching(42))
}

func TestSessionsShareRoomPolls(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []domain.Chatroom{room(42, nil)}
	svc, shared := newTestService(t, api)

	first := NewSession(svc, nil, nopLogger{})
	second := NewSession(svc, nil, nopLogger{})
	require.NoError(t, first.Open(context.Background(), nil))
	require.NoError(t, second.Open(context.Background(), nil))

	assert.Same(t, first.Stream(), second.Stream())
	assert.Equal(t, 2, svc.Watching(42))
	assert.Equal(t, 2, shared.Refs("messages/42"))

	// the initial load ran once for both views
	require.Eventually(t, func() bool { return api.count("GET /chat/messages/") >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, api.count("GET /chat/messages/"))

	first.Close()
	assert.Equal(t, 1, shared.Refs("messages/42"))
	second.Close()
	assert.Zero(t, shared.Refs("messages/42"))
}

func TestServiceIdentify(t *testing.T) {
	svc, _ := newTestService(t, newFakeAPI())

	profile, err := svc.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UserProfile{ID: 1, Username: "alice"}, profile)
	assert.Equal(t, Identity{UserID: 1, Username: "alice"}, svc.Identity())
}
