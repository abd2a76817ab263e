package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/messaging"
	"github.com/trash2cash/chatsync/internal/presence"
	"github.com/trash2cash/chatsync/internal/repository/chat"
	"github.com/trash2cash/chatsync/internal/repository/message"
	"github.com/trash2cash/chatsync/internal/repository/notification"
	"github.com/trash2cash/chatsync/internal/repository/user"
)

type publishedEvent struct {
	userID int64
	event  messaging.UserEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishUserEvent(userID int64, event messaging.UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID, event})
	return nil
}

func (p *recordingPublisher) types(userID int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.userID == userID {
			out = append(out, e.event.Type)
		}
	}
	return out
}

type chatFixture struct {
	svc   *ChatService
	notes *NotificationService
	pub   *recordingPublisher
	users user.UserRepository
	alice uint
	bob   uint
	carol uint
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Room{}, &domain.ChatMessage{}, &domain.Notification{}))

	users := user.NewGormUserRepository(db)
	notifyRepo := notification.NewNotificationRepository(db)
	pub := &recordingPublisher{}
	svc, err := NewChatService(chat.NewChatRepository(db), message.NewMessageRepository(db), users, notifyRepo,
		presence.NewMemoryStore(presence.DefaultTTL), pub, &NoOpLogger{})
	require.NoError(t, err)

	f := &chatFixture{svc: svc, notes: NewNotificationService(notifyRepo, pub, nil), pub: pub, users: users}
	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := users.Create(context.Background(), &domain.User{Username: name, Password: "hashed"})
		require.NoError(t, err)
		switch name {
		case "alice":
			f.alice = u.ID
		case "bob":
			f.bob = u.ID
		case "carol":
			f.carol = u.ID
		}
	}
	return f
}

func TestGetOrCreateChatroomIsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	id, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.bob)
	require.NoError(t, err)
	again, err := f.svc.GetOrCreateChatroom(ctx, f.bob, f.alice)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	other, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.carol)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	items, err := f.notes.Unread(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "alice started a conversation with you", items[0].Message)
	assert.Contains(t, f.pub.types(int64(f.bob)), messaging.EventNotification)
}

func TestGetOrCreateChatroomErrors(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetOrCreateChatroom(ctx, f.alice, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.GetOrCreateChatroom(ctx, f.alice, f.alice)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.GetOrCreateChatroom(ctx, f.alice, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSendAndReadBack(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	room, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.bob)
	require.NoError(t, err)

	sent, err := f.svc.Send(ctx, f.alice, room, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", sent.Content)
	assert.Equal(t, "alice", sent.SenderName)

	_, err = f.svc.Send(ctx, f.bob, room, "hi alice")
	require.NoError(t, err)

	msgs, err := f.svc.Messages(ctx, f.bob, room)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi alice", msgs[1].Content)

	assert.Contains(t, f.pub.types(int64(f.bob)), messaging.EventMessage)

	rooms, err := f.svc.MyChatrooms(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, "hi alice", rooms[0].LastMessage.Content)
	assert.Equal(t, "bob", rooms[0].LastMessage.Sender)
	assert.True(t, rooms[0].HasParticipant("alice"))
	assert.True(t, rooms[0].HasParticipant("bob"))
}

func TestSendValidation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	room, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.bob)
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, f.alice, room, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Send(ctx, f.alice, room, strings.Repeat("é", domain.MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Send(ctx, f.alice, room, strings.Repeat("é", domain.MaxMessageLength))
	assert.NoError(t, err)

	_, err = f.svc.Send(ctx, f.carol, room, "let me in")
	assert.ErrorIs(t, err, ErrChatroomNotFound)
	_, err = f.svc.Messages(ctx, f.carol, room)
	assert.ErrorIs(t, err, ErrChatroomNotFound)
}

func TestMyChatroomsOrdersByActivity(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	withBob, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.bob)
	require.NoError(t, err)
	withCarol, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.carol)
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, f.alice, withBob, "first")
	require.NoError(t, err)

	rooms, err := f.svc.MyChatrooms(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, int64(withBob), rooms[0].ID)
	assert.Equal(t, int64(withCarol), rooms[1].ID)
	assert.Nil(t, rooms[1].LastMessage)
	assert.NotNil(t, rooms[1].LastActivity)
}

func TestUnreadCountsAndMarkAsRead(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	room, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.bob)
	require.NoError(t, err)

	for _, text := range []string{"one", "two"} {
		_, err := f.svc.Send(ctx, f.alice, room, text)
		require.NoError(t, err)
	}

	counts, err := f.svc.UnreadCounts(ctx, f.bob)
	require.NoError(t, err)
	assert.Equal(t, domain.UnreadCounts{int64(room): 2}, counts)

	counts, err = f.svc.UnreadCounts(ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, counts)

	n, err := f.svc.MarkAsRead(ctx, f.bob, room)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, f.pub.types(int64(f.bob)), messaging.EventRead)

	counts, err = f.svc.UnreadCounts(ctx, f.bob)
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = f.svc.MarkAsRead(ctx, f.carol, room)
	assert.ErrorIs(t, err, ErrChatroomNotFound)
}

func TestTypingExcludesSelfAndClearsOnSend(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	room, err := f.svc.GetOrCreateChatroom(ctx, f.alice, f.bob)
	require.NoError(t, err)

	require.NoError(t, f.svc.SetTyping(ctx, f.alice, room, true))

	typing, err := f.svc.Typing(ctx, f.bob, room)
	require.NoError(t, err)
	require.Len(t, typing, 1)
	assert.Equal(t, "alice", typing[0].Username)
	assert.WithinDuration(t, time.Now(), typing[0].Timestamp, time.Minute)

	self, err := f.svc.Typing(ctx, f.alice, room)
	require.NoError(t, err)
	assert.Empty(t, self)

	_, err = f.svc.Send(ctx, f.alice, room, "done typing")
	require.NoError(t, err)
	typing, err = f.svc.Typing(ctx, f.bob, room)
	require.NoError(t, err)
	assert.Empty(t, typing)

	require.NoError(t, f.svc.SetTyping(ctx, f.alice, room, true))
	require.NoError(t, f.svc.SetTyping(ctx, f.alice, room, false))
	typing, err = f.svc.Typing(ctx, f.bob, room)
	require.NoError(t, err)
	assert.Empty(t, typing)

	_, err = f.svc.Typing(ctx, f.carol, room)
	assert.ErrorIs(t, err, ErrChatroomNotFound)
}

func TestNotificationService(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	first, err := f.notes.Notify(ctx, f.alice, "Your pickup is scheduled")
	require.NoError(t, err)
	_, err = f.notes.Notify(ctx, f.alice, "You earned 20 points")
	require.NoError(t, err)
	_, err = f.notes.Notify(ctx, f.alice, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, f.notes.MarkRead(ctx, f.alice, first.ID))
	assert.ErrorIs(t, f.notes.MarkRead(ctx, f.bob, first.ID), ErrNotificationNotFound)
	assert.ErrorIs(t, f.notes.MarkRead(ctx, f.alice, 0), ErrInvalidInput)

	items, err := f.notes.Unread(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "You earned 20 points", items[0].Message)

	n, err := f.notes.MarkAllRead(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	items, err = f.notes.Unread(ctx, f.alice)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
