// File: internal/services/chat_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/messaging"
	"github.com/trash2cash/chatsync/internal/metrics"
	"github.com/trash2cash/chatsync/internal/presence"
	"github.com/trash2cash/chatsync/internal/repository/chat"
	"github.com/trash2cash/chatsync/internal/repository/message"
	"github.com/trash2cash/chatsync/internal/repository/notification"
	"github.com/trash2cash/chatsync/internal/repository/user"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrChatroomNotFound = errors.New("chatroom not found")
	ErrUserNotFound     = errors.New("user not found")
)

// EventPublisher fans change events out to users. The backend works
// without one; clients then learn about changes by polling alone.
type EventPublisher interface {
	PublishUserEvent(userID int64, event messaging.UserEvent) error
}

// ChatService is the reference backend's chat logic behind /api/chat/.
type ChatService struct {
	chatRepo    chat.ChatRepository
	messageRepo message.MessageRepository
	userRepo    user.UserRepository
	notifyRepo  notification.NotificationRepository
	typing      presence.Store
	publisher   EventPublisher
	logger      Logger
	now         func() time.Time
}

func NewChatService(
	chatRepo chat.ChatRepository,
	messageRepo message.MessageRepository,
	userRepo user.UserRepository,
	notifyRepo notification.NotificationRepository,
	typing presence.Store,
	publisher EventPublisher,
	logger Logger,
) (*ChatService, error) {
	if chatRepo == nil || messageRepo == nil || userRepo == nil || notifyRepo == nil {
		return nil, fmt.Errorf("%w: repositories are required", ErrInvalidInput)
	}
	if typing == nil {
		return nil, fmt.Errorf("%w: typing store is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &ChatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		notifyRepo:  notifyRepo,
		typing:      typing,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// MyChatrooms lists the user's rooms, most recently active first.
func (s *ChatService) MyChatrooms(ctx context.Context, userID uint) ([]domain.Chatroom, error) {
	rooms, err := s.chatRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
	}
	last, err := s.messageRepo.LastByRoomIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Chatroom, 0, len(rooms))
	for i := range rooms {
		out = append(out, wireRoom(&rooms[i], last[rooms[i].ID]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := *out[i].LastActivity, *out[j].LastActivity
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func wireRoom(room *domain.Room, last *domain.ChatMessage) domain.Chatroom {
	c := domain.Chatroom{
		ID:           int64(room.ID),
		Participants: make([]domain.Participant, 0, len(room.Participants)),
		CreatedAt:    room.CreatedAt,
	}
	for _, p := range room.Participants {
		c.Participants = append(c.Participants, domain.Participant{ID: int64(p.ID), Username: p.Username})
	}
	activity := room.CreatedAt
	if last != nil {
		c.LastMessage = last.Summary()
		activity = last.CreatedAt
	}
	c.LastActivity = &activity
	return c
}

// Messages returns a room's history, oldest first.
func (s *ChatService) Messages(ctx context.Context, userID, roomID uint) ([]domain.Message, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	stored, err := s.messageRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, len(stored))
	for i := range stored {
		out[i] = stored[i].Wire()
	}
	return out, nil
}

// Send stores a message and clears the sender's typing marker.
func (s *ChatService) Send(ctx context.Context, userID, roomID uint, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, domain.MaxMessageLength)
	}
	room, err := s.memberRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	stored, err := s.messageRepo.Create(ctx, &domain.ChatMessage{RoomID: roomID, SenderID: userID, Content: content})
	if err != nil {
		return nil, err
	}
	metrics.ServerMessagesTotal.Inc()

	if err := s.typing.Clear(ctx, int64(roomID), int64(userID)); err != nil {
		s.logger.Warn("failed to clear typing marker", "room_id", roomID, "user_id", userID, "error", err)
	}

	wire := stored.Wire()
	s.publish(room, userID, messaging.UserEvent{Type: messaging.EventMessage, ChatroomID: wire.ChatroomID, MessageID: wire.ID})
	s.logger.Debug("message stored", "room_id", roomID, "message_id", wire.ID)
	return &wire, nil
}

// SetTyping records or clears the user's typing marker.
func (s *ChatService) SetTyping(ctx context.Context, userID, roomID uint, isTyping bool) error {
	room, err := s.memberRoom(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !isTyping {
		return s.typing.Clear(ctx, int64(roomID), int64(userID))
	}

	var username string
	for _, p := range room.Participants {
		if p.ID == userID {
			username = p.Username
		}
	}
	err = s.typing.Set(ctx, int64(roomID), domain.TypingUser{
		UserID:    int64(userID),
		Username:  username,
		Timestamp: s.now(),
	})
	if err != nil {
		return err
	}
	s.publish(room, userID, messaging.UserEvent{Type: messaging.EventTyping, ChatroomID: int64(roomID)})
	return nil
}

// Typing returns the other participants currently typing in a room.
func (s *ChatService) Typing(ctx context.Context, userID, roomID uint) ([]domain.TypingUser, error) {
	room, err := s.memberRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	others := make([]int64, 0, len(room.Participants))
	for _, p := range room.Participants {
		if p.ID != userID {
			others = append(others, int64(p.ID))
		}
	}
	users, err := s.typing.Get(ctx, int64(roomID), others)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.TypingUser{}
	}
	return users, nil
}

// MarkAsRead marks everything the user received in a room as read.
func (s *ChatService) MarkAsRead(ctx context.Context, userID, roomID uint) (int64, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return 0, err
	}
	n, err := s.messageRepo.MarkRoomRead(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notify(userID, messaging.UserEvent{Type: messaging.EventRead, ChatroomID: int64(roomID)})
	}
	return n, nil
}

// UnreadCounts returns the user's unread message count per room.
func (s *ChatService) UnreadCounts(ctx context.Context, userID uint) (domain.UnreadCounts, error) {
	counts, err := s.messageRepo.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(domain.UnreadCounts, len(counts))
	for room, n := range counts {
		out[int64(room)] = n
	}
	return out, nil
}

// GetOrCreateChatroom returns the private room between the user and
// otherID. A newly created room notifies the other user.
func (s *ChatService) GetOrCreateChatroom(ctx context.Context, userID, otherID uint) (uint, error) {
	if otherID == 0 {
		return 0, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if otherID == userID {
		return 0, fmt.Errorf("%w: cannot open a chat with yourself", ErrInvalidInput)
	}
	other, err := s.userRepo.FindByID(ctx, otherID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	room, created, err := s.chatRepo.GetOrCreatePrivate(ctx, userID, otherID)
	if err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	if !created {
		return room.ID, nil
	}

	starter := "Someone"
	for _, p := range room.Participants {
		if p.ID == userID {
			starter = p.Username
		}
	}
	n := &domain.Notification{UserID: other.ID, Message: fmt.Sprintf("%s started a conversation with you", starter)}
	if err := s.notifyRepo.Create(ctx, n); err != nil {
		s.logger.Warn("failed to create chat notification", "user_id", other.ID, "error", err)
	} else {
		s.notify(other.ID, messaging.UserEvent{Type: messaging.EventNotification})
	}
	s.notify(userID, messaging.UserEvent{Type: messaging.EventRoom, ChatroomID: int64(room.ID)})
	s.notify(other.ID, messaging.UserEvent{Type: messaging.EventRoom, ChatroomID: int64(room.ID)})
	s.logger.Info("chatroom created", "room_id", room.ID, "user_id", userID, "other_id", other.ID)
	return room.ID, nil
}

func (s *ChatService) requireMember(ctx context.Context, roomID, userID uint) error {
	ok, err := s.chatRepo.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChatroomNotFound
	}
	return nil
}

// memberRoom loads a room the user belongs to. Rooms the user is not in
// look the same as missing ones.
func (s *ChatService) memberRoom(ctx context.Context, roomID, userID uint) (*domain.Room, error) {
	room, err := s.chatRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return nil, ErrChatroomNotFound
		}
		return nil, err
	}
	for _, p := range room.Participants {
		if p.ID == userID {
			return room, nil
		}
	}
	return nil, ErrChatroomNotFound
}

// publish sends event to every participant except the actor.
func (s *ChatService) publish(room *domain.Room, actor uint, event messaging.UserEvent) {
	for _, p := range room.Participants {
		if p.ID != actor {
			s.notify(p.ID, event)
		}
	}
}

func (s *ChatService) notify(userID uint, event messaging.UserEvent) {
	if s.publisher == nil {
		return
	}
	if event.At.IsZero() {
		event.At = s.now()
	}
	if err := s.publisher.PublishUserEvent(int64(userID), event); err != nil {
		s.logger.Warn("failed to publish user event", "user_id", userID, "type", event.Type, "error", err)
	}
}
