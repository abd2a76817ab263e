package chat

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/poller"
)

// Poll keys. Per-room keys carry a "/<roomID>" suffix.
const (
	KeyChatrooms = "chatrooms"
	KeyMessages  = "messages"
	KeyTyping    = "typing"
)

// Service owns the chat caches for the process: one Directory and one
// Stream/Typing pair per watched room, each refreshed by a shared poll loop so
// several views of the same data cost one set of requests.
type Service struct {
	ctx    context.Context
	api    apiclient.Doer
	config *Config
	shared *poller.Shared
	logger Logger

	directory *Directory

	mu       sync.Mutex
	identity Identity
	rooms    map[int64]*roomWatch
}

type roomWatch struct {
	stream *Stream
	typing *Typing
	refs   int
}

func NewService(ctx context.Context, api apiclient.Doer, shared *poller.Shared, config *Config, logger Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}
	return &Service{
		ctx:       ctx,
		api:       api,
		config:    config,
		shared:    shared,
		logger:    logger,
		directory: NewDirectory(api, logger),
		rooms:     make(map[int64]*roomWatch),
	}, nil
}

func (s *Service) Directory() *Directory { return s.directory }

func (s *Service) Config() *Config { return s.config }

// Identify fetches the viewing user's profile and remembers it.
func (s *Service) Identify(ctx context.Context) (domain.UserProfile, error) {
	var profile domain.UserProfile
	err := s.api.Do(ctx, apiclient.Request{
		Operation: "user.profile",
		Method:    http.MethodGet,
		Path:      "/user-profile/",
		Out:       &profile,
	})
	if err != nil {
		return domain.UserProfile{}, err
	}
	s.SetIdentity(Identity{UserID: profile.ID, Username: profile.Username})
	return profile, nil
}

func (s *Service) SetIdentity(id Identity) {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
}

func (s *Service) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// WatchDirectory keeps the chatroom list polling until release is called.
func (s *Service) WatchDirectory() (release func()) {
	_, release = s.shared.Acquire(KeyChatrooms, s.config.RoomsInterval, s.directory.Refresh)
	return release
}

// WatchRoom returns the room's caches and keeps its message and typing polls
// running until release is called.
func (s *Service) WatchRoom(roomID int64) (*Stream, *Typing, func()) {
	s.mu.Lock()
	w, ok := s.rooms[roomID]
	if !ok {
		stream := NewStream(roomID, s.api, s.config, s.logger)
		stream.OnSent(func(ctx context.Context) {
			if err := s.directory.Refresh(ctx); err != nil {
				s.logger.Warn("Chatroom list refresh after send failed", "error", err)
			}
		})
		w = &roomWatch{
			stream: stream,
			typing: NewTyping(s.ctx, roomID, s.api, s.config, s.Identity, s.logger),
		}
		s.rooms[roomID] = w
	}
	w.refs++
	s.mu.Unlock()

	_, releaseMessages := s.shared.Acquire(roomKey(KeyMessages, roomID), s.config.MessagesInterval, w.stream.poll)
	_, releaseTyping := s.shared.Acquire(roomKey(KeyTyping, roomID), s.config.TypingInterval, w.typing.poll)

	var once sync.Once
	return w.stream, w.typing, func() {
		once.Do(func() {
			releaseMessages()
			releaseTyping()
			s.unwatch(roomID, w)
		})
	}
}

func (s *Service) unwatch(roomID int64, w *roomWatch) {
	s.mu.Lock()
	w.refs--
	last := w.refs == 0
	if last && s.rooms[roomID] == w {
		delete(s.rooms, roomID)
	}
	s.mu.Unlock()
	if last {
		w.typing.Close()
	}
}

// Watching reports how many views hold roomID.
func (s *Service) Watching(roomID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.rooms[roomID]; ok {
		return w.refs
	}
	return 0
}

func roomKey(prefix string, roomID int64) string {
	return fmt.Sprintf("%s/%d", prefix, roomID)
}
