package chat

import (
	"context"
	"sync"

	"github.com/trash2cash/chatsync/internal/domain"
)

// Session is one open chat screen: it picks a room, keeps that room's polls
// running and tells the notification center what is on screen. Close tears
// everything down.
type Session struct {
	service *Service
	tracker ActiveRoomTracker
	logger  Logger

	mu           sync.Mutex
	open         bool
	releaseRooms func()
	releaseRoom  func()
	leaveRoom    func()
	selected     int64
	hasSelection bool
	stream       *Stream
	typing       *Typing
}

// NewSession creates a closed session. tracker may be nil.
func NewSession(service *Service, tracker ActiveRoomTracker, logger Logger) *Session {
	return &Session{service: service, tracker: tracker, logger: logger}
}

// Open loads the chatroom list, starts polling it and selects the deep-linked
// room if the user has it, otherwise the most recent one. With no rooms
// nothing is selected and no messages are loaded.
func (s *Session) Open(ctx context.Context, deepLink *int64) error {
	rooms, err := s.service.Directory().List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.open {
		s.open = true
		s.releaseRooms = s.service.WatchDirectory()
	}
	s.mu.Unlock()

	if id, ok := SelectInitial(rooms, deepLink); ok {
		return s.Select(id)
	}
	s.logger.Debug("No chatroom to select")
	return nil
}

// Select switches the screen to roomID. The room must be in the chatroom list.
func (s *Session) Select(roomID int64) error {
	if _, ok := s.service.Directory().Find(roomID); !ok {
		return errUnknownRoom(roomID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSelection && s.selected == roomID {
		return nil
	}
	s.dropRoomLocked()

	s.stream, s.typing, s.releaseRoom = s.service.WatchRoom(roomID)
	s.selected, s.hasSelection = roomID, true
	if s.tracker != nil {
		s.leaveRoom = s.tracker.EnterChatroom(roomID)
	}
	s.logger.Debug("Chatroom selected", "room_id", roomID)
	return nil
}

// Selected returns the room on screen.
func (s *Session) Selected() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.hasSelection
}

// Stream returns the selected room's messages, or nil.
func (s *Session) Stream() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Typing returns the selected room's typing tracker, or nil.
func (s *Session) Typing() *Typing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Rooms returns the cached chatroom list.
func (s *Session) Rooms() []domain.Chatroom {
	return s.service.Directory().Rooms()
}

// Keystroke forwards local input to the typing tracker.
func (s *Session) Keystroke() {
	if t := s.Typing(); t != nil {
		t.Keystroke()
	}
}

// Send posts content to the selected room. The caller keeps its draft when
// an error comes back.
func (s *Session) Send(ctx context.Context, content string) error {
	s.mu.Lock()
	stream, typing, ok := s.stream, s.typing, s.hasSelection
	s.mu.Unlock()
	if !ok {
		return errNoRoomSelected()
	}
	if _, err := ValidateContent(content, s.service.Config().MaxMessageLength); err != nil {
		return err
	}
	typing.StopTyping()
	_, err := stream.Send(ctx, content)
	return err
}

// Close stops every poll the session started and clears the active room.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropRoomLocked()
	if s.releaseRooms != nil {
		s.releaseRooms()
		s.releaseRooms = nil
	}
	s.open = false
}

func (s *Session) dropRoomLocked() {
	if s.releaseRoom != nil {
		s.releaseRoom()
		s.releaseRoom = nil
	}
	if s.leaveRoom != nil {
		s.leaveRoom()
		s.leaveRoom = nil
	}
	s.stream, s.typing = nil, nil
	s.selected, s.hasSelection = 0, false
}
