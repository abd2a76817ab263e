package chat

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/metrics"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/poller"
)

// Stream is the message log of one chatroom.
type Stream struct {
	roomID    int64
	api       apiclient.Doer
	logger    Logger
	maxLength int
	afterSend func(ctx context.Context)
	seq       poller.Sequence

	mu       sync.RWMutex
	messages []domain.Message

	observers poller.Observers[[]domain.Message]
}

func NewStream(roomID int64, api apiclient.Doer, config *Config, logger Logger) *Stream {
	return &Stream{roomID: roomID, api: api, logger: logger, maxLength: config.MaxMessageLength}
}

// OnSent registers a hook that runs after a successful send, once the message
// list has been reloaded. The chat service uses it to refresh the directory.
func (s *Stream) OnSent(fn func(ctx context.Context)) {
	s.afterSend = fn
}

func (s *Stream) RoomID() int64 { return s.roomID }

// Load fetches the room's messages, replaces the cache and tells the server
// the room has been read. The read receipt is best effort.
func (s *Stream) Load(ctx context.Context) ([]domain.Message, error) {
	seq := s.seq.Next()

	var msgs []domain.Message
	err := s.api.Do(ctx, apiclient.Request{
		Operation: "chat.messages",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/chat/messages/%d/", s.roomID),
		Out:       &msgs,
	})
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	for i := range msgs {
		msgs[i].ChatroomID = s.roomID
	}
	SortMessages(msgs)

	applied := s.seq.Apply(seq, func() {
		s.mu.Lock()
		s.messages = msgs
		s.mu.Unlock()
	})
	s.markRead(ctx)

	if !applied {
		metrics.PollStaleTotal.WithLabelValues("messages").Inc()
		return s.Messages(), nil
	}
	s.observers.Emit(cloneMessages(msgs))
	return cloneMessages(msgs), nil
}

// Messages returns the cached log.
func (s *Stream) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// Subscribe calls fn with every newly applied log.
func (s *Stream) Subscribe(fn func([]domain.Message)) func() {
	return s.observers.Add(fn)
}

// Send validates and posts content. On success the log is reloaded and the
// OnSent hook runs; failures of those follow-ups are logged, not returned.
func (s *Stream) Send(ctx context.Context, content string) (int64, error) {
	text, err := ValidateContent(content, s.maxLength)
	if err != nil {
		return 0, err
	}

	var out struct {
		ID int64 `json:"id"`
	}
	err = s.api.Do(ctx, apiclient.Request{
		Operation: "chat.send",
		Method:    http.MethodPost,
		Path:      "/chat/send/",
		Body:      map[string]interface{}{"chatroom_id": s.roomID, "content": text},
		Out:       &out,
	})
	if err != nil {
		return 0, err
	}

	if _, err := s.Load(ctx); err != nil {
		s.logger.Warn("Message reload after send failed", "room_id", s.roomID, "error", err)
	}
	if s.afterSend != nil {
		s.afterSend(ctx)
	}
	return out.ID, nil
}

func (s *Stream) markRead(ctx context.Context) {
	err := s.api.Do(ctx, apiclient.Request{
		Operation: "chat.mark_read",
		Method:    http.MethodPost,
		Path:      "/chat/mark-as-read/",
		Body:      map[string]int64{"chatroom_id": s.roomID},
	})
	if err != nil {
		s.logger.Debug("Mark as read dropped", "room_id", s.roomID, "error", err)
	}
}

func (s *Stream) poll(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

func cloneMessages(msgs []domain.Message) []domain.Message {
	if msgs == nil {
		return nil
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}
