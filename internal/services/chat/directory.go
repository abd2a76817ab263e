package chat

import (
	"context"
	"net/http"
	"sync"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/metrics"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/poller"
)

// Directory is the user's chatroom list, most recently active first.
type Directory struct {
	api    apiclient.Doer
	logger Logger
	seq    poller.Sequence

	mu    sync.RWMutex
	rooms []domain.Chatroom

	observers poller.Observers[[]domain.Chatroom]
}

func NewDirectory(api apiclient.Doer, logger Logger) *Directory {
	return &Directory{api: api, logger: logger}
}

// List fetches the chatrooms, sorts them and replaces the cached list. If a
// newer fetch has already been applied, the cached list is returned instead.
func (d *Directory) List(ctx context.Context) ([]domain.Chatroom, error) {
	seq := d.seq.Next()

	var rooms []domain.Chatroom
	err := d.api.Do(ctx, apiclient.Request{
		Operation: "chat.rooms",
		Method:    http.MethodGet,
		Path:      "/chat/my-chatrooms/",
		Out:       &rooms,
	})
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.Chatroom{}
	}
	SortChatrooms(rooms)

	applied := d.seq.Apply(seq, func() {
		d.mu.Lock()
		d.rooms = rooms
		d.mu.Unlock()
	})
	if !applied {
		metrics.PollStaleTotal.WithLabelValues("chatrooms").Inc()
		return d.Rooms(), nil
	}
	d.observers.Emit(cloneRooms(rooms))
	return cloneRooms(rooms), nil
}

// Refresh re-fetches and replaces the list.
func (d *Directory) Refresh(ctx context.Context) error {
	_, err := d.List(ctx)
	return err
}

// Rooms returns the cached list.
func (d *Directory) Rooms() []domain.Chatroom {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneRooms(d.rooms)
}

// Find looks a room up in the cached list.
func (d *Directory) Find(roomID int64) (domain.Chatroom, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms {
		if r.ID == roomID {
			return r, true
		}
	}
	return domain.Chatroom{}, false
}

// Subscribe calls fn with every newly applied list.
func (d *Directory) Subscribe(fn func([]domain.Chatroom)) func() {
	return d.observers.Add(fn)
}

// GetOrCreate returns the private room shared with userID, creating it on the
// server if needed, and refreshes the list so the room can be selected.
func (d *Directory) GetOrCreate(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, apiclient.NewValidationError("chat.get_or_create", "a user id is required")
	}
	var out struct {
		ChatroomID int64 `json:"chatroom_id"`
	}
	err := d.api.Do(ctx, apiclient.Request{
		Operation: "chat.get_or_create",
		Method:    http.MethodPost,
		Path:      "/chat/get-or-create-chatroom/",
		Body:      map[string]int64{"user_id": userID},
		Out:       &out,
	})
	if err != nil {
		return 0, err
	}
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("Chatroom list refresh after get-or-create failed", "error", err)
	}
	return out.ChatroomID, nil
}

func cloneRooms(rooms []domain.Chatroom) []domain.Chatroom {
	if rooms == nil {
		return nil
	}
	out := make([]domain.Chatroom, len(rooms))
	copy(out, rooms)
	return out
}
