package chat

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/poller"
)

// Typing tracks typing state for one chatroom in both directions: it reports
// the local user's keystrokes and polls who else is typing.
type Typing struct {
	roomID   int64
	api      apiclient.Doer
	logger   Logger
	debounce time.Duration
	timeout  time.Duration
	baseCtx  context.Context
	self     func() Identity
	seq      poller.Sequence

	mu     sync.Mutex
	typing bool
	timer  *time.Timer
	gen    uint64
	users  []domain.TypingUser

	// updates go out one at a time, in the order they were made
	outMu   sync.Mutex
	queue   []bool
	sending bool
	sends   sync.WaitGroup

	observers poller.Observers[[]domain.TypingUser]
}

// NewTyping creates the tracker. Fire-and-forget updates run under baseCtx;
// self reports the viewing user, whose entries are never shown.
func NewTyping(baseCtx context.Context, roomID int64, api apiclient.Doer, config *Config, self func() Identity, logger Logger) *Typing {
	return &Typing{
		roomID:   roomID,
		api:      api,
		logger:   logger,
		debounce: config.TypingDebounce,
		timeout:  config.TypingTimeout,
		baseCtx:  baseCtx,
		self:     self,
	}
}

// SetTyping tells the server whether the local user is typing. It returns at
// once; the outcome is only logged. Updates reach the server in call order.
func (t *Typing) SetTyping(isTyping bool) {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	t.queue = append(t.queue, isTyping)
	if t.sending {
		return
	}
	t.sending = true
	t.sends.Add(1)
	go t.drain()
}

func (t *Typing) drain() {
	defer t.sends.Done()
	for {
		t.outMu.Lock()
		if len(t.queue) == 0 {
			t.sending = false
			t.outMu.Unlock()
			return
		}
		isTyping := t.queue[0]
		t.queue = t.queue[1:]
		t.outMu.Unlock()

		t.send(isTyping)
	}
}

func (t *Typing) send(isTyping bool) {
	ctx, cancel := context.WithTimeout(t.baseCtx, t.timeout)
	defer cancel()
	err := t.api.Do(ctx, apiclient.Request{
		Operation: "chat.typing.set",
		Method:    http.MethodPost,
		Path:      "/chat/typing/",
		Body:      map[string]interface{}{"chatroom_id": t.roomID, "is_typing": isTyping},
	})
	if err != nil {
		t.logger.Debug("Typing update dropped", "room_id", t.roomID, "is_typing", isTyping, "error", err)
	}
}

// Keystroke records local input. The first keystroke after idle reports
// typing; each one pushes back the idle deadline.
func (t *Typing) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.typing {
		t.typing = true
		t.SetTyping(true)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.debounce, func() { t.expire(gen) })
}

// StopTyping reports "stopped typing" now if typing was reported.
func (t *Typing) StopTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// IsTyping reports the local typing state.
func (t *Typing) IsTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

func (t *Typing) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// a later keystroke re-armed the timer
	if gen != t.gen {
		return
	}
	t.stopLocked()
}

func (t *Typing) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	if t.typing {
		t.typing = false
		t.SetTyping(false)
	}
}

// Poll fetches who is typing in the room, minus the viewing user.
func (t *Typing) Poll(ctx context.Context) ([]domain.TypingUser, error) {
	seq := t.seq.Next()

	var out struct {
		TypingUsers []domain.TypingUser `json:"typing_users"`
	}
	err := t.api.Do(ctx, apiclient.Request{
		Operation: "chat.typing.get",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/chat/typing/%d/", t.roomID),
		Out:       &out,
	})
	if err != nil {
		return nil, err
	}

	me := t.self()
	users := make([]domain.TypingUser, 0, len(out.TypingUsers))
	for _, u := range out.TypingUsers {
		if (me.UserID != 0 && u.UserID == me.UserID) || (me.Username != "" && u.Username == me.Username) {
			continue
		}
		users = append(users, u)
	}

	if !t.seq.Apply(seq, func() {
		t.mu.Lock()
		t.users = users
		t.mu.Unlock()
	}) {
		return t.Users(), nil
	}
	t.observers.Emit(append([]domain.TypingUser(nil), users...))
	return users, nil
}

// Users returns the last polled set.
func (t *Typing) Users() []domain.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TypingUser(nil), t.users...)
}

// Subscribe calls fn with every newly applied set.
func (t *Typing) Subscribe(fn func([]domain.TypingUser)) func() {
	return t.observers.Add(fn)
}

// Close reports "stopped typing" if needed and waits for pending updates.
func (t *Typing) Close() {
	t.StopTyping()
	t.sends.Wait()
}

// Flush waits for pending fire-and-forget updates.
func (t *Typing) Flush() {
	t.sends.Wait()
}

func (t *Typing) poll(ctx context.Context) error {
	_, err := t.Poll(ctx)
	return err
}
