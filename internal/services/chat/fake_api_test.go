package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
)

var t0 = time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

// fakeAPI is an in-memory chat backend behind the apiclient.Doer seam.
// Payloads go through JSON so wire tags are exercised.
type fakeAPI struct {
	mu       sync.Mutex
	calls    map[string]int
	rooms    []domain.Chatroom
	messages map[int64][]domain.Message
	typing   map[int64][]domain.TypingUser
	typingTo []bool
	fail     map[string]error
	nextID   int64
	clock    time.Time
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:    make(map[string]int),
		messages: make(map[int64][]domain.Message),
		typing:   make(map[int64][]domain.TypingUser),
		fail:     make(map[string]error),
		nextID:   100,
		clock:    t0,
	}
}

func (f *fakeAPI) Do(ctx context.Context, req apiclient.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	route := req.Method + " " + routeOf(req.Path)
	f.calls[route]++
	if err, ok := f.fail[route]; ok {
		return err
	}

	switch route {
	case "GET /chat/my-chatrooms/":
		return reply(f.rooms, req.Out)
	case "GET /chat/messages/":
		return reply(f.messages[idOf(req.Path)], req.Out)
	case "POST /chat/send/":
		var in struct {
			ChatroomID int64  `json:"chatroom_id"`
			Content    string `json:"content"`
		}
		decode(req.Body, &in)
		f.nextID++
		f.clock = f.clock.Add(time.Second)
		msg := domain.Message{ID: f.nextID, SenderID: 1, SenderName: "alice", Content: in.Content, Timestamp: f.clock}
		f.messages[in.ChatroomID] = append(f.messages[in.ChatroomID], msg)
		for i := range f.rooms {
			if f.rooms[i].ID == in.ChatroomID {
				f.rooms[i].LastMessage = &domain.MessageSummary{Content: in.Content, Sender: "alice", Timestamp: f.clock}
			}
		}
		return reply(map[string]interface{}{"id": msg.ID, "content": msg.Content}, req.Out)
	case "POST /chat/mark-as-read/":
		return nil
	case "POST /chat/typing/":
		var in struct {
			IsTyping bool `json:"is_typing"`
		}
		decode(req.Body, &in)
		f.typingTo = append(f.typingTo, in.IsTyping)
		return nil
	case "GET /chat/typing/":
		return reply(map[string]interface{}{"typing_users": f.typing[idOf(req.Path)]}, req.Out)
	case "POST /chat/get-or-create-chatroom/":
		f.rooms = append(f.rooms, domain.Chatroom{ID: 77})
		return reply(map[string]int64{"chatroom_id": 77}, req.Out)
	case "GET /user-profile/":
		return reply(domain.UserProfile{ID: 1, Username: "alice"}, req.Out)
	}
	return apiclient.NewNetworkError(req.Operation, http.StatusNotFound, "no route "+route, nil)
}

func (f *fakeAPI) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) typingUpdates() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.typingTo...)
}

func (f *fakeAPI) setFail(route string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, route)
		return
	}
	f.fail[route] = err
}

// routeOf strips a trailing numeric id: /chat/messages/42/ -> /chat/messages/
func routeOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if _, err := strconv.ParseInt(parts[len(parts)-1], 10, 64); err == nil {
		parts = parts[:len(parts)-1]
	}
	return "/" + strings.Join(parts, "/") + "/"
}

func idOf(path string) int64 {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	id, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	return id
}

func reply(v interface{}, out interface{}) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fake marshal: %w", err)
	}
	return json.Unmarshal(b, out)
}

func decode(body interface{}, into interface{}) {
	b, _ := json.Marshal(body)
	json.Unmarshal(b, into)
}

func room(id int64, last *time.Time) domain.Chatroom {
	r := domain.Chatroom{ID: id, Participants: []domain.Participant{{Username: "alice"}, {Username: fmt.Sprintf("user%d", id)}}}
	if last != nil {
		r.LastMessage = &domain.MessageSummary{Content: "x", Sender: "bob", Timestamp: *last}
	}
	return r
}

func at(offset time.Duration) *time.Time {
	ts := t0.Add(offset)
	return &ts
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RoomsInterval = time.Hour
	cfg.MessagesInterval = time.Hour
	cfg.TypingInterval = time.Hour
	cfg.TypingDebounce = 40 * time.Millisecond
	return cfg
}
