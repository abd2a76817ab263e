package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/poller"
)

// Bell keeps the user's unread account notifications, newest first.
type Bell struct {
	api      apiclient.Doer
	shared   *poller.Shared
	interval time.Duration
	logger   Logger
	seq      poller.Sequence

	mu      sync.Mutex
	release func()
	items   []domain.Notification

	observers poller.Observers[[]domain.Notification]
}

func NewBell(api apiclient.Doer, shared *poller.Shared, config *Config, logger Logger) *Bell {
	return &Bell{api: api, shared: shared, interval: config.NotificationsInterval, logger: logger}
}

// Start begins polling. Calling Start on a running Bell does nothing.
func (b *Bell) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.release == nil {
		_, b.release = b.shared.Acquire(KeyNotifications, b.interval, b.poll)
	}
}

// Stop ends polling and drops the cached list.
func (b *Bell) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.release != nil {
		b.release()
		b.release = nil
	}
	b.items = nil
}

// Fetch loads the unread notifications.
func (b *Bell) Fetch(ctx context.Context) ([]domain.Notification, error) {
	seq := b.seq.Next()

	var items []domain.Notification
	err := b.api.Do(ctx, apiclient.Request{
		Operation: "notifications.list",
		Method:    http.MethodGet,
		Path:      "/notifications/",
		Out:       &items,
	})
	if err != nil {
		return nil, err
	}
	unread := items[:0]
	for _, n := range items {
		if !n.IsRead {
			unread = append(unread, n)
		}
	}
	sort.SliceStable(unread, func(i, j int) bool { return unread[i].CreatedAt.After(unread[j].CreatedAt) })

	b.seq.Apply(seq, func() { b.set(unread) })
	return b.Items(), nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (b *Bell) MarkAllRead(ctx context.Context) (int, error) {
	var out struct {
		Marked int `json:"marked"`
	}
	err := b.api.Do(ctx, apiclient.Request{
		Operation: "notifications.mark_all_read",
		Method:    http.MethodPost,
		Path:      "/notifications/mark-all-read/",
		Out:       &out,
	})
	if err != nil {
		return 0, err
	}
	b.set([]domain.Notification{})
	return out.Marked, nil
}

// MarkRead marks one notification read.
func (b *Bell) MarkRead(ctx context.Context, id int64) error {
	if id <= 0 {
		return apiclient.NewValidationError("notifications.mark_read", "a notification id is required")
	}
	err := b.api.Do(ctx, apiclient.Request{
		Operation: "notifications.mark_read",
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/notifications/%d/mark-read/", id),
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	kept := make([]domain.Notification, 0, len(b.items))
	for _, n := range b.items {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	b.mu.Unlock()
	b.set(kept)
	return nil
}

// Items returns the cached unread notifications.
func (b *Bell) Items() []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Notification(nil), b.items...)
}

// Unread is the bell badge.
func (b *Bell) Unread() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Subscribe calls fn with every new list.
func (b *Bell) Subscribe(fn func([]domain.Notification)) func() {
	return b.observers.Add(fn)
}

func (b *Bell) set(items []domain.Notification) {
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()
	b.observers.Emit(append([]domain.Notification(nil), items...))
}

func (b *Bell) poll(ctx context.Context) error {
	_, err := b.Fetch(ctx)
	return err
}
