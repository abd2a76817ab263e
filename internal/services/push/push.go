// Package push turns backend change events into early poll runs. Polling
// stays the source of truth; an event only shortens the wait for the next
// tick.
package push

import (
	"fmt"
	"sync"

	"github.com/trash2cash/chatsync/internal/messaging"
	"github.com/trash2cash/chatsync/internal/services/chat"
	"github.com/trash2cash/chatsync/internal/services/notify"
)

// Logger is the logging contract used by the push package.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Subscriber delivers a user's events.
type Subscriber interface {
	SubscribeUserEvents(userID int64, handler func(messaging.UserEvent)) error
	UnsubscribeUserEvents(userID int64) error
}

// Triggerer runs poll loops now. poller.Shared implements it.
type Triggerer interface {
	Trigger(key string) bool
	TriggerPrefix(prefix string) int
}

// Nudger subscribes to one user's events while attached.
type Nudger struct {
	sub    Subscriber
	polls  Triggerer
	logger Logger

	mu     sync.Mutex
	userID int64
}

func NewNudger(sub Subscriber, polls Triggerer, logger Logger) *Nudger {
	return &Nudger{sub: sub, polls: polls, logger: logger}
}

// Attach starts listening for userID, replacing any earlier user.
func (n *Nudger) Attach(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("push: invalid user id %d", userID)
	}
	n.Detach()
	if err := n.sub.SubscribeUserEvents(userID, func(event messaging.UserEvent) { n.Handle(event) }); err != nil {
		return err
	}
	n.mu.Lock()
	n.userID = userID
	n.mu.Unlock()
	n.logger.Info("Push nudges attached", "user_id", userID)
	return nil
}

// Detach stops listening. It is safe to call when not attached.
func (n *Nudger) Detach() {
	n.mu.Lock()
	userID := n.userID
	n.userID = 0
	n.mu.Unlock()
	if userID == 0 {
		return
	}
	if err := n.sub.UnsubscribeUserEvents(userID); err != nil {
		n.logger.Debug("Push unsubscribe failed", "user_id", userID, "error", err)
	}
}

// Handle triggers the polls an event makes stale and returns how many ran.
// Unknown events refresh everything being polled.
func (n *Nudger) Handle(event messaging.UserEvent) int {
	var keys []string
	switch event.Type {
	case messaging.EventMessage:
		keys = []string{chat.KeyChatrooms, notify.KeyUnreadCounts}
		if event.ChatroomID > 0 {
			keys = append(keys, roomKey(chat.KeyMessages, event.ChatroomID))
		}
	case messaging.EventTyping:
		if event.ChatroomID > 0 {
			keys = []string{roomKey(chat.KeyTyping, event.ChatroomID)}
		}
	case messaging.EventRead:
		keys = []string{notify.KeyUnreadCounts}
	case messaging.EventRoom:
		keys = []string{chat.KeyChatrooms}
	case messaging.EventNotification:
		keys = []string{notify.KeyNotifications}
	default:
		nudged := n.polls.TriggerPrefix("")
		n.logger.Debug("Push event refreshed all polls", "type", event.Type, "polls", nudged)
		return nudged
	}

	nudged := 0
	for _, key := range keys {
		if n.polls.Trigger(key) {
			nudged++
		}
	}
	n.logger.Debug("Push event", "type", event.Type, "room_id", event.ChatroomID, "polls", nudged)
	return nudged
}

func roomKey(prefix string, roomID int64) string {
	return fmt.Sprintf("%s/%d", prefix, roomID)
}
