package notify

import (
	"context"

	"github.com/trash2cash/chatsync/internal/domain"
)

// Logger is the logging contract used by the notification package.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Preferences persists user flags such as the sound toggle.
type Preferences interface {
	GetBool(ctx context.Context, key string, def bool) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// Snapshot is the badge state handed to subscribers.
type Snapshot struct {
	Counts       domain.UnreadCounts // raw server counts
	ActiveRoom   *int64
	Total        int // badge total, active room excluded
	SoundEnabled bool
}

// Poll keys.
const (
	KeyUnreadCounts  = "unread-counts"
	KeyNotifications = "notifications"
)
