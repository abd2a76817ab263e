// Package presence keeps short-lived "is typing" markers for the reference
// backend. A marker lives until it is cleared or its TTL runs out:
//
//	Key:   typing:<chatroom_id>:<user_id>
//	Value: {"user_id":..,"username":..,"timestamp":..}
//	TTL:   DefaultTTL
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trash2cash/chatsync/internal/domain"
)

// DefaultTTL is how long a typing marker survives without a refresh.
const DefaultTTL = 10 * time.Second

// KeyPrefix is the key prefix for typing markers.
const KeyPrefix = "typing:"

// Store records who is typing where.
type Store interface {
	Set(ctx context.Context, roomID int64, user domain.TypingUser) error
	Clear(ctx context.Context, roomID, userID int64) error
	// Get returns the live markers of the given users, in that order.
	Get(ctx context.Context, roomID int64, userIDs []int64) ([]domain.TypingUser, error)
}

func key(roomID, userID int64) string {
	return fmt.Sprintf("%s%d:%d", KeyPrefix, roomID, userID)
}

// MemoryStore is a Store for tests and single-process deployments.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	markers map[string]memoryMarker
}

type memoryMarker struct {
	user    domain.TypingUser
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, markers: make(map[string]memoryMarker)}
}

func (s *MemoryStore) Set(ctx context.Context, roomID int64, user domain.TypingUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if user.Timestamp.IsZero() {
		user.Timestamp = now
	}
	s.markers[key(roomID, user.UserID)] = memoryMarker{user: user, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, key(roomID, userID))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, roomID int64, userIDs []int64) ([]domain.TypingUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	users := []domain.TypingUser{}
	for _, id := range userIDs {
		k := key(roomID, id)
		m, ok := s.markers[k]
		if !ok {
			continue
		}
		if !now.Before(m.expires) {
			delete(s.markers, k)
			continue
		}
		users = append(users, m.user)
	}
	return users, nil
}
