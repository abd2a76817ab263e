package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trash2cash/chatsync/internal/domain"
)

// RedisStore keeps markers as plain keys with a TTL so Redis expires them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Set(ctx context.Context, roomID int64, user domain.TypingUser) error {
	if user.Timestamp.IsZero() {
		user.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("presence: marshal marker: %w", err)
	}
	if err := s.client.Set(ctx, key(roomID, user.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("presence: set marker: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, roomID, userID int64) error {
	if err := s.client.Del(ctx, key(roomID, userID)).Err(); err != nil {
		return fmt.Errorf("presence: clear marker: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, roomID int64, userIDs []int64) ([]domain.TypingUser, error) {
	users := []domain.TypingUser{}
	if len(userIDs) == 0 {
		return users, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = key(roomID, id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: read markers: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // missing keys come back as nil
		}
		var user domain.TypingUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}
