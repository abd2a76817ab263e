package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trash2cash/chatsync/internal/domain"
)

// exerciseStore runs the behavior every Store must share.
func exerciseStore(t *testing.T, store Store, roomID int64) {
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, roomID, domain.TypingUser{UserID: 1, Username: "alice"}))
	require.NoError(t, store.Set(ctx, roomID, domain.TypingUser{UserID: 2, Username: "bob"}))
	require.NoError(t, store.Set(ctx, roomID+1, domain.TypingUser{UserID: 3, Username: "carol"}))

	users, err := store.Get(ctx, roomID, []int64{2, 1, 3})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].Username)
	assert.Equal(t, "alice", users[1].Username)
	assert.False(t, users[0].Timestamp.IsZero())

	require.NoError(t, store.Clear(ctx, roomID, 2))
	users, err = store.Get(ctx, roomID, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(1), users[0].UserID)

	users, err = store.Get(ctx, roomID, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(DefaultTTL), 10)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(DefaultTTL)
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, 4, domain.TypingUser{UserID: 1, Username: "alice"}))

	now = now.Add(9 * time.Second)
	users, err := store.Get(ctx, 4, []int64{1})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	now = now.Add(time.Second)
	users, err = store.Get(ctx, 4, []int64{1})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	// room ids far from anything a dev backend creates
	const roomID = 990001
	t.Cleanup(func() {
		for _, k := range []string{key(roomID, 1), key(roomID, 2), key(roomID+1, 3)} {
			client.Del(ctx, k)
		}
		client.Close()
	})

	store := NewRedisStore(client, DefaultTTL)
	exerciseStore(t, store, roomID)

	ttl, err := client.TTL(ctx, key(roomID, 1)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, DefaultTTL)
}
