package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceDropsStaleResponses(t *testing.T) {
	var seq Sequence
	first := seq.Next()
	second := seq.Next()

	var applied []uint64
	assert.True(t, seq.Apply(second, func() { applied = append(applied, second) }))
	assert.False(t, seq.Apply(first, func() { applied = append(applied, first) }))
	assert.False(t, seq.Apply(second, func() { applied = append(applied, second) }))

	assert.Equal(t, []uint64{second}, applied)
}

func TestSharedRunsOneLoopPerKey(t *testing.T) {
	shared := NewShared(context.Background(), nil)
	defer shared.Close()

	var firstCalls, secondCalls int32
	h1, release1 := shared.Acquire("messages/42", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&firstCalls, 1)
		return nil
	})
	h2, release2 := shared.Acquire("messages/42", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&secondCalls, 1)
		return nil
	})

	assert.Same(t, h1, h2)
	assert.Equal(t, 2, shared.Refs("messages/42"))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&firstCalls) == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&secondCalls))

	release1()
	release1()
	assert.Equal(t, 1, shared.Refs("messages/42"))
	select {
	case <-h1.Done():
		t.Fatal("loop stopped while still held")
	default:
	}

	release2()
	assert.Zero(t, shared.Refs("messages/42"))
	select {
	case <-h1.Done():
	case <-time.After(time.Second):
		t.Fatal("loop kept running after last release")
	}
}

func TestSharedTriggerPrefix(t *testing.T) {
	shared := NewShared(context.Background(), nil)
	defer shared.Close()

	var rooms, typing int32
	shared.Acquire("messages/1", time.Hour, func(ctx context.Context) error { atomic.AddInt32(&rooms, 1); return nil })
	shared.Acquire("typing/1", time.Hour, func(ctx context.Context) error { atomic.AddInt32(&typing, 1); return nil })
	require.Eventually(t, func() bool { return atomic.LoadInt32(&rooms) == 1 && atomic.LoadInt32(&typing) == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 1, shared.TriggerPrefix("messages/"))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&rooms) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&typing))

	assert.True(t, shared.Trigger("typing/1"))
	assert.False(t, shared.Trigger("typing/2"))
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "messages", metricName("messages/42"))
	assert.Equal(t, "chatrooms", metricName("chatrooms"))
}
