package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/azrulhaziq/campaign-gateway/pkg/redis"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T, config QueueConfig) (*Queue, redis.RedisAdapter) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	adapter := redis.NewRedisAdapterFromClient(client, "test:")
	q, err := NewQueue(adapter, config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Stop(5 * time.Second) })
	return q, adapter
}

func TestQueue_PublishAndConsume(t *testing.T) {
	q, _ := setupQueue(t, QueueConfig{
		Name:          "wa:receipts",
		ConsumerGroup: "receipts",
		ConsumerName:  "worker-1",
		PollInterval:  20 * time.Millisecond,
	})

	var mu sync.Mutex
	var received []*Message
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
		return nil
	}))

	_, err := q.PublishJSON(context.Background(), map[string]interface{}{
		"recipient_id": 42,
		"type":         "delivered",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(received[0].Data, &payload))
	assert.Equal(t, float64(42), payload["recipient_id"])
	assert.Equal(t, "delivered", payload["type"])

	// Acked on success: nothing stays pending.
	require.Eventually(t, func() bool {
		stats, err := q.GetStats()
		return err == nil && stats.PendingMessages == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestQueue_FailedHandlerStaysPending(t *testing.T) {
	q, _ := setupQueue(t, QueueConfig{
		Name:          "wa:receipts",
		ConsumerGroup: "receipts",
		ConsumerName:  "worker-1",
		PollInterval:  20 * time.Millisecond,
	})

	var mu sync.Mutex
	attempts := 0
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("handler boom")
	}))

	_, err := q.Publish(context.Background(), []byte(`{"recipient_id":1}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 1
	}, 3*time.Second, 20*time.Millisecond)

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingMessages)
}

func TestQueue_DeadLetterMove(t *testing.T) {
	q, adapter := setupQueue(t, QueueConfig{
		Name:          "wa:receipts",
		ConsumerGroup: "receipts",
		ConsumerName:  "worker-1",
		MaxRetries:    2,
		EnableDLQ:     true,
	})

	q.moveToDLQ(&Message{ID: "1-0", Data: []byte(`{"recipient_id":1}`), Attempts: 2})

	n, err := adapter.XLen("wa:receipts:dlq")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueue_RequiresName(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewQueue(redis.NewRedisAdapterFromClient(client, ""), QueueConfig{})
	assert.Error(t, err)
}

func TestQueue_StopIsIdempotentWithoutConsumer(t *testing.T) {
	q, _ := setupQueue(t, QueueConfig{Name: "wa:receipts"})
	assert.NoError(t, q.Stop(time.Second))
}
