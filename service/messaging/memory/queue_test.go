package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	ID    string
	Count int
}

func TestQueue_FIFO(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		require.NoError(t, queue.Publish(ctx, &testPayload{Count: i}))
	}
	assert.Equal(t, 200, queue.Size())
	for i := 0; i < 200; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, message.T().Count)
		require.NoError(t, message.Ack())
		assert.Error(t, message.Ack(), "double ack")
	}
	_, ok := queue.TryConsume()
	assert.False(t, ok)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ConsumeWaits(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = queue.Publish(context.Background(), &testPayload{ID: "late"})
	}()
	message, err := queue.Consume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", message.T().ID)

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	assert.Error(t, queue.Publish(cancelled, &testPayload{}))
}

func TestQueue_Nack(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	queue := NewQueue[testPayload](config)
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "retry"}))

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, "retry", message.T().ID)
		require.NoError(t, message.Nack(nil))
	}
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueue_Concurrency(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	producers, perProducer := 8, 50

	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)
	for i := 0; i < 4; i++ {
		go func() {
			for {
				message, err := queue.Consume(ctx)
				if err != nil {
					return
				}
				_ = message.Ack()
				consumed.Done()
			}
		}()
	}
	for p := 0; p < producers; p++ {
		go func(p int) {
			for i := 0; i < perProducer; i++ {
				_ = queue.Publish(ctx, &testPayload{Count: p*perProducer + i})
			}
		}(p)
	}
	consumed.Wait()
	assert.Equal(t, 0, queue.Size())
}
