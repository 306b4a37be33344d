package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/tasktree/internal/clock"
	"github.com/viant/tasktree/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	// MaxRetries is the number of times a nacked message is requeued.
	MaxRetries int
	// DeadLetter keeps messages that exhausted their retries.
	DeadLetter bool
	// InitialCapacity preallocates the backing slice.
	InitialCapacity int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		DeadLetter:      true,
		InitialCapacity: 64,
	}
}

// Message implements messaging.Message for the in-memory queue
type Message[T any] struct {
	payload    T
	queue      *Queue[T]
	retryCount int
	mu         sync.Mutex
	processed  bool
	createdAt  time.Time
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// CreatedAt returns the time the message was published.
func (m *Message[T]) CreatedAt() time.Time {
	return m.createdAt
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return nil
}

// Nack requeues the message until its retries are exhausted
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	if m.retryCount < m.queue.config.MaxRetries {
		m.queue.push(&Message[T]{payload: m.payload, queue: m.queue, retryCount: m.retryCount + 1, createdAt: clock.Now()})
		return nil
	}
	if m.queue.config.DeadLetter {
		m.queue.mu.Lock()
		m.queue.dlq = append(m.queue.dlq, m)
		m.queue.mu.Unlock()
	}
	return nil
}

// Queue is an unbounded in-memory FIFO; Publish never blocks.
type Queue[T any] struct {
	mu       sync.Mutex
	messages []*Message[T]
	dlq      []*Message[T]
	notify   chan struct{}
	config   Config
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.InitialCapacity <= 0 {
		config.InitialCapacity = DefaultConfig().InitialCapacity
	}
	return &Queue[T]{
		messages: make([]*Message[T], 0, config.InitialCapacity),
		notify:   make(chan struct{}, 1),
		config:   config,
	}
}

// Publish appends a new item to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.push(&Message[T]{payload: *t, queue: q, createdAt: clock.Now()})
	return nil
}

func (q *Queue[T]) push(msg *Message[T]) {
	q.mu.Lock()
	q.messages = append(q.messages, msg)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryConsume removes the oldest message without blocking.
func (q *Queue[T]) TryConsume() (*Message[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, false
	}
	msg := q.messages[0]
	q.messages[0] = nil
	q.messages = q.messages[1:]
	if len(q.messages) == 0 {
		q.messages = q.messages[:0:0]
	} else {
		q.signal()
	}
	return msg, true
}

// Consume retrieves the oldest item, waiting until one is published
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		if msg, ok := q.TryConsume(); ok {
			return msg, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// DLQSize returns the number of messages in the dead letter queue
func (q *Queue[T]) DLQSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dlq)
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
