package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/tasktree/internal/clock"
	"github.com/viant/tasktree/internal/idgen"
	"github.com/viant/tasktree/service/messaging"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Message is a JSON document moved between state folders.
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to the completed folder
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.State = MessageStateCompleted
	return m.queue.settle(context.Background(), m, m.queue.completedURL)
}

// Nack moves the message back to pending for a retry, or to failed once
// retries are exhausted
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	if m.Retries > m.queue.config.MaxRetries {
		m.State = MessageStateFailed
		return m.queue.settle(context.Background(), m, m.queue.failedURL)
	}
	m.State = MessageStatePending
	return m.queue.settle(context.Background(), m, m.queue.pendingURL)
}

// Config holds configuration for filesystem queue
type Config struct {
	// BaseURL is the afs URL holding the state folders, e.g. file:///tmp/q or mem://localhost/q
	BaseURL    string        `json:"baseURL" yaml:"baseURL"`
	MaxRetries int           `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	PollEvery  time.Duration `json:"pollEvery,omitempty" yaml:"pollEvery,omitempty"`
}

// DefaultConfig returns a default queue configuration
func DefaultConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, MaxRetries: 3, PollEvery: 50 * time.Millisecond}
}

// Queue implements a durable messaging.Queue on top of afs. Messages are
// consumed in publication order across restarts.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingURL    string
	processingURL string
	completedURL  string
	failedURL     string
	mu            sync.Mutex
}

// NewQueue creates the state folders and returns the queue
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.PollEvery <= 0 {
		config.PollEvery = DefaultConfig("").PollEvery
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingURL:    url.Join(config.BaseURL, string(MessageStatePending)),
		processingURL: url.Join(config.BaseURL, string(MessageStateProcessing)),
		completedURL:  url.Join(config.BaseURL, string(MessageStateCompleted)),
		failedURL:     url.Join(config.BaseURL, string(MessageStateFailed)),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingURL, q.processingURL, q.completedURL, q.failedURL} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes a new pending message
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	message.name = fmt.Sprintf("%020d-%s.json", now.UnixNano(), message.ID)
	return q.write(ctx, url.Join(q.pendingURL, message.name), message)
}

// Consume waits for the oldest pending message and moves it to processing
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.TryConsume(ctx)
		if err != nil {
			return nil, err
		}
		if message != nil {
			return message, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollEvery):
		}
	}
}

// TryConsume returns the oldest pending message or nil when none is pending
func (q *Queue[T]) TryConsume(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, err := q.list(ctx, q.pendingURL)
	if err != nil || len(pending) == 0 {
		return nil, err
	}
	object := pending[0]
	message, err := q.read(ctx, object.URL())
	if err != nil {
		_ = q.fs.Move(ctx, object.URL(), url.Join(q.failedURL, "invalid-"+object.Name()))
		return nil, err
	}
	message.name = object.Name()
	message.queue = q
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	if err = q.write(ctx, url.Join(q.processingURL, message.name), message); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err = q.fs.Delete(ctx, object.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete pending message: %w", err)
	}
	return message, nil
}

// Size returns the number of pending messages
func (q *Queue[T]) Size(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, err := q.list(ctx, q.pendingURL)
	return len(pending), err
}

func (q *Queue[T]) settle(ctx context.Context, m *Message[T], folderURL string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m.UpdatedAt = clock.Now()
	if err := q.write(ctx, url.Join(folderURL, m.name), m); err != nil {
		return err
	}
	processing := url.Join(q.processingURL, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete processing message: %w", err)
		}
	}
	return nil
}

func (q *Queue[T]) list(ctx context.Context, folderURL string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, folderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folderURL, err)
	}
	var result []storage.Object
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			result = append(result, object)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

func (q *Queue[T]) write(ctx context.Context, URL string, message *Message[T]) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return &message, nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
