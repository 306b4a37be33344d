package event

import (
	"time"

	"github.com/viant/tasktree/internal/clock"
)

// Event types published for runtime nodes.
const (
	TypeStarted = "started"
	TypeDone    = "done"
)

// Context identifies the node an event is about.
type Context struct {
	RunID       string `json:"runID"`
	Path        string `json:"path"`
	Name        string `json:"name,omitempty"`
	Kind        string `json:"kind"`
	EventType   string `json:"eventType"`
	Iteration   int    `json:"iteration"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
