package event

import (
	"context"
	"time"

	"github.com/viant/tasktree/internal/clock"
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/runtime/execution"
)

// Node is the payload of node lifecycle events.
type Node struct {
	Result string `json:"result,omitempty"`
}

// Observer publishes node lifecycle notifications as Node events. It is
// driven by a single run loop. With in-memory queues, events are only
// published while a listener consumes them.
type Observer struct {
	ctx       context.Context
	service   *Service
	publisher *Publisher[Node]
	log       logger.Logger
	started   map[string]time.Time
}

// NewObserver returns an execution observer publishing through s.
func NewObserver(ctx context.Context, s *Service) (*Observer, error) {
	publisher, err := PublisherOf[Node](s)
	if err != nil {
		return nil, err
	}
	return &Observer{ctx: ctx, service: s, publisher: publisher, log: s.log, started: map[string]time.Time{}}, nil
}

func (o *Observer) NodeStarted(info execution.NodeInfo) {
	o.started[info.Path] = clock.Now()
	o.publish(contextOf(info, TypeStarted), Node{})
}

func (o *Observer) NodeDone(info execution.NodeInfo, with types.DoneWith) {
	eventContext := contextOf(info, TypeDone)
	if startedAt, ok := o.started[info.Path]; ok {
		eventContext.TimeTakenMs = int(clock.Since(startedAt).Milliseconds())
		delete(o.started, info.Path)
	}
	o.publish(eventContext, Node{Result: with.String()})
}

func (o *Observer) publish(eventContext *Context, node Node) {
	if !o.service.Durable() && !Listened[Node](o.service) {
		return
	}
	if err := o.publisher.Publish(o.ctx, NewEvent(eventContext, node)); err != nil {
		o.log.Warn("failed to publish event", "path", eventContext.Path, "type", eventContext.EventType, "error", err)
	}
}

func contextOf(info execution.NodeInfo, eventType string) *Context {
	return &Context{
		RunID:     info.RunID,
		Path:      info.Path,
		Name:      info.Name,
		Kind:      string(info.Kind),
		EventType: eventType,
		Iteration: info.Iteration,
	}
}
