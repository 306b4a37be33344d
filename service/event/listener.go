package event

import (
	"context"
	"time"

	"github.com/viant/tasktree/logger"
)

// retryDelay throttles consumption after a queue error.
const retryDelay = 100 * time.Millisecond

type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	log       logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]), log logger.Logger) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = logger.Nop()
	}
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Stop stops consuming and waits for the handler in progress, if any.
func (l *Listener[T]) Stop() {
	l.cancel()
	<-l.done
}

func (l *Listener[T]) Start() {
	go func() {
		defer close(l.done)
		for {
			event, err := l.publisher.Consume(l.ctx)
			if l.ctx.Err() != nil {
				return
			}
			if err != nil {
				l.log.Warn("failed to consume event", "error", err)
				select {
				case <-l.ctx.Done():
					return
				case <-time.After(retryDelay):
				}
				continue
			}
			if event != nil {
				l.handler(event)
			}
		}
	}()
}
