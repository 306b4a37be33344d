package event

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/viant/afs"
	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/service/messaging"
	"github.com/viant/tasktree/service/messaging/fs"
	"github.com/viant/tasktree/service/messaging/memory"
)

// Service routes typed events through one queue per payload type, with an
// optional catch-all listener receiving every event.
type Service struct {
	publisher         *Publisher[any]
	listener          *Listener[any]
	forward           *atomic.Bool
	typedPublishers   map[reflect.Type]any
	typedListener     map[reflect.Type]stopper
	mux               *sync.RWMutex
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
	log               logger.Logger
}

type stopper interface{ Stop() }

// SetListener replaces the catch-all listener.
func (s *Service) SetListener(handler func(*Event[any])) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[any](s.publisher, handler, s.log)
	s.forward.Store(true)
	s.listener.Start()
}

// Close stops all listeners.
func (s *Service) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
		s.forward.Store(false)
	}
	for key, listener := range s.typedListener {
		listener.Stop()
		delete(s.typedListener, key)
	}
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:     queueVendor,
		forward:         &atomic.Bool{},
		typedPublishers: make(map[reflect.Type]any),
		typedListener:   make(map[reflect.Type]stopper),
		mux:             &sync.RWMutex{},
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(ret)
	}

	switch queueVendor {
	case messaging.FS:
		if ret.fsNewQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires fsNewQueueConfig")
		}
	case messaging.Memory:
		if ret.memNewQueueConfig == nil {
			ret.memNewQueueConfig = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}

	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[any](queue)
	return ret, nil
}

func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.FS:
		return fs.NewQueue[T](afs.New(), s.fsNewQueueConfig(name))
	case messaging.Memory:
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func queueName(key reflect.Type) string {
	for key.Kind() == reflect.Ptr {
		key = key.Elem()
	}
	if key.Name() != "" {
		return key.Name()
	}
	return key.String()
}

// SetListenerOf replaces the listener of events carrying T.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	key := keyOf[T]()
	s.mux.Lock()
	defer s.mux.Unlock()
	if previous, ok := s.typedListener[key]; ok {
		previous.Stop()
	}
	listener := NewListener[T](publisher, handler, s.log)
	s.typedListener[key] = listener
	listener.Start()
	return nil
}

// Listened reports whether events carrying T reach a listener, either the
// catch-all one or one set by SetListenerOf.
func Listened[T any](s *Service) bool {
	if s.forward.Load() {
		return true
	}
	s.mux.RLock()
	defer s.mux.RUnlock()
	_, ok := s.typedListener[keyOf[T]()]
	return ok
}

// Durable reports whether queued events outlive the process, so that other
// processes may consume them.
func (s *Service) Durable() bool {
	return s.queueVendor == messaging.FS
}

// PublisherOf returns a publisher for the provided type
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T]), nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, queueName(key))
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.anyQueue = s.publisher.queue
	publisher.forward = s.forward
	s.typedPublishers[key] = publisher
	return publisher, nil
}
