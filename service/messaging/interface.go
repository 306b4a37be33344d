package messaging

import (
	"context"
)

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// Memory keeps messages in process.
	Memory Vendor = "memory"
	// FS persists messages as JSON documents under an afs URL.
	FS Vendor = "fs"
)

// Queue represents an abstract FIFO queue for any payload type
type Queue[T any] interface {
	// Publish appends a message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves the oldest message, blocking until one is available
	// or ctx is done
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
