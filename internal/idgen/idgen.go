package idgen

import "github.com/google/uuid"

// NewFunc produces identifiers. Override in tests for determinism.
var NewFunc = func() string { return uuid.New().String() }

// New returns a fresh identifier.
func New() string { return NewFunc() }

// Short returns the first segment of a fresh identifier, used for log-friendly
// instance ids.
func Short() string {
	id := New()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
