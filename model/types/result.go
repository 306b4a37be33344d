package types

import (
	"fmt"
	"strings"
)

// DoneResult is the outcome reported by a task adapter or returned from a done handler.
type DoneResult int

const (
	DoneSuccess DoneResult = iota
	DoneError
)

func (r DoneResult) String() string {
	if r == DoneSuccess {
		return "success"
	}
	return "error"
}

// DoneWith is the outcome a runtime node reports to its parent. It extends
// DoneResult with cancellation triggered by a parent or by the caller.
type DoneWith int

const (
	WithSuccess DoneWith = iota
	WithError
	WithCancel
)

func (w DoneWith) String() string {
	switch w {
	case WithSuccess:
		return "success"
	case WithError:
		return "error"
	case WithCancel:
		return "cancel"
	}
	return fmt.Sprintf("DoneWith(%d)", int(w))
}

// ToDoneResult mirrors WithSuccess as DoneSuccess, anything else as DoneError.
func ToDoneResult(with DoneWith) DoneResult {
	if with == WithSuccess {
		return DoneSuccess
	}
	return DoneError
}

// ToDoneWith converts a handler result into a node outcome.
func ToDoneWith(result DoneResult) DoneWith {
	if result == DoneSuccess {
		return WithSuccess
	}
	return WithError
}

// ParseDoneResult parses "success" or "error" (case-insensitive).
func ParseDoneResult(text string) (DoneResult, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "success", "ok", "":
		return DoneSuccess, nil
	case "error", "fail", "failure":
		return DoneError, nil
	}
	return DoneError, fmt.Errorf("invalid done result: %q", text)
}

// SetupResult is returned by setup handlers and allows short-circuiting a
// task or group before it starts.
type SetupResult int

const (
	SetupContinue SetupResult = iota
	SetupStopWithSuccess
	SetupStopWithError
)

func (r SetupResult) String() string {
	switch r {
	case SetupContinue:
		return "continue"
	case SetupStopWithSuccess:
		return "stopWithSuccess"
	case SetupStopWithError:
		return "stopWithError"
	}
	return fmt.Sprintf("SetupResult(%d)", int(r))
}

// DoneWith returns the outcome of a stopping setup result. It must not be
// called for SetupContinue.
func (r SetupResult) DoneWith() DoneWith {
	if r == SetupStopWithSuccess {
		return WithSuccess
	}
	return WithError
}
