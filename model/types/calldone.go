package types

import "strings"

// CallDone is a set of outcomes for which a done handler is invoked.
type CallDone uint8

const (
	CallDoneOnSuccess CallDone = 1 << iota
	CallDoneOnError
	CallDoneOnCancel

	CallDoneNever  CallDone = 0
	CallDoneAlways          = CallDoneOnSuccess | CallDoneOnError | CallDoneOnCancel
)

// Matches reports whether the done handler should run for the given outcome.
func (c CallDone) Matches(with DoneWith) bool {
	switch with {
	case WithSuccess:
		return c&CallDoneOnSuccess != 0
	case WithError:
		return c&CallDoneOnError != 0
	case WithCancel:
		return c&CallDoneOnCancel != 0
	}
	return false
}

// Has reports whether all flags of other are set.
func (c CallDone) Has(other CallDone) bool {
	return c&other == other
}

func (c CallDone) String() string {
	switch c {
	case CallDoneNever:
		return "never"
	case CallDoneAlways:
		return "always"
	}
	var parts []string
	if c&CallDoneOnSuccess != 0 {
		parts = append(parts, "onSuccess")
	}
	if c&CallDoneOnError != 0 {
		parts = append(parts, "onError")
	}
	if c&CallDoneOnCancel != 0 {
		parts = append(parts, "onCancel")
	}
	return strings.Join(parts, "|")
}
