package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is the kind of every refused status change.
var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError describes a refused status change.
type TransitionError struct {
	Entity string // "task" or "project"
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s %s -> %s", ErrInvalidTransition, e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
