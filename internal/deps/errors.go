package deps

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidEdge   = errors.New("invalid dependency")
	ErrCycleDetected = errors.New("cycle detected")
)

// EdgeError describes a rejected dependency edit.
type EdgeError struct {
	Kind      error
	TaskID    string
	BlockerID string
	Msg       string
}

func (e *EdgeError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s blocked by %s", e.Kind, e.TaskID, e.BlockerID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *EdgeError) Unwrap() error { return e.Kind }

func invalidEdge(taskID, blockerID, format string, args ...any) error {
	return &EdgeError{Kind: ErrInvalidEdge, TaskID: taskID, BlockerID: blockerID, Msg: fmt.Sprintf(format, args...)}
}

// cycleError reports the blocker chain that already leads back to the task.
func cycleError(taskID, blockerID string, path []string) error {
	msg := fmt.Sprintf("%s already depends on %s", blockerID, taskID)
	if len(path) > 0 {
		msg += ": " + strings.Join(path, " -> ")
	}
	return &EdgeError{Kind: ErrCycleDetected, TaskID: taskID, BlockerID: blockerID, Msg: msg}
}
