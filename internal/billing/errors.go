package billing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a batch request rejected before any write.
	ErrValidation = errors.New("billing validation failed")

	// ErrNotBillable is returned when a single trigger or invoice request
	// does not fit the record's current state.
	ErrNotBillable = errors.New("not billable")
)

// ValidationError lists every ID that blocked a batch invoice, per problem.
type ValidationError struct {
	Message                string   `json:"message,omitempty"`
	MilestonesNotFound     []string `json:"milestones_not_found,omitempty"`
	MilestonesNotTriggered []string `json:"milestones_not_triggered,omitempty"`
	TasksNotFound          []string `json:"tasks_not_found,omitempty"`
	TasksAlreadyInvoiced   []string `json:"tasks_already_invoiced,omitempty"`
	TasksNotDone           []string `json:"tasks_not_done,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	add := func(label string, ids []string) {
		if len(ids) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", label, strings.Join(ids, ", ")))
		}
	}
	add("milestones not found", e.MilestonesNotFound)
	add("milestones not triggered", e.MilestonesNotTriggered)
	add("tasks not found", e.TasksNotFound)
	add("tasks already invoiced", e.TasksAlreadyInvoiced)
	add("tasks not done", e.TasksNotDone)
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// HasNotFound reports whether any referenced ID does not exist.
func (e *ValidationError) HasNotFound() bool {
	return len(e.MilestonesNotFound)+len(e.TasksNotFound) > 0
}

func (e *ValidationError) empty() bool {
	return e.Message == "" && !e.HasNotFound() &&
		len(e.MilestonesNotTriggered)+len(e.TasksAlreadyInvoiced)+len(e.TasksNotDone) == 0
}
