// Package workflow holds the task and project status state machines.
//
// Transitions requested by users go through RequestTransition and the
// tables below. The dependency manager uses ForceBlock and ForceUnblock,
// which are a separate path and never consult the tables.
package workflow

import (
	"fmt"
	"strings"
)

// --- Task status enum ---

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
	TaskAbandoned  TaskStatus = "abandoned"
)

// TaskStatuses lists every task status in display order.
var TaskStatuses = []TaskStatus{
	TaskNotStarted, TaskInProgress, TaskReview, TaskDone, TaskBlocked, TaskAbandoned,
}

var taskLabels = map[TaskStatus]string{
	TaskNotStarted: "Not Started",
	TaskInProgress: "In Progress",
	TaskReview:     "Review",
	TaskDone:       "Done",
	TaskBlocked:    "Blocked",
	TaskAbandoned:  "Abandoned",
}

// ValidateTaskStatus returns an error if s is not a known task status.
func ValidateTaskStatus(s TaskStatus) error {
	if _, ok := taskLabels[s]; !ok {
		return fmt.Errorf("invalid task status %q: must be one of: %s", s, joinStatuses(TaskStatuses))
	}
	return nil
}

// Label returns the human label for s.
func (s TaskStatus) Label() string {
	if l, ok := taskLabels[s]; ok {
		return l
	}
	return string(s)
}

// --- Project status enum ---

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectQuote      ProjectStatus = "quote"
	ProjectQueue      ProjectStatus = "queue"
	ProjectReady      ProjectStatus = "ready"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectReview     ProjectStatus = "review"
	ProjectDone       ProjectStatus = "done"
	ProjectSuspended  ProjectStatus = "suspended"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// ProjectStatuses lists every project status in display order.
var ProjectStatuses = []ProjectStatus{
	ProjectQuote, ProjectQueue, ProjectReady, ProjectInProgress,
	ProjectReview, ProjectDone, ProjectSuspended, ProjectCancelled,
}

var projectLabels = map[ProjectStatus]string{
	ProjectQuote:      "Quote",
	ProjectQueue:      "Queue",
	ProjectReady:      "Ready",
	ProjectInProgress: "In Progress",
	ProjectReview:     "Review",
	ProjectDone:       "Done",
	ProjectSuspended:  "Suspended",
	ProjectCancelled:  "Cancelled",
}

// ValidateProjectStatus returns an error if s is not a known project status.
func ValidateProjectStatus(s ProjectStatus) error {
	if _, ok := projectLabels[s]; !ok {
		return fmt.Errorf("invalid project status %q: must be one of: %s", s, joinStatuses(ProjectStatuses))
	}
	return nil
}

// Label returns the human label for s.
func (s ProjectStatus) Label() string {
	if l, ok := projectLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTaskVisibleToAssignee reports whether tasks of a project in status s
// show up on an assignee's board. Tasks without a project are always
// visible; pass an empty status for them.
func IsTaskVisibleToAssignee(s ProjectStatus) bool {
	switch s {
	case "", ProjectReady, ProjectInProgress, ProjectReview, ProjectDone:
		return true
	default:
		return false
	}
}

// --- Priority ---

var priorityLabels = map[int]string{
	1: "Critical",
	2: "High",
	3: "Medium",
	4: "Low",
	5: "Trivial",
}

// DefaultPriority is assigned to tasks created without one.
const DefaultPriority = 3

// PriorityLabel returns the label for a 1-5 priority.
func PriorityLabel(p int) string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return "Unknown"
}

// ValidatePriority rejects priorities outside 1..5.
func ValidatePriority(p int) error {
	if _, ok := priorityLabels[p]; !ok {
		return fmt.Errorf("invalid priority %d: must be between 1 and 5", p)
	}
	return nil
}

// --- Unblock policy ---

// UnblockPolicy decides where a task lands when its last active blocker
// goes away.
type UnblockPolicy string

const (
	// UnblockReset always lands on not_started.
	UnblockReset UnblockPolicy = "reset"
	// UnblockRestore lands on the status the task had before it was
	// force-blocked, falling back to not_started.
	UnblockRestore UnblockPolicy = "restore"
)

// ValidateUnblockPolicy returns an error for unknown policies.
func ValidateUnblockPolicy(p UnblockPolicy) error {
	switch p {
	case UnblockReset, UnblockRestore:
		return nil
	default:
		return fmt.Errorf("invalid unblock policy %q: must be one of: reset, restore", p)
	}
}

func joinStatuses[S ~string](ss []S) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
