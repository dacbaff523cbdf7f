package workflow

import "fmt"

// taskTransitions is the task state table. Self transitions are handled
// before the lookup.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskNotStarted: {TaskInProgress, TaskBlocked, TaskAbandoned},
	TaskInProgress: {TaskReview, TaskNotStarted, TaskBlocked, TaskAbandoned},
	TaskReview:     {TaskDone, TaskInProgress, TaskAbandoned},
	TaskDone:       {TaskInProgress},
	TaskBlocked:    {TaskNotStarted, TaskInProgress, TaskAbandoned},
	TaskAbandoned:  {TaskNotStarted},
}

// ValidNextTaskStatuses returns the statuses reachable from s through the
// table, in table order.
func ValidNextTaskStatuses(s TaskStatus) []TaskStatus {
	next := taskTransitions[s]
	out := make([]TaskStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTask reports whether the table allows from -> to.
func CanTransitionTask(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	for _, s := range taskTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TaskState is what the state machine needs to know about a task.
type TaskState struct {
	Status TaskStatus
	// Started is true once the task has entered in_progress at least once.
	Started bool
	// ActiveBlockers counts blockers that are not done.
	ActiveBlockers int
}

// TaskTransition is the outcome of an accepted request. The caller applies
// it inside its transaction.
type TaskTransition struct {
	From TaskStatus
	To   TaskStatus
	// NoOp is set for self transitions; nothing should be written.
	NoOp bool
	// StampStarted asks the caller to set started_at.
	StampStarted bool
	// StampCompleted asks the caller to set completed_at.
	StampCompleted bool
	// ClearCompleted asks the caller to clear completed_at (reopen).
	ClearCompleted bool
}

// Completed reports whether the transition enters done.
func (t TaskTransition) Completed() bool {
	return !t.NoOp && t.To == TaskDone
}

// RequestTransition validates a user-requested task status change.
// Leaving blocked for a working state is refused while active blockers
// remain; abandoning is always allowed.
func RequestTransition(cur TaskState, to TaskStatus) (TaskTransition, error) {
	if err := ValidateTaskStatus(to); err != nil {
		return TaskTransition{}, &TransitionError{Entity: "task", From: string(cur.Status), To: string(to), Reason: err.Error()}
	}
	if cur.Status == to {
		return TaskTransition{From: cur.Status, To: to, NoOp: true}, nil
	}
	if !CanTransitionTask(cur.Status, to) {
		return TaskTransition{}, &TransitionError{Entity: "task", From: string(cur.Status), To: string(to)}
	}
	if cur.Status == TaskBlocked && to != TaskAbandoned && cur.ActiveBlockers > 0 {
		return TaskTransition{}, &TransitionError{
			Entity: "task",
			From:   string(cur.Status),
			To:     string(to),
			Reason: fmt.Sprintf("%d blocker(s) not done", cur.ActiveBlockers),
		}
	}

	tr := TaskTransition{From: cur.Status, To: to}
	switch {
	case to == TaskInProgress && !cur.Started:
		tr.StampStarted = true
	case to == TaskDone:
		tr.StampCompleted = true
	}
	if cur.Status == TaskDone {
		tr.ClearCompleted = true
	}
	return tr, nil
}

// ForceBlock moves a task to blocked regardless of the table. It reports
// whether anything changed; the returned status is the one to remember for
// a later restore.
func ForceBlock(cur TaskStatus) (prior TaskStatus, changed bool) {
	if cur == TaskBlocked {
		return "", false
	}
	return cur, true
}

// ForceUnblock returns the status a blocked task lands on once no active
// blocker remains. Tasks that are not blocked are left alone.
func ForceUnblock(cur TaskStatus, prior TaskStatus, policy UnblockPolicy) (TaskStatus, bool) {
	if cur != TaskBlocked {
		return cur, false
	}
	if policy == UnblockRestore {
		switch prior {
		case TaskNotStarted, TaskInProgress, TaskReview:
			return prior, true
		}
	}
	return TaskNotStarted, true
}
