package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/deps"
	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/notify"
	"github.com/HendryAvila/agencyops/internal/sequencer"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// NewTask is the input of CreateTask. A nil ProjectID creates an ad-hoc
// task; a nil PhaseID puts the task in the unphased bucket.
type NewTask struct {
	ProjectID      *string
	PhaseID        *string
	Title          string
	Priority       int
	EnergyEstimate *int
	MysteryFactor  string
	AssigneeID     *string
	IsBillable     bool
	BillingAmount  decimal.NullDecimal
}

func (n NewTask) validate() (estimate.MysteryFactor, error) {
	if n.Title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if n.Priority != 0 {
		if err := workflow.ValidatePriority(n.Priority); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if err := validateEnergy(n.EnergyEstimate); err != nil {
		return "", err
	}
	if n.BillingAmount.Valid && !n.BillingAmount.Decimal.IsPositive() {
		return "", fmt.Errorf("%w: billing amount must be positive", ErrInvalidArgument)
	}
	m, err := estimate.ParseMysteryFactor(n.MysteryFactor)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return m, nil
}

func validateEnergy(energy *int) error {
	if energy == nil {
		return nil
	}
	if err := estimate.ValidateEnergy(*energy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// CreateTask appends a task at the end of its container.
func (s *Service) CreateTask(ctx context.Context, in NewTask) (*store.Task, error) {
	mystery, err := in.validate()
	if err != nil {
		return nil, err
	}

	var out *store.Task
	err = s.run(ctx, "create_task", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		if in.ProjectID != nil {
			if _, err := tx.GetProject(ctx, *in.ProjectID); err != nil {
				return err
			}
		}
		t := &store.Task{
			ProjectID:      in.ProjectID,
			PhaseID:        in.PhaseID,
			Title:          in.Title,
			Priority:       in.Priority,
			EnergyEstimate: in.EnergyEstimate,
			MysteryFactor:  mystery,
			AssigneeID:     in.AssigneeID,
			IsBillable:     in.IsBillable,
		}
		t.BillingAmount = in.BillingAmount
		if err := checkPhase(ctx, tx, store.KindProjectPhase, in.ProjectID, in.PhaseID); err != nil {
			return err
		}
		order, err := sequencer.Append(ctx, tx, t.Container())
		if err != nil {
			return err
		}
		t.SortOrder = order
		if err := tx.InsertTask(ctx, t); err != nil {
			return err
		}
		if t.AssigneeID != nil {
			ob.add(notify.TaskAssigned, t.ID, "task assigned", map[string]any{"assignee_id": *t.AssigneeID})
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkPhase verifies that phaseID, when set, belongs to scopeID.
func checkPhase(ctx context.Context, tx *store.Tx, phaseKind store.Kind, scopeID, phaseID *string) error {
	if phaseID == nil {
		return nil
	}
	if scopeID == nil {
		return fmt.Errorf("%w: an ad-hoc task cannot join a phase", sequencer.ErrInvalidContainer)
	}
	parent, err := tx.PhaseParent(ctx, phaseKind, *phaseID)
	if err != nil {
		return err
	}
	if parent != *scopeID {
		return fmt.Errorf("%w: %s %s belongs to %s, not %s", sequencer.ErrInvalidContainer, phaseKind.Entity(), *phaseID, parent, *scopeID)
	}
	return nil
}

// GetTask loads one task with its time spent.
func (s *Service) GetTask(ctx context.Context, id string) (*store.Task, error) {
	var out *store.Task
	err := s.run(ctx, "get_task", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		t, err := tx.GetTask(ctx, id)
		out = t
		return err
	})
	return out, err
}

// ListTasks returns the tasks matching f in container order.
func (s *Service) ListTasks(ctx context.Context, f store.TaskFilter) ([]*store.Task, error) {
	var out []*store.Task
	err := s.run(ctx, "list_tasks", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		tasks, err := tx.ListTasks(ctx, f)
		out = tasks
		return err
	})
	return out, err
}

// UpdateTask edits the non-status fields of a task.
func (s *Service) UpdateTask(ctx context.Context, id string, u store.TaskUpdate) (*store.Task, error) {
	if u.Title != nil && *u.Title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidArgument)
	}
	if u.Priority != nil {
		if err := workflow.ValidatePriority(*u.Priority); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if u.EnergyEstimate != nil {
		if err := validateEnergy(*u.EnergyEstimate); err != nil {
			return nil, err
		}
	}

	var out *store.Task
	err := s.run(ctx, "update_task", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		before, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		t, err := tx.UpdateTask(ctx, id, u)
		if err != nil {
			return err
		}
		if t.AssigneeID != nil && (before.AssigneeID == nil || *before.AssigneeID != *t.AssigneeID) {
			ob.add(notify.TaskAssigned, t.ID, "task assigned", map[string]any{"assignee_id": *t.AssigneeID})
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTask removes a task, closes the gap it leaves and releases the
// tasks it was blocking.
func (s *Service) DeleteTask(ctx context.Context, id string) ([]deps.StatusChange, error) {
	var released []deps.StatusChange
	err := s.run(ctx, "delete_task", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		if _, err := sequencer.Remove(ctx, tx, store.KindTask, id); err != nil {
			return err
		}
		dependents, err := tx.Dependents(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, id); err != nil {
			return err
		}
		released, err = s.deps.Release(ctx, tx, dependents)
		if err != nil {
			return err
		}
		ob.statusChanges("blocker deleted", released...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// MoveTask places a task at targetOrder inside targetPhaseID of its own
// project (nil: the unphased bucket). The order is clamped.
func (s *Service) MoveTask(ctx context.Context, taskID string, targetPhaseID *string, targetOrder int) (*store.Task, error) {
	var out *store.Task
	err := s.run(ctx, "move_task", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := sequencer.Move(ctx, tx, store.KindTask, taskID, targetPhaseID, targetOrder); err != nil {
			return err
		}
		t, err := tx.GetTask(ctx, taskID)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReorderTasks rewrites the order of one task container. ids must list
// every task of the container exactly once.
func (s *Service) ReorderTasks(ctx context.Context, projectID, phaseID *string, ids []string) error {
	return s.run(ctx, "reorder_tasks", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if projectID != nil {
			if _, err := tx.GetProject(ctx, *projectID); err != nil {
				return err
			}
		}
		if err := checkPhase(ctx, tx, store.KindProjectPhase, projectID, phaseID); err != nil {
			return err
		}
		c := store.Container{Kind: store.KindTask, ScopeID: projectID, PhaseID: phaseID}
		return sequencer.ReorderAll(ctx, tx, c, ids)
	})
}

// LogTime records minutes spent on a task by the context's actor.
func (s *Service) LogTime(ctx context.Context, taskID string, minutes int) (*store.TimeEntry, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: minutes must be positive, got %d", ErrInvalidArgument, minutes)
	}
	var out *store.TimeEntry
	err := s.run(ctx, "log_time", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		e := &store.TimeEntry{TaskID: taskID, UserID: ob.actor, Minutes: minutes}
		if err := tx.InsertTimeEntry(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Status ──────────────────────────────────────────────────────────────────

// TransitionResult reports a task status change and its side effects.
type TransitionResult struct {
	Task             *store.Task         `json:"task"`
	From             workflow.TaskStatus `json:"from"`
	NoOp             bool                `json:"no_op,omitempty"`
	BillingTriggered bool                `json:"billing_triggered,omitempty"`
	Released         []deps.StatusChange `json:"released,omitempty"`
	Reblocked        []deps.StatusChange `json:"reblocked,omitempty"`
}

// TransitionTaskStatus moves a task through the status table. Leaving
// blocked is refused while a blocker is not done. Reaching done triggers
// billing for billable tasks and releases dependents; reopening a done
// task blocks its dependents again.
func (s *Service) TransitionTaskStatus(ctx context.Context, taskID string, target workflow.TaskStatus) (*TransitionResult, error) {
	var out *TransitionResult
	err := s.run(ctx, "transition_task_status", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		out, err = s.transitionTask(ctx, tx, ob, t, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) planTransition(ctx context.Context, tx *store.Tx, t *store.Task, target workflow.TaskStatus) (workflow.TaskTransition, error) {
	active, err := s.deps.ActiveBlockers(ctx, tx, t.ID)
	if err != nil {
		return workflow.TaskTransition{}, err
	}
	tr, err := workflow.RequestTransition(workflow.TaskState{
		Status:         t.Status,
		Started:        t.StartedAt != nil,
		ActiveBlockers: active,
	}, target)
	if err != nil {
		return workflow.TaskTransition{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return tr, nil
}

func (s *Service) transitionTask(ctx context.Context, tx *store.Tx, ob *outbox, t *store.Task, target workflow.TaskStatus) (*TransitionResult, error) {
	tr, err := s.planTransition(ctx, tx, t, target)
	if err != nil {
		return nil, err
	}
	res := &TransitionResult{Task: t, From: t.Status, NoOp: tr.NoOp}
	if tr.NoOp {
		return res, nil
	}

	if err := tx.ApplyTaskTransition(ctx, t.ID, tr, ob.stamp); err != nil {
		return nil, err
	}
	ob.add(notify.TaskStatusChanged, t.ID, "task moved to "+string(tr.To), map[string]any{
		"from": string(tr.From), "to": string(tr.To),
	})

	if tr.Completed() {
		if billing.PlanTaskCompletion(&t.Record, t.IsBillable, ob.actor, ob.stamp) {
			if err := tx.SaveTaskBilling(ctx, t); err != nil {
				return nil, err
			}
			res.BillingTriggered = true
			ob.add(notify.BillingTriggered, t.ID, "task billing triggered", map[string]any{"amount": t.BillingAmount.Decimal.String()})
		}
		res.Released, err = s.deps.ReleaseDependents(ctx, tx, t.ID)
		if err != nil {
			return nil, err
		}
		ob.statusChanges("blocker done", res.Released...)
	}
	if tr.From == workflow.TaskDone {
		res.Reblocked, err = s.deps.ReblockDependents(ctx, tx, t.ID)
		if err != nil {
			return nil, err
		}
		ob.statusChanges("blocker reopened", res.Reblocked...)
	}

	res.Task, err = tx.GetTask(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BulkTransitionError lists every task that kept a bulk status change from
// applying. Nothing was written.
type BulkTransitionError struct {
	Target   workflow.TaskStatus `json:"target"`
	NotFound []string            `json:"not_found,omitempty"`
	Invalid  []string            `json:"invalid,omitempty"`
}

func (e *BulkTransitionError) Error() string {
	msg := fmt.Sprintf("bulk transition to %s rejected", e.Target)
	if len(e.NotFound) > 0 {
		msg += fmt.Sprintf(": tasks not found: %v", e.NotFound)
	}
	if len(e.Invalid) > 0 {
		msg += fmt.Sprintf(": invalid transition: %v", e.Invalid)
	}
	return msg
}

// Unwrap exposes ErrValidation plus ErrNotFound and ErrInvalidTransition
// for the categories that are present.
func (e *BulkTransitionError) Unwrap() []error {
	errs := []error{billing.ErrValidation}
	if len(e.NotFound) > 0 {
		errs = append(errs, store.ErrNotFound)
	}
	if len(e.Invalid) > 0 {
		errs = append(errs, workflow.ErrInvalidTransition)
	}
	return errs
}

// BulkTransitionTasks moves every task in ids to target, or none of them.
// Each transition is checked against the task's state before the batch;
// any failure yields a *BulkTransitionError listing all offenders. A member
// refused only after an earlier member reblocked it is reported alone.
func (s *Service) BulkTransitionTasks(ctx context.Context, ids []string, target workflow.TaskStatus) ([]*TransitionResult, error) {
	ids = billing.Batch{TaskIDs: ids}.Normalize().TaskIDs
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one task ID is required", ErrInvalidArgument)
	}
	if err := workflow.ValidateTaskStatus(target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var out []*TransitionResult
	err := s.run(ctx, "bulk_transition_tasks", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		found, err := tx.TasksByIDs(ctx, ids)
		if err != nil {
			return err
		}
		berr := &BulkTransitionError{Target: target}
		for _, id := range ids {
			t, ok := found[id]
			if !ok {
				berr.NotFound = append(berr.NotFound, id)
				continue
			}
			if _, err := s.planTransition(ctx, tx, t, target); err != nil {
				berr.Invalid = append(berr.Invalid, id)
			}
		}
		if len(berr.NotFound)+len(berr.Invalid) > 0 {
			return berr
		}

		out = make([]*TransitionResult, 0, len(ids))
		for _, id := range ids {
			// Earlier members may have released or reblocked this one.
			t, err := tx.GetTask(ctx, id)
			if err != nil {
				return err
			}
			res, err := s.transitionTask(ctx, tx, ob, t, target)
			if errors.Is(err, workflow.ErrInvalidTransition) {
				return &BulkTransitionError{Target: target, Invalid: []string{id}}
			}
			if err != nil {
				return err
			}
			out = append(out, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
