// Package deps maintains blocked_by edges between tasks of one project and
// keeps the blocked status consistent with them.
//
// The graph is rebuilt from the store for every edit, scoped to the task's
// project, so cycle checks never scan other projects.
package deps

import (
	"context"
	"fmt"

	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// Tx is the slice of the store transaction the manager needs.
type Tx interface {
	TaskRef(ctx context.Context, id string) (store.TaskRef, error)
	ScopeTaskIDs(ctx context.Context, projectID *string) ([]string, error)
	ScopeEdges(ctx context.Context, projectID *string) ([]store.Edge, error)
	InsertEdge(ctx context.Context, blockerID, blockedID string) (bool, error)
	DeleteEdge(ctx context.Context, blockerID, blockedID string) (bool, error)
	ActiveBlockers(ctx context.Context, taskID string) (int, error)
	Dependents(ctx context.Context, blockerID string) ([]store.TaskRef, error)
	SetTaskStatus(ctx context.Context, id string, status workflow.TaskStatus, prior *workflow.TaskStatus) error
}

var _ Tx = (*store.Tx)(nil)

// StatusChange records a forced status flip made by the manager.
type StatusChange struct {
	TaskID string              `json:"task_id"`
	From   workflow.TaskStatus `json:"from"`
	To     workflow.TaskStatus `json:"to"`
}

// Result describes what an edge edit changed.
type Result struct {
	// Changed is false for a duplicate add or the removal of a missing edge.
	Changed bool          `json:"changed"`
	Status  *StatusChange `json:"status_change,omitempty"`
}

// Manager applies dependency edits on a caller-owned transaction.
type Manager struct {
	policy workflow.UnblockPolicy
}

// NewManager returns a Manager that unblocks tasks according to policy.
func NewManager(policy workflow.UnblockPolicy) *Manager {
	if policy == "" {
		policy = workflow.UnblockReset
	}
	return &Manager{policy: policy}
}

// Policy returns the unblock policy in effect.
func (m *Manager) Policy() workflow.UnblockPolicy { return m.policy }

// Add records that taskID is blocked by blockerID. A duplicate edge is
// accepted. When the blocker is not done the task is forced to blocked.
func (m *Manager) Add(ctx context.Context, tx Tx, taskID, blockerID string) (Result, error) {
	if taskID == blockerID {
		return Result{}, invalidEdge(taskID, blockerID, "a task cannot block itself")
	}
	task, err := tx.TaskRef(ctx, taskID)
	if err != nil {
		return Result{}, err
	}
	blocker, err := tx.TaskRef(ctx, blockerID)
	if err != nil {
		return Result{}, err
	}
	if !sameScope(task.ProjectID, blocker.ProjectID) {
		return Result{}, invalidEdge(taskID, blockerID, "tasks belong to different projects")
	}

	ids, err := tx.ScopeTaskIDs(ctx, task.ProjectID)
	if err != nil {
		return Result{}, err
	}
	edges, err := tx.ScopeEdges(ctx, task.ProjectID)
	if err != nil {
		return Result{}, err
	}
	if path, ok := newGraph(ids, edges).dependsOn(blockerID, taskID); ok {
		return Result{}, cycleError(taskID, blockerID, path)
	}

	created, err := tx.InsertEdge(ctx, blockerID, taskID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Changed: created}

	if blocker.Status != workflow.TaskDone {
		change, err := m.block(ctx, tx, task)
		if err != nil {
			return Result{}, err
		}
		res.Status = change
	}
	return res, nil
}

// Remove deletes the edge. A missing edge is accepted. A blocked task with
// no remaining active blocker is released according to the policy.
func (m *Manager) Remove(ctx context.Context, tx Tx, taskID, blockerID string) (Result, error) {
	task, err := tx.TaskRef(ctx, taskID)
	if err != nil {
		return Result{}, err
	}
	removed, err := tx.DeleteEdge(ctx, blockerID, taskID)
	if err != nil {
		return Result{}, err
	}
	change, err := m.release(ctx, tx, task)
	if err != nil {
		return Result{}, err
	}
	return Result{Changed: removed, Status: change}, nil
}

// ReleaseDependents unblocks every task waiting on blockerID that has no
// other active blocker. Call it after blockerID reached done.
func (m *Manager) ReleaseDependents(ctx context.Context, tx Tx, blockerID string) ([]StatusChange, error) {
	dependents, err := tx.Dependents(ctx, blockerID)
	if err != nil {
		return nil, err
	}
	return m.Release(ctx, tx, dependents)
}

// Release re-evaluates tasks whose blocker went away. Deleting a task
// cascades its edges, so callers read its dependents first, delete, then
// release them.
func (m *Manager) Release(ctx context.Context, tx Tx, tasks []store.TaskRef) ([]StatusChange, error) {
	var out []StatusChange
	for _, t := range tasks {
		change, err := m.release(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		if change != nil {
			out = append(out, *change)
		}
	}
	return out, nil
}

// ReblockDependents forces dependents that are still in play back to
// blocked. Call it after blockerID left done.
func (m *Manager) ReblockDependents(ctx context.Context, tx Tx, blockerID string) ([]StatusChange, error) {
	dependents, err := tx.Dependents(ctx, blockerID)
	if err != nil {
		return nil, err
	}
	var out []StatusChange
	for _, d := range dependents {
		switch d.Status {
		case workflow.TaskBlocked, workflow.TaskDone, workflow.TaskAbandoned:
			continue
		}
		change, err := m.block(ctx, tx, d)
		if err != nil {
			return nil, err
		}
		if change != nil {
			out = append(out, *change)
		}
	}
	return out, nil
}

// ActiveBlockers counts the blockers of taskID that are not done.
func (m *Manager) ActiveBlockers(ctx context.Context, tx Tx, taskID string) (int, error) {
	return tx.ActiveBlockers(ctx, taskID)
}

func (m *Manager) block(ctx context.Context, tx Tx, task store.TaskRef) (*StatusChange, error) {
	prior, changed := workflow.ForceBlock(task.Status)
	if !changed {
		return nil, nil
	}
	if err := tx.SetTaskStatus(ctx, task.ID, workflow.TaskBlocked, &prior); err != nil {
		return nil, fmt.Errorf("block %s: %w", task.ID, err)
	}
	return &StatusChange{TaskID: task.ID, From: task.Status, To: workflow.TaskBlocked}, nil
}

func (m *Manager) release(ctx context.Context, tx Tx, task store.TaskRef) (*StatusChange, error) {
	if task.Status != workflow.TaskBlocked {
		return nil, nil
	}
	active, err := tx.ActiveBlockers(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, nil
	}
	var prior workflow.TaskStatus
	if task.StatusBeforeBlock != nil {
		prior = *task.StatusBeforeBlock
	}
	next, changed := workflow.ForceUnblock(task.Status, prior, m.policy)
	if !changed {
		return nil, nil
	}
	if err := tx.SetTaskStatus(ctx, task.ID, next, nil); err != nil {
		return nil, fmt.Errorf("unblock %s: %w", task.ID, err)
	}
	return &StatusChange{TaskID: task.ID, From: task.Status, To: next}, nil
}

func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
