package service

import (
	"context"

	"github.com/HendryAvila/agencyops/internal/deps"
	"github.com/HendryAvila/agencyops/internal/store"
)

// AddDependency records that taskID is blocked by blockerID. The task is
// forced to blocked when the blocker is not done.
func (s *Service) AddDependency(ctx context.Context, taskID, blockerID string) (deps.Result, error) {
	var out deps.Result
	err := s.run(ctx, "add_dependency", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		res, err := s.deps.Add(ctx, tx, taskID, blockerID)
		if err != nil {
			return err
		}
		if res.Status != nil {
			ob.statusChanges("dependency added", *res.Status)
		}
		out = res
		return nil
	})
	return out, err
}

// RemoveDependency drops the edge and releases the task when nothing else
// blocks it.
func (s *Service) RemoveDependency(ctx context.Context, taskID, blockerID string) (deps.Result, error) {
	var out deps.Result
	err := s.run(ctx, "remove_dependency", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		res, err := s.deps.Remove(ctx, tx, taskID, blockerID)
		if err != nil {
			return err
		}
		if res.Status != nil {
			ob.statusChanges("dependency removed", *res.Status)
		}
		out = res
		return nil
	})
	return out, err
}

// Dependencies lists the blockers and dependents of a task.
func (s *Service) Dependencies(ctx context.Context, taskID string) (blockers, dependents []store.TaskRef, err error) {
	err = s.run(ctx, "list_dependencies", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.TaskRef(ctx, taskID); err != nil {
			return err
		}
		if blockers, err = tx.Blockers(ctx, taskID); err != nil {
			return err
		}
		dependents, err = tx.Dependents(ctx, taskID)
		return err
	})
	return blockers, dependents, err
}
