package store

import (
	"context"
	"fmt"

	"github.com/HendryAvila/agencyops/internal/workflow"
)

// TaskRef loads the identity and status of a task.
func (tx *Tx) TaskRef(ctx context.Context, id string) (TaskRef, error) {
	var r TaskRef
	err := tx.queryRow(ctx,
		"SELECT id, project_id, status, status_before_block FROM tasks WHERE id = ?", id,
	).Scan(&r.ID, &r.ProjectID, &r.Status, &r.StatusBeforeBlock)
	if err != nil {
		return TaskRef{}, wrapDBError("task ref", "task", id, err)
	}
	return r, nil
}

// ScopeTaskIDs lists the tasks of a project (nil: the ad-hoc pool) in a
// stable order.
func (tx *Tx) ScopeTaskIDs(ctx context.Context, projectID *string) ([]string, error) {
	rows, err := tx.query(ctx, "SELECT id FROM tasks WHERE project_id IS ? ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("store: scope tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ScopeEdges lists every dependency edge whose blocked task belongs to the
// project (nil: the ad-hoc pool).
func (tx *Tx) ScopeEdges(ctx context.Context, projectID *string) ([]Edge, error) {
	rows, err := tx.query(ctx, `
		SELECT d.blocker_id, d.blocked_id
		FROM task_dependencies d JOIN tasks t ON t.id = d.blocked_id
		WHERE t.project_id IS ?
		ORDER BY d.blocked_id, d.blocker_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: scope edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// InsertEdge records that blocker blocks blocked. It reports false when the
// edge already existed. Only the key conflict is ignored, so the schema's
// self-edge CHECK still fails the insert.
func (tx *Tx) InsertEdge(ctx context.Context, blockerID, blockedID string) (bool, error) {
	res, err := tx.exec(ctx,
		`INSERT INTO task_dependencies (blocker_id, blocked_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(blocker_id, blocked_id) DO NOTHING`,
		blockerID, blockedID, Now(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("store: insert dependency: %w", ErrNotFound)
		}
		return false, fmt.Errorf("store: insert dependency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteEdge removes the edge. It reports false when there was none.
func (tx *Tx) DeleteEdge(ctx context.Context, blockerID, blockedID string) (bool, error) {
	res, err := tx.exec(ctx,
		"DELETE FROM task_dependencies WHERE blocker_id = ? AND blocked_id = ?",
		blockerID, blockedID,
	)
	if err != nil {
		return false, fmt.Errorf("store: delete dependency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveBlockers counts the blockers of a task that are not done.
func (tx *Tx) ActiveBlockers(ctx context.Context, taskID string) (int, error) {
	var n int
	err := tx.queryRow(ctx, `
		SELECT COUNT(*) FROM task_dependencies d JOIN tasks b ON b.id = d.blocker_id
		WHERE d.blocked_id = ? AND b.status <> ?`,
		taskID, workflow.TaskDone,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: active blockers: %w", err)
	}
	return n, nil
}

// Blockers returns the tasks blocking taskID.
func (tx *Tx) Blockers(ctx context.Context, taskID string) ([]TaskRef, error) {
	return tx.queryRefs(ctx, `
		SELECT t.id, t.project_id, t.status, t.status_before_block
		FROM task_dependencies d JOIN tasks t ON t.id = d.blocker_id
		WHERE d.blocked_id = ? ORDER BY t.id`, taskID)
}

// Dependents returns the tasks blocked by blockerID.
func (tx *Tx) Dependents(ctx context.Context, blockerID string) ([]TaskRef, error) {
	return tx.queryRefs(ctx, `
		SELECT t.id, t.project_id, t.status, t.status_before_block
		FROM task_dependencies d JOIN tasks t ON t.id = d.blocked_id
		WHERE d.blocker_id = ? ORDER BY t.id`, blockerID)
}

func (tx *Tx) queryRefs(ctx context.Context, q string, args ...any) ([]TaskRef, error) {
	rows, err := tx.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: task refs: %w", err)
	}
	defer rows.Close()

	var out []TaskRef
	for rows.Next() {
		var r TaskRef
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Status, &r.StatusBeforeBlock); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanEdges(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Edge, error) {
	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.BlockerID, &e.BlockedID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
