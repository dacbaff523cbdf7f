package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertTimeEntry records minutes spent on a task.
func (tx *Tx) InsertTimeEntry(ctx context.Context, e *TimeEntry) error {
	if e.Minutes <= 0 {
		return fmt.Errorf("store: time entry minutes must be positive, got %d", e.Minutes)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = Now()
	_, err := tx.exec(ctx,
		"INSERT INTO time_entries (id, task_id, user_id, minutes, created_at) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.TaskID, e.UserID, e.Minutes, e.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return notFound("task", e.TaskID)
		}
		return fmt.Errorf("store: insert time entry: %w", err)
	}
	return nil
}

// ProjectTimeSpent sums the time entries of every task in a project.
func (tx *Tx) ProjectTimeSpent(ctx context.Context, projectID string) (int, error) {
	var n int
	err := tx.queryRow(ctx, `
		SELECT COALESCE(SUM(te.minutes), 0)
		FROM time_entries te JOIN tasks t ON t.id = te.task_id
		WHERE t.project_id = ?`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: project time spent: %w", err)
	}
	return n, nil
}
