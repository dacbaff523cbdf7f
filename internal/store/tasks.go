package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

const taskColumns = `
	t.id, t.project_id, t.phase_id, t.title, t.status, t.status_before_block,
	t.priority, t.energy_estimate, t.mystery_factor, t.estimated_minutes,
	t.sort_order, t.assignee_id, t.is_billable, t.billing_amount,
	t.billing_status, t.triggered_at, t.triggered_by_id, t.invoiced_at,
	t.invoiced_by_id, t.started_at, t.completed_at, t.created_at, t.updated_at,
	COALESCE((SELECT SUM(te.minutes) FROM time_entries te WHERE te.task_id = t.id), 0)`

func scanTask(r rowScanner) (*Task, error) {
	var t Task
	if err := r.Scan(
		&t.ID, &t.ProjectID, &t.PhaseID, &t.Title, &t.Status, &t.StatusBeforeBlock,
		&t.Priority, &t.EnergyEstimate, &t.MysteryFactor, &t.EstimatedMinutes,
		&t.SortOrder, &t.AssigneeID, &t.IsBillable, &t.BillingAmount,
		&t.BillingStatus, &t.TriggeredAt, &t.TriggeredByID, &t.InvoicedAt,
		&t.InvoicedByID, &t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
		&t.TimeSpentMinutes,
	); err != nil {
		return nil, err
	}
	t.Invoiced = t.BillingStatus == billing.StatusInvoiced
	return &t, nil
}

// InsertTask stores t at t.SortOrder. The caller picks the order (normally
// through the sequencer's Append). ID, timestamps and the derived minute
// estimate are filled in.
func (tx *Tx) InsertTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = workflow.TaskNotStarted
	}
	if t.Priority == 0 {
		t.Priority = workflow.DefaultPriority
	}
	if t.MysteryFactor == "" {
		t.MysteryFactor = estimate.MysteryNone
	}
	if t.BillingStatus == "" {
		t.BillingStatus = billing.StatusPending
	}
	if t.EnergyEstimate != nil {
		t.EstimatedMinutes = estimate.EstimatedMinutes(t.EnergyEstimate, t.MysteryFactor)
	}
	now := Now()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := tx.exec(ctx, `
		INSERT INTO tasks (
			id, project_id, phase_id, title, status, priority, energy_estimate,
			mystery_factor, estimated_minutes, sort_order, assignee_id, is_billable,
			billing_amount, billing_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.PhaseID, t.Title, t.Status, t.Priority, t.EnergyEstimate,
		t.MysteryFactor, t.EstimatedMinutes, t.SortOrder, t.AssigneeID, t.IsBillable,
		t.BillingAmount, t.BillingStatus, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("store: insert task: project or phase does not exist: %w", ErrNotFound)
		}
		return fmt.Errorf("store: insert task: %w", err)
	}
	return nil
}

// GetTask loads one task.
func (tx *Tx) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(tx.queryRow(ctx, "SELECT "+taskColumns+" FROM tasks t WHERE t.id = ?", id))
	if err != nil {
		return nil, wrapDBError("get task", "task", id, err)
	}
	return t, nil
}

// TaskFilter narrows ListTasks. Zero value lists every task.
type TaskFilter struct {
	ProjectID *string
	// AdHoc restricts the listing to tasks without a project.
	AdHoc bool
	// Container restricts the listing to one ordering container.
	Container  *Container
	Status     workflow.TaskStatus
	AssigneeID string
}

// ListTasks returns tasks ordered by container then sort_order.
func (tx *Tx) ListTasks(ctx context.Context, f TaskFilter) ([]*Task, error) {
	var (
		clauses []string
		args    []any
	)
	switch {
	case f.Container != nil:
		clauses = append(clauses, "t.project_id IS ?", "t.phase_id IS ?")
		args = append(args, f.Container.ScopeID, f.Container.PhaseID)
	case f.AdHoc:
		clauses = append(clauses, "t.project_id IS NULL")
	case f.ProjectID != nil:
		clauses = append(clauses, "t.project_id = ?")
		args = append(args, *f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "t.status = ?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "t.assignee_id = ?")
		args = append(args, f.AssigneeID)
	}

	q := "SELECT " + taskColumns + " FROM tasks t"
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY t.project_id, t.phase_id IS NOT NULL, t.phase_id, t.sort_order, t.id"
	return tx.queryTasks(ctx, q, args...)
}

// TasksByIDs loads the tasks that exist among ids, keyed by ID.
func (tx *Tx) TasksByIDs(ctx context.Context, ids []string) (map[string]*Task, error) {
	out := make(map[string]*Task, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := "SELECT " + taskColumns + " FROM tasks t WHERE t.id IN (" + placeholders(len(ids)) + ")"
	tasks, err := tx.queryTasks(ctx, q, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		out[t.ID] = t
	}
	return out, nil
}

func (tx *Tx) queryTasks(ctx context.Context, q string, args ...any) ([]*Task, error) {
	rows, err := tx.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ApplyTaskTransition writes an accepted status change with its stamps.
// Any remembered pre-block status is cleared.
func (tx *Tx) ApplyTaskTransition(ctx context.Context, id string, tr workflow.TaskTransition, at string) error {
	res, err := tx.exec(ctx, `
		UPDATE tasks SET
			status = ?,
			status_before_block = NULL,
			started_at = CASE WHEN ? THEN ? ELSE started_at END,
			completed_at = CASE WHEN ? THEN ? WHEN ? THEN NULL ELSE completed_at END,
			updated_at = ?
		WHERE id = ?`,
		tr.To,
		tr.StampStarted, at,
		tr.StampCompleted, at, tr.ClearCompleted,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("store: update task status: %w", err)
	}
	return requireAffected(res, "task", id)
}

// SetTaskStatus overwrites the status without stamps. It is the write path
// of forced block/unblock; prior is remembered for a later restore.
func (tx *Tx) SetTaskStatus(ctx context.Context, id string, status workflow.TaskStatus, prior *workflow.TaskStatus) error {
	res, err := tx.exec(ctx,
		"UPDATE tasks SET status = ?, status_before_block = ?, updated_at = ? WHERE id = ?",
		status, prior, Now(), id,
	)
	if err != nil {
		return fmt.Errorf("store: set task status: %w", err)
	}
	return requireAffected(res, "task", id)
}

// TaskUpdate carries the editable, non-status fields of a task. Nil fields
// are left alone.
type TaskUpdate struct {
	Title          *string
	Priority       *int
	EnergyEstimate **int
	MysteryFactor  *estimate.MysteryFactor
	AssigneeID     **string
}

// UpdateTask applies u and recomputes estimated_minutes when energy or
// mystery changed.
func (tx *Tx) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, error) {
	t, err := tx.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.AssigneeID != nil {
		t.AssigneeID = *u.AssigneeID
	}
	if u.EnergyEstimate != nil || u.MysteryFactor != nil {
		if u.EnergyEstimate != nil {
			t.EnergyEstimate = *u.EnergyEstimate
		}
		if u.MysteryFactor != nil {
			t.MysteryFactor = *u.MysteryFactor
		}
		t.EstimatedMinutes = estimate.EstimatedMinutes(t.EnergyEstimate, t.MysteryFactor)
	}
	t.UpdatedAt = Now()

	_, err = tx.exec(ctx, `
		UPDATE tasks SET title = ?, priority = ?, energy_estimate = ?, mystery_factor = ?,
			estimated_minutes = ?, assignee_id = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Priority, t.EnergyEstimate, t.MysteryFactor,
		t.EstimatedMinutes, t.AssigneeID, t.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: update task: %w", err)
	}
	return t, nil
}

// SaveTaskBilling writes every billing column of t.
func (tx *Tx) SaveTaskBilling(ctx context.Context, t *Task) error {
	t.UpdatedAt = Now()
	t.Invoiced = t.BillingStatus == billing.StatusInvoiced
	res, err := tx.exec(ctx, `
		UPDATE tasks SET is_billable = ?, billing_amount = ?, billing_status = ?,
			triggered_at = ?, triggered_by_id = ?, invoiced_at = ?, invoiced_by_id = ?,
			updated_at = ?
		WHERE id = ?`,
		t.IsBillable, t.BillingAmount, t.BillingStatus,
		t.TriggeredAt, t.TriggeredByID, t.InvoicedAt, t.InvoicedByID,
		t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("store: save task billing: %w", err)
	}
	return requireAffected(res, "task", t.ID)
}

// DeleteTask removes the row. Edges and time entries cascade. Closing the
// ordering gap is the sequencer's job.
func (tx *Tx) DeleteTask(ctx context.Context, id string) error {
	res, err := tx.exec(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	return requireAffected(res, "task", id)
}

// UnbilledTasks lists done, billable tasks that are not invoiced yet.
func (tx *Tx) UnbilledTasks(ctx context.Context) ([]*Task, error) {
	return tx.queryTasks(ctx, "SELECT "+taskColumns+` FROM tasks t
		WHERE t.is_billable = 1 AND t.status = ? AND t.billing_status <> ?
		ORDER BY t.completed_at, t.id`,
		workflow.TaskDone, billing.StatusInvoiced,
	)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
