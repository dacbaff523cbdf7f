package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HendryAvila/agencyops/internal/billing"
)

const milestoneColumns = `id, project_id, name, billing_status, billing_amount, completed_at,
	triggered_at, triggered_by_id, invoiced_at, invoiced_by_id, created_at, updated_at`

func scanMilestone(r rowScanner) (*Milestone, error) {
	var m Milestone
	if err := r.Scan(
		&m.ID, &m.ProjectID, &m.Name, &m.BillingStatus, &m.BillingAmount, &m.CompletedAt,
		&m.TriggeredAt, &m.TriggeredByID, &m.InvoicedAt, &m.InvoicedByID, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMilestone stores m, filling ID, status and timestamps.
func (tx *Tx) InsertMilestone(ctx context.Context, m *Milestone) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.BillingStatus == "" {
		m.BillingStatus = billing.StatusPending
	}
	now := Now()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := tx.exec(ctx, `
		INSERT INTO milestones (id, project_id, name, billing_status, billing_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Name, m.BillingStatus, m.BillingAmount, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("store: insert milestone: project %s: %w", m.ProjectID, ErrNotFound)
		}
		return fmt.Errorf("store: insert milestone: %w", err)
	}
	return nil
}

// GetMilestone loads one milestone.
func (tx *Tx) GetMilestone(ctx context.Context, id string) (*Milestone, error) {
	m, err := scanMilestone(tx.queryRow(ctx, "SELECT "+milestoneColumns+" FROM milestones WHERE id = ?", id))
	if err != nil {
		return nil, wrapDBError("get milestone", "milestone", id, err)
	}
	return m, nil
}

// MilestonesByIDs loads the milestones that exist among ids, keyed by ID.
func (tx *Tx) MilestonesByIDs(ctx context.Context, ids []string) (map[string]*Milestone, error) {
	out := make(map[string]*Milestone, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ms, err := tx.queryMilestones(ctx,
		"SELECT "+milestoneColumns+" FROM milestones WHERE id IN ("+placeholders(len(ids))+")",
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		out[m.ID] = m
	}
	return out, nil
}

// ListMilestones returns a project's milestones by creation time.
func (tx *Tx) ListMilestones(ctx context.Context, projectID string) ([]*Milestone, error) {
	return tx.queryMilestones(ctx,
		"SELECT "+milestoneColumns+" FROM milestones WHERE project_id = ? ORDER BY created_at, id", projectID)
}

// TriggeredMilestones lists milestones waiting to be invoiced.
func (tx *Tx) TriggeredMilestones(ctx context.Context) ([]*Milestone, error) {
	return tx.queryMilestones(ctx,
		"SELECT "+milestoneColumns+" FROM milestones WHERE billing_status = ? ORDER BY triggered_at, id",
		billing.StatusTriggered)
}

func (tx *Tx) queryMilestones(ctx context.Context, q string, args ...any) ([]*Milestone, error) {
	rows, err := tx.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list milestones: %w", err)
	}
	defer rows.Close()

	var out []*Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveMilestone writes every mutable column of m.
func (tx *Tx) SaveMilestone(ctx context.Context, m *Milestone) error {
	m.UpdatedAt = Now()
	res, err := tx.exec(ctx, `
		UPDATE milestones SET name = ?, billing_status = ?, billing_amount = ?, completed_at = ?,
			triggered_at = ?, triggered_by_id = ?, invoiced_at = ?, invoiced_by_id = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, m.BillingStatus, m.BillingAmount, m.CompletedAt,
		m.TriggeredAt, m.TriggeredByID, m.InvoicedAt, m.InvoicedByID, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("store: save milestone: %w", err)
	}
	return requireAffected(res, "milestone", m.ID)
}
