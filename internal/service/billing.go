package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/notify"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// Estimate returns the four billing figures for an energy level and
// mystery factor. Without energy every figure equals actual.
func (s *Service) Estimate(ctx context.Context, energy *int, mystery string, actual int) (estimate.Estimates, error) {
	_, end := s.rec.Start(ctx, "estimate")
	est, err := func() (estimate.Estimates, error) {
		if err := validateEnergy(energy); err != nil {
			return estimate.Estimates{}, err
		}
		if actual < 0 {
			return estimate.Estimates{}, fmt.Errorf("%w: actual minutes must not be negative", ErrInvalidArgument)
		}
		m, err := estimate.ParseMysteryFactor(mystery)
		if err != nil {
			return estimate.Estimates{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return estimate.BillingEstimates(energy, m, actual), nil
	}()
	end(err)
	return est, err
}

// ─── Milestones ──────────────────────────────────────────────────────────────

// CreateMilestone stores a pending milestone.
func (s *Service) CreateMilestone(ctx context.Context, projectID, name string, amount decimal.NullDecimal) (*store.Milestone, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: milestone name is required", ErrInvalidArgument)
	}
	if amount.Valid && !amount.Decimal.IsPositive() {
		return nil, fmt.Errorf("%w: billing amount must be positive", ErrInvalidArgument)
	}
	m := &store.Milestone{ProjectID: projectID, Name: name}
	m.BillingAmount = amount
	err := s.run(ctx, "create_milestone", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		return tx.InsertMilestone(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMilestones returns the milestones of a project.
func (s *Service) ListMilestones(ctx context.Context, projectID string) ([]*store.Milestone, error) {
	var out []*store.Milestone
	err := s.run(ctx, "list_milestones", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		ms, err := tx.ListMilestones(ctx, projectID)
		out = ms
		return err
	})
	return out, err
}

// MilestoneUpdate is a partial milestone edit. Nil fields are untouched.
type MilestoneUpdate struct {
	Name *string
	// Completed sets (true) or clears (false) completed_at.
	Completed     *bool
	BillingStatus *billing.Status
	BillingAmount *decimal.NullDecimal
}

// MilestoneResult reports an applied milestone edit.
type MilestoneResult struct {
	Milestone     *store.Milestone `json:"milestone"`
	AutoTriggered bool             `json:"auto_triggered,omitempty"`
}

// UpdateMilestone applies u. Completing a pending milestone that already
// had an amount triggers billing, unless u sets the billing status
// explicitly.
func (s *Service) UpdateMilestone(ctx context.Context, id string, u MilestoneUpdate) (*MilestoneResult, error) {
	if u.Name != nil && *u.Name == "" {
		return nil, fmt.Errorf("%w: milestone name must not be empty", ErrInvalidArgument)
	}
	var out *MilestoneResult
	err := s.run(ctx, "update_milestone", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		m, err := tx.GetMilestone(ctx, id)
		if err != nil {
			return err
		}
		prev := m.BillingStatus

		if u.Name != nil {
			m.Name = *u.Name
		}
		completing := u.Completed != nil && *u.Completed
		if u.Completed != nil {
			if completing {
				m.CompletedAt = &ob.stamp
			} else {
				m.CompletedAt = nil
			}
		}
		auto, err := billing.PlanMilestoneUpdate(&m.Record, billing.MilestoneChange{
			Status:     u.BillingStatus,
			Amount:     u.BillingAmount,
			Completing: completing,
		}, ob.actor, ob.stamp)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := tx.SaveMilestone(ctx, m); err != nil {
			return err
		}
		billingEvents(ob, m.ID, "milestone", prev, m.BillingStatus)
		out = &MilestoneResult{Milestone: m, AutoTriggered: auto}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerMilestone flips a pending milestone with an amount to triggered.
func (s *Service) TriggerMilestone(ctx context.Context, id string) (*store.Milestone, error) {
	return s.milestoneStep(ctx, "trigger_milestone", id, billing.Trigger)
}

// InvoiceMilestone flips a triggered milestone to invoiced.
func (s *Service) InvoiceMilestone(ctx context.Context, id string) (*store.Milestone, error) {
	return s.milestoneStep(ctx, "invoice_milestone", id, billing.Invoice)
}

func (s *Service) milestoneStep(ctx context.Context, op, id string, step func(*billing.Record, string, string) error) (*store.Milestone, error) {
	var out *store.Milestone
	err := s.run(ctx, op, func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		m, err := tx.GetMilestone(ctx, id)
		if err != nil {
			return err
		}
		prev := m.BillingStatus
		if err := step(&m.Record, ob.actor, ob.stamp); err != nil {
			return fmt.Errorf("milestone %s: %w", id, err)
		}
		if err := tx.SaveMilestone(ctx, m); err != nil {
			return err
		}
		billingEvents(ob, m.ID, "milestone", prev, m.BillingStatus)
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func billingEvents(ob *outbox, id, entity string, from, to billing.Status) {
	if from == to {
		return
	}
	data := map[string]any{"entity": entity, "from": string(from), "to": string(to)}
	switch to {
	case billing.StatusTriggered:
		ob.add(notify.BillingTriggered, id, entity+" billing triggered", data)
	case billing.StatusInvoiced:
		ob.add(notify.BillingInvoiced, id, entity+" invoiced", data)
	}
}

// ─── Task billing ────────────────────────────────────────────────────────────

// TaskBilling is a partial edit of a task's billing fields.
type TaskBilling struct {
	IsBillable    *bool
	BillingAmount *decimal.NullDecimal
	BillingStatus *billing.Status
}

// SetTaskBilling edits a task's billing fields. An explicit status stamps
// triggered_* or invoiced_* the same way milestone edits do.
func (s *Service) SetTaskBilling(ctx context.Context, taskID string, in TaskBilling) (*store.Task, error) {
	var out *store.Task
	err := s.run(ctx, "set_task_billing", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		prev := t.BillingStatus
		if in.IsBillable != nil {
			t.IsBillable = *in.IsBillable
		}
		if _, err := billing.PlanMilestoneUpdate(&t.Record, billing.MilestoneChange{
			Status: in.BillingStatus,
			Amount: in.BillingAmount,
		}, ob.actor, ob.stamp); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := tx.SaveTaskBilling(ctx, t); err != nil {
			return err
		}
		billingEvents(ob, t.ID, "task", prev, t.BillingStatus)
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AmountQuote is the priced view of one task.
type AmountQuote struct {
	TaskID     string              `json:"task_id"`
	Kind       estimate.Kind       `json:"kind"`
	Estimates  estimate.Estimates  `json:"estimates"`
	HourlyRate decimal.NullDecimal `json:"hourly_rate"`
	Amount     decimal.NullDecimal `json:"amount"`
	Explicit   bool                `json:"explicit"`
}

// BillingAmount prices a task: its explicit amount when set, otherwise the
// chosen estimate times the project's hourly rate. An empty kind uses the
// configured default.
func (s *Service) BillingAmount(ctx context.Context, taskID string, kind string) (*AmountQuote, error) {
	k := s.kind
	if kind != "" {
		var err error
		if k, err = estimate.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	var out *AmountQuote
	err := s.run(ctx, "billing_amount", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		var rate decimal.NullDecimal
		if t.ProjectID != nil {
			p, err := tx.GetProject(ctx, *t.ProjectID)
			if err != nil {
				return err
			}
			rate = p.HourlyRate
		}
		est := estimate.BillingEstimates(t.EnergyEstimate, t.MysteryFactor, t.TimeSpentMinutes)
		out = &AmountQuote{
			TaskID:     t.ID,
			Kind:       k,
			Estimates:  est,
			HourlyRate: rate,
			Amount:     billing.Amount(t.BillingAmount, est, rate, k),
			Explicit:   t.HasAmount(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Invoicing ───────────────────────────────────────────────────────────────

// BatchInvoice invoices the given milestones and tasks together. Every
// target is validated first; any problem returns a
// *billing.ValidationError listing all offenders by category and nothing
// is written.
func (s *Service) BatchInvoice(ctx context.Context, milestoneIDs, taskIDs []string) (*billing.BatchResult, error) {
	b := billing.Batch{MilestoneIDs: milestoneIDs, TaskIDs: taskIDs}.Normalize()

	var out *billing.BatchResult
	err := s.run(ctx, "batch_invoice", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		milestones, err := tx.MilestonesByIDs(ctx, b.MilestoneIDs)
		if err != nil {
			return err
		}
		tasks, err := tx.TasksByIDs(ctx, b.TaskIDs)
		if err != nil {
			return err
		}

		mStatus := make(map[string]billing.Status, len(milestones))
		for id, m := range milestones {
			mStatus[id] = m.BillingStatus
		}
		tSnap := make(map[string]billing.TaskSnapshot, len(tasks))
		for id, t := range tasks {
			tSnap[id] = billing.TaskSnapshot{Invoiced: t.Invoiced, Done: t.Status == workflow.TaskDone}
		}
		if err := billing.CheckBatch(b, mStatus, tSnap); err != nil {
			var verr *billing.ValidationError
			if errors.As(err, &verr) && verr.HasNotFound() {
				return fmt.Errorf("%w: %w", verr, store.ErrNotFound)
			}
			return err
		}

		res := &billing.BatchResult{InvoicedAt: ob.stamp, InvoicedBy: ob.actor}
		for _, id := range b.MilestoneIDs {
			m := milestones[id]
			billing.InvoiceForBatch(&m.Record, ob.actor, ob.stamp)
			if err := tx.SaveMilestone(ctx, m); err != nil {
				return err
			}
			res.MilestonesUpdated++
		}
		for _, id := range b.TaskIDs {
			t := tasks[id]
			billing.InvoiceForBatch(&t.Record, ob.actor, ob.stamp)
			if err := tx.SaveTaskBilling(ctx, t); err != nil {
				return err
			}
			res.TasksUpdated++
		}
		res.TotalUpdated = res.MilestonesUpdated + res.TasksUpdated
		ob.add(notify.BillingInvoiced, "batch", "batch invoiced", map[string]any{
			"milestone_ids": b.MilestoneIDs,
			"task_ids":      b.TaskIDs,
		})
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UnbilledReport lists the work that is ready to invoice.
type UnbilledReport struct {
	Milestones []*store.Milestone `json:"milestones"`
	Tasks      []*store.Task      `json:"tasks"`
	Total      decimal.Decimal    `json:"total"`
}

// Unbilled returns triggered milestones and done, billable, uninvoiced
// tasks, with the sum of their amounts.
func (s *Service) Unbilled(ctx context.Context) (*UnbilledReport, error) {
	out := &UnbilledReport{Milestones: []*store.Milestone{}, Tasks: []*store.Task{}}
	err := s.run(ctx, "unbilled", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		ms, err := tx.TriggeredMilestones(ctx)
		if err != nil {
			return err
		}
		ts, err := tx.UnbilledTasks(ctx)
		if err != nil {
			return err
		}
		out.Milestones = append(out.Milestones, ms...)
		out.Tasks = append(out.Tasks, ts...)
		for _, m := range ms {
			if m.HasAmount() {
				out.Total = out.Total.Add(m.BillingAmount.Decimal)
			}
		}
		for _, t := range ts {
			if t.HasAmount() {
				out.Total = out.Total.Add(t.BillingAmount.Decimal)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
