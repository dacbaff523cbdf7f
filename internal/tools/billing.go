package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
)

func billingStatusEnum() mcp.PropertyOption {
	return mcp.Enum(string(billing.StatusPending), string(billing.StatusTriggered), string(billing.StatusInvoiced))
}

func describeAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "no amount"
	}
	return d.Decimal.StringFixed(2)
}

// ─── EstimateTaskTool ────────────────────────────────────────────────────────

// EstimateTaskTool handles the estimate_task MCP tool.
type EstimateTaskTool struct {
	svc *service.Service
}

// NewEstimateTaskTool creates an EstimateTaskTool.
func NewEstimateTaskTool(svc *service.Service) *EstimateTaskTool {
	return &EstimateTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for estimate_task.
func (t *EstimateTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("estimate_task",
		mcp.WithDescription(
			"Compute low/mid/high minute estimates from an energy level (1-5) and a mystery factor. "+
				"Low is the base time for the energy level, high is low weighted by the mystery factor, mid is their average. "+
				"Without energy every figure equals actual_minutes.",
		),
		mcp.WithNumber("energy", mcp.Description("Energy level 1-5. Omit when unknown.")),
		mcp.WithString("mystery_factor",
			mcp.Description("How much is unknown (default: none)"),
			mcp.Enum("none", "average", "significant", "no_idea"),
		),
		mcp.WithNumber("actual_minutes", mcp.Description("Minutes already logged (default: 0)")),
	)
}

// Handle processes the estimate_task tool call.
func (t *EstimateTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	energy := optionalIntArg(req, "energy")
	est, err := t.svc.Estimate(ctx, energy, req.GetString("mystery_factor", ""), intArg(req, "actual_minutes", 0))
	if err != nil {
		return toolError("estimate_task", err)
	}
	summary := fmt.Sprintf("Estimate: %s to %s (mid %s, actual %s)",
		estimate.FormatDuration(est.Low), estimate.FormatDuration(est.High),
		estimate.FormatDuration(est.Mid), estimate.FormatDuration(est.Actual))
	if energy != nil {
		summary = fmt.Sprintf("Energy %d (%s). %s", *energy, estimate.EnergyLabel(*energy), summary)
	}
	return jsonResult(summary, est)
}

// ─── BatchInvoiceTool ────────────────────────────────────────────────────────

// BatchInvoiceTool handles the batch_invoice MCP tool.
type BatchInvoiceTool struct {
	svc *service.Service
}

// NewBatchInvoiceTool creates a BatchInvoiceTool.
func NewBatchInvoiceTool(svc *service.Service) *BatchInvoiceTool {
	return &BatchInvoiceTool{svc: svc}
}

// Definition returns the MCP tool definition for batch_invoice.
func (t *BatchInvoiceTool) Definition() mcp.Tool {
	return mcp.NewTool("batch_invoice",
		mcp.WithDescription(
			"Invoice several milestones and tasks at once. Milestones must be triggered; tasks must be done and not yet invoiced. "+
				"All or nothing: any missing or ineligible ID aborts the batch and every offender is reported by category.",
		),
		mcp.WithArray("milestone_ids",
			mcp.Description("Triggered milestones to invoice"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("task_ids",
			mcp.Description("Finished tasks to invoice"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the batch_invoice tool call.
func (t *BatchInvoiceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mIDs, tIDs := stringSliceArg(req, "milestone_ids"), stringSliceArg(req, "task_ids")
	if len(mIDs) == 0 && len(tIDs) == 0 {
		return mcp.NewToolResultError("pass at least one of 'milestone_ids' or 'task_ids'"), nil
	}
	res, err := t.svc.BatchInvoice(ctx, mIDs, tIDs)
	if err != nil {
		return toolError("batch_invoice", err)
	}
	return jsonResult(fmt.Sprintf("Invoiced %d milestones and %d tasks", res.MilestonesUpdated, res.TasksUpdated), res)
}

// ─── Milestones ──────────────────────────────────────────────────────────────

// UpdateMilestoneTool handles the update_milestone MCP tool.
type UpdateMilestoneTool struct {
	svc *service.Service
}

// NewUpdateMilestoneTool creates an UpdateMilestoneTool.
func NewUpdateMilestoneTool(svc *service.Service) *UpdateMilestoneTool {
	return &UpdateMilestoneTool{svc: svc}
}

// Definition returns the MCP tool definition for update_milestone.
func (t *UpdateMilestoneTool) Definition() mcp.Tool {
	return mcp.NewTool("update_milestone",
		mcp.WithDescription(
			"Edit a milestone. Marking a pending milestone completed when it already has an amount triggers billing, "+
				"unless billing_status is given in the same call, which always wins.",
		),
		mcp.WithString("milestone_id", mcp.Required(), mcp.Description("Milestone to edit")),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithBoolean("completed", mcp.Description("Mark completed (true) or reopen (false)")),
		mcp.WithString("billing_status", mcp.Description("Explicit billing status"), billingStatusEnum()),
		mcp.WithString("billing_amount", mcp.Description("Amount as a decimal string, e.g. \"1500.00\". Empty clears it.")),
	)
}

// Handle processes the update_milestone tool call.
func (t *UpdateMilestoneTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "milestone_id"); res != nil {
		return res, nil
	}
	u := service.MilestoneUpdate{
		Name:      optionalStringArg(req, "name"),
		Completed: optionalBoolArg(req, "completed"),
	}
	if s := optionalStringArg(req, "billing_status"); s != nil {
		st := billing.Status(*s)
		u.BillingStatus = &st
	}
	amount, present, err := decimalArg(req, "billing_amount")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if present {
		u.BillingAmount = &amount
	}

	res, err := t.svc.UpdateMilestone(ctx, req.GetString("milestone_id", ""), u)
	if err != nil {
		return toolError("update_milestone", err)
	}
	summary := fmt.Sprintf("Milestone %q updated: billing %s, %s", res.Milestone.Name, res.Milestone.BillingStatus, describeAmount(res.Milestone.BillingAmount))
	if res.AutoTriggered {
		summary += "\nCompletion triggered billing."
	}
	return jsonResult(summary, res)
}

// MilestoneStepTool handles trigger_milestone and invoice_milestone, the
// two single-step billing moves.
type MilestoneStepTool struct {
	name string
	desc string
	step func(context.Context, string) (*store.Milestone, error)
}

// NewTriggerMilestoneTool creates the trigger_milestone tool.
func NewTriggerMilestoneTool(svc *service.Service) *MilestoneStepTool {
	return &MilestoneStepTool{
		name: "trigger_milestone",
		desc: "Mark a pending milestone ready to invoice. The milestone must have a billing amount.",
		step: svc.TriggerMilestone,
	}
}

// NewInvoiceMilestoneTool creates the invoice_milestone tool.
func NewInvoiceMilestoneTool(svc *service.Service) *MilestoneStepTool {
	return &MilestoneStepTool{
		name: "invoice_milestone",
		desc: "Mark a triggered milestone as invoiced.",
		step: svc.InvoiceMilestone,
	}
}

// Definition returns the MCP tool definition.
func (t *MilestoneStepTool) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription(t.desc),
		mcp.WithString("milestone_id", mcp.Required(), mcp.Description("Milestone to update")),
	)
}

// Handle processes the tool call.
func (t *MilestoneStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "milestone_id"); res != nil {
		return res, nil
	}
	m, err := t.step(ctx, req.GetString("milestone_id", ""))
	if err != nil {
		return toolError(t.name, err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Milestone %q is now %s (%s)", m.Name, m.BillingStatus, describeAmount(m.BillingAmount))), nil
}

// ─── Task billing ────────────────────────────────────────────────────────────

// SetTaskBillingTool handles the set_task_billing MCP tool.
type SetTaskBillingTool struct {
	svc *service.Service
}

// NewSetTaskBillingTool creates a SetTaskBillingTool.
func NewSetTaskBillingTool(svc *service.Service) *SetTaskBillingTool {
	return &SetTaskBillingTool{svc: svc}
}

// Definition returns the MCP tool definition for set_task_billing.
func (t *SetTaskBillingTool) Definition() mcp.Tool {
	return mcp.NewTool("set_task_billing",
		mcp.WithDescription("Edit the billing fields of a task. Only the given fields change."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to edit")),
		mcp.WithBoolean("is_billable", mcp.Description("Whether finishing the task bills the client")),
		mcp.WithString("billing_amount", mcp.Description("Amount as a decimal string. Empty clears it.")),
		mcp.WithString("billing_status", mcp.Description("Explicit billing status"), billingStatusEnum()),
	)
}

// Handle processes the set_task_billing tool call.
func (t *SetTaskBillingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id"); res != nil {
		return res, nil
	}
	in := service.TaskBilling{IsBillable: optionalBoolArg(req, "is_billable")}
	if s := optionalStringArg(req, "billing_status"); s != nil {
		st := billing.Status(*s)
		in.BillingStatus = &st
	}
	amount, present, err := decimalArg(req, "billing_amount")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if present {
		in.BillingAmount = &amount
	}

	task, err := t.svc.SetTaskBilling(ctx, req.GetString("task_id", ""), in)
	if err != nil {
		return toolError("set_task_billing", err)
	}
	billable := "not billable"
	if task.IsBillable {
		billable = "billable"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %q: %s, billing %s, %s",
		task.Title, billable, task.BillingStatus, describeAmount(task.BillingAmount))), nil
}

// BillingAmountTool handles the billing_amount MCP tool.
type BillingAmountTool struct {
	svc *service.Service
}

// NewBillingAmountTool creates a BillingAmountTool.
func NewBillingAmountTool(svc *service.Service) *BillingAmountTool {
	return &BillingAmountTool{svc: svc}
}

// Definition returns the MCP tool definition for billing_amount.
func (t *BillingAmountTool) Definition() mcp.Tool {
	return mcp.NewTool("billing_amount",
		mcp.WithDescription(
			"Price a task: its explicit billing amount when set, otherwise the chosen estimate "+
				"times the project's hourly rate.",
		),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to price")),
		mcp.WithString("estimate_type",
			mcp.Description("Which estimate to price (default: configured, usually mid)"),
			mcp.Enum(string(estimate.KindActual), string(estimate.KindLow), string(estimate.KindMid), string(estimate.KindHigh)),
		),
	)
}

// Handle processes the billing_amount tool call.
func (t *BillingAmountTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id"); res != nil {
		return res, nil
	}
	q, err := t.svc.BillingAmount(ctx, req.GetString("task_id", ""), strings.TrimSpace(req.GetString("estimate_type", "")))
	if err != nil {
		return toolError("billing_amount", err)
	}
	var summary string
	switch {
	case q.Explicit:
		summary = fmt.Sprintf("Explicit amount: %s", describeAmount(q.Amount))
	case q.Amount.Valid:
		summary = fmt.Sprintf("%s at %s/h (%s estimate): %s",
			estimate.FormatDuration(q.Estimates.Pick(q.Kind)), describeAmount(q.HourlyRate), q.Kind, describeAmount(q.Amount))
	default:
		summary = "No amount: the task has no explicit amount and its project has no hourly rate"
	}
	return jsonResult(summary, q)
}
