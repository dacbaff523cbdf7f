package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/agencyops/internal/deps"
	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// ─── Dependencies ────────────────────────────────────────────────────────────

// AddDependencyTool handles the add_dependency MCP tool.
type AddDependencyTool struct {
	svc *service.Service
}

// NewAddDependencyTool creates an AddDependencyTool.
func NewAddDependencyTool(svc *service.Service) *AddDependencyTool {
	return &AddDependencyTool{svc: svc}
}

// Definition returns the MCP tool definition for add_dependency.
func (t *AddDependencyTool) Definition() mcp.Tool {
	return mcp.NewTool("add_dependency",
		mcp.WithDescription(
			"Record that a task is blocked by another task of the same project. "+
				"Self-dependencies, cross-project edges and cycles are rejected. "+
				"If the blocker is not done, the task is moved to blocked.",
		),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task that waits")),
		mcp.WithString("blocker_id", mcp.Required(), mcp.Description("Task that must be done first")),
	)
}

// Handle processes the add_dependency tool call.
func (t *AddDependencyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id", "blocker_id"); res != nil {
		return res, nil
	}
	taskID, blockerID := req.GetString("task_id", ""), req.GetString("blocker_id", "")
	res, err := t.svc.AddDependency(ctx, taskID, blockerID)
	if err != nil {
		return toolError("add_dependency", err)
	}
	msg := fmt.Sprintf("Dependency recorded: %s is blocked by %s", taskID, blockerID)
	if !res.Changed {
		msg = fmt.Sprintf("Dependency already existed: %s is blocked by %s", taskID, blockerID)
	}
	return mcp.NewToolResultText(msg + describeChange(res.Status)), nil
}

// RemoveDependencyTool handles the remove_dependency MCP tool.
type RemoveDependencyTool struct {
	svc *service.Service
}

// NewRemoveDependencyTool creates a RemoveDependencyTool.
func NewRemoveDependencyTool(svc *service.Service) *RemoveDependencyTool {
	return &RemoveDependencyTool{svc: svc}
}

// Definition returns the MCP tool definition for remove_dependency.
func (t *RemoveDependencyTool) Definition() mcp.Tool {
	return mcp.NewTool("remove_dependency",
		mcp.WithDescription(
			"Remove a blocked-by edge. A blocked task with no remaining open blocker is released.",
		),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task that waits")),
		mcp.WithString("blocker_id", mcp.Required(), mcp.Description("Blocking task to detach")),
	)
}

// Handle processes the remove_dependency tool call.
func (t *RemoveDependencyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id", "blocker_id"); res != nil {
		return res, nil
	}
	taskID, blockerID := req.GetString("task_id", ""), req.GetString("blocker_id", "")
	res, err := t.svc.RemoveDependency(ctx, taskID, blockerID)
	if err != nil {
		return toolError("remove_dependency", err)
	}
	msg := fmt.Sprintf("Dependency removed: %s no longer waits on %s", taskID, blockerID)
	if !res.Changed {
		msg = fmt.Sprintf("No dependency between %s and %s", taskID, blockerID)
	}
	return mcp.NewToolResultText(msg + describeChange(res.Status)), nil
}

func describeChange(c *deps.StatusChange) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("\nTask %s: %s → %s", c.TaskID, c.From, c.To)
}

func describeChanges(label string, cs []deps.StatusChange) string {
	if len(cs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s:", label)
	for _, c := range cs {
		fmt.Fprintf(&b, "\n- %s: %s → %s", c.TaskID, c.From, c.To)
	}
	return b.String()
}

// ─── Task status ─────────────────────────────────────────────────────────────

func taskStatusEnum() mcp.PropertyOption {
	vals := make([]string, len(workflow.TaskStatuses))
	for i, s := range workflow.TaskStatuses {
		vals[i] = string(s)
	}
	return mcp.Enum(vals...)
}

// TransitionTaskStatusTool handles the transition_task_status MCP tool.
type TransitionTaskStatusTool struct {
	svc *service.Service
}

// NewTransitionTaskStatusTool creates a TransitionTaskStatusTool.
func NewTransitionTaskStatusTool(svc *service.Service) *TransitionTaskStatusTool {
	return &TransitionTaskStatusTool{svc: svc}
}

// Definition returns the MCP tool definition for transition_task_status.
func (t *TransitionTaskStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("transition_task_status",
		mcp.WithDescription(
			"Change a task's status following the workflow table. A blocked task cannot restart while a blocker is open. "+
				"Finishing a task releases the tasks waiting on it and triggers billing for billable tasks with an amount.",
		),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to update")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status"), taskStatusEnum()),
	)
}

// Handle processes the transition_task_status tool call.
func (t *TransitionTaskStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id", "status"); res != nil {
		return res, nil
	}
	res, err := t.svc.TransitionTaskStatus(ctx, req.GetString("task_id", ""), workflow.TaskStatus(req.GetString("status", "")))
	if err != nil {
		return toolError("transition_task_status", err)
	}
	return mcp.NewToolResultText(describeTransition(res)), nil
}

func describeTransition(res *service.TransitionResult) string {
	if res.NoOp {
		return fmt.Sprintf("Task %q is already %s", res.Task.Title, res.Task.Status.Label())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Task %q: %s → %s", res.Task.Title, res.From.Label(), res.Task.Status.Label())
	if res.BillingTriggered {
		fmt.Fprintf(&b, "\nBilling triggered for %s", res.Task.BillingAmount.Decimal.StringFixed(2))
	}
	b.WriteString(describeChanges("Released", res.Released))
	b.WriteString(describeChanges("Blocked again", res.Reblocked))
	if next := workflow.ValidNextTaskStatuses(res.Task.Status); len(next) > 0 {
		fmt.Fprintf(&b, "\nNext: %v", next)
	}
	return b.String()
}

// BulkTransitionTasksTool handles the bulk_transition_tasks MCP tool.
type BulkTransitionTasksTool struct {
	svc *service.Service
}

// NewBulkTransitionTasksTool creates a BulkTransitionTasksTool.
func NewBulkTransitionTasksTool(svc *service.Service) *BulkTransitionTasksTool {
	return &BulkTransitionTasksTool{svc: svc}
}

// Definition returns the MCP tool definition for bulk_transition_tasks.
func (t *BulkTransitionTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("bulk_transition_tasks",
		mcp.WithDescription(
			"Move several tasks to the same status at once. All or nothing: "+
				"if any task is missing or cannot make the transition, nothing changes and every offending ID is listed.",
		),
		mcp.WithArray("task_ids",
			mcp.Required(),
			mcp.Description("Tasks to update"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status"), taskStatusEnum()),
	)
}

// Handle processes the bulk_transition_tasks tool call.
func (t *BulkTransitionTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "status"); res != nil {
		return res, nil
	}
	results, err := t.svc.BulkTransitionTasks(ctx, stringSliceArg(req, "task_ids"), workflow.TaskStatus(req.GetString("status", "")))
	if err != nil {
		return toolError("bulk_transition_tasks", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Updated %d tasks", len(results))
	for _, r := range results {
		b.WriteString("\n\n")
		b.WriteString(describeTransition(r))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── Project status ──────────────────────────────────────────────────────────

// TransitionProjectStatusTool handles the transition_project_status MCP tool.
type TransitionProjectStatusTool struct {
	svc *service.Service
}

// NewTransitionProjectStatusTool creates a TransitionProjectStatusTool.
func NewTransitionProjectStatusTool(svc *service.Service) *TransitionProjectStatusTool {
	return &TransitionProjectStatusTool{svc: svc}
}

// Definition returns the MCP tool definition for transition_project_status.
func (t *TransitionProjectStatusTool) Definition() mcp.Tool {
	vals := make([]string, len(workflow.ProjectStatuses))
	for i, s := range workflow.ProjectStatuses {
		vals[i] = string(s)
	}
	return mcp.NewTool("transition_project_status",
		mcp.WithDescription("Change a project's status following the project workflow (quote → queue → ready → in_progress → review → done)."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to update")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status"), mcp.Enum(vals...)),
	)
}

// Handle processes the transition_project_status tool call.
func (t *TransitionProjectStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "project_id", "status"); res != nil {
		return res, nil
	}
	p, err := t.svc.TransitionProjectStatus(ctx, req.GetString("project_id", ""), workflow.ProjectStatus(req.GetString("status", "")))
	if err != nil {
		return toolError("transition_project_status", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Project %q is now %s\nNext: %v",
		p.Name, p.Status.Label(), workflow.ValidNextProjectStatuses(p.Status))), nil
}
