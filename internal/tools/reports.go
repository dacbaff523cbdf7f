package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// ─── ProjectEstimatesTool ────────────────────────────────────────────────────

// ProjectEstimatesTool handles the project_estimates MCP tool.
type ProjectEstimatesTool struct {
	svc *service.Service
}

// NewProjectEstimatesTool creates a ProjectEstimatesTool.
func NewProjectEstimatesTool(svc *service.Service) *ProjectEstimatesTool {
	return &ProjectEstimatesTool{svc: svc}
}

// Definition returns the MCP tool definition for project_estimates.
func (t *ProjectEstimatesTool) Definition() mcp.Tool {
	return mcp.NewTool("project_estimates",
		mcp.WithDescription(
			"Summarize a project's remaining effort as an hour range, time spent and progress. "+
				"Progress is weighted by energy, so large finished tasks count for more.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to summarize")),
	)
}

// Handle processes the project_estimates tool call.
func (t *ProjectEstimatesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "project_id"); res != nil {
		return res, nil
	}
	est, err := t.svc.ProjectEstimates(ctx, req.GetString("project_id", ""))
	if err != nil {
		return toolError("project_estimates", err)
	}
	summary := fmt.Sprintf("Remaining: %s. Spent: %s. Progress: %d%% (%d of %d tasks done)",
		est.EstimatedRange, estimate.FormatDuration(est.TimeSpentMinutes),
		est.ProgressPercent, est.CompletedTaskCount, est.TaskCount)
	return jsonResult(summary, est)
}

// ─── GetTaskTool ─────────────────────────────────────────────────────────────

// GetTaskTool handles the get_task MCP tool.
type GetTaskTool struct {
	svc *service.Service
}

// NewGetTaskTool creates a GetTaskTool.
func NewGetTaskTool(svc *service.Service) *GetTaskTool {
	return &GetTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for get_task.
func (t *GetTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("get_task",
		mcp.WithDescription("Show one task with its blockers and the tasks waiting on it."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to show")),
	)
}

// taskDetail is the get_task payload.
type taskDetail struct {
	*store.Task
	BlockedBy  []string              `json:"blocked_by"`
	Blocking   []string              `json:"blocking"`
	NextStatus []workflow.TaskStatus `json:"next_status"`
}

// Handle processes the get_task tool call.
func (t *GetTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id"); res != nil {
		return res, nil
	}
	id := req.GetString("task_id", "")
	task, err := t.svc.GetTask(ctx, id)
	if err != nil {
		return toolError("get_task", err)
	}
	blockers, dependents, err := t.svc.Dependencies(ctx, id)
	if err != nil {
		return toolError("get_task", err)
	}
	d := taskDetail{
		Task:       task,
		BlockedBy:  refIDs(blockers),
		Blocking:   refIDs(dependents),
		NextStatus: workflow.ValidNextTaskStatuses(task.Status),
	}
	summary := fmt.Sprintf("%s [%s] priority %s", task.Title, task.Status.Label(), workflow.PriorityLabel(task.Priority))
	return jsonResult(summary, d)
}

func refIDs(refs []store.TaskRef) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

// ─── ListTasksTool ───────────────────────────────────────────────────────────

// ListTasksTool handles the list_tasks MCP tool.
type ListTasksTool struct {
	svc *service.Service
}

// NewListTasksTool creates a ListTasksTool.
func NewListTasksTool(svc *service.Service) *ListTasksTool {
	return &ListTasksTool{svc: svc}
}

// Definition returns the MCP tool definition for list_tasks.
func (t *ListTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription(
			"List tasks in board order. Filter by project, phase, status or assignee. "+
				"Set ad_hoc to list only tasks without a project.",
		),
		mcp.WithString("project_id", mcp.Description("Only tasks of this project")),
		mcp.WithString("phase_id", mcp.Description("Only tasks of this phase (requires project_id)")),
		mcp.WithBoolean("unphased", mcp.Description("Only the project's unphased tasks (requires project_id)")),
		mcp.WithBoolean("ad_hoc", mcp.Description("Only tasks without a project")),
		mcp.WithString("status", mcp.Description("Only tasks in this status"), taskStatusEnum()),
		mcp.WithString("assignee_id", mcp.Description("Only tasks assigned to this user")),
	)
}

// Handle processes the list_tasks tool call.
func (t *ListTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := store.TaskFilter{
		ProjectID:  optionalStringArg(req, "project_id"),
		AdHoc:      boolArg(req, "ad_hoc", false),
		Status:     workflow.TaskStatus(strings.TrimSpace(req.GetString("status", ""))),
		AssigneeID: strings.TrimSpace(req.GetString("assignee_id", "")),
	}
	if f.Status != "" {
		if err := workflow.ValidateTaskStatus(f.Status); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	phaseID := optionalStringArg(req, "phase_id")
	if phaseID != nil || boolArg(req, "unphased", false) {
		if f.ProjectID == nil {
			return mcp.NewToolResultError("'phase_id' and 'unphased' require 'project_id'"), nil
		}
		f.Container = &store.Container{Kind: store.KindTask, ScopeID: f.ProjectID, PhaseID: phaseID}
	}

	tasks, err := t.svc.ListTasks(ctx, f)
	if err != nil {
		return toolError("list_tasks", err)
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("No tasks found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Tasks (%d)\n", len(tasks))
	for _, task := range tasks {
		fmt.Fprintf(&b, "\n%d. [%s] %s (`%s`)", task.SortOrder, task.Status.Label(), task.Title, task.ID)
		if task.EstimatedMinutes != nil {
			fmt.Fprintf(&b, " ~%s", estimate.FormatDuration(*task.EstimatedMinutes))
		}
		if task.AssigneeID != nil {
			fmt.Fprintf(&b, " @%s", *task.AssigneeID)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ListPhasesTool ──────────────────────────────────────────────────────────

// ListPhasesTool handles the list_phases MCP tool.
type ListPhasesTool struct {
	svc *service.Service
}

// NewListPhasesTool creates a ListPhasesTool.
func NewListPhasesTool(svc *service.Service) *ListPhasesTool {
	return &ListPhasesTool{svc: svc}
}

// Definition returns the MCP tool definition for list_phases.
func (t *ListPhasesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_phases",
		mcp.WithDescription("List a project's phases in order."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to list")),
	)
}

// Handle processes the list_phases tool call.
func (t *ListPhasesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "project_id"); res != nil {
		return res, nil
	}
	phases, err := t.svc.ListPhases(ctx, req.GetString("project_id", ""))
	if err != nil {
		return toolError("list_phases", err)
	}
	if len(phases) == 0 {
		return mcp.NewToolResultText("No phases yet. Create one with create_phase."), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Phases (%d)\n", len(phases))
	for _, ph := range phases {
		fmt.Fprintf(&b, "\n%d. %s (`%s`)", ph.SortOrder, ph.Name, ph.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ListMilestonesTool ──────────────────────────────────────────────────────

// ListMilestonesTool handles the list_milestones MCP tool.
type ListMilestonesTool struct {
	svc *service.Service
}

// NewListMilestonesTool creates a ListMilestonesTool.
func NewListMilestonesTool(svc *service.Service) *ListMilestonesTool {
	return &ListMilestonesTool{svc: svc}
}

// Definition returns the MCP tool definition for list_milestones.
func (t *ListMilestonesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_milestones",
		mcp.WithDescription("List a project's billing milestones with their status and amount."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to list")),
	)
}

// Handle processes the list_milestones tool call.
func (t *ListMilestonesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "project_id"); res != nil {
		return res, nil
	}
	ms, err := t.svc.ListMilestones(ctx, req.GetString("project_id", ""))
	if err != nil {
		return toolError("list_milestones", err)
	}
	return jsonResult(fmt.Sprintf("%d milestones", len(ms)), ms)
}
