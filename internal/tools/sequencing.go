package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/agencyops/internal/service"
)

// ─── MoveTaskTool ────────────────────────────────────────────────────────────

// MoveTaskTool handles the move_task MCP tool.
type MoveTaskTool struct {
	svc *service.Service
}

// NewMoveTaskTool creates a MoveTaskTool.
func NewMoveTaskTool(svc *service.Service) *MoveTaskTool {
	return &MoveTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for move_task.
func (t *MoveTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("move_task",
		mcp.WithDescription(
			"Move a task to a position inside a phase of its project, or into the unphased bucket. "+
				"Positions are 0-based and clamped to the valid range; the other tasks shift to keep the order gap-free.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to move"),
		),
		mcp.WithString("phase_id",
			mcp.Description("Target phase of the same project. Omit for the unphased bucket."),
		),
		mcp.WithNumber("order",
			mcp.Required(),
			mcp.Description("Target 0-based position"),
		),
	)
}

// Handle processes the move_task tool call.
func (t *MoveTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id"); res != nil {
		return res, nil
	}
	task, err := t.svc.MoveTask(ctx, req.GetString("task_id", ""), optionalStringArg(req, "phase_id"), intArg(req, "order", 0))
	if err != nil {
		return toolError("move_task", err)
	}
	phase := "unphased"
	if task.PhaseID != nil {
		phase = "phase " + *task.PhaseID
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %q moved to %s at position %d", task.Title, phase, task.SortOrder)), nil
}

// ─── MoveRecipeTaskTool ──────────────────────────────────────────────────────

// MoveRecipeTaskTool handles the move_recipe_task MCP tool.
type MoveRecipeTaskTool struct {
	svc *service.Service
}

// NewMoveRecipeTaskTool creates a MoveRecipeTaskTool.
func NewMoveRecipeTaskTool(svc *service.Service) *MoveRecipeTaskTool {
	return &MoveRecipeTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for move_recipe_task.
func (t *MoveRecipeTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("move_recipe_task",
		mcp.WithDescription("Move a recipe task template to a position inside a phase of the same recipe."),
		mcp.WithString("recipe_id", mcp.Required(), mcp.Description("Recipe that owns the task")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Recipe task to move")),
		mcp.WithString("phase_id", mcp.Required(), mcp.Description("Target recipe phase")),
		mcp.WithNumber("order", mcp.Required(), mcp.Description("Target 0-based position")),
	)
}

// Handle processes the move_recipe_task tool call.
func (t *MoveRecipeTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "recipe_id", "task_id", "phase_id"); res != nil {
		return res, nil
	}
	rt, err := t.svc.MoveRecipeTask(ctx,
		req.GetString("recipe_id", ""),
		req.GetString("task_id", ""),
		req.GetString("phase_id", ""),
		intArg(req, "order", 0),
	)
	if err != nil {
		return toolError("move_recipe_task", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Recipe task %q moved to phase %s at position %d", rt.Title, rt.PhaseID, rt.SortOrder)), nil
}

// ─── ReorderTasksTool ────────────────────────────────────────────────────────

// ReorderTasksTool handles the reorder_tasks MCP tool.
type ReorderTasksTool struct {
	svc *service.Service
}

// NewReorderTasksTool creates a ReorderTasksTool.
func NewReorderTasksTool(svc *service.Service) *ReorderTasksTool {
	return &ReorderTasksTool{svc: svc}
}

// Definition returns the MCP tool definition for reorder_tasks.
func (t *ReorderTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("reorder_tasks",
		mcp.WithDescription(
			"Rewrite the full order of one task list. `task_ids` must contain every task of the list exactly once; "+
				"otherwise nothing changes and the foreign, missing and duplicate IDs are reported.",
		),
		mcp.WithString("project_id", mcp.Description("Project of the list. Omit for ad-hoc tasks.")),
		mcp.WithString("phase_id", mcp.Description("Phase of the list. Omit for the unphased bucket.")),
		mcp.WithArray("task_ids",
			mcp.Required(),
			mcp.Description("Task IDs in their new order"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the reorder_tasks tool call.
func (t *ReorderTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := stringSliceArg(req, "task_ids")
	err := t.svc.ReorderTasks(ctx, optionalStringArg(req, "project_id"), optionalStringArg(req, "phase_id"), ids)
	if err != nil {
		return toolError("reorder_tasks", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reordered %d tasks", len(ids))), nil
}

// ─── ReorderPhasesTool ───────────────────────────────────────────────────────

// ReorderPhasesTool handles the reorder_phases MCP tool for project and
// recipe phases.
type ReorderPhasesTool struct {
	svc *service.Service
}

// NewReorderPhasesTool creates a ReorderPhasesTool.
func NewReorderPhasesTool(svc *service.Service) *ReorderPhasesTool {
	return &ReorderPhasesTool{svc: svc}
}

// Definition returns the MCP tool definition for reorder_phases.
func (t *ReorderPhasesTool) Definition() mcp.Tool {
	return mcp.NewTool("reorder_phases",
		mcp.WithDescription("Rewrite the phase order of a project or a recipe. Pass exactly one of project_id or recipe_id."),
		mcp.WithString("project_id", mcp.Description("Project whose phases are reordered")),
		mcp.WithString("recipe_id", mcp.Description("Recipe whose phases are reordered")),
		mcp.WithArray("phase_ids",
			mcp.Required(),
			mcp.Description("Every phase ID in its new order"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the reorder_phases tool call.
func (t *ReorderPhasesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, recipeID := optionalStringArg(req, "project_id"), optionalStringArg(req, "recipe_id")
	ids := stringSliceArg(req, "phase_ids")

	var err error
	switch {
	case projectID != nil && recipeID == nil:
		err = t.svc.ReorderPhases(ctx, *projectID, ids)
	case recipeID != nil && projectID == nil:
		err = t.svc.ReorderRecipePhases(ctx, *recipeID, ids)
	default:
		return mcp.NewToolResultError("pass exactly one of 'project_id' or 'recipe_id'"), nil
	}
	if err != nil {
		return toolError("reorder_phases", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reordered %d phases", len(ids))), nil
}

// ─── VerifyOrderingTool ──────────────────────────────────────────────────────

// VerifyOrderingTool handles the verify_ordering MCP tool.
type VerifyOrderingTool struct {
	svc *service.Service
}

// NewVerifyOrderingTool creates a VerifyOrderingTool.
func NewVerifyOrderingTool(svc *service.Service) *VerifyOrderingTool {
	return &VerifyOrderingTool{svc: svc}
}

// Definition returns the MCP tool definition for verify_ordering.
func (t *VerifyOrderingTool) Definition() mcp.Tool {
	return mcp.NewTool("verify_ordering",
		mcp.WithDescription("Check that the phases and every task list of a project are numbered 0..n-1 without gaps or duplicates."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to check")),
	)
}

// Handle processes the verify_ordering tool call.
func (t *VerifyOrderingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "project_id"); res != nil {
		return res, nil
	}
	checks, err := t.svc.VerifyOrdering(ctx, req.GetString("project_id", ""))
	if err != nil {
		return toolError("verify_ordering", err)
	}
	broken := 0
	for _, c := range checks {
		if c.Problem != "" {
			broken++
		}
	}
	summary := fmt.Sprintf("All %d containers are dense", len(checks))
	if broken > 0 {
		summary = fmt.Sprintf("%d of %d containers are NOT dense", broken, len(checks))
	}
	return jsonResult(summary, checks)
}
