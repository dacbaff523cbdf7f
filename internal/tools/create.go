package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
)

func mysteryEnum() mcp.PropertyOption {
	return mcp.Enum(string(estimate.MysteryNone), string(estimate.MysteryAverage),
		string(estimate.MysterySignificant), string(estimate.MysteryNoIdea))
}

// ─── Projects ────────────────────────────────────────────────────────────────

// CreateProjectTool handles the create_project MCP tool.
type CreateProjectTool struct {
	svc *service.Service
}

// NewCreateProjectTool creates a CreateProjectTool.
func NewCreateProjectTool(svc *service.Service) *CreateProjectTool {
	return &CreateProjectTool{svc: svc}
}

// Definition returns the MCP tool definition for create_project.
func (t *CreateProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("create_project",
		mcp.WithDescription("Create a client project. New projects start in the quote status."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("hourly_rate", mcp.Description("Hourly rate as a decimal string, used to price tasks without an explicit amount")),
	)
}

// Handle processes the create_project tool call.
func (t *CreateProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "name"); res != nil {
		return res, nil
	}
	rate, _, err := decimalArg(req, "hourly_rate")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := t.svc.CreateProject(ctx, req.GetString("name", ""), rate)
	if err != nil {
		return toolError("create_project", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Project %q created\nID: %s\nStatus: %s", p.Name, p.ID, p.Status.Label())), nil
}

// CreatePhaseTool handles the create_phase MCP tool for project and
// recipe phases.
type CreatePhaseTool struct {
	svc *service.Service
}

// NewCreatePhaseTool creates a CreatePhaseTool.
func NewCreatePhaseTool(svc *service.Service) *CreatePhaseTool {
	return &CreatePhaseTool{svc: svc}
}

// Definition returns the MCP tool definition for create_phase.
func (t *CreatePhaseTool) Definition() mcp.Tool {
	return mcp.NewTool("create_phase",
		mcp.WithDescription("Append a phase to a project or a recipe. Pass exactly one of project_id or recipe_id."),
		mcp.WithString("project_id", mcp.Description("Project that gets the phase")),
		mcp.WithString("recipe_id", mcp.Description("Recipe that gets the phase")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Phase name")),
	)
}

// Handle processes the create_phase tool call.
func (t *CreatePhaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "name"); res != nil {
		return res, nil
	}
	name := req.GetString("name", "")
	projectID, recipeID := optionalStringArg(req, "project_id"), optionalStringArg(req, "recipe_id")

	var (
		ph  *store.Phase
		err error
	)
	switch {
	case projectID != nil && recipeID == nil:
		ph, err = t.svc.CreatePhase(ctx, *projectID, name)
	case recipeID != nil && projectID == nil:
		ph, err = t.svc.CreateRecipePhase(ctx, *recipeID, name)
	default:
		return mcp.NewToolResultError("pass exactly one of 'project_id' or 'recipe_id'"), nil
	}
	if err != nil {
		return toolError("create_phase", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Phase %q created at position %d\nID: %s", ph.Name, ph.SortOrder, ph.ID)), nil
}

// ─── Tasks ───────────────────────────────────────────────────────────────────

// CreateTaskTool handles the create_task MCP tool.
type CreateTaskTool struct {
	svc *service.Service
}

// NewCreateTaskTool creates a CreateTaskTool.
func NewCreateTaskTool(svc *service.Service) *CreateTaskTool {
	return &CreateTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for create_task.
func (t *CreateTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("create_task",
		mcp.WithDescription(
			"Create a task at the end of its list. Without project_id the task is ad-hoc; "+
				"without phase_id it lands in the project's unphased bucket.",
		),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("project_id", mcp.Description("Owning project")),
		mcp.WithString("phase_id", mcp.Description("Phase of the owning project")),
		mcp.WithNumber("priority", mcp.Description("1 (critical) to 5 (trivial); default 3")),
		mcp.WithNumber("energy", mcp.Description("Energy level 1-5")),
		mcp.WithString("mystery_factor", mcp.Description("How much is unknown (default: none)"), mysteryEnum()),
		mcp.WithString("assignee_id", mcp.Description("User the task is assigned to")),
		mcp.WithBoolean("is_billable", mcp.Description("Whether finishing the task bills the client (default: false)")),
		mcp.WithString("billing_amount", mcp.Description("Explicit amount as a decimal string")),
	)
}

// Handle processes the create_task tool call.
func (t *CreateTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "title"); res != nil {
		return res, nil
	}
	amount, _, err := decimalArg(req, "billing_amount")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := t.svc.CreateTask(ctx, service.NewTask{
		ProjectID:      optionalStringArg(req, "project_id"),
		PhaseID:        optionalStringArg(req, "phase_id"),
		Title:          req.GetString("title", ""),
		Priority:       intArg(req, "priority", 0),
		EnergyEstimate: optionalIntArg(req, "energy"),
		MysteryFactor:  req.GetString("mystery_factor", ""),
		AssigneeID:     optionalStringArg(req, "assignee_id"),
		IsBillable:     boolArg(req, "is_billable", false),
		BillingAmount:  amount,
	})
	if err != nil {
		return toolError("create_task", err)
	}
	return jsonResult(fmt.Sprintf("Task %q created at position %d", task.Title, task.SortOrder), task)
}

// UpdateTaskTool handles the update_task MCP tool.
type UpdateTaskTool struct {
	svc *service.Service
}

// NewUpdateTaskTool creates an UpdateTaskTool.
func NewUpdateTaskTool(svc *service.Service) *UpdateTaskTool {
	return &UpdateTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for update_task.
func (t *UpdateTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("update_task",
		mcp.WithDescription(
			"Edit a task's details. Only the given fields change. Pass an empty assignee_id to unassign. "+
				"Use transition_task_status, move_task and set_task_billing for status, position and billing.",
		),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to edit")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithNumber("priority", mcp.Description("1 (critical) to 5 (trivial)")),
		mcp.WithNumber("energy", mcp.Description("Energy level 1-5")),
		mcp.WithString("mystery_factor", mcp.Description("How much is unknown"), mysteryEnum()),
		mcp.WithString("assignee_id", mcp.Description("New assignee; empty unassigns")),
	)
}

// Handle processes the update_task tool call.
func (t *UpdateTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id"); res != nil {
		return res, nil
	}
	args := req.GetArguments()
	u := store.TaskUpdate{
		Title:    optionalStringArg(req, "title"),
		Priority: optionalIntArg(req, "priority"),
	}
	if _, ok := args["energy"]; ok {
		e := optionalIntArg(req, "energy")
		u.EnergyEstimate = &e
	}
	if s := optionalStringArg(req, "mystery_factor"); s != nil {
		m, err := estimate.ParseMysteryFactor(*s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		u.MysteryFactor = &m
	}
	if _, ok := args["assignee_id"]; ok {
		a := optionalStringArg(req, "assignee_id")
		u.AssigneeID = &a
	}

	task, err := t.svc.UpdateTask(ctx, req.GetString("task_id", ""), u)
	if err != nil {
		return toolError("update_task", err)
	}
	return jsonResult(fmt.Sprintf("Task %q updated", task.Title), task)
}

// DeleteTaskTool handles the delete_task MCP tool.
type DeleteTaskTool struct {
	svc *service.Service
}

// NewDeleteTaskTool creates a DeleteTaskTool.
func NewDeleteTaskTool(svc *service.Service) *DeleteTaskTool {
	return &DeleteTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for delete_task.
func (t *DeleteTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_task",
		mcp.WithDescription(
			"Delete a task. Its dependency edges go with it, tasks it was blocking are released, "+
				"and the remaining tasks of its list close the gap.",
		),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to delete")),
	)
}

// Handle processes the delete_task tool call.
func (t *DeleteTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id"); res != nil {
		return res, nil
	}
	id := req.GetString("task_id", "")
	released, err := t.svc.DeleteTask(ctx, id)
	if err != nil {
		return toolError("delete_task", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %s deleted", id) + describeChanges("Released", released)), nil
}

// LogTimeTool handles the log_time MCP tool.
type LogTimeTool struct {
	svc *service.Service
}

// NewLogTimeTool creates a LogTimeTool.
func NewLogTimeTool(svc *service.Service) *LogTimeTool {
	return &LogTimeTool{svc: svc}
}

// Definition returns the MCP tool definition for log_time.
func (t *LogTimeTool) Definition() mcp.Tool {
	return mcp.NewTool("log_time",
		mcp.WithDescription("Record minutes spent on a task. Logged time feeds the actual estimate and project totals."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task worked on")),
		mcp.WithNumber("minutes", mcp.Required(), mcp.Description("Minutes spent, greater than zero")),
	)
}

// Handle processes the log_time tool call.
func (t *LogTimeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "task_id"); res != nil {
		return res, nil
	}
	entry, err := t.svc.LogTime(ctx, req.GetString("task_id", ""), intArg(req, "minutes", 0))
	if err != nil {
		return toolError("log_time", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Logged %s on task %s", estimate.FormatDuration(entry.Minutes), entry.TaskID)), nil
}

// ─── Milestones ──────────────────────────────────────────────────────────────

// CreateMilestoneTool handles the create_milestone MCP tool.
type CreateMilestoneTool struct {
	svc *service.Service
}

// NewCreateMilestoneTool creates a CreateMilestoneTool.
func NewCreateMilestoneTool(svc *service.Service) *CreateMilestoneTool {
	return &CreateMilestoneTool{svc: svc}
}

// Definition returns the MCP tool definition for create_milestone.
func (t *CreateMilestoneTool) Definition() mcp.Tool {
	return mcp.NewTool("create_milestone",
		mcp.WithDescription("Create a pending billing milestone on a project."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Owning project")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Milestone name")),
		mcp.WithString("billing_amount", mcp.Description("Amount as a decimal string")),
	)
}

// Handle processes the create_milestone tool call.
func (t *CreateMilestoneTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "project_id", "name"); res != nil {
		return res, nil
	}
	amount, _, err := decimalArg(req, "billing_amount")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := t.svc.CreateMilestone(ctx, req.GetString("project_id", ""), req.GetString("name", ""), amount)
	if err != nil {
		return toolError("create_milestone", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Milestone %q created (%s)\nID: %s", m.Name, describeAmount(m.BillingAmount), m.ID)), nil
}

// ─── Recipes ─────────────────────────────────────────────────────────────────

// CreateRecipeTool handles the create_recipe MCP tool.
type CreateRecipeTool struct {
	svc *service.Service
}

// NewCreateRecipeTool creates a CreateRecipeTool.
func NewCreateRecipeTool(svc *service.Service) *CreateRecipeTool {
	return &CreateRecipeTool{svc: svc}
}

// Definition returns the MCP tool definition for create_recipe.
func (t *CreateRecipeTool) Definition() mcp.Tool {
	return mcp.NewTool("create_recipe",
		mcp.WithDescription("Create a reusable project template. Add phases with create_phase and tasks with create_recipe_task."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Recipe name")),
	)
}

// Handle processes the create_recipe tool call.
func (t *CreateRecipeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "name"); res != nil {
		return res, nil
	}
	r, err := t.svc.CreateRecipe(ctx, req.GetString("name", ""))
	if err != nil {
		return toolError("create_recipe", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Recipe %q created\nID: %s", r.Name, r.ID)), nil
}

// CreateRecipeTaskTool handles the create_recipe_task MCP tool.
type CreateRecipeTaskTool struct {
	svc *service.Service
}

// NewCreateRecipeTaskTool creates a CreateRecipeTaskTool.
func NewCreateRecipeTaskTool(svc *service.Service) *CreateRecipeTaskTool {
	return &CreateRecipeTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for create_recipe_task.
func (t *CreateRecipeTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("create_recipe_task",
		mcp.WithDescription("Append a task template to a phase of a recipe."),
		mcp.WithString("recipe_id", mcp.Required(), mcp.Description("Owning recipe")),
		mcp.WithString("phase_id", mcp.Required(), mcp.Description("Recipe phase")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithNumber("energy", mcp.Description("Energy level 1-5")),
		mcp.WithString("mystery_factor", mcp.Description("How much is unknown (default: none)"), mysteryEnum()),
	)
}

// Handle processes the create_recipe_task tool call.
func (t *CreateRecipeTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := required(req, "recipe_id", "phase_id", "title"); res != nil {
		return res, nil
	}
	rt, err := t.svc.CreateRecipeTask(ctx, service.NewRecipeTask{
		RecipeID:       req.GetString("recipe_id", ""),
		PhaseID:        req.GetString("phase_id", ""),
		Title:          req.GetString("title", ""),
		EnergyEstimate: optionalIntArg(req, "energy"),
		MysteryFactor:  req.GetString("mystery_factor", ""),
	})
	if err != nil {
		return toolError("create_recipe_task", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Recipe task %q created at position %d\nID: %s", rt.Title, rt.SortOrder, rt.ID)), nil
}
