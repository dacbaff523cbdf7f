package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the agency-status MCP prompt.
// It instructs the AI to review a project's board, blockers and billing.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("agency-status",
		mcp.WithPromptDescription(
			"Review a client project: progress against estimates, blocked work, "+
				"and what is ready to invoice.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project to review"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the agency-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectID := req.Params.Arguments["project_id"]
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}

	return &mcp.GetPromptResult{
		Description: "Project review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please review project `%s`.\n\n"+
						"1. Run `project_estimates` and tell me the remaining hour range and progress\n"+
						"2. Run `list_phases` and `list_tasks` for the project and show the board phase by phase\n"+
						"3. List every blocked task with `get_task`, and name the blockers that are still open\n"+
						"4. Run `verify_ordering` and mention any container that is not dense\n"+
						"5. Run `list_milestones` and read `agency://billing/unbilled`: what can be invoiced now?\n"+
						"6. Finish with the three most useful next actions",
					projectID,
				)),
			},
		},
	}, nil
}
