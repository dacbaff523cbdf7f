// Package prompts implements MCP prompt handlers for agencyops.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanPrompt handles the agency-plan MCP prompt.
// It guides the AI through quoting and structuring a new client project.
type PlanPrompt struct{}

// NewPlanPrompt creates a PlanPrompt.
func NewPlanPrompt() *PlanPrompt {
	return &PlanPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("agency-plan",
		mcp.WithPromptDescription(
			"Plan a new client project: phases, tasks with energy estimates, "+
				"dependencies and billing milestones, ending with a quote.",
		),
		mcp.WithArgument("project_name",
			mcp.ArgumentDescription("Name of the client project"),
		),
		mcp.WithArgument("hourly_rate",
			mcp.ArgumentDescription("Hourly rate used to price tasks, e.g. 95.00. Leave empty to bill by milestone only."),
		),
	)
}

// Handle processes the agency-plan prompt request.
func (p *PlanPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectName := "new-project"
	rate := ""
	if args := req.Params.Arguments; args != nil {
		if name, ok := args["project_name"]; ok && name != "" {
			projectName = name
		}
		rate = args["hourly_rate"]
	}

	billing := "Ask me which milestones the client pays for and create them with `create_milestone`."
	if rate != "" {
		billing = fmt.Sprintf("Tasks are priced at %s/h unless they carry an explicit amount. "+
			"Use `billing_amount` on the largest tasks to sanity-check the quote.", rate)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan project: %s", projectName),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to plan a new client project called '%s'.\n\n"+
						"Please:\n"+
						"1. Run `create_project` with name='%s' and hourly_rate='%s'\n"+
						"2. Ask me for the main phases and create them in order with `create_phase`\n"+
						"3. For each phase, ask me for the tasks and create them with `create_task`, "+
						"setting energy (1-5) and mystery_factor for each\n"+
						"4. Ask which tasks depend on others and record them with `add_dependency`\n"+
						"5. %s\n"+
						"6. Run `project_estimates` and present the quote as an hour range",
					projectName, projectName, rate, billing,
				)),
			},
		},
	}, nil
}
