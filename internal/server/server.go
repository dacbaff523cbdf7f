// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it opens the store, builds the notifier
// chain and telemetry, and injects the service into the tools, prompts and
// resources. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/agencyops/internal/config"
	"github.com/HendryAvila/agencyops/internal/notify"
	"github.com/HendryAvila/agencyops/internal/prompts"
	"github.com/HendryAvila/agencyops/internal/resources"
	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/telemetry"
	"github.com/HendryAvila/agencyops/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Tool is what every handler in internal/tools provides.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function flushes telemetry, drains the notifier
// and closes the database. It must be called on shutdown (typically via
// defer) and is always non-nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.MCPServer, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Create shared dependencies ---

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled: cfg.Telemetry.Enabled,
		Stdout:  cfg.Telemetry.Stdout,
	}, "agencyops", Version)
	if err != nil {
		return nil, noop, fmt.Errorf("initializing telemetry: %w", err)
	}
	closers = append(closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	})

	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	closers = append(closers, func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	})

	notifier, closeNotifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	closers = append(closers, closeNotifier)

	svc := service.New(service.Options{
		Store:           st,
		Notifier:        notifier,
		Logger:          logger,
		UnblockPolicy:   cfg.Workflow.UnblockPolicy,
		DefaultEstimate: cfg.Billing.DefaultEstimate,
	})

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"agencyops",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	for _, t := range Tools(svc) {
		s.AddTool(t.Definition(), t.Handle)
	}

	// --- Register prompts ---

	planPrompt := prompts.NewPlanPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(svc)
	s.AddResource(resourceHandler.UnbilledResource(), resourceHandler.HandleUnbilled)
	s.AddResourceTemplate(resourceHandler.EstimatesTemplate(), resourceHandler.HandleEstimates)

	logger.Info("server ready",
		slog.String("db", cfg.DBPath()),
		slog.String("unblock_policy", string(svc.UnblockPolicy())),
	)
	return s, cleanup, nil
}

// Tools returns every MCP tool bound to svc, in registration order.
func Tools(svc *service.Service) []Tool {
	return []Tool{
		// Projects, phases and recipes
		tools.NewCreateProjectTool(svc),
		tools.NewTransitionProjectStatusTool(svc),
		tools.NewCreatePhaseTool(svc),
		tools.NewListPhasesTool(svc),
		tools.NewReorderPhasesTool(svc),
		tools.NewCreateRecipeTool(svc),
		tools.NewCreateRecipeTaskTool(svc),
		tools.NewMoveRecipeTaskTool(svc),

		// Tasks
		tools.NewCreateTaskTool(svc),
		tools.NewUpdateTaskTool(svc),
		tools.NewDeleteTaskTool(svc),
		tools.NewGetTaskTool(svc),
		tools.NewListTasksTool(svc),
		tools.NewMoveTaskTool(svc),
		tools.NewReorderTasksTool(svc),
		tools.NewVerifyOrderingTool(svc),
		tools.NewTransitionTaskStatusTool(svc),
		tools.NewBulkTransitionTasksTool(svc),
		tools.NewLogTimeTool(svc),

		// Dependencies
		tools.NewAddDependencyTool(svc),
		tools.NewRemoveDependencyTool(svc),

		// Estimates and billing
		tools.NewEstimateTaskTool(svc),
		tools.NewProjectEstimatesTool(svc),
		tools.NewBillingAmountTool(svc),
		tools.NewSetTaskBillingTool(svc),
		tools.NewCreateMilestoneTool(svc),
		tools.NewListMilestonesTool(svc),
		tools.NewUpdateMilestoneTool(svc),
		tools.NewTriggerMilestoneTool(svc),
		tools.NewInvoiceMilestoneTool(svc),
		tools.NewBatchInvoiceTool(svc),
	}
}

// buildNotifier chains the log notifier with the optional JSONL event log,
// behind an async queue when configured.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) (notify.Notifier, func(), error) {
	chain := notify.Multi{notify.NewLogNotifier(logger)}
	closeFn := noop

	if cfg.EventLog != "" {
		el, err := notify.OpenEventLog(cfg.EventLog)
		if err != nil {
			return nil, noop, fmt.Errorf("opening event log: %w", err)
		}
		chain = append(chain, el)
		closeFn = func() {
			if err := el.Close(); err != nil {
				logger.Warn("event log close", slog.Any("error", err))
			}
		}
	}

	if !cfg.Async {
		return chain, closeFn, nil
	}
	async := notify.NewAsync(chain, 0, logger)
	return async, func() {
		async.Close()
		closeFn()
	}, nil
}

// noop is the cleanup returned alongside an error.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use agencyops effectively.
func serverInstructions() string {
	return `You have access to agencyops, a project and billing tracker for a small agency.

## MODEL

- Projects move quote → queue → ready → in_progress → review → done, and can be suspended or cancelled.
- A project has ordered phases; each phase has an ordered task list. Tasks without a phase live in
  the project's unphased bucket. Tasks without a project are ad-hoc.
- Recipes are reusable templates with their own phases and task templates.
- Tasks move not_started → in_progress → review → done. Abandoned and blocked are side states.

## ORDERING

Positions are 0-based and always gap-free. move_task clamps out-of-range positions instead of
failing. reorder_tasks and reorder_phases need the complete list of IDs; anything missing,
foreign or duplicated is reported and nothing changes.

## DEPENDENCIES

add_dependency(task_id, blocker_id) blocks task_id until blocker_id is done. Cycles, self edges
and edges across projects are refused. Finishing a blocker releases the tasks that were waiting
on it; reopening a finished blocker blocks them again. A blocked task cannot be started by hand.

## ESTIMATES

Energy (1-5) sets the base time; the mystery factor widens the range. estimate_task shows the
figures for a hypothetical task; project_estimates rolls up a whole project.

## BILLING

Billable tasks with an amount and milestones with an amount are triggered when completed.
An explicit billing_status in the same request always wins over the automatic trigger.
batch_invoice is all or nothing and lists every offending ID by reason.
Read agency://billing/unbilled for everything ready to invoice.

## ERRORS

Tool errors start with the operation and a kind in brackets, e.g. [not_found], [cycle_detected],
[invalid_transition], [validation_error]. Validation errors include the full ID lists as JSON.
Fix the input and retry; do not retry unchanged.`
}
