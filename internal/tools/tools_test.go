package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// --- Test helpers ---

// newTestService opens a fresh store in a temp dir.
func newTestService(t *testing.T) (*service.Service, context.Context) {
	t.Helper()
	s, err := store.Open(store.Config{DataDir: t.TempDir(), File: "tools.db"})
	if err != nil {
		t.Fatalf("setup: open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return service.New(service.Options{Store: s}), service.WithActor(context.Background(), "tester")
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// isErrorResult checks if a CallToolResult is an error result.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustProject(t *testing.T, svc *service.Service, ctx context.Context) *store.Project {
	t.Helper()
	p, err := svc.CreateProject(ctx, "Bakery site", moneyArg(t, "100"))
	if err != nil {
		t.Fatalf("setup: create project: %v", err)
	}
	return p
}

func mustTask(t *testing.T, svc *service.Service, ctx context.Context, projectID *string, title string) *store.Task {
	t.Helper()
	task, err := svc.CreateTask(ctx, service.NewTask{ProjectID: projectID, Title: title})
	if err != nil {
		t.Fatalf("setup: create task: %v", err)
	}
	return task
}

func moneyArg(t *testing.T, s string) decimal.NullDecimal {
	t.Helper()
	d, _, err := decimalArg(call(map[string]interface{}{"v": s}), "v")
	if err != nil {
		t.Fatalf("setup: parse %q: %v", s, err)
	}
	return d
}

// --- Argument helpers ---

func TestStringSliceArg(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want []string
	}{
		{"json array", []interface{}{"a", " b ", "", 3}, []string{"a", "b"}},
		{"string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"csv", "a, b,,c", []string{"a", "b", "c"}},
		{"missing", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{}
			if tt.in != nil {
				args["ids"] = tt.in
			}
			got := stringSliceArg(call(args), "ids")
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("stringSliceArg() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecimalArg(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		present bool
		valid   bool
		want    string
		wantErr bool
	}{
		{"missing", map[string]interface{}{}, false, false, "", false},
		{"null clears", map[string]interface{}{"amount": nil}, true, false, "", false},
		{"empty clears", map[string]interface{}{"amount": ""}, true, false, "", false},
		{"string", map[string]interface{}{"amount": "1500.50"}, true, true, "1500.5", false},
		{"number", map[string]interface{}{"amount": 250.0}, true, true, "250", false},
		{"garbage", map[string]interface{}{"amount": "lots"}, true, false, "", true},
		{"wrong type", map[string]interface{}{"amount": true}, true, false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, present, err := decimalArg(call(tt.args), "amount")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if present != tt.present {
				t.Errorf("present = %v, want %v", present, tt.present)
			}
			if got.Valid != tt.valid {
				t.Fatalf("valid = %v, want %v", got.Valid, tt.valid)
			}
			if tt.valid && got.Decimal.String() != tt.want {
				t.Errorf("amount = %s, want %s", got.Decimal, tt.want)
			}
		})
	}
}

// --- Sequencing tools ---

func TestMoveTaskTool_Handle(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	ph, err := svc.CreatePhase(ctx, p.ID, "Design")
	if err != nil {
		t.Fatalf("setup: create phase: %v", err)
	}
	task := mustTask(t, svc, ctx, &p.ID, "Wireframes")

	tool := NewMoveTaskTool(svc)
	result, err := tool.Handle(ctx, call(map[string]interface{}{
		"task_id":  task.ID,
		"phase_id": ph.ID,
		"order":    float64(42),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("unexpected error result: %s", getResultText(result))
	}
	text := getResultText(result)
	if !strings.Contains(text, "phase "+ph.ID) || !strings.Contains(text, "position 0") {
		t.Errorf("result should report the clamped position in the new phase, got: %s", text)
	}
}

func TestMoveTaskTool_Handle_Errors(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	other := mustProject(t, svc, ctx)
	foreign, err := svc.CreatePhase(ctx, other.ID, "Elsewhere")
	if err != nil {
		t.Fatalf("setup: create phase: %v", err)
	}
	task := mustTask(t, svc, ctx, &p.ID, "Copy")

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing task_id", map[string]interface{}{"order": float64(0)}, "'task_id' is required"},
		{"unknown task", map[string]interface{}{"task_id": "nope", "order": float64(0)}, "[not_found]"},
		{"foreign phase", map[string]interface{}{"task_id": task.ID, "phase_id": foreign.ID, "order": float64(0)}, "[invalid_container]"},
	}
	tool := NewMoveTaskTool(svc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(ctx, call(tt.args))
			if err != nil {
				t.Fatalf("domain errors must be tool results, got: %v", err)
			}
			if !isErrorResult(result) {
				t.Fatalf("expected error result, got: %s", getResultText(result))
			}
			if !strings.Contains(getResultText(result), tt.want) {
				t.Errorf("error should contain %q, got: %s", tt.want, getResultText(result))
			}
		})
	}
}

func TestReorderTasksTool_ReportsMembership(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	a := mustTask(t, svc, ctx, &p.ID, "a")
	b := mustTask(t, svc, ctx, &p.ID, "b")
	mustTask(t, svc, ctx, &p.ID, "c")

	tool := NewReorderTasksTool(svc)
	result, err := tool.Handle(ctx, call(map[string]interface{}{
		"project_id": p.ID,
		"task_ids":   []interface{}{b.ID, a.ID, "ghost"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for an incomplete list")
	}
	text := getResultText(result)
	for _, want := range []string{"[validation_error]", `"foreign"`, "ghost", `"missing"`} {
		if !strings.Contains(text, want) {
			t.Errorf("error should contain %q, got: %s", want, text)
		}
	}
}

func TestReorderPhasesTool_NeedsOneScope(t *testing.T) {
	svc, ctx := newTestService(t)
	tool := NewReorderPhasesTool(svc)
	result, err := tool.Handle(ctx, call(map[string]interface{}{
		"project_id": "p",
		"recipe_id":  "r",
		"phase_ids":  []interface{}{"x"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "exactly one") {
		t.Errorf("expected scope error, got: %s", getResultText(result))
	}
}

func TestVerifyOrderingTool_Handle(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	mustTask(t, svc, ctx, &p.ID, "a")
	mustTask(t, svc, ctx, &p.ID, "b")

	result, err := NewVerifyOrderingTool(svc).Handle(ctx, call(map[string]interface{}{"project_id": p.ID}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(getResultText(result), "are dense") {
		t.Errorf("fresh project should be dense, got: %s", getResultText(result))
	}
}

// --- Dependency and status tools ---

func TestDependencyTools_BlockAndRelease(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	blocker := mustTask(t, svc, ctx, &p.ID, "API")
	waiting := mustTask(t, svc, ctx, &p.ID, "UI")

	add := NewAddDependencyTool(svc)
	result, err := add.Handle(ctx, call(map[string]interface{}{"task_id": waiting.ID, "blocker_id": blocker.ID}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("add_dependency failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "not_started → blocked") {
		t.Errorf("add should report the block, got: %s", getResultText(result))
	}

	result, _ = add.Handle(ctx, call(map[string]interface{}{"task_id": blocker.ID, "blocker_id": waiting.ID}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "[cycle_detected]") {
		t.Errorf("reverse edge should be a cycle, got: %s", getResultText(result))
	}

	result, _ = add.Handle(ctx, call(map[string]interface{}{"task_id": blocker.ID, "blocker_id": blocker.ID}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "[invalid_edge]") {
		t.Errorf("self edge should be invalid, got: %s", getResultText(result))
	}

	result, err = NewRemoveDependencyTool(svc).Handle(ctx, call(map[string]interface{}{"task_id": waiting.ID, "blocker_id": blocker.ID}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("remove_dependency failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "blocked → not_started") {
		t.Errorf("remove should report the release, got: %s", getResultText(result))
	}
}

func TestTransitionTaskStatusTool_Handle(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	task := mustTask(t, svc, ctx, &p.ID, "Launch")

	tool := NewTransitionTaskStatusTool(svc)
	result, err := tool.Handle(ctx, call(map[string]interface{}{"task_id": task.ID, "status": "done"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "[invalid_transition]") {
		t.Errorf("not_started -> done should be refused, got: %s", getResultText(result))
	}

	result, err = tool.Handle(ctx, call(map[string]interface{}{"task_id": task.ID, "status": "in_progress"}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("start failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "Next:") {
		t.Errorf("result should list next statuses, got: %s", getResultText(result))
	}
}

func TestBulkTransitionTasksTool_AllOrNothing(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	a := mustTask(t, svc, ctx, &p.ID, "a")
	b := mustTask(t, svc, ctx, &p.ID, "b")

	result, err := NewBulkTransitionTasksTool(svc).Handle(ctx, call(map[string]interface{}{
		"task_ids": []interface{}{a.ID, b.ID, "ghost"},
		"status":   "in_progress",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "ghost") {
		t.Fatalf("expected the missing ID to be reported, got: %s", getResultText(result))
	}

	got, err := svc.GetTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != workflow.TaskNotStarted {
		t.Errorf("failed batch must not change tasks, status = %s", got.Status)
	}
}

func TestTransitionProjectStatusTool_Handle(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)

	result, err := NewTransitionProjectStatusTool(svc).Handle(ctx, call(map[string]interface{}{"project_id": p.ID, "status": "queue"}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("transition failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "is now") {
		t.Errorf("unexpected result: %s", getResultText(result))
	}
}

// --- Billing tools ---

func TestEstimateTaskTool_Handle(t *testing.T) {
	svc, ctx := newTestService(t)
	result, err := NewEstimateTaskTool(svc).Handle(ctx, call(map[string]interface{}{
		"energy":         float64(3),
		"mystery_factor": "average",
		"actual_minutes": float64(50),
	}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("estimate failed: %v %s", err, getResultText(result))
	}
	text := getResultText(result)
	for _, want := range []string{`"low": 60`, `"mid": 72`, `"high": 84`, `"actual": 50`} {
		if !strings.Contains(text, want) {
			t.Errorf("result should contain %s, got: %s", want, text)
		}
	}

	result, _ = NewEstimateTaskTool(svc).Handle(ctx, call(map[string]interface{}{"energy": float64(9)}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "[invalid_argument]") {
		t.Errorf("energy 9 should be rejected, got: %s", getResultText(result))
	}
}

func TestBatchInvoiceTool_ReportsEveryOffender(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	m, err := svc.CreateMilestone(ctx, p.ID, "Kickoff", moneyArg(t, "500"))
	if err != nil {
		t.Fatalf("setup: create milestone: %v", err)
	}
	open := mustTask(t, svc, ctx, &p.ID, "open")

	tool := NewBatchInvoiceTool(svc)
	result, err := tool.Handle(ctx, call(map[string]interface{}{}))
	if err != nil || !isErrorResult(result) {
		t.Fatalf("empty batch should be refused, got: %v %s", err, getResultText(result))
	}

	result, err = tool.Handle(ctx, call(map[string]interface{}{
		"milestone_ids": []interface{}{m.ID},
		"task_ids":      []interface{}{open.ID, "ghost"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	text := getResultText(result)
	for _, want := range []string{"[validation_error]", m.ID, open.ID, "ghost"} {
		if !strings.Contains(text, want) {
			t.Errorf("error should contain %q, got: %s", want, text)
		}
	}

	if _, err := NewTriggerMilestoneTool(svc).Handle(ctx, call(map[string]interface{}{"milestone_id": m.ID})); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	result, err = tool.Handle(ctx, call(map[string]interface{}{"milestone_ids": []interface{}{m.ID}}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("batch failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "Invoiced 1 milestones and 0 tasks") {
		t.Errorf("unexpected result: %s", getResultText(result))
	}
}

func TestUpdateMilestoneTool_CompletionTriggers(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	m, err := svc.CreateMilestone(ctx, p.ID, "Beta", moneyArg(t, "1200"))
	if err != nil {
		t.Fatalf("setup: create milestone: %v", err)
	}

	result, err := NewUpdateMilestoneTool(svc).Handle(ctx, call(map[string]interface{}{
		"milestone_id": m.ID,
		"completed":    true,
	}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("update failed: %v %s", err, getResultText(result))
	}
	text := getResultText(result)
	if !strings.Contains(text, "billing triggered") || !strings.Contains(text, "Completion triggered billing") {
		t.Errorf("completion should trigger billing, got: %s", text)
	}
}

func TestMilestoneStepTools_WrongState(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	m, err := svc.CreateMilestone(ctx, p.ID, "Final", moneyArg(t, "900"))
	if err != nil {
		t.Fatalf("setup: create milestone: %v", err)
	}

	result, err := NewInvoiceMilestoneTool(svc).Handle(ctx, call(map[string]interface{}{"milestone_id": m.ID}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isErrorResult(result) {
		t.Errorf("invoicing a pending milestone should fail, got: %s", getResultText(result))
	}
}

func TestBillingAmountTool_UsesHourlyRate(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	energy := 3
	task, err := svc.CreateTask(ctx, service.NewTask{ProjectID: &p.ID, Title: "Logo", EnergyEstimate: &energy, MysteryFactor: "average"})
	if err != nil {
		t.Fatalf("setup: create task: %v", err)
	}

	tests := []struct {
		kind string
		want string
	}{
		{"", "120.00"},
		{"low", "100.00"},
		{"high", "140.00"},
	}
	tool := NewBillingAmountTool(svc)
	for _, tt := range tests {
		t.Run("kind="+tt.kind, func(t *testing.T) {
			result, err := tool.Handle(ctx, call(map[string]interface{}{"task_id": task.ID, "estimate_type": tt.kind}))
			if err != nil || isErrorResult(result) {
				t.Fatalf("billing_amount failed: %v %s", err, getResultText(result))
			}
			if !strings.Contains(getResultText(result), tt.want) {
				t.Errorf("amount should be %s, got: %s", tt.want, getResultText(result))
			}
		})
	}
}

func TestSetTaskBillingTool_Handle(t *testing.T) {
	svc, ctx := newTestService(t)
	task := mustTask(t, svc, ctx, nil, "Retainer hours")

	result, err := NewSetTaskBillingTool(svc).Handle(ctx, call(map[string]interface{}{
		"task_id":        task.ID,
		"is_billable":    true,
		"billing_amount": "75",
	}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("set_task_billing failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "billable, billing pending, 75.00") {
		t.Errorf("unexpected result: %s", getResultText(result))
	}
}

// --- Create and report tools ---

func TestCreateTaskTool_AdHoc(t *testing.T) {
	svc, ctx := newTestService(t)
	result, err := NewCreateTaskTool(svc).Handle(ctx, call(map[string]interface{}{
		"title":          "Call the printer",
		"energy":         float64(1),
		"mystery_factor": "none",
	}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("create_task failed: %v %s", err, getResultText(result))
	}
	text := getResultText(result)
	if !strings.Contains(text, "position 0") || strings.Contains(text, `"project_id"`) {
		t.Errorf("ad-hoc task should be first and projectless, got: %s", text)
	}
}

func TestCreateTaskTool_Validation(t *testing.T) {
	svc, ctx := newTestService(t)
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing title", map[string]interface{}{}, "'title' is required"},
		{"bad mystery", map[string]interface{}{"title": "x", "mystery_factor": "huge"}, "[invalid_argument]"},
		{"bad amount", map[string]interface{}{"title": "x", "billing_amount": "lots"}, "decimal amount"},
		{"unknown project", map[string]interface{}{"title": "x", "project_id": "ghost"}, "[not_found]"},
		{"phase without project", map[string]interface{}{"title": "x", "phase_id": "ph"}, "[invalid_container]"},
	}
	tool := NewCreateTaskTool(svc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(ctx, call(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !isErrorResult(result) || !strings.Contains(getResultText(result), tt.want) {
				t.Errorf("expected %q, got: %s", tt.want, getResultText(result))
			}
		})
	}
}

func TestUpdateTaskTool_Unassign(t *testing.T) {
	svc, ctx := newTestService(t)
	who := "ana"
	task, err := svc.CreateTask(ctx, service.NewTask{Title: "Proofread", AssigneeID: &who})
	if err != nil {
		t.Fatalf("setup: create task: %v", err)
	}

	result, err := NewUpdateTaskTool(svc).Handle(ctx, call(map[string]interface{}{
		"task_id":     task.ID,
		"title":       "Proofread v2",
		"assignee_id": "",
	}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("update_task failed: %v %s", err, getResultText(result))
	}
	got, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Title != "Proofread v2" || got.AssigneeID != nil {
		t.Errorf("got title %q assignee %v", got.Title, got.AssigneeID)
	}
}

func TestDeleteTaskTool_ReleasesDependents(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	blocker := mustTask(t, svc, ctx, &p.ID, "blocker")
	waiting := mustTask(t, svc, ctx, &p.ID, "waiting")
	if _, err := svc.AddDependency(ctx, waiting.ID, blocker.ID); err != nil {
		t.Fatalf("setup: add dependency: %v", err)
	}

	result, err := NewDeleteTaskTool(svc).Handle(ctx, call(map[string]interface{}{"task_id": blocker.ID}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("delete_task failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "Released") {
		t.Errorf("delete should report released tasks, got: %s", getResultText(result))
	}
}

func TestLogTimeAndProjectEstimates(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	task := mustTask(t, svc, ctx, &p.ID, "Photos")

	result, err := NewLogTimeTool(svc).Handle(ctx, call(map[string]interface{}{"task_id": task.ID, "minutes": float64(90)}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("log_time failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), "1h 30m") {
		t.Errorf("unexpected result: %s", getResultText(result))
	}

	result, _ = NewLogTimeTool(svc).Handle(ctx, call(map[string]interface{}{"task_id": task.ID, "minutes": float64(0)}))
	if !isErrorResult(result) {
		t.Error("zero minutes should be rejected")
	}

	result, err = NewProjectEstimatesTool(svc).Handle(ctx, call(map[string]interface{}{"project_id": p.ID}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("project_estimates failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), `"time_spent_minutes": 90`) {
		t.Errorf("estimates should include logged time, got: %s", getResultText(result))
	}
}

func TestListTasksTool_Filters(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	mustTask(t, svc, ctx, &p.ID, "in project")
	mustTask(t, svc, ctx, nil, "ad-hoc")

	tool := NewListTasksTool(svc)
	result, err := tool.Handle(ctx, call(map[string]interface{}{"ad_hoc": true}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("list_tasks failed: %v %s", err, getResultText(result))
	}
	text := getResultText(result)
	if !strings.Contains(text, "ad-hoc") || strings.Contains(text, "in project") {
		t.Errorf("ad_hoc filter leaked project tasks: %s", text)
	}

	result, _ = tool.Handle(ctx, call(map[string]interface{}{"unphased": true}))
	if !isErrorResult(result) {
		t.Error("unphased without project_id should be rejected")
	}

	result, _ = tool.Handle(ctx, call(map[string]interface{}{"status": "sleeping"}))
	if !isErrorResult(result) {
		t.Error("unknown status should be rejected")
	}
}

func TestGetTaskTool_ShowsEdges(t *testing.T) {
	svc, ctx := newTestService(t)
	p := mustProject(t, svc, ctx)
	blocker := mustTask(t, svc, ctx, &p.ID, "blocker")
	waiting := mustTask(t, svc, ctx, &p.ID, "waiting")
	if _, err := svc.AddDependency(ctx, waiting.ID, blocker.ID); err != nil {
		t.Fatalf("setup: add dependency: %v", err)
	}

	result, err := NewGetTaskTool(svc).Handle(ctx, call(map[string]interface{}{"task_id": waiting.ID}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("get_task failed: %v %s", err, getResultText(result))
	}
	if !strings.Contains(getResultText(result), blocker.ID) {
		t.Errorf("blocked_by should list the blocker, got: %s", getResultText(result))
	}
}
