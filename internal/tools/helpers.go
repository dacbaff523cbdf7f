// Package tools implements the MCP tool handlers of agencyops.
//
// Each tool follows the same shape:
// - A struct holding its dependencies, injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() validates arguments, calls the service and renders a result
//
// Domain errors (not found, invalid transition, validation, ...) become
// tool error results the host can show to the user. Infrastructure errors
// are returned as Go errors.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/deps"
	"github.com/HendryAvila/agencyops/internal/sequencer"
	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// ─── Arguments ───────────────────────────────────────────────────────────────

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// optionalIntArg returns nil when the key is missing or not a number.
func optionalIntArg(req mcp.CallToolRequest, key string) *int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// optionalBoolArg returns nil when the key is missing.
func optionalBoolArg(req mcp.CallToolRequest, key string) *bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

// optionalStringArg returns nil when the key is missing or empty.
func optionalStringArg(req mcp.CallToolRequest, key string) *string {
	v := strings.TrimSpace(req.GetString(key, ""))
	if v == "" {
		return nil
	}
	return &v
}

// stringSliceArg accepts a JSON array of strings or a comma separated
// string.
func stringSliceArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// decimalArg reads a money amount given as a number or a string. present
// is false when the key is missing; an explicit null clears the amount.
func decimalArg(req mcp.CallToolRequest, key string) (amount decimal.NullDecimal, present bool, err error) {
	raw, ok := req.GetArguments()[key]
	if !ok {
		return decimal.NullDecimal{}, false, nil
	}
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}, true, nil
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v)), true, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.NullDecimal{}, true, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.NullDecimal{}, true, fmt.Errorf("'%s' must be a decimal amount: %w", key, err)
		}
		return decimal.NewNullDecimal(d), true, nil
	default:
		return decimal.NullDecimal{}, true, fmt.Errorf("'%s' must be a number or a string", key)
	}
}

// ─── Results ─────────────────────────────────────────────────────────────────

// jsonResult renders a one-line summary followed by v as indented JSON.
func jsonResult(summary string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(summary + "\n\n```json\n" + string(data) + "\n```"), nil
}

// errorKind names the domain error class of err, or "" for anything the
// host cannot act on.
func errorKind(err error) string {
	switch {
	case errors.Is(err, billing.ErrValidation):
		return "validation_error"
	case errors.Is(err, sequencer.ErrMembershipMismatch):
		return "validation_error"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, deps.ErrCycleDetected):
		return "cycle_detected"
	case errors.Is(err, deps.ErrInvalidEdge):
		return "invalid_edge"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, sequencer.ErrInvalidContainer):
		return "invalid_container"
	case errors.Is(err, billing.ErrNotBillable):
		return "not_billable"
	case errors.Is(err, service.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return ""
	}
}

// toolError converts a service error into a tool result. Validation errors
// carry their full ID lists as JSON.
func toolError(op string, err error) (*mcp.CallToolResult, error) {
	kind := errorKind(err)
	if kind == "" {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg := fmt.Sprintf("%s failed [%s]: %v", op, kind, err)

	var (
		verr   *billing.ValidationError
		berr   *service.BulkTransitionError
		merr   *sequencer.MembershipError
		detail any
	)
	switch {
	case errors.As(err, &verr):
		detail = verr
	case errors.As(err, &berr):
		detail = berr
	case errors.As(err, &merr):
		detail = merr
	}
	if detail != nil {
		if data, jerr := json.MarshalIndent(detail, "", "  "); jerr == nil {
			msg += "\n\n```json\n" + string(data) + "\n```"
		}
	}
	return mcp.NewToolResultError(msg), nil
}

// required returns a tool error naming the first missing string argument.
func required(req mcp.CallToolRequest, keys ...string) *mcp.CallToolResult {
	for _, k := range keys {
		if strings.TrimSpace(req.GetString(k, "")) == "" {
			return mcp.NewToolResultError(fmt.Sprintf("'%s' is required", k))
		}
	}
	return nil
}
