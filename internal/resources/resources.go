// Package resources implements MCP resource handlers for agencyops.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (agency://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/agencyops/internal/service"
	"github.com/HendryAvila/agencyops/internal/store"
)

const (
	// UnbilledURI serves the work that is ready to invoice.
	UnbilledURI = "agency://billing/unbilled"

	// EstimatesTemplate serves the effort rollup of one project.
	EstimatesTemplate = "agency://projects/{project_id}/estimates"

	projectsPrefix  = "agency://projects/"
	estimatesSuffix = "/estimates"
)

// Handler manages agencyops resource endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// UnbilledResource returns the MCP resource definition for unbilled work.
func (h *Handler) UnbilledResource() mcp.Resource {
	return mcp.NewResource(
		UnbilledURI,
		"Unbilled work",
		mcp.WithResourceDescription("Triggered milestones and finished billable tasks not yet invoiced, with their total"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleUnbilled returns the unbilled listing as JSON.
func (h *Handler) HandleUnbilled(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	report, err := h.svc.Unbilled(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading unbilled work: %w", err)
	}
	return jsonResource(req.Params.URI, report)
}

// EstimatesTemplate returns the MCP resource template for project
// estimates.
func (h *Handler) EstimatesTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		EstimatesTemplate,
		"Project estimates",
		mcp.WithTemplateDescription("Remaining effort range, time spent and energy-weighted progress of a project"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleEstimates returns the estimates of the project named in the URI.
func (h *Handler) HandleEstimates(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	projectID, ok := projectFromURI(uri)
	if !ok {
		return errorResource(uri, "expected "+EstimatesTemplate), nil
	}
	est, err := h.svc.ProjectEstimates(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return errorResource(uri, err.Error()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading estimates: %w", err)
	}
	return jsonResource(uri, est)
}

func projectFromURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, projectsPrefix) || !strings.HasSuffix(uri, estimatesSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, projectsPrefix), estimatesSuffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
