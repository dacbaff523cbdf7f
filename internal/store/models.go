package store

import (
	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/billing"
	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Project groups phases, tasks and milestones for one client engagement.
type Project struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Status      workflow.ProjectStatus `json:"status"`
	HourlyRate  decimal.NullDecimal    `json:"hourly_rate"`
	CompletedAt *string                `json:"completed_at,omitempty"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
}

// Phase is an ordered section of a project or recipe.
type Phase struct {
	ID string `json:"id"`
	// ParentID is the project ID for project phases, the recipe ID for
	// recipe phases.
	ParentID  string `json:"parent_id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	CreatedAt string `json:"created_at"`
}

// Recipe is a reusable project template.
type Recipe struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// RecipeTask is a task template inside a recipe phase.
type RecipeTask struct {
	ID             string                 `json:"id"`
	RecipeID       string                 `json:"recipe_id"`
	PhaseID        string                 `json:"phase_id"`
	Title          string                 `json:"title"`
	EnergyEstimate *int                   `json:"energy_estimate,omitempty"`
	MysteryFactor  estimate.MysteryFactor `json:"mystery_factor"`
	SortOrder      int                    `json:"sort_order"`
	CreatedAt      string                 `json:"created_at"`
}

// Task is a unit of work. Tasks without a project are ad-hoc.
type Task struct {
	ID                string                 `json:"id"`
	ProjectID         *string                `json:"project_id,omitempty"`
	PhaseID           *string                `json:"phase_id,omitempty"`
	Title             string                 `json:"title"`
	Status            workflow.TaskStatus    `json:"status"`
	StatusBeforeBlock *workflow.TaskStatus   `json:"status_before_block,omitempty"`
	Priority          int                    `json:"priority"`
	EnergyEstimate    *int                   `json:"energy_estimate,omitempty"`
	MysteryFactor     estimate.MysteryFactor `json:"mystery_factor"`
	EstimatedMinutes  *int                   `json:"estimated_minutes,omitempty"`
	SortOrder         int                    `json:"sort_order"`
	AssigneeID        *string                `json:"assignee_id,omitempty"`
	IsBillable        bool                   `json:"is_billable"`
	Invoiced          bool                   `json:"invoiced"`
	StartedAt         *string                `json:"started_at,omitempty"`
	CompletedAt       *string                `json:"completed_at,omitempty"`
	CreatedAt         string                 `json:"created_at"`
	UpdatedAt         string                 `json:"updated_at"`
	TimeSpentMinutes  int                    `json:"time_spent_minutes"`
	billing.Record
}

// Container returns the ordering container the task lives in.
func (t *Task) Container() Container {
	return Container{Kind: KindTask, ScopeID: t.ProjectID, PhaseID: t.PhaseID}
}

// Milestone is a billable checkpoint of a project.
type Milestone struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	CompletedAt *string `json:"completed_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	billing.Record
}

// TimeEntry records minutes spent on a task.
type TimeEntry struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	UserID    string `json:"user_id"`
	Minutes   int    `json:"minutes"`
	CreatedAt string `json:"created_at"`
}

// Edge is a dependency: Blocker must be done before Blocked can proceed.
type Edge struct {
	BlockerID string `json:"blocker_id"`
	BlockedID string `json:"blocked_id"`
}

// TaskRef is the slice of a task the dependency manager works with.
type TaskRef struct {
	ID                string
	ProjectID         *string
	Status            workflow.TaskStatus
	StatusBeforeBlock *workflow.TaskStatus
}
