package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/notify"
	"github.com/HendryAvila/agencyops/internal/sequencer"
	"github.com/HendryAvila/agencyops/internal/store"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// ─── Projects ────────────────────────────────────────────────────────────────

// CreateProject stores a project in the quote status.
func (s *Service) CreateProject(ctx context.Context, name string, hourlyRate decimal.NullDecimal) (*store.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidArgument)
	}
	if hourlyRate.Valid && hourlyRate.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: hourly rate must not be negative", ErrInvalidArgument)
	}
	p := &store.Project{Name: name, HourlyRate: hourlyRate}
	err := s.run(ctx, "create_project", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		return tx.InsertProject(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject loads one project.
func (s *Service) GetProject(ctx context.Context, id string) (*store.Project, error) {
	var out *store.Project
	err := s.run(ctx, "get_project", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		p, err := tx.GetProject(ctx, id)
		out = p
		return err
	})
	return out, err
}

// TransitionProjectStatus moves a project through the project status table.
func (s *Service) TransitionProjectStatus(ctx context.Context, projectID string, target workflow.ProjectStatus) (*store.Project, error) {
	var out *store.Project
	err := s.run(ctx, "transition_project_status", func(ctx context.Context, tx *store.Tx, ob *outbox) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		tr, err := workflow.RequestProjectTransition(p.Status, target)
		if err != nil {
			return fmt.Errorf("project %s: %w", projectID, err)
		}
		if !tr.NoOp {
			if err := tx.ApplyProjectTransition(ctx, projectID, tr, ob.stamp); err != nil {
				return err
			}
			ob.add(notify.ProjectStatusChanged, projectID, "project moved to "+string(tr.To), map[string]any{
				"from": string(tr.From), "to": string(tr.To),
			})
		}
		out, err = tx.GetProject(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Phases ──────────────────────────────────────────────────────────────────

// CreatePhase appends a phase to a project.
func (s *Service) CreatePhase(ctx context.Context, projectID, name string) (*store.Phase, error) {
	return s.createPhase(ctx, "create_phase", store.KindProjectPhase, projectID, name)
}

// CreateRecipePhase appends a phase to a recipe.
func (s *Service) CreateRecipePhase(ctx context.Context, recipeID, name string) (*store.Phase, error) {
	return s.createPhase(ctx, "create_recipe_phase", store.KindRecipePhase, recipeID, name)
}

func (s *Service) createPhase(ctx context.Context, op string, k store.Kind, parentID, name string) (*store.Phase, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: phase name is required", ErrInvalidArgument)
	}
	ph := &store.Phase{ParentID: parentID, Name: name}
	err := s.run(ctx, op, func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		order, err := sequencer.Append(ctx, tx, store.Container{Kind: k, ScopeID: &parentID})
		if err != nil {
			return err
		}
		ph.SortOrder = order
		return tx.InsertPhase(ctx, k, ph)
	})
	if err != nil {
		return nil, err
	}
	return ph, nil
}

// ListPhases returns the phases of a project in order.
func (s *Service) ListPhases(ctx context.Context, projectID string) ([]*store.Phase, error) {
	var out []*store.Phase
	err := s.run(ctx, "list_phases", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		phases, err := tx.ListPhases(ctx, store.KindProjectPhase, projectID)
		out = phases
		return err
	})
	return out, err
}

// ReorderPhases rewrites the phase order of a project.
func (s *Service) ReorderPhases(ctx context.Context, projectID string, ids []string) error {
	return s.run(ctx, "reorder_phases", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		return sequencer.ReorderAll(ctx, tx, store.Container{Kind: store.KindProjectPhase, ScopeID: &projectID}, ids)
	})
}

// ReorderRecipePhases rewrites the phase order of a recipe.
func (s *Service) ReorderRecipePhases(ctx context.Context, recipeID string, ids []string) error {
	return s.run(ctx, "reorder_recipe_phases", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.GetRecipe(ctx, recipeID); err != nil {
			return err
		}
		return sequencer.ReorderAll(ctx, tx, store.Container{Kind: store.KindRecipePhase, ScopeID: &recipeID}, ids)
	})
}

// ─── Recipes ─────────────────────────────────────────────────────────────────

// CreateRecipe stores a project template.
func (s *Service) CreateRecipe(ctx context.Context, name string) (*store.Recipe, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: recipe name is required", ErrInvalidArgument)
	}
	r := &store.Recipe{Name: name}
	err := s.run(ctx, "create_recipe", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		return tx.InsertRecipe(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewRecipeTask is the input of CreateRecipeTask.
type NewRecipeTask struct {
	RecipeID       string
	PhaseID        string
	Title          string
	EnergyEstimate *int
	MysteryFactor  string
}

// CreateRecipeTask appends a task template to a recipe phase.
func (s *Service) CreateRecipeTask(ctx context.Context, in NewRecipeTask) (*store.RecipeTask, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if in.PhaseID == "" {
		return nil, fmt.Errorf("%w: recipe tasks need a phase", ErrInvalidArgument)
	}
	if err := validateEnergy(in.EnergyEstimate); err != nil {
		return nil, err
	}
	mystery, err := estimate.ParseMysteryFactor(in.MysteryFactor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	rt := &store.RecipeTask{
		RecipeID:       in.RecipeID,
		PhaseID:        in.PhaseID,
		Title:          in.Title,
		EnergyEstimate: in.EnergyEstimate,
		MysteryFactor:  mystery,
	}
	err = s.run(ctx, "create_recipe_task", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.GetRecipe(ctx, in.RecipeID); err != nil {
			return err
		}
		if err := checkPhase(ctx, tx, store.KindRecipePhase, &in.RecipeID, &in.PhaseID); err != nil {
			return err
		}
		order, err := sequencer.Append(ctx, tx, store.Container{Kind: store.KindRecipeTask, ScopeID: &in.RecipeID, PhaseID: &in.PhaseID})
		if err != nil {
			return err
		}
		rt.SortOrder = order
		return tx.InsertRecipeTask(ctx, rt)
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// MoveRecipeTask places a recipe task at order inside targetPhaseID of
// the same recipe.
func (s *Service) MoveRecipeTask(ctx context.Context, recipeID, taskID, targetPhaseID string, order int) (*store.RecipeTask, error) {
	var out *store.RecipeTask
	err := s.run(ctx, "move_recipe_task", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		rt, err := tx.GetRecipeTask(ctx, taskID)
		if err != nil {
			return err
		}
		if rt.RecipeID != recipeID {
			return &store.NotFoundError{Entity: "recipe task", ID: recipeID + "/" + taskID}
		}
		if _, err := sequencer.Move(ctx, tx, store.KindRecipeTask, taskID, &targetPhaseID, order); err != nil {
			return err
		}
		out, err = tx.GetRecipeTask(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Reporting ───────────────────────────────────────────────────────────────

// ProjectEstimates rolls up effort and progress across a project's tasks.
func (s *Service) ProjectEstimates(ctx context.Context, projectID string) (estimate.ProjectEstimates, error) {
	var out estimate.ProjectEstimates
	err := s.run(ctx, "project_estimates", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		tasks, err := tx.ListTasks(ctx, store.TaskFilter{ProjectID: &projectID})
		if err != nil {
			return err
		}
		spent, err := tx.ProjectTimeSpent(ctx, projectID)
		if err != nil {
			return err
		}
		efforts := make([]estimate.TaskEffort, len(tasks))
		for i, t := range tasks {
			efforts[i] = estimate.TaskEffort{
				Done:             t.Status == workflow.TaskDone,
				Abandoned:        t.Status == workflow.TaskAbandoned,
				Energy:           t.EnergyEstimate,
				Mystery:          t.MysteryFactor,
				EstimatedMinutes: t.EstimatedMinutes,
			}
		}
		out = estimate.ProjectRollup(efforts, spent)
		return nil
	})
	return out, err
}

// ContainerCheck is the density verdict for one ordering container.
type ContainerCheck struct {
	Container string `json:"container"`
	Items     int    `json:"items"`
	Problem   string `json:"problem,omitempty"`
}

// VerifyOrdering checks that the phases of a project and every task
// container inside it are dense. It reports every container, not just the
// broken ones.
func (s *Service) VerifyOrdering(ctx context.Context, projectID string) ([]ContainerCheck, error) {
	var out []ContainerCheck
	err := s.run(ctx, "verify_ordering", func(ctx context.Context, tx *store.Tx, _ *outbox) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		phases, err := tx.ListPhases(ctx, store.KindProjectPhase, projectID)
		if err != nil {
			return err
		}
		containers := []store.Container{
			{Kind: store.KindProjectPhase, ScopeID: &projectID},
			{Kind: store.KindTask, ScopeID: &projectID},
		}
		for _, ph := range phases {
			containers = append(containers, store.Container{Kind: store.KindTask, ScopeID: &projectID, PhaseID: &ph.ID})
		}
		for _, c := range containers {
			n, err := tx.Count(ctx, c)
			if err != nil {
				return err
			}
			check := ContainerCheck{Container: c.String(), Items: n}
			if err := sequencer.Check(ctx, tx, c); err != nil {
				check.Problem = err.Error()
			}
			out = append(out, check)
		}
		return nil
	})
	return out, err
}
