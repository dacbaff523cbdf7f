package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HendryAvila/agencyops/internal/estimate"
	"github.com/HendryAvila/agencyops/internal/workflow"
)

// ─── Projects ────────────────────────────────────────────────────────────────

// InsertProject stores p, filling ID, status and timestamps.
func (tx *Tx) InsertProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = workflow.ProjectQuote
	}
	now := Now()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := tx.exec(ctx,
		"INSERT INTO projects (id, name, status, hourly_rate, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Status, p.HourlyRate, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert project: %w", err)
	}
	return nil
}

// GetProject loads one project.
func (tx *Tx) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := tx.queryRow(ctx,
		"SELECT id, name, status, hourly_rate, completed_at, created_at, updated_at FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Status, &p.HourlyRate, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBError("get project", "project", id, err)
	}
	return &p, nil
}

// ApplyProjectTransition writes an accepted project status change.
func (tx *Tx) ApplyProjectTransition(ctx context.Context, id string, tr workflow.ProjectTransition, at string) error {
	res, err := tx.exec(ctx, `
		UPDATE projects SET
			status = ?,
			completed_at = CASE WHEN ? THEN ? WHEN ? THEN NULL ELSE completed_at END,
			updated_at = ?
		WHERE id = ?`,
		tr.To, tr.StampCompleted, at, tr.ClearCompleted, at, id,
	)
	if err != nil {
		return fmt.Errorf("store: update project status: %w", err)
	}
	return requireAffected(res, "project", id)
}

// ─── Phases ──────────────────────────────────────────────────────────────────

// InsertPhase stores a project or recipe phase at ph.SortOrder.
func (tx *Tx) InsertPhase(ctx context.Context, k Kind, ph *Phase) error {
	t, err := tableFor(k)
	if err != nil {
		return err
	}
	if t.phaseCol != "" {
		return fmt.Errorf("store: %q is not a phase kind", k)
	}
	if ph.ID == "" {
		ph.ID = uuid.NewString()
	}
	ph.CreatedAt = Now()
	_, err = tx.exec(ctx,
		fmt.Sprintf("INSERT INTO %s (id, %s, name, sort_order, created_at) VALUES (?, ?, ?, ?, ?)", t.table, t.scopeCol),
		ph.ID, ph.ParentID, ph.Name, ph.SortOrder, ph.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("store: insert %s: parent %s: %w", t.entity, ph.ParentID, ErrNotFound)
		}
		return fmt.Errorf("store: insert %s: %w", t.entity, err)
	}
	return nil
}

// ListPhases returns the phases of a project or recipe in order.
func (tx *Tx) ListPhases(ctx context.Context, k Kind, parentID string) ([]*Phase, error) {
	t, err := tableFor(k)
	if err != nil {
		return nil, err
	}
	rows, err := tx.query(ctx,
		fmt.Sprintf("SELECT id, %s, name, sort_order, created_at FROM %s WHERE %s = ? ORDER BY sort_order, id", t.scopeCol, t.table, t.scopeCol),
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", t.entity, err)
	}
	defer rows.Close()

	var out []*Phase
	for rows.Next() {
		var ph Phase
		if err := rows.Scan(&ph.ID, &ph.ParentID, &ph.Name, &ph.SortOrder, &ph.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &ph)
	}
	return out, rows.Err()
}

// ─── Recipes ─────────────────────────────────────────────────────────────────

// InsertRecipe stores r.
func (tx *Tx) InsertRecipe(ctx context.Context, r *Recipe) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = Now()
	if _, err := tx.exec(ctx, "INSERT INTO recipes (id, name, created_at) VALUES (?, ?, ?)", r.ID, r.Name, r.CreatedAt); err != nil {
		return fmt.Errorf("store: insert recipe: %w", err)
	}
	return nil
}

// GetRecipe loads one recipe.
func (tx *Tx) GetRecipe(ctx context.Context, id string) (*Recipe, error) {
	var r Recipe
	err := tx.queryRow(ctx, "SELECT id, name, created_at FROM recipes WHERE id = ?", id).Scan(&r.ID, &r.Name, &r.CreatedAt)
	if err != nil {
		return nil, wrapDBError("get recipe", "recipe", id, err)
	}
	return &r, nil
}

// InsertRecipeTask stores rt at rt.SortOrder.
func (tx *Tx) InsertRecipeTask(ctx context.Context, rt *RecipeTask) error {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.MysteryFactor == "" {
		rt.MysteryFactor = estimate.MysteryNone
	}
	rt.CreatedAt = Now()
	_, err := tx.exec(ctx, `
		INSERT INTO recipe_tasks (id, recipe_id, phase_id, title, energy_estimate, mystery_factor, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.RecipeID, rt.PhaseID, rt.Title, rt.EnergyEstimate, rt.MysteryFactor, rt.SortOrder, rt.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("store: insert recipe task: recipe or phase does not exist: %w", ErrNotFound)
		}
		return fmt.Errorf("store: insert recipe task: %w", err)
	}
	return nil
}

const recipeTaskColumns = "id, recipe_id, phase_id, title, energy_estimate, mystery_factor, sort_order, created_at"

func scanRecipeTask(r rowScanner) (*RecipeTask, error) {
	var rt RecipeTask
	if err := r.Scan(&rt.ID, &rt.RecipeID, &rt.PhaseID, &rt.Title, &rt.EnergyEstimate, &rt.MysteryFactor, &rt.SortOrder, &rt.CreatedAt); err != nil {
		return nil, err
	}
	return &rt, nil
}

// GetRecipeTask loads one recipe task.
func (tx *Tx) GetRecipeTask(ctx context.Context, id string) (*RecipeTask, error) {
	rt, err := scanRecipeTask(tx.queryRow(ctx, "SELECT "+recipeTaskColumns+" FROM recipe_tasks WHERE id = ?", id))
	if err != nil {
		return nil, wrapDBError("get recipe task", "recipe task", id, err)
	}
	return rt, nil
}

// ListRecipeTasks returns the tasks of a recipe grouped by phase order.
func (tx *Tx) ListRecipeTasks(ctx context.Context, recipeID string) ([]*RecipeTask, error) {
	rows, err := tx.query(ctx, `
		SELECT rt.id, rt.recipe_id, rt.phase_id, rt.title, rt.energy_estimate, rt.mystery_factor, rt.sort_order, rt.created_at
		FROM recipe_tasks rt JOIN recipe_phases rp ON rp.id = rt.phase_id
		WHERE rt.recipe_id = ?
		ORDER BY rp.sort_order, rt.sort_order, rt.id`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("store: list recipe tasks: %w", err)
	}
	defer rows.Close()

	var out []*RecipeTask
	for rows.Next() {
		rt, err := scanRecipeTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}
