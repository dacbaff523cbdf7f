package store

import (
	"context"
	"fmt"
	"strings"
)

// Kind names a family of ordered rows.
type Kind string

const (
	KindTask         Kind = "task"
	KindRecipeTask   Kind = "recipe_task"
	KindProjectPhase Kind = "project_phase"
	KindRecipePhase  Kind = "recipe_phase"
)

// seqTable maps a Kind onto its table and container columns.
type seqTable struct {
	table    string
	scopeCol string
	// phaseCol is empty for phase tables: phases are ordered per parent.
	phaseCol string
	entity   string
}

var seqTables = map[Kind]seqTable{
	KindTask:         {table: "tasks", scopeCol: "project_id", phaseCol: "phase_id", entity: "task"},
	KindRecipeTask:   {table: "recipe_tasks", scopeCol: "recipe_id", phaseCol: "phase_id", entity: "recipe task"},
	KindProjectPhase: {table: "project_phases", scopeCol: "project_id", entity: "phase"},
	KindRecipePhase:  {table: "recipe_phases", scopeCol: "recipe_id", entity: "recipe phase"},
}

// PhaseKind returns the phase kind that can contain items of kind k.
func (k Kind) PhaseKind() (Kind, bool) {
	switch k {
	case KindTask:
		return KindProjectPhase, true
	case KindRecipeTask:
		return KindRecipePhase, true
	default:
		return "", false
	}
}

// Entity returns the human name of k, used in errors.
func (k Kind) Entity() string {
	if t, ok := seqTables[k]; ok {
		return t.entity
	}
	return string(k)
}

func tableFor(k Kind) (seqTable, error) {
	t, ok := seqTables[k]
	if !ok {
		return seqTable{}, fmt.Errorf("store: unknown sequence kind %q", k)
	}
	return t, nil
}

// Container identifies one dense ordering: all rows of Kind that share a
// scope (project or recipe) and a phase. A nil ScopeID is the ad-hoc task
// pool; a nil PhaseID is the unphased bucket.
type Container struct {
	Kind    Kind
	ScopeID *string
	PhaseID *string
}

// SameAs reports whether c and o denote the same container.
func (c Container) SameAs(o Container) bool {
	return c.Kind == o.Kind && eqPtr(c.ScopeID, o.ScopeID) && eqPtr(c.PhaseID, o.PhaseID)
}

func (c Container) String() string {
	return fmt.Sprintf("%s[%s/%s]", c.Kind, deref(c.ScopeID, "-"), deref(c.PhaseID, "unphased"))
}

// Slot is a position inside a container.
type Slot struct {
	Container Container
	Order     int
}

// Range selects sort_order values From..To inclusive. To < 0 is open ended.
type Range struct {
	From int
	To   int
}

// Entry is one row of a container listing.
type Entry struct {
	ID    string
	Order int
}

// where renders the container predicate. IS compares NULLs as equal.
func (c Container) where(t seqTable) (string, []any) {
	clauses := []string{t.scopeCol + " IS ?"}
	args := []any{c.ScopeID}
	if t.phaseCol != "" {
		clauses = append(clauses, t.phaseCol+" IS ?")
		args = append(args, c.PhaseID)
	}
	return strings.Join(clauses, " AND "), args
}

// Slot returns where the row id of kind k currently sits.
func (tx *Tx) Slot(ctx context.Context, k Kind, id string) (Slot, error) {
	t, err := tableFor(k)
	if err != nil {
		return Slot{}, err
	}
	phaseExpr := "NULL"
	if t.phaseCol != "" {
		phaseExpr = t.phaseCol
	}
	var slot Slot
	slot.Container.Kind = k
	err = tx.queryRow(ctx,
		fmt.Sprintf("SELECT %s, %s, sort_order FROM %s WHERE id = ?", t.scopeCol, phaseExpr, t.table), id,
	).Scan(&slot.Container.ScopeID, &slot.Container.PhaseID, &slot.Order)
	if err != nil {
		return Slot{}, wrapDBError("slot", t.entity, id, err)
	}
	return slot, nil
}

// Count returns the number of rows in c.
func (tx *Tx) Count(ctx context.Context, c Container) (int, error) {
	t, err := tableFor(c.Kind)
	if err != nil {
		return 0, err
	}
	where, args := c.where(t)
	var n int
	if err := tx.queryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.table, where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", c, err)
	}
	return n, nil
}

// NextOrder returns max(sort_order)+1 in c, or 0 when c is empty.
func (tx *Tx) NextOrder(ctx context.Context, c Container) (int, error) {
	t, err := tableFor(c.Kind)
	if err != nil {
		return 0, err
	}
	where, args := c.where(t)
	var next int
	err = tx.queryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(sort_order) + 1, 0) FROM %s WHERE %s", t.table, where), args...,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("store: next order %s: %w", c, err)
	}
	return next, nil
}

// Shift adds delta to every sort_order of c inside r, skipping exclude.
// It is one UPDATE statement.
func (tx *Tx) Shift(ctx context.Context, c Container, r Range, delta int, exclude string) (int64, error) {
	t, err := tableFor(c.Kind)
	if err != nil {
		return 0, err
	}
	set, args := "sort_order = sort_order + ?", []any{delta}
	if c.Kind == KindTask {
		set += ", updated_at = ?"
		args = append(args, Now())
	}
	where, whereArgs := c.where(t)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s AND sort_order >= ?", t.table, set, where)
	args = append(args, whereArgs...)
	args = append(args, r.From)
	if r.To >= 0 {
		q += " AND sort_order <= ?"
		args = append(args, r.To)
	}
	if exclude != "" {
		q += " AND id <> ?"
		args = append(args, exclude)
	}
	res, err := tx.exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("store: shift %s: %w", c, err)
	}
	return res.RowsAffected()
}

// Place writes the row id of kind k into slot. Only the phase and order
// change; rows never leave their project or recipe.
func (tx *Tx) Place(ctx context.Context, k Kind, id string, slot Slot) error {
	t, err := tableFor(k)
	if err != nil {
		return err
	}
	var (
		q    string
		args []any
	)
	switch {
	case t.phaseCol != "" && k == KindTask:
		q = fmt.Sprintf("UPDATE %s SET %s = ?, sort_order = ?, updated_at = ? WHERE id = ?", t.table, t.phaseCol)
		args = []any{slot.Container.PhaseID, slot.Order, Now(), id}
	case t.phaseCol != "":
		q = fmt.Sprintf("UPDATE %s SET %s = ?, sort_order = ? WHERE id = ?", t.table, t.phaseCol)
		args = []any{slot.Container.PhaseID, slot.Order, id}
	default:
		q = fmt.Sprintf("UPDATE %s SET sort_order = ? WHERE id = ?", t.table)
		args = []any{slot.Order, id}
	}
	res, err := tx.exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("store: place %s %s: %w", t.entity, id, err)
	}
	return requireAffected(res, t.entity, id)
}

// Orders lists c by sort_order.
func (tx *Tx) Orders(ctx context.Context, c Container) ([]Entry, error) {
	t, err := tableFor(c.Kind)
	if err != nil {
		return nil, err
	}
	where, args := c.where(t)
	rows, err := tx.query(ctx, fmt.Sprintf("SELECT id, sort_order FROM %s WHERE %s ORDER BY sort_order, id", t.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", c, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Order); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PhaseParent returns the project or recipe that owns the phase.
func (tx *Tx) PhaseParent(ctx context.Context, phaseKind Kind, phaseID string) (string, error) {
	t, err := tableFor(phaseKind)
	if err != nil {
		return "", err
	}
	if t.phaseCol != "" {
		return "", fmt.Errorf("store: %q is not a phase kind", phaseKind)
	}
	var parent string
	err = tx.queryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.scopeCol, t.table), phaseID).Scan(&parent)
	if err != nil {
		return "", wrapDBError("phase parent", t.entity, phaseID, err)
	}
	return parent, nil
}

func eqPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
