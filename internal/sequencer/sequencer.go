// Package sequencer keeps sort_order dense (0..n-1) inside every ordering
// container: tasks per project phase, recipe tasks per recipe phase, and
// phases per project or recipe.
//
// The sequencer never opens transactions. Callers pass the transaction
// handle they are working in, so a move is atomic with whatever else the
// caller does.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/HendryAvila/agencyops/internal/store"
)

// ErrInvalidContainer is returned when a target container cannot hold the
// item (phase of another project or recipe, ad-hoc task into a phase).
var ErrInvalidContainer = errors.New("invalid container")

// ErrMembershipMismatch is returned by ReorderAll when the given IDs are
// not exactly the container's members.
var ErrMembershipMismatch = errors.New("reorder list does not match container")

// Tx is the slice of the store transaction the sequencer needs.
type Tx interface {
	Slot(ctx context.Context, k store.Kind, id string) (store.Slot, error)
	Count(ctx context.Context, c store.Container) (int, error)
	NextOrder(ctx context.Context, c store.Container) (int, error)
	Shift(ctx context.Context, c store.Container, r store.Range, delta int, exclude string) (int64, error)
	Place(ctx context.Context, k store.Kind, id string, slot store.Slot) error
	Orders(ctx context.Context, c store.Container) ([]store.Entry, error)
	PhaseParent(ctx context.Context, phaseKind store.Kind, phaseID string) (string, error)
}

var _ Tx = (*store.Tx)(nil)

// Append returns the order a new item takes in c: max+1, or 0 when empty.
func Append(ctx context.Context, tx Tx, c store.Container) (int, error) {
	return tx.NextOrder(ctx, c)
}

// Move relocates item id of kind k to position order inside the phase
// targetPhase of its current project or recipe (nil: unphased). order is
// clamped into [0, size], size being the target container's item count
// without the mover. Moving onto the current slot writes nothing.
func Move(ctx context.Context, tx Tx, k store.Kind, id string, targetPhase *string, order int) (store.Slot, error) {
	from, err := tx.Slot(ctx, k, id)
	if err != nil {
		return store.Slot{}, err
	}

	target := store.Container{Kind: k, ScopeID: from.Container.ScopeID, PhaseID: targetPhase}
	if err := checkTarget(ctx, tx, k, target); err != nil {
		return store.Slot{}, err
	}

	if from.Container.SameAs(target) {
		return reorder(ctx, tx, k, id, from, order)
	}
	return relocate(ctx, tx, k, id, from, target, order)
}

// checkTarget verifies that target can hold items of kind k.
func checkTarget(ctx context.Context, tx Tx, k store.Kind, target store.Container) error {
	if target.PhaseID == nil {
		if k == store.KindRecipeTask {
			return fmt.Errorf("%w: recipe tasks always live in a recipe phase", ErrInvalidContainer)
		}
		return nil
	}
	phaseKind, ok := k.PhaseKind()
	if !ok {
		return fmt.Errorf("%w: %s items are not placed in phases", ErrInvalidContainer, k.Entity())
	}
	if target.ScopeID == nil {
		return fmt.Errorf("%w: %s has no project, it cannot join a phase", ErrInvalidContainer, k.Entity())
	}
	parent, err := tx.PhaseParent(ctx, phaseKind, *target.PhaseID)
	if err != nil {
		return err
	}
	if parent != *target.ScopeID {
		return fmt.Errorf("%w: %s %s belongs to %s, not %s", ErrInvalidContainer, phaseKind.Entity(), *target.PhaseID, parent, *target.ScopeID)
	}
	return nil
}

// reorder shifts the items between the old and new positions by one.
func reorder(ctx context.Context, tx Tx, k store.Kind, id string, from store.Slot, order int) (store.Slot, error) {
	n, err := tx.Count(ctx, from.Container)
	if err != nil {
		return store.Slot{}, err
	}
	to := clamp(order, n-1)
	old := from.Order
	dest := store.Slot{Container: from.Container, Order: to}

	switch {
	case to == old:
		return dest, nil
	case old < to:
		// Items in (old, to] slide up.
		if _, err := tx.Shift(ctx, from.Container, store.Range{From: old + 1, To: to}, -1, id); err != nil {
			return store.Slot{}, err
		}
	default:
		// Items in [to, old) slide down.
		if _, err := tx.Shift(ctx, from.Container, store.Range{From: to, To: old - 1}, 1, id); err != nil {
			return store.Slot{}, err
		}
	}
	if err := tx.Place(ctx, k, id, dest); err != nil {
		return store.Slot{}, err
	}
	return dest, nil
}

// relocate opens a slot in target, moves the item, then closes the gap it
// left behind.
func relocate(ctx context.Context, tx Tx, k store.Kind, id string, from store.Slot, target store.Container, order int) (store.Slot, error) {
	n, err := tx.Count(ctx, target)
	if err != nil {
		return store.Slot{}, err
	}
	dest := store.Slot{Container: target, Order: clamp(order, n)}

	if _, err := tx.Shift(ctx, target, store.Range{From: dest.Order, To: -1}, 1, ""); err != nil {
		return store.Slot{}, err
	}
	if err := tx.Place(ctx, k, id, dest); err != nil {
		return store.Slot{}, err
	}
	if _, err := tx.Shift(ctx, from.Container, store.Range{From: from.Order + 1, To: -1}, -1, ""); err != nil {
		return store.Slot{}, err
	}
	return dest, nil
}

// Remove closes the gap an item leaves when it is deleted. Call it before
// the row disappears: it reads the item's slot, then shifts its followers.
func Remove(ctx context.Context, tx Tx, k store.Kind, id string) (store.Slot, error) {
	from, err := tx.Slot(ctx, k, id)
	if err != nil {
		return store.Slot{}, err
	}
	if _, err := tx.Shift(ctx, from.Container, store.Range{From: from.Order + 1, To: -1}, -1, id); err != nil {
		return store.Slot{}, err
	}
	return from, nil
}

// MembershipError lists the IDs that made a bulk reorder ambiguous.
type MembershipError struct {
	Container string   `json:"container"`
	Foreign   []string `json:"foreign,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	Duplicate []string `json:"duplicate,omitempty"`
}

func (e *MembershipError) Error() string {
	return fmt.Sprintf("%s %s: foreign=%v missing=%v duplicate=%v", ErrMembershipMismatch, e.Container, e.Foreign, e.Missing, e.Duplicate)
}

func (e *MembershipError) Unwrap() error { return ErrMembershipMismatch }

// ReorderAll assigns sort_order = index to every ID in ids. ids must list
// each member of c exactly once.
func ReorderAll(ctx context.Context, tx Tx, c store.Container, ids []string) error {
	entries, err := tx.Orders(ctx, c)
	if err != nil {
		return err
	}
	members := make(map[string]int, len(entries))
	for _, e := range entries {
		members[e.ID] = e.Order
	}

	merr := &MembershipError{Container: c.String()}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		switch {
		case seen[id]:
			merr.Duplicate = append(merr.Duplicate, id)
		case !hasKey(members, id):
			merr.Foreign = append(merr.Foreign, id)
		}
		seen[id] = true
	}
	for _, e := range entries {
		if !seen[e.ID] {
			merr.Missing = append(merr.Missing, e.ID)
		}
	}
	if len(merr.Foreign)+len(merr.Missing)+len(merr.Duplicate) > 0 {
		return merr
	}

	for i, id := range ids {
		if members[id] == i {
			continue
		}
		if err := tx.Place(ctx, c.Kind, id, store.Slot{Container: c, Order: i}); err != nil {
			return err
		}
	}
	return nil
}

// Check reports the first density violation in c, or nil when its orders
// are exactly 0..n-1.
func Check(ctx context.Context, tx Tx, c store.Container) error {
	entries, err := tx.Orders(ctx, c)
	if err != nil {
		return err
	}
	orders := make([]int, len(entries))
	for i, e := range entries {
		orders[i] = e.Order
	}
	slices.Sort(orders)
	for i, o := range orders {
		if o != i {
			return fmt.Errorf("sequencer: %s not dense: position %d holds order %d", c, i, o)
		}
	}
	return nil
}

func clamp(order, hi int) int {
	if hi < 0 {
		hi = 0
	}
	return max(0, min(order, hi))
}

func hasKey[K comparable, V any](m map[K]V, k K) bool {
	_, ok := m[k]
	return ok
}
