package board

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/evanschultz/kanview/internal/domain"
)

// maxConcurrentReassign bounds in-flight status changes while deleting a column.
const maxConcurrentReassign = 4

// Columns returns the committed column order.
func (b *Board) Columns() []domain.Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.columns)
}

// AddColumn appends a column built from label. Validation problems come back as
// FieldErrors and leave the registry untouched.
func (b *Board) AddColumn(label string, color domain.Color) (domain.Column, error) {
	col, err := domain.NewColumn(label, color, b.newID)
	switch {
	case errors.Is(err, domain.ErrInvalidLabel):
		return domain.Column{}, FieldErrors{"label": "Label is required"}
	case errors.Is(err, domain.ErrInvalidColor):
		return domain.Column{}, FieldErrors{"color": "Pick a color from the palette"}
	case err != nil:
		return domain.Column{}, FieldErrors{"label": err.Error()}
	}

	b.mu.Lock()
	if b.reorder.Active() {
		b.mu.Unlock()
		return domain.Column{}, ErrReordering
	}
	if b.columnIndex(col.ID) >= 0 {
		b.mu.Unlock()
		return domain.Column{}, FieldErrors{"label": "A column with this name already exists"}
	}
	b.columns = append(b.columns, col)
	b.mu.Unlock()

	b.logger.Info("column added", "column", col.ID)
	b.publish()
	return col, nil
}

// DeletionPlan describes what deleting a column will do.
type DeletionPlan struct {
	Column    domain.Column
	Fallback  domain.Column
	CardCount int
}

// PlanColumnDeletion returns the column, its fallback, and the cards that will move.
func (b *Board) PlanColumnDeletion(id string) (DeletionPlan, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.columnIndex(id)
	switch {
	case idx < 0:
		return DeletionPlan{}, ErrUnknownColumn
	case idx == 0:
		return DeletionPlan{}, ErrFallbackColumn
	}
	count := 0
	for _, card := range b.cards {
		if card.Status == id {
			count++
		}
	}
	return DeletionPlan{Column: b.columns[idx], Fallback: b.columns[idx-1], CardCount: count}, nil
}

// DeleteColumn moves every card in the column to the preceding column, then removes
// it. Deleting the first column is a no-op. It returns ErrBusy while a member card has
// a change in flight, and moves into the column are refused until it is gone. Cards
// whose move fails keep their status and surface as orphans.
func (b *Board) DeleteColumn(ctx context.Context, id string) error {
	b.mu.Lock()
	if b.reorder.Active() {
		b.mu.Unlock()
		return ErrReordering
	}
	idx := b.columnIndex(id)
	if idx < 0 {
		b.mu.Unlock()
		return ErrUnknownColumn
	}
	if idx == 0 {
		b.mu.Unlock()
		return nil
	}
	removed, fallback := b.columns[idx], b.columns[idx-1]
	_, closing := b.closing[id]
	_, fallbackClosing := b.closing[fallback.ID]
	if closing || fallbackClosing {
		b.mu.Unlock()
		return ErrBusy
	}
	members := make([]int64, 0)
	for _, card := range b.cards {
		if card.Status != id {
			continue
		}
		if b.busyLocked(card.ID) {
			b.mu.Unlock()
			return ErrBusy
		}
		members = append(members, card.ID)
	}
	b.closing[id] = struct{}{}
	b.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(maxConcurrentReassign)
	for _, cardID := range members {
		g.Go(func() error {
			return b.ChangeStatus(ctx, cardID, fallback.ID)
		})
	}
	reassignErr := g.Wait()

	b.mu.Lock()
	delete(b.closing, id)
	if idx := b.columnIndex(id); idx >= 0 {
		b.columns = slices.Delete(b.columns, idx, idx+1)
	}
	if b.criteria.Column == id {
		b.criteria.Column = All
	}
	b.mu.Unlock()

	b.logger.Info("column deleted", "column", id, "fallback", fallback.ID, "cards", len(members))
	b.notify.Notify(Notice{Level: LevelSuccess, Message: fmt.Sprintf("Removed column %s; cards moved to %s", removed.Label, fallback.Label)})
	b.publish()
	if reassignErr != nil {
		return fmt.Errorf("reassign cards from %q: %w", id, reassignErr)
	}
	return nil
}

// Reordering reports whether the reorder draft is open.
func (b *Board) Reordering() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reorder.Active()
}

// BeginReorder opens a draft of the column order and cancels any drag.
func (b *Board) BeginReorder() {
	b.mu.Lock()
	if b.reorder.Active() {
		b.mu.Unlock()
		return
	}
	b.reorder.Begin(b.columns)
	b.dragSeq++
	b.drag = DragState{}
	b.mu.Unlock()

	b.publish()
}

// MoveColumn swaps the draft column id with its neighbor (delta -1 left, +1 right).
// It reports false at the edges or outside reorder mode.
func (b *Board) MoveColumn(id string, delta int) bool {
	b.mu.Lock()
	moved := false
	b.reorder.Mutate(func(draft []domain.Column) []domain.Column {
		idx := slices.IndexFunc(draft, func(c domain.Column) bool { return c.ID == id })
		draft, moved = swapAdjacent(draft, idx, delta)
		return draft
	})
	b.mu.Unlock()

	if moved {
		b.publish()
	}
	return moved
}

// ReorderDirty reports whether the draft differs from the committed order.
func (b *Board) ReorderDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reorder.Dirty()
}

// SaveReorder commits the draft. It reports false when there was nothing to save.
func (b *Board) SaveReorder() bool {
	b.mu.Lock()
	if !b.reorder.Dirty() {
		b.mu.Unlock()
		return false
	}
	b.columns = b.reorder.Commit()
	b.mu.Unlock()

	b.logger.Info("column order saved")
	b.publish()
	return true
}

// CancelReorder discards the draft.
func (b *Board) CancelReorder() {
	b.mu.Lock()
	if !b.reorder.Active() {
		b.mu.Unlock()
		return
	}
	b.reorder.Cancel()
	b.mu.Unlock()

	b.publish()
}

func (b *Board) columnIndex(id string) int {
	return slices.IndexFunc(b.columns, func(c domain.Column) bool { return c.ID == id })
}
