package board

import (
	"context"
	"fmt"
)

// DragPhase enumerates drag-and-drop states.
type DragPhase int

const (
	DragIdle DragPhase = iota
	DragDragging
	DragHovering
)

// String returns the phase name.
func (p DragPhase) String() string {
	switch p {
	case DragDragging:
		return "dragging"
	case DragHovering:
		return "dragging-over"
	default:
		return "idle"
	}
}

// DragState is the transient drag bookkeeping. ColumnID is set only while hovering.
type DragState struct {
	Phase    DragPhase
	CardID   int64
	ColumnID string
}

// Point is a pointer position in cells.
type Point struct {
	X, Y int
}

// Rect is a column's bounding region in cells.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Drag returns the current drag state.
func (b *Board) Drag() DragState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drag
}

// DragStart picks up a card.
func (b *Board) DragStart(id int64) error {
	b.mu.Lock()
	if b.reorder.Active() {
		b.mu.Unlock()
		return ErrReordering
	}
	if b.indexOf(id) < 0 {
		b.mu.Unlock()
		return ErrUnknownCard
	}
	if b.busyLocked(id) {
		b.mu.Unlock()
		return ErrBusy
	}
	b.dragSeq++
	b.drag = DragState{Phase: DragDragging, CardID: id}
	b.mu.Unlock()

	b.publish()
	return nil
}

// DragOver marks columnID as the hover target. It reports false when the column is
// already marked.
func (b *Board) DragOver(columnID string) (bool, error) {
	b.mu.Lock()
	if b.reorder.Active() {
		b.mu.Unlock()
		return false, ErrReordering
	}
	if b.drag.Phase == DragIdle {
		b.mu.Unlock()
		return false, ErrNotDragging
	}
	if b.columnIndex(columnID) < 0 {
		b.mu.Unlock()
		return false, ErrUnknownColumn
	}
	if b.drag.Phase == DragHovering && b.drag.ColumnID == columnID {
		b.mu.Unlock()
		return false, nil
	}
	b.drag.Phase = DragHovering
	b.drag.ColumnID = columnID
	b.mu.Unlock()

	b.publish()
	return true, nil
}

// DragLeave clears the hover marker for columnID once pointer is outside bounds.
func (b *Board) DragLeave(columnID string, pointer Point, bounds Rect) bool {
	b.mu.Lock()
	if b.drag.Phase != DragHovering || b.drag.ColumnID != columnID || bounds.Contains(pointer) {
		b.mu.Unlock()
		return false
	}
	b.drag.Phase = DragDragging
	b.drag.ColumnID = ""
	b.mu.Unlock()

	b.publish()
	return true
}

// DragCancel drops the drag without moving anything.
func (b *Board) DragCancel() {
	b.mu.Lock()
	if b.drag.Phase == DragIdle {
		b.mu.Unlock()
		return
	}
	b.dragSeq++
	b.drag = DragState{}
	b.mu.Unlock()

	b.publish()
}

// Drop moves the dragged card into columnID. payloadID, when non-zero, wins over the
// card recorded at drag start. Drag state is cleared on every path.
func (b *Board) Drop(ctx context.Context, columnID string, payloadID int64) error {
	b.mu.Lock()
	seq := b.dragSeq
	reordering := b.reorder.Active()
	id := payloadID
	if id == 0 {
		id = b.drag.CardID
	}
	known := b.columnIndex(columnID) >= 0
	b.mu.Unlock()

	defer b.clearDrag(seq)

	switch {
	case reordering:
		return ErrReordering
	case id == 0:
		return ErrNotDragging
	case !known:
		return fmt.Errorf("drop on %q: %w", columnID, ErrUnknownColumn)
	}
	b.logger.Debug("card dropped", "card_id", id, "column", columnID)
	return b.ChangeStatus(ctx, id, columnID)
}

// clearDrag resets the drag state unless a newer drag started since seq.
func (b *Board) clearDrag(seq uint64) {
	b.mu.Lock()
	if b.dragSeq != seq || b.drag.Phase == DragIdle {
		b.mu.Unlock()
		return
	}
	b.drag = DragState{}
	b.mu.Unlock()

	b.publish()
}
