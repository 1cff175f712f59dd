package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanschultz/kanview/internal/domain"
)

func columnIDs(cols []domain.Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.ID)
	}
	return out
}

func TestAddColumn(t *testing.T) {
	b := newLoadedBoard(t, newFakeAPI(), &noticeLog{})

	col, err := b.AddColumn("  Waiting on Parts ", domain.ColorOrange)
	require.NoError(t, err)
	assert.Equal(t, "waiting-on-parts", col.ID)
	assert.Equal(t, []string{"backlog", "doing", "done", "waiting-on-parts"}, columnIDs(b.Columns()))

	_, err = b.AddColumn("   ", domain.ColorRed)
	fields, ok := AsFieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, fields, "label")
}

func TestAddColumnSlugCollisionIsFieldError(t *testing.T) {
	b := newLoadedBoard(t, newFakeAPI(), &noticeLog{})
	before := b.Columns()

	_, err := b.AddColumn("Backlog", domain.ColorRed)
	fields, ok := AsFieldErrors(err)
	require.True(t, ok, "expected field error, got %v", err)
	assert.Equal(t, "A column with this name already exists", fields["label"])
	assert.Equal(t, before, b.Columns())
}

func TestAddColumnFallbackID(t *testing.T) {
	b := New(newFakeAPI(), nil, Config{NewID: func() string { return "col-fixed" }})
	col, err := b.AddColumn("!!!", "")
	require.NoError(t, err)
	assert.Equal(t, "col-fixed", col.ID)
	assert.Equal(t, "!!!", col.Label)
}

func TestDeleteColumnReassignsToPreceding(t *testing.T) {
	api := newFakeAPI(card(1, "a", "doing"), card(2, "b", "done"), card(3, "c", "doing"))
	b := newLoadedBoard(t, api, &noticeLog{})
	criteria := DefaultCriteria()
	criteria.Column = "doing"
	b.SetCriteria(criteria)

	plan, err := b.PlanColumnDeletion("doing")
	require.NoError(t, err)
	assert.Equal(t, "doing", plan.Column.ID)
	assert.Equal(t, "backlog", plan.Fallback.ID)
	assert.Equal(t, 2, plan.CardCount)

	require.NoError(t, b.DeleteColumn(context.Background(), "doing"))
	assert.Equal(t, []string{"backlog", "done"}, columnIDs(b.Columns()))
	for _, id := range []int64{1, 3} {
		got, _ := b.Card(id)
		assert.Equal(t, "backlog", got.Status)
	}
	other, _ := b.Card(2)
	assert.Equal(t, "done", other.Status)
	assert.Equal(t, All, b.Criteria().Column)
}

func TestDeleteFirstColumnIsNoop(t *testing.T) {
	api := newFakeAPI(card(1, "a", "backlog"))
	b := newLoadedBoard(t, api, &noticeLog{})

	require.NoError(t, b.DeleteColumn(context.Background(), "backlog"))
	assert.Equal(t, []string{"backlog", "doing", "done"}, columnIDs(b.Columns()))
	assert.Equal(t, 0, api.patchCount())

	_, err := b.PlanColumnDeletion("backlog")
	require.ErrorIs(t, err, ErrFallbackColumn)
	_, err = b.PlanColumnDeletion("nope")
	require.ErrorIs(t, err, ErrUnknownColumn)
	require.ErrorIs(t, b.DeleteColumn(context.Background(), "nope"), ErrUnknownColumn)
}

func TestDeleteColumnFailedMoveLeavesOrphan(t *testing.T) {
	api := newFakeAPI(card(1, "a", "done"))
	b := newLoadedBoard(t, api, &noticeLog{})
	api.patchErr[1] = errBackend

	err := b.DeleteColumn(context.Background(), "done")
	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, []string{"backlog", "doing"}, columnIDs(b.Columns()))

	lanes := b.Lanes()
	require.Len(t, lanes[0].Cards, 1)
	assert.True(t, lanes[0].Cards[0].Orphan)
}

func TestDeleteColumnWaitsForInFlightMoves(t *testing.T) {
	api := newFakeAPI(card(1, "a", "backlog"), card(2, "b", "doing"))
	notices := &noticeLog{}
	b := newLoadedBoard(t, api, notices)
	api.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- b.Drop(context.Background(), "doing", 1) }()
	require.Eventually(t, func() bool { return b.IsStatusUpdating(1) }, time.Second, time.Millisecond)

	require.ErrorIs(t, b.DeleteColumn(context.Background(), "doing"), ErrBusy)
	assert.Equal(t, []string{"backlog", "doing", "done"}, columnIDs(b.Columns()))

	close(api.gate)
	require.NoError(t, <-done)
	require.NoError(t, b.DeleteColumn(context.Background(), "doing"))
	for _, id := range []int64{1, 2} {
		got, _ := b.Card(id)
		assert.Equal(t, "backlog", got.Status, "card %d", id)
	}
	for _, lane := range b.Lanes() {
		for _, lc := range lane.Cards {
			assert.False(t, lc.Orphan, "card %d orphaned", lc.ID)
		}
	}
}

func TestDeleteColumnRefusesMovesIntoIt(t *testing.T) {
	api := newFakeAPI(card(1, "a", "doing"), card(2, "b", "done"))
	b := newLoadedBoard(t, api, &noticeLog{})
	api.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- b.DeleteColumn(context.Background(), "doing") }()
	require.Eventually(t, func() bool { return b.IsStatusUpdating(1) }, time.Second, time.Millisecond)

	require.ErrorIs(t, b.ChangeStatus(context.Background(), 2, "doing"), ErrBusy)
	require.ErrorIs(t, b.DeleteColumn(context.Background(), "doing"), ErrBusy)

	close(api.gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"backlog", "done"}, columnIDs(b.Columns()))
	other, _ := b.Card(2)
	assert.Equal(t, "done", other.Status)
	require.NoError(t, b.ChangeStatus(context.Background(), 2, "backlog"))
}

func TestReorderCancelKeepsCommittedOrder(t *testing.T) {
	b := newLoadedBoard(t, newFakeAPI(), &noticeLog{})
	before := b.Columns()

	b.BeginReorder()
	require.True(t, b.MoveColumn("done", -1))
	assert.True(t, b.ReorderDirty())
	assert.Equal(t, []string{"backlog", "done", "doing"}, laneIDs(b.Lanes()))
	assert.Equal(t, before, b.Columns())

	b.CancelReorder()
	assert.False(t, b.Reordering())
	assert.Equal(t, before, b.Columns())
}

func TestReorderSaveCommitsDraft(t *testing.T) {
	b := newLoadedBoard(t, newFakeAPI(), &noticeLog{})

	b.BeginReorder()
	assert.False(t, b.SaveReorder(), "clean draft must not be saveable")
	require.True(t, b.MoveColumn("done", -1))
	require.True(t, b.SaveReorder())
	assert.False(t, b.Reordering())
	assert.Equal(t, []string{"backlog", "done", "doing"}, columnIDs(b.Columns()))
}

func TestReorderBoundariesAndRoundTrip(t *testing.T) {
	b := newLoadedBoard(t, newFakeAPI(), &noticeLog{})
	assert.False(t, b.MoveColumn("doing", 1), "moves outside reorder mode are ignored")

	b.BeginReorder()
	assert.False(t, b.MoveColumn("backlog", -1))
	assert.False(t, b.MoveColumn("done", 1))
	require.True(t, b.MoveColumn("backlog", 1))
	require.True(t, b.MoveColumn("backlog", -1))
	assert.False(t, b.ReorderDirty(), "swapping back restores the committed order")
}

func TestReorderDisablesColumnCreationAndDrag(t *testing.T) {
	api := newFakeAPI(card(1, "a", "backlog"))
	b := newLoadedBoard(t, api, &noticeLog{})
	b.BeginReorder()

	_, err := b.AddColumn("Blocked", domain.ColorRed)
	require.ErrorIs(t, err, ErrReordering)
	require.ErrorIs(t, b.DragStart(1), ErrReordering)
	require.ErrorIs(t, b.DeleteColumn(context.Background(), "doing"), ErrReordering)
	require.ErrorIs(t, b.Drop(context.Background(), "done", 1), ErrReordering)
	assert.Equal(t, 0, api.patchCount())
}

func laneIDs(lanes []Lane) []string {
	out := make([]string, 0, len(lanes))
	for _, lane := range lanes {
		out = append(out, lane.Column.ID)
	}
	return out
}
