package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/log"

	"github.com/evanschultz/kanview/internal/board"
	"github.com/evanschultz/kanview/internal/domain"
)

var errBackend = errors.New("backend unavailable")

// fakeCardAPI is an in-memory board.CardAPI.
type fakeCardAPI struct {
	mu       sync.Mutex
	cards    []domain.Card
	nextID   int64
	patchErr error

	createCalls  int
	archiveCalls []int64
}

func newFakeCardAPI(cards ...domain.Card) *fakeCardAPI {
	next := int64(1)
	for _, c := range cards {
		next = max(next, c.ID+1)
	}
	return &fakeCardAPI{cards: slices.Clone(cards), nextID: next}
}

func (f *fakeCardAPI) ListCards(context.Context) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.cards), nil
}

func (f *fakeCardAPI) CreateCard(_ context.Context, in domain.CardInput) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	card, err := domain.NewCard(f.nextID, in, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		return domain.Card{}, err
	}
	f.nextID++
	f.cards = append(f.cards, card)
	return card, nil
}

func (f *fakeCardAPI) UpdateCard(_ context.Context, id int64, in domain.CardInput) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.cards {
		if f.cards[i].ID == id {
			if err := f.cards[i].Update(in, time.Now()); err != nil {
				return domain.Card{}, err
			}
			return f.cards[i], nil
		}
	}
	return domain.Card{}, errors.New("not found")
}

func (f *fakeCardAPI) PatchCardStatus(_ context.Context, id int64, status string) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return domain.Card{}, f.patchErr
	}
	for i := range f.cards {
		if f.cards[i].ID == id {
			f.cards[i].Status = status
			return f.cards[i], nil
		}
	}
	return domain.Card{}, errors.New("not found")
}

func (f *fakeCardAPI) ArchiveCard(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveCalls = append(f.archiveCalls, id)
	f.cards = slices.DeleteFunc(f.cards, func(c domain.Card) bool { return c.ID == id })
	return nil
}

func testCard(id int64, title, status string, tags ...string) domain.Card {
	return domain.Card{
		ID:       id,
		Title:    title,
		Status:   status,
		Priority: domain.PriorityMedium,
		Tags:     tags,
		IsActive: true,
	}
}

func sampleCards() []domain.Card {
	return []domain.Card{
		testCard(1, "Replace pump seal", domain.StatusBacklog, "urgent"),
		testCard(2, "Quote chiller", domain.StatusBacklog),
		testCard(3, "Inspect boiler", domain.StatusInProgress, "warranty"),
		testCard(4, "Legacy ticket", "legacy"),
	}
}

// newTestModel builds a loaded model with a 120x40 window.
func newTestModel(t *testing.T, api *fakeCardAPI, opts ...Option) (Model, *board.Board, *Events) {
	t.Helper()
	events := NewEvents()
	b := board.New(api, events, board.Config{Logger: log.New(io.Discard)})
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	m := NewModel(b, events, opts...)
	m = applyMsg(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = applyMsg(t, m, loadedMsg{})
	return m, b, events
}

// update applies msg and drops any follow-up command.
func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return out
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = update(t, m, keyRune(r))
	}
	return m
}

// drainNotices returns every queued notice.
func drainNotices(events *Events) []board.Notice {
	var out []board.Notice
	for {
		msg, ok := events.next()
		if !ok {
			return out
		}
		if n, ok := msg.(noticeMsg); ok {
			out = append(out, board.Notice(n))
		}
	}
}

func TestModelRendersLanesAndOrphans(t *testing.T) {
	m, _, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	out := m.renderBoard()
	for _, want := range []string{"Backlog (3)", "Replace pump seal", "Inspect boiler", "Legacy ticket", "no column: legacy"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected board to contain %q\n%s", want, out)
		}
	}
	if m.modeLabel() != "board" {
		t.Fatalf("unexpected mode label %q", m.modeLabel())
	}
}

func TestModelNavigationClampsSelection(t *testing.T) {
	m, _, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
	if m.selectedCard != 2 {
		t.Fatalf("expected cursor on last backlog card, got %d", m.selectedCard)
	}
	m = update(t, m, keyRune('l'))
	if m.selectedColumn != 1 || m.selectedCard != 0 {
		t.Fatalf("expected second lane first card, got %d/%d", m.selectedColumn, m.selectedCard)
	}
	entry, ok := m.selectedCardEntry()
	if !ok || entry.ID != 3 {
		t.Fatalf("expected card 3 selected, got %#v", entry)
	}
	for range 10 {
		m = update(t, m, keyRune('l'))
	}
	if m.selectedColumn != len(m.lanes())-1 {
		t.Fatalf("expected cursor clamped to last lane, got %d", m.selectedColumn)
	}
}

func TestModelCreateCardValidatesInline(t *testing.T) {
	api := newFakeCardAPI(sampleCards()...)
	m, b, _ := newTestModel(t, api)

	m = update(t, m, keyRune('n'))
	if m.mode != modeCardForm {
		t.Fatalf("expected card form, got mode %d", m.mode)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.form.errs["title"] == "" {
		t.Fatalf("expected inline title error, got %#v", m.form.errs)
	}
	if api.createCalls != 0 {
		t.Fatalf("expected no request for invalid form, got %d", api.createCalls)
	}

	m = typeText(t, m, "Service rooftop unit")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone {
		t.Fatalf("expected form to close, got mode %d (err %q, errs %#v)", m.mode, m.form.err, m.form.errs)
	}
	if api.createCalls != 1 {
		t.Fatalf("expected one create, got %d", api.createCalls)
	}
	entry, ok := m.selectedCardEntry()
	if !ok || entry.Title != "Service rooftop unit" || entry.Status != domain.StatusBacklog {
		t.Fatalf("expected new card selected in backlog, got %#v", entry)
	}
	if len(b.Cards()) != 5 {
		t.Fatalf("expected five cards, got %d", len(b.Cards()))
	}
}

func TestModelCardFormRejectsBadDueDate(t *testing.T) {
	api := newFakeCardAPI(sampleCards()...)
	m, _, _ := newTestModel(t, api)

	m = update(t, m, keyRune('n'))
	m = typeText(t, m, "Ship parts")
	for range formDue {
		m = update(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	}
	if m.form.focus != formDue {
		t.Fatalf("expected due field focus, got %d", m.form.focus)
	}
	m = typeText(t, m, "03/04/2026")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.form.errs["due_date"] == "" || api.createCalls != 0 {
		t.Fatalf("expected due date error and no request, got %#v calls=%d", m.form.errs, api.createCalls)
	}
}

func TestModelCardFormCyclesStatusAndPriority(t *testing.T) {
	m, _, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, keyRune('n'))
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.form.focus != formStatus {
		t.Fatalf("expected status focus, got %d", m.form.focus)
	}
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyRight})
	if m.formStatusValue() != domain.StatusInProgress {
		t.Fatalf("expected in-progress, got %q", m.formStatusValue())
	}
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyLeft})
	in, err := m.cardInputFromForm()
	if err != nil {
		t.Fatalf("cardInputFromForm() error = %v", err)
	}
	if in.Priority != domain.PriorityLow {
		t.Fatalf("expected low priority, got %q", in.Priority)
	}
}

func TestModelEditOrphanKeepsStatus(t *testing.T) {
	m, _, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))
	m.focusCard(4)

	m = update(t, m, keyRune('e'))
	if m.mode != modeCardForm || m.form.editingID != 4 {
		t.Fatalf("expected edit form for card 4, got mode %d id %d", m.mode, m.form.editingID)
	}
	if m.formStatusValue() != "legacy" {
		t.Fatalf("expected orphan status preserved, got %q", m.formStatusValue())
	}
	if !strings.Contains(m.renderCardForm(accentColor, mutedColor, 60), "(no column)") {
		t.Fatal("expected orphan marker in form")
	}
}

func TestModelNewTagJoinsVocabulary(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, keyRune('n'))
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyTab, Mod: tea.ModShift})
	if m.form.focus != formNewTag {
		t.Fatalf("expected new tag focus, got %d", m.form.focus)
	}
	m = typeText(t, m, "hvac")
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeCardForm {
		t.Fatal("expected enter on the new tag field to keep the form open")
	}
	if !slices.Contains(b.Tags(), "hvac") {
		t.Fatalf("expected hvac in vocabulary, got %#v", b.Tags())
	}
	if got := m.form.inputs[formTags].Value(); got != "hvac" {
		t.Fatalf("expected tag attached to card, got %q", got)
	}
	if m.form.inputs[formNewTag].Value() != "" {
		t.Fatal("expected new tag input cleared")
	}
}

func TestModelMoveCardRollsBackOnFailure(t *testing.T) {
	api := newFakeCardAPI(sampleCards()...)
	api.patchErr = errBackend
	m, b, events := newTestModel(t, api)
	drainNotices(events)

	m = applyMsg(t, m, keyRune(']'))
	card, _ := b.Card(1)
	if card.Status != domain.StatusBacklog {
		t.Fatalf("expected rollback to backlog, got %q", card.Status)
	}
	if b.IsStatusUpdating(1) {
		t.Fatal("expected busy flag cleared")
	}
	notices := drainNotices(events)
	if len(notices) != 1 || notices[0].Level != board.LevelError || !strings.Contains(notices[0].Message, "Replace pump seal") {
		t.Fatalf("unexpected notices %#v", notices)
	}
}

func TestModelKeyboardGrabAndDrop(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, keyRune('m'))
	if drag := b.Drag(); drag.Phase != board.DragHovering || drag.CardID != 1 || drag.ColumnID != domain.StatusBacklog {
		t.Fatalf("unexpected drag after grab %#v", drag)
	}
	m = update(t, m, keyRune('l'))
	m = update(t, m, keyRune('l'))
	if drag := b.Drag(); drag.ColumnID != domain.StatusReview {
		t.Fatalf("expected hover on review, got %#v", drag)
	}
	if m.modeLabel() != "moving" {
		t.Fatalf("unexpected mode label %q", m.modeLabel())
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	card, _ := b.Card(1)
	if card.Status != domain.StatusReview {
		t.Fatalf("expected card in review, got %q", card.Status)
	}
	if b.Drag().Phase != board.DragIdle {
		t.Fatalf("expected idle drag, got %#v", b.Drag())
	}

	m = update(t, m, keyRune('m'))
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if b.Drag().Phase != board.DragIdle {
		t.Fatal("expected esc to cancel the drag")
	}
	_ = m
}

func TestModelMouseDragAndDrop(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))
	lanes := m.lanes()
	first := m.laneRect(0, len(lanes))
	third := m.laneRect(2, len(lanes))

	m = update(t, m, tea.MouseClickMsg{X: first.X + 3, Y: first.Y + laneChromeTop + cardRows, Button: tea.MouseLeft})
	if m.selectedColumn != 0 || m.selectedCard != 1 || m.pressedCard != 2 {
		t.Fatalf("expected card 2 pressed, got col %d card %d pressed %d", m.selectedColumn, m.selectedCard, m.pressedCard)
	}

	m = update(t, m, tea.MouseMotionMsg{X: third.X + 4, Y: third.Y + 6, Button: tea.MouseLeft})
	if drag := b.Drag(); drag.Phase != board.DragHovering || drag.CardID != 2 || drag.ColumnID != domain.StatusReview {
		t.Fatalf("unexpected drag %#v", drag)
	}

	// Leaving the board clears the hover marker but keeps the drag.
	m = update(t, m, tea.MouseMotionMsg{X: third.X + 4, Y: 1, Button: tea.MouseLeft})
	if drag := b.Drag(); drag.Phase != board.DragDragging || drag.ColumnID != "" {
		t.Fatalf("expected hover cleared, got %#v", drag)
	}

	m = update(t, m, tea.MouseMotionMsg{X: third.X + 4, Y: third.Y + 6, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: third.X + 4, Y: third.Y + 6, Button: tea.MouseLeft})
	card, _ := b.Card(2)
	if card.Status != domain.StatusReview {
		t.Fatalf("expected card 2 in review, got %q", card.Status)
	}
	if b.Drag().Phase != board.DragIdle || m.pressedCard != 0 {
		t.Fatal("expected drag state cleared after drop")
	}
}

func TestModelMouseReleaseOutsideCancelsDrag(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))
	first := m.laneRect(0, len(m.lanes()))

	m = update(t, m, tea.MouseClickMsg{X: first.X + 3, Y: first.Y + laneChromeTop, Button: tea.MouseLeft})
	m = update(t, m, tea.MouseMotionMsg{X: first.X + 3, Y: first.Y + 8, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: first.X + 3, Y: 0, Button: tea.MouseLeft})
	card, _ := b.Card(1)
	if card.Status != domain.StatusBacklog || b.Drag().Phase != board.DragIdle {
		t.Fatalf("expected cancelled drag, got status %q drag %#v", card.Status, b.Drag())
	}
}

func TestModelDeleteCardAsksFirst(t *testing.T) {
	api := newFakeCardAPI(sampleCards()...)
	m, b, _ := newTestModel(t, api)

	m = update(t, m, keyRune('d'))
	if m.mode != modeConfirm || m.confirm.cardID != 1 {
		t.Fatalf("expected delete confirmation, got mode %d %#v", m.mode, m.confirm)
	}
	m = update(t, m, keyRune('n'))
	if len(api.archiveCalls) != 0 {
		t.Fatal("expected cancel to skip the request")
	}

	m = update(t, m, keyRune('d'))
	m = applyMsg(t, m, keyRune('y'))
	if _, ok := b.Card(1); ok {
		t.Fatal("expected card removed")
	}
	if !slices.Equal(api.archiveCalls, []int64{1}) {
		t.Fatalf("unexpected archive calls %#v", api.archiveCalls)
	}
}

func TestModelDeleteCardWithoutConfirm(t *testing.T) {
	api := newFakeCardAPI(sampleCards()...)
	m, _, _ := newTestModel(t, api, WithConfirm(false))

	m = applyMsg(t, m, keyRune('d'))
	if m.mode != modeNone || len(api.archiveCalls) != 1 {
		t.Fatalf("expected immediate delete, mode %d calls %#v", m.mode, api.archiveCalls)
	}

	m = update(t, m, keyRune('l'))
	m = update(t, m, keyRune('X'))
	if m.mode != modeConfirm || m.confirm.kind != confirmDeleteColumn {
		t.Fatalf("expected column deletion to ask regardless, got mode %d %#v", m.mode, m.confirm)
	}
}

func TestModelDeleteColumn(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, keyRune('X'))
	if m.mode != modeNone || !strings.Contains(m.status, "first column") {
		t.Fatalf("expected first column refusal, got mode %d status %q", m.mode, m.status)
	}

	m = update(t, m, keyRune('l'))
	m = update(t, m, keyRune('X'))
	if m.mode != modeConfirm || !strings.Contains(m.confirm.body, "1 card(s) move to Backlog") {
		t.Fatalf("unexpected confirmation %#v", m.confirm)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	for _, col := range b.Columns() {
		if col.ID == domain.StatusInProgress {
			t.Fatal("expected in-progress column removed")
		}
	}
	card, _ := b.Card(3)
	if card.Status != domain.StatusBacklog {
		t.Fatalf("expected card moved to fallback, got %q", card.Status)
	}
	if m.selectedColumn != 0 {
		t.Fatalf("expected cursor on fallback lane, got %d", m.selectedColumn)
	}

	m = update(t, m, keyRune('l'))
	m = update(t, m, keyRune('X'))
	if m.mode != modeConfirm || !strings.Contains(m.confirm.body, "Review") || !strings.Contains(m.confirm.body, "Backlog becomes the fallback") {
		t.Fatalf("expected empty column prompt naming both columns, got %#v", m.confirm)
	}
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone || len(b.Columns()) != 3 {
		t.Fatalf("expected cancel to keep the column, mode %d columns %d", m.mode, len(b.Columns()))
	}
}

func TestModelReorderSaveAndCancel(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))
	original := columnIDs(b.Columns())

	m = update(t, m, keyRune('o'))
	if !b.Reordering() {
		t.Fatal("expected reorder mode")
	}
	m = update(t, m, keyRune('L'))
	if !b.ReorderDirty() || m.selectedColumn != 1 || m.modeLabel() != "reorder*" {
		t.Fatalf("expected dirty draft with cursor following, col %d label %q", m.selectedColumn, m.modeLabel())
	}
	if got := columnIDs(b.Columns()); !slices.Equal(got, original) {
		t.Fatalf("expected committed order untouched during draft, got %#v", got)
	}
	m = update(t, m, keyRune('d'))
	if m.mode != modeNone {
		t.Fatal("expected card actions ignored while reordering")
	}
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	want := []string{original[1], original[0], original[2], original[3]}
	if got := columnIDs(b.Columns()); !slices.Equal(got, want) {
		t.Fatalf("expected saved order %#v, got %#v", want, got)
	}

	m = update(t, m, keyRune('o'))
	m = update(t, m, keyRune('L'))
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if b.Reordering() {
		t.Fatal("expected reorder closed")
	}
	if got := columnIDs(b.Columns()); !slices.Equal(got, want) {
		t.Fatalf("expected cancel to keep saved order, got %#v", got)
	}
	_ = m
}

func columnIDs(cols []domain.Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.ID)
	}
	return out
}

func TestModelAddColumn(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, keyRune('C'))
	if m.mode != modeColumnForm {
		t.Fatalf("expected column form, got %d", m.mode)
	}
	m = typeText(t, m, "Backlog")
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeColumnForm || m.columnForm.errs["label"] == "" {
		t.Fatalf("expected duplicate label error, got %#v", m.columnForm.errs)
	}

	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone {
		t.Fatal("expected esc to close the column form")
	}
	m = update(t, m, keyRune('C'))
	m = typeText(t, m, "Waiting on Parts")
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyRight})
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone {
		t.Fatalf("expected column form closed, got errs %#v", m.columnForm.errs)
	}
	cols := b.Columns()
	last := cols[len(cols)-1]
	if last.ID != "waiting-on-parts" || last.Color != domain.ColorCyan {
		t.Fatalf("unexpected new column %#v", last)
	}
	if m.selectedColumn != len(cols)-1 {
		t.Fatalf("expected new column selected, got %d", m.selectedColumn)
	}
}

func TestModelFilters(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, keyRune('f'))
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyRight})
	if got := b.Criteria().Column; got != domain.StatusBacklog {
		t.Fatalf("expected backlog column filter, got %q", got)
	}
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyLeft})
	if got := b.Criteria().Column; got != board.All {
		t.Fatalf("expected column filter back to all, got %q", got)
	}

	for range filterRowTags {
		m = update(t, m, keyRune('j'))
	}
	m = update(t, m, keyRune(' '))
	if got := b.Criteria().Tags; !slices.Equal(got, []string{"urgent"}) {
		t.Fatalf("expected urgent tag filter, got %#v", got)
	}
	visible := 0
	for _, lane := range m.lanes() {
		visible += len(lane.Cards)
	}
	if visible != 1 {
		t.Fatalf("expected one visible card, got %d", visible)
	}
	if !strings.Contains(m.renderFilterLine(), "tags=urgent") {
		t.Fatalf("unexpected filter summary %q", m.renderFilterLine())
	}

	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	m = update(t, m, keyRune('x'))
	if b.Criteria().Active() {
		t.Fatalf("expected filters reset, got %#v", b.Criteria())
	}
}

func TestModelSearchIsLive(t *testing.T) {
	m, b, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, keyRune('/'))
	m = typeText(t, m, "boiler")
	if b.Criteria().Search != "boiler" {
		t.Fatalf("expected live search, got %q", b.Criteria().Search)
	}
	lanes := m.lanes()
	if len(lanes[0].Cards) != 0 || len(lanes[1].Cards) != 1 {
		t.Fatalf("unexpected filtered lanes %#v", lanes)
	}
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone || b.Criteria().Search != "boiler" {
		t.Fatal("expected enter to keep the search")
	}

	m = update(t, m, keyRune('/'))
	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if b.Criteria().Search != "" {
		t.Fatalf("expected esc to clear search, got %q", b.Criteria().Search)
	}
}

func TestModelYankCard(t *testing.T) {
	var copied string
	m, _, _ := newTestModel(t, newFakeCardAPI(sampleCards()...), WithClipboard(func(s string) error {
		copied = s
		return nil
	}))

	m = update(t, m, keyRune('y'))
	if !strings.HasPrefix(copied, "#1 Replace pump seal [Backlog]") || !strings.Contains(copied, "#urgent") {
		t.Fatalf("unexpected clipboard text %q", copied)
	}
	if m.statusLevel != board.LevelSuccess {
		t.Fatalf("expected success status, got %v %q", m.statusLevel, m.status)
	}

	m, _, _ = newTestModel(t, newFakeCardAPI(sampleCards()...), WithClipboard(func(string) error {
		return errors.New("no clipboard")
	}))
	m = update(t, m, keyRune('y'))
	if m.statusLevel != board.LevelError || !strings.Contains(m.status, "no clipboard") {
		t.Fatalf("expected copy failure status, got %q", m.status)
	}
}

func TestModelCardInfo(t *testing.T) {
	m, _, _ := newTestModel(t, newFakeCardAPI(sampleCards()...))

	m = update(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeCardInfo || m.infoCardID != 1 {
		t.Fatalf("expected info for card 1, got mode %d id %d", m.mode, m.infoCardID)
	}
	if out := m.renderModeOverlay(80); !strings.Contains(out, "pump") {
		t.Fatalf("expected detail overlay to include title\n%s", out)
	}
	m = update(t, m, keyRune('e'))
	if m.mode != modeCardForm || m.form.editingID != 1 {
		t.Fatal("expected edit from info modal")
	}
}

func TestModelNoticesAndRedraws(t *testing.T) {
	m, _, events := newTestModel(t, newFakeCardAPI(sampleCards()...))

	events.Notify(board.Notice{Level: board.LevelError, Message: "Failed to load cards: boom"})
	var msg tea.Msg
	for {
		msg = events.wait()
		if _, ok := msg.(noticeMsg); ok {
			break
		}
	}
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if m.statusLevel != board.LevelError || m.status != "Failed to load cards: boom" {
		t.Fatalf("unexpected status %v %q", m.statusLevel, m.status)
	}
	if cmd == nil {
		t.Fatal("expected the model to keep listening for events")
	}
	if !strings.Contains(m.renderStatusLine(), "boom") {
		t.Fatalf("unexpected status line %q", m.renderStatusLine())
	}
}

func TestEventsKeepNoticesPastBuffer(t *testing.T) {
	events := NewEvents()
	for i := range 500 {
		events.Notify(board.Notice{Level: board.LevelInfo, Message: fmt.Sprintf("n%d", i)})
		events.changed()
	}
	got := drainNotices(events)
	if len(got) != 500 || got[0].Message != "n0" || got[499].Message != "n499" {
		t.Fatalf("expected 500 ordered notices, got %d", len(got))
	}
	if _, ok := events.wait().(boardChangedMsg); !ok {
		t.Fatal("expected one coalesced redraw")
	}
	if _, ok := events.next(); ok {
		t.Fatal("expected the queue to be empty")
	}
}

func TestEventsCloseReleasesWait(t *testing.T) {
	events := NewEvents()
	done := make(chan tea.Msg, 1)
	go func() { done <- events.wait() }()

	events.Close()
	select {
	case msg := <-done:
		if msg != nil {
			t.Fatalf("expected nil after close, got %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return after Close")
	}

	events.Notify(board.Notice{Message: "late"})
	events.changed()
	events.Close()
	if msg := events.wait(); msg != nil {
		t.Fatalf("expected closed bridge to stay silent, got %#v", msg)
	}
}

func TestModelQuit(t *testing.T) {
	m, _, _ := newTestModel(t, newFakeCardAPI())
	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected quit message")
	}
}

func TestHelpers(t *testing.T) {
	if wrapIndex(0, -1, 4) != 3 || wrapIndex(3, 1, 4) != 0 || wrapIndex(2, 0, 0) != 0 {
		t.Fatal("unexpected wrapIndex results")
	}
	if truncate("abcdef", 4) != "abc…" || truncate("ab", 4) != "ab" || truncate("abc", 0) != "" {
		t.Fatal("unexpected truncate results")
	}
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("unexpected fitLines %q", got)
	}
	if got := summarizeTags([]string{"a", "b", "c"}, 2); got != "#a #b +1" {
		t.Fatalf("unexpected summarizeTags %q", got)
	}
	if got := splitTags(" a, b ,,a "); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected splitTags %#v", got)
	}
}
