package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"

	"github.com/evanschultz/kanview/internal/board"
	"github.com/evanschultz/kanview/internal/domain"
)

// defaultRequestTimeout bounds backend calls when no option overrides it.
const defaultRequestTimeout = 10 * time.Second

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeSearch
	modeFilters
	modeCardForm
	modeCardInfo
	modeColumnForm
	modeConfirm
)

// confirmKind identifies the destructive action awaiting confirmation.
type confirmKind int

const (
	confirmDeleteCard confirmKind = iota
	confirmDeleteColumn
)

// pendingConfirm describes the open confirmation modal.
type pendingConfirm struct {
	kind     confirmKind
	cardID   int64
	columnID string
	title    string
	body     string
}

// Model is the bubbletea board view over a board.Board.
type Model struct {
	board  *board.Board
	events *Events

	help    help.Model
	keys    keyMap
	width   int
	height  int
	ready   bool
	loaded  bool
	loading bool

	mode           inputMode
	selectedColumn int
	selectedCard   int

	status      string
	statusLevel board.Level

	timeout           time.Duration
	confirmDeleteCard bool
	searchHint        bool
	copyText          func(string) error

	searchInput textinput.Model
	filterRow   int
	filterTag   int
	form        cardForm
	columnForm  columnForm
	confirm     pendingConfirm
	infoCardID  int64
	markdown    *markdownRenderer

	// pressedCard is the card under the last left click; motion with the button held
	// turns it into a drag.
	pressedCard int64
	hoverColumn string
}

// loadedMsg reports a finished load.
type loadedMsg struct {
	err error
}

// cardSavedMsg reports a finished create or update.
type cardSavedMsg struct {
	card    domain.Card
	created bool
	err     error
}

// actionMsg reports a finished background board call.
type actionMsg struct {
	action string
	err    error
}

// NewModel constructs the board view. The model subscribes to b for redraws, and
// events should be the notifier b was built with.
func NewModel(b *board.Board, events *Events, opts ...Option) Model {
	if events == nil {
		events = NewEvents()
	}
	b.Subscribe(events.changed)

	h := help.New()
	h.ShowAll = false
	searchInput := newModalInput("/ ", "search cards", "", 120)
	m := Model{
		board:             b,
		events:            events,
		help:              h,
		keys:              newKeyMap(),
		status:            "loading...",
		timeout:           defaultRequestTimeout,
		confirmDeleteCard: true,
		searchHint:        true,
		copyText:          clipboard.WriteAll,
		searchInput:       searchInput,
		markdown:          &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Close stops event delivery once the program has exited.
func (m Model) Close() {
	m.events.Close()
}

// Init loads the cards and starts listening for board events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCards(), m.events.wait)
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardChangedMsg:
		m.clampSelections()
		return m, m.events.wait

	case noticeMsg:
		m.setStatus(msg.Level, msg.Message)
		return m, m.events.wait

	case loadedMsg:
		m.loading = false
		m.loaded = true
		if msg.err == nil && m.statusLevel != board.LevelError {
			m.setStatus(board.LevelInfo, "ready")
		}
		m.clampSelections()
		return m, nil

	case cardSavedMsg:
		return m.handleCardSaved(msg)

	case actionMsg:
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, board.ErrBusy):
			m.setStatus(board.LevelInfo, msg.action+" already in progress")
		case errors.Is(msg.err, board.ErrReordering):
			m.setStatus(board.LevelInfo, "finish reordering columns first")
		case errors.Is(msg.err, board.ErrUnknownCard), errors.Is(msg.err, board.ErrUnknownColumn), errors.Is(msg.err, board.ErrNotDragging):
			m.setStatus(board.LevelError, msg.action+": "+msg.err.Error())
		}
		m.clampSelections()
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		if m.mode == modeSearch {
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(msg)
			return m, cmd
		}
		if m.mode == modeCardForm || m.mode == modeColumnForm {
			return m.forwardToFocusedInput(msg)
		}
		return m, nil
	}
}

// request runs a board call in a command with a bounded context. Calls are never
// cancelled by the view.
func (m Model) request(run func(context.Context) tea.Msg) tea.Cmd {
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return run(ctx)
	}
}

// loadCards fetches every card through the board.
func (m Model) loadCards() tea.Cmd {
	b := m.board
	return m.request(func(ctx context.Context) tea.Msg {
		return loadedMsg{err: b.Load(ctx)}
	})
}

// changeStatus moves a card through the optimistic controller.
func (m Model) changeStatus(id int64, status string) tea.Cmd {
	b := m.board
	return m.request(func(ctx context.Context) tea.Msg {
		return actionMsg{action: "move", err: b.ChangeStatus(ctx, id, status)}
	})
}

// dropCard finishes a drag onto columnID.
func (m Model) dropCard(columnID string) tea.Cmd {
	b := m.board
	return m.request(func(ctx context.Context) tea.Msg {
		return actionMsg{action: "move", err: b.Drop(ctx, columnID, 0)}
	})
}

func (m Model) deleteCard(id int64) tea.Cmd {
	b := m.board
	return m.request(func(ctx context.Context) tea.Msg {
		return actionMsg{action: "delete", err: b.DeleteCard(ctx, id)}
	})
}

// deleteColumn removes a column after moving its cards to the fallback.
func (m Model) deleteColumn(id string) tea.Cmd {
	b := m.board
	return m.request(func(ctx context.Context) tea.Msg {
		return actionMsg{action: "delete column", err: b.DeleteColumn(ctx, id)}
	})
}

// saveCard submits the form input as a create or an update.
func (m Model) saveCard(id int64, in domain.CardInput) tea.Cmd {
	b := m.board
	return m.request(func(ctx context.Context) tea.Msg {
		if id == 0 {
			card, err := b.CreateCard(ctx, in)
			return cardSavedMsg{card: card, created: true, err: err}
		}
		card, err := b.UpdateCard(ctx, id, in)
		return cardSavedMsg{card: card, err: err}
	})
}

// handleCardSaved closes the form on success and keeps it open with errors otherwise.
func (m Model) handleCardSaved(msg cardSavedMsg) (tea.Model, tea.Cmd) {
	m.form.saving = false
	if msg.err != nil {
		if fieldErrs, ok := board.AsFieldErrors(msg.err); ok {
			m.form.errs = fieldErrs
			return m, nil
		}
		if errors.Is(msg.err, board.ErrBusy) {
			m.setStatus(board.LevelInfo, "save already in progress")
			return m, nil
		}
		m.form.err = msg.err.Error()
		return m, nil
	}
	if m.mode == modeCardForm {
		m.mode = modeNone
	}
	m.form = cardForm{}
	m.focusCard(msg.card.ID)
	return m, nil
}

// setStatus updates the footer status line.
func (m *Model) setStatus(level board.Level, text string) {
	m.statusLevel = level
	m.status = text
}

// lanes returns the rendered lanes.
func (m Model) lanes() []board.Lane {
	return m.board.Lanes()
}

// selectedLane returns the lane under the column cursor.
func (m Model) selectedLane() (board.Lane, bool) {
	lanes := m.lanes()
	if len(lanes) == 0 {
		return board.Lane{}, false
	}
	return lanes[clamp(m.selectedColumn, 0, len(lanes)-1)], true
}

// selectedCardEntry returns the card under the cursor.
func (m Model) selectedCardEntry() (board.LaneCard, bool) {
	lane, ok := m.selectedLane()
	if !ok || len(lane.Cards) == 0 {
		return board.LaneCard{}, false
	}
	return lane.Cards[clamp(m.selectedCard, 0, len(lane.Cards)-1)], true
}

// focusCard moves the cursor onto the card with id when it is visible.
func (m *Model) focusCard(id int64) {
	for colIdx, lane := range m.lanes() {
		for cardIdx, card := range lane.Cards {
			if card.ID == id {
				m.selectedColumn = colIdx
				m.selectedCard = cardIdx
				return
			}
		}
	}
	m.clampSelections()
}

// clampSelections clamps selections.
func (m *Model) clampSelections() {
	lanes := m.lanes()
	if len(lanes) == 0 {
		m.selectedColumn = 0
		m.selectedCard = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(lanes)-1)
	cards := lanes[m.selectedColumn].Cards
	if len(cards) == 0 {
		m.selectedCard = 0
		return
	}
	m.selectedCard = clamp(m.selectedCard, 0, len(cards)-1)
}

// columnLabel resolves a column id to its label.
func (m Model) columnLabel(id string) string {
	for _, col := range m.board.Columns() {
		if col.ID == id {
			return col.Label
		}
	}
	return id
}

// yankCard copies the selected card's summary.
func (m Model) yankCard() (tea.Model, tea.Cmd) {
	entry, ok := m.selectedCardEntry()
	if !ok {
		m.setStatus(board.LevelInfo, "no card selected")
		return m, nil
	}
	if err := m.copyText(cardSummary(entry.Card, m.columnLabel(entry.Status))); err != nil {
		m.setStatus(board.LevelError, "copy failed: "+err.Error())
		return m, nil
	}
	m.setStatus(board.LevelSuccess, fmt.Sprintf("copied card #%d", entry.ID))
	return m, nil
}
