package tui

import (
	"errors"
	"fmt"
	"slices"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/kanview/internal/board"
	"github.com/evanschultz/kanview/internal/domain"
)

// filter-modal rows in display order.
const (
	filterRowColumn = iota
	filterRowPriority
	filterRowAssignee
	filterRowJobNumber
	filterRowServiceQuote
	filterRowTags
	filterRowCount
)

// handleNormalModeKey handles board keys when no modal is open.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.board.Reordering() {
		return m.handleReorderKey(msg)
	}
	if m.board.Drag().Phase != board.DragIdle {
		return m.handleGrabKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case msg.String() == "esc":
		if m.help.ShowAll {
			m.help.ShowAll = false
			return m, nil
		}
		if m.board.Criteria().Active() {
			m.board.ResetFilters()
			m.searchInput.SetValue("")
			m.setStatus(board.LevelInfo, "filters cleared")
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.loading = true
		m.setStatus(board.LevelInfo, "reloading...")
		return m, m.loadCards()
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.selectedCard = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedColumn < len(m.lanes())-1 {
			m.selectedColumn++
			m.selectedCard = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if lane, ok := m.selectedLane(); ok && m.selectedCard < len(lane.Cards)-1 {
			m.selectedCard++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedCard > 0 {
			m.selectedCard--
		}
		return m, nil
	case key.Matches(msg, m.keys.newCard):
		return m, m.startCardForm(nil)
	case key.Matches(msg, m.keys.editCard):
		entry, ok := m.actionableCard()
		if !ok {
			return m, nil
		}
		return m, m.startCardForm(&entry.Card)
	case key.Matches(msg, m.keys.cardInfo):
		entry, ok := m.selectedCardEntry()
		if !ok {
			return m, nil
		}
		m.infoCardID = entry.ID
		m.mode = modeCardInfo
		return m, nil
	case key.Matches(msg, m.keys.deleteCard):
		return m.requestDeleteCard()
	case key.Matches(msg, m.keys.moveCardLeft):
		return m.moveSelectedCard(-1)
	case key.Matches(msg, m.keys.moveCardRight):
		return m.moveSelectedCard(1)
	case key.Matches(msg, m.keys.grabCard):
		entry, ok := m.actionableCard()
		if !ok {
			return m, nil
		}
		if err := m.board.DragStart(entry.ID); err != nil {
			m.reportBoardErr("grab", err)
			return m, nil
		}
		// Grabbed cards hover their current lane until moved.
		if lane, ok := m.selectedLane(); ok {
			_, _ = m.board.DragOver(lane.Column.ID)
		}
		m.setStatus(board.LevelInfo, fmt.Sprintf("moving %q • h/l pick column • enter drop • esc cancel", entry.Title))
		return m, nil
	case key.Matches(msg, m.keys.yankCard):
		return m.yankCard()
	case key.Matches(msg, m.keys.search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.board.Criteria().Search)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()
	case key.Matches(msg, m.keys.filters):
		m.mode = modeFilters
		m.filterRow = 0
		m.filterTag = 0
		return m, nil
	case key.Matches(msg, m.keys.clearFilters):
		m.board.ResetFilters()
		m.searchInput.SetValue("")
		m.setStatus(board.LevelInfo, "filters cleared")
		return m, nil
	case key.Matches(msg, m.keys.newColumn):
		return m, m.startColumnForm()
	case key.Matches(msg, m.keys.deleteColumn):
		return m.requestDeleteColumn()
	case key.Matches(msg, m.keys.reorder):
		m.board.BeginReorder()
		m.setStatus(board.LevelInfo, "reorder • h/l select • H/L or </> move • enter save • esc cancel")
		return m, nil
	default:
		return m, nil
	}
}

// handleReorderKey handles keys while the column-order draft is open.
func (m Model) handleReorderKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	lanes := m.lanes()
	switch msg.String() {
	case "h", "left":
		m.selectedColumn = clamp(m.selectedColumn-1, 0, len(lanes)-1)
	case "l", "right":
		m.selectedColumn = clamp(m.selectedColumn+1, 0, len(lanes)-1)
	case "H", "shift+h", "<", "shift+left":
		if len(lanes) > 0 && m.board.MoveColumn(lanes[m.selectedColumn].Column.ID, -1) {
			m.selectedColumn--
		}
	case "L", "shift+l", ">", "shift+right":
		if len(lanes) > 0 && m.board.MoveColumn(lanes[m.selectedColumn].Column.ID, 1) {
			m.selectedColumn++
		}
	case "enter", "s":
		if m.board.SaveReorder() {
			m.setStatus(board.LevelSuccess, "column order saved")
		} else {
			m.board.CancelReorder()
			m.setStatus(board.LevelInfo, "column order unchanged")
		}
	case "esc", "q":
		m.board.CancelReorder()
		m.setStatus(board.LevelInfo, "reorder cancelled")
	case "ctrl+c":
		return m, tea.Quit
	}
	m.clampSelections()
	return m, nil
}

// handleGrabKey handles keys while a card is held.
func (m Model) handleGrabKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	lanes := m.lanes()
	drag := m.board.Drag()
	target := laneIndex(lanes, drag.ColumnID)
	if target < 0 {
		target = m.selectedColumn
	}
	switch msg.String() {
	case "h", "left":
		target = clamp(target-1, 0, len(lanes)-1)
	case "l", "right":
		target = clamp(target+1, 0, len(lanes)-1)
	case "enter", "m", "space", " ":
		if drag.Phase != board.DragHovering {
			m.board.DragCancel()
			return m, nil
		}
		m.selectedColumn = target
		return m, m.dropCard(drag.ColumnID)
	case "esc":
		m.board.DragCancel()
		m.setStatus(board.LevelInfo, "move cancelled")
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	default:
		return m, nil
	}
	if len(lanes) == 0 {
		return m, nil
	}
	if _, err := m.board.DragOver(lanes[target].Column.ID); err != nil {
		m.reportBoardErr("move", err)
		return m, nil
	}
	m.selectedColumn = target
	return m, nil
}

// handleInputModeKey dispatches keys to the open modal.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeFilters:
		return m.handleFilterKey(msg)
	case modeCardForm:
		return m.handleCardFormKey(msg)
	case modeColumnForm:
		return m.handleColumnFormKey(msg)
	case modeConfirm:
		return m.handleConfirmKey(msg)
	case modeCardInfo:
		return m.handleCardInfoKey(msg)
	default:
		m.mode = modeNone
		return m, nil
	}
}

// handleSearchKey edits the search predicate live.
func (m Model) handleSearchKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchInput.SetValue("")
		m.applySearch()
		m.searchInput.Blur()
		m.mode = modeNone
		return m, nil
	case "enter":
		m.searchInput.Blur()
		m.mode = modeNone
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applySearch()
	return m, cmd
}

// applySearch pushes the search box into the board criteria.
func (m *Model) applySearch() {
	criteria := m.board.Criteria()
	if criteria.Search == m.searchInput.Value() {
		return
	}
	criteria.Search = m.searchInput.Value()
	m.board.SetCriteria(criteria)
	m.clampSelections()
}

// filterChoices lists the selector values for a filter row, All first.
func (m Model) filterChoices(row int) []string {
	opts := m.board.FilterOptions()
	out := []string{board.All}
	switch row {
	case filterRowColumn:
		for _, col := range m.board.Columns() {
			out = append(out, col.ID)
		}
	case filterRowPriority:
		for _, p := range domain.Priorities() {
			out = append(out, string(p))
		}
	case filterRowAssignee:
		out = append(out, opts.Assignees...)
	case filterRowJobNumber:
		out = append(out, opts.JobNumbers...)
	case filterRowServiceQuote:
		out = append(out, opts.ServiceQuotes...)
	}
	return out
}

// filterValue reads the criteria field behind row.
func filterValue(c board.Criteria, row int) string {
	var v string
	switch row {
	case filterRowColumn:
		v = c.Column
	case filterRowPriority:
		v = c.Priority
	case filterRowAssignee:
		v = c.Assignee
	case filterRowJobNumber:
		v = c.JobNumber
	case filterRowServiceQuote:
		v = c.ServiceQuote
	}
	if v == "" {
		return board.All
	}
	return v
}

// withFilterValue returns c with the criteria field behind row set to v.
func withFilterValue(c board.Criteria, row int, v string) board.Criteria {
	switch row {
	case filterRowColumn:
		c.Column = v
	case filterRowPriority:
		c.Priority = v
	case filterRowAssignee:
		c.Assignee = v
	case filterRowJobNumber:
		c.JobNumber = v
	case filterRowServiceQuote:
		c.ServiceQuote = v
	}
	return c
}

// handleFilterKey cycles selector values and toggles tags.
func (m Model) handleFilterKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	criteria := m.board.Criteria()
	switch msg.String() {
	case "esc", "enter", "f":
		m.mode = modeNone
		return m, nil
	case "j", "down", "tab":
		m.filterRow = wrapIndex(m.filterRow, 1, filterRowCount)
		return m, nil
	case "k", "up", "shift+tab":
		m.filterRow = wrapIndex(m.filterRow, -1, filterRowCount)
		return m, nil
	case "x":
		m.board.ResetFilters()
		m.searchInput.SetValue("")
		return m, nil
	}

	if m.filterRow == filterRowTags {
		tags := m.board.Tags()
		if len(tags) == 0 {
			return m, nil
		}
		switch msg.String() {
		case "h", "left":
			m.filterTag = wrapIndex(m.filterTag, -1, len(tags))
		case "l", "right":
			m.filterTag = wrapIndex(m.filterTag, 1, len(tags))
		case "space", " ":
			m.board.SetCriteria(criteria.WithTag(tags[clamp(m.filterTag, 0, len(tags)-1)]))
			m.clampSelections()
		}
		return m, nil
	}

	delta := 0
	switch msg.String() {
	case "h", "left":
		delta = -1
	case "l", "right", "space", " ":
		delta = 1
	default:
		return m, nil
	}
	choices := m.filterChoices(m.filterRow)
	current := max(slices.Index(choices, filterValue(criteria, m.filterRow)), 0)
	next := choices[wrapIndex(current, delta, len(choices))]
	m.board.SetCriteria(withFilterValue(criteria, m.filterRow, next))
	m.clampSelections()
	return m, nil
}

// handleCardInfoKey handles keys in the card detail modal.
func (m Model) handleCardInfoKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "esc", key.Matches(msg, m.keys.cardInfo), key.Matches(msg, m.keys.quit):
		m.mode = modeNone
		return m, nil
	case key.Matches(msg, m.keys.yankCard):
		return m.yankCard()
	case key.Matches(msg, m.keys.editCard):
		card, ok := m.board.Card(m.infoCardID)
		if !ok || m.board.IsDeleting(card.ID) {
			m.mode = modeNone
			return m, nil
		}
		return m, m.startCardForm(&card)
	}
	return m, nil
}

// actionableCard returns the selected card unless a deletion or status change is in flight.
func (m *Model) actionableCard() (board.LaneCard, bool) {
	entry, ok := m.selectedCardEntry()
	if !ok {
		return board.LaneCard{}, false
	}
	if entry.Deleting || entry.StatusUpdating {
		m.setStatus(board.LevelInfo, "card is busy")
		return board.LaneCard{}, false
	}
	return entry, true
}

// moveSelectedCard changes the selected card's status to the neighboring column.
func (m Model) moveSelectedCard(delta int) (tea.Model, tea.Cmd) {
	entry, ok := m.actionableCard()
	if !ok {
		return m, nil
	}
	if m.board.Reordering() {
		m.setStatus(board.LevelInfo, "finish reordering columns first")
		return m, nil
	}
	lanes := m.lanes()
	target := m.selectedColumn + delta
	if target < 0 || target >= len(lanes) {
		return m, nil
	}
	m.selectedColumn = target
	return m, m.changeStatus(entry.ID, lanes[target].Column.ID)
}

// requestDeleteCard deletes the selected card, asking first when configured.
func (m Model) requestDeleteCard() (tea.Model, tea.Cmd) {
	entry, ok := m.actionableCard()
	if !ok {
		return m, nil
	}
	if !m.confirmDeleteCard {
		return m, m.deleteCard(entry.ID)
	}
	m.confirm = pendingConfirm{
		kind:   confirmDeleteCard,
		cardID: entry.ID,
		title:  "Delete card",
		body:   fmt.Sprintf("Delete %q? It is archived on the server.", entry.Title),
	}
	m.mode = modeConfirm
	return m, nil
}

// requestDeleteColumn asks before deleting the selected column. The prompt always
// names the fallback column.
func (m Model) requestDeleteColumn() (tea.Model, tea.Cmd) {
	lane, ok := m.selectedLane()
	if !ok {
		return m, nil
	}
	plan, err := m.board.PlanColumnDeletion(lane.Column.ID)
	if err != nil {
		m.reportBoardErr("delete column", err)
		return m, nil
	}
	body := fmt.Sprintf("Delete column %s? It is empty; %s becomes the fallback.", plan.Column.Label, plan.Fallback.Label)
	if plan.CardCount > 0 {
		body = fmt.Sprintf("Delete column %s? %d card(s) move to %s.", plan.Column.Label, plan.CardCount, plan.Fallback.Label)
	}
	m.confirm = pendingConfirm{
		kind:     confirmDeleteColumn,
		columnID: plan.Column.ID,
		title:    "Delete column",
		body:     body,
	}
	m.mode = modeConfirm
	return m, nil
}

// handleConfirmKey resolves the confirmation modal.
func (m Model) handleConfirmKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		pending := m.confirm
		m.confirm = pendingConfirm{}
		m.mode = modeNone
		switch pending.kind {
		case confirmDeleteCard:
			return m, m.deleteCard(pending.cardID)
		case confirmDeleteColumn:
			if m.selectedColumn > 0 {
				m.selectedColumn--
			}
			return m, m.deleteColumn(pending.columnID)
		}
		return m, nil
	case "n", "esc", "q":
		m.confirm = pendingConfirm{}
		m.mode = modeNone
		m.setStatus(board.LevelInfo, "cancelled")
		return m, nil
	}
	return m, nil
}

// reportBoardErr turns synchronous board errors into status text.
func (m *Model) reportBoardErr(action string, err error) {
	switch {
	case errors.Is(err, board.ErrBusy):
		m.setStatus(board.LevelInfo, "card is busy")
	case errors.Is(err, board.ErrReordering):
		m.setStatus(board.LevelInfo, "finish reordering columns first")
	case errors.Is(err, board.ErrFallbackColumn):
		m.setStatus(board.LevelInfo, "the first column cannot be deleted")
	default:
		m.setStatus(board.LevelError, action+": "+err.Error())
	}
}
