package tui

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/kanview/internal/board"
)

// laneRect returns the screen rectangle of lane idx.
func (m Model) laneRect(idx, count int) board.Rect {
	colWidth := m.columnWidthFor(m.width, count)
	// Rendered width includes border, padding, and the right margin.
	stride := lipgloss.Width(m.laneStyle(colWidth).Render(""))
	return board.Rect{
		X: idx * stride,
		Y: headerLines,
		W: stride,
		H: m.columnHeight(),
	}
}

// laneAt returns the lane index under p, or -1.
func (m Model) laneAt(p board.Point, lanes []board.Lane) int {
	for idx := range lanes {
		if m.laneRect(idx, len(lanes)).Contains(p) {
			return idx
		}
	}
	return -1
}

// cardAt returns the card index under p inside lane colIdx, or -1.
func (m Model) cardAt(p board.Point, colIdx int, lane board.Lane, count int) int {
	rect := m.laneRect(colIdx, count)
	row := p.Y - rect.Y - laneChromeTop
	if row < 0 {
		return -1
	}
	innerHeight := max(1, m.columnHeight()-4)
	window := m.visibleCardSlots(innerHeight)
	slot := row / cardRows
	if slot >= window {
		return -1
	}
	idx := m.scrollOffset(colIdx, len(lane.Cards), window) + slot
	if idx >= len(lane.Cards) {
		return -1
	}
	return idx
}

// handleMouseWheel moves the card cursor.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.help.ShowAll {
		return m, nil
	}
	lane, ok := m.selectedLane()
	if !ok {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.selectedCard > 0 {
			m.selectedCard--
		}
	case tea.MouseWheelDown:
		if m.selectedCard < len(lane.Cards)-1 {
			m.selectedCard++
		}
	}
	return m, nil
}

// handleMouseClick selects the lane and card under the pointer and arms a drag.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.help.ShowAll || msg.Button != tea.MouseLeft {
		return m, nil
	}
	lanes := m.lanes()
	p := board.Point{X: msg.X, Y: msg.Y}
	colIdx := m.laneAt(p, lanes)
	if colIdx < 0 {
		return m, nil
	}
	m.selectedColumn = colIdx
	m.selectedCard = 0
	m.pressedCard = 0
	if m.board.Reordering() {
		return m, nil
	}
	if cardIdx := m.cardAt(p, colIdx, lanes[colIdx], len(lanes)); cardIdx >= 0 {
		m.selectedCard = cardIdx
		card := lanes[colIdx].Cards[cardIdx]
		if !card.Deleting && !card.StatusUpdating {
			m.pressedCard = card.ID
		}
	}
	return m, nil
}

// handleMouseMotion starts a drag from the pressed card and tracks the hovered lane.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || msg.Button != tea.MouseLeft {
		return m, nil
	}
	drag := m.board.Drag()
	if drag.Phase == board.DragIdle {
		if m.pressedCard == 0 {
			return m, nil
		}
		if err := m.board.DragStart(m.pressedCard); err != nil {
			m.pressedCard = 0
			m.reportBoardErr("drag", err)
			return m, nil
		}
	}

	lanes := m.lanes()
	p := board.Point{X: msg.X, Y: msg.Y}
	if m.hoverColumn != "" {
		if idx := laneIndex(lanes, m.hoverColumn); idx >= 0 {
			m.board.DragLeave(m.hoverColumn, p, m.laneRect(idx, len(lanes)))
		}
	}
	m.hoverColumn = ""
	if idx := m.laneAt(p, lanes); idx >= 0 {
		if _, err := m.board.DragOver(lanes[idx].Column.ID); err != nil {
			m.reportBoardErr("drag", err)
			return m, nil
		}
		m.hoverColumn = lanes[idx].Column.ID
	}
	return m, nil
}

// handleMouseRelease drops the dragged card on the lane under the pointer.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	m.pressedCard = 0
	m.hoverColumn = ""
	if m.board.Drag().Phase == board.DragIdle {
		return m, nil
	}
	lanes := m.lanes()
	idx := m.laneAt(board.Point{X: msg.X, Y: msg.Y}, lanes)
	if idx < 0 {
		m.board.DragCancel()
		return m, nil
	}
	m.selectedColumn = idx
	return m, m.dropCard(lanes[idx].Column.ID)
}

// laneIndex finds the lane for columnID, or -1.
func laneIndex(lanes []board.Lane, columnID string) int {
	for idx, lane := range lanes {
		if lane.Column.ID == columnID {
			return idx
		}
	}
	return -1
}
