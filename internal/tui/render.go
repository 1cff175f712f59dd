package tui

import (
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/kanview/internal/board"
	"github.com/evanschultz/kanview/internal/domain"
)

// shared palette used by the board chrome.
var (
	accentColor  = lipgloss.Color("62")
	mutedColor   = lipgloss.Color("241")
	dimColor     = lipgloss.Color("239")
	errorColor   = lipgloss.Color("203")
	successColor = lipgloss.Color("42")
	dragColor    = lipgloss.Color("212")
)

// board layout constants; the hit-testing in mouse.go relies on them.
const (
	// headerLines counts the title, filter summary, and spacer rows above the board.
	headerLines = 3
	// cardRows is the rendered height of one card: title, detail, spacer.
	cardRows = 3
	// laneChromeTop counts the border, padding, and lane title above the first card.
	laneChromeTop = 3
)

// searchFieldsHint names the fields the search box matches.
const searchFieldsHint = "matches title, description, assignee, tags, company, contact, job number, service quote"

// View renders the board.
func (m Model) View() tea.View {
	if !m.ready {
		return newView("loading...")
	}

	header := m.renderHeader()
	filterLine := m.renderFilterLine()
	body := m.renderBoard()

	sections := []string{header, filterLine, "", body}
	if line := m.renderStatusLine(); line != "" {
		sections = append(sections, line)
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(mutedColor).
		BorderTop(true).
		BorderForeground(dimColor).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	overlay := m.renderModeOverlay(max(24, m.width-8))
	if m.help.ShowAll && m.mode == modeNone {
		overlay = m.renderHelpOverlay(max(24, m.width-8))
	}
	if overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}
	return newView(fullContent)
}

// newView applies the terminal settings every frame shares.
func newView(content string) tea.View {
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderHeader renders the title row.
func (m Model) renderHeader() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dimColor)

	total := len(m.board.Cards())
	visible := 0
	for _, lane := range m.lanes() {
		visible += len(lane.Cards)
	}
	header := titleStyle.Render("kanview") + "  " + fmt.Sprintf("%d/%d cards", visible, total)
	header += statusStyle.Render("  [" + m.modeLabel() + "]")
	if m.board.Saving() {
		header += statusStyle.Render("  saving...")
	}
	if m.loading {
		header += statusStyle.Render("  loading...")
	}
	return header
}

// modeLabel names the current interaction mode.
func (m Model) modeLabel() string {
	switch {
	case m.board.Reordering() && m.board.ReorderDirty():
		return "reorder*"
	case m.board.Reordering():
		return "reorder"
	case m.board.Drag().Phase != board.DragIdle:
		return "moving"
	}
	switch m.mode {
	case modeSearch:
		return "search"
	case modeFilters:
		return "filters"
	case modeCardForm:
		if m.form.editingID != 0 {
			return "edit card"
		}
		return "new card"
	case modeCardInfo:
		return "card"
	case modeColumnForm:
		return "new column"
	case modeConfirm:
		return "confirm"
	default:
		return "board"
	}
}

// renderFilterLine renders the search box or a summary of the active filters.
func (m Model) renderFilterLine() string {
	muted := lipgloss.NewStyle().Foreground(mutedColor)
	if m.mode == modeSearch {
		line := m.searchInput.View()
		if m.searchHint {
			line += "  " + muted.Render(searchFieldsHint)
		}
		return line
	}
	criteria := m.board.Criteria()
	if !criteria.Active() {
		return muted.Render("no filters • / search • f filters")
	}
	parts := []string{}
	if s := strings.TrimSpace(criteria.Search); s != "" {
		parts = append(parts, fmt.Sprintf("search %q", s))
	}
	for row := range filterRowTags {
		if v := filterValue(criteria, row); v != board.All {
			if row == filterRowColumn {
				v = m.columnLabel(v)
			}
			parts = append(parts, filterRowLabel(row)+"="+v)
		}
	}
	if len(criteria.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(criteria.Tags, "+"))
	}
	return lipgloss.NewStyle().Foreground(accentColor).Render("filtered: ") + muted.Render(strings.Join(parts, " • ")+" • x clear")
}

// filterRowLabel names a filter row.
func filterRowLabel(row int) string {
	switch row {
	case filterRowColumn:
		return "column"
	case filterRowPriority:
		return "priority"
	case filterRowAssignee:
		return "assignee"
	case filterRowJobNumber:
		return "job"
	case filterRowServiceQuote:
		return "quote"
	default:
		return "tags"
	}
}

// laneStyle is the bordered box around one lane.
func (m Model) laneStyle(colWidth int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(1, 2).
		MarginRight(1).
		Width(colWidth)
}

// renderBoard renders every lane side by side.
func (m Model) renderBoard() string {
	lanes := m.lanes()
	if len(lanes) == 0 {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("No columns. Press C to add one.")
	}
	colWidth := m.columnWidthFor(m.width, len(lanes))
	innerHeight := max(1, m.columnHeight()-4)
	drag := m.board.Drag()
	reordering := m.board.Reordering()

	titleStyle := lipgloss.NewStyle().Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(mutedColor)
	selectedStyle := lipgloss.NewStyle().Foreground(dragColor).Bold(true)
	busyStyle := lipgloss.NewStyle().Foreground(dimColor).Italic(true)
	orphanStyle := lipgloss.NewStyle().Foreground(errorColor)

	views := make([]string, 0, len(lanes))
	for colIdx, lane := range lanes {
		laneColor := lipgloss.Color(lane.Column.Color.Hex())
		style := m.laneStyle(colWidth)
		selectedLane := colIdx == m.selectedColumn
		switch {
		case drag.Phase == board.DragHovering && drag.ColumnID == lane.Column.ID:
			style = style.Border(lipgloss.ThickBorder()).BorderForeground(dragColor)
		case reordering && selectedLane:
			style = style.Border(lipgloss.DoubleBorder()).BorderForeground(laneColor)
		case selectedLane:
			style = style.BorderForeground(laneColor)
		}

		laneTitle := titleStyle.Foreground(laneColor).Render(fmt.Sprintf("%s (%d)", lane.Column.Label, len(lane.Cards)))
		lines := []string{laneTitle}
		if len(lane.Cards) == 0 {
			lines = append(lines, subStyle.Render("(empty)"))
		}

		window := m.visibleCardSlots(innerHeight)
		offset := m.scrollOffset(colIdx, len(lane.Cards), window)
		for cardIdx := offset; cardIdx < len(lane.Cards) && cardIdx < offset+window; cardIdx++ {
			card := lane.Cards[cardIdx]
			selected := selectedLane && cardIdx == m.selectedCard && !reordering

			prefix := "  "
			if selected {
				prefix = "│ "
			}
			marker := ""
			switch {
			case drag.Phase != board.DragIdle && drag.CardID == card.ID:
				marker = "⇄ "
			case card.Orphan:
				marker = "? "
			}
			title := prefix + marker + truncate(card.Title, max(1, colWidth-6))
			switch {
			case card.Deleting:
				title = busyStyle.Render(title + " (deleting)")
			case card.StatusUpdating:
				title = busyStyle.Render(title + " ⟳")
			case selected:
				title = selectedStyle.Render(title)
			}

			sub := cardSecondary(card.Card)
			if card.Orphan {
				sub = orphanStyle.Render(truncate("no column: "+card.Status, max(1, colWidth-4)))
			} else {
				sub = subStyle.Render(truncate(sub, max(1, colWidth-4)))
			}
			lines = append(lines, title, prefix+sub)
			if cardIdx < len(lane.Cards)-1 {
				lines = append(lines, "")
			}
		}
		views = append(views, style.Render(fitLines(strings.Join(lines, "\n"), innerHeight)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// cardSecondary summarizes a card below its title.
func cardSecondary(card domain.Card) string {
	parts := []string{string(card.Priority)}
	if due := domain.FormatDueDate(card.DueDate); due != "" {
		parts = append(parts, "due "+due)
	}
	if card.Assignee != "" {
		parts = append(parts, "@"+card.Assignee)
	}
	if tags := summarizeTags(card.Tags, 2); tags != "" {
		parts = append(parts, tags)
	}
	return strings.Join(parts, " ")
}

// renderStatusLine renders the latest notice or status text.
func (m Model) renderStatusLine() string {
	text := strings.TrimSpace(m.status)
	if text == "" || text == "ready" {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(dimColor)
	switch m.statusLevel {
	case board.LevelError:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	case board.LevelSuccess:
		style = lipgloss.NewStyle().Foreground(successColor)
	}
	return style.Render(truncate(text, max(1, m.width)))
}

// renderModeOverlay renders the modal for the current mode.
func (m Model) renderModeOverlay(maxWidth int) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1)
	switch m.mode {
	case modeCardForm:
		width := min(maxWidth, 72)
		return boxStyle.Width(width).Render(m.renderCardForm(accentColor, mutedColor, width-4))
	case modeColumnForm:
		return boxStyle.Width(min(maxWidth, 56)).Render(m.renderColumnForm(accentColor, mutedColor))
	case modeFilters:
		return boxStyle.Width(min(maxWidth, 64)).Render(m.renderFilters(min(maxWidth, 64) - 4))
	case modeConfirm:
		lines := []string{
			lipgloss.NewStyle().Bold(true).Foreground(errorColor).Render(m.confirm.title),
			"",
			m.confirm.body,
			"",
			lipgloss.NewStyle().Foreground(mutedColor).Render("y/enter confirm • n/esc cancel"),
		}
		return boxStyle.BorderForeground(errorColor).Width(min(maxWidth, 60)).Render(strings.Join(lines, "\n"))
	case modeCardInfo:
		return m.renderCardInfo(maxWidth, boxStyle)
	default:
		return ""
	}
}

// renderCardInfo renders the card detail modal through glamour.
func (m Model) renderCardInfo(maxWidth int, boxStyle lipgloss.Style) string {
	card, ok := m.board.Card(m.infoCardID)
	if !ok {
		return boxStyle.Render("card no longer exists • esc close")
	}
	width := min(maxWidth, 84)
	body := m.markdown.render(cardMarkdown(card, m.columnLabel(card.Status)), width-4)
	if m.height > 0 {
		body = fitLines(body, max(4, m.height-8))
	}
	footer := lipgloss.NewStyle().Foreground(mutedColor).Render("e edit • y copy • esc close")
	return boxStyle.Width(width).Render(body + "\n" + footer)
}

// renderFilters renders the filter modal body.
func (m Model) renderFilters(width int) string {
	criteria := m.board.Criteria()
	labelStyle := lipgloss.NewStyle().Foreground(mutedColor).Width(10)
	focusStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true).Width(10)
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Filters"), ""}
	for row := range filterRowCount {
		style := labelStyle
		if row == m.filterRow {
			style = focusStyle
		}
		if row == filterRowTags {
			lines = append(lines, style.Render(filterRowLabel(row))+m.renderTagChoices(criteria, row == m.filterRow, width-10))
			continue
		}
		value := filterValue(criteria, row)
		if row == filterRowColumn && value != board.All {
			value = m.columnLabel(value)
		}
		lines = append(lines, style.Render(filterRowLabel(row))+"‹ "+value+" ›")
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(mutedColor).Render("j/k row • h/l change • space toggle tag • x reset • esc close"))
	return strings.Join(lines, "\n")
}

// renderTagChoices renders the tag vocabulary with selection marks.
func (m Model) renderTagChoices(criteria board.Criteria, focused bool, width int) string {
	tags := m.board.Tags()
	if len(tags) == 0 {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("(no tags)")
	}
	cursorStyle := lipgloss.NewStyle().Foreground(dragColor).Bold(true)
	parts := make([]string, 0, len(tags))
	for idx, tag := range tags {
		mark := "[ ]"
		if slices.Contains(criteria.Tags, tag) {
			mark = "[x]"
		}
		entry := mark + " " + tag
		if focused && idx == clamp(m.filterTag, 0, len(tags)-1) {
			entry = cursorStyle.Render(entry)
		}
		parts = append(parts, entry)
	}
	return lipgloss.NewStyle().Width(max(10, width)).Render(strings.Join(parts, "  "))
}

// renderHelpOverlay renders the expanded key help.
func (m Model) renderHelpOverlay(maxWidth int) string {
	helpBubble := m.help
	helpBubble.ShowAll = true
	helpBubble.SetWidth(maxWidth - 4)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Render(lipgloss.NewStyle().Bold(true).Render("Keys") + "\n\n" + helpBubble.View(m.keys))
}

// columnWidthFor returns the lane width that fits count lanes into boardWidth.
func (m Model) columnWidthFor(boardWidth, count int) int {
	if count == 0 {
		return 24
	}
	w := 28
	if boardWidth > 0 {
		// Per-column overhead: left/right border (2), horizontal padding (4), margin-right (1)
		const colOverhead = 7
		candidate := (boardWidth - count*colOverhead) / count
		if candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 24, 42)
}

// columnHeight returns the outer lane height.
func (m Model) columnHeight() int {
	footerLines := 4
	return max(14, m.height-headerLines-footerLines)
}

// visibleCardSlots returns how many cards fit in a lane body of innerHeight rows.
func (m Model) visibleCardSlots(innerHeight int) int {
	return max(1, innerHeight/cardRows)
}

// scrollOffset returns the first visible card index so the cursor stays in view.
func (m Model) scrollOffset(colIdx, count, window int) int {
	if colIdx != m.selectedColumn || m.selectedCard < window {
		return 0
	}
	return clamp(m.selectedCard-window+1, 0, max(0, count-window))
}

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// wrapIndex steps current by delta and wraps around total.
func wrapIndex(current int, delta int, total int) int {
	if total <= 0 {
		return 0
	}
	next := (current + delta) % total
	if next < 0 {
		next += total
	}
	return next
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay over base on a lipgloss canvas.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	overlayLayer := lipgloss.NewLayer(centered).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit <= 1 {
		return string(rs[:limit])
	}
	return string(rs[:limit-1]) + "…"
}

// summarizeTags renders up to limit tags with an overflow count.
func summarizeTags(tags []string, limit int) string {
	if len(tags) == 0 {
		return ""
	}
	limit = max(limit, 1)
	visible := tags
	extra := 0
	if len(tags) > limit {
		visible = tags[:limit]
		extra = len(tags) - limit
	}
	joined := "#" + strings.Join(visible, " #")
	if extra > 0 {
		joined += fmt.Sprintf(" +%d", extra)
	}
	return joined
}
