package tui

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/kanview/internal/board"
	"github.com/evanschultz/kanview/internal/domain"
)

// card-form field indexes in display order.
const (
	formTitle = iota
	formDescription
	formStatus
	formPriority
	formDue
	formAssignee
	formCompany
	formContactName
	formContactPhone
	formJobNumber
	formServiceQuote
	formTags
	formNewTag
	formFieldCount
)

// cardFormFields maps field indexes to the keys used by board.FieldErrors.
var cardFormFields = [formFieldCount]string{
	"title", "description", "status", "priority", "due_date", "assignee", "company",
	"company_contact_name", "company_contact_phone", "job_number", "service_quote", "tags", "new_tag",
}

var cardFormLabels = [formFieldCount]string{
	"Title", "Description", "Status", "Priority", "Due", "Assignee", "Company",
	"Contact", "Phone", "Job number", "Service quote", "Tags", "New tag",
}

// cardForm is the create/edit card modal state.
type cardForm struct {
	editingID int64
	inputs    []textinput.Model
	focus     int
	// status indexes the board columns; -1 keeps origStatus for cards outside every column.
	status     int
	origStatus string
	priority   int
	errs       board.FieldErrors
	err        string
	saving     bool
}

// isChoiceField reports whether idx is cycled with left/right instead of typed.
func isChoiceField(idx int) bool {
	return idx == formStatus || idx == formPriority
}

// startCardForm opens the card form. A nil card starts a new card in the selected column.
func (m *Model) startCardForm(card *domain.Card) tea.Cmd {
	columns := m.board.Columns()
	in := domain.CardInput{Priority: domain.PriorityMedium}
	if lane, ok := m.selectedLane(); ok {
		in.Status = lane.Column.ID
	}
	form := cardForm{}
	if card != nil {
		form.editingID = card.ID
		in = card.Input()
	}

	values := [formFieldCount]string{
		formTitle:        in.Title,
		formDescription:  in.Description,
		formDue:          domain.FormatDueDate(in.DueDate),
		formAssignee:     in.Assignee,
		formCompany:      in.Company,
		formContactName:  in.CompanyContactName,
		formContactPhone: in.CompanyContactPhone,
		formJobNumber:    in.JobNumber,
		formServiceQuote: in.ServiceQuote,
		formTags:         strings.Join(in.Tags, ", "),
	}
	limits := [formFieldCount]int{
		formTitle:        domain.MaxTitleLen,
		formDescription:  2000,
		formDue:          10,
		formAssignee:     domain.MaxTextAttrLen,
		formCompany:      domain.MaxTextAttrLen,
		formContactName:  domain.MaxTextAttrLen,
		formContactPhone: domain.MaxCodeAttrLen,
		formJobNumber:    domain.MaxCodeAttrLen,
		formServiceQuote: domain.MaxCodeAttrLen,
		formTags:         400,
		formNewTag:       domain.MaxTagLen,
	}
	placeholders := [formFieldCount]string{
		formTitle:   "required",
		formDue:     "YYYY-MM-DD",
		formTags:    "comma separated",
		formNewTag:  "enter adds to tags",
		formCompany: "customer",
	}
	form.inputs = make([]textinput.Model, formFieldCount)
	for idx := range form.inputs {
		form.inputs[idx] = newModalInput("", placeholders[idx], values[idx], max(limits[idx], 1))
	}

	form.status = slices.IndexFunc(columns, func(c domain.Column) bool { return c.ID == in.Status })
	if form.status < 0 {
		form.origStatus = in.Status
		if in.Status == "" && len(columns) > 0 {
			form.status = 0
		}
	}
	form.priority = max(slices.Index(domain.Priorities(), in.Priority), 0)

	m.form = form
	m.mode = modeCardForm
	if card != nil {
		m.setStatus(board.LevelInfo, fmt.Sprintf("editing #%d", card.ID))
	} else {
		m.setStatus(board.LevelInfo, "new card")
	}
	return m.focusCardFormField(formTitle)
}

// focusCardFormField moves focus to idx.
func (m *Model) focusCardFormField(idx int) tea.Cmd {
	idx = clamp(idx, 0, formFieldCount-1)
	m.form.focus = idx
	for i := range m.form.inputs {
		m.form.inputs[i].Blur()
	}
	if isChoiceField(idx) {
		return nil
	}
	return m.form.inputs[idx].Focus()
}

// cycleFormChoice steps the focused status or priority by delta.
func (m *Model) cycleFormChoice(delta int) {
	switch m.form.focus {
	case formStatus:
		columns := m.board.Columns()
		if len(columns) == 0 {
			return
		}
		if m.form.status < 0 {
			m.form.status = 0
			return
		}
		m.form.status = wrapIndex(m.form.status, delta, len(columns))
	case formPriority:
		m.form.priority = wrapIndex(m.form.priority, delta, len(domain.Priorities()))
	}
}

// formStatusValue returns the status the form will submit.
func (m Model) formStatusValue() string {
	columns := m.board.Columns()
	if m.form.status < 0 || m.form.status >= len(columns) {
		return m.form.origStatus
	}
	return columns[m.form.status].ID
}

// cardInputFromForm collects the form values. Unparseable due dates come back as field errors.
func (m Model) cardInputFromForm() (domain.CardInput, error) {
	value := func(idx int) string {
		return m.form.inputs[idx].Value()
	}
	due, err := domain.ParseDueDate(value(formDue))
	if err != nil {
		return domain.CardInput{}, board.FieldErrors{"due_date": "Use YYYY-MM-DD"}
	}
	return domain.CardInput{
		Title:               value(formTitle),
		Description:         value(formDescription),
		Status:              m.formStatusValue(),
		Priority:            domain.Priorities()[clamp(m.form.priority, 0, len(domain.Priorities())-1)],
		DueDate:             due,
		Assignee:            value(formAssignee),
		Company:             value(formCompany),
		CompanyContactName:  value(formContactName),
		CompanyContactPhone: value(formContactPhone),
		JobNumber:           value(formJobNumber),
		ServiceQuote:        value(formServiceQuote),
		Tags:                splitTags(value(formTags)),
	}, nil
}

// submitCardForm validates inline and sends the card to the board.
func (m Model) submitCardForm() (tea.Model, tea.Cmd) {
	if m.form.saving {
		m.setStatus(board.LevelInfo, "save already in progress")
		return m, nil
	}
	in, err := m.cardInputFromForm()
	if err == nil {
		_, err = board.ValidateCard(in)
	}
	if err != nil {
		if fieldErrs, ok := board.AsFieldErrors(err); ok {
			m.form.errs = fieldErrs
			return m, nil
		}
		m.form.err = err.Error()
		return m, nil
	}
	m.form.errs = nil
	m.form.err = ""
	m.form.saving = true
	m.setStatus(board.LevelInfo, "saving...")
	return m, m.saveCard(m.form.editingID, in)
}

// addFormTag registers the new-tag input with the board and attaches it to the card.
func (m *Model) addFormTag() {
	tag := strings.TrimSpace(m.form.inputs[formNewTag].Value())
	if tag == "" {
		return
	}
	if m.board.AddTag(tag) {
		m.setStatus(board.LevelInfo, "added tag "+tag)
	}
	tags := splitTags(m.form.inputs[formTags].Value())
	if !slices.Contains(tags, tag) {
		tags = append(tags, tag)
	}
	m.form.inputs[formTags].SetValue(strings.Join(tags, ", "))
	m.form.inputs[formNewTag].SetValue("")
}

// handleCardFormKey handles keys while the card form is open.
func (m Model) handleCardFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.form.saving {
			m.setStatus(board.LevelInfo, "save in progress")
			return m, nil
		}
		m.mode = modeNone
		m.form = cardForm{}
		m.setStatus(board.LevelInfo, "cancelled")
		return m, nil
	case "tab", "down":
		return m, m.focusCardFormField(wrapIndex(m.form.focus, 1, formFieldCount))
	case "shift+tab", "up":
		return m, m.focusCardFormField(wrapIndex(m.form.focus, -1, formFieldCount))
	case "ctrl+s":
		return m.submitCardForm()
	case "enter":
		if m.form.focus == formNewTag {
			m.addFormTag()
			return m, nil
		}
		return m.submitCardForm()
	case "left", "h":
		if isChoiceField(m.form.focus) {
			m.cycleFormChoice(-1)
			return m, nil
		}
	case "right", "l", "space", " ":
		if isChoiceField(m.form.focus) {
			m.cycleFormChoice(1)
			return m, nil
		}
	}
	if isChoiceField(m.form.focus) {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return m, cmd
}

// columnForm is the add-column modal state.
type columnForm struct {
	label      textinput.Model
	color      int
	focusColor bool
	errs       board.FieldErrors
}

// startColumnForm opens the add-column modal.
func (m *Model) startColumnForm() tea.Cmd {
	if m.board.Reordering() {
		m.setStatus(board.LevelInfo, "finish reordering columns first")
		return nil
	}
	m.columnForm = columnForm{
		label: newModalInput("", "column name", "", domain.MaxStatusLen*2),
		color: slices.Index(domain.Palette(), domain.ColorBlue),
	}
	m.mode = modeColumnForm
	m.setStatus(board.LevelInfo, "new column")
	return m.columnForm.label.Focus()
}

// submitColumnForm adds the column and selects it.
func (m Model) submitColumnForm() (tea.Model, tea.Cmd) {
	palette := domain.Palette()
	swatch := palette[clamp(m.columnForm.color, 0, len(palette)-1)]
	col, err := m.board.AddColumn(m.columnForm.label.Value(), swatch)
	if err != nil {
		if fieldErrs, ok := board.AsFieldErrors(err); ok {
			m.columnForm.errs = fieldErrs
			return m, nil
		}
		if errors.Is(err, board.ErrReordering) {
			m.setStatus(board.LevelInfo, "finish reordering columns first")
		} else {
			m.setStatus(board.LevelError, err.Error())
		}
		m.mode = modeNone
		return m, nil
	}
	m.mode = modeNone
	m.columnForm = columnForm{}
	for idx, lane := range m.lanes() {
		if lane.Column.ID == col.ID {
			m.selectedColumn = idx
			m.selectedCard = 0
		}
	}
	m.setStatus(board.LevelSuccess, "added column "+col.Label)
	return m, nil
}

// handleColumnFormKey handles keys while the column form is open.
func (m Model) handleColumnFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.columnForm = columnForm{}
		m.setStatus(board.LevelInfo, "cancelled")
		return m, nil
	case "enter":
		return m.submitColumnForm()
	case "tab", "shift+tab", "down", "up":
		m.columnForm.focusColor = !m.columnForm.focusColor
		if m.columnForm.focusColor {
			m.columnForm.label.Blur()
			return m, nil
		}
		return m, m.columnForm.label.Focus()
	}
	if m.columnForm.focusColor {
		switch msg.String() {
		case "left", "h":
			m.columnForm.color = wrapIndex(m.columnForm.color, -1, len(domain.Palette()))
		case "right", "l":
			m.columnForm.color = wrapIndex(m.columnForm.color, 1, len(domain.Palette()))
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.columnForm.label, cmd = m.columnForm.label.Update(msg)
	return m, cmd
}

// forwardToFocusedInput routes non-key messages such as cursor blinks.
func (m Model) forwardToFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case modeCardForm:
		if len(m.form.inputs) == 0 || isChoiceField(m.form.focus) {
			return m, nil
		}
		m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	case modeColumnForm:
		m.columnForm.label, cmd = m.columnForm.label.Update(msg)
	}
	return m, cmd
}

// renderCardForm renders the card form modal body.
func (m Model) renderCardForm(accent, muted color.Color, width int) string {
	title := "New card"
	if m.form.editingID != 0 {
		title = fmt.Sprintf("Edit card #%d", m.form.editingID)
	}
	labelStyle := lipgloss.NewStyle().Foreground(muted).Width(14)
	focusLabel := lipgloss.NewStyle().Foreground(accent).Bold(true).Width(14)
	errStyle := lipgloss.NewStyle().Foreground(errorColor)

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title), ""}
	if msg := m.formLevelError(); msg != "" {
		lines = append(lines, errStyle.Render(msg), "")
	}
	columns := m.board.Columns()
	for idx := range formFieldCount {
		style := labelStyle
		if idx == m.form.focus {
			style = focusLabel
		}
		var value string
		switch idx {
		case formStatus:
			status := m.formStatusValue()
			label := m.columnLabel(status)
			if m.form.status < 0 && status != "" {
				label += " (no column)"
			}
			if len(columns) == 0 {
				label = "(no columns)"
			}
			value = "‹ " + truncate(label, max(8, width-20)) + " ›"
		case formPriority:
			value = "‹ " + string(domain.Priorities()[clamp(m.form.priority, 0, 2)]) + " ›"
		default:
			value = m.form.inputs[idx].View()
		}
		lines = append(lines, style.Render(cardFormLabels[idx])+value)
		if msg, ok := m.form.errs[cardFormFields[idx]]; ok {
			lines = append(lines, strings.Repeat(" ", 14)+errStyle.Render(msg))
		}
		if idx == formNewTag && m.form.focus >= formTags {
			known := strings.Join(m.board.Tags(), ", ")
			if known != "" {
				lines = append(lines, strings.Repeat(" ", 14)+lipgloss.NewStyle().Foreground(muted).Render(truncate("known: "+known, max(8, width-16))))
			}
		}
	}
	footer := "tab next • ←/→ choose • enter save • esc cancel"
	if m.form.saving {
		footer = "saving..."
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(muted).Render(footer))
	return strings.Join(lines, "\n")
}

// formLevelError returns the error shown above the card form fields.
func (m Model) formLevelError() string {
	if msg, ok := m.form.errs["form"]; ok {
		return msg
	}
	return m.form.err
}

// renderColumnForm renders the add-column modal body.
func (m Model) renderColumnForm(accent, muted color.Color) string {
	errStyle := lipgloss.NewStyle().Foreground(errorColor)
	labelStyle := lipgloss.NewStyle().Foreground(muted).Width(8)
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accent).Render("New column"), ""}
	lines = append(lines, labelStyle.Render("Label")+m.columnForm.label.View())
	if msg, ok := m.columnForm.errs["label"]; ok {
		lines = append(lines, strings.Repeat(" ", 8)+errStyle.Render(msg))
	}
	swatches := make([]string, 0, len(domain.Palette()))
	for idx, c := range domain.Palette() {
		mark := "■"
		if idx == m.columnForm.color {
			mark = "[■]"
		}
		swatches = append(swatches, lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render(mark))
	}
	colorLabel := labelStyle
	if m.columnForm.focusColor {
		colorLabel = colorLabel.Foreground(accent).Bold(true)
	}
	palette := domain.Palette()
	lines = append(lines, colorLabel.Render("Color")+strings.Join(swatches, " "))
	lines = append(lines, strings.Repeat(" ", 8)+string(palette[clamp(m.columnForm.color, 0, len(palette)-1)]))
	if msg, ok := m.columnForm.errs["color"]; ok {
		lines = append(lines, strings.Repeat(" ", 8)+errStyle.Render(msg))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(muted).Render("tab switch • ←/→ color • enter add • esc cancel"))
	return strings.Join(lines, "\n")
}

// splitTags parses a comma separated tag list.
func splitTags(raw string) []string {
	return domain.NormalizeTags(strings.Split(raw, ","))
}
