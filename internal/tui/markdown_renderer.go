package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/evanschultz/kanview/internal/domain"
)

// markdownRenderer renders card details and recreates the glamour renderer when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown into ANSI-styled text. Renderer failures fall back to the raw text.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// cardMarkdown lays out a card as a markdown document for the detail modal.
func cardMarkdown(card domain.Card, columnLabel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", card.Title)
	fmt.Fprintf(&b, "**#%d** in **%s** · priority **%s**", card.ID, columnLabel, card.Priority)
	if due := domain.FormatDueDate(card.DueDate); due != "" {
		fmt.Fprintf(&b, " · due **%s**", due)
	}
	b.WriteString("\n\n")
	if desc := strings.TrimSpace(card.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}

	rows := [][2]string{
		{"Assignee", card.Assignee},
		{"Company", card.Company},
		{"Contact", card.CompanyContactName},
		{"Phone", card.CompanyContactPhone},
		{"Job number", card.JobNumber},
		{"Service quote", card.ServiceQuote},
	}
	wrote := false
	for _, row := range rows {
		if strings.TrimSpace(row[1]) == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", row[0], row[1])
		wrote = true
	}
	if len(card.Tags) > 0 {
		fmt.Fprintf(&b, "- Tags: %s\n", "`"+strings.Join(card.Tags, "` `")+"`")
		wrote = true
	}
	if wrote {
		b.WriteString("\n")
	}
	switch {
	case !card.UpdatedAt.IsZero():
		fmt.Fprintf(&b, "_updated %s_\n", card.UpdatedAt.Local().Format("2006-01-02 15:04"))
	case card.UpdatedText != "":
		fmt.Fprintf(&b, "_updated %s_\n", card.UpdatedText)
	}
	return b.String()
}

// cardSummary is the plain-text form copied to the clipboard.
func cardSummary(card domain.Card, columnLabel string) string {
	parts := []string{fmt.Sprintf("#%d %s", card.ID, card.Title), "[" + columnLabel + "]", string(card.Priority)}
	if due := domain.FormatDueDate(card.DueDate); due != "" {
		parts = append(parts, "due "+due)
	}
	if card.Assignee != "" {
		parts = append(parts, "@"+card.Assignee)
	}
	if card.JobNumber != "" {
		parts = append(parts, "job "+card.JobNumber)
	}
	if len(card.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(card.Tags, " #"))
	}
	return strings.Join(parts, " ")
}
