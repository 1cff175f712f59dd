package app

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/kanview/internal/domain"
)

// DefaultOrdering lists newest cards first.
const DefaultOrdering = "-created_at"

var orderingFields = []string{"created_at", "updated_at", "priority", "due_date"}

// ListQuery holds server-side list filters. Empty fields do not constrain.
type ListQuery struct {
	Status          string
	Priority        string
	Assignee        string
	JobNumber       string
	ServiceQuote    string
	Company         string
	Tags            []string
	Search          string
	IncludeInactive bool
	Ordering        string
}

// ParseTags splits a comma-separated tag filter.
func ParseTags(raw string) []string {
	return domain.NormalizeTags(strings.Split(raw, ","))
}

// ParseBool reads the truthy spellings accepted by query flags.
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// Matches reports whether card passes every filter except IncludeInactive.
func (q ListQuery) Matches(card domain.Card) bool {
	exact := []struct{ want, got string }{
		{q.Status, card.Status},
		{q.Priority, string(card.Priority)},
		{q.Assignee, card.Assignee},
		{q.JobNumber, card.JobNumber},
		{q.ServiceQuote, card.ServiceQuote},
		{q.Company, card.Company},
	}
	for _, f := range exact {
		if f.want != "" && f.want != f.got {
			return false
		}
	}
	if !card.HasTags(q.Tags) {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	if search == "" {
		return true
	}
	for _, field := range []string{card.Title, card.Description, card.Assignee, card.JobNumber, card.ServiceQuote, card.Company} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// sortCards orders cards in place by ordering, e.g. "priority" or "-due_date".
// Missing due dates sort after present ones ascending. Ties break on id.
func sortCards(cards []domain.Card, ordering string) error {
	ordering = strings.TrimSpace(ordering)
	if ordering == "" {
		ordering = DefaultOrdering
	}
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")
	if !slices.Contains(orderingFields, field) {
		return fmt.Errorf("%w: %q (use one of %s)", ErrInvalidOrdering, ordering, strings.Join(orderingFields, ", "))
	}

	compare := func(a, b domain.Card) int {
		var c int
		switch field {
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case "priority":
			c = cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		case "due_date":
			c = compareDue(a, b)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	}
	slices.SortStableFunc(cards, compare)
	if desc {
		slices.Reverse(cards)
	}
	return nil
}

func compareDue(a, b domain.Card) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	default:
		return a.DueDate.Compare(*b.DueDate)
	}
}
