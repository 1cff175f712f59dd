package board

import (
	"slices"
	"strings"

	"github.com/evanschultz/kanview/internal/domain"
)

// All is the selector value meaning "no constraint".
const All = "all"

// Criteria holds the independent board filters. Empty selectors behave like All.
type Criteria struct {
	Search       string
	Column       string
	Priority     string
	Tags         []string
	Assignee     string
	JobNumber    string
	ServiceQuote string
}

// DefaultCriteria returns criteria with every predicate disabled.
func DefaultCriteria() Criteria {
	return Criteria{
		Column:       All,
		Priority:     All,
		Assignee:     All,
		JobNumber:    All,
		ServiceQuote: All,
	}
}

// Active reports whether any predicate constrains the result.
func (c Criteria) Active() bool {
	return strings.TrimSpace(c.Search) != "" ||
		selects(c.Column) || selects(c.Priority) || len(c.Tags) > 0 ||
		selects(c.Assignee) || selects(c.JobNumber) || selects(c.ServiceQuote)
}

// Matches reports whether card satisfies every active predicate.
func (c Criteria) Matches(card domain.Card) bool {
	if selects(c.Column) && card.Status != c.Column {
		return false
	}
	if selects(c.Priority) && string(card.Priority) != c.Priority {
		return false
	}
	if len(c.Tags) > 0 && !card.HasTags(c.Tags) {
		return false
	}
	if selects(c.Assignee) && card.Assignee != c.Assignee {
		return false
	}
	if selects(c.JobNumber) && card.JobNumber != c.JobNumber {
		return false
	}
	if selects(c.ServiceQuote) && card.ServiceQuote != c.ServiceQuote {
		return false
	}
	query := strings.ToLower(strings.TrimSpace(c.Search))
	if query != "" && !strings.Contains(searchText(card), query) {
		return false
	}
	return true
}

// WithTag toggles tag in the tag selection.
func (c Criteria) WithTag(tag string) Criteria {
	tags := slices.Clone(c.Tags)
	if idx := slices.Index(tags, tag); idx >= 0 {
		c.Tags = slices.Delete(tags, idx, idx+1)
		return c
	}
	c.Tags = append(tags, tag)
	return c
}

// Apply returns the cards matching criteria in their original order.
func Apply(cards []domain.Card, criteria Criteria) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		if criteria.Matches(card) {
			out = append(out, card)
		}
	}
	return out
}

// FilterOptions lists the values offered by the attribute selectors.
type FilterOptions struct {
	Assignees     []string
	JobNumbers    []string
	ServiceQuotes []string
}

// DeriveOptions collects distinct, sorted, non-empty selector values.
func DeriveOptions(cards []domain.Card) FilterOptions {
	return FilterOptions{
		Assignees:     distinct(cards, func(c domain.Card) string { return c.Assignee }),
		JobNumbers:    distinct(cards, func(c domain.Card) string { return c.JobNumber }),
		ServiceQuotes: distinct(cards, func(c domain.Card) string { return c.ServiceQuote }),
	}
}

func distinct(cards []domain.Card, field func(domain.Card) string) []string {
	out := []string{}
	for _, card := range cards {
		v := field(card)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func selects(v string) bool {
	return v != "" && v != All
}

func searchText(card domain.Card) string {
	return strings.ToLower(strings.Join([]string{
		card.Title,
		card.Description,
		card.Assignee,
		strings.Join(card.Tags, " "),
		card.Company,
		card.CompanyContactName,
		card.CompanyContactPhone,
		card.JobNumber,
		card.ServiceQuote,
	}, " "))
}
