package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Priority ranks a card.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Priorities returns every priority from lowest to highest.
func Priorities() []Priority {
	return slices.Clone(validPriorities)
}

// Rank orders priorities low < medium < high. Unknown values rank first.
func (p Priority) Rank() int {
	return slices.Index(validPriorities, p)
}

// Default card statuses.
const (
	StatusBacklog    = "backlog"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Field limits mirrored by storage.
const (
	MaxTitleLen    = 200
	MaxTagLen      = 32
	MaxStatusLen   = 32
	MaxTextAttrLen = 120
	MaxCodeAttrLen = 64
)

// DueDateLayout is the wire and storage form of due dates.
const DueDateLayout = "2006-01-02"

// Card is one task on the board.
type Card struct {
	ID                  int64
	Title               string
	Description         string
	Status              string
	Priority            Priority
	DueDate             *time.Time
	Assignee            string
	Company             string
	CompanyContactName  string
	CompanyContactPhone string
	JobNumber           string
	ServiceQuote        string
	Tags                []string
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	// UpdatedText holds updated_at verbatim when the server sent an unrecognized format.
	UpdatedText string
}

// CardInput holds the writable card fields.
type CardInput struct {
	Title               string
	Description         string
	Status              string
	Priority            Priority
	DueDate             *time.Time
	Assignee            string
	Company             string
	CompanyContactName  string
	CompanyContactPhone string
	JobNumber           string
	ServiceQuote        string
	Tags                []string
}

// Normalize trims text fields, defaults the priority, and validates the result.
func (in CardInput) Normalize() (CardInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = strings.TrimSpace(in.Status)
	in.Assignee = strings.TrimSpace(in.Assignee)
	in.Company = strings.TrimSpace(in.Company)
	in.CompanyContactName = strings.TrimSpace(in.CompanyContactName)
	in.CompanyContactPhone = strings.TrimSpace(in.CompanyContactPhone)
	in.JobNumber = strings.TrimSpace(in.JobNumber)
	in.ServiceQuote = strings.TrimSpace(in.ServiceQuote)

	if in.Title == "" {
		return CardInput{}, ErrInvalidTitle
	}
	if in.Status == "" {
		return CardInput{}, ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return CardInput{}, ErrInvalidPriority
	}
	if tooLong(in.Title, MaxTitleLen) || tooLong(in.Status, MaxStatusLen) ||
		tooLong(in.Assignee, MaxTextAttrLen) || tooLong(in.Company, MaxTextAttrLen) ||
		tooLong(in.CompanyContactName, MaxTextAttrLen) || tooLong(in.CompanyContactPhone, MaxCodeAttrLen) ||
		tooLong(in.JobNumber, MaxCodeAttrLen) || tooLong(in.ServiceQuote, MaxCodeAttrLen) {
		return CardInput{}, ErrFieldTooLong
	}
	in.Tags = NormalizeTags(in.Tags)
	for _, tag := range in.Tags {
		if tooLong(tag, MaxTagLen) {
			return CardInput{}, ErrFieldTooLong
		}
	}
	in.DueDate = normalizeDueDate(in.DueDate)
	return in, nil
}

// NewCard validates in and builds an active card.
func NewCard(id int64, in CardInput, now time.Time) (Card, error) {
	if id <= 0 {
		return Card{}, ErrInvalidID
	}
	in, err := in.Normalize()
	if err != nil {
		return Card{}, err
	}
	c := Card{ID: id, IsActive: true, CreatedAt: now.UTC()}
	c.apply(in, now)
	return c, nil
}

// Update replaces every writable field.
func (c *Card) Update(in CardInput, now time.Time) error {
	in, err := in.Normalize()
	if err != nil {
		return err
	}
	c.apply(in, now)
	return nil
}

// SetStatus moves the card to another column.
func (c *Card) SetStatus(status string, now time.Time) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return ErrInvalidStatus
	}
	if tooLong(status, MaxStatusLen) {
		return ErrFieldTooLong
	}
	c.Status = status
	c.UpdatedAt = now.UTC()
	return nil
}

// Archive deactivates the card. Archiving an archived card is a no-op.
func (c *Card) Archive(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	c.IsActive = false
	c.UpdatedAt = now.UTC()
	return true
}

// Restore reactivates the card. Restoring an active card is a no-op.
func (c *Card) Restore(now time.Time) bool {
	if c.IsActive {
		return false
	}
	c.IsActive = true
	c.UpdatedAt = now.UTC()
	return true
}

// Input returns the writable fields of c.
func (c Card) Input() CardInput {
	return CardInput{
		Title:               c.Title,
		Description:         c.Description,
		Status:              c.Status,
		Priority:            c.Priority,
		DueDate:             c.DueDate,
		Assignee:            c.Assignee,
		Company:             c.Company,
		CompanyContactName:  c.CompanyContactName,
		CompanyContactPhone: c.CompanyContactPhone,
		JobNumber:           c.JobNumber,
		ServiceQuote:        c.ServiceQuote,
		Tags:                slices.Clone(c.Tags),
	}
}

// HasTags reports whether c carries every tag in want.
func (c Card) HasTags(want []string) bool {
	for _, tag := range want {
		if !slices.Contains(c.Tags, tag) {
			return false
		}
	}
	return true
}

func (c *Card) apply(in CardInput, now time.Time) {
	c.Title = in.Title
	c.Description = in.Description
	c.Status = in.Status
	c.Priority = in.Priority
	c.DueDate = in.DueDate
	c.Assignee = in.Assignee
	c.Company = in.Company
	c.CompanyContactName = in.CompanyContactName
	c.CompanyContactPhone = in.CompanyContactPhone
	c.JobNumber = in.JobNumber
	c.ServiceQuote = in.ServiceQuote
	c.Tags = in.Tags
	c.UpdatedAt = now.UTC()
}

// NormalizeTags trims tags, drops blanks, and removes duplicates keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ParseDueDate parses a YYYY-MM-DD date. Blank input yields nil.
func ParseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.ParseInLocation(DueDateLayout, raw, time.UTC)
	if err != nil {
		return nil, ErrInvalidDueDate
	}
	return &ts, nil
}

// FormatDueDate renders a due date, or "" when unset.
func FormatDueDate(due *time.Time) string {
	if due == nil {
		return ""
	}
	return due.UTC().Format(DueDateLayout)
}

func normalizeDueDate(due *time.Time) *time.Time {
	if due == nil {
		return nil
	}
	y, m, d := due.Date()
	ts := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &ts
}

func tooLong(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}
