// Package wire holds the JSON shapes of the /kanban/cards/ contract shared by the server
// and the board client.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/kanview/internal/domain"
)

// CardRecord is the server representation of one card.
type CardRecord struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Status              string    `json:"status"`
	Priority            string    `json:"priority"`
	DueDate             *string   `json:"due_date"`
	Assignee            string    `json:"assignee"`
	Tags                []string  `json:"tags"`
	Company             string    `json:"company"`
	CompanyContactName  string    `json:"company_contact_name"`
	CompanyContactPhone string    `json:"company_contact_phone"`
	JobNumber           string    `json:"job_number"`
	ServiceQuote        string    `json:"service_quote"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           Timestamp `json:"created_at"`
	UpdatedAt           Timestamp `json:"updated_at"`
}

// RecordFromCard converts a domain card into its wire record.
func RecordFromCard(c domain.Card) CardRecord {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return CardRecord{
		ID:                  c.ID,
		Title:               c.Title,
		Description:         c.Description,
		Status:              c.Status,
		Priority:            string(c.Priority),
		DueDate:             dueDateString(c.DueDate),
		Assignee:            c.Assignee,
		Tags:                tags,
		Company:             c.Company,
		CompanyContactName:  c.CompanyContactName,
		CompanyContactPhone: c.CompanyContactPhone,
		JobNumber:           c.JobNumber,
		ServiceQuote:        c.ServiceQuote,
		IsActive:            c.IsActive,
		CreatedAt:           Stamp(c.CreatedAt),
		UpdatedAt:           Stamp(c.UpdatedAt),
	}
}

// RecordsFromCards converts a card slice.
func RecordsFromCards(cards []domain.Card) []CardRecord {
	out := make([]CardRecord, 0, len(cards))
	for _, c := range cards {
		out = append(out, RecordFromCard(c))
	}
	return out
}

// Card converts a wire record into a domain card. Absent strings stay empty and a
// missing tag list becomes empty.
func (r CardRecord) Card() (domain.Card, error) {
	due, err := parseDueDate(r.DueDate)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %d: %w", r.ID, err)
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Card{
		ID:                  r.ID,
		Title:               r.Title,
		Description:         r.Description,
		Status:              r.Status,
		Priority:            domain.Priority(r.Priority),
		DueDate:             due,
		Assignee:            r.Assignee,
		Company:             r.Company,
		CompanyContactName:  r.CompanyContactName,
		CompanyContactPhone: r.CompanyContactPhone,
		JobNumber:           r.JobNumber,
		ServiceQuote:        r.ServiceQuote,
		Tags:                tags,
		IsActive:            r.IsActive,
		CreatedAt:           r.CreatedAt.Time,
		UpdatedAt:           r.UpdatedAt.Time,
		UpdatedText:         r.UpdatedAt.Text(),
	}, nil
}

// readOnlyFields absorbs server-managed keys that clients echo back from a record.
// Their values are discarded.
type readOnlyFields struct {
	ID        json.RawMessage `json:"id,omitempty"`
	IsActive  json.RawMessage `json:"is_active,omitempty"`
	CreatedAt json.RawMessage `json:"created_at,omitempty"`
	UpdatedAt json.RawMessage `json:"updated_at,omitempty"`
}

// CardPayload is the POST and PUT body.
type CardPayload struct {
	readOnlyFields
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Status              string   `json:"status"`
	Priority            string   `json:"priority"`
	DueDate             *string  `json:"due_date"`
	Assignee            string   `json:"assignee"`
	Tags                []string `json:"tags"`
	Company             string   `json:"company"`
	CompanyContactName  string   `json:"company_contact_name"`
	CompanyContactPhone string   `json:"company_contact_phone"`
	JobNumber           string   `json:"job_number"`
	ServiceQuote        string   `json:"service_quote"`
}

// PayloadFromInput builds a write payload from card input.
func PayloadFromInput(in domain.CardInput) CardPayload {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return CardPayload{
		Title:               in.Title,
		Description:         in.Description,
		Status:              in.Status,
		Priority:            string(in.Priority),
		DueDate:             dueDateString(in.DueDate),
		Assignee:            in.Assignee,
		Tags:                tags,
		Company:             in.Company,
		CompanyContactName:  in.CompanyContactName,
		CompanyContactPhone: in.CompanyContactPhone,
		JobNumber:           in.JobNumber,
		ServiceQuote:        in.ServiceQuote,
	}
}

// Input converts the payload into domain input without validating it.
func (p CardPayload) Input() (domain.CardInput, error) {
	due, err := parseDueDate(p.DueDate)
	if err != nil {
		return domain.CardInput{}, err
	}
	return domain.CardInput{
		Title:               p.Title,
		Description:         p.Description,
		Status:              p.Status,
		Priority:            domain.Priority(p.Priority),
		DueDate:             due,
		Assignee:            p.Assignee,
		Company:             p.Company,
		CompanyContactName:  p.CompanyContactName,
		CompanyContactPhone: p.CompanyContactPhone,
		JobNumber:           p.JobNumber,
		ServiceQuote:        p.ServiceQuote,
		Tags:                p.Tags,
	}, nil
}

// CardPatch is the PATCH body. Nil fields are left untouched.
type CardPatch struct {
	readOnlyFields
	Title               *string      `json:"title,omitempty"`
	Description         *string      `json:"description,omitempty"`
	Status              *string      `json:"status,omitempty"`
	Priority            *string      `json:"priority,omitempty"`
	DueDate             NullableDate `json:"due_date,omitzero"`
	Assignee            *string      `json:"assignee,omitempty"`
	Tags                *[]string    `json:"tags,omitempty"`
	Company             *string      `json:"company,omitempty"`
	CompanyContactName  *string      `json:"company_contact_name,omitempty"`
	CompanyContactPhone *string      `json:"company_contact_phone,omitempty"`
	JobNumber           *string      `json:"job_number,omitempty"`
	ServiceQuote        *string      `json:"service_quote,omitempty"`
}

// StatusPatch builds the minimal patch used by status changes.
func StatusPatch(status string) CardPatch {
	return CardPatch{Status: &status}
}

// Empty reports whether the patch changes nothing.
func (p CardPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		!p.DueDate.Set && p.Assignee == nil && p.Tags == nil && p.Company == nil &&
		p.CompanyContactName == nil && p.CompanyContactPhone == nil && p.JobNumber == nil &&
		p.ServiceQuote == nil
}

// ApplyTo overlays the patch on in.
func (p CardPatch) ApplyTo(in domain.CardInput) (domain.CardInput, error) {
	setString(&in.Title, p.Title)
	setString(&in.Description, p.Description)
	setString(&in.Status, p.Status)
	if p.Priority != nil {
		in.Priority = domain.Priority(*p.Priority)
	}
	if p.DueDate.Set {
		due, err := parseDueDate(p.DueDate.Value)
		if err != nil {
			return domain.CardInput{}, err
		}
		in.DueDate = due
	}
	setString(&in.Assignee, p.Assignee)
	if p.Tags != nil {
		in.Tags = *p.Tags
	}
	setString(&in.Company, p.Company)
	setString(&in.CompanyContactName, p.CompanyContactName)
	setString(&in.CompanyContactPhone, p.CompanyContactPhone)
	setString(&in.JobNumber, p.JobNumber)
	setString(&in.ServiceQuote, p.ServiceQuote)
	return in, nil
}

// timestampLayouts are tried in order when decoding created_at and updated_at.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// Timestamp is a created_at or updated_at value. Any JSON string decodes: recognized
// layouts fill Time, anything else is kept in Raw for display.
type Timestamp struct {
	time.Time
	Raw string
}

// Stamp wraps a parsed time.
func Stamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Text returns the raw value when it did not parse, and "" otherwise.
func (ts Timestamp) Text() string {
	if !ts.Time.IsZero() {
		return ""
	}
	return ts.Raw
}

// MarshalJSON encodes RFC 3339, the raw text, or null.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case !ts.Time.IsZero():
		return json.Marshal(ts.Time.Format(time.RFC3339Nano))
	case ts.Raw != "":
		return json.Marshal(ts.Raw)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null or any string.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	ts.Raw = s
	trimmed := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			ts.Time = t
			return nil
		}
	}
	return nil
}

// NullableDate distinguishes an absent due_date from an explicit null.
type NullableDate struct {
	Set   bool
	Value *string
}

// DateValue builds a set date. Nil clears the date.
func DateValue(v *string) NullableDate {
	return NullableDate{Set: true, Value: v}
}

// IsZero reports whether the field was absent.
func (d NullableDate) IsZero() bool {
	return !d.Set
}

// MarshalJSON encodes the date string or null.
func (d NullableDate) MarshalJSON() ([]byte, error) {
	if d.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*d.Value)
}

// UnmarshalJSON records presence and decodes the date string or null.
func (d *NullableDate) UnmarshalJSON(data []byte) error {
	d.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		d.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("due_date: %w", err)
	}
	d.Value = &s
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func dueDateString(due *time.Time) *string {
	if due == nil {
		return nil
	}
	s := domain.FormatDueDate(due)
	return &s
}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	return domain.ParseDueDate(*raw)
}
