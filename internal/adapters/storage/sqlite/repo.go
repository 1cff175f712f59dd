package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/kanview/internal/app"
	"github.com/evanschultz/kanview/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores cards in SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the connection for the readiness endpoint.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate creates the schema and applies additive column upgrades.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS cards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			due_date TEXT,
			assignee TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			company TEXT NOT NULL DEFAULT '',
			company_contact_name TEXT NOT NULL DEFAULT '',
			company_contact_phone TEXT NOT NULL DEFAULT '',
			job_number TEXT NOT NULL DEFAULT '',
			service_quote TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_status ON cards(status);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_priority ON cards(priority);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_is_active ON cards(is_active);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	alters := []string{
		`ALTER TABLE cards ADD COLUMN updated_by TEXT NOT NULL DEFAULT 'anonymous'`,
	}
	for _, stmt := range alters {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil && !isDuplicateColumnErr(err) {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

const cardColumns = `id, title, description, status, priority, due_date, assignee, tags_json, company,
	company_contact_name, company_contact_phone, job_number, service_quote, is_active, created_at, updated_at`

// CreateCard inserts a card and returns its id.
func (r *Repository) CreateCard(ctx context.Context, c domain.Card) (int64, error) {
	tagsJSON, err := json.Marshal(nonNilTags(c.Tags))
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cards(
			title, description, status, priority, due_date, assignee, tags_json, company,
			company_contact_name, company_contact_phone, job_number, service_quote, is_active, created_at, updated_at, updated_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Title,
		c.Description,
		c.Status,
		string(c.Priority),
		nullableDate(c.DueDate),
		c.Assignee,
		string(tagsJSON),
		c.Company,
		c.CompanyContactName,
		c.CompanyContactPhone,
		c.JobNumber,
		c.ServiceQuote,
		c.IsActive,
		ts(c.CreatedAt),
		ts(c.UpdatedAt),
		app.ActorFromContext(ctx),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateCard overwrites an existing card.
func (r *Repository) UpdateCard(ctx context.Context, c domain.Card) error {
	tagsJSON, err := json.Marshal(nonNilTags(c.Tags))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE cards
		SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, assignee = ?, tags_json = ?, company = ?,
			company_contact_name = ?, company_contact_phone = ?, job_number = ?, service_quote = ?, is_active = ?,
			updated_at = ?, updated_by = ?
		WHERE id = ?
	`,
		c.Title,
		c.Description,
		c.Status,
		string(c.Priority),
		nullableDate(c.DueDate),
		c.Assignee,
		string(tagsJSON),
		c.Company,
		c.CompanyContactName,
		c.CompanyContactPhone,
		c.JobNumber,
		c.ServiceQuote,
		c.IsActive,
		ts(c.UpdatedAt),
		app.ActorFromContext(ctx),
		c.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// UpsertCards writes every card under its own id in one transaction, inserting or
// replacing. Either all cards are written or none are.
func (r *Repository) UpsertCards(ctx context.Context, cards []domain.Card) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, c := range cards {
		if err = upsertCard(ctx, tx, c); err != nil {
			return fmt.Errorf("upsert card %d: %w", c.ID, err)
		}
	}
	err = tx.Commit()
	return err
}

func upsertCard(ctx context.Context, tx *sql.Tx, c domain.Card) error {
	tagsJSON, err := json.Marshal(nonNilTags(c.Tags))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cards(
			id, title, description, status, priority, due_date, assignee, tags_json, company,
			company_contact_name, company_contact_phone, job_number, service_quote, is_active, created_at, updated_at, updated_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			due_date = excluded.due_date,
			assignee = excluded.assignee,
			tags_json = excluded.tags_json,
			company = excluded.company,
			company_contact_name = excluded.company_contact_name,
			company_contact_phone = excluded.company_contact_phone,
			job_number = excluded.job_number,
			service_quote = excluded.service_quote,
			is_active = excluded.is_active,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`,
		c.ID,
		c.Title,
		c.Description,
		c.Status,
		string(c.Priority),
		nullableDate(c.DueDate),
		c.Assignee,
		string(tagsJSON),
		c.Company,
		c.CompanyContactName,
		c.CompanyContactPhone,
		c.JobNumber,
		c.ServiceQuote,
		c.IsActive,
		ts(c.CreatedAt),
		ts(c.UpdatedAt),
		app.ActorFromContext(ctx),
	)
	return err
}

// GetCard returns one card.
func (r *Repository) GetCard(ctx context.Context, id int64) (domain.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, app.ErrNotFound
	}
	return card, err
}

// ListCards returns cards newest first.
func (r *Repository) ListCards(ctx context.Context, includeInactive bool) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

// UpdatedBy returns the actor of the most recent write to a card.
func (r *Repository) UpdatedBy(ctx context.Context, id int64) (string, error) {
	var actor string
	err := r.db.QueryRowContext(ctx, `SELECT updated_by FROM cards WHERE id = ?`, id).Scan(&actor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", app.ErrNotFound
	}
	return actor, err
}

// scanner represents the row-scanning contract shared by Row and Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanCard decodes one cards row.
func scanCard(s scanner) (domain.Card, error) {
	var (
		c          domain.Card
		priority   string
		dueRaw     sql.NullString
		tagsRaw    string
		active     bool
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Status,
		&priority,
		&dueRaw,
		&c.Assignee,
		&tagsRaw,
		&c.Company,
		&c.CompanyContactName,
		&c.CompanyContactPhone,
		&c.JobNumber,
		&c.ServiceQuote,
		&active,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return domain.Card{}, err
	}
	c.Priority = domain.Priority(priority)
	c.IsActive = active
	if err := json.Unmarshal([]byte(tagsRaw), &c.Tags); err != nil {
		return domain.Card{}, fmt.Errorf("decode card %d tags: %w", c.ID, err)
	}
	c.Tags = nonNilTags(c.Tags)
	if dueRaw.Valid {
		due, err := domain.ParseDueDate(dueRaw.String)
		if err != nil {
			return domain.Card{}, fmt.Errorf("decode card %d due date: %w", c.ID, err)
		}
		c.DueDate = due
	}
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

// translateNoRows maps zero affected rows to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableDate formats an optional due date for storage.
func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.FormatDueDate(t)
}

// parseTS parses a stored timestamp.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// isDuplicateColumnErr reports whether err comes from re-adding an existing column.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
