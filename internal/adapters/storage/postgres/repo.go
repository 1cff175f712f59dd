// Package postgres stores cards in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/evanschultz/kanview/internal/app"
	"github.com/evanschultz/kanview/internal/domain"
)

// driverName defines a package constant value.
const driverName = "postgres"

// Repository stores cards in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the connection for the readiness endpoint.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kanban_cards (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			priority VARCHAR(16) NOT NULL,
			due_date DATE,
			assignee VARCHAR(120) NOT NULL DEFAULT '',
			tags VARCHAR(32)[] NOT NULL DEFAULT '{}',
			company VARCHAR(120) NOT NULL DEFAULT '',
			company_contact_name VARCHAR(120) NOT NULL DEFAULT '',
			company_contact_phone VARCHAR(64) NOT NULL DEFAULT '',
			job_number VARCHAR(64) NOT NULL DEFAULT '',
			service_quote VARCHAR(64) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`ALTER TABLE kanban_cards ADD COLUMN IF NOT EXISTS updated_by TEXT NOT NULL DEFAULT 'anonymous'`,
		`CREATE INDEX IF NOT EXISTS idx_kanban_cards_status ON kanban_cards(status)`,
		`CREATE INDEX IF NOT EXISTS idx_kanban_cards_priority ON kanban_cards(priority)`,
		`CREATE INDEX IF NOT EXISTS idx_kanban_cards_is_active ON kanban_cards(is_active)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

const cardColumns = `id, title, description, status, priority, due_date, assignee, tags, company,
	company_contact_name, company_contact_phone, job_number, service_quote, is_active, created_at, updated_at`

// CreateCard inserts a card and returns its id.
func (r *Repository) CreateCard(ctx context.Context, c domain.Card) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO kanban_cards(
			title, description, status, priority, due_date, assignee, tags, company,
			company_contact_name, company_contact_phone, job_number, service_quote, is_active, created_at, updated_at, updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`,
		c.Title,
		c.Description,
		c.Status,
		string(c.Priority),
		nullableDate(c.DueDate),
		c.Assignee,
		pq.Array(nonNilTags(c.Tags)),
		c.Company,
		c.CompanyContactName,
		c.CompanyContactPhone,
		c.JobNumber,
		c.ServiceQuote,
		c.IsActive,
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
		app.ActorFromContext(ctx),
	).Scan(&id)
	if err != nil {
		return 0, translateErr(err)
	}
	return id, nil
}

// UpdateCard overwrites an existing card.
func (r *Repository) UpdateCard(ctx context.Context, c domain.Card) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE kanban_cards
		SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, assignee = $6, tags = $7,
			company = $8, company_contact_name = $9, company_contact_phone = $10, job_number = $11,
			service_quote = $12, is_active = $13, updated_at = $14, updated_by = $15
		WHERE id = $16
	`,
		c.Title,
		c.Description,
		c.Status,
		string(c.Priority),
		nullableDate(c.DueDate),
		c.Assignee,
		pq.Array(nonNilTags(c.Tags)),
		c.Company,
		c.CompanyContactName,
		c.CompanyContactPhone,
		c.JobNumber,
		c.ServiceQuote,
		c.IsActive,
		c.UpdatedAt.UTC(),
		app.ActorFromContext(ctx),
		c.ID,
	)
	if err != nil {
		return translateErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// UpsertCards writes every card under its own id in one transaction and advances the
// id sequence past them. Either all cards are written or none are.
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
			return fmt.Errorf("upsert card %d: %w", c.ID, translateErr(err))
		}
	}
	_, err = tx.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence('kanban_cards', 'id'), GREATEST((SELECT MAX(id) FROM kanban_cards), 1))
	`)
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func upsertCard(ctx context.Context, tx *sql.Tx, c domain.Card) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kanban_cards(
			id, title, description, status, priority, due_date, assignee, tags, company,
			company_contact_name, company_contact_phone, job_number, service_quote, is_active, created_at, updated_at, updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			due_date = EXCLUDED.due_date,
			assignee = EXCLUDED.assignee,
			tags = EXCLUDED.tags,
			company = EXCLUDED.company,
			company_contact_name = EXCLUDED.company_contact_name,
			company_contact_phone = EXCLUDED.company_contact_phone,
			job_number = EXCLUDED.job_number,
			service_quote = EXCLUDED.service_quote,
			is_active = EXCLUDED.is_active,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`,
		c.ID,
		c.Title,
		c.Description,
		c.Status,
		string(c.Priority),
		nullableDate(c.DueDate),
		c.Assignee,
		pq.Array(nonNilTags(c.Tags)),
		c.Company,
		c.CompanyContactName,
		c.CompanyContactPhone,
		c.JobNumber,
		c.ServiceQuote,
		c.IsActive,
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
		app.ActorFromContext(ctx),
	)
	return err
}

// GetCard returns one card.
func (r *Repository) GetCard(ctx context.Context, id int64) (domain.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM kanban_cards WHERE id = $1`, id)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, app.ErrNotFound
	}
	return card, err
}

// ListCards returns cards newest first.
func (r *Repository) ListCards(ctx context.Context, includeInactive bool) ([]domain.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM kanban_cards
		WHERE $1 OR is_active
		ORDER BY created_at DESC, id DESC
	`, includeInactive)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (domain.Card, error) {
	var (
		c        domain.Card
		priority string
		due      sql.NullTime
		tags     []string
	)
	if err := s.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Status,
		&priority,
		&due,
		&c.Assignee,
		pq.Array(&tags),
		&c.Company,
		&c.CompanyContactName,
		&c.CompanyContactPhone,
		&c.JobNumber,
		&c.ServiceQuote,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return domain.Card{}, err
	}
	c.Priority = domain.Priority(priority)
	c.Tags = nonNilTags(tags)
	if due.Valid {
		y, m, d := due.Time.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		c.DueDate = &day
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// translateErr maps constraint violations onto domain errors.
func translateErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "string_data_right_truncation" {
		return fmt.Errorf("%w: %s", domain.ErrFieldTooLong, pqErr.Message)
	}
	return err
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.FormatDueDate(t)
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
