package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/kanview/internal/app"
	"github.com/evanschultz/kanview/internal/domain"
	_ "modernc.org/sqlite"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "kanview.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_CardLifecycle(t *testing.T) {
	ctx := app.WithActor(context.Background(), "dana")
	repo := openTestRepo(t)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	card := domain.Card{IsActive: true, CreatedAt: now}
	if err := card.Update(domain.CardInput{
		Title:               "Replace compressor",
		Description:         "Unit 4 on the roof",
		Status:              "backlog",
		Priority:            domain.PriorityHigh,
		DueDate:             &due,
		Assignee:            "dana",
		Company:             "Acme",
		CompanyContactName:  "Priya",
		CompanyContactPhone: "555-0100",
		JobNumber:           "J-1",
		ServiceQuote:        "SQ-1",
		Tags:                []string{"hvac", "urgent"},
	}, now); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	id, err := repo.CreateCard(ctx, card)
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}
	card.ID = id

	loaded, err := repo.GetCard(ctx, id)
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if loaded.Title != card.Title || loaded.CompanyContactPhone != "555-0100" || loaded.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected loaded card %#v", loaded)
	}
	if !slices.Equal(loaded.Tags, []string{"hvac", "urgent"}) {
		t.Fatalf("unexpected tags %#v", loaded.Tags)
	}
	if domain.FormatDueDate(loaded.DueDate) != "2026-03-01" || !loaded.CreatedAt.Equal(now) || !loaded.IsActive {
		t.Fatalf("unexpected loaded fields %#v", loaded)
	}

	later := now.Add(time.Hour)
	loaded.Archive(later)
	loaded.DueDate = nil
	if err := repo.UpdateCard(app.WithActor(ctx, "sam"), loaded); err != nil {
		t.Fatalf("UpdateCard() error = %v", err)
	}
	archived, err := repo.GetCard(ctx, id)
	if err != nil {
		t.Fatalf("GetCard() after update error = %v", err)
	}
	if archived.IsActive || archived.DueDate != nil || !archived.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected archived card %#v", archived)
	}
	if actor, err := repo.UpdatedBy(ctx, id); err != nil || actor != "sam" {
		t.Fatalf("UpdatedBy() = %q, %v", actor, err)
	}

	active, err := repo.ListCards(ctx, false)
	if err != nil {
		t.Fatalf("ListCards() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected archived card excluded, got %d", len(active))
	}
	all, err := repo.ListCards(ctx, true)
	if err != nil {
		t.Fatalf("ListCards(include) error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 card, got %d", len(all))
	}
}

func TestRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	if _, err := repo.GetCard(ctx, 42); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	err := repo.UpdateCard(ctx, domain.Card{ID: 42, Title: "x", Status: "y", Priority: domain.PriorityLow})
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if _, err := repo.UpdatedBy(ctx, 42); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from UpdatedBy, got %v", err)
	}
}

func TestRepository_UpsertKeepsIDs(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	card, err := domain.NewCard(10, domain.CardInput{Title: "imported", Status: "done"}, now)
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	if err := repo.UpsertCards(ctx, []domain.Card{card}); err != nil {
		t.Fatalf("UpsertCards() error = %v", err)
	}
	card.Title = "imported again"
	if err := repo.UpsertCards(ctx, []domain.Card{card}); err != nil {
		t.Fatalf("second UpsertCards() error = %v", err)
	}
	loaded, err := repo.GetCard(ctx, 10)
	if err != nil || loaded.Title != "imported again" {
		t.Fatalf("GetCard() = %#v, %v", loaded, err)
	}
	if loaded.Tags == nil {
		t.Fatal("expected empty tag slice, got nil")
	}

	next, err := repo.CreateCard(ctx, domain.Card{Title: "n", Status: "backlog", Priority: domain.PriorityLow, IsActive: true, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	if next != 11 {
		t.Fatalf("expected autoincrement after imported id, got %d", next)
	}
}

func TestRepository_UpsertCardsRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	existing, err := domain.NewCard(1, domain.CardInput{Title: "original", Status: "backlog"}, now)
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	if err := repo.UpsertCards(ctx, []domain.Card{existing}); err != nil {
		t.Fatalf("UpsertCards() error = %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, `
		CREATE TRIGGER reject_poison BEFORE INSERT ON cards
		WHEN NEW.title = 'poison'
		BEGIN SELECT RAISE(ABORT, 'poisoned card'); END
	`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	renamed := existing
	renamed.Title = "renamed"
	fresh, _ := domain.NewCard(2, domain.CardInput{Title: "fresh", Status: "doing"}, now)
	poison, _ := domain.NewCard(3, domain.CardInput{Title: "poison", Status: "done"}, now)
	if err := repo.UpsertCards(ctx, []domain.Card{renamed, fresh, poison}); err == nil {
		t.Fatal("expected batch failure")
	}

	cards, err := repo.ListCards(ctx, true)
	if err != nil {
		t.Fatalf("ListCards() error = %v", err)
	}
	if len(cards) != 1 || cards[0].Title != "original" {
		t.Fatalf("expected only the untouched original, got %#v", cards)
	}
}

func TestRepository_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanview.db")
	for range 2 {
		repo, err := Open(path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := repo.Ping(context.Background()); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
		_ = repo.Close()
	}
}

func TestRepository_ServiceIntegration(t *testing.T) {
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := app.NewService(repo, nil, app.ServiceConfig{})
	ctx := context.Background()
	created, err := svc.CreateCard(ctx, domain.CardInput{Title: "a", Status: "backlog", Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	if _, err := svc.MoveCard(ctx, created.ID, "done"); err != nil {
		t.Fatalf("MoveCard() error = %v", err)
	}
	cards, err := svc.ListCards(ctx, app.ListQuery{Tags: []string{"x"}, Status: "done"})
	if err != nil {
		t.Fatalf("ListCards() error = %v", err)
	}
	if len(cards) != 1 || cards[0].ID != created.ID {
		t.Fatalf("unexpected cards %#v", cards)
	}
}
