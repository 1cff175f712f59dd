package app

import (
	"context"

	"github.com/evanschultz/kanview/internal/domain"
)

// Repository persists cards.
type Repository interface {
	// CreateCard stores a new card and returns its assigned id. card.ID is ignored.
	CreateCard(context.Context, domain.Card) (int64, error)
	UpdateCard(context.Context, domain.Card) error
	// UpsertCards writes each card under its own id, all or nothing.
	UpsertCards(context.Context, []domain.Card) error
	GetCard(context.Context, int64) (domain.Card, error)
	ListCards(ctx context.Context, includeInactive bool) ([]domain.Card, error)
}
