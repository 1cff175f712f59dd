package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/kanview/internal/domain"
)

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for the card service.
type ServiceConfig struct {
	Logger *log.Logger
}

// Service implements the card use cases behind the REST and MCP surfaces.
type Service struct {
	repo   Repository
	clock  Clock
	logger *log.Logger
}

// CardPatcher overlays a partial update on existing card input.
type CardPatcher interface {
	ApplyTo(domain.CardInput) (domain.CardInput, error)
}

// NewService constructs a card service.
func NewService(repo Repository, clock Clock, cfg ServiceConfig) *Service {
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, clock: clock, logger: logger}
}

// ListCards returns the cards matching q in q's ordering.
func (s *Service) ListCards(ctx context.Context, q ListQuery) ([]domain.Card, error) {
	cards, err := s.repo.ListCards(ctx, q.IncludeInactive)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		if !q.IncludeInactive && !card.IsActive {
			continue
		}
		if q.Matches(card) {
			out = append(out, card)
		}
	}
	if err := sortCards(out, q.Ordering); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCard returns one card, active or not.
func (s *Service) GetCard(ctx context.Context, id int64) (domain.Card, error) {
	return s.repo.GetCard(ctx, id)
}

// CreateCard creates a card.
func (s *Service) CreateCard(ctx context.Context, in domain.CardInput) (domain.Card, error) {
	now := s.clock().UTC()
	card := domain.Card{IsActive: true, CreatedAt: now}
	if err := card.Update(in, now); err != nil {
		return domain.Card{}, err
	}
	id, err := s.repo.CreateCard(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}
	card.ID = id
	s.logger.Info("card created", "card_id", id, "status", card.Status, "actor", ActorFromContext(ctx))
	return card, nil
}

// ReplaceCard overwrites every writable field of a card.
func (s *Service) ReplaceCard(ctx context.Context, id int64, in domain.CardInput) (domain.Card, error) {
	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return domain.Card{}, err
	}
	if err := card.Update(in, s.clock()); err != nil {
		return domain.Card{}, err
	}
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return domain.Card{}, err
	}
	s.logger.Info("card updated", "card_id", id, "actor", ActorFromContext(ctx))
	return card, nil
}

// PatchCard applies a partial update.
func (s *Service) PatchCard(ctx context.Context, id int64, patch CardPatcher) (domain.Card, error) {
	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return domain.Card{}, err
	}
	prevStatus := card.Status
	in, err := patch.ApplyTo(card.Input())
	if err != nil {
		return domain.Card{}, err
	}
	if err := card.Update(in, s.clock()); err != nil {
		return domain.Card{}, err
	}
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return domain.Card{}, err
	}
	if card.Status != prevStatus {
		s.logger.Info("card moved", "card_id", id, "from", prevStatus, "to", card.Status, "actor", ActorFromContext(ctx))
	} else {
		s.logger.Info("card patched", "card_id", id, "actor", ActorFromContext(ctx))
	}
	return card, nil
}

// MoveCard changes only the status.
func (s *Service) MoveCard(ctx context.Context, id int64, status string) (domain.Card, error) {
	return s.PatchCard(ctx, id, statusPatch(status))
}

// ArchiveCard deactivates a card. Archiving an archived card succeeds unchanged.
func (s *Service) ArchiveCard(ctx context.Context, id int64) (domain.Card, error) {
	return s.setActive(ctx, id, false)
}

// RestoreCard reactivates a card. Restoring an active card succeeds unchanged.
func (s *Service) RestoreCard(ctx context.Context, id int64) (domain.Card, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id int64, active bool) (domain.Card, error) {
	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return domain.Card{}, err
	}
	var changed bool
	if active {
		changed = card.Restore(s.clock())
	} else {
		changed = card.Archive(s.clock())
	}
	if !changed {
		return card, nil
	}
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return domain.Card{}, fmt.Errorf("set card %d active=%t: %w", id, active, err)
	}
	s.logger.Info("card activity changed", "card_id", id, "active", active, "actor", ActorFromContext(ctx))
	return card, nil
}

type statusPatch string

func (p statusPatch) ApplyTo(in domain.CardInput) (domain.CardInput, error) {
	in.Status = string(p)
	return in, nil
}
