package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/evanschultz/kanview/internal/domain"
	"github.com/evanschultz/kanview/internal/wire"
)

// SnapshotVersion tags the export format.
const SnapshotVersion = "kanview.snapshot.v1"

// Snapshot is a portable copy of every card.
type Snapshot struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Cards      []wire.CardRecord `json:"cards"`
}

// ExportSnapshot collects every card, archived ones included when requested.
func (s *Service) ExportSnapshot(ctx context.Context, includeInactive bool) (Snapshot, error) {
	cards, err := s.repo.ListCards(ctx, includeInactive)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Cards:      make([]wire.CardRecord, 0, len(cards)),
	}
	for _, card := range cards {
		if !includeInactive && !card.IsActive {
			continue
		}
		snap.Cards = append(snap.Cards, wire.RecordFromCard(card))
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot validates snap and upserts its cards by id. A failed import writes
// nothing.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	cards, err := snap.Validate()
	if err != nil {
		return err
	}
	if err := s.repo.UpsertCards(ctx, cards); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	s.logger.Info("snapshot imported", "cards", len(cards), "actor", ActorFromContext(ctx))
	return nil
}

// Validate checks the snapshot and returns its cards in id order.
func (s *Snapshot) Validate() ([]domain.Card, error) {
	if s.Version != "" && s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	s.sort()
	seen := map[int64]struct{}{}
	cards := make([]domain.Card, 0, len(s.Cards))
	for i, rec := range s.Cards {
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate card id %d", ErrInvalidSnapshot, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
			return nil, fmt.Errorf("%w: cards[%d] timestamps are required", ErrInvalidSnapshot, i)
		}
		decoded, err := rec.Card()
		if err != nil {
			return nil, fmt.Errorf("%w: cards[%d]: %v", ErrInvalidSnapshot, i, err)
		}
		card, err := domain.NewCard(decoded.ID, decoded.Input(), decoded.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: cards[%d]: %v", ErrInvalidSnapshot, i, err)
		}
		card.CreatedAt = decoded.CreatedAt.UTC()
		card.IsActive = decoded.IsActive
		cards = append(cards, card)
	}
	return cards, nil
}

func (s *Snapshot) sort() {
	slices.SortFunc(s.Cards, func(a, b wire.CardRecord) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}
