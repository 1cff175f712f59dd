package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/kanview/internal/domain"
)

// Load replaces the store with the backend's cards and grows the tag vocabulary.
// A failed load leaves the store as it was.
func (b *Board) Load(ctx context.Context) error {
	cards, err := b.api.ListCards(ctx)
	if err != nil {
		b.logger.Error("load cards failed", "err", err)
		b.notify.Notify(Notice{Level: LevelError, Message: fmt.Sprintf("Failed to load cards: %v", err)})
		return fmt.Errorf("load cards: %w", err)
	}

	b.mu.Lock()
	b.cards = slices.Clone(cards)
	b.loaded = true
	discovered := make([]string, 0)
	for _, card := range cards {
		discovered = append(discovered, card.Tags...)
	}
	b.tags = domain.NormalizeTags(slices.Concat(b.defaultTags, b.tags, discovered))
	b.mu.Unlock()

	b.logger.Debug("cards loaded", "count", len(cards))
	b.publish()
	return nil
}

// AddTag appends tag to the vocabulary. It reports false for blank or known tags.
func (b *Board) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	b.mu.Lock()
	if slices.Contains(b.tags, tag) {
		b.mu.Unlock()
		return false
	}
	b.tags = append(b.tags, tag)
	b.mu.Unlock()

	b.publish()
	return true
}

// ValidateCard checks form input before submission.
func ValidateCard(in domain.CardInput) (domain.CardInput, error) {
	errs := FieldErrors{}
	if strings.TrimSpace(in.Title) == "" {
		errs["title"] = "Title is required"
	}
	if strings.TrimSpace(in.Status) == "" {
		errs["status"] = "Status is required"
	}
	if in.Priority != "" && in.Priority.Rank() < 0 {
		errs["priority"] = "Priority must be low, medium, or high"
	}
	if len(errs) > 0 {
		return domain.CardInput{}, errs
	}
	normalized, err := in.Normalize()
	switch {
	case errors.Is(err, domain.ErrFieldTooLong):
		return domain.CardInput{}, FieldErrors{"form": "A field exceeds its maximum length"}
	case err != nil:
		return domain.CardInput{}, FieldErrors{"form": err.Error()}
	}
	return normalized, nil
}

// CreateCard validates in, creates it remotely, and appends the server's card.
func (b *Board) CreateCard(ctx context.Context, in domain.CardInput) (domain.Card, error) {
	in, err := ValidateCard(in)
	if err != nil {
		return domain.Card{}, err
	}
	if !b.beginSaving() {
		return domain.Card{}, ErrBusy
	}
	defer b.endSaving()

	card, err := b.api.CreateCard(ctx, in)
	if err != nil {
		b.logger.Error("create card failed", "title", in.Title, "err", err)
		b.notify.Notify(Notice{Level: LevelError, Message: fmt.Sprintf("Failed to create card: %v", err)})
		return domain.Card{}, fmt.Errorf("create card: %w", err)
	}

	b.mu.Lock()
	b.cards = append(b.cards, card)
	b.mu.Unlock()

	b.logger.Info("card created", "card_id", card.ID, "status", card.Status)
	b.notify.Notify(Notice{Level: LevelSuccess, Message: fmt.Sprintf("Created %q", card.Title)})
	return card, nil
}

// UpdateCard validates in, replaces the card remotely, and swaps in the server's card.
func (b *Board) UpdateCard(ctx context.Context, id int64, in domain.CardInput) (domain.Card, error) {
	in, err := ValidateCard(in)
	if err != nil {
		return domain.Card{}, err
	}
	if !b.beginSaving() {
		return domain.Card{}, ErrBusy
	}
	defer b.endSaving()

	card, err := b.api.UpdateCard(ctx, id, in)
	if err != nil {
		b.logger.Error("update card failed", "card_id", id, "err", err)
		b.notify.Notify(Notice{Level: LevelError, Message: fmt.Sprintf("Failed to update card: %v", err)})
		return domain.Card{}, fmt.Errorf("update card %d: %w", id, err)
	}

	b.mu.Lock()
	b.replaceLocked(card)
	b.mu.Unlock()

	b.logger.Info("card updated", "card_id", card.ID)
	b.notify.Notify(Notice{Level: LevelSuccess, Message: fmt.Sprintf("Updated %q", card.Title)})
	return card, nil
}

// DeleteCard archives the card remotely and removes it locally. One deletion per card
// may be in flight.
func (b *Board) DeleteCard(ctx context.Context, id int64) error {
	b.mu.Lock()
	if _, ok := b.deleting[id]; ok {
		b.mu.Unlock()
		return ErrBusy
	}
	idx := b.indexOf(id)
	if idx < 0 {
		b.mu.Unlock()
		return ErrUnknownCard
	}
	title := b.cards[idx].Title
	b.deleting[id] = struct{}{}
	b.mu.Unlock()
	b.publish()

	err := b.api.ArchiveCard(ctx, id)

	b.mu.Lock()
	delete(b.deleting, id)
	if err == nil {
		if idx := b.indexOf(id); idx >= 0 {
			b.cards = slices.Delete(b.cards, idx, idx+1)
		}
	}
	b.mu.Unlock()
	b.publish()

	if err != nil {
		b.logger.Error("delete card failed", "card_id", id, "err", err)
		b.notify.Notify(Notice{Level: LevelError, Message: fmt.Sprintf("Failed to delete %q: %v", title, err)})
		return fmt.Errorf("delete card %d: %w", id, err)
	}
	b.logger.Info("card archived", "card_id", id)
	b.notify.Notify(Notice{Level: LevelSuccess, Message: fmt.Sprintf("Deleted %q", title)})
	return nil
}

// ChangeStatus moves a card optimistically and reverts the move if the backend rejects
// it. Moving a card to its current status does nothing.
func (b *Board) ChangeStatus(ctx context.Context, id int64, status string) error {
	var (
		title   string
		applied bool
	)
	tx := transaction[string, domain.Card]{
		mu: &b.mu,
		snapshot: func() (string, error) {
			idx := b.indexOf(id)
			if idx < 0 {
				return "", ErrUnknownCard
			}
			if b.cards[idx].Status == status {
				return "", errSkip
			}
			if b.busyLocked(id) {
				return "", ErrBusy
			}
			if _, ok := b.closing[status]; ok {
				return "", ErrBusy
			}
			b.statusUpdating[id] = struct{}{}
			title = b.cards[idx].Title
			return b.cards[idx].Status, nil
		},
		apply: func(string) {
			applied = true
			b.setStatusLocked(id, status)
		},
		remote: func(ctx context.Context) (domain.Card, error) {
			b.publish()
			return b.api.PatchCardStatus(ctx, id, status)
		},
		reconcile: func(card domain.Card) {
			b.replaceLocked(card)
		},
		revert: func(prev string, _ error) {
			b.setStatusLocked(id, prev)
		},
		finally: func() {
			delete(b.statusUpdating, id)
		},
	}

	err := tx.run(ctx)
	switch {
	case err == nil && !applied:
		return nil
	case err == nil:
		b.publish()
		b.logger.Info("card status changed", "card_id", id, "status", status)
		b.notify.Notify(Notice{Level: LevelSuccess, Message: fmt.Sprintf("Moved %q to %s", title, b.columnLabel(status))})
		return nil
	case errors.Is(err, ErrUnknownCard), errors.Is(err, ErrBusy):
		return err
	default:
		b.publish()
		b.logger.Error("status change failed", "card_id", id, "status", status, "err", err)
		b.notify.Notify(Notice{Level: LevelError, Message: fmt.Sprintf("Failed to move %q: %v", title, err)})
		return fmt.Errorf("change status of card %d: %w", id, err)
	}
}

func (b *Board) beginSaving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saving {
		return false
	}
	b.saving = true
	return true
}

func (b *Board) endSaving() {
	b.mu.Lock()
	b.saving = false
	b.mu.Unlock()
	b.publish()
}

func (b *Board) replaceLocked(card domain.Card) {
	if idx := b.indexOf(card.ID); idx >= 0 {
		b.cards[idx] = card
	}
}

func (b *Board) setStatusLocked(id int64, status string) {
	if idx := b.indexOf(id); idx >= 0 {
		b.cards[idx].Status = status
	}
}

func (b *Board) columnLabel(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx := b.columnIndex(id); idx >= 0 {
		return b.columns[idx].Label
	}
	return id
}
