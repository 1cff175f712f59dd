// Package board owns the client-side Kanban state: the card store, the column registry,
// filter criteria, and the controllers that mutate them against a CardAPI.
package board

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/evanschultz/kanview/internal/domain"
)

// CardAPI is the backend the board reads from and writes to.
type CardAPI interface {
	ListCards(context.Context) ([]domain.Card, error)
	CreateCard(context.Context, domain.CardInput) (domain.Card, error)
	UpdateCard(context.Context, int64, domain.CardInput) (domain.Card, error)
	PatchCardStatus(context.Context, int64, string) (domain.Card, error)
	ArchiveCard(context.Context, int64) error
}

// Config seeds a board.
type Config struct {
	Columns     []domain.Column
	DefaultTags []string
	Logger      *log.Logger
	// NewID supplies column ids for labels without slug-able characters.
	NewID func() string
}

// Board is the single owner of card and column state. Every method is safe to call
// from concurrent commands.
type Board struct {
	api    CardAPI
	notify Notifier
	logger *log.Logger
	newID  func() string

	mu             sync.Mutex
	cards          []domain.Card
	loaded         bool
	columns        []domain.Column
	defaultTags    []string
	tags           []string
	criteria       Criteria
	statusUpdating map[int64]struct{}
	deleting       map[int64]struct{}
	closing        map[string]struct{}
	saving         bool
	reorder        EditSession[domain.Column]
	drag           DragState
	dragSeq        uint64

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// Lane is one rendered column with its visible cards.
type Lane struct {
	Column domain.Column
	Cards  []LaneCard
}

// LaneCard is a visible card plus its transient flags.
type LaneCard struct {
	domain.Card
	// Orphan marks cards whose status matches no column.
	Orphan         bool
	StatusUpdating bool
	Deleting       bool
}

// New constructs a board. Empty config columns fall back to the defaults.
func New(api CardAPI, notifier Notifier, cfg Config) *Board {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return "col-" + uuid.NewString()[:8] }
	}
	columns := slices.Clone(cfg.Columns)
	if len(columns) == 0 {
		columns = domain.DefaultColumns()
	}
	defaults := domain.NormalizeTags(cfg.DefaultTags)
	return &Board{
		api:            api,
		notify:         notifier,
		logger:         logger,
		newID:          newID,
		columns:        columns,
		defaultTags:    defaults,
		tags:           slices.Clone(defaults),
		criteria:       DefaultCriteria(),
		statusUpdating: map[int64]struct{}{},
		deleting:       map[int64]struct{}{},
		closing:        map[string]struct{}{},
		reorder:        NewEditSession(func(a, b domain.Column) bool { return a.ID == b.ID }),
		subs:           map[int]func(){},
	}
}

// Subscribe registers fn to run after every state change and returns its cancel func.
func (b *Board) Subscribe(fn func()) func() {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Board) publish() {
	b.subMu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Loaded reports whether a load has succeeded.
func (b *Board) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Cards returns every card in store order.
func (b *Board) Cards() []domain.Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.cards)
}

// Card looks up one card.
func (b *Board) Card(id int64) (domain.Card, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.indexOf(id)
	if idx < 0 {
		return domain.Card{}, false
	}
	return b.cards[idx], true
}

// Visible returns the cards passing the current criteria.
func (b *Board) Visible() []domain.Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Apply(b.cards, b.criteria)
}

// Tags returns the known tag vocabulary.
func (b *Board) Tags() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.tags)
}

// FilterOptions derives the selector values from the store.
func (b *Board) FilterOptions() FilterOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return DeriveOptions(b.cards)
}

// Criteria returns the active filters.
func (b *Board) Criteria() Criteria {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.criteria
	c.Tags = slices.Clone(c.Tags)
	return c
}

// SetCriteria replaces the active filters.
func (b *Board) SetCriteria(c Criteria) {
	b.mu.Lock()
	c.Tags = slices.Clone(c.Tags)
	b.criteria = c
	b.mu.Unlock()
	b.publish()
}

// ResetFilters restores the default criteria.
func (b *Board) ResetFilters() {
	b.SetCriteria(DefaultCriteria())
}

// IsStatusUpdating reports whether a status change for id is in flight.
func (b *Board) IsStatusUpdating(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.statusUpdating[id]
	return ok
}

// IsDeleting reports whether a deletion for id is in flight.
func (b *Board) IsDeleting(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.deleting[id]
	return ok
}

// Saving reports whether a create or update is in flight.
func (b *Board) Saving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saving
}

// Lanes joins the displayed columns with the filtered cards. Cards whose status
// matches no column are listed in the first lane and flagged Orphan.
func (b *Board) Lanes() []Lane {
	b.mu.Lock()
	defer b.mu.Unlock()

	columns := b.columns
	if b.reorder.Active() {
		columns = b.reorder.Draft()
	}
	lanes := make([]Lane, len(columns))
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		lanes[i] = Lane{Column: col, Cards: []LaneCard{}}
		index[col.ID] = i
	}
	if len(lanes) == 0 {
		return lanes
	}
	for _, card := range Apply(b.cards, b.criteria) {
		_, updating := b.statusUpdating[card.ID]
		_, deleting := b.deleting[card.ID]
		lc := LaneCard{Card: card, StatusUpdating: updating, Deleting: deleting}
		idx, ok := index[card.Status]
		if !ok {
			lc.Orphan = true
			idx = 0
		}
		lanes[idx].Cards = append(lanes[idx].Cards, lc)
	}
	return lanes
}

func (b *Board) indexOf(id int64) int {
	return slices.IndexFunc(b.cards, func(c domain.Card) bool { return c.ID == id })
}

func (b *Board) busyLocked(id int64) bool {
	_, updating := b.statusUpdating[id]
	_, deleting := b.deleting[id]
	return updating || deleting
}
