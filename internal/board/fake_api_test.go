package board

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/kanview/internal/domain"
)

var errBackend = errors.New("backend unavailable")

// fakeAPI is an in-memory CardAPI with per-call failure and blocking hooks.
type fakeAPI struct {
	mu     sync.Mutex
	cards  []domain.Card
	nextID int64
	now    time.Time

	listErr    error
	createErr  error
	updateErr  error
	patchErr   map[int64]error
	archiveErr error

	// gate, when set, blocks PatchCardStatus and ArchiveCard until it is closed.
	gate chan struct{}

	listCalls    int
	createCalls  int
	updateCalls  int
	patchCalls   []int64
	archiveCalls []int64
}

func newFakeAPI(cards ...domain.Card) *fakeAPI {
	maxID := int64(0)
	for _, c := range cards {
		maxID = max(maxID, c.ID)
	}
	return &fakeAPI{
		cards:    slices.Clone(cards),
		nextID:   maxID + 1,
		now:      time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		patchErr: map[int64]error{},
	}
}

func (f *fakeAPI) ListCards(context.Context) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.cards), nil
}

func (f *fakeAPI) CreateCard(_ context.Context, in domain.CardInput) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return domain.Card{}, f.createErr
	}
	card, err := domain.NewCard(f.nextID, in, f.now)
	if err != nil {
		return domain.Card{}, err
	}
	f.nextID++
	f.cards = append(f.cards, card)
	return card, nil
}

func (f *fakeAPI) UpdateCard(_ context.Context, id int64, in domain.CardInput) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return domain.Card{}, f.updateErr
	}
	idx := slices.IndexFunc(f.cards, func(c domain.Card) bool { return c.ID == id })
	if idx < 0 {
		return domain.Card{}, errors.New("not found")
	}
	if err := f.cards[idx].Update(in, f.now.Add(time.Minute)); err != nil {
		return domain.Card{}, err
	}
	return f.cards[idx], nil
}

func (f *fakeAPI) PatchCardStatus(_ context.Context, id int64, status string) (domain.Card, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchCalls = append(f.patchCalls, id)
	if err := f.patchErr[id]; err != nil {
		return domain.Card{}, err
	}
	idx := slices.IndexFunc(f.cards, func(c domain.Card) bool { return c.ID == id })
	if idx < 0 {
		return domain.Card{}, errors.New("not found")
	}
	if err := f.cards[idx].SetStatus(status, f.now.Add(time.Hour)); err != nil {
		return domain.Card{}, err
	}
	return f.cards[idx], nil
}

func (f *fakeAPI) ArchiveCard(_ context.Context, id int64) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveCalls = append(f.archiveCalls, id)
	if f.archiveErr != nil {
		return f.archiveErr
	}
	f.cards = slices.DeleteFunc(f.cards, func(c domain.Card) bool { return c.ID == id })
	return nil
}

func (f *fakeAPI) wait() {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeAPI) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patchCalls)
}

func (f *fakeAPI) archiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.archiveCalls)
}

// noticeLog records notices for assertions.
type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return Notice{}
	}
	return n.notices[len(n.notices)-1]
}

func (n *noticeLog) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

func card(id int64, title, status string, mutate ...func(*domain.Card)) domain.Card {
	c := domain.Card{
		ID:        id,
		Title:     title,
		Status:    status,
		Priority:  domain.PriorityMedium,
		Tags:      []string{},
		IsActive:  true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, fn := range mutate {
		fn(&c)
	}
	return c
}

func threeColumns() []domain.Column {
	return []domain.Column{
		{ID: "backlog", Label: "Backlog", Color: domain.ColorGray},
		{ID: "doing", Label: "Doing", Color: domain.ColorBlue},
		{ID: "done", Label: "Done", Color: domain.ColorGreen},
	}
}

// newLoadedBoard builds a board over api and loads it.
func newLoadedBoard(t *testing.T, api *fakeAPI, notices *noticeLog) *Board {
	t.Helper()
	b := New(api, notices, Config{
		Columns:     threeColumns(),
		DefaultTags: []string{"urgent", "customer"},
		Logger:      log.New(io.Discard),
	})
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return b
}
