package board

import "slices"

// EditSession stages changes to an ordered list until they are committed or discarded.
type EditSession[T any] struct {
	equal     func(a, b T) bool
	committed []T
	draft     []T
	active    bool
}

// NewEditSession returns an idle session comparing entries with equal.
func NewEditSession[T any](equal func(a, b T) bool) EditSession[T] {
	return EditSession[T]{equal: equal}
}

// Begin snapshots committed into a fresh draft.
func (s *EditSession[T]) Begin(committed []T) {
	s.committed = slices.Clone(committed)
	s.draft = slices.Clone(committed)
	s.active = true
}

// Active reports whether a draft is open.
func (s *EditSession[T]) Active() bool {
	return s.active
}

// Draft returns a copy of the draft.
func (s *EditSession[T]) Draft() []T {
	return slices.Clone(s.draft)
}

// Mutate replaces the draft with fn's result. It is ignored while idle.
func (s *EditSession[T]) Mutate(fn func(draft []T) []T) {
	if !s.active {
		return
	}
	s.draft = fn(slices.Clone(s.draft))
}

// Dirty reports whether the draft differs from the snapshot by length or position.
func (s *EditSession[T]) Dirty() bool {
	if !s.active {
		return false
	}
	return !slices.EqualFunc(s.committed, s.draft, s.equal)
}

// Commit closes the session and returns the draft.
func (s *EditSession[T]) Commit() []T {
	out := s.draft
	s.reset()
	return out
}

// Cancel closes the session and returns the untouched snapshot.
func (s *EditSession[T]) Cancel() []T {
	out := s.committed
	s.reset()
	return out
}

func (s *EditSession[T]) reset() {
	s.committed = nil
	s.draft = nil
	s.active = false
}

// swapAdjacent moves items[idx] one step by delta (-1 or +1). Moves past either end
// leave items unchanged.
func swapAdjacent[T any](items []T, idx, delta int) ([]T, bool) {
	target := idx + delta
	if idx < 0 || idx >= len(items) || target < 0 || target >= len(items) || delta == 0 {
		return items, false
	}
	items[idx], items[target] = items[target], items[idx]
	return items, true
}
