package tui

import "time"

type Option func(*Model)

// WithConfirm toggles the card deletion modal. Column deletion always asks.
func WithConfirm(deleteCard bool) Option {
	return func(m *Model) {
		m.confirmDeleteCard = deleteCard
	}
}

// WithSearchHint shows which card fields the search box matches.
func WithSearchHint(show bool) Option {
	return func(m *Model) {
		m.searchHint = show
	}
}

// WithKeyConfig applies key binding overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithRequestTimeout bounds every backend call issued from the view.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}
