package tui

import (
	"sync"

	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/kanview/internal/board"
)

// boardChangedMsg signals that board state changed and the view should redraw.
type boardChangedMsg struct{}

// noticeMsg carries one board notice.
type noticeMsg board.Notice

// Events forwards board notices and change signals into the bubbletea program.
// It implements board.Notifier.
//
// Notices queue without bound and are delivered in order; change signals coalesce
// into one pending redraw. Neither side ever blocks the board.
type Events struct {
	mu      sync.Mutex
	notices []board.Notice
	dirty   bool
	closed  bool

	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewEvents constructs an event bridge.
func NewEvents() *Events {
	return &Events{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Notify implements board.Notifier. Notices are never dropped before Close.
func (e *Events) Notify(n board.Notice) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.notices = append(e.notices, n)
	e.mu.Unlock()
	e.poke()
}

// changed queues a redraw.
func (e *Events) changed() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.dirty = true
	e.mu.Unlock()
	e.poke()
}

func (e *Events) poke() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// Close releases any pending wait and discards later events. It is safe to call
// more than once.
func (e *Events) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.notices = nil
		e.mu.Unlock()
		close(e.done)
	})
}

// wait blocks for the next event. After Close it returns nil.
func (e *Events) wait() tea.Msg {
	for {
		if msg, ok := e.next(); ok {
			return msg
		}
		select {
		case <-e.signal:
		case <-e.done:
			return nil
		}
	}
}

// next pops one pending event without blocking. Notices come before redraws.
func (e *Events) next() (tea.Msg, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false
	}
	if len(e.notices) > 0 {
		n := e.notices[0]
		e.notices[0] = board.Notice{}
		e.notices = e.notices[1:]
		return noticeMsg(n), true
	}
	if e.dirty {
		e.dirty = false
		return boardChangedMsg{}, true
	}
	return nil, false
}
