package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	newCard       key.Binding
	cardInfo      key.Binding
	editCard      key.Binding
	deleteCard    key.Binding
	moveCardLeft  key.Binding
	moveCardRight key.Binding
	grabCard      key.Binding
	yankCard      key.Binding
	search        key.Binding
	filters       key.Binding
	clearFilters  key.Binding
	newColumn     key.Binding
	deleteColumn  key.Binding
	reorder       key.Binding
}

// KeyConfig holds user overrides for the rebindable actions. Blank fields keep defaults.
type KeyConfig struct {
	NewCard   string
	EditCard  string
	Search    string
	Grab      string
	Reorder   string
	NewColumn string
	YankCard  string
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card down")),
		newCard:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new card")),
		cardInfo:      key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "card info")),
		editCard:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit card")),
		deleteCard:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete card")),
		moveCardLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move card left")),
		moveCardRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move card right")),
		grabCard:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "grab card")),
		yankCard:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy card")),
		search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		filters:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filters")),
		clearFilters:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
		newColumn:     key.NewBinding(key.WithKeys("C", "shift+c"), key.WithHelp("C", "new column")),
		deleteColumn:  key.NewBinding(key.WithKeys("X", "shift+x"), key.WithHelp("X", "delete column")),
		reorder:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "reorder columns")),
	}
}

// applyConfig rebinds the configurable actions.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.newCard, cfg.NewCard, "n", "new card")
	configureBinding(&k.editCard, cfg.EditCard, "e", "edit card")
	configureBinding(&k.search, cfg.Search, "/", "search")
	configureBinding(&k.grabCard, cfg.Grab, "m", "grab card")
	configureBinding(&k.reorder, cfg.Reorder, "o", "reorder columns")
	configureBinding(&k.newColumn, cfg.NewColumn, "C", "new column")
	configureBinding(&k.yankCard, cfg.YankCard, "y", "copy card")
}

// configureBinding replaces b's keys with raw, falling back to fallback when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns a configured key into matcher keys and a help label.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") || raw == " " {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + strings.ToLower(raw)}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.newCard, k.cardInfo, k.editCard, k.grabCard, k.search, k.filters, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.newCard, k.cardInfo, k.editCard, k.deleteCard, k.yankCard, k.toggleHelp, k.reload, k.quit},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.moveCardLeft, k.moveCardRight, k.grabCard},
		{k.search, k.filters, k.clearFilters, k.newColumn, k.deleteColumn, k.reorder},
	}
}
