package domain

import (
	"slices"
	"strings"
)

// Color names one entry of the fixed column palette.
type Color string

const (
	ColorGray   Color = "gray"
	ColorRed    Color = "red"
	ColorPink   Color = "pink"
	ColorGrape  Color = "grape"
	ColorViolet Color = "violet"
	ColorIndigo Color = "indigo"
	ColorBlue   Color = "blue"
	ColorCyan   Color = "cyan"
	ColorTeal   Color = "teal"
	ColorGreen  Color = "green"
	ColorLime   Color = "lime"
	ColorYellow Color = "yellow"
	ColorOrange Color = "orange"
)

var palette = []Color{
	ColorGray, ColorRed, ColorPink, ColorGrape, ColorViolet, ColorIndigo, ColorBlue,
	ColorCyan, ColorTeal, ColorGreen, ColorLime, ColorYellow, ColorOrange,
}

// paletteHex maps palette colors to terminal hex values.
var paletteHex = map[Color]string{
	ColorGray:   "#868e96",
	ColorRed:    "#fa5252",
	ColorPink:   "#e64980",
	ColorGrape:  "#be4bdb",
	ColorViolet: "#7950f2",
	ColorIndigo: "#4c6ef5",
	ColorBlue:   "#228be6",
	ColorCyan:   "#15aabf",
	ColorTeal:   "#12b886",
	ColorGreen:  "#40c057",
	ColorLime:   "#82c91e",
	ColorYellow: "#fab005",
	ColorOrange: "#fd7e14",
}

// Palette returns the column colors in display order.
func Palette() []Color {
	return slices.Clone(palette)
}

// Valid reports whether c belongs to the palette.
func (c Color) Valid() bool {
	return slices.Contains(palette, c)
}

// Hex returns the terminal color for c, falling back to gray.
func (c Color) Hex() string {
	if hex, ok := paletteHex[c]; ok {
		return hex
	}
	return paletteHex[ColorGray]
}

// Column is one board lane. ID doubles as the card status value.
type Column struct {
	ID    string
	Label string
	Color Color
}

// NewColumn builds a column whose id is derived from label. The caller supplies the
// fallback id used when the label has no slug-able characters.
func NewColumn(label string, color Color, fallbackID func() string) (Column, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Column{}, ErrInvalidLabel
	}
	if color == "" {
		color = ColorGray
	}
	if !color.Valid() {
		return Column{}, ErrInvalidColor
	}
	id := Slugify(label)
	if id == "" && fallbackID != nil {
		id = fallbackID()
	}
	if id == "" {
		return Column{}, ErrInvalidID
	}
	return Column{ID: id, Label: label, Color: color}, nil
}

// DefaultColumns returns the seed board lanes.
func DefaultColumns() []Column {
	return []Column{
		{ID: StatusBacklog, Label: "Backlog", Color: ColorGray},
		{ID: StatusInProgress, Label: "In Progress", Color: ColorBlue},
		{ID: StatusReview, Label: "Review", Color: ColorGrape},
		{ID: StatusDone, Label: "Done", Color: ColorGreen},
	}
}

// Slugify lowercases s, collapses runs of non-alphanumerics into one dash, and trims
// dashes from both ends.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
			prevDash = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
