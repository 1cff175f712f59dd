package board

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrBusy           = errors.New("operation already in progress")
	ErrReordering     = errors.New("columns are being reordered")
	ErrUnknownCard    = errors.New("unknown card")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrFallbackColumn = errors.New("the first column cannot be deleted")
	ErrNotDragging    = errors.New("no card is being dragged")
)

// FieldErrors maps form fields to inline validation messages.
type FieldErrors map[string]string

// Error implements error.
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsFieldErrors extracts field errors from err.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
