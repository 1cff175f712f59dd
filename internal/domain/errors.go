package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidLabel    = errors.New("invalid label")
	ErrInvalidTitle    = errors.New("invalid title")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidDueDate  = errors.New("invalid due date")
	ErrInvalidColor    = errors.New("invalid color")
	ErrFieldTooLong    = errors.New("field too long")
)
