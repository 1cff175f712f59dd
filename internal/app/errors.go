package app

import "errors"

// ErrNotFound and related errors describe lookup and query failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidOrdering = errors.New("invalid ordering")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
