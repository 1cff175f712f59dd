// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/evanschultz/kanview/internal/app"
	"github.com/evanschultz/kanview/internal/domain"
)

// ErrInvalidRequest reports malformed transport input that never reached the service.
var ErrInvalidRequest = errors.New("invalid request")

// CardService is the card use-case surface shared by the REST and MCP adapters.
type CardService interface {
	ListCards(context.Context, app.ListQuery) ([]domain.Card, error)
	GetCard(context.Context, int64) (domain.Card, error)
	CreateCard(context.Context, domain.CardInput) (domain.Card, error)
	ReplaceCard(context.Context, int64, domain.CardInput) (domain.Card, error)
	PatchCard(context.Context, int64, app.CardPatcher) (domain.Card, error)
	MoveCard(context.Context, int64, string) (domain.Card, error)
	ArchiveCard(context.Context, int64) (domain.Card, error)
	RestoreCard(context.Context, int64) (domain.Card, error)
}

// ErrorClass describes how one failure is surfaced to clients.
type ErrorClass struct {
	Status int
	Code   string
	Field  string
	Hint   string
}

// Classify maps service and domain errors onto a transport-neutral class.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return ErrorClass{Status: http.StatusNotFound, Code: "not_found"}
	case errors.Is(err, app.ErrInvalidOrdering):
		return ErrorClass{
			Status: http.StatusBadRequest,
			Code:   "invalid_ordering",
			Hint:   "Use created_at, updated_at, priority or due_date, optionally prefixed with '-'.",
		}
	case errors.Is(err, domain.ErrInvalidTitle):
		return fieldClass("title")
	case errors.Is(err, domain.ErrInvalidStatus):
		return fieldClass("status")
	case errors.Is(err, domain.ErrInvalidPriority):
		return fieldClass("priority")
	case errors.Is(err, domain.ErrInvalidDueDate):
		return fieldClass("due_date")
	case errors.Is(err, domain.ErrFieldTooLong),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, app.ErrInvalidSnapshot),
		errors.Is(err, ErrInvalidRequest):
		return ErrorClass{Status: http.StatusBadRequest, Code: "invalid_request"}
	default:
		return ErrorClass{Status: http.StatusInternalServerError, Code: "internal_error"}
	}
}

func fieldClass(field string) ErrorClass {
	return ErrorClass{Status: http.StatusBadRequest, Code: "invalid_field", Field: field}
}
