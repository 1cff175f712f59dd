// Package httpapi provides the REST HTTP adapter for the card API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/evanschultz/kanview/internal/adapters/server/common"
	"github.com/evanschultz/kanview/internal/app"
	"github.com/evanschultz/kanview/internal/domain"
	"github.com/evanschultz/kanview/internal/wire"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	cards  common.CardService
	router *mux.Router
	logger *log.Logger
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs the REST adapter over cards.
func NewHandler(cards common.CardService, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{cards: cards, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/kanban/cards/", h.handleListCards).Methods(http.MethodGet)
	r.HandleFunc("/kanban/cards/", h.handleCreateCard).Methods(http.MethodPost)
	r.HandleFunc("/kanban/cards/{id:[0-9]+}/", h.handleGetCard).Methods(http.MethodGet)
	r.HandleFunc("/kanban/cards/{id:[0-9]+}/", h.handleReplaceCard).Methods(http.MethodPut)
	r.HandleFunc("/kanban/cards/{id:[0-9]+}/", h.handlePatchCard).Methods(http.MethodPatch)
	r.HandleFunc("/kanban/cards/{id:[0-9]+}/", h.handleArchiveCard).Methods(http.MethodDelete)
	r.HandleFunc("/kanban/cards/{id:[0-9]+}/restore/", h.handleRestoreCard).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{
			Code:    "method_not_allowed",
			Message: "method not allowed",
		})
	})
	h.router = r
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// handleListCards serves GET `/kanban/cards/`.
func (h *Handler) handleListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := app.ListQuery{
		Status:          strings.TrimSpace(q.Get("status")),
		Priority:        strings.TrimSpace(q.Get("priority")),
		Assignee:        strings.TrimSpace(q.Get("assignee")),
		JobNumber:       strings.TrimSpace(q.Get("job_number")),
		ServiceQuote:    strings.TrimSpace(q.Get("service_quote")),
		Company:         strings.TrimSpace(q.Get("company")),
		Tags:            app.ParseTags(q.Get("tags")),
		Search:          q.Get("search"),
		IncludeInactive: app.ParseBool(q.Get("include_inactive")),
		Ordering:        q.Get("ordering"),
	}
	cards, err := h.cards.ListCards(r.Context(), query)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RecordsFromCards(cards))
}

// handleCreateCard serves POST `/kanban/cards/`.
func (h *Handler) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	in, err := decodePayload(w, r)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	card, err := h.cards.CreateCard(r.Context(), in)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.RecordFromCard(card))
}

// handleGetCard serves GET `/kanban/cards/{id}/`.
func (h *Handler) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	card, err := h.cards.GetCard(r.Context(), id)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RecordFromCard(card))
}

// handleReplaceCard serves PUT `/kanban/cards/{id}/`.
func (h *Handler) handleReplaceCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	in, err := decodePayload(w, r)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	card, err := h.cards.ReplaceCard(r.Context(), id, in)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RecordFromCard(card))
}

// handlePatchCard serves PATCH `/kanban/cards/{id}/`. An empty patch returns the card unchanged.
func (h *Handler) handlePatchCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	var patch wire.CardPatch
	if err := decodeJSONBody(r.Context(), w, r, &patch); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	var card domain.Card
	if patch.Empty() {
		card, err = h.cards.GetCard(r.Context(), id)
	} else {
		card, err = h.cards.PatchCard(r.Context(), id, patch)
	}
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RecordFromCard(card))
}

// handleArchiveCard serves DELETE `/kanban/cards/{id}/`.
func (h *Handler) handleArchiveCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	if _, err := h.cards.ArchiveCard(r.Context(), id); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestoreCard serves POST `/kanban/cards/{id}/restore/`.
func (h *Handler) handleRestoreCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	card, err := h.cards.RestoreCard(r.Context(), id)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RecordFromCard(card))
}

// cardID reads the `{id}` route variable.
func cardID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: card id %q", common.ErrInvalidRequest, raw)
	}
	return id, nil
}

// decodePayload decodes a full write payload into domain input.
func decodePayload(w http.ResponseWriter, r *http.Request) (domain.CardInput, error) {
	var payload wire.CardPayload
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		return domain.CardInput{}, err
	}
	return payload.Input()
}

// writeErrorFrom maps service errors into structured HTTP responses.
func (h *Handler) writeErrorFrom(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
		return
	}
	class := common.Classify(err)
	apiErr := APIError{
		Code:    class.Code,
		Message: err.Error(),
		Hint:    class.Hint,
	}
	if class.Field != "" {
		apiErr.Context = map[string]any{"field": class.Field}
	}
	if class.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "err", err)
	}
	writeJSONError(w, class.Status, apiErr)
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
