// Package restclient implements the board's CardAPI over the /kanban/cards/ REST contract.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/kanview/internal/domain"
	"github.com/evanschultz/kanview/internal/wire"
)

const (
	cardsPath       = "kanban/cards/"
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 4 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client calls the card endpoints.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *log.Logger
}

// APIError reports a non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
	Hint       string
}

// Error implements error.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		base:   base,
		token:  strings.TrimSpace(opts.Token),
		http:   httpClient,
		logger: logger,
	}, nil
}

// ListCards fetches every active card.
func (c *Client) ListCards(ctx context.Context) ([]domain.Card, error) {
	return c.SearchCards(ctx, nil)
}

// SearchCards fetches cards with server-side list filters such as status, tags,
// search, include_inactive, or ordering.
func (c *Client) SearchCards(ctx context.Context, query url.Values) ([]domain.Card, error) {
	var records []wire.CardRecord
	if err := c.do(ctx, http.MethodGet, cardsPath, query, nil, &records); err != nil {
		return nil, err
	}
	cards := make([]domain.Card, 0, len(records))
	for _, rec := range records {
		card, err := rec.Card()
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// GetCard fetches one card.
func (c *Client) GetCard(ctx context.Context, id int64) (domain.Card, error) {
	return c.cardRequest(ctx, http.MethodGet, cardPath(id), nil)
}

// CreateCard posts a new card.
func (c *Client) CreateCard(ctx context.Context, in domain.CardInput) (domain.Card, error) {
	return c.cardRequest(ctx, http.MethodPost, cardsPath, wire.PayloadFromInput(in))
}

// UpdateCard replaces a card.
func (c *Client) UpdateCard(ctx context.Context, id int64, in domain.CardInput) (domain.Card, error) {
	return c.cardRequest(ctx, http.MethodPut, cardPath(id), wire.PayloadFromInput(in))
}

// PatchCard applies a partial update.
func (c *Client) PatchCard(ctx context.Context, id int64, patch wire.CardPatch) (domain.Card, error) {
	return c.cardRequest(ctx, http.MethodPatch, cardPath(id), patch)
}

// PatchCardStatus moves a card to status.
func (c *Client) PatchCardStatus(ctx context.Context, id int64, status string) (domain.Card, error) {
	return c.PatchCard(ctx, id, wire.StatusPatch(status))
}

// ArchiveCard deletes a card, which the server treats as an archive.
func (c *Client) ArchiveCard(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, cardPath(id), nil, nil, nil)
}

// RestoreCard reactivates an archived card.
func (c *Client) RestoreCard(ctx context.Context, id int64) (domain.Card, error) {
	return c.cardRequest(ctx, http.MethodPost, cardPath(id)+"restore/", nil)
}

func (c *Client) cardRequest(ctx context.Context, method, path string, body any) (domain.Card, error) {
	var rec wire.CardRecord
	if err := c.do(ctx, method, path, nil, body, &rec); err != nil {
		return domain.Card{}, err
	}
	return rec.Card()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(method, path string, status int, data []byte) error {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Hint    string `json:"hint"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Hint = envelope.Error.Hint
		if apiErr.Message == "" {
			apiErr.Message = envelope.Detail
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func cardPath(id int64) string {
	return cardsPath + strconv.FormatInt(id, 10) + "/"
}
