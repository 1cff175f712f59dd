package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/kanview/internal/adapters/server/httpapi"
	"github.com/evanschultz/kanview/internal/adapters/storage/sqlite"
	"github.com/evanschultz/kanview/internal/app"
)

// newTestDeps builds server dependencies over an in-memory repository.
func newTestDeps(t *testing.T) Dependencies {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return Dependencies{
		Cards: app.NewService(repo, nil, app.ServiceConfig{}),
		Ready: repo.Ping,
	}
}

func TestNewHandlerRoutes(t *testing.T) {
	handler, cfg, err := NewHandler(Config{JWTSecret: "s3cret", CORSOrigins: []string{" http://localhost:3000 ", ""}}, newTestDeps(t))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.HTTPBind != defaultBindAddress {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Fatalf("CORSOrigins = %#v, want one trimmed origin", cfg.CORSOrigins)
	}
	token, err := httpapi.IssueToken([]byte("s3cret"), "dana", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		auth   bool
		status int
	}{
		{name: "healthz", method: http.MethodGet, path: "/healthz", status: http.StatusOK},
		{name: "readyz", method: http.MethodGet, path: "/readyz", status: http.StatusOK},
		{name: "api without token", method: http.MethodGet, path: "/api/v1/kanban/cards/", status: http.StatusUnauthorized},
		{name: "api list", method: http.MethodGet, path: "/api/v1/kanban/cards/", auth: true, status: http.StatusOK},
		{name: "api create", method: http.MethodPost, path: "/api/v1/kanban/cards/", body: `{"title":"a","status":"backlog"}`, auth: true, status: http.StatusCreated},
		{name: "mcp without token", method: http.MethodPost, path: "/mcp", body: `{}`, status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			if tc.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
			if rec.Header().Get(requestIDHeader) == "" {
				t.Fatal("expected a request id header")
			}
		})
	}
}

func TestNewHandlerKeepsCallerRequestID(t *testing.T) {
	handler, _, err := NewHandler(Config{}, newTestDeps(t))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q, want abc-123", got)
	}
}

func TestNewHandlerCORSPreflight(t *testing.T) {
	handler, _, err := NewHandler(Config{CORSOrigins: []string{"http://localhost:3000"}}, newTestDeps(t))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/kanban/cards/1/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestReadinessReportsStoreFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.Ready = func(context.Context) error { return errors.New("db down") }
	handler, _, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "db down") {
		t.Fatalf("got %d %s, want 503 with cause", rec.Code, rec.Body.String())
	}
}

func TestNormalizeConfigRejectsEndpointCollision(t *testing.T) {
	if _, err := normalizeConfig(Config{APIEndpoint: "/x/", MCPEndpoint: "x"}); err == nil {
		t.Fatal("expected collision error")
	}
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected missing card service error")
	}
}
