package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evanschultz/kanview/internal/app"
)

// actorEcho writes the request actor so tests can observe the middleware.
var actorEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(app.ActorFromContext(r.Context())))
})

func TestRequireBearer(t *testing.T) {
	secret := []byte("s3cret")
	now := time.Now()
	valid, err := IssueToken(secret, "dana", time.Hour, now)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	expired, err := IssueToken(secret, "dana", time.Minute, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() expired error = %v", err)
	}
	foreign, err := IssueToken([]byte("other"), "mallory", time.Hour, now)
	if err != nil {
		t.Fatalf("IssueToken() foreign error = %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
		actor  string
	}{
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK, actor: "dana"},
		{name: "lowercase scheme", header: "bearer " + valid, status: http.StatusOK, actor: "dana"},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, status: http.StatusUnauthorized},
	}
	h := RequireBearer(secret, actorEcho)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/kanban/cards/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.actor != "" && rec.Body.String() != tc.actor {
				t.Fatalf("actor = %q, want %q", rec.Body.String(), tc.actor)
			}
		})
	}
}

func TestRequireBearerDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireBearer(nil, actorEcho).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != app.AnonymousActor {
		t.Fatalf("got %d %q, want anonymous pass-through", rec.Code, rec.Body.String())
	}
}

func TestIssueTokenValidation(t *testing.T) {
	if _, err := IssueToken(nil, "dana", 0, time.Now()); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := IssueToken([]byte("x"), "  ", 0, time.Now()); err == nil {
		t.Fatal("expected error for blank subject")
	}
}
