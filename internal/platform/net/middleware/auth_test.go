package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pnet "lrsgate/internal/platform/net"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestParseCredentials(t *testing.T) {
	table := ParseCredentials([]string{
		"alice:s3cret:statements/read;statements/write:mailto:alice@example.com",
		"bob:hunter2:all/read",
		"malformed-entry",
		"",
	})
	if len(table) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(table))
	}
	a, ok := table.Lookup("alice")
	if !ok || len(a.Scopes) != 2 || a.Authority != "mailto:alice@example.com" {
		t.Fatalf("alice = %+v ok=%v", a, ok)
	}
	b, _ := table.Lookup("bob")
	if b.Password != "hunter2" || len(b.Scopes) != 1 || b.Scopes[0] != "all/read" {
		t.Fatalf("bob = %+v", b)
	}
}

func TestBasicAuth(t *testing.T) {
	store := StaticCredentials{
		"alice": {Username: "alice", Password: "s3cret", Scopes: []string{"statements/read"}},
	}
	var gotUser string
	var gotScopes []string
	h := BasicAuth(store, writeJSON)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = pnet.UserID(r.Context())
		gotScopes = pnet.Scopes(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// no credentials
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/xAPI/statements", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no creds status = %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}

	// wrong password
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/xAPI/statements", nil)
	req.SetBasicAuth("alice", "wrong")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}

	// unknown user
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/xAPI/statements", nil)
	req.SetBasicAuth("mallory", "s3cret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d", rec.Code)
	}

	// valid
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/xAPI/statements", nil)
	req.SetBasicAuth("alice", "s3cret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid creds status = %d", rec.Code)
	}
	if gotUser != "alice" || len(gotScopes) != 1 {
		t.Fatalf("ctx user/scopes = %q/%v", gotUser, gotScopes)
	}
}

func TestScopeSatisfied(t *testing.T) {
	cases := []struct {
		required string
		granted  []string
		want     bool
	}{
		{"statements/read", []string{"statements/read"}, true},
		{"statements/read", []string{"all"}, true},
		{"statements/read", []string{"all/read"}, true},
		{"statements/write", []string{"all/read"}, false},
		{"statements/write", []string{"all"}, true},
		{"statements/write", []string{"statements/read"}, false},
		{"statements/read", nil, false},
	}
	for _, c := range cases {
		if got := ScopeSatisfied(c.required, c.granted); got != c.want {
			t.Fatalf("ScopeSatisfied(%q, %v) = %v, want %v", c.required, c.granted, got, c.want)
		}
	}
}

func TestRequireScope(t *testing.T) {
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	h := RequireScope("statements/write", writeJSON)(http.HandlerFunc(ok))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/xAPI/statements", nil)
	req = req.WithContext(pnet.WithScopes(req.Context(), []string{"statements/read"}))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("read-only scope on write = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/xAPI/statements", nil)
	req = req.WithContext(pnet.WithScopes(req.Context(), []string{"all"}))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("all scope on write = %d", rec.Code)
	}
}
