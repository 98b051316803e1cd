package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perr "lrsgate/internal/platform/errors"
	pnet "lrsgate/internal/platform/net"
)

// Credential is one basic-auth principal and its granted scopes
// Authority is the agent mbox stamped on statements this user writes
type Credential struct {
	Username  string
	Password  string
	Scopes    []string
	Authority string
}

// CredentialStore is the seam the auth middleware resolves users through
type CredentialStore interface {
	Lookup(username string) (Credential, bool)
}

// StaticCredentials is a CredentialStore over an in-memory table
type StaticCredentials map[string]Credential

// Lookup implements CredentialStore
func (s StaticCredentials) Lookup(username string) (Credential, bool) {
	c, ok := s[username]
	return c, ok
}

// ParseCredentials builds a credential table from config entries shaped
// "user:password:scopeA;scopeB[:authority-mbox]", one entry per element
func ParseCredentials(entries []string) StaticCredentials {
	out := make(StaticCredentials, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, ":", 4)
		if len(parts) < 3 {
			continue
		}
		c := Credential{
			Username: strings.TrimSpace(parts[0]),
			Password: parts[1],
		}
		for _, s := range strings.Split(parts[2], ";") {
			if s = strings.TrimSpace(s); s != "" {
				c.Scopes = append(c.Scopes, s)
			}
		}
		if len(parts) == 4 {
			c.Authority = strings.TrimSpace(parts[3])
		}
		if c.Username != "" {
			out[c.Username] = c
		}
	}
	return out
}

// BasicAuth authenticates requests against the store and attaches the
// username and granted scopes to the request context
// Failures are written through write so transports keep one envelope shape
func BasicAuth(store CredentialStore, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok {
				deny(w, r, write, perr.Unauthorizedf("missing credentials"))
				return
			}
			cred, found := store.Lookup(user)
			// constant-time compare even for unknown users
			want := cred.Password
			if !found {
				want = ""
			}
			if subtle.ConstantTimeCompare([]byte(pass), []byte(want)) != 1 || !found {
				deny(w, r, write, perr.Unauthorizedf("invalid credentials"))
				return
			}
			ctx := pnet.WithUser(r.Context(), cred.Username)
			ctx = pnet.WithScopes(ctx, cred.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope enforces that the authenticated user holds a scope
// satisfying required, honoring the hierarchy (all > all/read > */read)
func RequireScope(required string, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ScopeSatisfied(required, pnet.Scopes(r.Context())) {
				deny(w, r, write, perr.Forbiddenf("missing scope %s", required))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ScopeSatisfied reports whether any granted scope covers required
func ScopeSatisfied(required string, granted []string) bool {
	for _, g := range granted {
		if g == required || g == "all" {
			return true
		}
		if g == "all/read" && strings.HasSuffix(required, "/read") {
			return true
		}
	}
	return false
}

func deny(w http.ResponseWriter, r *http.Request, write func(http.ResponseWriter, int, any), err error) {
	if perr.CodeOf(err) == perr.ErrorCodeUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="statements"`)
	}
	status, body := pnet.Error(err, pnet.RequestID(r.Context()))
	write(w, status, body)
}
