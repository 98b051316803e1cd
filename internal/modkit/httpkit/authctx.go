package httpkit

import (
	"net/http"

	perrs "lrsgate/internal/platform/errors"
	pnet "lrsgate/internal/platform/net"
)

// User returns the authenticated username from the request context
func User(r *http.Request) (string, error) {
	uid := pnet.UserID(r.Context())
	if uid == "" {
		return "", perrs.Unauthorizedf("missing credentials")
	}
	return uid, nil
}

// MustUser returns the authenticated username or panics
// only use on routes behind the auth middleware
func MustUser(r *http.Request) string {
	uid, err := User(r)
	if err != nil {
		panic(err)
	}
	return uid
}

// Scopes returns the granted scopes from the request context
func Scopes(r *http.Request) []string {
	return pnet.Scopes(r.Context())
}
