package httpkit

import (
	"lrsgate/internal/platform/net/middleware"
)

// Protected groups routes behind basic auth plus a required scope
func Protected(r Router, store middleware.CredentialStore, scope string, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(BasicAuth(store), RequireScope(scope))
		fn(gr)
	})
}
