package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	phttp "lrsgate/internal/platform/net/http"
	"lrsgate/internal/platform/net/middleware"
)

// CommonStack returns a baseline per module middleware slice
// compose with the auth middleware as needed in main
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		middleware.RequestID(),
		middleware.RealIP(),

		// safety
		middleware.RecoverJSON,

		// cache / freshness
		middleware.NoCache(),

		// observability
		middleware.Logger(),

		// cross-origin (tweak config in main if needed)
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.RedirectSlashes(),
		middleware.StripSlashes(),
		middleware.Timeout(30 * time.Second),
	}
}

// BasicAuth wires the basic-auth middleware to the platform JSON writer
func BasicAuth(store middleware.CredentialStore) func(http.Handler) http.Handler {
	return middleware.BasicAuth(store, phttp.JSON)
}

// RequireScope wires the scope middleware to the platform JSON writer
func RequireScope(scope string) func(http.Handler) http.Handler {
	return middleware.RequireScope(scope, phttp.JSON)
}
