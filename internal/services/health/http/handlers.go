// Package http provides liveness and readiness probes
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"lrsgate/internal/core/version"
	"lrsgate/internal/modkit/httpkit"
	perr "lrsgate/internal/platform/errors"
)

// pingTimeout bounds the backend round trip on the readiness probe
const pingTimeout = 2 * time.Second

// Pinger is satisfied by storage backends that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	Backend Pinger
}

type handlers struct{ deps Deps }

// Register mounts the probe routes at the router root
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/__lbheartbeat__", h.alive)
	httpkit.Get(r, "/__heartbeat__", h.ready)
	httpkit.Get(r, "/__version__", h.version)
}

// Status is the probe payload, written bare so probes stay trivial to parse
type Status struct {
	Status string `json:"status" example:"ok"`
}

// swagger:route GET /__lbheartbeat__ Health lbHeartbeat
// @Summary Liveness probe, answers without touching the backend
// @Tags Health
// @Produce json
// @Success 200 {object} Status "ok"
// @Router /__lbheartbeat__ [get]
func (h *handlers) alive(_ *http.Request) (any, error) {
	return httpkit.BareJSON(http.StatusOK, Status{Status: "ok"}), nil
}

// swagger:route GET /__heartbeat__ Health heartbeat
// @Summary Readiness probe, pings the configured backend
// @Tags Health
// @Produce json
// @Success 200 {object} Status "ok"
// @Router /__heartbeat__ [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	if h.deps.Backend == nil {
		return nil, perr.Unavailablef("no storage backend configured")
	}

	ctx, cancel := stdctx.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.deps.Backend.Ping(ctx); err != nil {
		return nil, err
	}
	return httpkit.BareJSON(http.StatusOK, Status{Status: "ok"}), nil
}

// swagger:route GET /__version__ Health versionInfo
// @Summary Build and version info
// @Tags Health
// @Produce json
// @Success 200 {object} version.BuildInfo "ok"
// @Router /__version__ [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return httpkit.BareJSON(http.StatusOK, version.Info()), nil
}
