// Package module wires the health probes into the API using a tiny module
package module

import (
	"net/http"

	modkit "lrsgate/internal/modkit"
	"lrsgate/internal/modkit/httpkit"
	str "lrsgate/internal/platform/strings"

	healthhttp "lrsgate/internal/services/health/http"
)

// Module implements the modkit.Module interface
type Module struct {
	deps modkit.Deps
	name string
	mws  []func(http.Handler) http.Handler

	register func(httpkit.Router)
}

// New constructs a health module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("health"),
	}, opts...)...)

	m := &Module{
		deps: deps,
		name: b.Name,
		mws:  b.Mw,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		healthhttp.Register(r, healthhttp.Deps{Backend: deps.Backend})
		if external != nil {
			external(r)
		}
	}

	return m
}

// MountRoutes implements the modkit.Module interface.
// Probe paths live at the server root, so no prefix is applied
func (m *Module) MountRoutes(r httpkit.Router) {
	if m.register != nil {
		m.register(r)
	}
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.name, "health") }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
