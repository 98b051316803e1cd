// Package module wires the statements endpoints into the API using modkit
package module

import (
	"net/http"

	modkit "lrsgate/internal/modkit"
	"lrsgate/internal/modkit/httpkit"
	"lrsgate/internal/platform/net/middleware"
	str "lrsgate/internal/platform/strings"
	stmthttp "lrsgate/internal/services/statements/http"
	stmtsvc "lrsgate/internal/services/statements/service"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc stmtsvc.Service
}

// New constructs a statements module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("statements"),
		modkit.WithPrefix("/xAPI"),
	}, opts...)...)

	svc := stmtsvc.New(deps.Backend)
	creds := middleware.ParseCredentials(deps.Cfg.Prefix("AUTH_").MayCSV("CREDENTIALS", nil))

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = adaptStatementsPort{svc: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		stmthttp.Register(r, m.svc, creds)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }
