// Package api mounts the gateway HTTP surface
package api

import (
	"lrsgate/internal/lrs"
	"lrsgate/internal/platform/config"
	"lrsgate/internal/platform/logger"
	phttp "lrsgate/internal/platform/net/http"

	"lrsgate/internal/modkit"
	"lrsgate/internal/modkit/httpkit"
	"lrsgate/internal/modkit/module"
	"lrsgate/internal/modkit/swaggerkit"

	healthmod "lrsgate/internal/services/health/module"
	stmtmod "lrsgate/internal/services/statements/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Backend        lrs.Backend
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router.
// The xAPI resource paths and the probe endpoints live at the server root,
// so the common middleware stack goes on the root mux before any routes
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Cfg:     opt.Config,
		Backend: opt.Backend,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	mods := []module.Module{
		healthmod.New(deps),
		stmtmod.New(deps),
	}

	r.Use(httpkit.CommonStack()...)

	// Swagger + profiler
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	for _, m := range mods {
		// register each module's ports under its own name (for cross-module lookups)
		module.Register(m.Name(), m.Ports())

		// mount module routes
		m.MountRoutes(r)
	}
}
