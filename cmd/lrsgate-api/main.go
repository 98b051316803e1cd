// @title         LRS Gateway API
// @version       0.1.0
// @description   xAPI statement ingestion and query over pluggable storage backends

package main

import (
	"context"

	"lrsgate/internal/lrs/backends"
	"lrsgate/internal/platform/config"
	"lrsgate/internal/platform/logger"
	phttp "lrsgate/internal/platform/net/http"

	"lrsgate/internal/services/api"
)

func main() {
	// root config; each concern reads its own prefix view
	root := config.New()
	srvCfg := root.Prefix("RUNSERVER_")

	// bring up logging early
	l := logger.Get()

	// open the configured storage backend (LRS_BACKEND selects the kind)
	backend, err := backends.Open(root)
	if err != nil {
		l.Panic().Err(err).Msg("backend open failed")
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close backend")
		}
	}()

	// http server (reads RUNSERVER_API_PORT)
	srv := phttp.NewServer(srvCfg)

	// mount the gateway surface
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Backend:        backend,
			Logger:         l,
			EnableSwagger:  srvCfg.MayBool("SWAGGER", true),
			EnableProfiler: srvCfg.MayBool("PROFILER", false),
		},
	)

	// run
	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
