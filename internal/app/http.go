package app

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"reportchain/pkg/api"
	"reportchain/pkg/api/router"
	"reportchain/pkg/logger"
)

// handler builds the routed and authenticated request handler.
func (a *App) handler(ctx context.Context) fasthttp.RequestHandler {
	h := api.NewHandlers(a.store, a.reader, api.Options{
		Watcher:     a.watcher,
		Gatherer:    a.registry,
		Ready:       a.ready,
		BaseContext: ctx,
	})
	r := router.New()
	h.RegisterRoutes(r)
	return a.authMW.Wrap(r.Handler)
}

// startHTTP builds and starts the fasthttp server, returning a channel that
// delivers the listen error.
func (a *App) startHTTP(ctx context.Context) <-chan error {
	const (
		readBufferSize       = 64 * 1024
		readTimeout          = 10 * time.Second
		writeTimeout         = 10 * time.Second
		idleTimeout          = 30 * time.Second
		maxKeepaliveDuration = 2 * time.Minute
	)
	a.srvFast = &fasthttp.Server{
		Handler:              a.handler(ctx),
		Name:                 "reportchain",
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(a.eff.Config.Server.MaxRequestBody.Int64()),
		ReduceMemoryUsage:    true,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}

	addr := a.eff.Config.Addr()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", addr)
		errCh <- a.srvFast.ListenAndServe(addr)
	}()
	return errCh
}
