package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"

	"reportchain/internal/gapscan"
	"reportchain/pkg/api/auth"
	"reportchain/pkg/chain"
	"reportchain/pkg/config"
	"reportchain/pkg/logger"
	"reportchain/pkg/store"
	"reportchain/pkg/telemetry"
)

// App groups server state and components.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	store    store.ReadWriter
	pebble   *store.Pebble
	registry *prometheus.Registry
	reader   *chain.Reader
	watcher  *chain.LastVisibleWatcher
	scanner  *gapscan.Scanner
	authMW   *auth.Middleware

	stopScan func()
	srvFast  *fasthttp.Server
}

// New opens the store and builds every component. Nothing is started until
// Run.
func New(eff config.EffectiveConfigResult, version string) (*App, error) {
	if eff.Config == nil {
		return nil, fmt.Errorf("effective config is nil")
	}
	cfg := eff.Config
	a := &App{eff: eff, version: version, registry: prometheus.NewRegistry()}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := telemetry.Init(a.registry, cfg.Telemetry.SlowThreshold.Duration()); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	switch cfg.Store.Mode {
	case config.StoreModeMemory:
		a.store = store.NewMemory()
	default:
		p, err := store.OpenPebble(cfg.Store.DBPath, store.PebbleOptions{
			DisableWAL: cfg.Store.DisableWAL,
			CacheSize:  cfg.Store.CacheSize.Int64(),
		})
		if err != nil {
			telemetry.Close()
			return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Store.DBPath, err)
		}
		a.pebble = p
		a.store = p
	}

	policy := cfg.VisibilityPolicy()
	a.reader = chain.NewReader(a.store, policy)
	a.watcher = chain.NewLastVisibleWatcher(a.store, policy)

	if cfg.GapScan.Enabled {
		sc, err := gapscan.New(a.store, cfg.GapScan, a.registry)
		if err != nil {
			_ = a.closeStore()
			telemetry.Close()
			return nil, err
		}
		a.scanner = sc
	}

	a.authMW = auth.NewMiddleware(auth.Config{
		APIKeys: cfg.Server.APIKeys,
		RPS:     cfg.Server.RateLimit.RPS,
		Burst:   cfg.Server.RateLimit.Burst,
	})
	return a, nil
}

// Run starts the gap scanner and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.printSummary()

	if a.scanner != nil {
		a.stopScan = a.scanner.Start(ctx)
	} else {
		logger.Info("gap_scan_disabled")
	}

	errCh := a.startHTTP(ctx)
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the server and background work, then closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutdown_requested")

	if a.srvFast != nil {
		done := make(chan error, 1)
		go func() { done <- a.srvFast.Shutdown() }()
		select {
		case err := <-done:
			if err != nil {
				logger.Error("http_shutdown_failed", "error", err)
			}
		case <-ctx.Done():
			logger.Warn("http_shutdown_timeout", "error", ctx.Err())
		}
	}
	if a.stopScan != nil {
		a.stopScan()
	}
	a.authMW.Shutdown()
	a.watcher.Close()

	err := a.closeStore()
	if err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	telemetry.Close()
	logger.Info("shutdown_complete")
	return err
}

func (a *App) closeStore() error {
	if a.pebble == nil {
		return nil
	}
	if err := a.pebble.ForceSync(); err != nil {
		logger.Error("store_force_sync_failed", "error", err)
	}
	return a.pebble.Close()
}

func (a *App) ready() bool {
	if a.pebble == nil {
		return true
	}
	return a.pebble.Ready()
}

func (a *App) printSummary() {
	cfg := a.eff.Config
	sources := "defaults"
	if len(a.eff.Sources) > 0 {
		sources = strings.Join(a.eff.Sources, ",")
	}
	items := []string{
		fmt.Sprintf("version: %s", a.version),
		fmt.Sprintf("listen: %s", cfg.Addr()),
		fmt.Sprintf("sources: %s", sources),
		fmt.Sprintf("store: %s", cfg.Store.Mode),
	}
	if cfg.Store.Mode == config.StoreModePebble {
		items = append(items,
			fmt.Sprintf("db_path: %s", cfg.Store.DBPath),
			fmt.Sprintf("cache_size: %s", humanize.IBytes(uint64(cfg.Store.CacheSize.Int64()))),
			fmt.Sprintf("wal: %t", !cfg.Store.DisableWAL),
		)
	}
	items = append(items,
		fmt.Sprintf("max_request_body: %s", humanize.IBytes(uint64(cfg.Server.MaxRequestBody.Int64()))),
		fmt.Sprintf("rate_limit: %s rps, burst %s", humanize.Ftoa(cfg.Server.RateLimit.RPS), humanize.Comma(int64(cfg.Server.RateLimit.Burst))),
		fmt.Sprintf("api_keys: %d", len(cfg.Server.APIKeys)),
		fmt.Sprintf("visible_actions: %s", strings.Join(a.reader.Policy().Names(), ",")),
	)
	if a.scanner != nil {
		items = append(items, fmt.Sprintf("gap_scan: %s", cfg.GapScan.Cron))
	}
	logger.LogConfigSummary("reportchain_config", items)
	if len(cfg.Server.APIKeys) == 0 {
		logger.Warn("api_keys_missing", "msg", "API is open to any caller")
	}
}
