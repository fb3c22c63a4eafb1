package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"reportchain/internal/app"
	"reportchain/pkg/config"
	"reportchain/pkg/logger"
	"reportchain/pkg/state/shutdown"
)

var version = "dev"

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	flags, err := config.ParseConfigFlags("reportchain", os.Args[1:])
	if err != nil {
		shutdown.Abort("failed to parse flags", err)
	}

	eff, err := config.LoadEffectiveConfig(flags, os.Getenv)
	if err != nil {
		shutdown.Abort("failed to build effective config", err)
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level)
	logger.Info("effective_config_loaded", "sources", eff.Sources, "addr", eff.Config.Addr(), "store", eff.Config.Store.Mode)

	a, err := app.New(eff, version)
	if err != nil {
		shutdown.Abort("failed to initialize app", err)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	runErr := a.Run(ctx)
	cancel()

	// bounded so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	_ = a.Shutdown(shutdownCtx)

	if runErr != nil {
		shutdown.Abort("app run failed", runErr)
	}
}
