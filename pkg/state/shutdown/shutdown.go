package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"reportchain/pkg/logger"
)

var (
	osExit = os.Exit
	// exit is swapped in tests.
	exit = osExit
)

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM. The
// cancel function stops watching signals.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigc)
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Abort logs a fatal startup error, echoes it to stderr and exits with
// status 1.
func Abort(contextMsg string, err error) {
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", contextMsg, err)
	exit(1)
}
