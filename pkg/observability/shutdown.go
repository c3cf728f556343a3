package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc is one cleanup step run during shutdown.
type ShutdownFunc func(context.Context) error

// GracefulShutdown blocks until SIGINT or SIGTERM, then drains the HTTP
// server and runs the cleanup steps in order within the timeout.
func GracefulShutdown(log *logrus.Logger, server *http.Server, timeout time.Duration, funcs ...ShutdownFunc) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		log.Info("HTTP server drained")
	}

	var failed int
	for _, fn := range funcs {
		if err := fn(ctx); err != nil {
			log.WithError(err).Error("shutdown step failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d failed steps", failed)
	}

	log.Info("graceful shutdown complete")
	return nil
}
