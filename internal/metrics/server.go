package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-relay/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Handler returns the /metrics handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

// Serve exposes gatherer on lis until ctx is canceled.
func Serve(ctx context.Context, lis net.Listener, gatherer prometheus.Gatherer) error {
	server := &http.Server{
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Done channel is closed after Shutdown finishes.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "Metrics server shutdown failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Metrics server listening", "listen_address", lis.Addr().String())

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	<-done
	logger.Info(ctx, "Metrics server stopped")

	return nil
}
