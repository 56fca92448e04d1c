package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/chatflow"
	chathttp "github.com/aretw0/chatflow/pkg/adapters/http"
)

// ShutdownTimeout gives outstanding requests a deadline on shutdown.
const ShutdownTimeout = 5 * time.Second

// Serve exposes the flow over HTTP on addr until ctx is cancelled.
func Serve(ctx context.Context, opts RunOptions, addr string, out io.Writer) error {
	logger, err := CreateLogger(opts.Debug, opts.LogLevel)
	if err != nil {
		return err
	}

	graph, err := LoadFlow(opts.FlowPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	bundle, err := createEngine(ctx, graph, opts, logger, chatflow.WithMetrics(reg))
	if err != nil {
		return err
	}
	defer func() {
		if err := bundle.Close(); err != nil {
			logger.Warn("failed to close stores", "err", err)
		}
	}()

	srv := &http.Server{
		Addr: addr,
		Handler: chathttp.NewHandler(bundle.Engine,
			chathttp.WithLogger(logger),
			chathttp.WithMetrics(reg),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Fprintf(out, "Starting chatflow server on %s\n", addr)
		fmt.Fprintf(out, "Serving flow %s (%s)\n", opts.FlowPath, bundle.Engine.FlowHash())
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			return srv.Close()
		}
		fmt.Fprintln(out, "chatflow server stopped gracefully")
		return nil
	}
}
