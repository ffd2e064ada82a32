package main

import (
	"context"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// serveHTTP runs an HTTP server on addr until ctx is canceled, then drains
// in-flight requests with a graceful shutdown.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger log.Logger) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "HTTP API listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			level.Error(logger).Log("msg", "error during HTTP shutdown", "err", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
