package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/background"
)

// newServer builds the API server. Request contexts derive from a root that is
// cancelled as soon as Shutdown starts, so open live streams end instead of
// holding the drain until its deadline.
func newServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	root, cancelRequests := context.WithCancel(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return root },
	}
	srv.RegisterOnShutdown(cancelRequests)
	return srv
}

// shutdown stops accepting requests, then drains background fan-out. Each phase
// gets its own timeout so a slow HTTP drain cannot starve the fan-out drain.
func shutdown(srv *http.Server, bg *background.Group, timeout time.Duration, log *zap.Logger) error {
	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), timeout)
	defer cancelHTTP()

	var errs []error
	if err := srv.Shutdown(httpCtx); err != nil {
		log.Error("Failed to shut down HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
	}

	bgCtx, cancelBg := context.WithTimeout(context.Background(), timeout)
	defer cancelBg()

	if err := bg.Shutdown(bgCtx); err != nil {
		log.Warn("Background tasks did not finish before shutdown", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to drain background tasks: %w", err))
	}
	return errors.Join(errs...)
}
