// Package background runs fire-and-forget work that must still finish before shutdown.
package background

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/logger"
)

const defaultTimeout = 30 * time.Second

// Group tracks detached tasks so callers can return early and the process can drain them on exit
type Group struct {
	wg      sync.WaitGroup
	timeout time.Duration
	log     *zap.Logger
}

// NewGroup creates a group whose tasks each get at most timeout to finish
func NewGroup(timeout time.Duration, log *zap.Logger) *Group {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Group{timeout: timeout, log: log}
}

// Go runs fn in its own goroutine. The task context keeps the values of parent
// (request id) but is not cancelled with it.
func (g *Group) Go(parent context.Context, name string, fn func(ctx context.Context) error) {
	if parent == nil {
		parent = context.Background()
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), g.timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx, g.log).Error("Background task panicked",
					zap.String("task", name),
					zap.Any("panic", r))
			}
		}()

		if err := fn(ctx); err != nil {
			logger.FromContext(ctx, g.log).Error("Background task failed",
				zap.String("task", name),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every started task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Shutdown waits for pending tasks until ctx is done.
func (g *Group) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
