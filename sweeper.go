package goSession

import (
	"context"
	"errors"
	"time"
)

// Sweeper runs [Service.CleanupExpiredTokens] on a fixed interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	timeout  time.Duration
}

// NewSweeper returns a sweeper driven by Config.Cleanup. A zero interval
// disables it and Run returns as soon as ctx is done.
func (s *Service) NewSweeper() *Sweeper {
	return &Sweeper{
		svc:      s,
		interval: s.config.Cleanup.Interval,
		timeout:  s.config.Cleanup.Timeout,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval. Sweep
// errors are logged and do not stop the loop. Run returns nil on
// cancellation so it can sit in an errgroup next to an HTTP server.
func (w *Sweeper) Run(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	sctx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if _, err := w.svc.CleanupExpiredTokens(sctx); err != nil && !errors.Is(err, context.Canceled) {
		w.svc.logger.Error("scheduled cleanup failed", "error", err)
	}
}
