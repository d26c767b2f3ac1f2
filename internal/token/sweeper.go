package token

import (
	"context"
	"time"

	"go.uber.org/zap"

	"review-auth/internal/util"
)

// Sweeper periodically deletes revocation entries whose expiration has
// passed. It runs on its own timer, never on the request path, and a failed
// sweep is logged and retried on the next tick.
type Sweeper struct {
	store    RevocationStore
	interval time.Duration
}

func NewSweeper(store RevocationStore, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	util.Info("Revocation sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			util.Info("Revocation sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := s.store.SweepExpired(sweepCtx, time.Now())
	if err != nil {
		util.Error("Revocation sweep failed, will retry next tick", zap.Error(err))
		return
	}
	if removed > 0 {
		util.Info("Revocation sweep completed", zap.Int("removed", removed))
	}
}
