package storage

import (
	"context"
	"time"

	"github.com/feichai0017/document-chat/pkg/logger"
)

// Sweeper periodically removes staged documents older than the retention
// period, catching files whose explicit deletion failed.
type Sweeper struct {
	store     Storage
	retention time.Duration
	interval  time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewSweeper(store Storage, retention, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

// Run sweeps once immediately, then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 || s.retention <= 0 {
		s.logger.Info("Storage sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs a single cleanup pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	threshold := s.now().Add(-s.retention)
	if err := s.store.CleanupBefore(ctx, threshold); err != nil {
		s.logger.Error("Storage sweep failed", logger.Error(err), logger.Time("threshold", threshold))
		return
	}
	s.logger.Debug("Storage sweep finished", logger.Time("threshold", threshold))
}
