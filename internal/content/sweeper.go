package content

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes expired temp files in the background.
type Sweeper struct {
	store    *TempStore
	interval time.Duration
	ttl      time.Duration
}

// NewSweeper creates a sweeper over the given temp store.
func NewSweeper(store *TempStore, interval, ttl time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sweeper{store: store, interval: interval, ttl: ttl}
}

// Run starts the periodic sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "content.sweeper"))
	log.Info("starting temp file sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("ttl", s.ttl),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("temp file sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.store.SweepOnce(s.ttl)
			if err != nil {
				log.Error("sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				log.Info("sweep complete", zap.Int("removed", removed))
			}
		}
	}
}
