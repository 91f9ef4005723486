package app

import (
	"context"
	"time"

	"github.com/ecommercefs/storefront/api/internal/clock"
	"github.com/ecommercefs/storefront/api/internal/metrics"
	"github.com/rs/zerolog"
)

type ExpirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs the expiry sweep on a fixed interval.
type Sweeper struct {
	target   ExpirySweeper
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger
}

const defaultSweepInterval = time.Minute

func NewSweeper(target ExpirySweeper, clk clock.Clock, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{target: target, clock: clk, interval: interval, logger: logger}
}

// Run sweeps once immediately, then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("reservation sweeper started")
	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reservation sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep and reports how many holds were expired.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	start := time.Now()
	expired, err := s.target.SweepExpired(ctx, s.clock.Now())
	metrics.SweepRun(err != nil)
	if err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Int("expired", expired).Msg("reservation sweep failed")
		return expired
	}
	evt := s.logger.Debug()
	if expired > 0 {
		evt = s.logger.Info()
	}
	evt.Int("expired", expired).Dur("took", time.Since(start)).Msg("reservation sweep finished")
	return expired
}
