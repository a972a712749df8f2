package service

import (
	"context"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"

	"github.com/rs/zerolog"
)

// Sweeper periodically expires overdue exchange requests and purges old
// terminal-state rows. It is the only writer of the EXPIRED state; reads
// racing with it re-check the deadline themselves, so a late sweep is
// harmless.
type Sweeper struct {
	requestRepo   ports.RequestRepository
	clock         ports.Clock
	sweepInterval time.Duration
	retention     time.Duration
	log           zerolog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	requestRepo ports.RequestRepository,
	clock ports.Clock,
	sweepInterval time.Duration,
	retention time.Duration,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		requestRepo:   requestRepo,
		clock:         clock,
		sweepInterval: sweepInterval,
		retention:     retention,
		log:           log,
	}
}

// Run starts the sweep loop in a goroutine. The returned channel closes once
// the loop has observed context cancellation and exited.
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("sweeper stopped")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return stopped
}

// Sweep performs one pass: expire, then purge. Exposed so startup and tests
// can run a pass synchronously.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.clock.Now()

	expired, err := s.requestRepo.ExpireStale(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to expire stale requests")
	} else if expired > 0 {
		s.log.Info().Int64("count", expired).Msg("expired stale requests")
	}

	purged, err := s.requestRepo.PurgeTerminal(ctx, now.Add(-s.retention))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to purge terminal requests")
	} else if purged > 0 {
		s.log.Info().Int64("count", purged).Msg("purged old terminal requests")
	}
}
