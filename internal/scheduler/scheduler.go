// Package scheduler runs the daemon's periodic background tasks: the
// name cache staleness sweep and the aggregate stats log line.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/config"
	"github.com/netpulse-project/netpulse/internal/store"
)

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg   *config.Config
	store *store.Store
}

// NewScheduler creates a new task scheduler.
func NewScheduler(cfg *config.Config, st *store.Store) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		store: st,
	}
}

// Start begins running all scheduled tasks. It blocks until the context
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	timers := s.cfg.GetApplicationData().Timers

	go s.runSweepLoop(ctx, intervalOrDefault(timers.IGNSweepInterval, 60))
	go s.runStatsLogLoop(ctx, intervalOrDefault(timers.StatsLogInterval, 300))

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runSweepLoop evicts name cache entries past their TTL.
func (s *Scheduler) runSweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := s.store.SweepStaleIGNs(); dropped > 0 {
				log.Info().Int("dropped", dropped).Msg("name cache sweep complete")
			}
		}
	}
}

// runStatsLogLoop periodically logs the aggregate network view.
func (s *Scheduler) runStatsLogLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.store.Stats()
			conn := s.store.Connections()
			log.Info().
				Int("players", stats.TotalPlayers).
				Int("online_servers", stats.OnlineServers).
				Str("overall", conn.Overall.String()).
				Msg("network stats")
		}
	}
}

func intervalOrDefault(seconds, fallback int) time.Duration {
	if seconds < 1 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
