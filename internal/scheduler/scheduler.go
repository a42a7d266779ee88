// Package scheduler drives the periodic background refreshes that keep the
// assessment cache warm. Each cache kind refreshes on its own cadence: current
// conditions every half hour by default, the forecast every six hours.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dustcast-service/internal/cache"
	"github.com/couchcryptid/dustcast-service/internal/observability"
)

// Refresher is the part of the pipeline the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, kind cache.Kind) error
}

// Scheduler runs the twin refresh cadences until its context is cancelled.
type Scheduler struct {
	refresher        Refresher
	currentInterval  time.Duration
	forecastInterval time.Duration
	logger           *slog.Logger
	metrics          *observability.Metrics
	clock            clockwork.Clock
}

// Config wires a Scheduler.
type Config struct {
	Refresher        Refresher
	CurrentInterval  time.Duration
	ForecastInterval time.Duration
	Logger           *slog.Logger
	Metrics          *observability.Metrics
	Clock            clockwork.Clock
}

func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Scheduler{
		refresher:        cfg.Refresher,
		currentInterval:  cfg.CurrentInterval,
		forecastInterval: cfg.ForecastInterval,
		logger:           logger,
		metrics:          cfg.Metrics,
		clock:            clk,
	}
}

// Run warms both cache kinds immediately, then refreshes each on its own
// ticker until ctx is cancelled. Refresh failures are logged and the cadence
// continues; the cache keeps serving the last good assessment meanwhile.
// Always returns nil so an errgroup peer does not tear the service down.
func (s *Scheduler) Run(ctx context.Context) error {
	s.metrics.SchedulerActive.Set(1)
	defer s.metrics.SchedulerActive.Set(0)

	s.logger.InfoContext(ctx, "scheduler starting",
		"current_interval", s.currentInterval,
		"forecast_interval", s.forecastInterval)

	// Warm the cache before the first tick so readiness does not wait a
	// full interval after startup.
	s.tick(ctx, cache.KindCurrent)
	s.tick(ctx, cache.KindForecast)

	currentTicker := s.clock.NewTicker(s.currentInterval)
	defer currentTicker.Stop()
	forecastTicker := s.clock.NewTicker(s.forecastInterval)
	defer forecastTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopping", "reason", ctx.Err())
			return nil
		case <-currentTicker.Chan():
			s.tick(ctx, cache.KindCurrent)
		case <-forecastTicker.Chan():
			s.tick(ctx, cache.KindForecast)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, kind cache.Kind) {
	if ctx.Err() != nil {
		return
	}
	if err := s.refresher.Refresh(ctx, kind); err != nil {
		s.logger.WarnContext(ctx, "scheduled refresh failed", "kind", kind, "error", err)
	}
}
