// Package pipeline orchestrates the fetch-evaluate-store refresh cycle and is
// the only entry point API readers use.
//
// Refreshes for a kind are serialized by the cache's refresh ticket: a
// scheduled tick, a stale read, and a cold-cache reader can all request a
// refresh concurrently, but exactly one provider fetch runs. Readers are never
// blocked by a background refresh — a stale entry is served immediately while
// the refresh proceeds. Only a cold cache makes the reader wait, and then all
// concurrent cold readers join the same flight and share its outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dustcast-service/internal/cache"
	"github.com/couchcryptid/dustcast-service/internal/domain"
	"github.com/couchcryptid/dustcast-service/internal/observability"
)

// Publisher pushes a completed assessment to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, kind string, a domain.RiskAssessment) error
}

// Notifier delivers a user-facing alert when the risk tier changes.
type Notifier interface {
	NotifyLevelChange(ctx context.Context, previous, current domain.RiskAssessment) error
}

// Archiver appends a successful assessment to the history store.
type Archiver interface {
	Append(ctx context.Context, kind string, a domain.RiskAssessment) error
}

// Config wires a Pipeline. Provider, Store, Params, and Region are required;
// Publisher, Notifier, and Archiver are optional side channels.
type Config struct {
	Provider     domain.IndexProvider
	Store        *cache.Store
	Params       domain.RiskParams
	Region       domain.Region
	ForecastDays int
	FetchTimeout time.Duration

	Publisher Publisher
	Notifier  Notifier
	Archiver  Archiver

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Clock   clockwork.Clock
}

// Pipeline owns the refresh cycle and serves the query facade.
type Pipeline struct {
	provider     domain.IndexProvider
	store        *cache.Store
	params       domain.RiskParams
	region       domain.Region
	forecastDays int
	fetchTimeout time.Duration

	publisher Publisher
	notifier  Notifier
	archiver  Archiver

	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// New creates a Pipeline from the given wiring.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Pipeline{
		provider:     cfg.Provider,
		store:        cfg.Store,
		params:       cfg.Params,
		region:       cfg.Region,
		forecastDays: cfg.ForecastDays,
		fetchTimeout: cfg.FetchTimeout,
		publisher:    cfg.Publisher,
		notifier:     cfg.Notifier,
		archiver:     cfg.Archiver,
		logger:       logger,
		metrics:      cfg.Metrics,
		clock:        clk,
	}
}

// Current returns the freshest current-conditions assessment. Only a cold
// cache blocks the caller; provider errors propagate only on that path.
func (p *Pipeline) Current(ctx context.Context) (domain.RiskAssessment, error) {
	return p.read(ctx, cache.KindCurrent)
}

// Forecast returns the freshest forecast assessment including its outlook.
func (p *Pipeline) Forecast(ctx context.Context) (domain.RiskAssessment, error) {
	return p.read(ctx, cache.KindForecast)
}

func (p *Pipeline) read(ctx context.Context, kind cache.Kind) (domain.RiskAssessment, error) {
	entry, status := p.store.Get(kind)
	p.metrics.CacheReads.WithLabelValues(string(kind), string(status)).Inc()

	switch status {
	case cache.StatusFresh:
		return entry.Assessment, nil

	case cache.StatusStale:
		// Serve the stale value immediately; the refresh ticket makes sure
		// only one background fetch starts no matter how many readers hit
		// the stale window.
		go p.Refresh(context.WithoutCancel(ctx), kind)
		return entry.Assessment, nil

	default:
		return p.coldFetch(ctx, kind)
	}
}

// coldFetch populates an empty slot synchronously. Concurrent cold readers
// join the in-flight refresh and share its outcome.
func (p *Pipeline) coldFetch(ctx context.Context, kind cache.Kind) (domain.RiskAssessment, error) {
	flight, started := p.store.Begin(kind)
	if started {
		err := p.doRefresh(ctx, kind)
		p.store.Complete(kind, flight, err)
		if err != nil {
			return domain.RiskAssessment{}, err
		}
	} else {
		p.metrics.RefreshJoined.WithLabelValues(string(kind)).Inc()
		select {
		case <-flight.Done():
		case <-ctx.Done():
			return domain.RiskAssessment{}, ctx.Err()
		}
		if err := flight.Err(); err != nil {
			return domain.RiskAssessment{}, err
		}
	}

	entry, _ := p.store.Get(kind)
	if entry == nil {
		return domain.RiskAssessment{}, fmt.Errorf("%w: refresh completed without a cache entry", domain.ErrProvider)
	}
	return entry.Assessment, nil
}

// Refresh runs one ticket-guarded refresh for a kind. Concurrent calls while
// one is in flight are deduplicated: they neither fetch nor block. Scheduled
// callers treat the returned error as logged-and-handled; it exists for the
// cold-fetch path and tests.
func (p *Pipeline) Refresh(ctx context.Context, kind cache.Kind) error {
	flight, started := p.store.Begin(kind)
	if !started {
		p.metrics.RefreshJoined.WithLabelValues(string(kind)).Inc()
		return nil
	}

	err := p.doRefresh(ctx, kind)
	p.store.Complete(kind, flight, err)
	return err
}

// doRefresh is the fetch-evaluate-store cycle. Callers must hold the ticket.
func (p *Pipeline) doRefresh(ctx context.Context, kind cache.Kind) error {
	start := p.clock.Now()

	// The timeout bounds the REFRESHING state even if the provider's own
	// client timeout misbehaves.
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	indices, err := p.provider.Fetch(fetchCtx, p.region, p.clock.Now())
	if err != nil {
		p.metrics.RefreshTotal.WithLabelValues(string(kind), outcomeLabel(err)).Inc()
		p.logFetchFailure(ctx, kind, err)
		return err
	}

	assessment := domain.Evaluate(indices, p.params)
	if kind == cache.KindForecast {
		assessment.Outlook = domain.SynthesizeOutlook(assessment, p.forecastDays, p.params)
	}

	previous, _ := p.store.Get(kind)
	p.store.Put(kind, assessment)

	p.metrics.RefreshTotal.WithLabelValues(string(kind), "success").Inc()
	p.metrics.RefreshDuration.WithLabelValues(string(kind)).Observe(p.clock.Since(start).Seconds())
	p.metrics.ObserveAssessment(string(kind), assessment)

	p.logger.InfoContext(ctx, "refresh complete",
		"kind", kind,
		"risk_score", assessment.RiskScore,
		"risk_level", assessment.RiskLevel,
		"triggered", assessment.TriggeredFactors,
		"scenes", indices.SceneCount,
	)

	p.fanOut(ctx, kind, previous, assessment)
	return nil
}

// fanOut drives the optional side channels. All are best-effort: a failed
// archive, publish, or alert never fails the refresh.
func (p *Pipeline) fanOut(ctx context.Context, kind cache.Kind, previous *cache.Entry, current domain.RiskAssessment) {
	if p.archiver != nil {
		if err := p.archiver.Append(ctx, string(kind), current); err != nil {
			p.metrics.HistoryErrors.Inc()
			p.logger.WarnContext(ctx, "history append failed", "kind", kind, "error", err)
		} else {
			p.metrics.HistoryWrites.Inc()
		}
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, string(kind), current); err != nil {
			p.metrics.PublishErrors.Inc()
			p.logger.WarnContext(ctx, "assessment publish failed", "kind", kind, "error", err)
		} else {
			p.metrics.PublishedTotal.Inc()
		}
	}

	// Tier-change alerts only make sense for observed conditions.
	if p.notifier != nil && kind == cache.KindCurrent && previous != nil &&
		previous.Assessment.RiskLevel != current.RiskLevel {
		if err := p.notifier.NotifyLevelChange(ctx, previous.Assessment, current); err != nil {
			p.metrics.AlertErrors.Inc()
			p.logger.WarnContext(ctx, "risk alert failed", "error", err)
		} else {
			p.metrics.AlertsSent.Inc()
		}
	}
}

func (p *Pipeline) logFetchFailure(ctx context.Context, kind cache.Kind, err error) {
	if errors.Is(err, domain.ErrDataUnavailable) {
		p.logger.WarnContext(ctx, "no imagery for window", "kind", kind, "error", err)
		return
	}
	p.logger.ErrorContext(ctx, "provider fetch failed", "kind", kind, "error", err)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, domain.ErrProvider):
		return "provider_error"
	default:
		return "error"
	}
}

// Health reports the per-kind cache state for the status endpoint.
func (p *Pipeline) Health() map[string]cache.KindHealth {
	out := make(map[string]cache.KindHealth, len(cache.Kinds()))
	for _, kind := range cache.Kinds() {
		out[string(kind)] = p.store.Health(kind)
	}
	return out
}

// CheckReadiness returns nil once the current-conditions slot has been
// populated at least once.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if entry, _ := p.store.Get(cache.KindCurrent); entry == nil {
		return errors.New("no successful fetch yet")
	}
	return nil
}
