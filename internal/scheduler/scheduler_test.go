package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dustcast-service/internal/cache"
	"github.com/couchcryptid/dustcast-service/internal/observability"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls map[cache.Kind]int
	err   error
	fired chan cache.Kind
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{
		calls: make(map[cache.Kind]int),
		fired: make(chan cache.Kind, 64),
	}
}

func (f *fakeRefresher) Refresh(_ context.Context, kind cache.Kind) error {
	f.mu.Lock()
	f.calls[kind]++
	f.mu.Unlock()
	f.fired <- kind
	return f.err
}

func (f *fakeRefresher) count(kind cache.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startScheduler(t *testing.T, refresher Refresher, clk clockwork.Clock) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{
		Refresher:        refresher,
		CurrentInterval:  30 * time.Minute,
		ForecastInterval: 2 * time.Hour,
		Logger:           discardLogger(),
		Metrics:          observability.NewMetricsForTesting(),
		Clock:            clk,
	})
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return cancel, done
}

func awaitKind(t *testing.T, refresher *fakeRefresher, want cache.Kind) {
	t.Helper()
	select {
	case kind := <-refresher.fired:
		assert.Equal(t, want, kind)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s refresh", want)
	}
}

func TestRun_WarmsBothKindsAtStartup(t *testing.T) {
	clk := clockwork.NewFakeClock()
	refresher := newFakeRefresher()
	cancel, done := startScheduler(t, refresher, clk)
	defer cancel()

	awaitKind(t, refresher, cache.KindCurrent)
	awaitKind(t, refresher, cache.KindForecast)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_TwinCadences(t *testing.T) {
	clk := clockwork.NewFakeClock()
	refresher := newFakeRefresher()
	cancel, done := startScheduler(t, refresher, clk)
	defer cancel()

	// Drain the startup warm-up, then wait for both tickers to arm.
	awaitKind(t, refresher, cache.KindCurrent)
	awaitKind(t, refresher, cache.KindForecast)
	clk.BlockUntil(2)

	// 2h advanced in 30m steps: four current ticks, one forecast tick. The
	// final step fires both tickers, in no particular order.
	for i := 0; i < 3; i++ {
		clk.Advance(30 * time.Minute)
		awaitKind(t, refresher, cache.KindCurrent)
	}
	clk.Advance(30 * time.Minute)
	got := map[cache.Kind]int{}
	for i := 0; i < 2; i++ {
		select {
		case kind := <-refresher.fired:
			got[kind]++
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for 2h-mark refreshes")
		}
	}
	assert.Equal(t, map[cache.Kind]int{cache.KindCurrent: 1, cache.KindForecast: 1}, got)

	assert.Equal(t, 5, refresher.count(cache.KindCurrent))
	assert.Equal(t, 2, refresher.count(cache.KindForecast))

	cancel()
	require.NoError(t, <-done)
}

func TestRun_KeepsTickingAfterRefreshFailure(t *testing.T) {
	clk := clockwork.NewFakeClock()
	refresher := newFakeRefresher()
	refresher.err = errors.New("provider down")
	cancel, done := startScheduler(t, refresher, clk)
	defer cancel()

	awaitKind(t, refresher, cache.KindCurrent)
	awaitKind(t, refresher, cache.KindForecast)
	clk.BlockUntil(2)

	clk.Advance(30 * time.Minute)
	awaitKind(t, refresher, cache.KindCurrent)

	cancel()
	require.NoError(t, <-done, "refresh failures must not stop the scheduler")
}

func TestRun_StopsOnCancel(t *testing.T) {
	clk := clockwork.NewFakeClock()
	refresher := newFakeRefresher()
	cancel, done := startScheduler(t, refresher, clk)

	awaitKind(t, refresher, cache.KindCurrent)
	awaitKind(t, refresher, cache.KindForecast)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
