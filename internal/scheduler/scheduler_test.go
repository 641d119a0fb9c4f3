package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelwatch/fuel-price-watcher/internal/engine"
	"github.com/fuelwatch/fuel-price-watcher/internal/models"
	"github.com/fuelwatch/fuel-price-watcher/internal/scheduler"
)

type fakeFetcher struct {
	mu       sync.Mutex
	stations []models.Station
	prices   []models.PriceRecord
	err      error
	fetches  int
}

func (f *fakeFetcher) FetchAllStations(_ context.Context, _ string) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.stations, nil
}

func (f *fakeFetcher) FetchAllPrices(_ context.Context, _ string) ([]models.PriceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func (f *fakeFetcher) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func healthyFetcher() *fakeFetcher {
	price := 135.9
	return &fakeFetcher{
		stations: []models.Station{{
			NodeID:      "a",
			TradingName: "Station A",
			Location: models.Location{
				Latitude:  models.FlexFloat(51.51),
				Longitude: models.FlexFloat(-0.1),
			},
		}},
		prices: []models.PriceRecord{{
			NodeID: "a",
			FuelPrices: []models.FuelPrice{
				{FuelType: "E10", Price: &price},
			},
		}},
	}
}

func newScheduler(f *fakeFetcher, fc *clockwork.FakeClock) *scheduler.Scheduler {
	cfg := engine.Config{
		HomeLat:       51.5,
		HomeLon:       -0.1,
		RadiusMiles:   10,
		FuelTypes:     []string{"E10"},
		ScanInterval:  24 * time.Hour,
		RetryInterval: 5 * time.Minute,
	}
	e := engine.New(cfg, f, fc, zerolog.Nop())
	return scheduler.New(e, fc, zerolog.Nop())
}

func TestScheduler_InitialRefreshAndStatus(t *testing.T) {
	f := healthyFetcher()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	s := newScheduler(f, fc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return s.Status().LastSuccess
	}, time.Second, time.Millisecond)

	st := s.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.LastRefreshAt)
	require.NotNil(t, st.NextRefreshAt)
	assert.Equal(t, 24*time.Hour, st.NextRefreshAt.Sub(*st.LastRefreshAt))
	assert.Equal(t, "normal", st.PollState)
	assert.Equal(t, "24h0m0s", st.Interval)
	assert.Equal(t, 1, st.CachedStations)
	assert.Equal(t, 1, st.CachedPrices)
	assert.Equal(t, "2026-08-28 12:00:00", st.Watermark)
	assert.Empty(t, st.LastError)

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Len(t, snap.ByFuel["E10"].Top, 1)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.False(t, s.Status().Running)
}

func TestScheduler_ReArmsOnScanInterval(t *testing.T) {
	f := healthyFetcher()
	fc := clockwork.NewFakeClock()
	s := newScheduler(f, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	require.Eventually(t, func() bool { return f.fetchCount() >= 1 }, time.Second, time.Millisecond)

	// Wait for the loop to arm its timer, then jump past the interval.
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(24*time.Hour + time.Second)

	require.Eventually(t, func() bool { return f.fetchCount() >= 2 }, time.Second, time.Millisecond)
}

func TestScheduler_RetryIntervalAfterFailure(t *testing.T) {
	f := healthyFetcher()
	f.setError(errors.New("provider down"))
	fc := clockwork.NewFakeClock()
	s := newScheduler(f, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	require.Eventually(t, func() bool {
		st := s.Status()
		return st.LastRefreshAt != nil && !st.LastSuccess
	}, time.Second, time.Millisecond)

	st := s.Status()
	assert.Equal(t, "retrying", st.PollState)
	assert.Equal(t, "5m0s", st.Interval)
	assert.Contains(t, st.LastError, "provider down")
	assert.Nil(t, s.Snapshot())

	// The next cycle fires on the short retry interval and recovers.
	f.setError(nil)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(5*time.Minute + time.Second)

	require.Eventually(t, func() bool {
		return s.Status().LastSuccess
	}, time.Second, time.Millisecond)

	st = s.Status()
	assert.Equal(t, "normal", st.PollState)
	assert.Equal(t, "24h0m0s", st.Interval)
	assert.NotNil(t, s.Snapshot())
}
