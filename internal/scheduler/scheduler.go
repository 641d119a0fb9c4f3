// Package scheduler drives periodic refresh cycles of the engine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/fuelwatch/fuel-price-watcher/internal/engine"
	"github.com/fuelwatch/fuel-price-watcher/internal/models"
)

// Status is a point-in-time view of the scheduler and engine for the
// status endpoint.
type Status struct {
	Running        bool       `json:"running"`
	LastRefreshAt  *time.Time `json:"last_refresh_at,omitempty"`
	NextRefreshAt  *time.Time `json:"next_refresh_at,omitempty"`
	LastSuccess    bool       `json:"last_success"`
	LastError      string     `json:"last_error,omitempty"`
	PollState      string     `json:"poll_state"`
	Interval       string     `json:"interval"`
	CachedStations int        `json:"cached_stations"`
	CachedPrices   int        `json:"cached_prices"`
	Watermark      string     `json:"watermark,omitempty"`
}

// Scheduler runs one refresh cycle at a time and re-arms its timer from
// the engine's current interval, so the shortened retry interval takes
// effect immediately after a failed cycle.
//
// It is the explicit handle tying an engine to its polling loop; callers
// keep the reference returned by New and cancel the Start context to tear
// it down.
type Scheduler struct {
	engine *engine.Engine
	clock  clockwork.Clock
	logger zerolog.Logger

	mu            sync.RWMutex
	running       bool
	lastRefreshAt *time.Time
	nextRefreshAt time.Time
	lastSuccess   bool
	lastError     string
	snapshot      *models.Snapshot
	status        Status
}

// New creates a Scheduler for the given engine.
func New(e *engine.Engine, clock clockwork.Clock, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine: e,
		clock:  clock,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs an immediate refresh and then loops until the context is
// cancelled. Cycles never overlap: the next timer is armed only after the
// previous cycle finished.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().Msg("starting scheduler")
	s.runRefresh(ctx)

	for {
		interval := s.nextInterval()
		timer := s.clock.NewTimer(interval)

		s.logger.Info().
			Dur("interval", interval).
			Msg("next refresh scheduled")

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-timer.Chan():
			s.runRefresh(ctx)
		}
	}
}

// Snapshot returns the most recent successful refresh result, nil before
// the first success.
func (s *Scheduler) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Status returns the current scheduler and engine status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Running = s.running
	return st
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	now := s.clock.Now()
	snap, err := s.engine.Refresh(ctx)

	stations, prices := s.engine.CacheSize()
	interval := s.engine.Interval()
	next := s.clock.Now().Add(interval)

	s.mu.Lock()
	s.lastRefreshAt = &now
	s.nextRefreshAt = next
	if err != nil {
		s.lastSuccess = false
		s.lastError = err.Error()
	} else {
		s.lastSuccess = true
		s.lastError = ""
		s.snapshot = snap
	}
	s.status = Status{
		LastRefreshAt:  s.lastRefreshAt,
		NextRefreshAt:  &s.nextRefreshAt,
		LastSuccess:    s.lastSuccess,
		LastError:      s.lastError,
		PollState:      s.engine.State().String(),
		Interval:       interval.String(),
		CachedStations: stations,
		CachedPrices:   prices,
		Watermark:      s.engine.Watermark(),
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("refresh failed")
	} else {
		s.logger.Info().Msg("refresh completed")
	}
}

func (s *Scheduler) nextInterval() time.Duration {
	s.mu.RLock()
	next := s.nextRefreshAt
	s.mu.RUnlock()

	d := next.Sub(s.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}
