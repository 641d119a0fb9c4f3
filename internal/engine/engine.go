// Package engine reconciles station and price data into ranked results.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/fuelwatch/fuel-price-watcher/internal/branding"
	"github.com/fuelwatch/fuel-price-watcher/internal/fuelfinder"
	"github.com/fuelwatch/fuel-price-watcher/internal/geo"
	"github.com/fuelwatch/fuel-price-watcher/internal/models"
	"github.com/fuelwatch/fuel-price-watcher/internal/pricing"
	"github.com/fuelwatch/fuel-price-watcher/internal/routing"
)

const (
	// DefaultScanInterval is the normal polling interval. The provider
	// refreshes its dataset daily.
	DefaultScanInterval = 24 * time.Hour
	// DefaultRetryInterval is used after a cycle fails with no usable cache.
	DefaultRetryInterval = 5 * time.Minute
	// topN is how many cheapest stations are ranked per fuel type.
	topN = 3
)

// Fetcher is the slice of the API client the engine depends on.
type Fetcher interface {
	FetchAllStations(ctx context.Context, since string) ([]models.Station, error)
	FetchAllPrices(ctx context.Context, since string) ([]models.PriceRecord, error)
}

// DistanceProvider enriches top results with driving distances.
type DistanceProvider interface {
	Distances(ctx context.Context, home routing.Coordinate, dests []routing.Coordinate) []*float64
}

// MetricsRecorder receives refresh observations. A nil recorder disables
// instrumentation.
type MetricsRecorder interface {
	RecordRefresh(outcome string, seconds float64)
	RecordCacheSize(stations, prices int)
	RecordFuelResult(fuelType string, candidates int, cheapest *float64)
}

// Config holds the engine's reconciliation parameters.
type Config struct {
	HomeLat     float64
	HomeLon     float64
	RadiusMiles float64
	// FuelTypes are the selected fuel type codes (e.g. E10, B7_STANDARD).
	FuelTypes []string
	// ScanInterval is the normal polling interval.
	ScanInterval time.Duration
	// RetryInterval replaces ScanInterval after a failed cycle.
	RetryInterval time.Duration
}

// Engine owns the station and price caches and turns them into ranked
// per-fuel-type results. It is driven by a single caller at a time; no
// two refresh cycles overlap.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	routes  DistanceProvider
	clock   clockwork.Clock
	logger  zerolog.Logger
	metrics MetricsRecorder

	stations map[string]models.Station
	prices   map[string]models.PriceRecord

	// lastFetchTime is the incremental watermark. Empty means the next
	// cycle performs a full fetch.
	lastFetchTime string
	state         PollState
}

// New creates an Engine. Interval defaults are applied when unset.
func New(cfg Config, fetcher Fetcher, clock clockwork.Clock, logger zerolog.Logger) *Engine {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Engine{
		cfg:      cfg,
		fetcher:  fetcher,
		clock:    clock,
		logger:   logger.With().Str("component", "engine").Logger(),
		stations: make(map[string]models.Station),
		prices:   make(map[string]models.PriceRecord),
		state:    PollNormal,
	}
}

// SetDistanceProvider enables driving-distance enrichment.
func (e *Engine) SetDistanceProvider(p DistanceProvider) {
	e.routes = p
}

// SetMetrics attaches a metrics recorder to the engine.
func (e *Engine) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// Interval returns the polling interval the scheduler should use for the
// next cycle, depending on the current poll state.
func (e *Engine) Interval() time.Duration {
	if e.state == PollRetrying {
		return e.cfg.RetryInterval
	}
	return e.cfg.ScanInterval
}

// State returns the current poll state.
func (e *Engine) State() PollState {
	return e.state
}

// CacheSize returns the number of cached station and price records.
func (e *Engine) CacheSize() (stations, prices int) {
	return len(e.stations), len(e.prices)
}

// Watermark returns the incremental fetch watermark, empty before the
// first successful fetch.
func (e *Engine) Watermark() string {
	return e.lastFetchTime
}

// Refresh runs one full update cycle: fetch (full or incremental), merge
// into the cache, geofilter, join prices, rank, and enrich. On a fetch
// failure with a usable cache the cycle degrades to cached data instead
// of failing.
func (e *Engine) Refresh(ctx context.Context) (*models.Snapshot, error) {
	start := e.clock.Now()
	since := e.lastFetchTime
	incremental := since != ""

	stationsRaw, pricesRaw, fetchErr := e.fetch(ctx, since)

	degraded := false
	switch {
	case fetchErr == nil:
		e.merge(stationsRaw, pricesRaw, incremental)
		// The watermark only advances when the fetch itself succeeded.
		// After a degraded cycle the next incremental fetch re-covers
		// the outage window rather than skipping it.
		e.lastFetchTime = e.clock.Now().UTC().Format(fuelfinder.TimestampLayout)

	case incremental && len(e.stations) > 0:
		degraded = true
		e.logger.Warn().
			Err(fetchErr).
			Int("cachedStations", len(e.stations)).
			Int("cachedPrices", len(e.prices)).
			Msg("incremental fetch failed, using cached data")

	default:
		e.state = transition(e.state, false)
		e.recordRefresh("failure", start)
		e.logger.Warn().
			Err(fetchErr).
			Dur("retryInterval", e.cfg.RetryInterval).
			Msg("fetch failed with no usable cache, shortening polling interval")
		return nil, fmt.Errorf("fetching fuel data: %w", fetchErr)
	}

	if e.metrics != nil {
		e.metrics.RecordCacheSize(len(e.stations), len(e.prices))
	}

	nearby := e.geofilter()

	snapshot := &models.Snapshot{
		FuelLabels: models.DisplayLabels(e.cfg.FuelTypes),
		ByFuel:     make(map[string]models.FuelResult, len(e.cfg.FuelTypes)),
		UpdatedAt:  e.clock.Now().UTC(),
	}

	for _, fuelType := range e.cfg.FuelTypes {
		candidates := e.matchPrices(nearby, fuelType)

		// Cheapest first; distance is the deterministic tie-break.
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Price != candidates[j].Price {
				return candidates[i].Price < candidates[j].Price
			}
			return candidates[i].DistanceMiles < candidates[j].DistanceMiles
		})

		top := make([]models.PriceCandidate, 0, topN)
		top = append(top, candidates[:min(topN, len(candidates))]...)

		byID := make(map[string]models.PriceCandidate, len(candidates))
		for _, c := range candidates {
			byID[c.NodeID] = c
		}

		e.enrich(ctx, fuelType, top)

		snapshot.ByFuel[fuelType] = models.FuelResult{Top: top, Stations: byID}

		if e.metrics != nil {
			var cheapest *float64
			if len(top) > 0 {
				cheapest = &top[0].Price
			}
			e.metrics.RecordFuelResult(fuelType, len(candidates), cheapest)
		}
	}

	e.state = transition(e.state, true)
	if degraded {
		e.recordRefresh("degraded", start)
	} else {
		e.recordRefresh("success", start)
	}

	return snapshot, nil
}

// fetch retrieves stations then prices sequentially. The provider allows
// one concurrent request, so the two fetches never run in parallel.
func (e *Engine) fetch(ctx context.Context, since string) ([]models.Station, []models.PriceRecord, error) {
	if since != "" {
		e.logger.Info().Str("since", since).Msg("performing incremental fetch")
	} else {
		e.logger.Info().Msg("performing full initial fetch")
	}

	stations, err := e.fetcher.FetchAllStations(ctx, since)
	if err != nil {
		return nil, nil, err
	}
	prices, err := e.fetcher.FetchAllPrices(ctx, since)
	if err != nil {
		return nil, nil, err
	}
	return stations, prices, nil
}

// merge folds fetched records into the caches, last write per node_id wins.
func (e *Engine) merge(stations []models.Station, prices []models.PriceRecord, incremental bool) {
	mergedStations := 0
	for _, s := range stations {
		if s.NodeID == "" {
			continue
		}
		e.stations[s.NodeID] = s
		mergedStations++
	}
	mergedPrices := 0
	for _, p := range prices {
		if p.NodeID == "" {
			continue
		}
		e.prices[p.NodeID] = p
		mergedPrices++
	}

	if incremental {
		e.logger.Info().
			Int("stationUpdates", mergedStations).
			Int("priceUpdates", mergedPrices).
			Int("totalStations", len(e.stations)).
			Int("totalPrices", len(e.prices)).
			Msg("merged incremental updates into cache")
	} else {
		e.logger.Info().
			Int("stations", len(e.stations)).
			Int("prices", len(e.prices)).
			Msg("seeded cache from full fetch")
	}
}

// geofilter reduces the station cache to open stations with valid
// coordinates within the configured radius. A station exactly on the
// radius boundary is included.
func (e *Engine) geofilter() map[string]models.NearbyStation {
	nearby := make(map[string]models.NearbyStation)
	skippedClosed := 0
	skippedNoLocation := 0
	skippedOutOfRange := 0

	for _, station := range e.stations {
		if station.NodeID == "" {
			continue
		}
		if station.PermanentClosure || station.TemporaryClosure {
			skippedClosed++
			continue
		}

		lat := float64(station.Location.Latitude)
		lon := float64(station.Location.Longitude)
		if lat == 0 || lon == 0 {
			skippedNoLocation++
			continue
		}

		dist := geo.HaversineMiles(e.cfg.HomeLat, e.cfg.HomeLon, lat, lon)
		if dist > e.cfg.RadiusMiles {
			skippedOutOfRange++
			continue
		}

		name := station.TradingName
		if name == "" {
			name = "Unknown"
		}
		brand := station.BrandName
		if brand == "" {
			brand = "Unknown"
		}

		nearby[station.NodeID] = models.NearbyStation{
			NodeID:        station.NodeID,
			StationName:   name,
			Brand:         brand,
			BrandIcon:     branding.IconURL(station.BrandName),
			Address:       joinAddress(station.Location),
			Postcode:      station.Location.Postcode,
			Latitude:      lat,
			Longitude:     lon,
			DistanceMiles: geo.RoundTenth(dist),
		}
	}

	e.logger.Debug().
		Int("inRange", len(nearby)).
		Int("closed", skippedClosed).
		Int("noLocation", skippedNoLocation).
		Int("outOfRange", skippedOutOfRange).
		Msg("station geofilter complete")

	return nearby
}

// matchPrices joins the price cache to the nearby station set for one fuel
// type, sanitising each raw price. Stations with no entry for the fuel type
// are counted but not an error.
func (e *Engine) matchPrices(nearby map[string]models.NearbyStation, fuelType string) []models.PriceCandidate {
	var candidates []models.PriceCandidate
	noFuelType := 0
	badPrice := 0

	for _, record := range e.prices {
		station, ok := nearby[record.NodeID]
		if !ok {
			continue
		}

		found := false
		for _, fp := range record.FuelPrices {
			if fp.FuelType != fuelType {
				continue
			}
			found = true
			cleaned := pricing.Clean(fp.Price)
			if cleaned == nil {
				badPrice++
				e.logger.Debug().
					Str("station", station.StationName).
					Str("nodeID", record.NodeID).
					Str("fuelType", fuelType).
					Msg("rejected implausible price")
			} else {
				candidates = append(candidates, models.PriceCandidate{
					NearbyStation: station,
					Price:         *cleaned,
					FuelType:      fuelType,
					LastUpdate:    fp.PriceLastUpdated,
				})
			}
			break
		}
		if !found {
			noFuelType++
		}
	}

	e.logger.Info().
		Str("fuelType", fuelType).
		Int("matched", len(candidates)).
		Int("noFuelTypePrice", noFuelType).
		Int("badPrices", badPrice).
		Msg("price join complete")

	return candidates
}

// enrich attaches driving distances to the top candidates. Failures leave
// the great-circle distance as the only distance; enrichment never blocks
// a cycle.
func (e *Engine) enrich(ctx context.Context, fuelType string, top []models.PriceCandidate) {
	if e.routes == nil || len(top) == 0 {
		return
	}

	dests := make([]routing.Coordinate, len(top))
	for i, c := range top {
		dests[i] = routing.Coordinate{Lat: c.Latitude, Lon: c.Longitude}
	}

	home := routing.Coordinate{Lat: e.cfg.HomeLat, Lon: e.cfg.HomeLon}
	distances := e.routes.Distances(ctx, home, dests)

	for i := range top {
		if i < len(distances) && distances[i] != nil {
			top[i].DrivingDistanceMiles = distances[i]
		}
	}

	e.logger.Debug().
		Str("fuelType", fuelType).
		Int("stations", len(top)).
		Msg("driving distance enrichment complete")
}

func (e *Engine) recordRefresh(outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordRefresh(outcome, e.clock.Since(start).Seconds())
}

func joinAddress(loc models.Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.AddressLine1, loc.AddressLine2, loc.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
