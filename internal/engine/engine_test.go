package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelwatch/fuel-price-watcher/internal/engine"
	"github.com/fuelwatch/fuel-price-watcher/internal/geo"
	"github.com/fuelwatch/fuel-price-watcher/internal/models"
	"github.com/fuelwatch/fuel-price-watcher/internal/routing"
)

type fakeFetcher struct {
	stations []models.Station
	prices   []models.PriceRecord
	err      error

	// sinceSeen records the since argument of every stations fetch.
	sinceSeen []string
}

func (f *fakeFetcher) FetchAllStations(_ context.Context, since string) ([]models.Station, error) {
	f.sinceSeen = append(f.sinceSeen, since)
	if f.err != nil {
		return nil, f.err
	}
	return f.stations, nil
}

func (f *fakeFetcher) FetchAllPrices(_ context.Context, _ string) ([]models.PriceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

type fakeRoutes struct {
	dests []routing.Coordinate
	reply []*float64
}

func (f *fakeRoutes) Distances(_ context.Context, _ routing.Coordinate, dests []routing.Coordinate) []*float64 {
	f.dests = dests
	return f.reply
}

const (
	homeLat = 51.5000
	homeLon = -0.1000
)

func testConfig() engine.Config {
	return engine.Config{
		HomeLat:     homeLat,
		HomeLon:     homeLon,
		RadiusMiles: 10,
		FuelTypes:   []string{"E10"},
	}
}

func station(id string, lat, lon float64) models.Station {
	return models.Station{
		NodeID:      id,
		BrandName:   "Tesco",
		TradingName: "Tesco " + id,
		Location: models.Location{
			Latitude:  models.FlexFloat(lat),
			Longitude: models.FlexFloat(lon),
			City:      "London",
		},
	}
}

func priceRecord(id, fuelType string, price float64) models.PriceRecord {
	return models.PriceRecord{
		NodeID: id,
		FuelPrices: []models.FuelPrice{
			{FuelType: fuelType, Price: &price, PriceLastUpdated: "2026-08-28 06:00:00"},
		},
	}
}

func fptr(v float64) *float64 { return &v }

func newTestEngine(cfg engine.Config, f *fakeFetcher, clock clockwork.Clock) *engine.Engine {
	return engine.New(cfg, f, clock, zerolog.Nop())
}

func TestRefresh_RanksCheapestFirstDistanceBreaksTies(t *testing.T) {
	f := &fakeFetcher{
		stations: []models.Station{
			// Increasing latitude offsets give increasing distances from home.
			station("near", homeLat+0.01, homeLon),
			station("mid", homeLat+0.03, homeLon),
			station("far", homeLat+0.06, homeLon),
		},
		prices: []models.PriceRecord{
			priceRecord("near", "E10", 135.9),
			priceRecord("mid", "E10", 135.9),
			priceRecord("far", "E10", 130.0),
		},
	}
	e := newTestEngine(testConfig(), f, clockwork.NewFakeClock())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	result := snap.ByFuel["E10"]
	require.Len(t, result.Top, 3)

	// Cheapest wins regardless of distance, then nearer of the tied pair.
	assert.Equal(t, "far", result.Top[0].NodeID)
	assert.Equal(t, 130.0, result.Top[0].Price)
	assert.Equal(t, "near", result.Top[1].NodeID)
	assert.Equal(t, "mid", result.Top[2].NodeID)

	// Every candidate is addressable by node id, not just the top 3.
	assert.Len(t, result.Stations, 3)
}

func TestRefresh_TopCapsAtThree(t *testing.T) {
	f := &fakeFetcher{}
	for i, price := range []float64{140.0, 138.0, 136.0, 134.0, 132.0} {
		id := string(rune('a' + i))
		f.stations = append(f.stations, station(id, homeLat+0.01, homeLon))
		f.prices = append(f.prices, priceRecord(id, "E10", price))
	}
	e := newTestEngine(testConfig(), f, clockwork.NewFakeClock())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	result := snap.ByFuel["E10"]
	require.Len(t, result.Top, 3)
	assert.Equal(t, 132.0, result.Top[0].Price)
	assert.Equal(t, 134.0, result.Top[1].Price)
	assert.Equal(t, 136.0, result.Top[2].Price)
	assert.Len(t, result.Stations, 5)
}

func TestRefresh_GeofilterExclusions(t *testing.T) {
	closed := station("closed", homeLat+0.01, homeLon)
	closed.TemporaryClosure = true
	gone := station("gone", homeLat+0.01, homeLon)
	gone.PermanentClosure = true
	noCoords := station("nocoords", 0, 0)

	f := &fakeFetcher{
		stations: []models.Station{
			station("in", homeLat+0.01, homeLon),
			station("out", homeLat+2.0, homeLon), // well beyond 10 miles
			closed,
			gone,
			noCoords,
			{Location: models.Location{Latitude: models.FlexFloat(homeLat), Longitude: models.FlexFloat(homeLon)}}, // no node id
		},
		prices: []models.PriceRecord{
			priceRecord("in", "E10", 140.0),
			priceRecord("out", "E10", 120.0),
			priceRecord("closed", "E10", 120.0),
			priceRecord("gone", "E10", 120.0),
			priceRecord("nocoords", "E10", 120.0),
		},
	}
	e := newTestEngine(testConfig(), f, clockwork.NewFakeClock())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	result := snap.ByFuel["E10"]
	require.Len(t, result.Top, 1)
	assert.Equal(t, "in", result.Top[0].NodeID)
}

func TestRefresh_BoundaryDistanceIncluded(t *testing.T) {
	boundary := station("edge", homeLat+0.1, homeLon)
	dist := geo.HaversineMiles(homeLat, homeLon,
		float64(boundary.Location.Latitude), float64(boundary.Location.Longitude))

	cfg := testConfig()
	cfg.RadiusMiles = dist

	f := &fakeFetcher{
		stations: []models.Station{boundary},
		prices:   []models.PriceRecord{priceRecord("edge", "E10", 140.0)},
	}
	e := newTestEngine(cfg, f, clockwork.NewFakeClock())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.ByFuel["E10"].Top, 1)
}

func TestRefresh_SanitisesPrices(t *testing.T) {
	f := &fakeFetcher{
		stations: []models.Station{
			station("pounds", homeLat+0.01, homeLon),
			station("tenths", homeLat+0.01, homeLon),
			station("junk", homeLat+0.01, homeLon),
		},
		prices: []models.PriceRecord{
			priceRecord("pounds", "E10", 1.359), // pounds/litre
			priceRecord("tenths", "E10", 1319),  // tenths of a penny
			priceRecord("junk", "E10", 50),      // implausible, dropped
		},
	}
	e := newTestEngine(testConfig(), f, clockwork.NewFakeClock())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	result := snap.ByFuel["E10"]
	require.Len(t, result.Top, 2)
	assert.Equal(t, 131.9, result.Top[0].Price)
	assert.Equal(t, 135.9, result.Top[1].Price)
	assert.NotContains(t, result.Stations, "junk")
}

func TestRefresh_IgnoresOtherFuelTypes(t *testing.T) {
	f := &fakeFetcher{
		stations: []models.Station{station("a", homeLat+0.01, homeLon)},
		prices: []models.PriceRecord{
			{
				NodeID: "a",
				FuelPrices: []models.FuelPrice{
					{FuelType: "B7_STANDARD", Price: fptr(145.9)},
					{FuelType: "E10", Price: fptr(135.9)},
				},
			},
		},
	}
	e := newTestEngine(testConfig(), f, clockwork.NewFakeClock())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	result := snap.ByFuel["E10"]
	require.Len(t, result.Top, 1)
	assert.Equal(t, 135.9, result.Top[0].Price)
	assert.Equal(t, "E10", result.Top[0].FuelType)
}

func TestRefresh_WatermarkAdvancesOnlyOnSuccess(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	f := &fakeFetcher{
		stations: []models.Station{station("a", homeLat+0.01, homeLon)},
		prices:   []models.PriceRecord{priceRecord("a", "E10", 135.9)},
	}
	e := newTestEngine(testConfig(), f, fc)

	assert.Equal(t, "", e.Watermark())

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28 12:00:00", e.Watermark())

	// A degraded cycle must not advance the watermark: the next
	// incremental fetch has to re-cover the outage window.
	fc.Advance(time.Hour)
	f.err = errors.New("provider down")
	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "2026-08-28 12:00:00", e.Watermark())

	// Recovery advances it again.
	fc.Advance(time.Hour)
	f.err = nil
	_, err = e.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28 14:00:00", e.Watermark())

	assert.Equal(t, []string{"", "2026-08-28 12:00:00", "2026-08-28 12:00:00"}, f.sinceSeen)
}

func TestRefresh_DegradedCycleServesCache(t *testing.T) {
	f := &fakeFetcher{
		stations: []models.Station{station("a", homeLat+0.01, homeLon)},
		prices:   []models.PriceRecord{priceRecord("a", "E10", 135.9)},
	}
	cfg := testConfig()
	cfg.ScanInterval = 24 * time.Hour
	cfg.RetryInterval = 5 * time.Minute
	e := newTestEngine(cfg, f, clockwork.NewFakeClock())

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)

	f.err = errors.New("provider down")
	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	// Cached data still produces a full result.
	assert.Len(t, snap.ByFuel["E10"].Top, 1)

	// A degraded cycle is not a failure: normal cadence is kept.
	assert.Equal(t, engine.PollNormal, e.State())
	assert.Equal(t, 24*time.Hour, e.Interval())
}

func TestRefresh_FailureWithEmptyCache(t *testing.T) {
	f := &fakeFetcher{err: errors.New("provider down")}
	cfg := testConfig()
	cfg.ScanInterval = 24 * time.Hour
	cfg.RetryInterval = 5 * time.Minute
	e := newTestEngine(cfg, f, clockwork.NewFakeClock())

	_, err := e.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, engine.PollRetrying, e.State())
	assert.Equal(t, 5*time.Minute, e.Interval())

	// A successful cycle restores the normal cadence.
	f.err = nil
	f.stations = []models.Station{station("a", homeLat+0.01, homeLon)}
	f.prices = []models.PriceRecord{priceRecord("a", "E10", 135.9)}
	_, err = e.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PollNormal, e.State())
	assert.Equal(t, 24*time.Hour, e.Interval())
}

func TestRefresh_MergeLastWriteWins(t *testing.T) {
	f := &fakeFetcher{
		stations: []models.Station{station("a", homeLat+0.01, homeLon)},
		prices:   []models.PriceRecord{priceRecord("a", "E10", 150.0)},
	}
	e := newTestEngine(testConfig(), f, clockwork.NewFakeClock())

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)

	// The incremental cycle re-delivers the same station with a new price.
	f.prices = []models.PriceRecord{priceRecord("a", "E10", 142.0)}
	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	result := snap.ByFuel["E10"]
	require.Len(t, result.Top, 1)
	assert.Equal(t, 142.0, result.Top[0].Price)

	stations, prices := e.CacheSize()
	assert.Equal(t, 1, stations)
	assert.Equal(t, 1, prices)
}

func TestRefresh_DrivingDistanceEnrichment(t *testing.T) {
	f := &fakeFetcher{
		stations: []models.Station{
			station("a", homeLat+0.01, homeLon),
			station("b", homeLat+0.02, homeLon),
		},
		prices: []models.PriceRecord{
			priceRecord("a", "E10", 130.0),
			priceRecord("b", "E10", 132.0),
		},
	}
	routes := &fakeRoutes{reply: []*float64{fptr(2.5), nil}}
	e := newTestEngine(testConfig(), f, clockwork.NewFakeClock())
	e.SetDistanceProvider(routes)

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	top := snap.ByFuel["E10"].Top
	require.Len(t, top, 2)
	require.NotNil(t, top[0].DrivingDistanceMiles)
	assert.Equal(t, 2.5, *top[0].DrivingDistanceMiles)
	assert.Nil(t, top[1].DrivingDistanceMiles)

	// Only the ranked stations are sent for enrichment, in rank order.
	require.Len(t, routes.dests, 2)
	assert.InDelta(t, homeLat+0.01, routes.dests[0].Lat, 1e-9)
	assert.InDelta(t, homeLat+0.02, routes.dests[1].Lat, 1e-9)
}

func TestRefresh_LabelsAndFallbackNames(t *testing.T) {
	anon := station("anon", homeLat+0.01, homeLon)
	anon.TradingName = ""
	anon.BrandName = ""

	f := &fakeFetcher{
		stations: []models.Station{anon},
		prices: []models.PriceRecord{
			priceRecord("anon", "E10", 135.9),
			priceRecord("anon", "E5", 150.9), // overwritten, same node id
		},
	}
	cfg := testConfig()
	cfg.FuelTypes = []string{"E10", "E5", "B7_STANDARD"}
	e := newTestEngine(cfg, f, clockwork.NewFakeClock())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"E10":         "Petrol (E10)",
		"E5":          "Petrol (E5)",
		"B7_STANDARD": "Diesel",
	}, snap.FuelLabels)

	top := snap.ByFuel["E5"].Top
	require.Len(t, top, 1)
	assert.Equal(t, "Unknown", top[0].StationName)
	assert.Equal(t, "Unknown", top[0].Brand)
	assert.Empty(t, top[0].BrandIcon)

	// Every selected fuel type appears even with no candidates.
	assert.Empty(t, snap.ByFuel["B7_STANDARD"].Top)
}
