package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fuelwatch/fuel-price-watcher/internal/geo"
)

func TestHaversineMiles_ZeroDistance(t *testing.T) {
	assert.Equal(t, 0.0, geo.HaversineMiles(0, 0, 0, 0))
	assert.Equal(t, 0.0, geo.HaversineMiles(51.5, -0.12, 51.5, -0.12))
}

func TestHaversineMiles_Symmetric(t *testing.T) {
	a := geo.HaversineMiles(51.5074, -0.1278, 53.4808, -2.2426)
	b := geo.HaversineMiles(53.4808, -2.2426, 51.5074, -0.1278)
	assert.InDelta(t, a, b, 1e-9)
}

func TestHaversineMiles_KnownDistance(t *testing.T) {
	// London to Manchester is roughly 163 miles as the crow flies.
	d := geo.HaversineMiles(51.5074, -0.1278, 53.4808, -2.2426)
	assert.InDelta(t, 163, d, 3)
}

func TestHaversineMiles_MonotonicWithSeparation(t *testing.T) {
	near := geo.HaversineMiles(51.5, 0, 51.6, 0)
	far := geo.HaversineMiles(51.5, 0, 51.8, 0)
	assert.Greater(t, far, near)
}

func TestMetresToMiles(t *testing.T) {
	assert.Equal(t, 1.0, geo.MetresToMiles(1609.344))
	assert.Equal(t, 3.1, geo.MetresToMiles(5000))
	assert.Equal(t, 0.0, geo.MetresToMiles(0))
}

func TestRoundTenth(t *testing.T) {
	assert.Equal(t, 2.5, geo.RoundTenth(2.45))
	assert.Equal(t, 2.4, geo.RoundTenth(2.44))
}
