// Package geo provides great-circle distance helpers.
package geo

import "math"

// earthRadiusMiles is the mean Earth radius in miles.
const earthRadiusMiles = 3958.8

// metresPerMile is the exact number of metres in a statute mile.
const metresPerMile = 1609.344

// HaversineMiles returns the great-circle distance in miles between two
// points given in decimal degrees.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	lat1R := lat1 * math.Pi / 180
	lat2R := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1R)*math.Cos(lat2R)*math.Pow(math.Sin(dLon/2), 2)
	return earthRadiusMiles * 2 * math.Asin(math.Sqrt(a))
}

// MetresToMiles converts metres to miles rounded to a tenth of a mile.
func MetresToMiles(m float64) float64 {
	return math.Round(m/metresPerMile*10) / 10
}

// RoundTenth rounds a distance to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
