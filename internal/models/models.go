// Package models provides shared data types for the fuel price watcher.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexFloat decodes a JSON value that may arrive as a number, a numeric
// string, or null. The provider is not consistent about coordinate types.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parsing coordinate %q: %w", s, err)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Location is the address block embedded in a station record.
type Location struct {
	Latitude     FlexFloat `json:"latitude"`
	Longitude    FlexFloat `json:"longitude"`
	AddressLine1 string    `json:"address_line_1"`
	AddressLine2 string    `json:"address_line_2"`
	City         string    `json:"city"`
	Postcode     string    `json:"postcode"`
}

// Station is a raw station record as returned by the provider. A later
// record with the same NodeID supersedes the cached one.
type Station struct {
	NodeID           string   `json:"node_id"`
	BrandName        string   `json:"brand_name"`
	TradingName      string   `json:"trading_name"`
	PermanentClosure bool     `json:"permanent_closure"`
	TemporaryClosure bool     `json:"temporary_closure"`
	Location         Location `json:"location"`
}

// FuelPrice is a single per-fuel-type entry within a price record.
type FuelPrice struct {
	FuelType         string   `json:"fuel_type"`
	Price            *float64 `json:"price"`
	PriceLastUpdated string   `json:"price_last_updated"`
}

// PriceRecord is a raw price record as returned by the provider, joined
// to a Station via NodeID.
type PriceRecord struct {
	NodeID     string      `json:"node_id"`
	FuelPrices []FuelPrice `json:"fuel_prices"`
}

// NearbyStation is a station that survived the geofilter: open, with valid
// coordinates, within the configured radius of home.
type NearbyStation struct {
	NodeID        string  `json:"node_id"`
	StationName   string  `json:"station_name"`
	Brand         string  `json:"brand"`
	BrandIcon     string  `json:"brand_icon,omitempty"`
	Address       string  `json:"address"`
	Postcode      string  `json:"postcode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DistanceMiles float64 `json:"distance_miles"`
}

// PriceCandidate is a NearbyStation with a sanitised price for one fuel type.
type PriceCandidate struct {
	NearbyStation
	Price                float64  `json:"price"`
	FuelType             string   `json:"fuel_type"`
	LastUpdate           string   `json:"last_update"`
	DrivingDistanceMiles *float64 `json:"driving_distance_miles,omitempty"`
}

// FuelResult is the per-fuel-type output of a refresh cycle.
type FuelResult struct {
	// Top holds up to 3 candidates, cheapest first, distance breaking ties.
	Top []PriceCandidate `json:"top3"`
	// Stations maps node_id to every matched candidate, not just the top 3.
	Stations map[string]PriceCandidate `json:"stations"`
}

// Snapshot is the full result of a refresh cycle.
type Snapshot struct {
	FuelLabels map[string]string     `json:"fuel_labels"`
	ByFuel     map[string]FuelResult `json:"by_fuel"`
	UpdatedAt  time.Time             `json:"updated_at"`
}
