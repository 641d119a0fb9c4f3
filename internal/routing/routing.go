// Package routing provides driving-distance enrichment via the
// OpenRouteService matrix API.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelwatch/fuel-price-watcher/internal/geo"
)

// DefaultMatrixURL is the OpenRouteService driving-car matrix endpoint.
const DefaultMatrixURL = "https://api.openrouteservice.org/v2/matrix/driving-car"

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Client calls the ORS matrix API. Enrichment is best-effort: every
// failure mode degrades to nil distances, never to an error.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
	apiKey     string
	matrixURL  string
}

// New creates a routing client with the given ORS API key.
func New(apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger.With().Str("component", "routing").Logger(),
		apiKey:    apiKey,
		matrixURL: DefaultMatrixURL,
	}
}

// SetMatrixURL overrides the matrix endpoint. Used by tests.
func (c *Client) SetMatrixURL(u string) {
	c.matrixURL = u
}

type matrixRequest struct {
	Locations    [][2]float64 `json:"locations"`
	Sources      []int        `json:"sources"`
	Destinations []int        `json:"destinations"`
	Metrics      []string     `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
}

// Distances returns driving distances in miles from home to each
// destination, aligned with dests. A nil entry means no distance could be
// determined for that destination.
func (c *Client) Distances(ctx context.Context, home Coordinate, dests []Coordinate) []*float64 {
	if len(dests) == 0 {
		return nil
	}

	// ORS expects [longitude, latitude] pairs.
	locations := make([][2]float64, 0, len(dests)+1)
	locations = append(locations, [2]float64{home.Lon, home.Lat})
	for _, d := range dests {
		locations = append(locations, [2]float64{d.Lon, d.Lat})
	}

	destinations := make([]int, len(dests))
	for i := range dests {
		destinations[i] = i + 1
	}

	body, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      []int{0},
		Destinations: destinations,
		Metrics:      []string{"distance"},
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("encoding matrix request")
		return make([]*float64, len(dests))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.matrixURL, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn().Err(err).Msg("creating matrix request")
		return make([]*float64, len(dests))
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("matrix request failed")
		return make([]*float64, len(dests))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("matrix request rejected")
		return make([]*float64, len(dests))
	}

	var matrix matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&matrix); err != nil {
		c.logger.Warn().Err(err).Msg("decoding matrix response")
		return make([]*float64, len(dests))
	}

	results := make([]*float64, len(dests))
	if len(matrix.Distances) == 0 {
		return results
	}
	for i, metres := range matrix.Distances[0] {
		if i >= len(results) {
			break
		}
		if metres == nil || *metres < 0 {
			continue
		}
		miles := geo.MetresToMiles(*metres)
		results[i] = &miles
	}
	return results
}
