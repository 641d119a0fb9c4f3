// Package fuelfinder provides an API client for the GOV.UK Fuel Finder service.
package fuelfinder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/fuelwatch/fuel-price-watcher/internal/models"
)

const (
	// DefaultTokenURL is the OAuth token endpoint.
	DefaultTokenURL = "https://www.fuel-finder.service.gov.uk/api/v1/oauth/generate_access_token"
	// DefaultStationsURL is the station listing endpoint.
	DefaultStationsURL = "https://www.fuel-finder.service.gov.uk/api/v1/pfs"
	// DefaultPricesURL is the fuel price listing endpoint.
	DefaultPricesURL = "https://www.fuel-finder.service.gov.uk/api/v1/pfs/fuel-prices"

	// BatchSize is the provider's fixed page size. A page with fewer
	// records signals the last page.
	BatchSize = 500

	// TimestampLayout is the provider's effective-start-timestamp format (UTC).
	TimestampLayout = "2006-01-02 15:04:05"

	// tokenScope requested during the client-credentials exchange.
	tokenScope = "fuelfinder.read"

	// tokenExpiryBuffer forces a refresh when the token has less than
	// this long left to live.
	tokenExpiryBuffer = 60 * time.Second

	// batchPacing is the delay between pages. The provider allows around
	// 30 requests per minute with a single concurrent request.
	batchPacing = 2 * time.Second

	defaultMaxRetries = 3
)

// MetricsRecorder receives API request observations. Implemented by the
// HTTP layer's Prometheus metrics; a nil recorder disables instrumentation.
type MetricsRecorder interface {
	RecordAPIRequest(endpoint, outcome string, seconds float64)
}

// Client is an authenticated client for the Fuel Finder API. It is not
// safe for concurrent use; the refresh cycle is strictly sequential.
type Client struct {
	httpClient   *http.Client
	clock        clockwork.Clock
	logger       zerolog.Logger
	clientID     string
	clientSecret string
	maxRetries   int
	metrics      MetricsRecorder

	tokenURL    string
	stationsURL string
	pricesURL   string

	accessToken string
	tokenExpiry time.Time
}

// New creates a Fuel Finder API client using the production endpoints.
func New(clientID, clientSecret string, clock clockwork.Clock, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		clock:        clock,
		logger:       logger.With().Str("component", "fuelfinder").Logger(),
		clientID:     clientID,
		clientSecret: clientSecret,
		maxRetries:   defaultMaxRetries,
		tokenURL:     DefaultTokenURL,
		stationsURL:  DefaultStationsURL,
		pricesURL:    DefaultPricesURL,
	}
}

// SetEndpoints overrides the provider endpoints. Used by tests.
func (c *Client) SetEndpoints(tokenURL, stationsURL, pricesURL string) {
	c.tokenURL = tokenURL
	c.stationsURL = stationsURL
	c.pricesURL = pricesURL
}

// SetMetrics attaches a metrics recorder to the client.
func (c *Client) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// tokenEnvelope matches both the wrapped ({"data": {...}}) and flat token
// response shapes.
type tokenEnvelope struct {
	Data        *tokenPayload `json:"data"`
	AccessToken string        `json:"access_token"`
	ExpiresIn   float64       `json:"expires_in"`
}

type tokenPayload struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

// ensureToken obtains an OAuth access token unless the cached one is still
// valid for at least tokenExpiryBuffer.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.accessToken != "" && c.clock.Now().Before(c.tokenExpiry.Add(-tokenExpiryBuffer)) {
		return nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {tokenScope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Err: fmt.Errorf("connection error during auth: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Err: fmt.Errorf("reading token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var env tokenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &APIError{Err: fmt.Errorf("parsing token response: %w", err)}
	}

	payload := tokenPayload{AccessToken: env.AccessToken, ExpiresIn: env.ExpiresIn}
	if env.Data != nil {
		payload = *env.Data
	}
	if payload.AccessToken == "" {
		return &APIError{StatusCode: resp.StatusCode, Body: "token response missing access_token"}
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}

	c.accessToken = payload.AccessToken
	c.tokenExpiry = c.clock.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)

	c.logger.Debug().
		Time("expiry", c.tokenExpiry).
		Msg("obtained access token")

	return nil
}

// get performs an authenticated GET with retry.
//
// A 401 triggers a single token refresh and one retry of the same request.
// 500/502/503/504 and transport errors are retried with exponential backoff
// (2s, 4s, 8s). Any other non-200 status is terminal.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.ensureToken(ctx); err != nil {
			return nil, err
		}

		status, body, err := c.doGet(ctx, rawURL, params)
		if err != nil {
			lastErr = err
			c.logger.Warn().
				Err(err).
				Str("url", rawURL).
				Int("attempt", attempt).
				Int("maxRetries", c.maxRetries).
				Msg("connection error, retrying")
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, backoffDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, &APIError{Err: fmt.Errorf("connection failed after %d attempts: %w", c.maxRetries, err)}
		}

		switch {
		case status == http.StatusOK:
			return body, nil

		case status == http.StatusUnauthorized:
			// Token may have expired early; refresh once and retry the
			// same request immediately.
			c.logger.Debug().Int("attempt", attempt).Msg("got 401, refreshing token")
			c.accessToken = ""
			if err := c.ensureToken(ctx); err != nil {
				return nil, err
			}
			retryStatus, retryBody, err := c.doGet(ctx, rawURL, params)
			if err != nil {
				return nil, &APIError{Err: fmt.Errorf("retry after token refresh: %w", err)}
			}
			if retryStatus != http.StatusOK {
				return nil, &APIError{StatusCode: retryStatus, Body: string(retryBody)}
			}
			return retryBody, nil

		case retryableStatus(status):
			lastErr = &APIError{StatusCode: status, Body: string(body)}
			c.logger.Warn().
				Int("status", status).
				Str("url", rawURL).
				Int("attempt", attempt).
				Int("maxRetries", c.maxRetries).
				Msg("server error, retrying")
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, backoffDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr

		default:
			return nil, &APIError{StatusCode: status, Body: string(body)}
		}
	}

	if lastErr == nil {
		lastErr = &APIError{Err: fmt.Errorf("request failed after all retries")}
	}
	return nil, lastErr
}

// doGet issues a single bearer-authenticated GET and returns status and body.
func (c *Client) doGet(ctx context.Context, rawURL string, params url.Values) (int, []byte, error) {
	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(rawURL, "error", c.clock.Since(start))
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(rawURL, "error", c.clock.Since(start))
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}

	c.observe(rawURL, strconv.Itoa(resp.StatusCode), c.clock.Since(start))
	return resp.StatusCode, body, nil
}

func (c *Client) observe(rawURL, outcome string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	endpoint := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		endpoint = u.Path
	}
	c.metrics.RecordAPIRequest(endpoint, outcome, elapsed.Seconds())
}

// sleep waits for d on the injected clock, returning early if ctx is done.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// decodePage normalises one page payload into a record list. The provider
// sometimes returns a bare array and sometimes wraps it under "results" or
// "data"; the ambiguity stops here.
func decodePage(body []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Results []json.RawMessage `json:"results"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing page payload: %w", err)
	}
	if wrapped.Results != nil {
		return wrapped.Results, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return nil, nil
}

// fetchAllBatches walks the provider's 1-based pagination, tolerating
// individual page failures.
//
// Termination: two consecutive empty pages, or a page shorter than
// BatchSize (included). A failed page is skipped and fetching continues,
// but two failures on consecutive page numbers abort the run. If nothing
// at all was fetched and at least one page failed, the whole run fails.
func (c *Client) fetchAllBatches(ctx context.Context, rawURL, label, since string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	var failedBatches []int
	batch := 1
	consecutiveEmpty := 0

	for {
		if batch > 1 {
			if err := c.sleep(ctx, batchPacing); err != nil {
				return nil, err
			}
		}

		params := url.Values{"batch-number": {strconv.Itoa(batch)}}
		if since != "" {
			params.Set("effective-start-timestamp", since)
		}

		body, err := c.get(ctx, rawURL, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			failedBatches = append(failedBatches, batch)
			c.logger.Warn().
				Err(err).
				Str("label", label).
				Int("batch", batch).
				Msg("batch failed, skipping to next batch")
			n := len(failedBatches)
			if n >= 2 && failedBatches[n-1] == failedBatches[n-2]+1 {
				c.logger.Error().
					Str("label", label).
					Ints("failedBatches", failedBatches).
					Msg("two consecutive batch failures, stopping")
				break
			}
			batch++
			continue
		}

		records, err := decodePage(body)
		if err != nil {
			failedBatches = append(failedBatches, batch)
			c.logger.Warn().
				Err(err).
				Str("label", label).
				Int("batch", batch).
				Msg("unparsable batch, skipping to next batch")
			n := len(failedBatches)
			if n >= 2 && failedBatches[n-1] == failedBatches[n-2]+1 {
				break
			}
			batch++
			continue
		}

		if len(records) == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= 2 {
				break
			}
			c.logger.Debug().
				Str("label", label).
				Int("batch", batch).
				Msg("empty batch, trying next batch")
			batch++
			continue
		}

		consecutiveEmpty = 0
		all = append(all, records...)
		c.logger.Debug().
			Str("label", label).
			Int("batch", batch).
			Int("records", len(records)).
			Int("total", len(all)).
			Msg("fetched batch")

		if len(records) < BatchSize {
			break
		}
		batch++
	}

	if len(failedBatches) > 0 {
		c.logger.Warn().
			Str("label", label).
			Ints("failedBatches", failedBatches).
			Int("records", len(all)).
			Msg("completed with failed batches")
	} else {
		c.logger.Debug().
			Str("label", label).
			Int("records", len(all)).
			Int("batches", batch).
			Msg("fetch complete")
	}

	if len(all) == 0 && len(failedBatches) > 0 {
		return nil, &APIError{Err: fmt.Errorf("failed to fetch any %s records: all batches failed", strings.ToLower(label))}
	}

	return all, nil
}

// FetchAllStations fetches station records across all batches. A non-empty
// since timestamp (TimestampLayout, UTC) requests only records changed
// since that instant.
func (c *Client) FetchAllStations(ctx context.Context, since string) ([]models.Station, error) {
	label := "stations (full)"
	if since != "" {
		label = "stations (incremental)"
	}

	raw, err := c.fetchAllBatches(ctx, c.stationsURL, label, since)
	if err != nil {
		return nil, err
	}

	stations := make([]models.Station, 0, len(raw))
	for _, r := range raw {
		var s models.Station
		if err := json.Unmarshal(r, &s); err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed station record")
			continue
		}
		stations = append(stations, s)
	}
	return stations, nil
}

// FetchAllPrices fetches fuel price records across all batches. Incremental
// semantics match FetchAllStations.
func (c *Client) FetchAllPrices(ctx context.Context, since string) ([]models.PriceRecord, error) {
	label := "prices (full)"
	if since != "" {
		label = "prices (incremental)"
	}

	raw, err := c.fetchAllBatches(ctx, c.pricesURL, label, since)
	if err != nil {
		return nil, err
	}

	prices := make([]models.PriceRecord, 0, len(raw))
	for _, r := range raw {
		var p models.PriceRecord
		if err := json.Unmarshal(r, &p); err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed price record")
			continue
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// TestConnection validates the configured credentials by forcing a token
// acquisition.
func (c *Client) TestConnection(ctx context.Context) error {
	c.accessToken = ""
	return c.ensureToken(ctx)
}
