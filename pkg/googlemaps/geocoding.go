// Package googlemaps resolves places and time zones through the Google Maps APIs.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
	"github.com/codeGROOVE-dev/retry"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// ErrNoAPIKey is returned when the client has no API key configured.
var ErrNoAPIKey = errors.New("google Maps API key not configured")

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client handles Google Maps API operations.
type Client struct {
	httpClient HTTPClient
	logger     *slog.Logger
	now        func() time.Time
	apiKey     string
	baseURL    string
	attempts   uint
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithAttempts sets how many times a request is tried before giving up.
func WithAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithNow sets the time source used for time zone timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Google Maps API client.
func NewClient(apiKey string, httpClient HTTPClient, logger *slog.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
		baseURL:    defaultBaseURL,
		attempts:   3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init verifies the client is usable as a zone finder.
func (c *Client) Init(_ context.Context) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// LookupZoneName returns the IANA zone for (lat, lng), or "" when Google
// reports no zone for the point (open ocean).
func (c *Client) LookupZoneName(ctx context.Context, lat, lng float64) (string, error) {
	return c.TimezoneForCoordinates(ctx, lat, lng)
}

// GeocodeLocation converts a place name to a normalized coordinate using the
// Geocoding API.
func (c *Client) GeocodeLocation(ctx context.Context, location string) (coord.Coordinate, error) {
	if c.apiKey == "" {
		c.logger.Warn("Google Maps API key not configured - skipping geocoding", "location", location)
		return coord.Coordinate{}, ErrNoAPIKey
	}

	apiURL := fmt.Sprintf("%s/geocode/json?address=%s&key=%s", c.baseURL, url.QueryEscape(location), c.apiKey)

	var result struct {
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, apiURL, &result); err != nil {
		return coord.Coordinate{}, fmt.Errorf("geocoding %s: %w", location, err)
	}

	if result.Status != "OK" || len(result.Results) == 0 {
		c.logger.Debug("geocoding failed", "location", location, "status", result.Status, "results_count", len(result.Results))
		return coord.Coordinate{}, fmt.Errorf("geocoding failed for %s: %s", location, result.Status)
	}

	first := result.Results[0]
	c.logger.Debug("geocoded location", "location", location, "address", first.FormattedAddress,
		"lat", first.Geometry.Location.Lat, "lng", first.Geometry.Location.Lng)
	return coord.Normalize(first.Geometry.Location.Lat, first.Geometry.Location.Lng), nil
}

// TimezoneForCoordinates gets the timezone for given coordinates using the
// Time Zone API.
func (c *Client) TimezoneForCoordinates(ctx context.Context, lat, lng float64) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	apiURL := fmt.Sprintf("%s/timezone/json?location=%f,%f&timestamp=%s&key=%s",
		c.baseURL, lat, lng, timestamp, c.apiKey)

	var result struct {
		TimeZoneID   string `json:"timeZoneId"`
		TimeZoneName string `json:"timeZoneName"`
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := c.getJSON(ctx, apiURL, &result); err != nil {
		return "", fmt.Errorf("timezone lookup: %w", err)
	}

	switch result.Status {
	case "OK":
		return result.TimeZoneID, nil
	case "ZERO_RESULTS":
		return "", nil
	default:
		if result.ErrorMessage != "" {
			return "", fmt.Errorf("timezone API failed: %s", result.ErrorMessage)
		}
		return "", fmt.Errorf("timezone API failed with status: %s", result.Status)
	}
}

// getJSON fetches apiURL with retries and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, apiURL string, v any) error {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					c.logger.Debug("failed to close response body", "error", err)
				}
			}()

			b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return err
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying Google Maps request", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Debug("google maps JSON parse error", "error", err)
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Cacheable reports whether body is a definitive Maps answer worth caching.
// Quota and auth errors arrive as 200 responses and must be asked again.
func Cacheable(body []byte) bool {
	var r struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return false
	}
	return r.Status == "OK" || r.Status == "ZERO_RESULTS"
}
