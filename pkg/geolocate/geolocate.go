// Package geolocate provides position sources for the chime engine.
package geolocate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/chime"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
)

const defaultIPURL = "http://ip-api.com/json/?fields=status,message,lat,lon,city,country,timezone,query"

// Static always reports the same configured position.
type Static struct {
	pos coord.Coordinate
	set bool
}

// NewStatic returns a Static that reports (lat, lng).
func NewStatic(lat, lng float64) *Static {
	return &Static{pos: coord.Normalize(lat, lng), set: coord.Coordinate{Lat: lat, Lng: lng}.Finite()}
}

// Denied is a geolocator whose permission prompt was refused.
type Denied struct{}

// CurrentPosition always fails with chime.ErrGeolocationDenied.
func (Denied) CurrentPosition(context.Context) (coord.Coordinate, error) {
	return coord.Coordinate{}, chime.ErrGeolocationDenied
}

// CurrentPosition returns the configured position.
func (s *Static) CurrentPosition(ctx context.Context) (coord.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return coord.Coordinate{}, err
	}
	if s == nil || !s.set {
		return coord.Coordinate{}, fmt.Errorf("%w: no static position configured", chime.ErrGeolocationUnavailable)
	}
	return s.pos, nil
}

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// IP estimates the position from the public IP address using ip-api.com.
type IP struct {
	httpClient HTTPClient
	logger     *slog.Logger
	url        string
	attempts   uint
}

// IPOption configures an IP geolocator.
type IPOption func(*IP)

// WithURL points the geolocator at a different endpoint, e.g. a test server.
func WithURL(u string) IPOption {
	return func(g *IP) {
		g.url = u
	}
}

// WithAttempts sets how many times the request is tried.
func WithAttempts(n uint) IPOption {
	return func(g *IP) {
		if n > 0 {
			g.attempts = n
		}
	}
}

// NewIP creates an IP geolocator.
func NewIP(httpClient HTTPClient, logger *slog.Logger, opts ...IPOption) *IP {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &IP{
		httpClient: httpClient,
		logger:     logger,
		url:        defaultIPURL,
		attempts:   3,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type ipResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	City     string  `json:"city"`
	Country  string  `json:"country"`
	Timezone string  `json:"timezone"`
	Query    string  `json:"query"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// CurrentPosition asks ip-api.com where the caller's address is.
// Every failure is reported as chime.ErrGeolocationUnavailable.
func (g *IP) CurrentPosition(ctx context.Context) (coord.Coordinate, error) {
	var result ipResponse
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := g.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					g.logger.Debug("failed to close response body", "error", err)
				}
			}()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}
			b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &result); err != nil {
				return retry.Unrecoverable(fmt.Errorf("parsing response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(250*time.Millisecond),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Debug("retrying IP geolocation", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return coord.Coordinate{}, ctx.Err()
		}
		return coord.Coordinate{}, fmt.Errorf("%w: %w", chime.ErrGeolocationUnavailable, err)
	}

	if !strings.EqualFold(result.Status, "success") {
		return coord.Coordinate{}, fmt.Errorf("%w: ip-api: %s", chime.ErrGeolocationUnavailable, result.Message)
	}
	c := coord.Coordinate{Lat: result.Lat, Lng: result.Lon}
	if !c.Finite() {
		return coord.Coordinate{}, fmt.Errorf("%w: ip-api returned a non-finite position", chime.ErrGeolocationUnavailable)
	}

	g.logger.Debug("estimated position from IP", "ip", result.Query, "city", result.City,
		"country", result.Country, "timezone", result.Timezone, "lat", c.Lat, "lng", c.Lng)
	return c.Normalize(), nil
}
