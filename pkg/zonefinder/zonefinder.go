// Package zonefinder maps coordinates to IANA time zone names.
package zonefinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bradfitz/latlong"
	"github.com/ringsaturn/tzf"
)

// Finder looks up the IANA zone name for a coordinate.
// Init must complete before the first LookupZoneName call.
// LookupZoneName returns "" with a nil error when no zone covers the point.
type Finder interface {
	Init(ctx context.Context) error
	LookupZoneName(ctx context.Context, lat, lng float64) (string, error)
}

// ErrNotInitialized is returned by finders used before Init.
var ErrNotInitialized = errors.New("zone finder not initialized")

// TZF finds zones using the polygon data shipped with github.com/ringsaturn/tzf.
// Building the finder loads the full boundary set into memory, so it is
// done once, in Init.
type TZF struct {
	finder tzf.F
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewTZF creates an uninitialized tzf-backed finder.
func NewTZF(logger *slog.Logger) *TZF {
	if logger == nil {
		logger = slog.Default()
	}
	return &TZF{logger: logger}
}

// Init builds the underlying finder. Repeated calls are no-ops.
func (f *TZF) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finder != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.logger.Debug("initialising time zone finder")
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return fmt.Errorf("initializing tzf finder: %w", err)
	}
	f.finder = finder
	f.logger.Debug("time zone finder ready")
	return nil
}

// LookupZoneName returns the zone containing (lat, lng).
func (f *TZF) LookupZoneName(ctx context.Context, lat, lng float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.finder == nil {
		return "", ErrNotInitialized
	}
	// tzf takes longitude first.
	return f.finder.GetTimezoneName(lng, lat), nil
}

// LatLong finds zones using the compact shape tables of
// github.com/bradfitz/latlong. It is less precise near borders but needs no
// initialization.
type LatLong struct{}

// Init is a no-op; the tables are compiled in.
func (LatLong) Init(context.Context) error { return nil }

// LookupZoneName returns the zone containing (lat, lng).
func (LatLong) LookupZoneName(ctx context.Context, lat, lng float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	zone := latlong.LookupZoneName(lat, lng)
	if zone == "tables not generated yet" {
		return "", errors.New("latlong: tables data not initialized")
	}
	return zone, nil
}

// Chain asks each finder in turn and returns the first non-empty zone.
type Chain struct {
	logger  *slog.Logger
	finders []Finder
}

// NewChain creates a Chain over finders, in priority order.
func NewChain(logger *slog.Logger, finders ...Finder) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{logger: logger, finders: finders}
}

// Init initializes every finder. It fails only when none could be
// initialized; failing members are skipped by later lookups.
func (c *Chain) Init(ctx context.Context) error {
	var errs []error
	for i, f := range c.finders {
		if err := f.Init(ctx); err != nil {
			c.logger.Warn("zone finder init failed", "index", i, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(c.finders) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LookupZoneName returns the first non-empty answer. Errors are returned
// only if every finder failed.
func (c *Chain) LookupZoneName(ctx context.Context, lat, lng float64) (string, error) {
	var errs []error
	for i, f := range c.finders {
		zone, err := f.LookupZoneName(ctx, lat, lng)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			c.logger.Debug("zone finder failed, trying next", "index", i, "lat", lat, "lng", lng, "error", err)
			errs = append(errs, err)
			continue
		}
		if zone = strings.TrimSpace(zone); zone != "" {
			return zone, nil
		}
	}
	if len(errs) == len(c.finders) && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", nil
}
