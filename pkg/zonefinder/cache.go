package zonefinder

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/maypok86/otter/v2"
)

// Cached memoizes another Finder's answers, keyed by coordinate.
// Callers are expected to pass normalized coordinates so that repeated
// marker positions hit the same key. Empty answers are cached too; errors
// are not.
type Cached struct {
	next   Finder
	cache  *otter.Cache[string, string]
	logger *slog.Logger
}

// NewCached wraps next with an in-memory cache of at most size entries,
// each kept for ttl.
func NewCached(next Finder, size int, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 10_000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{
		next: next,
		cache: otter.Must(&otter.Options[string, string]{
			MaximumSize:      size,
			ExpiryCalculator: otter.ExpiryWriting[string, string](ttl),
		}),
		logger: logger,
	}
}

// Init initializes the wrapped finder.
func (c *Cached) Init(ctx context.Context) error {
	return c.next.Init(ctx)
}

// LookupZoneName serves from cache when possible.
func (c *Cached) LookupZoneName(ctx context.Context, lat, lng float64) (string, error) {
	key := cacheKey(lat, lng)
	if zone, found := c.cache.GetIfPresent(key); found {
		c.logger.Debug("zone cache hit", "lat", lat, "lng", lng, "zone", zone)
		return zone, nil
	}

	zone, err := c.next.LookupZoneName(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, zone)
	c.logger.Debug("zone cache set", "lat", lat, "lng", lng, "zone", zone)
	return zone, nil
}

// Len returns the approximate number of cached entries.
func (c *Cached) Len() int {
	return c.cache.EstimatedSize()
}

func cacheKey(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', 6, 64) + "," + strconv.FormatFloat(lng, 'f', 6, 64)
}
