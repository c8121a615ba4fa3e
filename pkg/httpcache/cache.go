// Package httpcache caches successful GET responses in memory, optionally
// persisted to a directory so place lookups survive restarts.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/maypok86/otter/v2"
)

const (
	fileName     = "httpcache.gob"
	saveInterval = 15 * time.Minute
	maxBody      = 1 << 20
)

// Entry is one cached response body.
type Entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Cache holds response bodies keyed by a hash of the request URL.
type Cache struct {
	cache  *otter.Cache[string, Entry]
	clock  quartz.Clock
	logger *slog.Logger
	saver  quartz.Waiter
	cancel context.CancelFunc
	dir    string
	ttl    time.Duration
	mu     sync.Mutex // serializes disk writes
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for expiry and periodic saves.
func WithClock(c quartz.Clock) Option {
	return func(cc *Cache) {
		cc.clock = c
	}
}

// New creates a cache. With an empty dir it is memory only; otherwise
// entries are loaded from dir and saved back periodically and on Close.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      10_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		clock:  quartz.NewReal(),
		logger: logger,
		dir:    dir,
		ttl:    ttl,
	}
	for _, opt := range opts {
		opt(c)
	}
	if dir == "" {
		return c, nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if err := c.loadFromDisk(); err != nil {
		logger.Warn("failed to load cache from disk", "error", err)
	}
	logger.Debug("cache initialized", "dir", dir, "entries_loaded", c.cache.EstimatedSize())

	saveCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.saver = c.clock.TickerFunc(saveCtx, saveInterval, func() error {
		if err := c.saveToDisk(); err != nil {
			c.logger.Error("periodic cache save failed", "error", err)
		}
		return nil
	}, "httpcache", "save")
	return c, nil
}

func key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

// Get returns the cached body for url.
func (c *Cache) Get(url string) ([]byte, bool) {
	k := key(url)
	entry, found := c.cache.GetIfPresent(k)
	if !found {
		return nil, false
	}
	if !c.clock.Now().Before(entry.ExpiresAt) {
		c.cache.Invalidate(k)
		return nil, false
	}
	return entry.Data, true
}

// Set stores data for url.
func (c *Cache) Set(url string, data []byte) {
	c.cache.Set(key(url), Entry{Data: data, ExpiresAt: c.clock.Now().Add(c.ttl)})
}

// Len returns the approximate number of entries.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *Cache) loadFromDisk() error {
	path := filepath.Join(c.dir, fileName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}
	now := c.clock.Now()
	for k, e := range entries {
		if now.Before(e.ExpiresAt) {
			c.cache.Set(k, e)
		}
	}
	return nil
}

func (c *Cache) saveToDisk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, fileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("failed to remove temp file", "error", err)
		}
	}()

	entries := make(map[string]Entry)
	now := c.clock.Now()
	for k, e := range c.cache.All() {
		if now.Before(e.ExpiresAt) {
			entries[k] = e
		}
	}
	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.logger.Debug("cache saved to disk", "entries", len(entries), "path", path)
	return nil
}

// Close stops periodic saving and writes the cache to disk one last time.
func (c *Cache) Close() error {
	if c.dir == "" {
		return nil
	}
	c.cancel()
	_ = c.saver.Wait() //nolint:errcheck // always context.Canceled
	return c.saveToDisk()
}

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client serves GET requests from a Cache, filling it from next on a miss.
// Only 200 responses whose body passes the cacheable check are stored.
type Client struct {
	cache     *Cache
	next      HTTPClient
	logger    *slog.Logger
	cacheable func(body []byte) bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCacheable sets the check a 200 body must pass to be stored. APIs that
// report errors inside a 200 response use it to keep those out of the cache.
func WithCacheable(fn func(body []byte) bool) ClientOption {
	return func(c *Client) {
		c.cacheable = fn
	}
}

// NewClient wraps next with cache.
func NewClient(cache *Cache, next HTTPClient, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{cache: cache, next: next, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs req, answering from the cache when possible.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || req.Method != http.MethodGet {
		return c.next.Do(req)
	}

	url := req.URL.String()
	if data, ok := c.cache.Get(url); ok {
		c.logger.Debug("cache hit", "host", req.URL.Host, "path", req.URL.Path)
		resp := &http.Response{
			Status:     "200 OK",
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		return resp, nil
	}

	resp, err := c.next.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, err
	}
	if c.cacheable == nil || c.cacheable(body) {
		c.cache.Set(url, body)
	} else {
		c.logger.Debug("response not cacheable", "host", req.URL.Host, "path", req.URL.Path)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
