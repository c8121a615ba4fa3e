package httpcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "body:"+r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func get(t *testing.T, c *Client, url string) (int, string, bool) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b), resp.Header.Get("X-From-Cache") == "true"
}

func TestClientCachesSuccessfulGets(t *testing.T) {
	srv, calls := newCountingServer(t)
	cache, err := New(context.Background(), "", time.Hour, nil)
	require.NoError(t, err)
	c := NewClient(cache, srv.Client(), nil)

	status, body, hit := get(t, c, srv.URL+"/geocode")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "body:/geocode", body)
	assert.False(t, hit)

	_, body, hit = get(t, c, srv.URL+"/geocode")
	assert.Equal(t, "body:/geocode", body)
	assert.True(t, hit)
	assert.Equal(t, int32(1), calls.Load())

	status, _, _ = get(t, c, srv.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, status)
	get(t, c, srv.URL+"/missing")
	assert.Equal(t, int32(3), calls.Load(), "errors must not be cached")
}

func TestClientSkipsUncacheableBodies(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"status":"OVER_QUERY_LIMIT"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"OK"}`)
	}))
	t.Cleanup(srv.Close)

	cache, err := New(context.Background(), "", time.Hour, nil)
	require.NoError(t, err)
	c := NewClient(cache, srv.Client(), nil, WithCacheable(func(body []byte) bool {
		return !strings.Contains(string(body), "OVER_QUERY_LIMIT")
	}))

	status, body, hit := get(t, c, srv.URL+"/geocode")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"OVER_QUERY_LIMIT"}`, body, "the caller still sees the body")
	assert.False(t, hit)
	assert.Zero(t, cache.Len())

	_, body, hit = get(t, c, srv.URL+"/geocode")
	assert.JSONEq(t, `{"status":"OK"}`, body)
	assert.False(t, hit)
	assert.Equal(t, int32(2), calls.Load())

	_, _, hit = get(t, c, srv.URL+"/geocode")
	assert.True(t, hit)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEntriesExpire(t *testing.T) {
	clock := quartz.NewMock(t)
	cache, err := New(context.Background(), "", time.Minute, nil, WithClock(clock))
	require.NoError(t, err)

	cache.Set("https://example.com/a", []byte("a"))
	data, ok := cache.Get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "a", string(data))

	clock.Advance(time.Minute)
	_, ok = cache.Get("https://example.com/a")
	assert.False(t, ok)
}

func TestPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := New(ctx, dir, time.Hour, nil)
	require.NoError(t, err)
	first.Set("https://example.com/place", []byte("Tokyo"))
	require.NoError(t, first.Close())

	second, err := New(ctx, dir, time.Hour, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, second.Close()) }()

	data, ok := second.Get("https://example.com/place")
	require.True(t, ok)
	assert.Equal(t, "Tokyo", string(data))
}
