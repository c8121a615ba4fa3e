package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	t.Setenv("CHIMETZ_MAPS_KEY", "")

	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "chain", cfg.Finder)
	assert.Equal(t, "ip", cfg.Geo)
	assert.Equal(t, time.Duration(0), cfg.Debounce)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 10_000, cfg.CacheSize)
	assert.Equal(t, 2*time.Second, cfg.ChimeDuration)
	assert.True(t, cfg.DayStrip)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.MapsKey)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chimetz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("finder: latlong\ngeo: static\nlat: 51.5\nlng: -0.12\ndebounce: 300ms\n"), 0o600))

	t.Setenv("CHIMETZ_GEO", "none")
	t.Setenv("GOOGLE_MAPS_API_KEY", "from-env")

	cfg, err := loadConfig([]string{"--config", path, "--debounce", "1s"})
	require.NoError(t, err)
	assert.Equal(t, "latlong", cfg.Finder, "file beats default")
	assert.Equal(t, "none", cfg.Geo, "env beats file")
	assert.Equal(t, time.Second, cfg.Debounce, "flag beats file")
	assert.InDelta(t, 51.5, cfg.Lat, 1e-9)
	assert.InDelta(t, -0.12, cfg.Lng, 1e-9)
	assert.Equal(t, "from-env", cfg.MapsKey)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	t.Setenv("CHIMETZ_MAPS_KEY", "")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown finder", []string{"--finder", "gemini"}},
		{"unknown geo", []string{"--geo", "gps"}},
		{"google without key", []string{"--finder", "google"}},
		{"negative debounce", []string{"--debounce=-1s"}},
		{"missing config file", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigHelp(t *testing.T) {
	_, err := loadConfig([]string{"--help"})
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}
