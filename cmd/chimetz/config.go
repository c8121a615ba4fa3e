package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	finderKinds = []string{"tzf", "latlong", "google", "chain"}
	geoKinds    = []string{"static", "ip", "none"}
)

type config struct {
	Finder        string
	MapsKey       string
	Geo           string
	CacheDir      string
	Debounce      time.Duration
	CacheTTL      time.Duration
	ChimeDuration time.Duration
	CacheSize     int
	Lat           float64
	Lng           float64
	DayStrip      bool
	Verbose       bool
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("chimetz", pflag.ContinueOnError)
	fs.String("config", "", "Config file (JSON, YAML or TOML)")
	fs.String("finder", "chain", "Time zone finder: tzf, latlong, google or chain")
	fs.String("maps-key", "", "Google Maps API key (or set GOOGLE_MAPS_API_KEY)")
	fs.Duration("debounce", 0, "Wait this long after the last marker move before looking up its zone")
	fs.Duration("cache-ttl", 24*time.Hour, "How long resolved zones are cached")
	fs.Int("cache-size", 10_000, "Maximum number of cached zone lookups")
	fs.String("cache-dir", "", "Directory for the on-disk place lookup cache (empty keeps it in memory)")
	fs.String("geo", "ip", "Position source: static, ip or none")
	fs.Float64("lat", 0, "Latitude reported by --geo=static")
	fs.Float64("lng", 0, "Longitude reported by --geo=static")
	fs.Duration("chime-duration", 2*time.Second, "How long a chime plays")
	fs.Bool("day-strip", true, "Draw a 24-hour strip under each chime")
	fs.Bool("verbose", false, "Enable verbose logging")
	return fs
}

// loadConfig resolves settings from flags, then CHIMETZ_* environment
// variables, then the optional config file, then defaults.
func loadConfig(args []string) (*config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	v.SetEnvPrefix("CHIMETZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("maps-key", "CHIMETZ_MAPS_KEY", "GOOGLE_MAPS_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &config{
		Finder:        strings.ToLower(v.GetString("finder")),
		MapsKey:       v.GetString("maps-key"),
		Geo:           strings.ToLower(v.GetString("geo")),
		CacheDir:      v.GetString("cache-dir"),
		Debounce:      v.GetDuration("debounce"),
		CacheTTL:      v.GetDuration("cache-ttl"),
		ChimeDuration: v.GetDuration("chime-duration"),
		CacheSize:     v.GetInt("cache-size"),
		Lat:           v.GetFloat64("lat"),
		Lng:           v.GetFloat64("lng"),
		DayStrip:      v.GetBool("day-strip"),
		Verbose:       v.GetBool("verbose"),
	}
	if !slices.Contains(finderKinds, cfg.Finder) {
		return nil, fmt.Errorf("unknown finder %q: want one of %s", cfg.Finder, strings.Join(finderKinds, ", "))
	}
	if !slices.Contains(geoKinds, cfg.Geo) {
		return nil, fmt.Errorf("unknown geo source %q: want one of %s", cfg.Geo, strings.Join(geoKinds, ", "))
	}
	if cfg.Finder == "google" && cfg.MapsKey == "" {
		return nil, fmt.Errorf("finder %q needs a Google Maps API key", cfg.Finder)
	}
	if cfg.Debounce < 0 || cfg.ChimeDuration < 0 {
		return nil, fmt.Errorf("durations must not be negative")
	}
	return cfg, nil
}
