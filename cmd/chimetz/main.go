// Package main implements chimetz, an interactive shell for the chime
// time zone engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/chime"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/geolocate"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/googlemaps"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/httpcache"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/offset"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/playback"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/zonefinder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, color.Output)
	stop()
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	level := slog.LevelError
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	cache, err := httpcache.New(ctx, cfg.CacheDir, 30*24*time.Hour, logger)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("failed to close cache", "error", err)
		}
	}()

	var maps *googlemaps.Client
	if cfg.MapsKey != "" {
		httpClient := httpcache.NewClient(cache, &http.Client{Timeout: 10 * time.Second}, logger,
			httpcache.WithCacheable(googlemaps.Cacheable))
		maps = googlemaps.NewClient(cfg.MapsKey, httpClient, logger)
	}

	finder := zonefinder.NewCached(buildFinder(cfg, maps, logger), cfg.CacheSize, cfg.CacheTTL, logger)
	resolver, err := offset.New(finder, offset.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating resolver: %w", err)
	}

	player, err := playback.NewConsole(
		playback.WithWriter(out),
		playback.WithDuration(cfg.ChimeDuration),
		playback.WithDayStrip(cfg.DayStrip),
		playback.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}

	con := newConsole(out)
	engine, err := chime.New(resolver, player,
		chime.WithLogger(logger),
		chime.WithGeolocator(buildGeolocator(cfg, logger)),
		chime.WithDebounce(cfg.Debounce),
		chime.WithRenderer(con.render),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("failed to close engine", "error", err)
		}
	}()

	if err := engine.Init(ctx); err != nil {
		con.errorf("%v: map time will use UTC", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := engine.Run(runCtx); err != nil {
			logger.Error("label refresh stopped", "error", err)
		}
	}()

	con.println(details(engine.Labels()))
	con.println(`type "help" for commands`)

	sh := &shell{engine: engine, console: con, logger: logger}
	if maps != nil {
		sh.geocoder = maps
	}
	return sh.run(ctx, in)
}

func buildFinder(cfg *config, maps *googlemaps.Client, logger *slog.Logger) zonefinder.Finder {
	switch cfg.Finder {
	case "tzf":
		return zonefinder.NewTZF(logger)
	case "latlong":
		return zonefinder.LatLong{}
	case "google":
		return maps
	default:
		finders := []zonefinder.Finder{zonefinder.NewTZF(logger), zonefinder.LatLong{}}
		if maps != nil {
			finders = append(finders, maps)
		}
		return zonefinder.NewChain(logger, finders...)
	}
}

func buildGeolocator(cfg *config, logger *slog.Logger) chime.Geolocator {
	switch cfg.Geo {
	case "static":
		return geolocate.NewStatic(cfg.Lat, cfg.Lng)
	case "none":
		return geolocate.Denied{}
	default:
		return geolocate.NewIP(nil, logger)
	}
}
