// Package chime coordinates time zone mode, marker location and chime
// playback.
//
// An Engine owns three cooperating components:
//   - Location Sync (location.go): the canonical marker coordinate, the
//     location toggle, geolocation requests and debounced offset lookups.
//   - Mode Controller (mode.go): local, map or custom offset selection.
//   - Orchestrator (orchestrator.go): snapshots both and plays a chime.
//
// All state lives behind one mutex. Asynchronous work (geolocation, zone
// lookups, debounce timers, playback) runs outside it and re-enters through
// completion handlers that compare generation tokens, so results that were
// superseded while in flight are dropped without any visible effect.
package chime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/offset"
)

const (
	worldZoom  = 2
	fixZoom    = 13
	maxZoom    = 19
	labelsTick = time.Second
)

// Engine is the time zone mode and location synchronization engine.
type Engine struct {
	clock    quartz.Clock
	loc      *time.Location
	logger   *slog.Logger
	resolver *offset.Resolver
	geo      Geolocator
	view     MapView
	player   Player
	render   Renderer

	ctx    context.Context //nolint:containedctx // lifetime of async tasks, cancelled by Close
	cancel context.CancelFunc
	idle   chan struct{}

	status   string
	location locationState
	mode     modeState
	mapView  mapState
	debounce time.Duration
	tasks    int
	mu       sync.Mutex
	busy     bool
	closed   bool
}

type mapState struct {
	zoom        int
	interactive bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for "now" and timers.
func WithClock(c quartz.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLocation sets the host time zone used by ModeLocal. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithGeolocator sets the position source. Without one every geolocation
// request fails with ErrGeolocationUnavailable.
func WithGeolocator(g Geolocator) Option {
	return func(e *Engine) {
		e.geo = g
	}
}

// WithMapView sets the map widget that receives view commands.
func WithMapView(v MapView) Option {
	return func(e *Engine) {
		e.view = v
	}
}

// WithRenderer sets the callback invoked on every label recompute.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		e.render = r
	}
}

// WithDebounce delays offset lookups until the marker has been still for d.
// Zero starts lookups immediately.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// New creates an Engine in ModeLocal with the marker at {0, 0}, location
// sending off and map interaction disabled.
func New(resolver *offset.Resolver, player Player, opts ...Option) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("chime: nil resolver")
	}
	if player == nil {
		return nil, errors.New("chime: nil player")
	}

	e := &Engine{
		resolver: resolver,
		player:   player,
		clock:    quartz.NewReal(),
		loc:      time.Local,
		logger:   slog.Default(),
		view:     NopMapView{},
		idle:     make(chan struct{}),
		mode:     modeState{mode: ModeLocal},
		location: locationState{firstRequest: true},
		mapView:  mapState{zoom: worldZoom},
	}
	close(e.idle)
	for _, opt := range opts {
		opt(e)
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.view.SetView(coord.Coordinate{}, worldZoom)
	e.view.SetMarker(coord.Coordinate{})
	e.view.SetInteractive(false)
	e.view.SetMarkerTint(TintDisabled)
	return e, nil
}

// Init prepares the offset resolver. A failure is not fatal: map lookups
// will fall back to UTC until a later Init succeeds.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.resolver.Init(ctx); err != nil {
		e.logger.Warn("offset resolver unavailable, map time will fall back to UTC", "error", err)
		e.mu.Lock()
		e.status = "time zone lookup unavailable"
		e.relabelLocked()
		e.mu.Unlock()
		return fmt.Errorf("initializing resolver: %w", err)
	}
	return nil
}

// Run refreshes the labels every second until ctx is done, so the time text
// advances and local offset changes (DST) show up without user input.
func (e *Engine) Run(ctx context.Context) error {
	w := e.clock.TickerFunc(ctx, labelsTick, func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return ErrClosed
		}
		e.relabelLocked()
		return nil
	}, "chime", "labels")

	err := w.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Wait blocks until no geolocation request, debounce timer or lookup is
// outstanding, or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.tasks == 0 {
			e.mu.Unlock()
			return nil
		}
		idle := e.idle
		e.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels outstanding work and waits for it to drain.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.stopDebounceLocked()
	e.resolver.Invalidate()
	e.location.geoToken++
	e.mu.Unlock()

	e.cancel()
	return e.Wait(context.Background())
}

// beginTaskLocked registers outstanding async work for Wait.
func (e *Engine) beginTaskLocked() {
	if e.tasks == 0 {
		e.idle = make(chan struct{})
	}
	e.tasks++
}

func (e *Engine) endTaskLocked() {
	e.tasks--
	if e.tasks == 0 {
		close(e.idle)
	}
}

func (e *Engine) setMapInteractiveLocked(on bool) {
	if e.mapView.interactive == on {
		return
	}
	e.mapView.interactive = on
	e.view.SetInteractive(on)
	if on {
		e.view.SetMarkerTint(TintActive)
		return
	}
	e.logger.Debug("disabling map interactions")
	e.view.SetMarkerTint(TintDisabled)
}
