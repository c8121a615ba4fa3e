package chime

import (
	"errors"
	"fmt"

	"github.com/coder/quartz"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/offset"
)

const statusLocationUnavailable = "location unavailable"

type locationState struct {
	debounceTimer *quartz.Timer
	mapOffset     offset.Offset
	marker        coord.Coordinate
	geoToken      uint64
	debounceSeq   uint64
	hasFix        bool
	firstRequest  bool
	enabled       bool // location toggle checked
	geoPending    bool
}

// Marker returns the canonical marker coordinate and whether it came from
// a real fix or user placement rather than the {0, 0} default.
func (e *Engine) Marker() (coord.Coordinate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.location.marker, e.location.hasFix
}

// LocationEnabled reports whether the location toggle is on.
func (e *Engine) LocationEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.location.enabled
}

// MapZone returns the last accepted map lookup result.
func (e *Engine) MapZone() offset.Offset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.location.mapOffset
}

// MoveMarker handles a marker drag to (lat, lng).
func (e *Engine) MoveMarker(lat, lng float64) error {
	return e.placeMarker(lat, lng, false)
}

// DoubleClick handles a map double-click: the marker jumps to (lat, lng)
// and the view zooms in one level.
func (e *Engine) DoubleClick(lat, lng float64) error {
	return e.placeMarker(lat, lng, true)
}

func (e *Engine) placeMarker(lat, lng float64, zoomIn bool) error {
	raw := coord.Coordinate{Lat: lat, Lng: lng}
	if !raw.Finite() {
		return &ValidationError{Field: "coordinate", Value: fmt.Sprintf("(%v, %v)", lat, lng), Reason: "must be finite"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if zoomIn {
		e.mapView.zoom = min(e.mapView.zoom+1, maxZoom)
	}
	c := e.moveMarkerLocked(raw)
	e.logger.Debug("map marker moved", "lat", c.Lat, "lng", c.Lng, "zoom", e.mapView.zoom)
	e.view.SetView(c, e.mapView.zoom)
	e.relabelLocked()
	return nil
}

// moveMarkerLocked normalizes and stores raw, then schedules a lookup when
// the active mode needs one.
func (e *Engine) moveMarkerLocked(raw coord.Coordinate) coord.Coordinate {
	c := raw.Normalize()
	e.location.marker = c
	e.location.hasFix = true
	e.view.SetMarker(c)

	if e.lookupsEnabledLocked() {
		e.scheduleLookupLocked()
	}
	return c
}

// lookupsEnabledLocked reports whether marker changes should resolve an offset.
func (e *Engine) lookupsEnabledLocked() bool {
	return e.mode.mode == ModeMap
}

// RequestGeolocation asks the geolocator for a fix and moves the marker
// there when it arrives. It supersedes any request still in flight. Unlike
// the location toggle it leaves the first-request flag alone, so the next
// toggle still asks for a fix of its own.
func (e *Engine) RequestGeolocation() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.requestGeolocationLocked(false)
	e.relabelLocked()
	return nil
}

// requestGeolocationLocked starts a fix request. fromToggle marks the
// toggle's first request, whose success clears firstRequest.
func (e *Engine) requestGeolocationLocked(fromToggle bool) {
	e.location.geoToken++
	if e.geo == nil {
		e.geolocationFailedLocked(ErrGeolocationUnavailable)
		return
	}

	tok := e.location.geoToken
	e.location.geoPending = true
	e.beginTaskLocked()

	go func() {
		pos, err := e.geo.CurrentPosition(e.ctx)

		e.mu.Lock()
		defer e.mu.Unlock()
		defer e.endTaskLocked()

		if tok != e.location.geoToken {
			e.logger.Debug("discarding stale geolocation result", "token", tok)
			return
		}
		e.location.geoPending = false

		if err == nil && !pos.Finite() {
			err = fmt.Errorf("%w: non-finite position", ErrGeolocationUnavailable)
		}
		if err != nil {
			e.geolocationFailedLocked(err)
			e.relabelLocked()
			return
		}

		c := e.moveMarkerLocked(pos)
		if fromToggle {
			e.location.firstRequest = false
		}
		e.mapView.zoom = fixZoom
		e.view.SetView(c, fixZoom)
		if e.status == statusLocationUnavailable {
			e.status = ""
		}
		e.logger.Debug("moved marker to user position", "lat", c.Lat, "lng", c.Lng)
		e.relabelLocked()
	}()
}

// geolocationFailedLocked turns the toggle off and greys out the
// coordinate. The user has to switch location on again to retry.
func (e *Engine) geolocationFailedLocked(err error) {
	e.logger.Warn("error fetching location", "error", err)
	e.location.geoPending = false
	e.location.enabled = false
	e.status = statusLocationUnavailable

	if !e.location.hasFix {
		// Nothing better to show: park the marker at the default position.
		e.location.marker = coord.Coordinate{}
		e.mapView.zoom = worldZoom
		e.view.SetMarker(e.location.marker)
		e.view.SetView(e.location.marker, worldZoom)
		if e.lookupsEnabledLocked() {
			e.scheduleLookupLocked()
		}
	}
	if !e.lookupsEnabledLocked() {
		e.setMapInteractiveLocked(false)
	}
}

// SetLocationEnabled handles the location toggle.
//
// Turning it on enables the map and either requests a first fix, keeping
// the toggle locked until that answer arrives, or reuses the current
// marker. Turning it off greys out the coordinate and, unless map mode
// still needs the marker, disables the map and halts pending lookups.
func (e *Engine) SetLocationEnabled(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.busy || e.location.geoPending {
		return ErrToggleLocked
	}
	if e.location.enabled == on {
		return nil
	}

	e.location.enabled = on
	if on {
		if e.status == statusLocationUnavailable {
			e.status = ""
		}
		e.setMapInteractiveLocked(true)
		switch {
		case e.location.firstRequest:
			e.requestGeolocationLocked(true)
		case e.lookupsEnabledLocked():
			e.scheduleLookupLocked()
		}
	} else if !e.lookupsEnabledLocked() {
		e.setMapInteractiveLocked(false)
		e.haltLookupsLocked()
	}

	e.relabelLocked()
	return nil
}

// scheduleLookupLocked starts an offset lookup for the current marker,
// after the debounce delay if one is configured. Anything already in flight
// is superseded immediately.
func (e *Engine) scheduleLookupLocked() {
	e.stopDebounceLocked()
	if e.debounce <= 0 {
		e.startLookupLocked()
		return
	}

	e.resolver.Invalidate()
	seq := e.location.debounceSeq
	e.beginTaskLocked()
	e.location.debounceTimer = e.clock.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		defer e.endTaskLocked()
		if seq != e.location.debounceSeq || e.closed {
			return
		}
		e.location.debounceTimer = nil
		e.startLookupLocked()
		e.relabelLocked()
	}, "chime", "debounce")
}

// stopDebounceLocked cancels a pending debounce timer. A timer that already
// fired sees the bumped sequence and does nothing.
func (e *Engine) stopDebounceLocked() {
	e.location.debounceSeq++
	if e.location.debounceTimer == nil {
		return
	}
	if e.location.debounceTimer.Stop() {
		e.endTaskLocked()
	}
	e.location.debounceTimer = nil
}

func (e *Engine) haltLookupsLocked() {
	e.stopDebounceLocked()
	e.resolver.Invalidate()
}

func (e *Engine) startLookupLocked() {
	l := e.resolver.Start(e.ctx, e.location.marker)
	e.beginTaskLocked()
	go e.awaitLookup(l)
}

// awaitLookup applies a finished lookup if it is still the current one.
func (e *Engine) awaitLookup(l *offset.Lookup) {
	<-l.Done()
	off, err := l.Result()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.endTaskLocked()

	if !e.resolver.Accept(l.Token) {
		return
	}
	if err != nil {
		e.logger.Warn("time zone lookup failed, using UTC", "lat", l.Coordinate.Lat, "lng", l.Coordinate.Lng, "error", err)
		off = offset.Offset{Zone: off.Zone}
		e.status = "time zone lookup failed: using UTC"
		if errors.Is(err, offset.ErrNoZone) {
			e.status = "no time zone found: using UTC"
		}
	} else if e.status != statusLocationUnavailable {
		e.status = ""
	}
	e.location.mapOffset = off
	e.relabelLocked()
}
