package chime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
)

// PlayRequest is the tuple a chime encodes.
type PlayRequest struct {
	Date          time.Time
	Coordinate    *coord.Coordinate // nil when location is not sent
	OffsetMinutes int
	ID            uuid.UUID
}

// Player plays a chime. Play blocks until the audio has finished and
// returns immediately with an error when the request cannot be played.
type Player interface {
	Play(ctx context.Context, req PlayRequest) error
}

// Geolocator produces a single position fix. Implementations return
// ErrGeolocationDenied or ErrGeolocationUnavailable on failure.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (coord.Coordinate, error)
}

// Tint is a marker color.
type Tint string

// Marker tints.
const (
	TintActive   Tint = "#2f80ff"
	TintDisabled Tint = "grey"
)

// MapView receives commands for the map widget.
// Methods are called with the engine locked and must not call back into it.
type MapView interface {
	SetView(c coord.Coordinate, zoom int)
	SetMarker(c coord.Coordinate)
	SetInteractive(enabled bool)
	SetMarkerTint(t Tint)
}

// NopMapView ignores every command.
type NopMapView struct{}

func (NopMapView) SetView(coord.Coordinate, int) {}
func (NopMapView) SetMarker(coord.Coordinate)    {}
func (NopMapView) SetInteractive(bool)           {}
func (NopMapView) SetMarkerTint(Tint)            {}

// Renderer receives the recomputed UI labels. It is called with the engine
// locked and must not call back into it.
type Renderer func(Labels)
