// Package coord canonicalizes map marker coordinates.
// Latitude is kept on a 1e-6 degree grid and longitude on a 2e-6 degree grid,
// which is the precision the chime can carry.
package coord

import (
	"fmt"
	"math"
)

const (
	latitudePrecision  = 1_000_000
	longitudePrecision = 500_000
)

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Normalize rounds and wraps a raw coordinate into canonical form.
// Example: Normalize(10, 181) returns {10, -179}
// Example: Normalize(1.23456789, 1) returns {1.234568, 1}
//
// Longitude ends up in (-180, 180]. Latitude is clamped to [-90, 90].
// Inputs must be finite.
func Normalize(lat, lng float64) Coordinate {
	lat = math.Round(lat*latitudePrecision) / latitudePrecision
	lat = math.Max(-90, math.Min(90, lat))

	lng = roundLongitude(lng)
	if lng <= -180 || lng > 180 {
		lng = math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
		// The modular step can leave float noise; snap back onto the grid.
		lng = roundLongitude(lng)
	}
	if lng == -180 {
		lng = 180
	}

	return Coordinate{Lat: lat, Lng: lng}
}

func roundLongitude(lng float64) float64 {
	return math.Round(lng*longitudePrecision) / longitudePrecision
}

// Normalize returns the canonical form of c.
func (c Coordinate) Normalize() Coordinate {
	return Normalize(c.Lat, c.Lng)
}

// Finite reports whether both fields are usable numbers.
func (c Coordinate) Finite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// IsZeroSentinel reports whether c still looks like the default {0, 0}
// marker, i.e. either field is zero and no real fix is assumed.
func (c Coordinate) IsZeroSentinel() bool {
	return c.Lat == 0 || c.Lng == 0
}

// LatLabel formats the latitude as "51.507400°N".
func (c Coordinate) LatLabel() string {
	hemisphere := "N"
	if c.Lat < 0 {
		hemisphere = "S"
	}
	return fmt.Sprintf("%.6f°%s", math.Abs(c.Lat), hemisphere)
}

// LngLabel formats the longitude as "0.127800°W".
func (c Coordinate) LngLabel() string {
	hemisphere := "E"
	if c.Lng < 0 {
		hemisphere = "W"
	}
	return fmt.Sprintf("%.6f°%s", math.Abs(c.Lng), hemisphere)
}

func (c Coordinate) String() string {
	return c.LatLabel() + " " + c.LngLabel()
}
