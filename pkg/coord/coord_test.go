package coord

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantLat float64
		wantLng float64
	}{
		{"origin unchanged", 0, 0, 0, 0},
		{"latitude rounded to micro-degrees", 1.23456789, 1, 1.234568, 1},
		{"longitude rounded to 2e-6 grid", 10, 1.0000013, 10, 1.000002},
		{"longitude wraps east past antimeridian", 10, 181, 10, -179},
		{"longitude wraps west past antimeridian", 10, -181, 10, 179},
		{"full turn", 10, 540, 10, 180},
		{"minus 180 folds onto 180", 10, -180, 10, 180},
		{"plus 180 kept", 10, 180, 10, 180},
		{"latitude clamped north", 95, 0, 90, 0},
		{"latitude clamped south", -91.5, 0, -90, 0},
		{"London", 51.50740001, -0.1278, 51.5074, -0.1278},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.lat, tt.lng)
			if math.Abs(got.Lat-tt.wantLat) > 1e-9 || math.Abs(got.Lng-tt.wantLng) > 1e-9 {
				t.Errorf("Normalize(%v, %v) = %+v, want {%v %v}", tt.lat, tt.lng, got, tt.wantLat, tt.wantLng)
			}
		})
	}
}

func TestNormalizeExactValues(t *testing.T) {
	tests := []struct {
		in   Coordinate
		want Coordinate
	}{
		{Coordinate{Lat: 10, Lng: 181}, Coordinate{Lat: 10, Lng: -179}},
		{Coordinate{Lat: 10, Lng: -181}, Coordinate{Lat: 10, Lng: 179}},
		{Coordinate{Lat: 1.23456789, Lng: 1}, Coordinate{Lat: 1.234568, Lng: 1}},
		// The antimeridian is always reported as +180.
		{Coordinate{Lat: 0, Lng: 180}, Coordinate{Lat: 0, Lng: 180}},
		{Coordinate{Lat: 0, Lng: -180}, Coordinate{Lat: 0, Lng: 180}},
		{Coordinate{Lat: 0, Lng: 540}, Coordinate{Lat: 0, Lng: 180}},
		{Coordinate{Lat: 0, Lng: -540}, Coordinate{Lat: 0, Lng: 180}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%v, %v) = %+v, want %+v", tt.in.Lat, tt.in.Lng, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []Coordinate{
		{0, 0},
		{1.23456789, 1},
		{-33.8688197, 151.2092955},
		{89.9999999, 179.9999999},
		{-89.9999994, -179.9999991},
		{45.000000499, 720.000003},
		{12.3456785, -359.123457},
		{-0.0000004, 181.000003},
	}

	for _, in := range inputs {
		once := in.Normalize()
		twice := once.Normalize()
		if once != twice {
			t.Errorf("Normalize not idempotent for %+v: once=%+v twice=%+v", in, once, twice)
		}
		if once.Lng <= -180 || once.Lng > 180 {
			t.Errorf("Normalize(%+v).Lng = %v, outside (-180, 180]", in, once.Lng)
		}
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		c       Coordinate
		wantLat string
		wantLng string
	}{
		{Coordinate{51.5074, -0.1278}, "51.507400°N", "0.127800°W"},
		{Coordinate{-33.868820, 151.209296}, "33.868820°S", "151.209296°E"},
		{Coordinate{0, 0}, "0.000000°N", "0.000000°E"},
	}

	for _, tt := range tests {
		if got := tt.c.LatLabel(); got != tt.wantLat {
			t.Errorf("LatLabel(%+v) = %q, want %q", tt.c, got, tt.wantLat)
		}
		if got := tt.c.LngLabel(); got != tt.wantLng {
			t.Errorf("LngLabel(%+v) = %q, want %q", tt.c, got, tt.wantLng)
		}
	}
}

func TestIsZeroSentinel(t *testing.T) {
	tests := []struct {
		c    Coordinate
		want bool
	}{
		{Coordinate{0, 0}, true},
		{Coordinate{0, 12}, true},
		{Coordinate{12, 0}, true},
		{Coordinate{12, 12}, false},
	}
	for _, tt := range tests {
		if got := tt.c.IsZeroSentinel(); got != tt.want {
			t.Errorf("IsZeroSentinel(%+v) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestFinite(t *testing.T) {
	if !(Coordinate{1, 2}).Finite() {
		t.Error("expected {1 2} to be finite")
	}
	if (Coordinate{math.NaN(), 2}).Finite() {
		t.Error("expected NaN latitude to be rejected")
	}
	if (Coordinate{1, math.Inf(-1)}).Finite() {
		t.Error("expected -Inf longitude to be rejected")
	}
}
