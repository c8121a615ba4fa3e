package chime

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies rejected user input. State is unchanged.
	ErrValidation = errors.New("validation failed")
	// ErrGeolocationDenied is returned by geolocators when permission is refused.
	ErrGeolocationDenied = errors.New("geolocation permission denied")
	// ErrGeolocationUnavailable is returned when no position can be produced.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	// ErrChimeBusy is returned when a chime is already playing.
	ErrChimeBusy = errors.New("chime already in progress")
	// ErrToggleLocked is returned when the location toggle is not accepting input.
	ErrToggleLocked = errors.New("location toggle is waiting for a previous action")
	// ErrPlaybackFailed wraps errors reported by the Player.
	ErrPlaybackFailed = errors.New("chime playback failed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
)

// ValidationError describes rejected input.
type ValidationError struct {
	Value  any
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
