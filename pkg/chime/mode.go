package chime

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/tzconvert"
)

// Mode selects where the chime's UTC offset comes from.
type Mode int

// Time zone modes.
const (
	ModeLocal  Mode = iota // host clock
	ModeMap                // zone under the map marker
	ModeCustom             // user-entered offset
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeMap:
		return "map"
	case ModeCustom:
		return "custom"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) valid() bool {
	return m >= ModeLocal && m <= ModeCustom
}

// ParseMode parses "local", "map" or "custom".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return ModeLocal, nil
	case "map":
		return ModeMap, nil
	case "custom":
		return ModeCustom, nil
	default:
		return 0, &ValidationError{Field: "mode", Value: s, Reason: "want local, map or custom"}
	}
}

type modeState struct {
	mode         Mode
	customOffset int
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode.mode
}

// SetMode switches the active mode. It never starts a lookup: entering
// ModeMap reuses whatever offset was last resolved for the marker.
func (e *Engine) SetMode(m Mode) error {
	if !m.valid() {
		return &ValidationError{Field: "mode", Value: int(m), Reason: "unknown mode"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.mode.mode == m {
		return nil
	}

	prev := e.mode.mode
	e.mode.mode = m
	e.logger.Debug("time zone mode changed", "from", prev, "to", m)

	switch {
	case m == ModeMap:
		e.setMapInteractiveLocked(true)
	case prev == ModeMap && !e.location.enabled:
		e.setMapInteractiveLocked(false)
	}

	e.relabelLocked()
	return nil
}

// CustomOffset returns the stored custom offset in minutes.
func (e *Engine) CustomOffset() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode.customOffset
}

// SetCustomOffset stores the offset used by ModeCustom. Values outside
// [-720, 840] are rejected and the previous value is kept.
func (e *Engine) SetCustomOffset(minutes int) error {
	if !tzconvert.InRange(minutes) {
		return &ValidationError{
			Field:  "custom offset",
			Value:  minutes,
			Reason: fmt.Sprintf("must be between %d and %d minutes", tzconvert.MinOffsetMinutes, tzconvert.MaxOffsetMinutes),
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.mode.customOffset = minutes
	e.relabelLocked()
	return nil
}

// SetCustomOffsetText parses s (e.g. "-300", "+5:30", "UTC-3:30") and stores it.
func (e *Engine) SetCustomOffsetText(s string) error {
	minutes, err := tzconvert.ParseOffset(s)
	if err != nil {
		return &ValidationError{Field: "custom offset", Value: s, Reason: err.Error()}
	}
	return e.SetCustomOffset(minutes)
}

// CurrentOffsetMinutes returns the offset the active mode implies right now.
func (e *Engine) CurrentOffsetMinutes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentOffsetLocked()
}

// currentOffsetLocked recomputes the local offset on every call so a DST
// change on the host is picked up immediately.
func (e *Engine) currentOffsetLocked() int {
	switch e.mode.mode {
	case ModeMap:
		return e.location.mapOffset.Minutes
	case ModeCustom:
		return e.mode.customOffset
	default:
		return tzconvert.LocationOffsetMinutes(e.clock.Now(), e.loc)
	}
}
