package chime

import (
	"time"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/tzconvert"
)

// Labels is everything the UI shows, recomputed after every state change.
type Labels struct {
	Time                string // "15:04:05" in the active offset
	TimeZone            string // "Local Time: UTC+1"
	Zone                string // IANA zone behind the map offset, if known
	Lat                 string
	Lng                 string
	Status              string
	Mode                Mode
	OffsetMinutes       int
	CoordinatesDisabled bool
	LocationChecked     bool
	LocationEnabled     bool // toggle accepts input
	ChimeEnabled        bool
	MapInteractive      bool
	Resolving           bool // a time zone lookup is outstanding
}

// Labels returns the current UI state.
func (e *Engine) Labels() Labels {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.labelsLocked()
}

func (e *Engine) labelsLocked() Labels {
	now := e.clock.Now()
	minutes := e.currentOffsetLocked()
	zoned := now.In(time.FixedZone(tzconvert.FormatUTC(minutes), minutes*60))

	l := Labels{
		Time:                zoned.Format("15:04:05"),
		TimeZone:            modePrefix(e.mode.mode) + tzconvert.FormatUTC(minutes),
		Lat:                 e.location.marker.LatLabel(),
		Lng:                 e.location.marker.LngLabel(),
		Status:              e.status,
		Mode:                e.mode.mode,
		OffsetMinutes:       minutes,
		CoordinatesDisabled: !e.location.enabled,
		LocationChecked:     e.location.enabled,
		LocationEnabled:     !e.busy && !e.location.geoPending,
		ChimeEnabled:        !e.busy,
		MapInteractive:      e.mapView.interactive,
		Resolving:           e.location.debounceTimer != nil || e.resolver.Pending(),
	}
	if e.mode.mode == ModeMap {
		l.Zone = e.location.mapOffset.Zone
	}
	return l
}

func modePrefix(m Mode) string {
	switch m {
	case ModeMap:
		return "Map Time: "
	case ModeCustom:
		return "Custom Time: "
	default:
		return "Local Time: "
	}
}

func (e *Engine) relabelLocked() {
	if e.render == nil {
		return
	}
	e.render(e.labelsLocked())
}
