package chime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Trigger plays one chime for the current time.
//
// Controls are locked for the duration of playback. The date, offset and
// coordinate are read in a single critical section so a concurrent mode
// switch or marker move cannot produce a mixed tuple. When location sending
// is on but no fix exists yet, the chime goes out without a coordinate and
// the toggle is switched off; playback never waits for a sensor.
func (e *Engine) Trigger(ctx context.Context) (PlayRequest, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return PlayRequest{}, ErrClosed
	}
	if e.busy {
		e.mu.Unlock()
		return PlayRequest{}, ErrChimeBusy
	}
	e.busy = true

	req := PlayRequest{
		ID:            uuid.New(),
		Date:          e.clock.Now(),
		OffsetMinutes: e.currentOffsetLocked(),
	}
	if e.location.enabled {
		if e.location.hasFix {
			c := e.location.marker
			req.Coordinate = &c
		} else {
			e.logger.Warn("location requested but no fix available, chiming without it", "chime_id", req.ID)
			e.location.enabled = false
			e.status = statusLocationUnavailable
			if !e.lookupsEnabledLocked() {
				e.setMapInteractiveLocked(false)
			}
		}
	}
	e.relabelLocked()
	e.mu.Unlock()

	e.logger.Debug("playing chime", "chime_id", req.ID, "date", req.Date, "offset_minutes", req.OffsetMinutes,
		"with_location", req.Coordinate != nil)
	err := e.player.Play(ctx, req)

	e.mu.Lock()
	e.busy = false
	e.relabelLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("chime playback failed", "chime_id", req.ID, "error", err)
		return req, fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	return req, nil
}
