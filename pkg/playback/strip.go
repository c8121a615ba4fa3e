package playback

import (
	"strings"
	"time"

	"github.com/fatih/color"
)

const (
	stripNow   = "█"
	stripDay   = "▃"
	stripNight = "▁"
)

var (
	nowColor   = color.New(color.FgCyan, color.Bold)
	dayColor   = color.New(color.FgYellow)
	nightColor = color.New(color.FgHiBlack) // grey
)

// DayStrip draws the 24 hours of the day at offsetMinutes east of UTC, one
// cell per hour, with the hour containing t highlighted.
func DayStrip(t time.Time, offsetMinutes int) string {
	hour := t.UTC().Add(time.Duration(offsetMinutes) * time.Minute).Hour()

	var b strings.Builder
	b.WriteString("00 ")
	for h := range 24 {
		switch {
		case h == hour:
			b.WriteString(nowColor.Sprint(stripNow))
		case h < 6 || h >= 22:
			b.WriteString(nightColor.Sprint(stripNight))
		default:
			b.WriteString(dayColor.Sprint(stripDay))
		}
	}
	b.WriteString(" 24")
	return b.String()
}
