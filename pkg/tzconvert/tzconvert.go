// Package tzconvert converts between time zones, UTC offsets in minutes,
// and the textual offset forms shown to users.
// Offsets are always minutes east of UTC: -300 for EST, 330 for IST.
package tzconvert

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Practical bounds of real-world UTC offsets: UTC-12:00 to UTC+14:00.
const (
	MinOffsetMinutes = -720
	MaxOffsetMinutes = 840
)

const minutesInHour = 60

// longOffsetRegex matches long offsets such as "GMT", "GMT+1", "GMT-03:30".
var longOffsetRegex = regexp.MustCompile(`GMT([-+]\d+)?:?(\d\d)?`)

// ErrBadOffset is returned when an offset string cannot be parsed.
var ErrBadOffset = errors.New("unrecognized UTC offset")

// InRange reports whether minutes is a plausible UTC offset.
func InRange(minutes int) bool {
	return minutes >= MinOffsetMinutes && minutes <= MaxOffsetMinutes
}

// LongOffset renders t's zone offset the way browsers do for the
// "longOffset" time zone name style.
// Examples:
//   - UTC returns "GMT"
//   - Asia/Kolkata returns "GMT+05:30"
//   - America/New_York in winter returns "GMT-05:00"
func LongOffset(t time.Time) string {
	if _, offset := t.Zone(); offset == 0 {
		return "GMT"
	}
	return "GMT" + t.Format("-07:00")
}

// ParseLongOffset extracts the offset in minutes from a string containing a
// long offset. A bare "GMT" is zero. The second result is false when no
// "GMT" marker is present.
func ParseLongOffset(s string) (int, bool) {
	match := longOffsetRegex.FindStringSubmatch(s)
	if match == nil {
		return 0, false
	}
	if match[1] == "" {
		return 0, true
	}

	hours, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	offset := hours * minutesInHour

	if match[2] != "" {
		minutes, err := strconv.Atoi(match[2])
		if err != nil {
			return 0, false
		}
		if strings.HasPrefix(match[1], "-") {
			minutes = -minutes
		}
		offset += minutes
	}

	return offset, true
}

// ZoneOffsetMinutes returns the current offset of the named IANA zone at t.
func ZoneOffsetMinutes(zone string, t time.Time) (int, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return 0, fmt.Errorf("loading zone %q: %w", zone, err)
	}
	long := LongOffset(t.In(loc))
	offset, ok := ParseLongOffset(long)
	if !ok {
		return 0, fmt.Errorf("parsing offset %q of zone %q: %w", long, zone, ErrBadOffset)
	}
	return offset, nil
}

// LocationOffsetMinutes returns the offset of loc at t. Nil means time.Local.
func LocationOffsetMinutes(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	_, offset := t.In(loc).Zone()
	return offset / minutesInHour
}

// FormatUTC renders an offset as a short label.
// Examples:
//   - 0 returns "UTC"
//   - 60 returns "UTC+1"
//   - 330 returns "UTC+5:30"
//   - -210 returns "UTC-3:30"
func FormatUTC(minutes int) string {
	if minutes == 0 {
		return "UTC"
	}

	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}

	hours, mins := minutes/minutesInHour, minutes%minutesInHour
	if mins == 0 {
		return fmt.Sprintf("UTC%s%d", sign, hours)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, hours, mins)
}

// ParseOffset parses user-entered offsets.
// Accepted forms:
//   - "-300" (minutes)
//   - "+5:30", "-03:30", "5" (hours, optional minutes)
//   - "UTC", "UTC+8", "UTC-3:30", "GMT+05:30"
//
// Bare integers with an absolute value of 15 or more are read as minutes,
// anything smaller as hours.
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	for _, prefix := range []string{"UTC", "GMT"} {
		if strings.HasPrefix(upper, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			if s == "" {
				return 0, nil
			}
			return parseHoursMinutes(s)
		}
	}
	if s == "" {
		return 0, fmt.Errorf("empty offset: %w", ErrBadOffset)
	}

	if !strings.Contains(s, ":") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("offset %q: %w", s, ErrBadOffset)
		}
		if n >= 15 || n <= -15 {
			return n, nil
		}
		return n * minutesInHour, nil
	}

	return parseHoursMinutes(s)
}

func parseHoursMinutes(s string) (int, error) {
	sign := 1
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	default:
		// No sign means positive offset
	}

	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")
	hours, err := strconv.Atoi(hourPart)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("offset hours %q: %w", hourPart, ErrBadOffset)
	}
	minutes := 0
	if hasMinutes {
		minutes, err = strconv.Atoi(minutePart)
		if err != nil || minutes < 0 || minutes >= minutesInHour {
			return 0, fmt.Errorf("offset minutes %q: %w", minutePart, ErrBadOffset)
		}
	}

	return sign * (hours*minutesInHour + minutes), nil
}
