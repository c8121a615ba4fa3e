package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/chime"
)

var (
	modeColors = map[chime.Mode]*color.Color{
		chime.ModeLocal:  color.New(color.FgGreen, color.Bold),
		chime.ModeMap:    color.New(color.FgBlue, color.Bold),
		chime.ModeCustom: color.New(color.FgMagenta, color.Bold),
	}
	greyColor   = color.New(color.FgHiBlack)
	statusColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
)

// console prints label changes. The per-second time tick alone does not
// trigger output; the status command shows the current time.
type console struct {
	out     io.Writer
	last    chime.Labels
	mu      sync.Mutex
	hasLast bool
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

// render is the engine's Renderer.
func (c *console) render(l chime.Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmp := l
	cmp.Time = c.last.Time
	if c.hasLast && cmp == c.last {
		c.last = l
		return
	}
	c.last = l
	c.hasLast = true
	fmt.Fprintln(c.out, summary(l))
}

func (c *console) errorf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, errorColor.Sprintf("error: "+format, args...))
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func summary(l chime.Labels) string {
	var b strings.Builder
	mc := modeColors[l.Mode]
	if mc == nil {
		mc = greyColor
	}
	b.WriteString(mc.Sprintf("[%s]", l.Mode))
	b.WriteByte(' ')
	b.WriteString(l.TimeZone)
	if l.Zone != "" {
		fmt.Fprintf(&b, " (%s)", l.Zone)
	}

	coords := l.Lat + " " + l.Lng
	if l.CoordinatesDisabled {
		coords = greyColor.Sprint(coords)
	}
	b.WriteString("  ")
	b.WriteString(coords)

	if l.Resolving {
		b.WriteString(greyColor.Sprint("  resolving…"))
	}
	if !l.ChimeEnabled {
		b.WriteString(greyColor.Sprint("  chiming"))
	}
	if l.Status != "" {
		b.WriteString("  ")
		b.WriteString(statusColor.Sprint(l.Status))
	}
	return b.String()
}

// details is the multi-line view printed by the status command.
func details(l chime.Labels) string {
	onOff := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", l.TimeZone, l.Time)
	if l.Zone != "" {
		fmt.Fprintf(&b, "  zone:     %s\n", l.Zone)
	}
	fmt.Fprintf(&b, "  marker:   %s %s\n", l.Lat, l.Lng)
	fmt.Fprintf(&b, "  location: %s", onOff(l.LocationChecked))
	if !l.LocationEnabled {
		b.WriteString(" (locked)")
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  map:      %s\n", onOff(l.MapInteractive))
	if l.Resolving {
		b.WriteString("  resolving time zone…\n")
	}
	if l.Status != "" {
		fmt.Fprintf(&b, "  status:   %s\n", statusColor.Sprint(l.Status))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
