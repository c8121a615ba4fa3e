// Package playback renders chimes.
//
// The Console player writes the chime tuple to a terminal and holds for the
// length of the tone, standing in for the acoustic encoder a recorder would
// listen to.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/fatih/color"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/chime"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/tzconvert"
)

// DefaultDuration approximates the length of an encoded chime.
const DefaultDuration = 2 * time.Second

// ErrInvalidRequest is returned for requests that cannot be encoded.
var ErrInvalidRequest = errors.New("invalid chime request")

// Console prints chimes to a writer.
type Console struct {
	out      io.Writer
	clock    quartz.Clock
	logger   *slog.Logger
	played   metric.Int64Counter
	duration time.Duration
	mu       sync.Mutex // serializes writes
	strip    bool
}

// Option configures a Console.
type Option func(*Console)

// WithWriter sets the output. Defaults to color.Output.
func WithWriter(w io.Writer) Option {
	return func(c *Console) {
		c.out = w
	}
}

// WithClock sets the clock used to time the tone.
func WithClock(clk quartz.Clock) Option {
	return func(c *Console) {
		c.clock = clk
	}
}

// WithDuration sets how long Play holds before returning.
func WithDuration(d time.Duration) Option {
	return func(c *Console) {
		c.duration = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) {
		c.logger = l
	}
}

// WithDayStrip adds a 24-hour strip under each chime.
func WithDayStrip(on bool) Option {
	return func(c *Console) {
		c.strip = on
	}
}

// NewConsole creates a Console player.
func NewConsole(opts ...Option) (*Console, error) {
	c := &Console{
		out:      color.Output,
		clock:    quartz.NewReal(),
		logger:   slog.Default(),
		duration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.out == nil {
		c.out = os.Stdout
	}

	var err error
	c.played, err = otel.Meter("github.com/codeGROOVE-dev/chimeTZ/pkg/playback").Int64Counter(
		"chimetz.chimes",
		metric.WithDescription("Chimes played by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chimes counter: %w", err)
	}
	return c, nil
}

// Validate reports whether req can be encoded.
func Validate(req chime.PlayRequest) error {
	if req.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRequest)
	}
	if !tzconvert.InRange(req.OffsetMinutes) {
		return fmt.Errorf("%w: offset %d minutes out of range", ErrInvalidRequest, req.OffsetMinutes)
	}
	if req.Coordinate != nil {
		c := *req.Coordinate
		if !c.Finite() || c.Lat < -90 || c.Lat > 90 || c.Lng <= -180 || c.Lng > 180 {
			return fmt.Errorf("%w: coordinate %v out of range", ErrInvalidRequest, c)
		}
	}
	return nil
}

// Format renders the tuple the chime carries, e.g.
// "2026-07-01 17:30:00 UTC+5:30 22.572600°N 88.363900°E".
func Format(req chime.PlayRequest) string {
	zone := time.FixedZone(tzconvert.FormatUTC(req.OffsetMinutes), req.OffsetMinutes*60)
	var b strings.Builder
	b.WriteString(req.Date.In(zone).Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(tzconvert.FormatUTC(req.OffsetMinutes))
	if req.Coordinate != nil {
		b.WriteByte(' ')
		b.WriteString(req.Coordinate.LatLabel())
		b.WriteByte(' ')
		b.WriteString(req.Coordinate.LngLabel())
	}
	return b.String()
}

// Play writes the chime and blocks for the configured duration or until
// ctx is done. Invalid requests fail before anything is written.
func (c *Console) Play(ctx context.Context, req chime.PlayRequest) error {
	if err := Validate(req); err != nil {
		c.played.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "invalid")))
		return err
	}

	c.mu.Lock()
	_, err := fmt.Fprintf(c.out, "%s %s\n", color.New(color.FgCyan, color.Bold).Sprint("♪ chime"), Format(req))
	if err == nil && c.strip {
		_, err = io.WriteString(c.out, DayStrip(req.Date, req.OffsetMinutes)+"\n")
	}
	c.mu.Unlock()
	if err != nil {
		c.played.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return fmt.Errorf("writing chime: %w", err)
	}
	c.logger.Debug("chime started", "chime_id", req.ID, "duration", c.duration)

	if c.duration > 0 {
		done := make(chan struct{})
		t := c.clock.AfterFunc(c.duration, func() { close(done) }, "playback", "tone")
		select {
		case <-done:
		case <-ctx.Done():
			t.Stop()
			c.played.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "cancelled")))
			return ctx.Err()
		}
	}

	c.played.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return nil
}
