package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/chime"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/offset"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/playback"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/zonefinder"
)

func init() {
	color.NoColor = true
}

type fakeGeocoder map[string]coord.Coordinate

func (f fakeGeocoder) GeocodeLocation(_ context.Context, place string) (coord.Coordinate, error) {
	c, ok := f[place]
	if !ok {
		return coord.Coordinate{}, errors.New("ZERO_RESULTS")
	}
	return c, nil
}

func newTestShell(t *testing.T, out *bytes.Buffer) *shell {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	resolver, err := offset.New(zonefinder.LatLong{}, offset.WithLogger(logger))
	require.NoError(t, err)
	player, err := playback.NewConsole(playback.WithWriter(out), playback.WithDuration(0))
	require.NoError(t, err)

	con := newConsole(out)
	engine, err := chime.New(resolver, player,
		chime.WithLogger(logger),
		chime.WithLocation(time.UTC),
		chime.WithRenderer(con.render),
		chime.WithGeolocator(fakeStatic{c: coord.Coordinate{Lat: 35.6762, Lng: 139.6503}}),
	)
	require.NoError(t, err)
	require.NoError(t, engine.Init(context.Background()))
	t.Cleanup(func() { assert.NoError(t, engine.Close()) })

	return &shell{
		engine:   engine,
		console:  con,
		logger:   logger,
		geocoder: fakeGeocoder{"Tokyo": {Lat: 35.6762, Lng: 139.6503}},
	}
}

type fakeStatic struct{ c coord.Coordinate }

func (f fakeStatic) CurrentPosition(context.Context) (coord.Coordinate, error) { return f.c, nil }

func execAll(t *testing.T, s *shell, lines ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, line := range lines {
		_, err := s.exec(ctx, line)
		require.NoError(t, err, line)
		require.NoError(t, s.engine.Wait(ctx))
	}
}

func TestShellMapMode(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell(t, &out)

	execAll(t, s, "mode map", "goto Tokyo")
	l := s.engine.Labels()
	assert.Equal(t, "Map Time: UTC+9", l.TimeZone)
	assert.Equal(t, "Asia/Tokyo", l.Zone)
	assert.Contains(t, out.String(), "[map] Map Time: UTC+9 (Asia/Tokyo)  35.676200°N 139.650300°E")

	execAll(t, s, "dblclick 22.5726 88.3639")
	assert.Equal(t, 330, s.engine.CurrentOffsetMinutes())
}

func TestShellCustomChime(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell(t, &out)

	execAll(t, s, "offset -3:30", "mode custom", "location on", "chime")
	assert.Contains(t, out.String(), "♪ chime")
	assert.Contains(t, out.String(), "UTC-3:30 35.676200°N 139.650300°E")
}

func TestShellErrors(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell(t, &out)
	ctx := context.Background()

	for _, line := range []string{
		"mode utc",
		"offset 999",
		"move north",
		"move 1 east",
		"goto Atlantis",
		"goto",
		"location maybe",
		"fly",
	} {
		_, err := s.exec(ctx, line)
		assert.Error(t, err, line)
	}

	_, err := s.exec(ctx, "offset 999")
	require.ErrorIs(t, err, chime.ErrValidation)

	s.geocoder = nil
	_, err = s.exec(ctx, "goto Tokyo")
	require.Error(t, err)
}

func TestShellRunStopsAtQuit(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell(t, &out)

	in := strings.NewReader("help\nbogus\nstatus\nquit\nmode map\n")
	require.NoError(t, s.run(context.Background(), in))

	got := out.String()
	assert.Contains(t, got, "commands:")
	assert.Contains(t, got, `error: unknown command "bogus"`)
	assert.Contains(t, got, "Local Time: UTC")
	assert.Equal(t, chime.ModeLocal, s.engine.Mode(), "commands after quit are ignored")
}

func TestShellRunStopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell(t, &out)

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, pr) }()

	_, err := io.WriteString(pw, "mode map\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.engine.Mode() == chime.ModeMap }, 5*time.Second, time.Millisecond)

	// Input stays open: cancelling must not wait for another line.
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRender(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(&out)

	l := chime.Labels{Time: "12:00:00", TimeZone: "Local Time: UTC", Lat: "0.000000°N", Lng: "0.000000°E", Mode: chime.ModeLocal, ChimeEnabled: true}
	con.render(l)
	l.Time = "12:00:01"
	con.render(l)
	assert.Equal(t, 1, strings.Count(out.String(), "\n"), "time ticks alone are not printed")

	l.Status = "location unavailable"
	con.render(l)
	assert.Contains(t, out.String(), "location unavailable")
	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
}

func TestRunCustomSession(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	t.Setenv("CHIMETZ_MAPS_KEY", "")

	var out bytes.Buffer
	in := strings.NewReader("mode custom\noffset +5:30\nchime\nquit\n")
	args := []string{"--finder=latlong", "--geo=none", "--chime-duration=0", "--day-strip=false"}
	require.NoError(t, run(context.Background(), args, in, &out))

	got := out.String()
	assert.Contains(t, got, "Custom Time: UTC+5:30")
	assert.Contains(t, got, "♪ chime")
}
