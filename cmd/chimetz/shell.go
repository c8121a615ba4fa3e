package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/chime"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
)

const helpText = `commands:
  mode local|map|custom   choose where the offset comes from
  offset <value>          set the custom offset (e.g. -300, +5:30, UTC-3:30)
  move <lat> <lng>        drag the marker
  dblclick <lat> <lng>    double-click the map (marker moves, view zooms in)
  goto <place>            move the marker to a named place
  locate                  move the marker to the current position
  location on|off         send the marker position with each chime
  chime                   play a chime now
  status                  show the current time and settings
  help                    show this help
  quit                    exit (Ctrl-C or end of input also exit)`

type geocoder interface {
	GeocodeLocation(ctx context.Context, location string) (coord.Coordinate, error)
}

type shell struct {
	engine   *chime.Engine
	geocoder geocoder // nil without a Maps key
	console  *console
	logger   *slog.Logger
}

// run reads commands from in until EOF, quit or ctx is done. Lines are read
// on their own goroutine so a cancelled ctx returns at once even while the
// terminal is idle.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := s.exec(ctx, line)
			if err != nil {
				s.console.errorf("%v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	s.logger.Debug("command", "cmd", cmd, "args", args)

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		s.console.println(helpText)
	case "mode":
		if len(args) != 1 {
			return false, errors.New("usage: mode local|map|custom")
		}
		m, err := chime.ParseMode(args[0])
		if err != nil {
			return false, err
		}
		return false, s.engine.SetMode(m)
	case "offset":
		if len(args) != 1 {
			return false, errors.New("usage: offset <value>")
		}
		return false, s.engine.SetCustomOffsetText(args[0])
	case "move", "dblclick":
		lat, lng, err := parseLatLng(args)
		if err != nil {
			return false, err
		}
		if cmd == "dblclick" {
			return false, s.engine.DoubleClick(lat, lng)
		}
		return false, s.engine.MoveMarker(lat, lng)
	case "goto":
		if len(args) == 0 {
			return false, errors.New("usage: goto <place>")
		}
		if s.geocoder == nil {
			return false, errors.New("goto needs a Google Maps API key")
		}
		c, err := s.geocoder.GeocodeLocation(ctx, strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		return false, s.engine.MoveMarker(c.Lat, c.Lng)
	case "locate":
		return false, s.engine.RequestGeolocation()
	case "location":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return false, errors.New("usage: location on|off")
		}
		return false, s.engine.SetLocationEnabled(args[0] == "on")
	case "chime":
		if _, err := s.engine.Trigger(ctx); err != nil {
			return false, err
		}
	case "status":
		s.console.println(details(s.engine.Labels()))
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

func parseLatLng(args []string) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("want <lat> <lng>")
	}
	lat, err := strconv.ParseFloat(strings.TrimSuffix(args[0], ","), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude %q", args[0])
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude %q", args[1])
	}
	return lat, lng, nil
}
