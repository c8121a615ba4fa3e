// Package offset resolves UTC offsets for map coordinates.
//
// A Resolver turns a coordinate into a zone name through a zonefinder.Finder
// and the zone name into minutes east of UTC for the current instant.
// Every lookup started through Start receives a generation Token; only the
// lookup holding the newest token is current, and callers discard results
// whose token has been superseded.
package offset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/quartz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/codeGROOVE-dev/chimeTZ/pkg/coord"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/tzconvert"
	"github.com/codeGROOVE-dev/chimeTZ/pkg/zonefinder"
)

const instrumentationName = "github.com/codeGROOVE-dev/chimeTZ/pkg/offset"

var (
	// ErrLookupFailed is the class of every recoverable lookup failure.
	ErrLookupFailed = errors.New("time zone lookup failed")
	// ErrNoZone means the finder knows no zone for the coordinate.
	ErrNoZone = fmt.Errorf("%w: no zone for coordinate", ErrLookupFailed)
	// ErrNotInitialized means Init has not completed successfully.
	ErrNotInitialized = fmt.Errorf("%w: resolver not initialized", ErrLookupFailed)
)

// Token identifies one lookup generation. The zero Token is never issued.
type Token uint64

// Offset is a resolved UTC offset.
type Offset struct {
	Zone    string // IANA name, empty when no lookup was made or none matched
	Minutes int
}

// Resolver converts coordinates to UTC offsets.
type Resolver struct {
	finder  zonefinder.Finder
	clock   quartz.Clock
	logger  *slog.Logger
	pending map[Token]*Lookup

	lookups metric.Int64Counter
	stale   metric.Int64Counter

	current     Token
	initialized bool
	mu          sync.Mutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used to decide what "now" is.
func WithClock(c quartz.Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver over finder. Metrics go to the global OTel meter
// provider, which is a no-op unless one is configured.
func New(finder zonefinder.Finder, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		finder:  finder,
		clock:   quartz.NewReal(),
		logger:  slog.Default(),
		pending: make(map[Token]*Lookup),
	}
	for _, opt := range opts {
		opt(r)
	}

	m := otel.Meter(instrumentationName)
	var err error
	r.lookups, err = m.Int64Counter(
		"chimetz.offset.lookups",
		metric.WithDescription("Offset lookups by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating lookups counter: %w", err)
	}
	r.stale, err = m.Int64Counter(
		"chimetz.offset.stale_discards",
		metric.WithDescription("Lookup results discarded because a newer lookup superseded them"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stale counter: %w", err)
	}

	return r, nil
}

// Init prepares the underlying finder. It must succeed before lookups can.
func (r *Resolver) Init(ctx context.Context) error {
	r.mu.Lock()
	done := r.initialized
	r.mu.Unlock()
	if done {
		return nil
	}

	if err := r.finder.Init(ctx); err != nil {
		return fmt.Errorf("initializing zone finder: %w", err)
	}

	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()
	return nil
}

// Offset resolves c synchronously.
//
// A coordinate that is still the zero sentinel resolves to 0 without a
// lookup. A coordinate with no zone resolves to 0 with ErrNoZone. Finder
// failures are wrapped in ErrLookupFailed.
func (r *Resolver) Offset(ctx context.Context, c coord.Coordinate) (Offset, error) {
	if c.IsZeroSentinel() {
		r.record(ctx, "skipped")
		return Offset{}, nil
	}

	r.mu.Lock()
	ready := r.initialized
	r.mu.Unlock()
	if !ready {
		r.record(ctx, "failed")
		return Offset{}, ErrNotInitialized
	}

	zone, err := r.finder.LookupZoneName(ctx, c.Lat, c.Lng)
	if err != nil {
		r.record(ctx, "failed")
		return Offset{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if zone == "" {
		r.logger.Warn("no time zone found", "lat", c.Lat, "lng", c.Lng)
		r.record(ctx, "no_zone")
		return Offset{}, ErrNoZone
	}

	minutes, err := tzconvert.ZoneOffsetMinutes(zone, r.clock.Now())
	if err != nil {
		r.record(ctx, "failed")
		return Offset{Zone: zone}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	r.record(ctx, "ok")
	r.logger.Debug("resolved time zone", "lat", c.Lat, "lng", c.Lng, "zone", zone, "offset_minutes", minutes)
	return Offset{Zone: zone, Minutes: minutes}, nil
}

// Start begins an asynchronous lookup for c and makes it the current one.
// Any lookup still in flight is superseded and its context cancelled.
func (r *Resolver) Start(ctx context.Context, c coord.Coordinate) *Lookup {
	lctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancelPendingLocked()
	r.current++
	l := &Lookup{
		Token:      r.current,
		Coordinate: c,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	r.pending[l.Token] = l
	r.mu.Unlock()

	r.logger.Debug("starting time zone lookup", "token", l.Token, "lat", c.Lat, "lng", c.Lng)

	go func() {
		defer cancel()
		off, err := r.Offset(lctx, c)
		l.off, l.err = off, err

		r.mu.Lock()
		delete(r.pending, l.Token)
		r.mu.Unlock()
		close(l.done)
	}()

	return l
}

// Invalidate supersedes every issued lookup without starting a new one.
func (r *Resolver) Invalidate() Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelPendingLocked()
	r.current++
	return r.current
}

// Current returns the newest issued token.
func (r *Resolver) Current() Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Accept reports whether a result carrying tok may be applied, counting a
// stale discard when it may not.
func (r *Resolver) Accept(tok Token) bool {
	r.mu.Lock()
	ok := tok == r.current
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("discarding stale lookup result", "token", tok)
		r.stale.Add(context.Background(), 1)
	}
	return ok
}

// Pending reports whether any lookup is still running.
func (r *Resolver) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

// cancelPendingLocked cancels in-flight lookups. They stay in the table
// until their goroutine finishes so Pending remains truthful.
func (r *Resolver) cancelPendingLocked() {
	for _, l := range r.pending {
		l.cancel()
	}
}

func (r *Resolver) record(ctx context.Context, outcome string) {
	r.lookups.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Lookup is one in-flight or finished asynchronous lookup.
type Lookup struct {
	err        error
	cancel     context.CancelFunc
	done       chan struct{}
	off        Offset
	Coordinate coord.Coordinate
	Token      Token
}

// Done is closed when the lookup has finished.
func (l *Lookup) Done() <-chan struct{} {
	return l.done
}

// Result returns the outcome. It must only be called after Done is closed.
func (l *Lookup) Result() (Offset, error) {
	return l.off, l.err
}

// Wait blocks until the lookup finishes or ctx is done.
func (l *Lookup) Wait(ctx context.Context) (Offset, error) {
	select {
	case <-l.done:
		return l.off, l.err
	case <-ctx.Done():
		return Offset{}, ctx.Err()
	}
}
