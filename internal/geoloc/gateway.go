package geoloc

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the gateway's position-permission state.
type Status int

const (
	// StatusUnknown means no request has completed yet; a request may be
	// pending indefinitely and consumers must tolerate that.
	StatusUnknown Status = iota
	// StatusGranted means coordinates are cached and usable.
	StatusGranted
	// StatusDenied means the platform reported a permission refusal.
	StatusDenied
	// StatusUnavailable means position could not be determined for any
	// other reason (no capability, timeout, platform error).
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Coords is a geographic position reported by the platform.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Failure reasons a PositionProvider reports. Anything that is not a
// permission refusal maps to unavailable.
var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("geolocation position unavailable")
)

// PositionProvider is the platform's single-shot "get current position"
// call. It may serve a cached position no older than maxAge. It must honor
// ctx cancellation; the gateway bounds every call with its request timeout.
type PositionProvider interface {
	CurrentPosition(ctx context.Context, maxAge time.Duration) (Coords, error)
}

const (
	defaultTimeout = 10 * time.Second
	defaultMaxAge  = 5 * time.Minute
)

// Gateway wraps the asynchronous permission/position request into the
// 4-state model. At most one request is outstanding: triggers that arrive
// while one is in flight are dropped, and a new request only starts via
// Retry after a terminal state.
type Gateway struct {
	provider PositionProvider
	logger   *zap.Logger
	timeout  time.Duration
	maxAge   time.Duration

	mu       sync.Mutex
	status   Status
	coords   *Coords // sticky once granted
	inFlight bool

	onChange func(Status, *Coords)
}

// NewGateway builds a gateway over the platform provider. A nil provider
// models a platform without location capability: every request transitions
// straight to unavailable.
func NewGateway(provider PositionProvider, logger *zap.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		logger:   logger,
		timeout:  defaultTimeout,
		maxAge:   defaultMaxAge,
	}
}

// OnChange registers the single listener notified after each state transition.
// Must be called before the first Request.
func (g *Gateway) OnChange(fn func(Status, *Coords)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Status returns the current state and the cached coordinates, which stay
// set across failed re-requests once granted.
func (g *Gateway) Status() (Status, *Coords) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, g.coords
}

// Request starts one position request unless another is already pending.
// It returns immediately; the outcome arrives via OnChange.
func (g *Gateway) Request() {
	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return
	}
	if g.provider == nil {
		g.status = StatusUnavailable
		fn, st, co := g.onChange, g.status, g.coords
		g.mu.Unlock()
		if g.logger != nil {
			g.logger.Info("Geolocation unavailable: no platform capability")
		}
		notify(fn, st, co)
		return
	}
	g.inFlight = true
	g.mu.Unlock()

	go g.run()
}

// Retry forces the state back to unknown and re-issues the request. Used
// when the user re-selects "nearest" after a prior denial, since the
// permission may have changed externally. A no-op while a request is
// pending.
func (g *Gateway) Retry() {
	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return
	}
	g.status = StatusUnknown
	g.mu.Unlock()
	g.Request()
}

func (g *Gateway) run() {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	coords, err := g.provider.CurrentPosition(ctx, g.maxAge)

	g.mu.Lock()
	g.inFlight = false
	switch {
	case err == nil:
		g.status = StatusGranted
		c := coords
		g.coords = &c
	case errors.Is(err, ErrPermissionDenied):
		// Coordinates stay untouched: a previously granted position remains
		// usable for nearest resolution.
		g.status = StatusDenied
	default:
		g.status = StatusUnavailable
	}
	fn, st, co := g.onChange, g.status, g.coords
	g.mu.Unlock()

	if g.logger != nil {
		if err != nil {
			g.logger.Warn("Geolocation request failed",
				zap.String("status", st.String()),
				zap.Error(err))
		} else {
			g.logger.Info("Geolocation granted",
				zap.Float64("lat", coords.Lat),
				zap.Float64("lon", coords.Lon))
		}
	}

	notify(fn, st, co)
}

func notify(fn func(Status, *Coords), st Status, co *Coords) {
	if fn != nil {
		fn(st, co)
	}
}
