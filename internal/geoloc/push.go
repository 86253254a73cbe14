package geoloc

import (
	"context"
	"sync"
	"time"
)

// PushProvider adapts a browser-style platform where the position arrives
// out-of-band (the client posts it to the API) to the PositionProvider
// pull contract. CurrentPosition blocks until a report lands or the
// context expires; a report fresher than maxAge is served from cache
// without waiting.
type PushProvider struct {
	mu      sync.Mutex
	last    *report
	waiters []chan report
}

type report struct {
	coords Coords
	err    error
	at     time.Time
}

func NewPushProvider() *PushProvider {
	return &PushProvider{}
}

// Report delivers a successful position fix from the platform binding.
func (p *PushProvider) Report(coords Coords) {
	p.deliver(report{coords: coords, at: time.Now()})
}

// ReportFailure delivers a failed fix. Use ErrPermissionDenied for refusals;
// anything else counts as unavailable.
func (p *PushProvider) ReportFailure(err error) {
	p.deliver(report{err: err, at: time.Now()})
}

func (p *PushProvider) deliver(r report) {
	p.mu.Lock()
	p.last = &r
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w <- r
	}
}

func (p *PushProvider) CurrentPosition(ctx context.Context, maxAge time.Duration) (Coords, error) {
	p.mu.Lock()
	if p.last != nil && p.last.err == nil && time.Since(p.last.at) <= maxAge {
		r := *p.last
		p.mu.Unlock()
		return r.coords, nil
	}
	ch := make(chan report, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case r := <-ch:
		return r.coords, r.err
	case <-ctx.Done():
		return Coords{}, ErrPositionUnavailable
	}
}
