package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the MusicBrainz usage policy: one request per second.
const DefaultMinInterval = time.Second

// Gate serializes outbound requests to one provider so that at most one
// request starts per interval, across every goroutine sharing the Gate.
// Create one per provider at startup and hand it to the adapter.
//
// Callers hold the gate's mutex while they wait, so the limiter's notion of
// the last request time only advances once the wait is over. The same mutex
// guards any shared connection state the adapter swaps via Locked.
type Gate struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
}

// NewGate creates a Gate admitting one request per interval. A non-positive
// interval disables waiting.
func NewGate(interval time.Duration) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Interval returns the minimum spacing between requests.
func (g *Gate) Interval() time.Duration { return g.interval }

// Wait blocks until the caller may issue its request, or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limiter.Wait(ctx)
}

// Locked runs fn under the gate's exclusion.
func (g *Gate) Locked(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}
