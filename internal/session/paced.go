package session

import (
	"context"
	"time"

	"endpoint-prober/internal/clock"
)

// Paced wraps a Client and pauses for a fixed duration between consecutive
// calls. The first call is not delayed. Not safe for concurrent use.
type Paced struct {
	next   Client
	clock  clock.Clock
	pause  time.Duration
	called bool
	calls  int
}

// NewPaced creates a pacing decorator around next
func NewPaced(next Client, clk clock.Clock, pause time.Duration) *Paced {
	return &Paced{next: next, clock: clk, pause: pause}
}

// Do waits out the pause (unless this is the first call) and forwards req
func (p *Paced) Do(ctx context.Context, req Request) (*Response, error) {
	if p.called {
		if err := p.clock.SleepContext(ctx, p.pause); err != nil {
			return nil, err
		}
	}
	p.called = true
	p.calls++
	return p.next.Do(ctx, req)
}

// Calls returns how many calls went through the decorator
func (p *Paced) Calls() int {
	return p.calls
}
