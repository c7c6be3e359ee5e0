package wall_nav

import (
	"context"
	"sync"
)

// Gate is the pausable wait the loop passes through at the top of each tick.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewGate constructs a gate, optionally closed.
func NewGate(paused bool) *Gate {
	g := &Gate{}
	if paused {
		g.Pause()
	}
	return g
}

// Pause closes the gate; waiters block until Resume or cancellation.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

// Resume opens the gate and releases every waiter.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
}

// Paused reports whether the gate is closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is closed. It returns ctx.Err() once ctx is done,
// before or after waiting.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	paused, ch := g.paused, g.resume
	g.mu.Unlock()

	if paused {
		select {
		case <-ctx.Done():
		case <-ch:
		}
	}
	return ctx.Err()
}
