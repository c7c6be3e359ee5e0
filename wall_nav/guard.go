package wall_nav

import (
	"context"
	"sync"
)

// GuardedLink serializes every call to the wrapped link so a command and a
// telemetry read from another goroutine never interleave.
type GuardedLink struct {
	mu   sync.Mutex
	link FlightLink
}

// NewGuardedLink wraps link.
func NewGuardedLink(link FlightLink) *GuardedLink {
	return &GuardedLink{link: link}
}

func (g *GuardedLink) ReadLidars(ctx context.Context) (Lidars, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link.ReadLidars(ctx)
}

func (g *GuardedLink) ReadVelocity(ctx context.Context) (Velocity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link.ReadVelocity(ctx)
}

func (g *GuardedLink) IssueCommand(ctx context.Context, cmd Command, wait bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link.IssueCommand(ctx, cmd, wait)
}

func (g *GuardedLink) TurnBy(ctx context.Context, roll, pitch, yaw float64, wait bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link.TurnBy(ctx, roll, pitch, yaw, wait)
}

func (g *GuardedLink) MoveBy(ctx context.Context, dx, dy, dz float64, wait bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link.MoveBy(ctx, dx, dy, dz, wait)
}

// Telemetry reads lidars and velocity under one lock so they describe the same instant.
func (g *GuardedLink) Telemetry(ctx context.Context) (Lidars, Velocity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lidars, err := g.link.ReadLidars(ctx)
	if err != nil {
		return Lidars{}, Velocity{}, err
	}
	vel, err := g.link.ReadVelocity(ctx)
	if err != nil {
		return Lidars{}, Velocity{}, err
	}
	return lidars, vel, nil
}
