package wall_nav

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// overlapLink counts calls that ran while another call was in flight.
type overlapLink struct {
	inFlight atomic.Int32
	overlaps atomic.Int32
	calls    atomic.Int32
}

func (o *overlapLink) enter() func() {
	o.calls.Add(1)
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	time.Sleep(100 * time.Microsecond)
	return func() { o.inFlight.Add(-1) }
}

func (o *overlapLink) ReadLidars(context.Context) (Lidars, error) {
	defer o.enter()()
	return Lidars{}.With(ChannelFront, Meters(1)), nil
}

func (o *overlapLink) ReadVelocity(context.Context) (Velocity, error) {
	defer o.enter()()
	return Velocity{X: 0.1}, nil
}

func (o *overlapLink) IssueCommand(context.Context, Command, bool) error {
	defer o.enter()()
	return nil
}

func (o *overlapLink) TurnBy(context.Context, float64, float64, float64, bool) error {
	defer o.enter()()
	return nil
}

func (o *overlapLink) MoveBy(context.Context, float64, float64, float64, bool) error {
	defer o.enter()()
	return nil
}

func TestGuardedLink_SerializesCalls(t *testing.T) {
	inner := &overlapLink{}
	g := NewGuardedLink(inner)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				switch (i + j) % 5 {
				case 0:
					_, _ = g.ReadLidars(ctx)
				case 1:
					_, _ = g.ReadVelocity(ctx)
				case 2:
					_ = g.IssueCommand(ctx, Command{}, false)
				case 3:
					_ = g.TurnBy(ctx, 0, 0, 60, true)
				default:
					_, _, _ = g.Telemetry(ctx)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, inner.overlaps.Load())
	assert.Greater(t, inner.calls.Load(), int32(160))
}

func TestGuardedLink_TelemetryReadsBoth(t *testing.T) {
	g := NewGuardedLink(&overlapLink{})
	l, v, err := g.Telemetry(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Meters(1), l[ChannelFront])
	assert.Equal(t, 0.1, v.X)
}
