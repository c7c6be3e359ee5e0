package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wall-navigation/wall_nav"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// corner has a wall 5 m north and a wall 2 m east of the origin.
func corner() wall_nav.SimConfig {
	return wall_nav.SimConfig{
		Walls: []wall_nav.SimWall{
			{5, -10, 5, 10},
			{-10, 2, 10, 2},
		},
		Altitude:   -1,
		Ceiling:    3,
		LidarRange: 10,
		Drag:       1.2,
	}
}

func frozen() Option {
	return WithClock(func() time.Time { return epoch })
}

func TestReadLidars_RayCastsWalls(t *testing.T) {
	d := New(corner(), frozen())

	l, err := d.ReadLidars(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 5, l[wall_nav.ChannelFront].Meters, 1e-9)
	assert.InDelta(t, 2, l[wall_nav.ChannelRight].Meters, 1e-9)
	assert.Equal(t, wall_nav.Meters(-1), l[wall_nav.ChannelLeft])
	assert.Equal(t, wall_nav.Meters(-1), l[wall_nav.ChannelBack])
	assert.InDelta(t, 1, l[wall_nav.ChannelDown].Meters, 1e-9)
	assert.InDelta(t, 2, l[wall_nav.ChannelUp].Meters, 1e-9)
	for _, c := range wall_nav.Channels {
		assert.True(t, l[c].Valid, c.String())
	}
}

func TestReadLidars_OutOfRangeIsNoReflection(t *testing.T) {
	cfg := corner()
	cfg.LidarRange = 3
	d := New(cfg, frozen())

	l, err := d.ReadLidars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wall_nav.Meters(-1), l[wall_nav.ChannelFront])
	assert.InDelta(t, 2, l[wall_nav.ChannelRight].Meters, 1e-9)
}

func TestTurnBy_PositiveYawIsClockwise(t *testing.T) {
	d := New(corner(), frozen())
	ctx := context.Background()

	require.NoError(t, d.TurnBy(ctx, 0, 0, 90, true))
	_, _, heading := d.Pose()
	assert.InDelta(t, 90, heading, 1e-9)

	l, err := d.ReadLidars(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2, l[wall_nav.ChannelFront].Meters, 1e-9)
	assert.InDelta(t, 5, l[wall_nav.ChannelLeft].Meters, 1e-9)
	assert.Equal(t, wall_nav.Meters(-1), l[wall_nav.ChannelRight])

	assert.Equal(t, []Turn{{Yaw: 90, Wait: true}}, d.Turns())
}

func TestMoveBy_BodyFrameAndWalls(t *testing.T) {
	d := New(corner(), frozen())
	ctx := context.Background()

	require.NoError(t, d.MoveBy(ctx, 1, 0.5, 0, true))
	pos, _, _ := d.Pose()
	assert.InDelta(t, 1, pos.X, 1e-9)
	assert.InDelta(t, 0.5, pos.Y, 1e-9)

	// Straight through the north wall: blocked.
	require.NoError(t, d.MoveBy(ctx, 10, 0, 0, true))
	pos, _, _ = d.Pose()
	assert.InDelta(t, 1, pos.X, 1e-9)
	assert.Equal(t, 1, d.Collisions())
	assert.Len(t, d.Moves(), 2)
}

func TestStep_PitchFliesForwardRollFliesRight(t *testing.T) {
	ctx := context.Background()

	d := New(corner(), frozen())
	require.NoError(t, d.IssueCommand(ctx, wall_nav.Command{Pitch: 10, Altitude: -1}, false))
	d.Step(time.Second)
	pos, _, _ := d.Pose()
	assert.Greater(t, pos.X, 0.1)
	assert.InDelta(t, 0, pos.Y, 1e-9)
	v, err := d.ReadVelocity(ctx)
	require.NoError(t, err)
	assert.Greater(t, v.X, 0.0)

	d = New(corner(), frozen())
	require.NoError(t, d.IssueCommand(ctx, wall_nav.Command{Roll: 5, Altitude: -1}, false))
	d.Step(500 * time.Millisecond)
	pos, _, _ = d.Pose()
	assert.Greater(t, pos.Y, 0.0)
	assert.InDelta(t, 0, pos.X, 1e-9)
}

func TestStep_AttitudeIsTiltLimited(t *testing.T) {
	ctx := context.Background()
	open := wall_nav.SimConfig{Altitude: -1, Drag: 1.2}

	fly := func(pitch float64) float64 {
		d := New(open, frozen())
		require.NoError(t, d.IssueCommand(ctx, wall_nav.Command{Pitch: pitch, Altitude: -1}, false))
		d.Step(500 * time.Millisecond)
		pos, _, _ := d.Pose()
		return pos.X
	}

	assert.InDelta(t, fly(maxTilt), fly(120), 1e-9)
	// Past the limit a command still pushes the way its sign says.
	assert.Less(t, fly(-95), 0.0)
	assert.InDelta(t, fly(-maxTilt), fly(-95), 1e-9)
}

func TestStep_PositiveYawRateIsCounterClockwise(t *testing.T) {
	d := New(corner(), frozen())
	require.NoError(t, d.IssueCommand(context.Background(), wall_nav.Command{YawRate: 90, Altitude: -1}, false))

	d.Step(time.Second)
	_, _, heading := d.Pose()
	assert.InDelta(t, 270, heading, 1e-6)
}

func TestStep_AltitudeTracksTarget(t *testing.T) {
	d := New(corner(), frozen())
	require.NoError(t, d.IssueCommand(context.Background(), wall_nav.Command{Altitude: -2}, false))

	d.Step(5 * time.Second)
	_, z, _ := d.Pose()
	assert.InDelta(t, -2, z, 1e-3)
}

func TestClockDrivesIntegration(t *testing.T) {
	now := epoch
	d := New(corner(), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, d.IssueCommand(ctx, wall_nav.Command{Pitch: 10, Altitude: -1}, false))

	now = now.Add(time.Second)
	l, err := d.ReadLidars(ctx)
	require.NoError(t, err)
	assert.Less(t, l[wall_nav.ChannelFront].Meters, 5.0)
}

func TestFailAndCancellation(t *testing.T) {
	d := New(corner(), frozen())
	boom := errors.New("radio lost")

	d.Fail(boom)
	_, err := d.ReadLidars(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, d.IssueCommand(context.Background(), wall_nav.Command{}, false), boom)
	assert.Zero(t, d.Commands())

	d.Fail(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.ReadVelocity(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, d.TurnBy(ctx, 0, 0, 60, true), context.Canceled)
	assert.Empty(t, d.Turns())
}
