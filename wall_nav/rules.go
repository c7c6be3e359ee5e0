package wall_nav

import (
	"context"
	"fmt"
)

// overrideRule adjusts the tick's command draft when its condition holds.
type overrideRule struct {
	behavior Behavior
	apply    func(ctx context.Context, dc *DroneController, d *draft) (bool, error)
}

// overrideRules run in this order on every tick and do not exclude each other:
// a later rule overwrites whatever an earlier one set.
var overrideRules = []overrideRule{
	{behavior: BehaviorRotateTowardWall, apply: rotateTowardWall},
	{behavior: BehaviorReacquireWall, apply: reacquireWall},
	{behavior: BehaviorTunnel, apply: tunnel},
	{behavior: BehaviorEmergency, apply: brake},
}

// rotateTowardWall spins counter-clockwise while a wall approaches ahead.
func rotateTowardWall(_ context.Context, dc *DroneController, d *draft) (bool, error) {
	front := d.lidars[ChannelFront]
	if !front.Valid || front.Meters <= 0 || front.Meters >= dc.Cfg.RotateFrontFactor*dc.front.Setpoint() {
		return false, nil
	}
	d.cmd.YawRate = dc.Cfg.BaseYawSpeed * dc.Cfg.RotateYawMultiplier
	return true, nil
}

// reacquireWall turns toward the expected wall side when the right lidar sees
// nothing (or the error sentinel), then nudges forward if the way ahead is open.
func reacquireWall(ctx context.Context, dc *DroneController, d *draft) (bool, error) {
	right := d.lidars[ChannelRight]
	if !right.Valid || !(right.Meters > dc.Cfg.LidarInfinity || right.Meters == dc.Cfg.RightError) {
		return false, nil
	}

	res, err := dc.reacquire(ctx)
	if err != nil {
		return false, err
	}
	d.reacq = res.reacq
	d.lidars = res.lidars
	return true, nil
}

type reacquireResult struct {
	reacq  *Reacquisition
	lidars Lidars
}

// reacquire is the blocking turn, re-sense, nudge sequence. It runs once per
// call and never retries.
func (dc *DroneController) reacquire(ctx context.Context) (reacquireResult, error) {
	if err := dc.link.TurnBy(ctx, 0, 0, dc.Cfg.ReacquireYaw, true); err != nil {
		return reacquireResult{}, fmt.Errorf("turn by %.1f deg: %w", dc.Cfg.ReacquireYaw, err)
	}

	raw, err := dc.link.ReadLidars(ctx)
	if err != nil {
		return reacquireResult{}, fmt.Errorf("re-read lidars: %w", err)
	}
	lidars := Condition(raw, dc.Cfg.Fallback)

	res := &Reacquisition{Turned: dc.Cfg.ReacquireYaw, Front: lidars[ChannelFront]}
	if front := lidars[ChannelFront]; front.Valid && front.Meters >= dc.front.Setpoint() {
		if err := dc.link.MoveBy(ctx, dc.Cfg.ReacquireNudge, 0, 0, true); err != nil {
			return reacquireResult{}, fmt.Errorf("nudge forward: %w", err)
		}
		res.Nudged = true
	}
	return reacquireResult{reacq: res, lidars: lidars}, nil
}

// tunnel marks walls close on both sides. Centering comes only from the
// channel controllers; no extra correction is applied. The left channel is
// not conditioned, so a negative left reading counts as close.
func tunnel(_ context.Context, dc *DroneController, d *draft) (bool, error) {
	left := d.lidars[ChannelLeft]
	right := d.lidars[ChannelRight]
	return left.Valid && right.Valid &&
		left.Meters < dc.Cfg.TunnelThreshold &&
		right.Meters < dc.Cfg.TunnelThreshold, nil
}

// brake forces a small backward pitch above the forward speed limit.
func brake(_ context.Context, dc *DroneController, d *draft) (bool, error) {
	if d.velocity.X <= dc.Cfg.BrakeVelocity {
		return false, nil
	}
	d.cmd.Pitch = dc.Cfg.BrakePitch
	return true, nil
}
