package wall_nav

import (
	"context"
	"fmt"
)

// ControllerConfig bundles the controller gains and the wall-following policy.
type ControllerConfig struct {
	FrontPID PIDConfig      `yaml:"front_pid"`
	RightPID PIDConfig      `yaml:"right_pid"`
	LeftPID  PIDConfig      `yaml:"left_pid"`
	Fallback FallbackConfig `yaml:"fallback"`

	// Cruise.
	YawBias        float64 `yaml:"yaw_bias"`
	TargetAltitude float64 `yaml:"target_altitude"`
	PitchScale     float64 `yaml:"pitch_scale"`

	// Rotate toward an approaching wall while front < RotateFrontFactor*front setpoint.
	RotateFrontFactor   float64 `yaml:"rotate_front_factor"`
	BaseYawSpeed        float64 `yaml:"base_yaw_speed"`
	RotateYawMultiplier float64 `yaml:"rotate_yaw_multiplier"`

	// Reacquire a lost right wall.
	LidarInfinity  float64 `yaml:"lidar_infinity"`
	RightError     float64 `yaml:"right_error"`
	ReacquireYaw   float64 `yaml:"reacquire_yaw"`
	ReacquireNudge float64 `yaml:"reacquire_nudge"`

	TunnelThreshold float64 `yaml:"tunnel_threshold"`

	// Speed-limiting brake.
	BrakeVelocity float64 `yaml:"brake_velocity"`
	BrakePitch    float64 `yaml:"brake_pitch"`

	// StartOffset is an optional body-frame move flown once before the loop.
	StartOffset [3]float64 `yaml:"start_offset"`
}

// Reacquisition records what the one-shot wall search did on a tick.
type Reacquisition struct {
	Turned float64
	Front  Range
	Nudged bool
}

// DroneController owns the three channel controllers and runs the override rules.
type DroneController struct {
	Cfg   ControllerConfig
	link  FlightLink
	front *PID
	right *PID
	left  *PID
}

// NewDroneController constructs a controller flying through link.
func NewDroneController(cfg ControllerConfig, link FlightLink) *DroneController {
	return &DroneController{
		Cfg:   cfg,
		link:  link,
		front: NewPID(cfg.FrontPID),
		right: NewPID(cfg.RightPID),
		left:  NewPID(cfg.LeftPID),
	}
}

// draft is the command being assembled during one tick.
type draft struct {
	lidars   Lidars
	velocity Velocity
	cmd      Command
	reacq    *Reacquisition
}

// Tick runs one decision cycle over snap and returns the command to issue.
//
// The only error source is the reacquisition sub-sequence talking to the link.
func (dc *DroneController) Tick(ctx context.Context, snap FlightSnapshot) (Decision, error) {
	lidars := Condition(snap.Lidars, dc.Cfg.Fallback)

	pid := PIDOutputs{
		Front: dc.front.Update(lidars[ChannelFront], snap.T),
		Right: dc.right.Update(lidars[ChannelRight], snap.T),
		Left:  dc.left.Update(lidars[ChannelLeft], snap.T),
	}

	d := &draft{
		lidars:   lidars,
		velocity: snap.Velocity,
		cmd: Command{
			Roll:     pid.Right,
			Pitch:    pid.Front,
			YawRate:  dc.Cfg.YawBias,
			Altitude: dc.Cfg.TargetAltitude,
		},
	}

	var fired []Behavior
	for _, r := range overrideRules {
		ok, err := r.apply(ctx, dc, d)
		if err != nil {
			return Decision{}, fmt.Errorf("%s: %w", r.behavior, err)
		}
		if ok {
			fired = append(fired, r.behavior)
		}
	}
	d.cmd.Pitch *= dc.Cfg.PitchScale

	return Decision{
		T:             snap.T,
		Behavior:      classify(fired),
		Fired:         fired,
		PID:           pid,
		Lidars:        d.lidars,
		Command:       d.cmd,
		Reacquisition: d.reacq,
	}, nil
}

// ResetControllers clears the history of every channel controller.
func (dc *DroneController) ResetControllers() {
	dc.front.Reset()
	dc.right.Reset()
	dc.left.Reset()
}

// PIDStates returns the history of the front, right and left controllers.
func (dc *DroneController) PIDStates() map[Channel]PIDState {
	return map[Channel]PIDState{
		ChannelFront: dc.front.State(),
		ChannelRight: dc.right.State(),
		ChannelLeft:  dc.left.State(),
	}
}

// classify labels the tick with the last wall rule that fired. The brake does
// not change the label.
func classify(fired []Behavior) Behavior {
	label := BehaviorCruise
	for _, b := range fired {
		if b != BehaviorEmergency {
			label = b
		}
	}
	return label
}
