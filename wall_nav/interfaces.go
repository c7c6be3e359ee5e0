package wall_nav

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Channel names one range-finder direction.
type Channel int

const (
	ChannelFront Channel = iota
	ChannelRight
	ChannelLeft
	ChannelBack
	ChannelUp
	ChannelDown

	numChannels
)

// Channels lists every lidar direction in wire order.
var Channels = [numChannels]Channel{ChannelFront, ChannelRight, ChannelLeft, ChannelBack, ChannelUp, ChannelDown}

func (c Channel) String() string {
	switch c {
	case ChannelFront:
		return "front"
	case ChannelRight:
		return "right"
	case ChannelLeft:
		return "left"
	case ChannelBack:
		return "back"
	case ChannelUp:
		return "up"
	case ChannelDown:
		return "down"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Range is a single lidar sample in meters.
//
// Conventions:
//   - Valid == false means the driver produced no value at all.
//   - A negative Meters with Valid == true is the driver's "no reflection" sentinel.
type Range struct {
	Meters float64
	Valid  bool
}

// Meters returns a present sample.
func Meters(v float64) Range {
	return Range{Meters: v, Valid: true}
}

// NoReading is the absent sample.
var NoReading = Range{}

// Usable reports whether the sample may feed a controller.
func (r Range) Usable() bool {
	return r.Valid && r.Meters >= 0
}

func (r Range) String() string {
	if !r.Valid {
		return "none"
	}
	return fmt.Sprintf("%.3f", r.Meters)
}

// Lidars holds one sample per Channel for a single tick.
type Lidars [numChannels]Range

// With returns a copy of l with c replaced.
func (l Lidars) With(c Channel, r Range) Lidars {
	l[c] = r
	return l
}

func (l Lidars) String() string {
	parts := make([]string, 0, numChannels)
	for _, c := range Channels {
		parts = append(parts, c.String()+"="+l[c].String())
	}
	return strings.Join(parts, " ")
}

// Velocity is linear (m/s) and angular (deg/s) velocity in the drone's own frame.
type Velocity struct {
	X, Y, Z          float64
	Roll, Pitch, Yaw float64
}

// FlightSnapshot is the read-only input of one decision cycle.
type FlightSnapshot struct {
	T        time.Time
	Lidars   Lidars
	Velocity Velocity
}

// Command is the attitude command issued once per tick.
type Command struct {
	Roll     float64 // deg
	Pitch    float64 // deg
	YawRate  float64 // deg/s
	Altitude float64 // m, NED z (negative is up)
}

// Behavior labels what the navigator decided to do on a tick.
type Behavior int

const (
	BehaviorCruise Behavior = iota + 1
	BehaviorRotateTowardWall
	BehaviorReacquireWall
	BehaviorTunnel
	BehaviorEmergency
)

func (b Behavior) String() string {
	switch b {
	case BehaviorCruise:
		return "CRUISE"
	case BehaviorRotateTowardWall:
		return "ROTATE_TOWARD_WALL"
	case BehaviorReacquireWall:
		return "REACQUIRE_WALL"
	case BehaviorTunnel:
		return "TUNNEL"
	case BehaviorEmergency:
		return "EMERGENCY"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// PIDOutputs are the raw controller outputs computed on a tick.
type PIDOutputs struct {
	Front float64
	Right float64
	Left  float64
}

// Decision is the full result of one tick.
type Decision struct {
	T        time.Time
	Behavior Behavior
	// Fired lists every override rule that matched, in evaluation order.
	Fired   []Behavior
	PID     PIDOutputs
	Lidars  Lidars
	Command Command
	// Reacquisition is set when the wall search ran on this tick.
	Reacquisition *Reacquisition
}

// HasFired reports whether b matched on this tick.
func (d Decision) HasFired(b Behavior) bool {
	for _, f := range d.Fired {
		if f == b {
			return true
		}
	}
	return false
}

// Status renders the human-readable line shown by external monitors.
func (d Decision) Status() string {
	fired := make([]string, 0, len(d.Fired))
	for _, f := range d.Fired {
		fired = append(fired, f.String())
	}
	return fmt.Sprintf(
		"mode=%-18s fired=[%s] cmd(roll=%+.3f pitch=%+.3f yaw_rate=%+.3f alt=%+.2f) pid(front=%+.3f right=%+.3f left=%+.3f)",
		d.Behavior.String(),
		strings.Join(fired, ","),
		d.Command.Roll,
		d.Command.Pitch,
		d.Command.YawRate,
		d.Command.Altitude,
		d.PID.Front,
		d.PID.Right,
		d.PID.Left,
	)
}

// FlightLink is the vehicle or simulator the navigator flies.
//
// Every call is synchronous and may block on transport latency. Any returned
// error is treated as a lost link.
type FlightLink interface {
	ReadLidars(ctx context.Context) (Lidars, error)
	ReadVelocity(ctx context.Context) (Velocity, error)
	IssueCommand(ctx context.Context, cmd Command, wait bool) error
	TurnBy(ctx context.Context, roll, pitch, yaw float64, wait bool) error
	MoveBy(ctx context.Context, dx, dy, dz float64, wait bool) error
}
