// Package sim is an in-process kinematic drone flying among 2D walls.
//
// Positions are NED meters: north/east in the plane, z negative up. Heading
// is degrees clockwise from north.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"wall-navigation/wall_nav"
)

const (
	gravity = 9.81

	// maxStep bounds one integration step.
	maxStep = 10 * time.Millisecond

	// altitudeRate is how fast z relaxes toward its target, per second.
	altitudeRate = 2.0

	// maxTilt is the attitude limit in degrees, as an autopilot would enforce.
	maxTilt = 35.0
)

// Turn is a recorded TurnBy call.
type Turn struct {
	Roll, Pitch, Yaw float64
	Wait             bool
}

// Move is a recorded MoveBy call.
type Move struct {
	DX, DY, DZ float64
	Wait       bool
}

type segment struct {
	a, b r2.Point
}

// Drone implements wall_nav.FlightLink against a simulated world.
type Drone struct {
	mu sync.Mutex

	cfg   wall_nav.SimConfig
	walls []segment
	now   func() time.Time

	pos     r2.Point // north, east
	vel     r2.Point // NED m/s
	z       float64
	heading float64
	yawRate float64 // deg/s, positive counter-clockwise
	cmd     wall_nav.Command
	last    time.Time

	turns      []Turn
	moves      []Move
	commands   int
	collisions int
	fail       error
}

// Option configures a Drone.
type Option func(*Drone)

// WithClock drives integration from now instead of the wall clock.
func WithClock(now func() time.Time) Option {
	return func(d *Drone) { d.now = now }
}

// New places a drone at cfg.Start hovering at cfg.Altitude.
func New(cfg wall_nav.SimConfig, opts ...Option) *Drone {
	d := &Drone{
		cfg:     cfg,
		now:     time.Now,
		pos:     r2.Point{X: cfg.Start[0], Y: cfg.Start[1]},
		heading: normalize(cfg.Start[2]),
		z:       cfg.Altitude,
		cmd:     wall_nav.Command{Altitude: cfg.Altitude},
	}
	for _, w := range cfg.Walls {
		d.walls = append(d.walls, segment{a: r2.Point{X: w[0], Y: w[1]}, b: r2.Point{X: w[2], Y: w[3]}})
	}
	for _, opt := range opts {
		opt(d)
	}
	d.last = d.now()
	return d
}

// Fail makes every following call return err. A nil err clears it.
func (d *Drone) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Step integrates dt of flight without consulting the clock.
func (d *Drone) Step(dt time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.integrate(dt)
}

// Pose returns the planar position, z and heading.
func (d *Drone) Pose() (r2.Point, float64, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sync()
	return d.pos, d.z, d.heading
}

// Turns returns every TurnBy call so far.
func (d *Drone) Turns() []Turn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Turn(nil), d.turns...)
}

// Moves returns every MoveBy call so far.
func (d *Drone) Moves() []Move {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Move(nil), d.moves...)
}

// Commands counts IssueCommand calls.
func (d *Drone) Commands() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands
}

// LastCommand is the command currently flown.
func (d *Drone) LastCommand() wall_nav.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cmd
}

// Collisions counts blocked moves into a wall.
func (d *Drone) Collisions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collisions
}

func (d *Drone) ReadLidars(ctx context.Context) (wall_nav.Lidars, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return wall_nav.Lidars{}, err
	}
	d.sync()

	var l wall_nav.Lidars
	l[wall_nav.ChannelFront] = d.cast(0)
	l[wall_nav.ChannelRight] = d.cast(90)
	l[wall_nav.ChannelBack] = d.cast(180)
	l[wall_nav.ChannelLeft] = d.cast(270)
	l[wall_nav.ChannelDown] = d.vertical(-d.z)
	if d.cfg.Ceiling > 0 {
		l[wall_nav.ChannelUp] = d.vertical(d.cfg.Ceiling + d.z)
	} else {
		l[wall_nav.ChannelUp] = wall_nav.Meters(-1)
	}
	return l, nil
}

func (d *Drone) ReadVelocity(ctx context.Context) (wall_nav.Velocity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return wall_nav.Velocity{}, err
	}
	d.sync()

	fwd, right := unit(d.heading), unit(d.heading+90)
	return wall_nav.Velocity{
		X:     d.vel.Dot(fwd),
		Y:     d.vel.Dot(right),
		Z:     (d.cmd.Altitude - d.z) * altitudeRate,
		Roll:  0,
		Pitch: 0,
		Yaw:   d.yawRate,
	}, nil
}

func (d *Drone) IssueCommand(ctx context.Context, cmd wall_nav.Command, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return err
	}
	d.sync()
	d.cmd = cmd
	d.yawRate = cmd.YawRate
	d.commands++
	return nil
}

// TurnBy rotates the heading instantly; positive yaw is clockwise.
func (d *Drone) TurnBy(ctx context.Context, roll, pitch, yaw float64, wait bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return err
	}
	d.sync()
	d.turns = append(d.turns, Turn{Roll: roll, Pitch: pitch, Yaw: yaw, Wait: wait})
	d.heading = normalize(d.heading + yaw)
	return nil
}

// MoveBy translates in the body frame (forward, right, down) and stops.
func (d *Drone) MoveBy(ctx context.Context, dx, dy, dz float64, wait bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return err
	}
	d.sync()
	d.moves = append(d.moves, Move{DX: dx, DY: dy, DZ: dz, Wait: wait})

	offset := unit(d.heading).Mul(dx).Add(unit(d.heading + 90).Mul(dy))
	d.translate(d.pos.Add(offset))
	d.vel = r2.Point{}
	d.z += dz
	return nil
}

func (d *Drone) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.fail
}

// sync integrates up to the clock.
func (d *Drone) sync() {
	now := d.now()
	if dt := now.Sub(d.last); dt > 0 {
		d.integrate(dt)
	}
	d.last = now
}

func (d *Drone) integrate(dt time.Duration) {
	for dt > 0 {
		step := dt
		if step > maxStep {
			step = maxStep
		}
		dt -= step
		d.advance(step.Seconds())
	}
}

// advance applies one explicit Euler step of s seconds.
func (d *Drone) advance(s float64) {
	d.heading = normalize(d.heading - d.yawRate*s)

	fwd := gravity * math.Tan(radians(tilt(d.cmd.Pitch)))
	side := gravity * math.Tan(radians(tilt(d.cmd.Roll)))
	accel := unit(d.heading).Mul(fwd).Add(unit(d.heading + 90).Mul(side))

	d.vel = d.vel.Add(accel.Sub(d.vel.Mul(d.cfg.Drag)).Mul(s))
	d.translate(d.pos.Add(d.vel.Mul(s)))

	d.z += (d.cmd.Altitude - d.z) * math.Min(1, altitudeRate*s)
}

// translate moves to next unless a wall is in the way, in which case the
// drone stops where it is.
func (d *Drone) translate(next r2.Point) {
	for _, w := range d.walls {
		if crosses(d.pos, next, w) {
			d.collisions++
			d.vel = r2.Point{}
			return
		}
	}
	d.pos = next
}

// cast returns the distance to the nearest wall along heading+offset, or -1
// when nothing reflects within range.
func (d *Drone) cast(offset float64) wall_nav.Range {
	dir := unit(d.heading + offset)
	best := math.Inf(1)
	for _, w := range d.walls {
		if t, ok := ray(d.pos, dir, w); ok && t < best {
			best = t
		}
	}
	if d.cfg.LidarRange > 0 && best > d.cfg.LidarRange || math.IsInf(best, 1) {
		return wall_nav.Meters(-1)
	}
	return wall_nav.Meters(best)
}

func (d *Drone) vertical(dist float64) wall_nav.Range {
	if dist < 0 || d.cfg.LidarRange > 0 && dist > d.cfg.LidarRange {
		return wall_nav.Meters(-1)
	}
	return wall_nav.Meters(dist)
}

// ray intersects p + t*dir (t >= 0) with segment w.
func ray(p, dir r2.Point, w segment) (float64, bool) {
	e := w.b.Sub(w.a)
	denom := dir.Cross(e)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	q := w.a.Sub(p)
	t := q.Cross(e) / denom
	s := q.Cross(dir) / denom
	if t < 0 || s < 0 || s > 1 {
		return 0, false
	}
	return t, true
}

// crosses reports whether the path from p to q passes through w.
func crosses(p, q r2.Point, w segment) bool {
	path := q.Sub(p)
	if path.Norm() == 0 {
		return false
	}
	t, ok := ray(p, path, w)
	return ok && t <= 1
}

func tilt(deg float64) float64 {
	return math.Max(-maxTilt, math.Min(maxTilt, deg))
}

func unit(deg float64) r2.Point {
	rad := radians(deg)
	return r2.Point{X: math.Cos(rad), Y: math.Sin(rad)}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
