// Package mavlink flies the navigator through a MAVLink autopilot.
package mavlink

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"wall-navigation/wall_nav"
)

const pollPeriod = 25 * time.Millisecond

// orientations maps DISTANCE_SENSOR mounts to lidar channels.
var orientations = map[common.MAV_SENSOR_ORIENTATION]wall_nav.Channel{
	common.MAV_SENSOR_ROTATION_NONE:      wall_nav.ChannelFront,
	common.MAV_SENSOR_ROTATION_YAW_90:    wall_nav.ChannelRight,
	common.MAV_SENSOR_ROTATION_YAW_180:   wall_nav.ChannelBack,
	common.MAV_SENSOR_ROTATION_YAW_270:   wall_nav.ChannelLeft,
	common.MAV_SENSOR_ROTATION_PITCH_90:  wall_nav.ChannelUp,
	common.MAV_SENSOR_ROTATION_PITCH_270: wall_nav.ChannelDown,
}

type rangeSample struct {
	r  wall_nav.Range
	at time.Time
}

type position struct {
	n, e, d    float64
	vn, ve, vd float64
	at         time.Time
}

type attitude struct {
	roll, pitch, yaw             float64 // rad
	rollRate, pitchRate, yawRate float64 // rad/s
	at                           time.Time
}

// Link is a wall_nav.FlightLink over a gomavlib node.
//
// Angles follow the navigator: positive pitch flies forward and positive
// yaw rate turns counter-clockwise. TurnBy ignores roll and pitch.
type Link struct {
	cfg  wall_nav.MAVLinkConfig
	node *gomavlib.Node
	done chan struct{}

	// Now is the staleness clock.
	Now func() time.Time

	mu     sync.Mutex
	ranges map[wall_nav.Channel]rangeSample
	pos    position
	att    attitude
}

// Dial opens the configured endpoint and starts ingesting telemetry.
func Dial(cfg wall_nav.MAVLinkConfig) (*Link, error) {
	endpoint, err := endpointConf(cfg)
	if err != nil {
		return nil, err
	}
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   []gomavlib.EndpointConf{endpoint},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: cfg.SystemID,
	})
	if err != nil {
		return nil, fmt.Errorf("mavlink node: %w", err)
	}

	l := newLink(cfg)
	l.node = node
	go l.read()
	return l, nil
}

func newLink(cfg wall_nav.MAVLinkConfig) *Link {
	return &Link{
		cfg:    cfg,
		done:   make(chan struct{}),
		Now:    time.Now,
		ranges: map[wall_nav.Channel]rangeSample{},
	}
}

func endpointConf(cfg wall_nav.MAVLinkConfig) (gomavlib.EndpointConf, error) {
	switch cfg.Endpoint {
	case "udp-server", "":
		return gomavlib.EndpointUDPServer{Address: cfg.Address}, nil
	case "udp-client":
		return gomavlib.EndpointUDPClient{Address: cfg.Address}, nil
	case "serial":
		return gomavlib.EndpointSerial{Device: cfg.Device, Baud: cfg.Baud}, nil
	default:
		return nil, fmt.Errorf("unknown mavlink endpoint %q", cfg.Endpoint)
	}
}

// Close shuts the node down and waits for the reader.
func (l *Link) Close() error {
	l.node.Close()
	<-l.done
	return nil
}

func (l *Link) read() {
	defer close(l.done)
	for evt := range l.node.Events() {
		if frm, ok := evt.(*gomavlib.EventFrame); ok {
			l.ingest(frm.Message())
		}
	}
}

// ingest folds one inbound message into the telemetry snapshot.
func (l *Link) ingest(msg message.Message) {
	now := l.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	switch m := msg.(type) {
	case *common.MessageDistanceSensor:
		c, ok := orientations[m.Orientation]
		if !ok {
			return
		}
		r := wall_nav.Meters(float64(m.CurrentDistance) / 100)
		if m.MaxDistance > 0 && m.CurrentDistance >= m.MaxDistance {
			r = wall_nav.Meters(-1)
		}
		l.ranges[c] = rangeSample{r: r, at: now}
	case *common.MessageLocalPositionNed:
		l.pos = position{
			n: float64(m.X), e: float64(m.Y), d: float64(m.Z),
			vn: float64(m.Vx), ve: float64(m.Vy), vd: float64(m.Vz),
			at: now,
		}
	case *common.MessageAttitude:
		l.att = attitude{
			roll: float64(m.Roll), pitch: float64(m.Pitch), yaw: float64(m.Yaw),
			rollRate: float64(m.Rollspeed), pitchRate: float64(m.Pitchspeed), yawRate: float64(m.Yawspeed),
			at: now,
		}
	}
}

func (l *Link) fresh(at time.Time, now time.Time) bool {
	if at.IsZero() {
		return false
	}
	return l.cfg.StaleAfter <= 0 || now.Sub(at) <= l.cfg.StaleAfter
}

func (l *Link) ReadLidars(ctx context.Context) (wall_nav.Lidars, error) {
	now := l.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	var out wall_nav.Lidars
	for c, s := range l.ranges {
		if l.fresh(s.at, now) {
			out[c] = s.r
		}
	}
	return out, ctx.Err()
}

// ReadVelocity rotates the NED velocity into the body frame.
func (l *Link) ReadVelocity(ctx context.Context) (wall_nav.Velocity, error) {
	now := l.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	var v wall_nav.Velocity
	if l.fresh(l.pos.at, now) {
		sin, cos := math.Sincos(l.att.yaw)
		v.X = l.pos.vn*cos + l.pos.ve*sin
		v.Y = -l.pos.vn*sin + l.pos.ve*cos
		v.Z = l.pos.vd
	}
	if l.fresh(l.att.at, now) {
		v.Roll = degrees(l.att.rollRate)
		v.Pitch = -degrees(l.att.pitchRate)
		v.Yaw = -degrees(l.att.yawRate)
	}
	return v, ctx.Err()
}

// IssueCommand sends SET_ATTITUDE_TARGET holding altitude through thrust.
// With wait it blocks until the altitude target is reached.
func (l *Link) IssueCommand(ctx context.Context, cmd wall_nav.Command, wait bool) error {
	l.mu.Lock()
	yaw, z := l.att.yaw, l.pos.d
	l.mu.Unlock()

	if err := l.node.WriteMessageAll(attitudeTarget(l.cfg, cmd, yaw, z)); err != nil {
		return fmt.Errorf("set attitude target: %w", err)
	}
	if !wait {
		return nil
	}
	return l.waitFor(ctx, "altitude", func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return math.Abs(l.pos.d-cmd.Altitude) <= l.cfg.MoveTolerance
	})
}

// TurnBy sends a relative MAV_CMD_CONDITION_YAW; positive yaw is clockwise.
func (l *Link) TurnBy(ctx context.Context, _, _, yaw float64, wait bool) error {
	l.mu.Lock()
	target := l.att.yaw + radians(yaw)
	l.mu.Unlock()

	if err := l.node.WriteMessageAll(conditionYaw(l.cfg, yaw)); err != nil {
		return fmt.Errorf("condition yaw: %w", err)
	}
	if !wait {
		return nil
	}
	return l.waitFor(ctx, "yaw", func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return math.Abs(degrees(angleDiff(l.att.yaw, target))) <= l.cfg.YawTolerance
	})
}

// MoveBy sends a body-offset position target (forward, right, down).
func (l *Link) MoveBy(ctx context.Context, dx, dy, dz float64, wait bool) error {
	l.mu.Lock()
	sin, cos := math.Sincos(l.att.yaw)
	tn := l.pos.n + dx*cos - dy*sin
	te := l.pos.e + dx*sin + dy*cos
	td := l.pos.d + dz
	l.mu.Unlock()

	if err := l.node.WriteMessageAll(bodyOffset(l.cfg, dx, dy, dz)); err != nil {
		return fmt.Errorf("set position target: %w", err)
	}
	if !wait {
		return nil
	}
	return l.waitFor(ctx, "position", func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return math.Hypot(math.Hypot(l.pos.n-tn, l.pos.e-te), l.pos.d-td) <= l.cfg.MoveTolerance
	})
}

// waitFor polls reached until it holds, ctx ends or the wait timeout elapses.
func (l *Link) waitFor(ctx context.Context, what string, reached func() bool) error {
	timeout := l.cfg.WaitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()

	for !reached() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%s target not reached within %s", what, timeout)
		case <-ticker.C:
		}
	}
	return nil
}

func attitudeTarget(cfg wall_nav.MAVLinkConfig, cmd wall_nav.Command, yaw, z float64) *common.MessageSetAttitudeTarget {
	w, x, y, zq := quaternion(radians(cmd.Roll), -radians(cmd.Pitch), yaw)
	// NED z grows downward, so sitting below the target adds thrust.
	thrust := clamp(cfg.HoverThrust+cfg.AltitudeGain*(z-cmd.Altitude), 0, 1)
	return &common.MessageSetAttitudeTarget{
		TargetSystem:    cfg.TargetSystem,
		TargetComponent: cfg.TargetComponent,
		TypeMask: common.ATTITUDE_TARGET_TYPEMASK_BODY_ROLL_RATE_IGNORE |
			common.ATTITUDE_TARGET_TYPEMASK_BODY_PITCH_RATE_IGNORE,
		Q:           [4]float32{float32(w), float32(x), float32(y), float32(zq)},
		BodyYawRate: float32(-radians(cmd.YawRate)),
		Thrust:      float32(thrust),
	}
}

func conditionYaw(cfg wall_nav.MAVLinkConfig, yaw float64) *common.MessageCommandLong {
	direction := float32(1)
	if yaw < 0 {
		direction = -1
	}
	return &common.MessageCommandLong{
		TargetSystem:    cfg.TargetSystem,
		TargetComponent: cfg.TargetComponent,
		Command:         common.MAV_CMD_CONDITION_YAW,
		Param1:          float32(math.Abs(yaw)),
		Param3:          direction,
		Param4:          1,
	}
}

func bodyOffset(cfg wall_nav.MAVLinkConfig, dx, dy, dz float64) *common.MessageSetPositionTargetLocalNed {
	return &common.MessageSetPositionTargetLocalNed{
		TargetSystem:    cfg.TargetSystem,
		TargetComponent: cfg.TargetComponent,
		CoordinateFrame: common.MAV_FRAME_BODY_OFFSET_NED,
		TypeMask: common.POSITION_TARGET_TYPEMASK_VX_IGNORE |
			common.POSITION_TARGET_TYPEMASK_VY_IGNORE |
			common.POSITION_TARGET_TYPEMASK_VZ_IGNORE |
			common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
			common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
			common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
			common.POSITION_TARGET_TYPEMASK_YAW_IGNORE |
			common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE,
		X: float32(dx),
		Y: float32(dy),
		Z: float32(dz),
	}
}

// quaternion converts ZYX Euler angles (rad) to w, x, y, z.
func quaternion(roll, pitch, yaw float64) (float64, float64, float64, float64) {
	sr, cr := math.Sincos(roll / 2)
	sp, cp := math.Sincos(pitch / 2)
	sy, cy := math.Sincos(yaw / 2)
	return cr*cp*cy + sr*sp*sy,
		sr*cp*cy - cr*sp*sy,
		cr*sp*cy + sr*cp*sy,
		cr*cp*sy - sr*sp*cy
}

// angleDiff is a-b wrapped to [-pi, pi].
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
