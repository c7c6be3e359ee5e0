package wall_nav

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names.
const (
	TransportSim     = "sim"
	TransportUDP     = "udp"
	TransportMAVLink = "mavlink"
)

// UDPConfig controls the CSV telemetry/command link.
type UDPConfig struct {
	ListenAddr  string        `yaml:"listen_addr"`
	CommandAddr string        `yaml:"command_addr"`
	ReadBuffer  int           `yaml:"read_buffer"`
	StaleAfter  time.Duration `yaml:"stale_after"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// MAVLinkConfig controls the MAVLink link.
type MAVLinkConfig struct {
	// Endpoint is one of "udp-server", "udp-client" or "serial".
	Endpoint        string        `yaml:"endpoint"`
	Address         string        `yaml:"address"`
	Device          string        `yaml:"device"`
	Baud            int           `yaml:"baud"`
	SystemID        byte          `yaml:"system_id"`
	TargetSystem    byte          `yaml:"target_system"`
	TargetComponent byte          `yaml:"target_component"`
	HoverThrust     float64       `yaml:"hover_thrust"`
	AltitudeGain    float64       `yaml:"altitude_gain"`
	YawTolerance    float64       `yaml:"yaw_tolerance"`
	MoveTolerance   float64       `yaml:"move_tolerance"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
}

// SimWall is one wall segment in meters: x1, y1, x2, y2 (NED north/east).
type SimWall [4]float64

// SimConfig describes the simulated world.
type SimConfig struct {
	Walls      []SimWall  `yaml:"walls"`
	Start      [3]float64 `yaml:"start"` // north, east, heading deg
	Altitude   float64    `yaml:"altitude"`
	Ceiling    float64    `yaml:"ceiling"`
	LidarRange float64    `yaml:"lidar_range"`
	Drag       float64    `yaml:"drag"`
}

// MonitorConfig controls the optional metrics/status HTTP endpoint.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controls zap output.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// StatusPerSecond bounds the info-level status lines; debug gets every tick.
	StatusPerSecond float64 `yaml:"status_per_second"`
}

// AppConfig aggregates all configuration sections.
type AppConfig struct {
	Hz          float64          `yaml:"hz"`
	Transport   string           `yaml:"transport"`
	StartPaused bool             `yaml:"start_paused"`
	Controller  ControllerConfig `yaml:"controller"`
	UDP         UDPConfig        `yaml:"udp"`
	MAVLink     MAVLinkConfig    `yaml:"mavlink"`
	Sim         SimConfig        `yaml:"sim"`
	Monitor     MonitorConfig    `yaml:"monitor"`
	Log         LogConfig        `yaml:"log"`
}

// DefaultControllerConfig returns the tuned wall-following constants.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		FrontPID: PIDConfig{Setpoint: 0.6, Kp: 0.7, Ki: 0, Kd: 1, Min: -30, Max: 8, FirstDT: 0.1},
		RightPID: PIDConfig{Setpoint: 0.5, Kp: 10, Ki: 0, Kd: 15, Min: -30, Max: 10, FirstDT: 0.1},
		LeftPID:  PIDConfig{Setpoint: 1, Kp: 1, Ki: 0.000001, Kd: 6, Min: -30, Max: 10, FirstDT: 0.1},
		Fallback: FallbackConfig{Front: 0.6, Right: 0.5},

		YawBias:        -5,
		TargetAltitude: -1,
		PitchScale:     4,

		RotateFrontFactor:   3,
		BaseYawSpeed:        60,
		RotateYawMultiplier: 3,

		LidarInfinity:  4,
		RightError:     0.5,
		ReacquireYaw:   60,
		ReacquireNudge: 1,

		TunnelThreshold: 2.1,

		BrakeVelocity: 0.3,
		BrakePitch:    -3,
	}
}

// DefaultConfig returns a configuration that flies the built-in simulator.
func DefaultConfig() AppConfig {
	return AppConfig{
		Hz:         20,
		Transport:  TransportSim,
		Controller: DefaultControllerConfig(),
		UDP: UDPConfig{
			ListenAddr:  "127.0.0.1:9870",
			CommandAddr: "127.0.0.1:9871",
			ReadBuffer:  2048,
			StaleAfter:  500 * time.Millisecond,
			WaitTimeout: 10 * time.Second,
		},
		MAVLink: MAVLinkConfig{
			Endpoint:        "udp-server",
			Address:         "0.0.0.0:14550",
			Device:          "/dev/ttyACM0",
			Baud:            57600,
			SystemID:        255,
			TargetSystem:    1,
			TargetComponent: 1,
			HoverThrust:     0.5,
			AltitudeGain:    0.2,
			YawTolerance:    3,
			MoveTolerance:   0.2,
			StaleAfter:      500 * time.Millisecond,
			WaitTimeout:     10 * time.Second,
		},
		Sim: SimConfig{
			Walls: []SimWall{
				{-5, 1.5, 20, 1.5},
				{20, 1.5, 20, -4},
				{20, -4, -5, -4},
				{-5, -4, -5, 1.5},
			},
			Altitude:   -1,
			Ceiling:    3,
			LidarRange: 10,
			Drag:       1.2,
		},
		Monitor: MonitorConfig{Addr: "127.0.0.1:7070"},
		Log:     LogConfig{Level: "info", StatusPerSecond: 1},
	}
}

// LoadConfig reads the YAML config from disk over the defaults.
func LoadConfig(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the loop cannot fly.
func (c AppConfig) Validate() error {
	if c.Hz <= 0 {
		return fmt.Errorf("hz must be > 0")
	}
	switch c.Transport {
	case TransportSim, TransportUDP, TransportMAVLink:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	for _, pc := range []struct {
		name string
		cfg  PIDConfig
	}{
		{"front_pid", c.Controller.FrontPID},
		{"right_pid", c.Controller.RightPID},
		{"left_pid", c.Controller.LeftPID},
	} {
		name, p := pc.name, pc.cfg
		if p.Min > p.Max {
			return fmt.Errorf("controller.%s: min %.3f > max %.3f", name, p.Min, p.Max)
		}
		if p.FirstDT < 0 {
			return fmt.Errorf("controller.%s: first_dt must be >= 0", name)
		}
	}
	if c.Controller.TunnelThreshold <= 0 {
		return fmt.Errorf("controller.tunnel_threshold must be > 0")
	}
	if c.Controller.LidarInfinity <= 0 {
		return fmt.Errorf("controller.lidar_infinity must be > 0")
	}
	return nil
}

// Period is the target tick interval.
func (c AppConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.Hz)
}
