package wall_nav

import "time"

// PIDConfig holds the gains, clamp range and target distance of one channel.
type PIDConfig struct {
	Setpoint float64 `yaml:"setpoint"`
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
	Kd       float64 `yaml:"kd"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	// FirstDT is the elapsed time in seconds assumed for the first valid
	// sample. Zero makes the first sample proportional-only.
	FirstDT float64 `yaml:"first_dt"`
}

// PIDState is the mutable history of a PID, exposed for monitoring.
type PIDState struct {
	PrevError  float64
	Integral   float64
	Output     float64
	LastUpdate time.Time
	Primed     bool
}

// PID is a single-channel range controller.
//
// Invalid samples are absorbed: the previous output is returned and no history
// is touched. Not safe for concurrent use.
type PID struct {
	cfg   PIDConfig
	state PIDState
}

// NewPID constructs a controller with zeroed history.
func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

// Update feeds the latest sample taken at now and returns the clamped output.
func (p *PID) Update(sample Range, now time.Time) float64 {
	if !sample.Usable() {
		return p.state.Output
	}

	errVal := sample.Meters - p.cfg.Setpoint

	var dt float64
	if p.state.Primed {
		dt = now.Sub(p.state.LastUpdate).Seconds()
	} else {
		dt = p.cfg.FirstDT
	}

	integral := p.state.Integral
	derivative := 0.0
	if dt > 0 {
		derivative = (errVal - p.state.PrevError) / dt
		integral += errVal * dt
	}

	out := clamp(errVal*p.cfg.Kp+derivative*p.cfg.Kd+integral*p.cfg.Ki, p.cfg.Min, p.cfg.Max)

	p.state.PrevError = errVal
	p.state.Integral = integral
	p.state.LastUpdate = now
	p.state.Primed = true
	p.state.Output = out
	return out
}

// SetBounds replaces the clamp range; it applies from the next update.
func (p *PID) SetBounds(min, max float64) {
	p.cfg.Min = min
	p.cfg.Max = max
}

// Reset zeroes error history, integral and cached output. Gains and bounds stay.
func (p *PID) Reset() {
	p.state = PIDState{}
}

// Output returns the last computed output.
func (p *PID) Output() float64 {
	return p.state.Output
}

// Setpoint returns the regulated distance.
func (p *PID) Setpoint() float64 {
	return p.cfg.Setpoint
}

// State returns a copy of the controller history.
func (p *PID) State() PIDState {
	return p.state
}

// clamp keeps value inside [lo, hi].
func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
