package wall_nav

// FallbackConfig is the clearance assumed when a channel reports "no reflection".
type FallbackConfig struct {
	Front float64 `yaml:"front"`
	Right float64 `yaml:"right"`
}

// Condition replaces negative front and right samples with their fallback
// distance. Every other channel, and absent samples, pass through untouched.
func Condition(raw Lidars, fb FallbackConfig) Lidars {
	out := raw
	if r := raw[ChannelFront]; r.Valid && r.Meters < 0 {
		out[ChannelFront] = Meters(fb.Front)
	}
	if r := raw[ChannelRight]; r.Valid && r.Meters < 0 {
		out[ChannelRight] = Meters(fb.Right)
	}
	return out
}
