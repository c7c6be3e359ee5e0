package wall_nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCondition(t *testing.T) {
	fb := FallbackConfig{Front: 0.6, Right: 0.5}

	tests := []struct {
		name string
		raw  Lidars
		want Lidars
	}{
		{
			name: "negative front and right take their fallbacks",
			raw:  Lidars{}.With(ChannelFront, Meters(-1)).With(ChannelRight, Meters(-3)),
			want: Lidars{}.With(ChannelFront, Meters(0.6)).With(ChannelRight, Meters(0.5)),
		},
		{
			name: "non-negative values pass through",
			raw:  Lidars{}.With(ChannelFront, Meters(0)).With(ChannelRight, Meters(7.25)),
			want: Lidars{}.With(ChannelFront, Meters(0)).With(ChannelRight, Meters(7.25)),
		},
		{
			name: "other channels are never altered",
			raw: Lidars{}.
				With(ChannelLeft, Meters(-1)).
				With(ChannelBack, Meters(-1)).
				With(ChannelUp, Meters(-2)).
				With(ChannelDown, Meters(0.9)),
			want: Lidars{}.
				With(ChannelLeft, Meters(-1)).
				With(ChannelBack, Meters(-1)).
				With(ChannelUp, Meters(-2)).
				With(ChannelDown, Meters(0.9)),
		},
		{
			name: "absent samples stay absent",
			raw:  Lidars{},
			want: Lidars{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			assert.Equal(t, tt.want, Condition(raw, fb))
			assert.Equal(t, tt.raw, raw, "input must not be mutated")
		})
	}
}
