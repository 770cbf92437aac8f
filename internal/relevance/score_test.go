package relevance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceDecay(t *testing.T) {
	tests := []struct {
		name string
		d    float64
		max  float64
		want float64
	}{
		{"at the aircraft", 0, 10, 1},
		{"half way", 5, 10, 0.5},
		{"at max", 10, 10, 0},
		{"beyond max", 12, 10, 0},
		{"zero max", 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, distanceDecay(tt.d, tt.max), 1e-12)
		})
	}
}

func TestAltitudeFit(t *testing.T) {
	tests := []struct {
		name string
		alt  float64
		want float64
	}{
		{"below minimum is exactly zero", 299.9, 0},
		{"at minimum", 300, 0.5},
		{"half way up the ramp", 800, 0.75},
		{"top of ramp", 1300, 1},
		{"well above saturates", 12000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, altitudeFit(tt.alt, 300, 1000))
		})
	}
	assert.Equal(t, 1.0, altitudeFit(300, 300, 0))
}

func TestHeadingAlignment(t *testing.T) {
	assert.Equal(t, 1.0, headingAlignment(0, 60))
	assert.InDelta(t, math.Cos(math.Pi/4), headingAlignment(30, 60), 1e-12)
	assert.Equal(t, 0.0, headingAlignment(60, 60))
	assert.Equal(t, 0.0, headingAlignment(90, 60))
}
