package telemetry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/eytandecker/skytour/internal/geo"
	"github.com/eytandecker/skytour/pkg/types"
)

// Source is the external telemetry collaborator. Poll returns the current
// aircraft state or an error; it must honour ctx cancellation.
type Source interface {
	Poll(ctx context.Context) (Reading, error)
}

// AltitudeUnit identifies the unit of a reading's altitude fields.
type AltitudeUnit int

const (
	Feet AltitudeUnit = iota
	Meters
)

// SpeedUnit identifies the unit of a reading's ground speed.
type SpeedUnit int

const (
	Knots SpeedUnit = iota
	MetersPerSecond
	KilometersPerHour
	MilesPerHour
)

// AngleUnit identifies the unit of a reading's heading.
type AngleUnit int

const (
	Degrees AngleUnit = iota
	Radians
)

// Reading is a raw sample as reported by a Source, before normalization.
// The zero values of the unit fields are feet, knots and degrees.
type Reading struct {
	Timestamp     time.Time
	Latitude      float64
	Longitude     float64
	AltitudeAGL   float64
	AltitudeMSL   float64
	AltitudeUnit  AltitudeUnit
	Heading       float64
	HeadingUnit   AngleUnit
	GroundSpeed   float64
	SpeedUnit     SpeedUnit
	VerticalSpeed float64 // feet per minute
}

const (
	metersToFeet   = 3.28084
	mpsToKnots     = 1.943844
	kmhToKnots     = 0.539957
	mphToKnots     = 0.868976
	groundNoiseFt  = 50.0
	speedNoiseKnot = 1.0
)

// Normalize converts a reading into a TelemetrySample with altitude in feet
// AGL, speed in knots and heading in degrees true [0, 360). A zero reading
// timestamp is replaced with now.
func Normalize(r Reading, now time.Time) (types.TelemetrySample, error) {
	for _, v := range []float64{r.Latitude, r.Longitude, r.AltitudeAGL, r.AltitudeMSL, r.Heading, r.GroundSpeed, r.VerticalSpeed} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return types.TelemetrySample{}, fmt.Errorf("%w: non-finite value", ErrMalformed)
		}
	}
	if !(geo.Point{Latitude: r.Latitude, Longitude: r.Longitude}).Valid() {
		return types.TelemetrySample{}, fmt.Errorf("%w: position %.5f,%.5f out of range", ErrMalformed, r.Latitude, r.Longitude)
	}

	agl, msl := r.AltitudeAGL, r.AltitudeMSL
	if r.AltitudeUnit == Meters {
		agl *= metersToFeet
		msl *= metersToFeet
	}
	if agl < 0 {
		// Radar altimeters read slightly negative while parked.
		if agl < -groundNoiseFt {
			return types.TelemetrySample{}, fmt.Errorf("%w: altitude %.0fft below ground", ErrMalformed, agl)
		}
		agl = 0
	}

	heading := r.Heading
	if r.HeadingUnit == Radians {
		heading *= geo.RadiansToDegrees
	}

	gs := r.GroundSpeed
	switch r.SpeedUnit {
	case MetersPerSecond:
		gs *= mpsToKnots
	case KilometersPerHour:
		gs *= kmhToKnots
	case MilesPerHour:
		gs *= mphToKnots
	}
	if gs < 0 {
		if gs < -speedNoiseKnot {
			return types.TelemetrySample{}, fmt.Errorf("%w: negative ground speed %.1f", ErrMalformed, gs)
		}
		gs = 0
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = now
	}

	return types.TelemetrySample{
		Timestamp:     ts,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		AltitudeAGL:   agl,
		AltitudeMSL:   msl,
		HeadingTrue:   geo.NormalizeHeading(heading),
		GroundSpeed:   gs,
		VerticalSpeed: r.VerticalSpeed,
	}, nil
}
