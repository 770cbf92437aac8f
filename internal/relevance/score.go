package relevance

import (
	"math"

	"github.com/eytandecker/skytour/internal/poi"
)

// Factors breaks a relevance score into its components.
type Factors struct {
	DistanceNM       float64
	Bearing          float64 // degrees true from the aircraft to the POI
	RelativeBearing  float64 // degrees from the nose, positive to the right
	DistanceDecay    float64
	AltitudeFit      float64
	HeadingAlignment float64
}

// Score is the relevance of one POI for one telemetry sample.
type Score struct {
	POI     poi.POI
	Score   float64
	Factors Factors
}

// distanceDecay falls from 1 at the aircraft to 0 at maxNM along a raised
// cosine.
func distanceDecay(d, maxNM float64) float64 {
	if maxNM <= 0 || d >= maxNM {
		return 0
	}
	if d <= 0 {
		return 1
	}
	return 0.5 * (1 + math.Cos(math.Pi*d/maxNM))
}

// altitudeFit is 0 below the POI's minimum visibility altitude, then ramps
// from 0.5 to 1 over rampFt.
func altitudeFit(altAGL, minAlt, rampFt float64) float64 {
	if altAGL < minAlt {
		return 0
	}
	if rampFt <= 0 {
		return 1
	}
	return 0.5 + 0.5*math.Min(1, (altAGL-minAlt)/rampFt)
}

// headingAlignment is 1 dead ahead and 0 at the cone edge.
func headingAlignment(delta, halfAngle float64) float64 {
	if halfAngle <= 0 || delta >= halfAngle {
		return 0
	}
	return math.Cos(math.Pi / 2 * delta / halfAngle)
}
