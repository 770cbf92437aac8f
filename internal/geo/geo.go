// Package geo implements the spherical-earth geometry used for relevance
// scoring and navigation: great-circle bearing and distance, cross-track
// deviation, dead-reckoning destination points and heading arithmetic.
//
// All angles are degrees, all distances nautical miles.
package geo

import (
	"math"
)

const (
	// EarthRadiusNM is the mean earth radius in nautical miles.
	EarthRadiusNM = 3440.065

	// NMPerDegreeLatitude is the length of one degree of latitude.
	NMPerDegreeLatitude = 60.0

	DegreesToRadians = math.Pi / 180.0
	RadiansToDegrees = 180.0 / math.Pi
)

// Point is a position on the earth's surface.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether p has finite, in-range coordinates.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Bearing returns the initial great-circle bearing from one point to another,
// in degrees true [0, 360).
func Bearing(from, to Point) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeHeading(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceNM returns the haversine great-circle distance between two points.
func DistanceNM(from, to Point) float64 {
	return angularDistance(from, to) * EarthRadiusNM
}

func angularDistance(from, to Point) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLat := lat2 - lat1
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// CrossTrackNM returns the signed distance of p from the great circle that
// starts at start with the initial bearing towards end. Positive values
// are right of course, negative values left.
func CrossTrackNM(start, end, p Point) float64 {
	d13 := angularDistance(start, p)
	theta13 := Bearing(start, p) * DegreesToRadians
	theta12 := Bearing(start, end) * DegreesToRadians
	return math.Asin(math.Sin(d13)*math.Sin(theta13-theta12)) * EarthRadiusNM
}

// Destination returns the point reached by travelling distanceNM along a
// great circle from p with the given initial bearing.
func Destination(p Point, bearing, distanceNM float64) Point {
	delta := distanceNM / EarthRadiusNM
	theta := bearing * DegreesToRadians
	lat1 := p.Latitude * DegreesToRadians
	lon1 := p.Longitude * DegreesToRadians

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	lon := math.Mod(lon2*RadiansToDegrees+540, 360) - 180
	return Point{Latitude: lat2 * RadiansToDegrees, Longitude: lon}
}

// NormalizeHeading maps any heading to [0, 360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// HeadingDifference returns the minimum difference between two headings,
// always in [0, 180].
func HeadingDifference(a, b float64) float64 {
	d := math.Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// SignedTurn returns the turn from cur to target in (-180, 180]; positive
// is a right turn.
func SignedTurn(cur, target float64) float64 {
	d := NormalizeHeading(target - cur)
	if d > 180 {
		d -= 360
	}
	return d
}

var cardinals = [...]string{
	"north", "north-northeast", "northeast", "east-northeast",
	"east", "east-southeast", "southeast", "south-southeast",
	"south", "south-southwest", "southwest", "west-southwest",
	"west", "west-northwest", "northwest", "north-northwest",
}

// Cardinal returns the closest of the 16 compass points to the heading.
func Cardinal(heading float64) string {
	idx := int(math.Round(NormalizeHeading(heading)/22.5)) % len(cardinals)
	return cardinals[idx]
}
