package navigation

import (
	"time"

	"github.com/eytandecker/skytour/internal/poi"
)

// EventKind identifies a guidance event.
type EventKind int

const (
	InitialHeading EventKind = iota
	OffCourse
	OnCourseResumed
	Approaching
	Arrived
)

func (k EventKind) String() string {
	switch k {
	case InitialHeading:
		return "initial_heading"
	case OffCourse:
		return "off_course"
	case OnCourseResumed:
		return "on_course_resumed"
	case Approaching:
		return "approaching"
	case Arrived:
		return "arrived"
	default:
		return "unknown"
	}
}

// Guidance is the live geometry from the aircraft to the active target.
type Guidance struct {
	Bearing      float64 // degrees true to the target
	DistanceNM   float64
	ETA          time.Duration
	HasETA       bool    // false when ground speed is too low for a meaningful ETA
	CrossTrackNM float64 // positive right of course
	Turn         float64 // degrees from the current heading to the bearing, positive right
}

// GuidanceEvent is an edge-triggered navigation notification.
type GuidanceEvent struct {
	Kind   EventKind
	Target poi.POI
	Guidance
}

// Status is a snapshot of the planner.
type Status struct {
	Active bool
	Target poi.POI
	Stale  bool
	Guidance
}
