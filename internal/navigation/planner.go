// Package navigation owns the single active target and turns telemetry
// samples into bearing, distance and ETA guidance with edge-triggered
// course events.
package navigation

import (
	"math"
	"sync"
	"time"

	"github.com/eytandecker/skytour/internal/geo"
	"github.com/eytandecker/skytour/internal/poi"
	"github.com/eytandecker/skytour/pkg/types"
)

// Config holds the navigation thresholds.
type Config struct {
	ArrivalRadiusNM   float64
	OffCourseNM       float64 // outer cross-track threshold
	OnCourseNM        float64 // inner threshold, strictly below OffCourseNM
	ApproachLookahead time.Duration
	MinSpeedKt        float64 // below this no ETA is reported
}

// DefaultConfig returns the default navigation thresholds.
func DefaultConfig() Config {
	return Config{
		ArrivalRadiusNM:   0.5,
		OffCourseNM:       1.0,
		OnCourseNM:        0.5,
		ApproachLookahead: 2 * time.Minute,
		MinSpeedKt:        30,
	}
}

type target struct {
	poi        poi.POI
	origin     geo.Point
	anchored   bool
	offCourse  bool
	approached bool
	stale      bool
	guidance   Guidance
	hasFix     bool
}

// Planner tracks at most one active target. All methods are safe for
// concurrent use.
type Planner struct {
	cfg Config

	mu     sync.Mutex
	target *target
}

// NewPlanner creates a Planner.
func NewPlanner(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// SetTarget replaces any active target with p. When s is a fresh sample the
// InitialHeading event is returned immediately; otherwise it is emitted by
// the next fresh Update.
func (pl *Planner) SetTarget(p poi.POI, s types.TelemetrySample, fresh bool) (GuidanceEvent, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	t := &target{poi: p}
	pl.target = t
	if !fresh {
		return GuidanceEvent{}, false
	}
	return pl.anchor(t, s), true
}

// anchor starts the course line at the sample position and computes the
// InitialHeading event. The off-course latch survives re-anchoring so a
// reported OffCourse is always followed by OnCourseResumed before the next
// one.
func (pl *Planner) anchor(t *target, s types.TelemetrySample) GuidanceEvent {
	t.origin = position(s)
	t.anchored = true
	t.stale = false
	t.guidance = pl.compute(t, s)
	t.hasFix = true
	return GuidanceEvent{Kind: InitialHeading, Target: t.poi, Guidance: t.guidance}
}

// Clear drops the active target. It reports whether one was set.
func (pl *Planner) Clear() bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	had := pl.target != nil
	pl.target = nil
	return had
}

// Target returns the active target, if any.
func (pl *Planner) Target() (poi.POI, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.target == nil {
		return poi.POI{}, false
	}
	return pl.target.poi, true
}

// Status returns the most recent guidance for the active target.
func (pl *Planner) Status() Status {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.target == nil {
		return Status{}
	}
	t := pl.target
	return Status{
		Active:   true,
		Target:   t.poi,
		Stale:    t.stale || !t.hasFix,
		Guidance: t.guidance,
	}
}

// MarkStale suppresses guidance until the next fresh sample. That sample
// re-anchors the course line so the gap cannot produce a spurious
// OffCourse; if the pilot had been told they were off course, it resumes
// them on the new line.
func (pl *Planner) MarkStale() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.target != nil {
		pl.target.stale = true
	}
}

// Update recomputes guidance for a fresh sample and returns any events it
// triggers, in order.
func (pl *Planner) Update(s types.TelemetrySample) []GuidanceEvent {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	t := pl.target
	if t == nil {
		return nil
	}

	var events []GuidanceEvent
	switch {
	case !t.anchored:
		events = append(events, pl.anchor(t, s))
	case t.stale:
		pl.anchor(t, s)
	default:
		t.guidance = pl.compute(t, s)
	}
	g := t.guidance

	if g.DistanceNM <= pl.cfg.ArrivalRadiusNM {
		events = append(events, GuidanceEvent{Kind: Arrived, Target: t.poi, Guidance: g})
		pl.target = nil
		return events
	}

	if !t.approached && g.HasETA && g.ETA <= pl.cfg.ApproachLookahead {
		t.approached = true
		events = append(events, GuidanceEvent{Kind: Approaching, Target: t.poi, Guidance: g})
	}

	xtd := math.Abs(g.CrossTrackNM)
	switch {
	case !t.offCourse && xtd > pl.cfg.OffCourseNM:
		t.offCourse = true
		events = append(events, GuidanceEvent{Kind: OffCourse, Target: t.poi, Guidance: g})
	case t.offCourse && xtd < pl.cfg.OnCourseNM:
		t.offCourse = false
		events = append(events, GuidanceEvent{Kind: OnCourseResumed, Target: t.poi, Guidance: g})
	}
	return events
}

func (pl *Planner) compute(t *target, s types.TelemetrySample) Guidance {
	pos := position(s)
	dest := t.poi.Point()

	g := Guidance{
		Bearing:    geo.Bearing(pos, dest),
		DistanceNM: geo.DistanceNM(pos, dest),
	}
	g.Turn = geo.SignedTurn(s.HeadingTrue, g.Bearing)
	if s.GroundSpeed >= pl.cfg.MinSpeedKt && s.GroundSpeed > 0 {
		g.HasETA = true
		g.ETA = time.Duration(g.DistanceNM / s.GroundSpeed * float64(time.Hour))
	}
	// A course line needs two distinct points.
	if geo.DistanceNM(t.origin, dest) > 1e-6 {
		g.CrossTrackNM = geo.CrossTrackNM(t.origin, dest, pos)
	}
	return g
}

func position(s types.TelemetrySample) geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}
