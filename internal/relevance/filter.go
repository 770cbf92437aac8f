// Package relevance scores points of interest for how worthwhile they are
// to point out from the cockpit right now.
package relevance

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/eytandecker/skytour/internal/geo"
	"github.com/eytandecker/skytour/internal/poi"
	"github.com/eytandecker/skytour/pkg/types"
)

// scoreEpsilon treats scores this close as equal for ordering.
const scoreEpsilon = 1e-9

// Config holds the relevance tuning parameters.
type Config struct {
	ConeHalfAngle       float64 // degrees either side of the heading
	WideConeHalfAngle   float64 // used below LoiterSpeed
	LoiterSpeed         float64 // knots
	OverheadNM          float64 // POIs this close count as ahead regardless of bearing
	AltitudeRampFt      float64
	ProactiveThreshold  float64
	ResponsiveThreshold float64
	ResponsiveLimit     int
	Cooldown            time.Duration
	CategoryPriority    map[string]int
}

// DefaultConfig returns the default relevance parameters.
func DefaultConfig() Config {
	return Config{
		ConeHalfAngle:       60,
		WideConeHalfAngle:   120,
		LoiterSpeed:         40,
		OverheadNM:          0.5,
		AltitudeRampFt:      1000,
		ProactiveThreshold:  0.5,
		ResponsiveThreshold: 0.2,
		ResponsiveLimit:     5,
		Cooldown:            15 * time.Minute,
		CategoryPriority: map[string]int{
			"landmark": 3, "natural": 3, "historic": 2, "bridge": 2,
			"engineering": 2, "cultural": 1, "urban": 1, "entertainment": 0,
		},
	}
}

// Result is the outcome of scoring every candidate for one sample.
type Result struct {
	Sample types.TelemetrySample
	Scores []Score // score > 0, best first
}

// Filter scores POIs against telemetry samples. Apart from the proactive
// cooldown it keeps no state between samples.
type Filter struct {
	index    *poi.Index
	cfg      Config
	searchNM float64

	mu        sync.Mutex
	announced map[string]time.Time
}

// NewFilter creates a Filter over index.
func NewFilter(index *poi.Index, cfg Config) *Filter {
	var search float64
	for _, p := range index.All() {
		search = math.Max(search, p.MaxDistance)
	}
	return &Filter{
		index:     index,
		cfg:       cfg,
		searchNM:  search,
		announced: make(map[string]time.Time),
	}
}

// Evaluate scores every POI in view of the sample and orders them.
func (f *Filter) Evaluate(s types.TelemetrySample) Result {
	pos := geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
	half := f.cfg.ConeHalfAngle
	if s.GroundSpeed < f.cfg.LoiterSpeed && f.cfg.WideConeHalfAngle > half {
		half = f.cfg.WideConeHalfAngle
	}

	var scores []Score
	for _, h := range f.index.QueryRadius(pos, f.searchNM) {
		if h.DistanceNM > h.POI.MaxDistance {
			continue
		}
		delta := geo.HeadingDifference(h.Bearing, s.HeadingTrue)
		overhead := h.DistanceNM <= f.cfg.OverheadNM
		if !overhead && delta > half {
			continue
		}

		fac := Factors{
			DistanceNM:      h.DistanceNM,
			Bearing:         h.Bearing,
			RelativeBearing: geo.SignedTurn(s.HeadingTrue, h.Bearing),
			DistanceDecay:   distanceDecay(h.DistanceNM, h.POI.MaxDistance),
			AltitudeFit:     altitudeFit(s.AltitudeAGL, h.POI.MinAltitude, f.cfg.AltitudeRampFt),
		}
		if overhead {
			fac.HeadingAlignment = 1
		} else {
			fac.HeadingAlignment = headingAlignment(delta, half)
		}

		score := fac.DistanceDecay * fac.AltitudeFit * fac.HeadingAlignment
		if score <= 0 {
			continue
		}
		scores = append(scores, Score{POI: h.POI, Score: score, Factors: fac})
	}

	f.sort(scores)
	return Result{Sample: s, Scores: scores}
}

func (f *Filter) sort(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if math.Abs(a.Score-b.Score) > scoreEpsilon {
			return a.Score > b.Score
		}
		if math.Abs(a.Factors.DistanceNM-b.Factors.DistanceNM) > scoreEpsilon {
			return a.Factors.DistanceNM < b.Factors.DistanceNM
		}
		pa, pb := f.cfg.CategoryPriority[a.POI.Category], f.cfg.CategoryPriority[b.POI.Category]
		if pa != pb {
			return pa > pb
		}
		return a.POI.ID < b.POI.ID
	})
}

// Proactive returns the single best POI worth announcing unprompted: at or
// above the proactive threshold and not announced within the cooldown.
func (f *Filter) Proactive(s types.TelemetrySample, now time.Time) (Score, bool) {
	res := f.Evaluate(s)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range res.Scores {
		if sc.Score < f.cfg.ProactiveThreshold {
			break
		}
		if last, ok := f.announced[sc.POI.ID]; ok && now.Sub(last) < f.cfg.Cooldown {
			continue
		}
		return sc, true
	}
	return Score{}, false
}

// MarkAnnounced starts the cooldown for a POI.
func (f *Filter) MarkAnnounced(id string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced[id] = now
	for k, t := range f.announced {
		if now.Sub(t) >= f.cfg.Cooldown {
			delete(f.announced, k)
		}
	}
}

// Responsive returns up to ResponsiveLimit POIs at or above the responsive
// threshold, for answering "what's nearby".
func (f *Filter) Responsive(s types.TelemetrySample) []Score {
	res := f.Evaluate(s)
	var out []Score
	for _, sc := range res.Scores {
		if sc.Score < f.cfg.ResponsiveThreshold {
			break
		}
		out = append(out, sc)
		if f.cfg.ResponsiveLimit > 0 && len(out) == f.cfg.ResponsiveLimit {
			break
		}
	}
	return out
}
