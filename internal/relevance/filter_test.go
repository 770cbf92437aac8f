package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/skytour/internal/poi"
	"github.com/eytandecker/skytour/pkg/types"
)

func sanAntonioPOIs() []poi.POI {
	return []poi.POI{
		{ID: "the-alamo", Name: "The Alamo", Latitude: 29.4252, Longitude: -98.4861, MinAltitude: 300, MaxDistance: 5, Category: "historic"},
		{ID: "river-walk", Name: "San Antonio River Walk", Latitude: 29.4238, Longitude: -98.4895, MinAltitude: 300, MaxDistance: 4, Category: "urban"},
		{ID: "tower", Name: "Tower of the Americas", Latitude: 29.4189, Longitude: -98.4837, MinAltitude: 200, MaxDistance: 10, Category: "landmark"},
	}
}

func sample(lat, lon, heading, altAGL, gs float64) types.TelemetrySample {
	return types.TelemetrySample{Latitude: lat, Longitude: lon, HeadingTrue: heading, AltitudeAGL: altAGL, GroundSpeed: gs}
}

func scoreIDs(scores []Score) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.POI.ID
	}
	return out
}

func TestEvaluateBelowMinimumAltitudeScoresZero(t *testing.T) {
	f := NewFilter(poi.NewIndex(sanAntonioPOIs(), 0), DefaultConfig())

	res := f.Evaluate(sample(29.4241, -98.4936, 80, 250, 100))
	assert.Equal(t, []string{"tower"}, scoreIDs(res.Scores), "POIs with a 300ft minimum are invisible at 250ft")

	res = f.Evaluate(sample(29.4241, -98.4936, 80, 1500, 100))
	assert.ElementsMatch(t, []string{"the-alamo", "river-walk", "tower"}, scoreIDs(res.Scores))
}

func TestEvaluateFactors(t *testing.T) {
	f := NewFilter(poi.NewIndex(sanAntonioPOIs(), 0), DefaultConfig())

	res := f.Evaluate(sample(29.4241, -98.4936, 80, 1500, 100))
	var alamo Score
	for _, s := range res.Scores {
		if s.POI.ID == "the-alamo" {
			alamo = s
		}
	}
	require.NotEmpty(t, alamo.POI.ID)
	assert.InDelta(t, 0.3977, alamo.Factors.DistanceNM, 1e-3)
	assert.InDelta(t, 80.44, alamo.Factors.Bearing, 0.01)
	assert.InDelta(t, 0.44, alamo.Factors.RelativeBearing, 0.01)
	assert.Equal(t, 1.0, alamo.Factors.AltitudeFit)
	assert.Equal(t, 1.0, alamo.Factors.HeadingAlignment, "within the overhead radius")
	assert.InDelta(t, alamo.Factors.DistanceDecay, alamo.Score, 1e-12)
}

func TestEvaluateForwardCone(t *testing.T) {
	pois := []poi.POI{
		{ID: "behind", Name: "Behind", Latitude: -0.05, Longitude: 0, MaxDistance: 10, Category: "natural"},
		{ID: "abeam", Name: "Abeam", Latitude: 0, Longitude: 0.05, MaxDistance: 10, Category: "natural"},
		{ID: "under", Name: "Under", Latitude: -0.005, Longitude: 0, MaxDistance: 10, Category: "natural"},
	}
	f := NewFilter(poi.NewIndex(pois, 0), DefaultConfig())

	cruise := f.Evaluate(sample(0, 0, 0, 2000, 100))
	assert.Equal(t, []string{"under"}, scoreIDs(cruise.Scores), "only the overhead POI survives outside the cone")

	loiter := f.Evaluate(sample(0, 0, 0, 2000, 20))
	assert.ElementsMatch(t, []string{"under", "abeam"}, scoreIDs(loiter.Scores), "slow flight widens the cone")
}

func TestEvaluateMaxUsefulDistance(t *testing.T) {
	pois := []poi.POI{
		{ID: "small", Name: "Small", Latitude: 0.1, Longitude: 0, MaxDistance: 3, Category: "urban"},
		{ID: "big", Name: "Big", Latitude: 0.1, Longitude: 0.001, MaxDistance: 30, Category: "natural"},
	}
	f := NewFilter(poi.NewIndex(pois, 0), DefaultConfig())
	res := f.Evaluate(sample(0, 0, 0, 2000, 100))
	assert.Equal(t, []string{"big"}, scoreIDs(res.Scores))
}

func TestProactiveTieBreakOnCategoryPriority(t *testing.T) {
	pois := []poi.POI{
		{ID: "casino", Name: "Casino", Latitude: 0.05, Longitude: 0.01, MinAltitude: 300, MaxDistance: 10, Category: "entertainment"},
		{ID: "monument", Name: "Monument", Latitude: 0.05, Longitude: -0.01, MinAltitude: 300, MaxDistance: 10, Category: "landmark"},
	}
	f := NewFilter(poi.NewIndex(pois, 0), DefaultConfig())

	res := f.Evaluate(sample(0, 0, 0, 2000, 100))
	require.Len(t, res.Scores, 2)
	assert.InDelta(t, res.Scores[0].Score, res.Scores[1].Score, 1e-9)

	best, ok := f.Proactive(sample(0, 0, 0, 2000, 100), time.Now())
	require.True(t, ok)
	assert.Equal(t, "monument", best.POI.ID)
}

func TestProactiveCooldown(t *testing.T) {
	pois := []poi.POI{
		{ID: "casino", Name: "Casino", Latitude: 0.05, Longitude: 0.01, MaxDistance: 10, Category: "entertainment"},
		{ID: "monument", Name: "Monument", Latitude: 0.05, Longitude: -0.01, MaxDistance: 10, Category: "landmark"},
	}
	cfg := DefaultConfig()
	cfg.Cooldown = time.Minute
	f := NewFilter(poi.NewIndex(pois, 0), cfg)
	s := sample(0, 0, 0, 2000, 100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	best, ok := f.Proactive(s, now)
	require.True(t, ok)
	f.MarkAnnounced(best.POI.ID, now)

	next, ok := f.Proactive(s, now.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, "casino", next.POI.ID)
	f.MarkAnnounced(next.POI.ID, now.Add(time.Second))

	_, ok = f.Proactive(s, now.Add(2*time.Second))
	assert.False(t, ok, "everything is cooling down")

	again, ok := f.Proactive(s, now.Add(2*time.Minute))
	require.True(t, ok)
	assert.Equal(t, "monument", again.POI.ID)
}

func TestProactiveThreshold(t *testing.T) {
	pois := []poi.POI{{ID: "far", Name: "Far", Latitude: 0.14, Longitude: 0, MaxDistance: 10, Category: "natural"}}
	f := NewFilter(poi.NewIndex(pois, 0), DefaultConfig())
	s := sample(0, 0, 0, 2000, 100)

	_, ok := f.Proactive(s, time.Now())
	assert.False(t, ok, "8.4nm of 10 decays below the proactive threshold")
	assert.Len(t, f.Responsive(s), 0)

	near := NewFilter(poi.NewIndex([]poi.POI{{ID: "near", Name: "Near", Latitude: 0.08, Longitude: 0, MaxDistance: 10, Category: "natural"}}, 0), DefaultConfig())
	assert.Len(t, near.Responsive(s), 1)
}

func TestResponsiveLimit(t *testing.T) {
	var pois []poi.POI
	for i := 0; i < 8; i++ {
		pois = append(pois, poi.POI{
			ID: string(rune('a' + i)), Name: "P", Latitude: 0.01 * float64(i+1), Longitude: 0, MaxDistance: 20, Category: "natural",
		})
	}
	cfg := DefaultConfig()
	cfg.ResponsiveLimit = 3
	f := NewFilter(poi.NewIndex(pois, 0), cfg)

	got := f.Responsive(sample(0, 0, 0, 2000, 100))
	assert.Equal(t, []string{"a", "b", "c"}, scoreIDs(got))
}
