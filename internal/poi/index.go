package poi

import (
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eytandecker/skytour/internal/geo"
)

// DefaultCellDegrees is the grid cell edge used when NewIndex is given zero.
const DefaultCellDegrees = 0.5

// Hit is a POI returned by a spatial query together with its geometry
// relative to the query point.
type Hit struct {
	POI        POI
	DistanceNM float64
	Bearing    float64
}

type cellKey struct {
	row, col int
}

// Index is a read-only lat/lon grid over a POI set. It is safe for
// concurrent use.
type Index struct {
	pois    []POI
	cellDeg float64
	cols    int
	grid    map[cellKey][]int

	matchThreshold float64
	matches        *lru.Cache[string, matchResult]
}

// Option configures an Index.
type Option func(*Index)

// WithMatchThreshold sets the minimum similarity accepted by Match.
func WithMatchThreshold(t float64) Option {
	return func(ix *Index) { ix.matchThreshold = t }
}

// WithMatchCacheSize sets the number of name lookups Match remembers.
func WithMatchCacheSize(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.matches, _ = lru.New[string, matchResult](n)
		}
	}
}

// NewIndex builds a grid index with cells of cellDeg degrees.
func NewIndex(pois []POI, cellDeg float64, opts ...Option) *Index {
	if cellDeg <= 0 {
		cellDeg = DefaultCellDegrees
	}
	ix := &Index{
		pois:           append([]POI(nil), pois...),
		cellDeg:        cellDeg,
		cols:           int(math.Ceil(360 / cellDeg)),
		grid:           make(map[cellKey][]int),
		matchThreshold: 0.6,
	}
	ix.matches, _ = lru.New[string, matchResult](256)
	for _, o := range opts {
		o(ix)
	}
	for i, p := range ix.pois {
		k := ix.key(p.Latitude, p.Longitude)
		ix.grid[k] = append(ix.grid[k], i)
	}
	return ix
}

// Len returns the number of indexed POIs.
func (ix *Index) Len() int { return len(ix.pois) }

// All returns a copy of the indexed POIs.
func (ix *Index) All() []POI {
	return append([]POI(nil), ix.pois...)
}

// Get returns the POI with the given id.
func (ix *Index) Get(id string) (POI, bool) {
	for _, p := range ix.pois {
		if p.ID == id {
			return p, true
		}
	}
	return POI{}, false
}

func (ix *Index) key(lat, lon float64) cellKey {
	row := int(math.Floor((lat + 90) / ix.cellDeg))
	col := int(math.Floor((lon + 180) / ix.cellDeg))
	return cellKey{row: row, col: ix.wrapCol(col)}
}

func (ix *Index) wrapCol(c int) int {
	c %= ix.cols
	if c < 0 {
		c += ix.cols
	}
	return c
}

// QueryRadius returns every POI within radiusNM of center, nearest first.
func (ix *Index) QueryRadius(center geo.Point, radiusNM float64) []Hit {
	if radiusNM <= 0 || !center.Valid() {
		return nil
	}

	latSpan := radiusNM / geo.NMPerDegreeLatitude
	minRow := ix.key(math.Max(center.Latitude-latSpan, -90), 0).row
	maxRow := ix.key(math.Min(center.Latitude+latSpan, 90), 0).row

	// Longitude span widens with latitude; near the poles scan every column.
	allCols := false
	var lonSpan float64
	maxLat := math.Min(math.Abs(center.Latitude)+latSpan, 90)
	if cos := math.Cos(maxLat * geo.DegreesToRadians); cos < 1e-6 {
		allCols = true
	} else {
		lonSpan = latSpan / cos
		if lonSpan >= 180 {
			allCols = true
		}
	}

	first := int(math.Floor((center.Longitude - lonSpan + 180) / ix.cellDeg))
	last := int(math.Floor((center.Longitude + lonSpan + 180) / ix.cellDeg))
	if last-first+1 >= ix.cols {
		allCols = true
	}

	var hits []Hit
	visit := func(k cellKey) {
		for _, i := range ix.grid[k] {
			p := ix.pois[i]
			d := geo.DistanceNM(center, p.Point())
			if d <= radiusNM {
				hits = append(hits, Hit{POI: p, DistanceNM: d, Bearing: geo.Bearing(center, p.Point())})
			}
		}
	}

	for row := minRow; row <= maxRow; row++ {
		if allCols {
			for col := 0; col < ix.cols; col++ {
				visit(cellKey{row, col})
			}
			continue
		}
		for col := first; col <= last; col++ {
			visit(cellKey{row, ix.wrapCol(col)})
		}
	}

	sortHits(hits)
	return hits
}

// QueryCone returns the POIs within maxNM of center whose bearing lies
// within halfAngle degrees of heading, nearest first.
func (ix *Index) QueryCone(center geo.Point, heading, halfAngle, maxNM float64) []Hit {
	all := ix.QueryRadius(center, maxNM)
	hits := all[:0]
	for _, h := range all {
		if geo.HeadingDifference(h.Bearing, heading) <= halfAngle {
			hits = append(hits, h)
		}
	}
	return hits
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceNM != hits[j].DistanceNM {
			return hits[i].DistanceNM < hits[j].DistanceNM
		}
		return hits[i].POI.ID < hits[j].POI.ID
	})
}
