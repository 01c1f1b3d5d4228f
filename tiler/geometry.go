package tiler

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Building is one footprint with its estimated height. Footprint is the
// polygon's exterior ring in planar meters; the ring keeps its closing
// point so the serialized form matches what clients already parse.
//
// Field order matters: the canonical tile encoding is the compact JSON of a
// Building slice, and these fields marshal in declaration order.
type Building struct {
	Footprint orb.Ring `json:"footprint"`
	Height    float64  `json:"height"`
}

// Skip reasons attached to dropped input geometries.
const (
	skipNilGeometry = "nil geometry"
	skipEmpty       = "empty geometry"
	skipNonPolygon  = "not a polygon"
	skipNoExterior  = "no exterior ring"
	skipTooFew      = "fewer than 3 distinct vertices"
	skipNonFinite   = "non-finite coordinate"
	skipZeroArea    = "zero area"
	skipOutsideAOI  = "outside AOI"
)

// exteriorRings decomposes one raw input geometry into the exterior rings of
// its constituent simple polygons. Interior rings (holes) are ignored, as in
// the original export. Invalid pieces are dropped, never fatal: the returned
// skips name the reason for each dropped piece so the caller can log them.
func exteriorRings(g orb.Geometry) (rings []orb.Ring, skips []string) {
	if g == nil {
		return nil, []string{skipNilGeometry}
	}

	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	default:
		return nil, []string{skipNonPolygon}
	}
	if len(polys) == 0 {
		return nil, []string{skipEmpty}
	}

	for _, p := range polys {
		if len(p) == 0 {
			skips = append(skips, skipNoExterior)
			continue
		}
		ring := p[0]
		if reason, ok := checkRing(ring); !ok {
			skips = append(skips, reason)
			continue
		}
		rings = append(rings, ring)
	}
	return rings, skips
}

// checkRing reports whether a ring is usable as a footprint.
func checkRing(r orb.Ring) (reason string, ok bool) {
	distinct := 0
	seen := make(map[orb.Point]struct{}, len(r))
	for _, pt := range r {
		if !isFinite(pt[0]) || !isFinite(pt[1]) {
			return skipNonFinite, false
		}
		if _, dup := seen[pt]; !dup {
			seen[pt] = struct{}{}
			distinct++
		}
	}
	if distinct < 3 {
		return skipTooFew, false
	}
	if planar.Area(r) == 0 {
		return skipZeroArea, false
	}
	return "", true
}

// ringCentroid is the area centroid of the polygon enclosed by the ring. This
// is the same point shapely's .centroid yields, which previously generated
// packs were keyed on, so bbox centers or vertex means are not acceptable.
func ringCentroid(r orb.Ring) orb.Point {
	c, _ := planar.CentroidArea(orb.Polygon{r})
	return c
}

// datasetBound is the bounding box over all accepted footprints. Its Min
// anchors the tile grid.
func datasetBound(buildings []Building) orb.Bound {
	b := orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
	for _, bld := range buildings {
		for _, pt := range bld.Footprint {
			b = b.Extend(pt)
		}
	}
	return b
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
