package gallery

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Distance is the planar minimum distance between two areal geometries. It
// is zero when they touch, overlap or one contains the other, and +Inf when
// either geometry has no polygon.
func Distance(a, b orb.Geometry) float64 {
	pa, pb, ok := nearest(a, b)
	if !ok {
		return math.Inf(1)
	}
	return planar.Distance(pa, pb)
}

// NearestPoints returns a point on a and a point on b at minimum distance.
// When the geometries intersect both points are the same shared point.
func NearestPoints(a, b orb.Geometry) (orb.Point, orb.Point) {
	pa, pb, _ := nearest(a, b)
	return pa, pb
}

func nearest(a, b orb.Geometry) (orb.Point, orb.Point, bool) {
	best := math.Inf(1)
	var na, nb orb.Point
	found := false
	for _, polyA := range polygons(a) {
		for _, polyB := range polygons(b) {
			if p, ok := sharedPoint(polyA, polyB); ok {
				return p, p, true
			}
			pa, pb, d := nearestBetween(polyA, polyB)
			if d < best {
				best, na, nb, found = d, pa, pb, true
			}
		}
	}
	return na, nb, found
}

// sharedPoint finds a point common to both polygons: a vertex inside the
// other polygon or an edge crossing.
func sharedPoint(a, b orb.Polygon) (orb.Point, bool) {
	if len(a) == 0 || len(b) == 0 {
		return orb.Point{}, false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return orb.Point{}, false
	}
	for _, p := range a[0] {
		if planar.PolygonContains(b, p) {
			return p, true
		}
	}
	for _, p := range b[0] {
		if planar.PolygonContains(a, p) {
			return p, true
		}
	}
	for _, ra := range a {
		for _, rb := range b {
			if p, ok := ringsCross(ra, rb); ok {
				return p, true
			}
		}
	}
	return orb.Point{}, false
}

func ringsCross(a, b orb.Ring) (orb.Point, bool) {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if p, ok := segmentIntersection(a[i], a[i+1], b[j], b[j+1]); ok {
				return p, true
			}
		}
	}
	return orb.Point{}, false
}

// segmentIntersection returns a point shared by segments p1p2 and p3p4.
func segmentIntersection(p1, p2, p3, p4 orb.Point) (orb.Point, bool) {
	d1 := orient(p3, p4, p1)
	d2 := orient(p3, p4, p2)
	d3 := orient(p1, p2, p3)
	d4 := orient(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		t := d1 / (d1 - d2)
		return orb.Point{p1[0] + t*(p2[0]-p1[0]), p1[1] + t*(p2[1]-p1[1])}, true
	}
	switch {
	case d1 == 0 && onSegment(p3, p4, p1):
		return p1, true
	case d2 == 0 && onSegment(p3, p4, p2):
		return p2, true
	case d3 == 0 && onSegment(p1, p2, p3):
		return p3, true
	case d4 == 0 && onSegment(p1, p2, p4):
		return p4, true
	}
	return orb.Point{}, false
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// nearestBetween checks every vertex of each polygon against every edge of
// the other. For disjoint polygons the minimum is always attained there.
func nearestBetween(a, b orb.Polygon) (orb.Point, orb.Point, float64) {
	best := math.Inf(1)
	var na, nb orb.Point
	for _, ra := range a {
		for _, rb := range b {
			if pa, pb, d := vertexToRing(ra, rb); d < best {
				best, na, nb = d, pa, pb
			}
			if pb, pa, d := vertexToRing(rb, ra); d < best {
				best, na, nb = d, pa, pb
			}
		}
	}
	return na, nb, best
}

// vertexToRing returns the vertex of from closest to ring to, the closest
// point on to, and their distance.
func vertexToRing(from, to orb.Ring) (orb.Point, orb.Point, float64) {
	best := math.Inf(1)
	var pf, pt orb.Point
	for _, v := range from {
		for j := 0; j+1 < len(to); j++ {
			if planar.DistanceFromSegment(to[j], to[j+1], v) >= best {
				continue
			}
			c := closestOnSegment(to[j], to[j+1], v)
			best, pf, pt = planar.Distance(v, c), v, c
		}
	}
	return pf, pt, best
}

func closestOnSegment(a, b, p orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// boundDistance is a lower bound on Distance used to skip far pairs.
func boundDistance(a, b orb.Bound) float64 {
	dx := math.Max(0, math.Max(a.Min[0]-b.Max[0], b.Min[0]-a.Max[0]))
	dy := math.Max(0, math.Max(a.Min[1]-b.Max[1], b.Min[1]-a.Max[1]))
	return math.Hypot(dx, dy)
}
