package gallery

import (
	"math"

	"github.com/paulmach/orb"
)

// DiscSegments is the number of sides of the polygonal disc used for crops.
const DiscSegments = 32

// Disc returns a counter-clockwise closed polygon approximating a circle.
func Disc(center orb.Point, radius float64, segments int) orb.Ring {
	if segments < 3 {
		segments = DiscSegments
	}
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, orb.Point{center[0] + radius*math.Cos(a), center[1] + radius*math.Sin(a)})
	}
	return append(ring, ring[0])
}

// CropNeighbor keeps the part of neighbor within radius of the point of
// neighbor nearest to detected. Nil means nothing is left.
func CropNeighbor(detected, neighbor orb.Geometry, radius float64) orb.Geometry {
	_, ref := NearestPoints(detected, neighbor)
	disc := Disc(ref, radius, DiscSegments)

	var out orb.MultiPolygon
	for _, poly := range polygons(neighbor) {
		if len(poly) == 0 {
			continue
		}
		outer := ClipConvex(poly[0], disc)
		if len(outer) < 4 {
			continue
		}
		clipped := orb.Polygon{outer}
		for _, hole := range poly[1:] {
			if h := ClipConvex(hole, disc); len(h) >= 4 {
				clipped = append(clipped, h)
			}
		}
		out = append(out, clipped)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// ClipConvex clips subject against a counter-clockwise convex ring with the
// Sutherland-Hodgman algorithm. The result is closed, or empty.
func ClipConvex(subject, clip orb.Ring) orb.Ring {
	out := open(subject)
	edges := open(clip)
	for i := range edges {
		if len(out) == 0 {
			break
		}
		a, b := edges[i], edges[(i+1)%len(edges)]
		in := out
		out = make(orb.Ring, 0, len(in)+2)
		prev := in[len(in)-1]
		for _, cur := range in {
			curIn := orient(a, b, cur) >= 0
			prevIn := orient(a, b, prev) >= 0
			switch {
			case curIn && !prevIn:
				out = append(out, lineCross(prev, cur, a, b), cur)
			case curIn:
				out = append(out, cur)
			case prevIn:
				out = append(out, lineCross(prev, cur, a, b))
			}
			prev = cur
		}
	}
	if len(out) < 3 {
		return nil
	}
	return append(out, out[0])
}

func open(r orb.Ring) orb.Ring {
	if len(r) > 1 && r.Closed() {
		return r[:len(r)-1]
	}
	return r
}

// lineCross intersects segment pq with the infinite line ab.
func lineCross(p, q, a, b orb.Point) orb.Point {
	dp := orient(a, b, p)
	dq := orient(a, b, q)
	t := dp / (dp - dq)
	return orb.Point{p[0] + t*(q[0]-p[0]), p[1] + t*(q[1]-p[1])}
}
