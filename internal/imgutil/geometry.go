package imgutil

import (
	"image"
	"math"
	"sort"
)

// Point is a 2D coordinate in pixel space.
type Point struct {
	X float64
	Y float64
}

// Box is an axis-aligned bounding box in pixel space.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from two corners in any order.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.Width() <= 0 || b.Height() <= 0 {
		return 0
	}
	return b.Width() * b.Height()
}

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(o Box) float64 {
	ix := math.Min(b.MaxX, o.MaxX) - math.Max(b.MinX, o.MinX)
	iy := math.Min(b.MaxY, o.MaxY) - math.Max(b.MinY, o.MinY)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ToRect converts the box to an image.Rectangle clamped to bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(b.MinX)), int(math.Floor(b.MinY)),
		int(math.Ceil(b.MaxX)), int(math.Ceil(b.MaxY)),
	)
	return r.Intersect(bounds)
}

// BoundingBox returns the axis-aligned box enclosing pts.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Flatten converts points to the x0,y0,x1,y1,... layout.
func Flatten(pts []Point) []float64 {
	out := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Unflatten is the inverse of Flatten. A trailing odd coordinate is dropped.
func Unflatten(flat []float64) []Point {
	out := make([]Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out = append(out, Point{X: flat[i], Y: flat[i+1]})
	}
	return out
}

// ConvexHull computes the hull of pts with the monotone chain algorithm.
// The result is counter-clockwise without repeating the first point.
func ConvexHull(pts []Point) []Point {
	p := append([]Point(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X == p[j].X {
			return p[i].Y < p[j].Y
		}
		return p[i].X < p[j].X
	})
	uniq := p[:0]
	for i, q := range p {
		if i == 0 || q != p[i-1] {
			uniq = append(uniq, q)
		}
	}
	p = uniq
	if len(p) < 3 {
		return p
	}

	hull := make([]Point, 0, 2*len(p))
	for _, q := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		q := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinAreaRect returns the four corners of the minimum-area rectangle
// enclosing pts, computed over the hull edges (rotating calipers).
func MinAreaRect(pts []Point) []Point {
	hull := ConvexHull(pts)
	if len(hull) < 3 {
		b := BoundingBox(pts)
		return []Point{{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY}}
	}

	bestArea := math.Inf(1)
	var best []Point
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		ex, ey := b.X-a.X, b.Y-a.Y
		l := math.Hypot(ex, ey)
		if l == 0 {
			continue
		}
		ux, uy := ex/l, ey/l
		vx, vy := -uy, ux
		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := p.X*ux + p.Y*uy
			v := p.X*vx + p.Y*vy
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		if area := (maxU - minU) * (maxV - minV); area < bestArea {
			bestArea = area
			corner := func(u, v float64) Point { return Point{X: u*ux + v*vx, Y: u*uy + v*vy} }
			best = []Point{corner(minU, minV), corner(maxU, minV), corner(maxU, maxV), corner(minU, maxV)}
		}
	}
	return best
}
