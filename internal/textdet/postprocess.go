package textdet

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/mempool"
)

// Region is a detected text region.
type Region struct {
	Polygon []imgutil.Point
	Box     imgutil.Box
	Score   float64
}

type component struct {
	count  int
	sum    float64
	border []imgutil.Point
}

// PostProcess turns a DB probability map into text regions in map coordinates:
// threshold, 8-connected components, mean-probability score, min-area
// rectangle, unclip, then NMS.
func PostProcess(prob []float32, w, h int, cfg Config) []Region {
	if w <= 0 || h <= 0 || len(prob) != w*h {
		return nil
	}
	comps := components(prob, w, h, cfg.Threshold)

	regions := make([]Region, 0, len(comps))
	for _, c := range comps {
		if c.count == 0 {
			continue
		}
		score := c.sum / float64(c.count)
		if score < cfg.BoxThreshold {
			continue
		}
		rect := imgutil.MinAreaRect(c.border)
		if shortSide(rect) < cfg.MinSize {
			continue
		}
		if cfg.UnclipRatio > 0 {
			rect = unclip(rect, cfg.UnclipRatio)
		}
		for i := range rect {
			rect[i].X = clamp(rect[i].X, 0, float64(w))
			rect[i].Y = clamp(rect[i].Y, 0, float64(h))
		}
		regions = append(regions, Region{Polygon: rect, Box: imgutil.BoundingBox(rect), Score: score})
	}

	if cfg.NMSThreshold > 0 {
		regions = NonMaxSuppression(regions, cfg.NMSThreshold)
	}
	sortReadingOrder(regions)
	return regions
}

// components labels 8-connected pixels above t with an explicit stack.
// Border pixels contribute their four corners so rectangles cover whole pixels.
func components(prob []float32, w, h int, t float32) []component {
	visited := mempool.Bool.Get(w * h)
	defer mempool.Bool.Put(visited)
	var comps []component
	stack := make([]int, 0, 64)

	inside := func(x, y int) bool {
		return x >= 0 && x < w && y >= 0 && y < h && prob[y*w+x] >= t
	}

	for start := range prob {
		if visited[start] || prob[start] < t {
			continue
		}
		var c component
		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w
			c.count++
			c.sum += float64(prob[idx])

			edge := false
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if !inside(nx, ny) {
						if dx == 0 || dy == 0 {
							edge = true
						}
						continue
					}
					if n := ny*w + nx; !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}
			if edge {
				fx, fy := float64(x), float64(y)
				c.border = append(c.border,
					imgutil.Point{X: fx, Y: fy}, imgutil.Point{X: fx + 1, Y: fy},
					imgutil.Point{X: fx + 1, Y: fy + 1}, imgutil.Point{X: fx, Y: fy + 1})
			}
		}
		comps = append(comps, c)
	}
	return comps
}

// unclip grows a rectangle by area*ratio/perimeter on every side.
func unclip(rect []imgutil.Point, ratio float64) []imgutil.Point {
	if len(rect) != 4 {
		return rect
	}
	w := math.Hypot(rect[1].X-rect[0].X, rect[1].Y-rect[0].Y)
	h := math.Hypot(rect[2].X-rect[1].X, rect[2].Y-rect[1].Y)
	if w == 0 || h == 0 {
		return rect
	}
	d := w * h * ratio / (2 * (w + h))
	ux, uy := (rect[1].X-rect[0].X)/w, (rect[1].Y-rect[0].Y)/w
	vx, vy := (rect[2].X-rect[1].X)/h, (rect[2].Y-rect[1].Y)/h
	cx := (rect[0].X + rect[2].X) / 2
	cy := (rect[0].Y + rect[2].Y) / 2
	hw, hh := w/2+d, h/2+d
	at := func(su, sv float64) imgutil.Point {
		return imgutil.Point{X: cx + su*hw*ux + sv*hh*vx, Y: cy + su*hw*uy + sv*hh*vy}
	}
	return []imgutil.Point{at(-1, -1), at(1, -1), at(1, 1), at(-1, 1)}
}

func shortSide(rect []imgutil.Point) float64 {
	if len(rect) != 4 {
		return 0
	}
	w := math.Hypot(rect[1].X-rect[0].X, rect[1].Y-rect[0].Y)
	h := math.Hypot(rect[2].X-rect[1].X, rect[2].Y-rect[1].Y)
	return math.Min(w, h)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// sortReadingOrder orders regions top-to-bottom then left-to-right.
func sortReadingOrder(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Box, regions[j].Box
		if math.Abs(a.MinY-b.MinY) > math.Min(a.Height(), b.Height())/2 {
			return a.MinY < b.MinY
		}
		return a.MinX < b.MinX
	})
}

// NonMaxSuppression keeps the highest scoring region among boxes overlapping
// by more than iouThreshold.
func NonMaxSuppression(regions []Region, iouThreshold float64) []Region {
	if len(regions) <= 1 {
		return regions
	}
	order := make([]int, len(regions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return regions[order[i]].Score > regions[order[j]].Score })

	suppressed := make([]bool, len(regions))
	kept := make([]Region, 0, len(regions))
	for ai, a := range order {
		if suppressed[a] {
			continue
		}
		kept = append(kept, regions[a])
		for _, b := range order[ai+1:] {
			if !suppressed[b] && regions[a].Box.IoU(regions[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}

// ScaleToOriginal maps regions from map coordinates to image coordinates.
func ScaleToOriginal(regions []Region, mapW, mapH, origW, origH int) []Region {
	if mapW == 0 || mapH == 0 {
		return regions
	}
	sx := float64(origW) / float64(mapW)
	sy := float64(origH) / float64(mapH)
	out := make([]Region, len(regions))
	for i, r := range regions {
		poly := make([]imgutil.Point, len(r.Polygon))
		for j, p := range r.Polygon {
			poly[j] = imgutil.Point{X: p.X * sx, Y: p.Y * sy}
		}
		b := r.Box
		out[i] = Region{
			Polygon: poly,
			Box:     imgutil.NewBox(b.MinX*sx, b.MinY*sy, b.MaxX*sx, b.MaxY*sy),
			Score:   r.Score,
		}
	}
	return out
}
