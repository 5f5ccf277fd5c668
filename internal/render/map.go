package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/imgutil"
)

// mapFrame maps plan coordinates into a square panel, y up, equal aspect.
type mapFrame struct {
	size   float64
	scale  float64
	center orb.Point
}

func newMapFrame(b orb.Bound, size int) mapFrame {
	const margin = 0.05
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	extent := math.Max(w, h)
	if extent <= 0 {
		extent = 1
	}
	s := float64(size)
	return mapFrame{size: s, scale: s * (1 - 2*margin) / extent, center: b.Center()}
}

func (m mapFrame) toPanel(p orb.Point) imgutil.Point {
	return imgutil.Point{
		X: m.size/2 + (p[0]-m.center[0])*m.scale,
		Y: m.size/2 - (p[1]-m.center[1])*m.scale,
	}
}

func (m mapFrame) rings(g orb.Geometry) [][]imgutil.Point {
	var out [][]imgutil.Point
	for _, poly := range gallery.Polygons(g) {
		for _, ring := range poly {
			pts := make([]imgutil.Point, len(ring))
			for i, p := range ring {
				pts[i] = m.toPanel(p)
			}
			out = append(out, pts)
		}
	}
	return out
}

// MapPanel draws the whole plan, the cropped extensions of the neighbours and
// the detected gallery, with a north arrow, the id label and a legend.
func MapPanel(cat *gallery.Catalogue, id string, neighbors []string, style Style) (*image.RGBA, error) {
	detected, ok := cat.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", gallery.ErrUnknownID, id)
	}
	size := style.PanelSize
	if size <= 0 {
		size = DefaultPanelSize
	}
	frame := newMapFrame(cat.Bound(), size)
	c := NewCanvas(size, size, color.White)

	for _, g := range cat.Galleries() {
		rings := frame.rings(g.Geometry)
		c.Fill(rings, style.LaboColor)
		for _, r := range rings {
			c.Stroke(r, true, 1, color.Black)
		}
	}

	if style.Neighbors {
		for _, nid := range neighbors {
			n, ok := cat.Get(nid)
			if !ok {
				continue
			}
			cropped := gallery.CropNeighbor(detected.Geometry, n.Geometry, style.BufferSize)
			if cropped == nil {
				continue
			}
			c.Fill(frame.rings(cropped), style.NeighborColor)
		}
	}

	c.Fill(frame.rings(detected.Geometry), style.OCRColor)

	drawNorthArrow(c, float64(size))

	centroid, err := cat.Centroid(id)
	if err != nil {
		return nil, err
	}
	label := frame.toPanel(orb.Point{centroid[0], centroid[1] + 20})
	c.Text(id, label.X, label.Y, 2, color.Black, AlignLeft)

	drawLegend(c, []legendEntry{
		{Label: "OCR info -> " + id, Color: style.OCRColor},
		{Label: LegendNeighbor, Color: style.NeighborColor},
		{Label: LegendLaboratory, Color: style.LaboColor},
	})

	return Titled(c.Image(), TitleMap), nil
}

// drawNorthArrow points from axes fraction (0.1, 0.85) to (0.1, 0.95).
func drawNorthArrow(c *Canvas, size float64) {
	tail := imgutil.Point{X: 0.1 * size, Y: (1 - 0.85) * size}
	tip := imgutil.Point{X: 0.1 * size, Y: (1 - 0.95) * size}
	head := size * 0.025
	c.Line(tail, imgutil.Point{X: tip.X, Y: tip.Y + head}, head*0.6, color.Black)
	c.Fill([][]imgutil.Point{{
		tip,
		{X: tip.X + head, Y: tip.Y + 1.6*head},
		{X: tip.X - head, Y: tip.Y + 1.6*head},
	}}, color.Black)
	_, th := TextSize(NorthLabel, 2)
	c.Text(NorthLabel, tail.X, tail.Y+float64(th), 2, color.Black, AlignCenter)
}

type legendEntry struct {
	Label string
	Color color.Color
}

// drawLegend stacks colour patches with labels in the lower-left corner.
func drawLegend(c *Canvas, entries []legendEntry) {
	const (
		pad   = 8
		patch = 20
		gap   = 6
		scale = 1
	)
	textW := 0
	for _, e := range entries {
		if w, _ := TextSize(e.Label, scale); w > textW {
			textW = w
		}
	}
	_, textH := TextSize("X", scale)
	rowH := max(patch, textH)
	w := pad*3 + patch + textW
	h := pad*2 + len(entries)*rowH + (len(entries)-1)*gap

	b := c.Bounds()
	box := image.Rect(b.Min.X+pad, b.Max.Y-pad-h, b.Min.X+pad+w, b.Max.Y-pad)
	c.Rect(box, WithAlpha(color.White, 0.85))
	c.Border(box, 1, color.Gray{Y: 160})

	y := box.Min.Y + pad
	for _, e := range entries {
		p := image.Rect(box.Min.X+pad, y, box.Min.X+pad+patch, y+patch)
		c.Rect(p, e.Color)
		c.Border(p, 1, Darken(e.Color, 0.3))
		c.Text(e.Label, float64(p.Max.X+pad), float64(y+(rowH+textH)/2-3), scale, color.Black, AlignLeft)
		y += rowH + gap
	}
}
