package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
)

// Align is the horizontal text anchor.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Canvas is an RGBA image with vector drawing helpers.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas returns a w x h canvas filled with bg.
func NewCanvas(w, h int, bg color.Color) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return &Canvas{img: img}
}

// Image returns the backing image.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Bounds of the canvas.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Bounds() }

// Paste draws src with its top-left corner at pt.
func (c *Canvas) Paste(src image.Image, pt image.Point) {
	r := image.Rectangle{Min: pt, Max: pt.Add(src.Bounds().Size())}
	draw.Draw(c.img, r, src, src.Bounds().Min, draw.Over)
}

// Fill paints the area enclosed by rings. Rings of opposite orientation cut holes.
func (c *Canvas) Fill(rings [][]imgutil.Point, col color.Color) {
	b := c.img.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over
	drawn := false
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		r.MoveTo(float32(ring[0].X), float32(ring[0].Y))
		for _, p := range ring[1:] {
			r.LineTo(float32(p.X), float32(p.Y))
		}
		r.ClosePath()
		drawn = true
	}
	if drawn {
		r.Draw(c.img, b, image.NewUniform(col), image.Point{})
	}
}

// Stroke draws the polyline through pts with the given width.
func (c *Canvas) Stroke(pts []imgutil.Point, closed bool, width float64, col color.Color) {
	if len(pts) < 2 {
		return
	}
	b := c.img.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over
	n := len(pts) - 1
	if closed {
		n = len(pts)
	}
	for i := 0; i < n; i++ {
		segment(r, pts[i], pts[(i+1)%len(pts)], width/2)
	}
	r.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

// Line draws a single segment.
func (c *Canvas) Line(a, b imgutil.Point, width float64, col color.Color) {
	c.Stroke([]imgutil.Point{a, b}, false, width, col)
}

// segment adds a quad of half-width hw around ab, extended by hw at both
// ends so joints overlap.
func segment(r *vector.Rasterizer, a, b imgutil.Point, hw float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	ux, uy := dx/l*hw, dy/l*hw
	nx, ny := -uy, ux
	ax, ay := a.X-ux, a.Y-uy
	bx, by := b.X+ux, b.Y+uy
	// keep every quad in the same winding so overlaps do not cancel
	r.MoveTo(float32(ax+nx), float32(ay+ny))
	r.LineTo(float32(bx+nx), float32(by+ny))
	r.LineTo(float32(bx-nx), float32(by-ny))
	r.LineTo(float32(ax-nx), float32(ay-ny))
	r.ClosePath()
}

var face = basicfont.Face7x13

// TextSize returns the pixel size of s drawn at scale.
func TextSize(s string, scale int) (int, int) {
	if scale < 1 {
		scale = 1
	}
	w := font.MeasureString(face, s).Ceil()
	return w * scale, face.Metrics().Height.Ceil() * scale
}

// Text draws s with its baseline at y. x is interpreted by align.
func (c *Canvas) Text(s string, x, y float64, scale int, col color.Color, align Align) {
	if s == "" {
		return
	}
	if scale < 1 {
		scale = 1
	}
	w := font.MeasureString(face, s).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	h := face.Metrics().Height.Ceil()
	glyphs := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{Dst: glyphs, Src: image.NewUniform(col), Face: face, Dot: fixed.P(0, ascent)}
	d.DrawString(s)

	var label image.Image = glyphs
	if scale > 1 {
		label = imaging.Resize(glyphs, w*scale, h*scale, imaging.NearestNeighbor)
	}
	left := x
	switch align {
	case AlignCenter:
		left -= float64(w*scale) / 2
	case AlignRight:
		left -= float64(w * scale)
	}
	top := y - float64(ascent*scale)
	c.Paste(label, image.Pt(int(math.Round(left)), int(math.Round(top))))
}

// Rect fills an axis-aligned rectangle.
func (c *Canvas) Rect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

// Border draws a rectangle outline of the given width.
func (c *Canvas) Border(r image.Rectangle, width int, col color.Color) {
	c.Rect(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), col)
	c.Rect(image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), col)
	c.Rect(image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), col)
	c.Rect(image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), col)
}
