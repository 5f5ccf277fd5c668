package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/colornames"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
)

// Titled places content under a centred title bar.
func Titled(content image.Image, title string) *image.RGBA {
	b := content.Bounds()
	c := NewCanvas(b.Dx(), b.Dy()+titleBarHeight, color.White)
	c.Paste(content, image.Pt(0, titleBarHeight))
	if title != "" {
		scale := 2
		if w, _ := TextSize(title, scale); w > b.Dx()-8 {
			scale = 1
		}
		c.Text(fitText(title, b.Dx()-8, scale), float64(b.Dx())/2, float64(titleBarHeight-8), scale, color.Black, AlignCenter)
	}
	return c.Image()
}

// fitText trims s from the left until it fits in width pixels.
func fitText(s string, width, scale int) string {
	r := []rune(s)
	for len(r) > 4 {
		if w, _ := TextSize(string(r), scale); w <= width {
			break
		}
		r = append([]rune("..."), r[4:]...)
	}
	return string(r)
}

// fitted is an image scaled into a square panel together with the transform
// from image pixels to panel pixels.
type fitted struct {
	canvas *Canvas
	scale  float64
	offset imgutil.Point
	origin image.Point
}

func fit(img image.Image, size int) fitted {
	c := NewCanvas(size, size, color.White)
	b := img.Bounds()
	ratio := math.Min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*ratio)))
	h := max(1, int(math.Round(float64(b.Dy())*ratio)))
	scaled := imaging.Resize(img, w, h, imaging.Lanczos)
	sb := scaled.Bounds()
	off := image.Pt((size-sb.Dx())/2, (size-sb.Dy())/2)
	c.Paste(scaled, off)
	return fitted{
		canvas: c,
		scale:  float64(sb.Dx()) / float64(b.Dx()),
		offset: imgutil.Point{X: float64(off.X), Y: float64(off.Y)},
		origin: b.Min,
	}
}

func (f fitted) toPanel(p imgutil.Point) imgutil.Point {
	return imgutil.Point{
		X: (p.X-float64(f.origin.X))*f.scale + f.offset.X,
		Y: (p.Y-float64(f.origin.Y))*f.scale + f.offset.Y,
	}
}

// RawPanel shows the photograph titled with its path.
func RawPanel(img image.Image, title string, size int) *image.RGBA {
	return Titled(fit(img, size).canvas.Image(), title)
}

// DetectionPanel outlines each row polygon in black, fills it green and
// writes its text in red just above it.
func DetectionPanel(img image.Image, rows []ocr.Row, size int) *image.RGBA {
	f := fit(img, size)
	fill := WithAlpha(colornames.Green, defaultDetectionA)
	for _, row := range rows {
		pts := row.Points()
		if len(pts) < 3 {
			continue
		}
		panel := make([]imgutil.Point, len(pts))
		for i, p := range pts {
			panel[i] = f.toPanel(p)
		}
		f.canvas.Fill([][]imgutil.Point{panel}, fill)
		f.canvas.Stroke(panel, true, 2, color.Black)

		box := imgutil.BoundingBox(pts)
		anchor := f.toPanel(imgutil.Point{X: box.MinX + box.Width()/2, Y: box.MinY - 10})
		f.canvas.Text(row.Text, anchor.X, anchor.Y, 2, colornames.Red, AlignLeft)
	}
	return Titled(f.canvas.Image(), TitleDetection)
}
