package objdet

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/render"
)

// classColor spreads class hues around the wheel.
func classColor(class int) color.NRGBA {
	if class < 0 {
		class = 0
	}
	h := float64((class * 47) % 360)
	r, g, b := colorful.Hsv(h, 0.85, 0.95).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Plot draws every detection scoring at least thr as an outlined box with a
// "label score" tag.
func Plot(img image.Image, dets []Detection, thr float64) *image.RGBA {
	b := img.Bounds()
	c := render.NewCanvas(b.Dx(), b.Dy(), color.White)
	c.Paste(img, image.Point{})
	width := max(2, float64(max(b.Dx(), b.Dy()))/320)
	scale := max(1, max(b.Dx(), b.Dy())/640)

	for _, d := range dets {
		if d.Score < thr {
			continue
		}
		col := classColor(d.Class)
		x0, y0 := d.Box.MinX-float64(b.Min.X), d.Box.MinY-float64(b.Min.Y)
		x1, y1 := d.Box.MaxX-float64(b.Min.X), d.Box.MaxY-float64(b.Min.Y)
		c.Fill([][]imgutil.Point{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}}, render.WithAlpha(col, 0.15))
		c.Stroke([]imgutil.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}, true, width, col)

		tag := fmt.Sprintf("%s %.2f", labelOf(d), d.Score)
		tw, th := render.TextSize(tag, scale)
		top := int(y0) - th - 2
		if top < 0 {
			top = int(y0)
		}
		c.Rect(image.Rect(int(x0), top, int(x0)+tw+4, top+th+2), col)
		c.Text(tag, x0+2, float64(top+th-2*scale), scale, color.White, render.AlignLeft)
	}
	return c.Image()
}

func labelOf(d Detection) string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("class %d", d.Class)
}

// Prediction is one model's plot for an image.
type Prediction struct {
	Model      string
	File       string
	Detections []Detection
	Plot       *image.RGBA
}

// Predict detects and plots in one step.
func (d *Detector) Predict(ctx context.Context, img image.Image, file string) (Prediction, error) {
	dets, err := d.Detect(ctx, img)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Model:      d.Name(),
		File:       file,
		Detections: dets,
		Plot:       Plot(img, dets, d.cfg.ScoreThreshold),
	}, nil
}

// RawVsPrediction places the photo next to one model's plot.
func (d *Detector) RawVsPrediction(ctx context.Context, img image.Image, file string) (*image.RGBA, Prediction, error) {
	p, err := d.Predict(ctx, img, file)
	if err != nil {
		return nil, p, err
	}
	return render.SideBySide(render.Titled(img, file), render.Titled(p.Plot, p.Model)), p, nil
}

// Benchmark runs every detector on img and lays the titled plots out in a
// two-column mosaic.
func Benchmark(ctx context.Context, img image.Image, file string, detectors []*Detector) (*image.RGBA, []Prediction, error) {
	preds := make([]Prediction, 0, len(detectors))
	plots := make([]image.Image, 0, len(detectors))
	for _, d := range detectors {
		p, err := d.Predict(ctx, img, file)
		if err != nil {
			return nil, preds, err
		}
		preds = append(preds, p)
		plots = append(plots, render.Titled(p.Plot, p.Model))
	}
	mosaic, err := render.Mosaic(plots)
	if err != nil {
		return nil, preds, err
	}
	return mosaic, preds, nil
}
