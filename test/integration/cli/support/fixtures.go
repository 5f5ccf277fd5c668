package support

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonas-p/go-shp"

	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/testutil"
)

// writePlan writes one square per id, side by side along x, with a 100 unit
// gap before every id that starts with an isolated marker "*".
func writePlan(path string, ids []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer w.Close()
	if err := w.SetFields([]shp.Field{shp.StringField("GALERIE", 16)}); err != nil {
		return err
	}
	x := 0.0
	for _, id := range ids {
		if rest, isolated := strings.CutPrefix(id, "*"); isolated {
			id = rest
			x += 100
		}
		ring := testutil.Square(x, 0, 10)
		pts := make([]shp.Point, 0, len(ring))
		for _, p := range ring {
			pts = append(pts, shp.Point{X: p[0], Y: p[1]})
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{pts}))
		row := w.Write(&poly)
		if err := w.WriteAttribute(int(row), 0, id); err != nil {
			return err
		}
		x += 10
	}
	return nil
}

func writePhoto(path string, w, h int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: scenario directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return jpeg.Encode(f, testutil.Solid(w, h, color.White), &jpeg.Options{Quality: 90})
}

// scriptedEngine reads whatever text the scenario told it to read, chosen
// by the width of the photo when a width was scripted.
type scriptedEngine struct {
	mu      sync.Mutex
	texts   []string
	byWidth map[int][]string
}

func newScriptedEngine() *scriptedEngine {
	return &scriptedEngine{byWidth: map[int][]string{}}
}

func (e *scriptedEngine) set(texts []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = texts
}

func (e *scriptedEngine) setForWidth(width int, texts []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byWidth[width] = texts
}

func (e *scriptedEngine) Predict(_ context.Context, img image.Image) (ocr.Prediction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := img.Bounds()
	p := ocr.Prediction{Width: b.Dx(), Height: b.Dy()}
	texts, ok := e.byWidth[b.Dx()]
	if !ok {
		texts = e.texts
	}
	for i, t := range texts {
		y := float64(5 + 15*i)
		p.Rows = append(p.Rows, ocr.Row{
			Text: t, DetScore: 0.9, RecScore: 0.8,
			Polygon: []float64{5, y, 40, y, 40, y + 10, 5, y + 10},
		})
	}
	return p, nil
}

func (e *scriptedEngine) Name() string { return "scripted" }
func (e *scriptedEngine) Close() error { return nil }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
