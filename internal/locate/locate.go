// Package locate runs the full localisation of survey photos: OCR, matching
// against the gallery catalogue and the figure for the outcome.
package locate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/match"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/render"
)

// Timings records how long each stage took, in milliseconds.
type Timings struct {
	LoadMs   float64 `json:"load_ms" yaml:"load_ms"`
	OCRMs    float64 `json:"ocr_ms" yaml:"ocr_ms"`
	RenderMs float64 `json:"render_ms" yaml:"render_ms"`
	TotalMs  float64 `json:"total_ms" yaml:"total_ms"`
}

// Result is the localisation of one photo.
type Result struct {
	Path       string     `json:"path" yaml:"path"`
	Width      int        `json:"width" yaml:"width"`
	Height     int        `json:"height" yaml:"height"`
	Outcome    match.Kind `json:"outcome" yaml:"outcome"`
	Gallery    string     `json:"gallery,omitempty" yaml:"gallery,omitempty"`
	Candidates []string   `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Neighbors  []string   `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`
	Matched    []ocr.Row  `json:"matched,omitempty" yaml:"matched,omitempty"`
	Rows       []ocr.Row  `json:"rows" yaml:"rows"`
	Engine     string     `json:"engine" yaml:"engine"`
	Timings    Timings    `json:"timings" yaml:"timings"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
	// Figure is the PNG encoded figure, nil when there is nothing to show.
	Figure []byte `json:"-" yaml:"-"`
}

// HasFigure reports whether a figure was rendered.
func (r *Result) HasFigure() bool { return len(r.Figure) > 0 }

// Locator holds everything needed to localise photos. It is safe for
// concurrent use when its engine is.
type Locator struct {
	engine    ocr.Engine
	catalogue *gallery.Catalogue
	neighbors gallery.Neighbors
	matcher   *match.Matcher
	style     render.Style
	figures   bool
	workers   int
	progress  Progress
}

// Catalogue returns the gallery catalogue.
func (l *Locator) Catalogue() *gallery.Catalogue { return l.catalogue }

// Neighbors returns the neighbour map computed at build time.
func (l *Locator) Neighbors() gallery.Neighbors { return l.neighbors }

// Engine returns the OCR engine.
func (l *Locator) Engine() ocr.Engine { return l.engine }

// Style returns the figure style.
func (l *Locator) Style() render.Style { return l.style }

// LocateFile loads the photo at path and localises it.
func (l *Locator) LocateFile(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	img, _, err := imgutil.LoadImage(path)
	if err != nil {
		return nil, err
	}
	load := time.Since(start)
	res, err := l.LocateImage(ctx, img, path)
	if err != nil {
		return nil, err
	}
	res.Timings.LoadMs = ms(load)
	res.Timings.TotalMs = ms(time.Since(start))
	return res, nil
}

// LocateImage localises an already decoded photo. name is used in titles.
func (l *Locator) LocateImage(ctx context.Context, img image.Image, name string) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	start := time.Now()
	pred, err := l.engine.Predict(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("ocr on %s: %w", name, err)
	}
	ocrTime := time.Since(start)

	out := l.matcher.Classify(pred, l.catalogue.Names())
	res := &Result{
		Path:       name,
		Width:      pred.Width,
		Height:     pred.Height,
		Outcome:    out.Kind,
		Gallery:    out.Gallery,
		Candidates: out.Candidates,
		Matched:    out.Rows,
		Rows:       pred.Rows,
		Engine:     l.engine.Name(),
	}
	res.Timings.OCRMs = ms(ocrTime)

	switch out.Kind {
	case match.NoText:
		slog.Info("No text detected", "path", name)
	case match.NoGallery:
		slog.Info("No galerie detected", "path", name)
	case match.Ambiguous:
		slog.Info("Several galleries detected", "path", name, "candidates", out.Candidates)
	case match.Located:
		res.Neighbors = l.neighbors.Of(out.Gallery)
		slog.Info("Galerie located", "path", name, "galerie", out.Gallery, "neighbors", res.Neighbors)
	}

	if l.figures {
		rstart := time.Now()
		fig, err := l.figure(img, name, out)
		if err != nil {
			return nil, err
		}
		if fig != nil {
			if res.Figure, err = imgutil.EncodePNG(fig); err != nil {
				return nil, err
			}
		}
		res.Timings.RenderMs = ms(time.Since(rstart))
	}
	res.Timings.TotalMs = ms(time.Since(start))
	return res, nil
}

func (l *Locator) figure(img image.Image, name string, out match.Outcome) (image.Image, error) {
	switch out.Kind {
	case match.Located:
		return render.LocatedFigure(img, name, out.Rows, l.catalogue, out.Gallery, l.neighbors.Of(out.Gallery), l.style)
	case match.Ambiguous:
		return render.AmbiguousFigure(img, name, out.Rows, l.style), nil
	case match.NoGallery:
		return render.NoGalleryFigure(img, name, l.style), nil
	default:
		return nil, nil
	}
}

// Close releases the engine.
func (l *Locator) Close() error {
	if l.engine == nil {
		return nil
	}
	return l.engine.Close()
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
