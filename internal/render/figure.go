// Package render draws the figures shown to the operator: the photograph,
// the detected identifiers over it and the gallery plan around the match.
package render

import (
	"errors"
	"image"
	"image/color"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
)

const figureGap = 16

// ErrMosaicTooSmall is returned when a mosaic gets fewer than two items.
var ErrMosaicTooSmall = errors.New("mosaic needs at least two images")

// Figure lays panels out on one row, top-aligned.
func Figure(panels ...image.Image) *image.RGBA {
	w, h := figureGap, 0
	for _, p := range panels {
		w += p.Bounds().Dx() + figureGap
		h = max(h, p.Bounds().Dy())
	}
	c := NewCanvas(w, h+2*figureGap, color.White)
	x := figureGap
	for _, p := range panels {
		c.Paste(p, image.Pt(x, figureGap))
		x += p.Bounds().Dx() + figureGap
	}
	return c.Image()
}

// SideBySide shows a raw image next to its prediction.
func SideBySide(raw, pred image.Image) *image.RGBA {
	return Figure(raw, pred)
}

// Mosaic arranges items in a two-column grid. With an odd count the last item
// is centred on its own row.
func Mosaic(items []image.Image) (*image.RGBA, error) {
	const cols = 2
	if len(items) < cols {
		return nil, ErrMosaicTooSmall
	}
	cellW, cellH := 0, 0
	for _, it := range items {
		cellW = max(cellW, it.Bounds().Dx())
		cellH = max(cellH, it.Bounds().Dy())
	}
	rows := (len(items) + cols - 1) / cols
	width := cols*cellW + (cols+1)*figureGap
	c := NewCanvas(width, rows*cellH+(rows+1)*figureGap, color.White)

	for i, it := range items {
		row, col := i/cols, i%cols
		x := figureGap + col*(cellW+figureGap)
		if i == len(items)-1 && len(items)%cols == 1 {
			x = (width - it.Bounds().Dx()) / 2
		} else {
			x += (cellW - it.Bounds().Dx()) / 2
		}
		y := figureGap + row*(cellH+figureGap)
		c.Paste(it, image.Pt(x, y))
	}
	return c.Image(), nil
}

// LocatedFigure is the three panel figure: photograph, detection, map.
func LocatedFigure(img image.Image, path string, rows []ocr.Row, cat *gallery.Catalogue, id string, neighbors []string, style Style) (*image.RGBA, error) {
	mp, err := MapPanel(cat, id, neighbors, style)
	if err != nil {
		return nil, err
	}
	return Figure(
		RawPanel(img, path, style.PanelSize),
		DetectionPanel(img, rows, style.PanelSize),
		mp,
	), nil
}

// NoGalleryFigure shows only the photograph.
func NoGalleryFigure(img image.Image, path string, style Style) *image.RGBA {
	return Figure(RawPanel(img, "File : "+path, style.PanelSize))
}

// AmbiguousFigure shows the photograph and every candidate detection.
func AmbiguousFigure(img image.Image, path string, rows []ocr.Row, style Style) *image.RGBA {
	return Figure(
		RawPanel(img, path, style.PanelSize),
		DetectionPanel(img, rows, style.PanelSize),
	)
}
