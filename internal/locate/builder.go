package locate

import (
	"errors"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/match"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/render"
)

// Builder constructs a Locator with fluent configuration.
type Builder struct {
	engine    ocr.Engine
	catalogue *gallery.Catalogue
	distance  float64
	language  string
	style     render.Style
	figures   bool
	workers   int
	progress  Progress
}

// NewBuilder creates a builder with the default style, French case mapping
// and figures enabled.
func NewBuilder() *Builder {
	return &Builder{
		distance: gallery.DefaultDistance,
		language: "fr",
		style:    render.DefaultStyle(),
		figures:  true,
		workers:  1,
	}
}

// WithEngine sets the OCR engine. The Locator takes ownership of it.
func (b *Builder) WithEngine(e ocr.Engine) *Builder {
	b.engine = e
	return b
}

// WithCatalogue sets the gallery catalogue.
func (b *Builder) WithCatalogue(c *gallery.Catalogue) *Builder {
	b.catalogue = c
	return b
}

// WithNeighborDistance sets the neighbour search distance.
func (b *Builder) WithNeighborDistance(d float64) *Builder {
	if d >= 0 {
		b.distance = d
	}
	return b
}

// WithLanguage sets the language used to upper-case recognized text.
func (b *Builder) WithLanguage(lang string) *Builder {
	if lang != "" {
		b.language = lang
	}
	return b
}

// WithStyle sets the figure style.
func (b *Builder) WithStyle(s render.Style) *Builder {
	b.style = s
	return b
}

// WithFigures toggles figure rendering.
func (b *Builder) WithFigures(enabled bool) *Builder {
	b.figures = enabled
	return b
}

// WithWorkers sets how many photos are processed concurrently.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.workers = n
	}
	return b
}

// WithProgress sets a progress reporter for LocateAll.
func (b *Builder) WithProgress(p Progress) *Builder {
	b.progress = p
	return b
}

// Build computes the neighbour map and returns the Locator.
func (b *Builder) Build() (*Locator, error) {
	if b.engine == nil {
		return nil, errors.New("locator needs an OCR engine")
	}
	if b.catalogue == nil || b.catalogue.Len() == 0 {
		return nil, errors.New("locator needs a non-empty gallery catalogue")
	}
	progress := b.progress
	if progress == nil {
		progress = NoOpProgress{}
	}
	return &Locator{
		engine:    b.engine,
		catalogue: b.catalogue,
		neighbors: gallery.FindNeighbors(b.catalogue, b.distance),
		matcher:   match.New(b.language),
		style:     b.style,
		figures:   b.figures,
		workers:   b.workers,
		progress:  progress,
	}, nil
}
