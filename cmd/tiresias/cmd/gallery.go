package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/tiresias/internal/config"
	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/locate"
)

var errNoShapefile = errors.New("no gallery shapefile configured (use --shapefile or gallery.shapefile)")

func loadCatalogue(cfg *config.Config) (*gallery.Catalogue, error) {
	if cfg.Gallery.Shapefile == "" {
		return nil, errNoShapefile
	}
	ds, err := gallery.Load(cfg.Gallery.Shapefile, cfg.GalleryOptions())
	if err != nil {
		return nil, err
	}
	if ds.Catalogue.Len() == 0 {
		return nil, fmt.Errorf("no gallery found in %s", cfg.Gallery.Shapefile)
	}
	slog.Debug("galleries loaded", "shapefile", cfg.Gallery.Shapefile,
		"records", len(ds.Raw), "galleries", ds.Catalogue.Len(), "crs", ds.CRS)
	return ds.Catalogue, nil
}

// locatorOptions are the per-command choices layered on the configuration.
type locatorOptions struct {
	figures   bool
	neighbors bool
	workers   int
	progress  locate.Progress
}

// openLocator loads the catalogue and the OCR engine. The caller closes the
// returned locator, which closes the engine.
func (a *app) openLocator(cfg *config.Config, opts locatorOptions) (*locate.Locator, error) {
	cat, err := loadCatalogue(cfg)
	if err != nil {
		return nil, err
	}
	style, err := cfg.Style()
	if err != nil {
		return nil, err
	}
	style.Neighbors = opts.neighbors

	eng, err := a.newEngine(cfg.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open OCR engine: %w", err)
	}
	loc, err := locate.NewBuilder().
		WithEngine(eng).
		WithCatalogue(cat).
		WithNeighborDistance(cfg.Gallery.NeighborDistance).
		WithLanguage(cfg.OCR.Language).
		WithStyle(style).
		WithFigures(opts.figures).
		WithWorkers(opts.workers).
		WithProgress(opts.progress).
		Build()
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	return loc, nil
}
