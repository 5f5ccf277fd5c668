package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/objdet"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/render"
	"github.com/MeKo-Tech/tiresias/internal/textdet"
	"github.com/MeKo-Tech/tiresias/internal/textrec"
)

// ModelsDirEnv overrides models_dir when set.
const ModelsDirEnv = "TIRESIAS_MODELS_DIR"

// ResolvedModelsDir returns the models directory, honouring TIRESIAS_MODELS_DIR.
func (c *Config) ResolvedModelsDir() string {
	if dir := os.Getenv(ModelsDirEnv); dir != "" {
		return dir
	}
	if c.ModelsDir == "" {
		return DefaultModelsDir
	}
	return c.ModelsDir
}

// ModelPath resolves a model path relative to the models directory.
// Absolute paths are returned unchanged.
func (c *Config) ModelPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ResolvedModelsDir(), p)
}

// EngineConfig converts the OCR section to the engine configuration.
func (c *Config) EngineConfig() ocr.Config {
	det := textdet.DefaultConfig()
	det.ModelPath = c.ModelPath(c.OCR.DetModel)
	det.LibraryPath = c.ONNXLibraryPath
	det.Device = c.Device
	det.NumThreads = c.OCR.NumThreads
	det.Threshold = float32(c.OCR.DetThreshold)
	det.BoxThreshold = c.OCR.BoxThreshold

	rec := textrec.DefaultConfig()
	rec.ModelPath = c.ModelPath(c.OCR.RecModel)
	rec.DictPath = c.ModelPath(c.OCR.Dictionary)
	rec.LibraryPath = c.ONNXLibraryPath
	rec.Device = c.Device
	rec.NumThreads = c.OCR.NumThreads
	rec.Height = c.OCR.RecHeight
	rec.Width = c.OCR.RecWidth
	rec.BlankPosition = c.OCR.BlankPosition
	rec.MinConfidence = c.OCR.MinRecConfidence

	tess := ocr.DefaultTesseractConfig()
	if c.OCR.TesseractLang != "" {
		tess.Language = c.OCR.TesseractLang
	}
	tess.Enhance = c.OCR.Enhance
	tess.MinScore = c.OCR.MinRecConfidence

	return ocr.Config{
		Engine:    c.OCR.Engine,
		ONNX:      ocr.ONNXConfig{Detector: det, Recognizer: rec},
		Tesseract: tess,
	}
}

// GalleryOptions converts the gallery section to shapefile loading options.
func (c *Config) GalleryOptions() gallery.Options {
	return gallery.Options{
		Column:      c.Gallery.ColumnID,
		CRSWKT:      c.Gallery.CRSWKT,
		MaxIDLength: c.Gallery.MaxIDLength,
		Encoding:    c.Gallery.Encoding,
	}
}

// Style converts the display section to a figure style.
func (c *Config) Style() (render.Style, error) {
	s, err := render.NewStyle(c.Display.PanelSize, c.Display.LaboColor, c.Display.OCRColor, c.Display.NeighborColor)
	if err != nil {
		return s, err
	}
	s.Neighbors = c.Display.Neighbors
	s.BufferSize = c.Gallery.BufferSize
	return s, nil
}

// DetectorConfig converts the detection section to the object detector settings.
func (c *Config) DetectorConfig() (objdet.Config, error) {
	cfg := objdet.DefaultConfig()
	cfg.LibraryPath = c.ONNXLibraryPath
	cfg.Device = c.Device
	cfg.NumThreads = c.OCR.NumThreads
	if c.Detection.InputSize != 0 {
		cfg.InputSize = c.Detection.InputSize
	}
	cfg.ScoreThreshold = c.Detection.ScoreThreshold
	cfg.NMSThreshold = c.Detection.NMSThreshold
	cfg.Timing = c.Detection.Timing
	if err := copyTriple(&cfg.Mean, c.Detection.Mean, "detection.mean"); err != nil {
		return cfg, err
	}
	if err := copyTriple(&cfg.Std, c.Detection.Std, "detection.std"); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid detection settings: %w", err)
	}
	return cfg, nil
}

// DetectionModels returns the configured models with resolved paths.
func (c *Config) DetectionModels() []objdet.ModelSpec {
	out := make([]objdet.ModelSpec, 0, len(c.Detection.Models))
	for _, m := range c.Detection.Models {
		m.Path = c.ModelPath(m.Path)
		out = append(out, m)
	}
	return out
}

// FindModel returns the detection model with the given display name.
func (c *Config) FindModel(name string) (objdet.ModelSpec, error) {
	models := c.DetectionModels()
	for _, m := range models {
		if m.Name == name || m.DisplayName() == name {
			return m, nil
		}
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.DisplayName())
	}
	return objdet.ModelSpec{}, fmt.Errorf("unknown detection model %q (configured: %v)", name, names)
}

func copyTriple(dst *[3]float32, src []float32, name string) error {
	if len(src) == 0 {
		return nil
	}
	if len(src) != 3 {
		return fmt.Errorf("%s needs 3 values, got %d", name, len(src))
	}
	copy(dst[:], src)
	return nil
}
