// Package ocr turns an image into text predictions: polygons, recognized
// strings and their scores.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
)

// Engine names accepted by NewEngine.
const (
	EngineONNX      = "onnx"
	EngineTesseract = "tesseract"
)

// ErrTesseractUnavailable is returned when the binary was built without Tesseract support.
var ErrTesseractUnavailable = errors.New("tesseract engine not available in this build (rebuild with -tags tesseract and cgo)")

// Row is one detected and recognized text instance.
type Row struct {
	// Polygon holds x0,y0,x1,y1,... in image pixels.
	Polygon  []float64 `json:"det_polygon" yaml:"det_polygon"`
	DetScore float64   `json:"det_score" yaml:"det_score"`
	Text     string    `json:"rec_text" yaml:"rec_text"`
	RecScore float64   `json:"rec_score" yaml:"rec_score"`
}

// Points returns the polygon as points.
func (r Row) Points() []imgutil.Point { return imgutil.Unflatten(r.Polygon) }

// Prediction is the engine output for one image.
type Prediction struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Rows   []Row `json:"rows"`
}

// Empty reports whether no row carries text.
func (p Prediction) Empty() bool {
	for _, r := range p.Rows {
		if r.Text != "" {
			return false
		}
	}
	return true
}

// Texts returns the recognized strings in row order.
func (p Prediction) Texts() []string {
	out := make([]string, 0, len(p.Rows))
	for _, r := range p.Rows {
		out = append(out, r.Text)
	}
	return out
}

// Engine recognizes text in images.
type Engine interface {
	Predict(ctx context.Context, img image.Image) (Prediction, error)
	Name() string
	Close() error
}

// Config selects and configures an engine.
type Config struct {
	Engine    string
	ONNX      ONNXConfig
	Tesseract TesseractConfig
}

// NewEngine builds the engine named in cfg.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Engine {
	case "", EngineONNX:
		eng, err := NewONNXEngine(cfg.ONNX)
		if err != nil {
			return nil, err
		}
		return eng, nil
	case EngineTesseract:
		eng, err := NewTesseractEngine(cfg.Tesseract)
		if err != nil {
			return nil, err
		}
		return eng, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}
}
