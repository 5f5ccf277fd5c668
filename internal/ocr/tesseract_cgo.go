//go:build cgo && tesseract

package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
)

// TesseractEngine recognizes words with the Tesseract library.
type TesseractEngine struct {
	cfg    TesseractConfig
	client *gosseract.Client
	mu     sync.Mutex
}

// NewTesseractEngine creates a client for the configured language.
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultTesseractConfig().Language
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set tesseract language: %w", err)
	}
	return &TesseractEngine{cfg: cfg, client: client}, nil
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return EngineTesseract }

// Predict implements Engine.
func (e *TesseractEngine) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	if img == nil {
		return Prediction{}, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	b := img.Bounds()
	pred := Prediction{Width: b.Dx(), Height: b.Dy()}

	src := img
	if e.cfg.Enhance {
		src = Enhance(img, e.cfg.Contrast)
	}
	data, err := imgutil.EncodePNG(src)
	if err != nil {
		return pred, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(data); err != nil {
		return pred, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return pred, fmt.Errorf("tesseract failed: %w", err)
	}
	for _, box := range boxes {
		row := wordRow(box.Word, box.Box, box.Confidence)
		if row.Text == "" || row.RecScore < e.cfg.MinScore {
			continue
		}
		pred.Rows = append(pred.Rows, row)
	}
	return pred, nil
}

// Close releases the client.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
