package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/textdet"
	"github.com/MeKo-Tech/tiresias/internal/textrec"
)

// ONNXConfig configures the two-stage detection and recognition engine.
type ONNXConfig struct {
	Detector   textdet.Config
	Recognizer textrec.Config
}

// regionDetector and lineRecognizer are the stages the engine drives.
type regionDetector interface {
	Detect(ctx context.Context, img image.Image) (*textdet.Result, error)
	Close() error
}

type lineRecognizer interface {
	Recognize(ctx context.Context, img image.Image, polygon []imgutil.Point) (textrec.Text, error)
	Close() error
}

// ONNXEngine detects text regions then reads each one.
type ONNXEngine struct {
	det regionDetector
	rec lineRecognizer
}

// NewONNXEngine opens both models.
func NewONNXEngine(cfg ONNXConfig) (*ONNXEngine, error) {
	det, err := textdet.New(cfg.Detector)
	if err != nil {
		return nil, err
	}
	rec, err := textrec.New(cfg.Recognizer)
	if err != nil {
		if cerr := det.Close(); cerr != nil {
			slog.Warn("closing detector after recognizer failure", "error", cerr)
		}
		return nil, err
	}
	return &ONNXEngine{det: det, rec: rec}, nil
}

// Name implements Engine.
func (e *ONNXEngine) Name() string { return EngineONNX }

// Predict implements Engine. Regions whose text comes back empty are dropped.
func (e *ONNXEngine) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	if img == nil {
		return Prediction{}, errors.New("input image is nil")
	}
	b := img.Bounds()
	pred := Prediction{Width: b.Dx(), Height: b.Dy()}

	det, err := e.det.Detect(ctx, img)
	if err != nil {
		return pred, fmt.Errorf("text detection: %w", err)
	}
	for _, region := range det.Regions {
		text, err := e.rec.Recognize(ctx, img, region.Polygon)
		if err != nil {
			if ctx.Err() != nil {
				return pred, ctx.Err()
			}
			slog.Debug("skipping unreadable region", "box", region.Box, "error", err)
			continue
		}
		if text.Text == "" {
			continue
		}
		pred.Rows = append(pred.Rows, Row{
			Polygon:  imgutil.Flatten(region.Polygon),
			DetScore: region.Score,
			Text:     text.Text,
			RecScore: text.Confidence,
		})
	}
	return pred, nil
}

// Close releases both models.
func (e *ONNXEngine) Close() error {
	return errors.Join(e.det.Close(), e.rec.Close())
}
