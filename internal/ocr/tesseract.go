package ocr

import (
	"image"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
)

// TesseractConfig configures the Tesseract engine.
type TesseractConfig struct {
	Language string  // traineddata name, e.g. "fra"
	Enhance  bool    // grayscale and contrast before recognition
	Contrast float64 // contrast change in [-1,1] applied when Enhance is set
	MinScore float64 // words below this confidence are dropped
}

// DefaultTesseractConfig returns French with mild enhancement.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{Language: "fra", Enhance: true, Contrast: 0.3}
}

// Enhance converts img to grayscale and raises its contrast.
func Enhance(img image.Image, contrast float64) image.Image {
	gray := effect.Grayscale(img)
	if contrast == 0 {
		return gray
	}
	return adjust.Contrast(gray, contrast)
}

// wordRow builds a rectangular row from a word box.
func wordRow(word string, box image.Rectangle, confidence float64) Row {
	pts := []imgutil.Point{
		{X: float64(box.Min.X), Y: float64(box.Min.Y)},
		{X: float64(box.Max.X), Y: float64(box.Min.Y)},
		{X: float64(box.Max.X), Y: float64(box.Max.Y)},
		{X: float64(box.Min.X), Y: float64(box.Max.Y)},
	}
	score := confidence / 100
	return Row{Polygon: imgutil.Flatten(pts), DetScore: score, Text: strings.TrimSpace(word), RecScore: score}
}
