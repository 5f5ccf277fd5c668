package textdet

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
)

// Config holds configuration for the text detector.
type Config struct {
	ModelPath     string  // Path to the exported DBNet ONNX model
	LibraryPath   string  // Optional ONNX Runtime shared library path
	Device        string  // "cpu", "cuda" or "cuda:N"
	NumThreads    int     // Intra-op threads, 0 for runtime default
	MaxSide       int     // Longest image side fed to the model (default: 1280)
	Threshold     float32 // Probability threshold for binarization (default: 0.3)
	BoxThreshold  float64 // Minimum mean probability of a region (default: 0.5)
	UnclipRatio   float64 // DB unclip ratio applied to region rectangles (default: 1.5)
	MinSize       float64 // Minimum short side of a region in map pixels (default: 3)
	NMSThreshold  float64 // IoU threshold for NMS, 0 disables NMS (default: 0.3)
	Normalization imgutil.Normalization
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		MaxSide:       1280,
		Threshold:     0.3,
		BoxThreshold:  0.5,
		UnclipRatio:   1.5,
		MinSize:       3,
		NMSThreshold:  0.3,
		Normalization: imgutil.ImageNetNormalization,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("detection model path cannot be empty")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %.2f", c.Threshold)
	}
	if c.BoxThreshold < 0 || c.BoxThreshold > 1 {
		return fmt.Errorf("box threshold must be in [0,1], got %.2f", c.BoxThreshold)
	}
	if c.MaxSide < 32 {
		return fmt.Errorf("max side must be at least 32, got %d", c.MaxSide)
	}
	return nil
}
