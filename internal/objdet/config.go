// Package objdet runs exported object detection models on survey photos and
// plots their predictions.
package objdet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
)

// ModelSpec names one detection model on disk.
type ModelSpec struct {
	Name   string   `mapstructure:"name" yaml:"name" json:"name"`
	Path   string   `mapstructure:"path" yaml:"path" json:"path"`
	Labels []string `mapstructure:"labels" yaml:"labels" json:"labels,omitempty"`
	Custom bool     `mapstructure:"custom" yaml:"custom" json:"custom"`
}

// DisplayName is the configured name, else the file name without extension,
// prefixed with Custom_ for custom models.
func (s ModelSpec) DisplayName() string {
	name := s.Name
	if name == "" {
		base := filepath.Base(s.Path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if s.Custom && !strings.HasPrefix(name, "Custom_") {
		name = "Custom_" + name
	}
	return name
}

// Config holds the runtime and decoding parameters shared by all models.
type Config struct {
	LibraryPath    string
	Device         string
	NumThreads     int
	InputSize      int
	ScoreThreshold float64
	NMSThreshold   float64
	Mean           [3]float32
	Std            [3]float32
	Timing         bool
}

// DefaultConfig uses the MMDetection pixel statistics on a 640 input.
func DefaultConfig() Config {
	return Config{
		InputSize:      640,
		ScoreThreshold: 0.5,
		NMSThreshold:   0.45,
		Mean:           [3]float32{123.675, 116.28, 103.53},
		Std:            [3]float32{58.395, 57.12, 57.375},
		Timing:         true,
	}
}

// Validate checks the decoding parameters.
func (c Config) Validate() error {
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.InputSize)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return errors.New("score threshold must be in [0,1]")
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return errors.New("nms threshold must be in [0,1]")
	}
	for _, s := range c.Std {
		if s <= 0 {
			return errors.New("std values must be positive")
		}
	}
	return nil
}

func (c Config) normalization() imgutil.Normalization {
	return imgutil.Normalization{Scale: 1, Mean: c.Mean, Std: c.Std}
}
