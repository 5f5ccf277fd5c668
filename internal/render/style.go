package render

import (
	"fmt"
	"image/color"
)

// Default titles and legend entries of the location figure.
const (
	TitleDetection    = "Galerie detection"
	TitleMap          = "Localisation OCR"
	LegendNeighbor    = "Extension possible"
	LegendLaboratory  = "Laboratoire"
	NorthLabel        = "Nord"
	DefaultPanelSize  = 640
	titleBarHeight    = 34
	defaultDetectionA = 0.4
)

// Style configures panel size, map colours and the neighbour overlay.
type Style struct {
	PanelSize     int
	LaboColor     color.NRGBA
	OCRColor      color.NRGBA
	NeighborColor color.NRGBA
	Neighbors     bool
	BufferSize    float64
}

// DefaultStyle uses blue galleries, a yellow detection and red extensions.
func DefaultStyle() Style {
	s, _ := NewStyle(DefaultPanelSize, "blue", "yellow", "red")
	s.Neighbors = true
	s.BufferSize = 10
	return s
}

// NewStyle parses the three map colours.
func NewStyle(panelSize int, labo, ocr, neighbor string) (Style, error) {
	if panelSize <= 0 {
		panelSize = DefaultPanelSize
	}
	s := Style{PanelSize: panelSize, Neighbors: true, BufferSize: 10}
	var err error
	if s.LaboColor, err = ParseColor(labo); err != nil {
		return s, fmt.Errorf("labo colour: %w", err)
	}
	if s.OCRColor, err = ParseColor(ocr); err != nil {
		return s, fmt.Errorf("ocr colour: %w", err)
	}
	if s.NeighborColor, err = ParseColor(neighbor); err != nil {
		return s, fmt.Errorf("neighbour colour: %w", err)
	}
	return s, nil
}
