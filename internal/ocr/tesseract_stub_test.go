//go:build !(cgo && tesseract)

package ocr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTesseractUnavailable(t *testing.T) {
	_, err := NewEngine(Config{Engine: EngineTesseract, Tesseract: DefaultTesseractConfig()})
	require.ErrorIs(t, err, ErrTesseractUnavailable)
}
