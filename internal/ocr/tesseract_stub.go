//go:build !(cgo && tesseract)

package ocr

// NewTesseractEngine reports that Tesseract support was not compiled in.
func NewTesseractEngine(TesseractConfig) (Engine, error) {
	return nil, ErrTesseractUnavailable
}
