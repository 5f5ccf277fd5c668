package imgutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// ImageError wraps failures while reading, decoding or encoding images.
type ImageError struct {
	Operation string
	Err       error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %s failed: %v", e.Operation, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// Metadata captures file and pixel information about a loaded image.
type Metadata struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// DecodableExtensions lists the suffixes the registered decoders can read.
var DecodableExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// CanDecode reports whether the path has an extension with a registered decoder.
func CanDecode(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range DecodableExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &ImageError{Operation: "load", Err: errors.New("empty path")}
	}
	if !CanDecode(path) {
		return nil, Metadata{}, &ImageError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, Metadata{}, &ImageError{Operation: "load", Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing image file", "path", path, "error", err)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, Metadata{}, &ImageError{Operation: "load", Err: err}
	}

	img, meta, err := Decode(f)
	if err != nil {
		return nil, Metadata{}, err
	}
	meta.Path = path
	meta.SizeBytes = fi.Size()
	return img, meta, nil
}

// Decode reads an image from r using the registered decoders.
func Decode(r io.Reader) (image.Image, Metadata, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, Metadata{}, &ImageError{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	return img, Metadata{Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// EncodePNG returns the PNG encoding of img.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &ImageError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &ImageError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// SavePNG writes img as PNG to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &ImageError{Operation: "save", Err: err}
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &ImageError{Operation: "save", Err: err}
	}
	return nil
}
