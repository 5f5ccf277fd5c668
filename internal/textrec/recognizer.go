package textrec

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/mempool"
	"github.com/MeKo-Tech/tiresias/internal/onnx"
)

// Config holds configuration for the text recognizer.
type Config struct {
	ModelPath     string
	DictPath      string
	LibraryPath   string
	Device        string
	NumThreads    int
	Height        int     // Input height when the model height is dynamic (default: 32)
	Width         int     // Input width when the model width is dynamic, 0 keeps the aspect ratio
	MaxWidth      int     // Upper bound for dynamic widths (default: 320)
	BlankPosition string  // "first" or "last" (default: "last")
	MinConfidence float64 // Texts below this confidence are dropped
	Normalization imgutil.Normalization
}

// DefaultConfig returns a default recognizer configuration matching an
// SVTR export: 32px high, blank appended last, pixels mapped to [-1,1].
func DefaultConfig() Config {
	return Config{
		Height:        32,
		MaxWidth:      320,
		BlankPosition: BlankLast,
		Normalization: imgutil.Normalization{
			Scale: 1,
			Mean:  [3]float32{127.5, 127.5, 127.5},
			Std:   [3]float32{127.5, 127.5, 127.5},
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("recognition model path cannot be empty")
	}
	if c.DictPath == "" {
		return errors.New("dictionary path cannot be empty")
	}
	if c.BlankPosition != BlankFirst && c.BlankPosition != BlankLast {
		return fmt.Errorf("invalid blank position %q (want %q or %q)", c.BlankPosition, BlankFirst, BlankLast)
	}
	if c.Height <= 0 {
		return fmt.Errorf("height must be positive, got %d", c.Height)
	}
	return nil
}

// Text is one recognized string with its confidence.
type Text struct {
	Text       string
	Confidence float64
}

// Recognizer runs a CTC text recognition model on cropped text lines.
type Recognizer struct {
	config  Config
	charset *Charset
	session *onnx.Session
	height  int
	width   int
}

// New loads the dictionary and opens the model.
func New(cfg Config) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	charset, err := LoadCharset(cfg.DictPath)
	if err != nil {
		return nil, err
	}
	sess, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.LibraryPath,
		Device:      cfg.Device,
		NumThreads:  cfg.NumThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("text recognizer: %w", err)
	}

	h, w := cfg.Height, cfg.Width
	if shape := sess.InputShape(); len(shape) == 4 {
		if shape[2] > 0 {
			h = int(shape[2])
		}
		if shape[3] > 0 {
			w = int(shape[3])
		}
	}
	slog.Debug("Text recognizer ready", "model_path", cfg.ModelPath, "charset", charset.Size(), "height", h, "width", w)
	return &Recognizer{config: cfg, charset: charset, session: sess, height: h, width: w}, nil
}

// Recognize reads the text inside polygon. Vertical crops are rotated first.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, polygon []imgutil.Point) (Text, error) {
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}
	patch, err := CropPolygon(img, polygon)
	if err != nil {
		return Text{}, err
	}
	tensor, err := r.prepare(patch)
	if err != nil {
		return Text{}, err
	}
	outputs, err := r.session.Run(tensor)
	mempool.Float32.Put(tensor.Data)
	if err != nil {
		return Text{}, err
	}
	out := outputs[0]
	if out.Float32 == nil || len(out.Shape) != 3 {
		return Text{}, fmt.Errorf("unexpected recognizer output %q with shape %v", out.Name, out.Shape)
	}
	blank := 0
	if r.config.BlankPosition == BlankLast {
		blank = int(out.Shape[2]) - 1
	}
	decoded := DecodeGreedy(out.Float32, out.Shape, blank)
	if len(decoded) == 0 {
		return Text{}, nil
	}
	return r.toText(decoded[0]), nil
}

func (r *Recognizer) toText(d Decoded) Text {
	var b strings.Builder
	probs := make([]float64, 0, len(d.Indices))
	for i, idx := range d.Indices {
		tok, ok := r.charset.Lookup(idx, r.config.BlankPosition)
		if !ok {
			continue
		}
		b.WriteString(tok)
		probs = append(probs, d.Probs[i])
	}
	text := Text{Text: CleanText(b.String()), Confidence: Confidence(probs)}
	if text.Confidence < r.config.MinConfidence {
		return Text{}
	}
	return text
}

func (r *Recognizer) prepare(patch image.Image) (onnx.Tensor, error) {
	var resized image.Image
	if r.width > 0 {
		resized = imaging.Resize(patch, r.width, r.height, imaging.Lanczos)
	} else {
		var err error
		resized, err = imgutil.ResizeToHeight(patch, r.height, r.config.MaxWidth, 8)
		if err != nil {
			return onnx.Tensor{}, err
		}
	}
	data, w, h, err := imgutil.ToCHW(resized, r.config.Normalization)
	if err != nil {
		return onnx.Tensor{}, err
	}
	return onnx.NewImageTensor(data, 3, h, w)
}

// CropPolygon cuts the axis-aligned box around polygon out of img and turns
// tall crops upright.
func CropPolygon(img image.Image, polygon []imgutil.Point) (image.Image, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if len(polygon) == 0 {
		return nil, errors.New("empty polygon")
	}
	rect := imgutil.BoundingBox(polygon).ToRect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("polygon %v lies outside the image", rect)
	}
	patch := imaging.Crop(img, rect)
	if rect.Dy() > rect.Dx()*3/2 {
		return imaging.Rotate90(patch), nil
	}
	return patch, nil
}

// Close releases the model session.
func (r *Recognizer) Close() error {
	if r.session == nil {
		return nil
	}
	return r.session.Close()
}
