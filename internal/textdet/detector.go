package textdet

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/mempool"
	"github.com/MeKo-Tech/tiresias/internal/onnx"
)

// Result holds the regions found in one image.
type Result struct {
	Regions   []Region
	MapWidth  int
	MapHeight int
	Duration  time.Duration
}

// Detector runs a DBNet-style text detection model.
type Detector struct {
	config  Config
	session *onnx.Session
}

// New opens the detection model described by cfg.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("Initializing text detector", "model_path", cfg.ModelPath, "device", cfg.Device, "max_side", cfg.MaxSide)

	sess, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.LibraryPath,
		Device:      cfg.Device,
		NumThreads:  cfg.NumThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("text detector: %w", err)
	}
	return &Detector{config: cfg, session: sess}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.config }

// Detect finds text regions in img, returned in image coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	b := img.Bounds()

	resized, err := imgutil.ResizeToMultiple(img, d.config.MaxSide, 32)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	data, w, h, err := imgutil.ToCHW(resized, d.config.Normalization)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}

	outputs, err := d.session.Run(tensor)
	mempool.Float32.Put(data)
	if err != nil {
		return nil, err
	}
	prob, mw, mh, err := probabilityMap(outputs[0])
	if err != nil {
		return nil, err
	}

	regions := PostProcess(prob, mw, mh, d.config)
	regions = ScaleToOriginal(regions, mw, mh, b.Dx(), b.Dy())
	for i := range regions {
		for j := range regions[i].Polygon {
			regions[i].Polygon[j].X += float64(b.Min.X)
			regions[i].Polygon[j].Y += float64(b.Min.Y)
		}
		regions[i].Box = imgutil.BoundingBox(regions[i].Polygon)
	}

	res := &Result{Regions: regions, MapWidth: mw, MapHeight: mh, Duration: time.Since(start)}
	slog.Debug("Text detection done", "regions", len(regions), "duration", res.Duration)
	return res, nil
}

// probabilityMap extracts the first channel of an [N,C,H,W] or [N,H,W] output.
func probabilityMap(out onnx.Output) ([]float32, int, int, error) {
	if out.Float32 == nil {
		return nil, 0, 0, fmt.Errorf("output %q is not float32", out.Name)
	}
	var w, h int
	switch len(out.Shape) {
	case 4:
		h, w = int(out.Shape[2]), int(out.Shape[3])
	case 3:
		h, w = int(out.Shape[1]), int(out.Shape[2])
	default:
		return nil, 0, 0, fmt.Errorf("expected 3D or 4D probability map, got shape %v", out.Shape)
	}
	if w <= 0 || h <= 0 || len(out.Float32) < w*h {
		return nil, 0, 0, fmt.Errorf("invalid probability map shape %v", out.Shape)
	}
	return out.Float32[:w*h], w, h, nil
}

// Close releases the model session.
func (d *Detector) Close() error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}
