package objdet

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

// runner is the part of onnx.Session the detector needs.
type runner interface {
	Run(onnx.Tensor) ([]onnx.Output, error)
	Device() string
	Close() error
}

// Detector is one loaded detection model.
type Detector struct {
	spec    ModelSpec
	cfg     Config
	session runner
}

// Load opens the model described by spec.
func Load(spec ModelSpec, cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sess, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   spec.Path,
		LibraryPath: cfg.LibraryPath,
		Device:      cfg.Device,
		NumThreads:  cfg.NumThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("detector %s: %w", spec.DisplayName(), err)
	}
	slog.Debug("detection model loaded", "model", spec.DisplayName(), "path", spec.Path, "device", sess.Device())
	return &Detector{spec: spec, cfg: cfg, session: sess}, nil
}

// LoadAll opens every model, closing the ones already open on failure.
func LoadAll(specs []ModelSpec, cfg Config) ([]*Detector, error) {
	out := make([]*Detector, 0, len(specs))
	for _, s := range specs {
		d, err := Load(s, cfg)
		if err != nil {
			for _, o := range out {
				_ = o.Close()
			}
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Name is the display name used in logs and plot titles.
func (d *Detector) Name() string { return d.spec.DisplayName() }

// Spec returns the model description.
func (d *Detector) Spec() ModelSpec { return d.spec }

// Detect letterboxes img to the model input, runs it and returns boxes in
// img coordinates with a score at or above the threshold.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	boxed, scale, off := imgutil.Letterbox(img, d.cfg.InputSize)
	data, w, h, err := imgutil.ToCHW(boxed, d.cfg.normalization())
	if err != nil {
		return nil, err
	}

	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	outputs, err := d.session.Run(tensor)
	mempool.Float32.Put(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name(), err)
	}
	elapsed := time.Since(start)
	if d.cfg.Timing {
		slog.Info("Time to infer", "seconds", elapsed.Seconds(), "device", d.session.Device(), "model", d.Name())
	}

	dets, err := decode(outputs, d.cfg.ScoreThreshold, d.cfg.NMSThreshold)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name(), err)
	}
	for i := range dets {
		dets[i].Box = toImage(dets[i].Box, scale, off, b)
		if c := dets[i].Class; c >= 0 && c < len(d.spec.Labels) {
			dets[i].Label = d.spec.Labels[c]
		}
	}
	return dets, nil
}

// toImage undoes the letterbox transform and clamps to the image bounds.
func toImage(box imgutil.Box, scale float64, off image.Point, b image.Rectangle) imgutil.Box {
	conv := func(v, o, lo, hi float64) float64 {
		v = (v - o) / scale
		return min(max(v, lo), hi)
	}
	return imgutil.Box{
		MinX: conv(box.MinX, float64(off.X), 0, float64(b.Dx())) + float64(b.Min.X),
		MinY: conv(box.MinY, float64(off.Y), 0, float64(b.Dy())) + float64(b.Min.Y),
		MaxX: conv(box.MaxX, float64(off.X), 0, float64(b.Dx())) + float64(b.Min.X),
		MaxY: conv(box.MaxY, float64(off.Y), 0, float64(b.Dy())) + float64(b.Min.Y),
	}
}

// Close releases the model.
func (d *Detector) Close() error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}
