package imgutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/tiresias/internal/mempool"
)

// ResizeToMultiple scales img so that its longer side is at most maxSide and
// both sides are multiples of multiple. Images are never upscaled beyond
// rounding to the multiple.
func ResizeToMultiple(img image.Image, maxSide, multiple int) (image.Image, error) {
	if img == nil {
		return nil, &ImageError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if multiple <= 0 {
		multiple = 1
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &ImageError{Operation: "resize", Err: fmt.Errorf("invalid dimensions %dx%d", w, h)}
	}

	scale := 1.0
	if maxSide > 0 && max(w, h) > maxSide {
		scale = float64(maxSide) / float64(max(w, h))
	}
	nw := roundToMultiple(float64(w)*scale, multiple)
	nh := roundToMultiple(float64(h)*scale, multiple)
	if nw == w && nh == h {
		return img, nil
	}
	return imaging.Resize(img, nw, nh, imaging.Lanczos), nil
}

func roundToMultiple(v float64, multiple int) int {
	n := int(math.Round(v/float64(multiple))) * multiple
	if n < multiple {
		n = multiple
	}
	return n
}

// ResizeToHeight scales img to the given height keeping the aspect ratio,
// caps the width at maxWidth and pads it with black to a multiple of padMultiple.
func ResizeToHeight(img image.Image, height, maxWidth, padMultiple int) (image.Image, error) {
	if img == nil {
		return nil, &ImageError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if height <= 0 {
		return nil, &ImageError{Operation: "resize", Err: fmt.Errorf("invalid target height %d", height)}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageError{Operation: "resize", Err: fmt.Errorf("invalid dimensions %dx%d", b.Dx(), b.Dy())}
	}
	w := int(math.Ceil(float64(b.Dx()) * float64(height) / float64(b.Dy())))
	if w < 1 {
		w = 1
	}
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	resized := imaging.Resize(img, w, height, imaging.Lanczos)

	padded := w
	if padMultiple > 1 && w%padMultiple != 0 {
		padded = (w/padMultiple + 1) * padMultiple
	}
	if padded == w {
		return resized, nil
	}
	bg := imaging.New(padded, height, color.Black)
	return imaging.Paste(bg, resized, image.Pt(0, 0)), nil
}

// Letterbox fits img inside a size x size square, padding with gray.
// It returns the padded image, the applied scale and the top-left offset.
func Letterbox(img image.Image, size int) (image.Image, float64, image.Point) {
	b := img.Bounds()
	scale := math.Min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	nw := max(1, int(math.Round(float64(b.Dx())*scale)))
	nh := max(1, int(math.Round(float64(b.Dy())*scale)))
	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	off := image.Pt((size-nw)/2, (size-nh)/2)
	bg := imaging.New(size, size, color.NRGBA{R: 114, G: 114, B: 114, A: 255})
	return imaging.Paste(bg, resized, off), scale, off
}

// Normalization describes per-channel (RGB) preprocessing:
// out = (pixel*Scale - Mean) / Std.
type Normalization struct {
	Scale float32
	Mean  [3]float32
	Std   [3]float32
}

// UnitNormalization maps pixels to [0,1].
var UnitNormalization = Normalization{Scale: 1.0 / 255, Std: [3]float32{1, 1, 1}}

// ImageNetNormalization is the usual mean/std preprocessing on [0,1] pixels.
var ImageNetNormalization = Normalization{
	Scale: 1.0 / 255,
	Mean:  [3]float32{0.485, 0.456, 0.406},
	Std:   [3]float32{0.229, 0.224, 0.225},
}

// ToCHW converts img to a planar RGB float32 slice of length 3*H*W. The
// slice comes from mempool.Float32 and may be released once consumed.
func ToCHW(img image.Image, n Normalization) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0, &ImageError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}
	for c := range 3 {
		if n.Std[c] == 0 {
			n.Std[c] = 1
		}
	}
	plane := w * h
	out := mempool.Float32.Get(3 * plane)
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range w {
			px := row[x*4 : x*4+3]
			idx := y*w + x
			for c := range 3 {
				out[c*plane+idx] = (float32(px[c])*n.Scale - n.Mean[c]) / n.Std[c]
			}
		}
	}
	return out, w, h, nil
}
