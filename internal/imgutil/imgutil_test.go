package imgutil

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCanDecode(t *testing.T) {
	cases := map[string]bool{
		"a.jpg": true, "b.JPEG": true, "c.png": true, "d.bmp": true,
		"e.tiff": false, "f": false,
	}
	for path, want := range cases {
		assert.Equal(t, want, CanDecode(path), path)
	}
}

func TestLoadImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "img.png")
	require.NoError(t, SavePNG(path, solid(12, 7, color.White)))

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 7, meta.Height)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImageErrors(t *testing.T) {
	_, _, err := LoadImage("")
	var ie *ImageError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "load", ie.Operation)

	_, _, err = LoadImage("missing.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "decode", ie.Operation)
}

func TestResizeToMultiple(t *testing.T) {
	out, err := ResizeToMultiple(solid(1000, 500, color.Black), 640, 32)
	require.NoError(t, err)
	assert.Equal(t, 640, out.Bounds().Dx())
	assert.Equal(t, 320, out.Bounds().Dy())

	out, err = ResizeToMultiple(solid(10, 10, color.Black), 640, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, out.Bounds().Dx())

	_, err = ResizeToMultiple(nil, 640, 32)
	assert.Error(t, err)
}

func TestResizeToHeightPads(t *testing.T) {
	out, err := ResizeToHeight(solid(50, 10, color.White), 32, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, 32, out.Bounds().Dy())
	assert.Equal(t, 0, out.Bounds().Dx()%8)
	assert.GreaterOrEqual(t, out.Bounds().Dx(), 160)

	out, err = ResizeToHeight(solid(500, 10, color.White), 32, 100, 8)
	require.NoError(t, err)
	assert.Equal(t, 104, out.Bounds().Dx())
}

func TestLetterbox(t *testing.T) {
	out, scale, off := Letterbox(solid(200, 100, color.White), 100)
	assert.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())
	assert.InDelta(t, 0.5, scale, 1e-9)
	assert.Equal(t, image.Pt(0, 25), off)
}

func TestToCHW(t *testing.T) {
	data, w, h, err := ToCHW(solid(2, 3, color.RGBA{R: 255, G: 0, B: 51, A: 255}), UnitNormalization)
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 3, h)
	require.Len(t, data, 18)
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, 0.0, data[6], 1e-6)
	assert.InDelta(t, 0.2, data[12], 1e-6)

	n := Normalization{Scale: 1, Mean: [3]float32{255, 0, 0}, Std: [3]float32{2, 1, 0}}
	data, _, _, err = ToCHW(solid(1, 1, color.RGBA{R: 255, G: 10, B: 3, A: 255}), n)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 10, 3}, data)
}

func TestBoxIoU(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	assert.InDelta(t, 0.0, a.IoU(NewBox(20, 20, 30, 30)), 1e-9)
	assert.InDelta(t, 25.0/175.0, a.IoU(NewBox(5, 5, 15, 15)), 1e-9)
	assert.Equal(t, Box{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}, NewBox(3, 4, 1, 2))
}

func TestFlattenUnflatten(t *testing.T) {
	pts := []Point{{1, 2}, {3, 4}}
	assert.Equal(t, []float64{1, 2, 3, 4}, Flatten(pts))
	assert.Equal(t, pts, Unflatten([]float64{1, 2, 3, 4, 5}))
}

func TestMinAreaRectAxisAligned(t *testing.T) {
	pts := []Point{{0, 0}, {4, 0}, {4, 2}, {0, 2}, {2, 1}}
	rect := MinAreaRect(pts)
	require.Len(t, rect, 4)
	b := BoundingBox(rect)
	assert.InDelta(t, 8.0, b.Area(), 1e-6)
}

func genPoint() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	).Map(func(vals []interface{}) Point {
		return Point{X: vals[0].(float64), Y: vals[1].(float64)}
	})
}

func TestConvexHullContainsAllPoints(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every input point lies inside or on the hull", prop.ForAll(
		func(points []Point) bool {
			hull := ConvexHull(points)
			if len(hull) < 3 {
				return true
			}
			for _, p := range points {
				for i := range hull {
					if cross(hull[i], hull[(i+1)%len(hull)], p) < -1e-6 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(12, genPoint()),
	))

	properties.TestingRun(t)
}

func TestMinAreaRectNotLargerThanBoundingBox(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("min-area rect never exceeds the axis-aligned box", prop.ForAll(
		func(points []Point) bool {
			rect := MinAreaRect(points)
			if len(rect) != 4 {
				return false
			}
			w := math.Hypot(rect[1].X-rect[0].X, rect[1].Y-rect[0].Y)
			h := math.Hypot(rect[2].X-rect[1].X, rect[2].Y-rect[1].Y)
			return w*h <= BoundingBox(points).Area()+1e-6
		},
		gen.SliceOfN(10, genPoint()),
	))

	properties.TestingRun(t)
}
