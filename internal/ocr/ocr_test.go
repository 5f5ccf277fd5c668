package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/textdet"
	"github.com/MeKo-Tech/tiresias/internal/textrec"
)

type fakeDetector struct {
	regions []textdet.Region
	err     error
	closed  bool
}

func (f *fakeDetector) Detect(context.Context, image.Image) (*textdet.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &textdet.Result{Regions: f.regions}, nil
}

func (f *fakeDetector) Close() error { f.closed = true; return nil }

type fakeRecognizer struct {
	texts  []textrec.Text
	errAt  int
	calls  int
	closed bool
}

func (f *fakeRecognizer) Recognize(context.Context, image.Image, []imgutil.Point) (textrec.Text, error) {
	i := f.calls
	f.calls++
	if i == f.errAt {
		return textrec.Text{}, errors.New("blurred")
	}
	return f.texts[i], nil
}

func (f *fakeRecognizer) Close() error { f.closed = true; return errors.New("rec close") }

func square(x, y, s float64) []imgutil.Point {
	return []imgutil.Point{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestONNXEnginePredict(t *testing.T) {
	det := &fakeDetector{regions: []textdet.Region{
		{Polygon: square(1, 1, 5), Score: 0.9},
		{Polygon: square(10, 1, 5), Score: 0.8},
		{Polygon: square(20, 1, 5), Score: 0.7},
		{Polygon: square(30, 1, 5), Score: 0.6},
	}}
	rec := &fakeRecognizer{errAt: 1, texts: []textrec.Text{
		{Text: "g12", Confidence: 0.95},
		{},
		{Text: "", Confidence: 0.1},
		{Text: "LABO", Confidence: 0.5},
	}}
	eng := &ONNXEngine{det: det, rec: rec}

	pred, err := eng.Predict(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, 40, pred.Width)
	assert.Equal(t, 20, pred.Height)
	require.Len(t, pred.Rows, 2)
	assert.Equal(t, []string{"g12", "LABO"}, pred.Texts())
	assert.InDelta(t, 0.9, pred.Rows[0].DetScore, 1e-9)
	assert.Equal(t, []float64{1, 1, 6, 1, 6, 6, 1, 6}, pred.Rows[0].Polygon)
	assert.Equal(t, square(1, 1, 5), pred.Rows[0].Points())
	assert.False(t, pred.Empty())

	err = eng.Close()
	require.Error(t, err)
	assert.True(t, det.closed)
	assert.True(t, rec.closed)
}

func TestONNXEngineDetectionError(t *testing.T) {
	eng := &ONNXEngine{det: &fakeDetector{err: errors.New("boom")}, rec: &fakeRecognizer{errAt: -1}}
	_, err := eng.Predict(context.Background(), testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text detection")
}

func TestONNXEngineNilImage(t *testing.T) {
	eng := &ONNXEngine{det: &fakeDetector{}, rec: &fakeRecognizer{errAt: -1}}
	_, err := eng.Predict(context.Background(), nil)
	require.Error(t, err)
}

func TestONNXEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &ONNXEngine{
		det: &fakeDetector{regions: []textdet.Region{{Polygon: square(0, 0, 4)}}},
		rec: &fakeRecognizer{errAt: 0},
	}
	_, err := eng.Predict(ctx, testImage())
	require.ErrorIs(t, err, context.Canceled)
}

func TestPredictionEmpty(t *testing.T) {
	assert.True(t, Prediction{}.Empty())
	assert.True(t, Prediction{Rows: []Row{{Text: ""}}}.Empty())
	assert.False(t, Prediction{Rows: []Row{{Text: "A"}}}.Empty())
}

func TestNewEngineUnknown(t *testing.T) {
	_, err := NewEngine(Config{Engine: "easyocr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "easyocr")
}

func TestWordRow(t *testing.T) {
	row := wordRow(" G7 ", image.Rect(2, 3, 12, 9), 87)
	assert.Equal(t, "G7", row.Text)
	assert.InDelta(t, 0.87, row.RecScore, 1e-9)
	assert.Equal(t, []float64{2, 3, 12, 3, 12, 9, 2, 9}, row.Polygon)
}

func TestEnhanceKeepsBounds(t *testing.T) {
	img := testImage()
	out := Enhance(img, 0.3)
	assert.Equal(t, img.Bounds().Size(), out.Bounds().Size())
	r, g, b, _ := out.At(5, 5).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}
