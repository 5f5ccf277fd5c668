package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/locate"
	"github.com/MeKo-Tech/tiresias/internal/objdet"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/render"
	"github.com/MeKo-Tech/tiresias/internal/testutil"
)

// Photo widths select what the fake engine reads.
const (
	widthLocated   = 60
	widthNoText    = 61
	widthNoGallery = 62
	widthFailing   = 63
)

type fakeEngine struct{}

func (fakeEngine) Predict(_ context.Context, img image.Image) (ocr.Prediction, error) {
	b := img.Bounds()
	p := ocr.Prediction{Width: b.Dx(), Height: b.Dy()}
	row := func(text string) ocr.Row {
		return ocr.Row{Text: text, DetScore: 0.9, RecScore: 0.8, Polygon: []float64{5, 5, 25, 5, 25, 15, 5, 15}}
	}
	switch b.Dx() {
	case widthLocated:
		p.Rows = []ocr.Row{row("a1")}
	case widthNoGallery:
		p.Rows = []ocr.Row{row("LABO")}
	case widthFailing:
		return p, errors.New("engine exploded")
	}
	return p, nil
}
func (fakeEngine) Name() string { return "fake" }
func (fakeEngine) Close() error { return nil }

type fakeDetector struct {
	name string
	fail bool
}

func (d *fakeDetector) Name() string { return d.name }
func (d *fakeDetector) Close() error { return nil }
func (d *fakeDetector) Predict(_ context.Context, img image.Image, file string) (objdet.Prediction, error) {
	if d.fail {
		return objdet.Prediction{}, errors.New("bad model")
	}
	dets := []objdet.Detection{{Box: imgutil.NewBox(1, 1, 10, 10), Score: 0.9, Class: 0, Label: "wall"}}
	return objdet.Prediction{Model: d.name, File: file, Detections: dets, Plot: objdet.Plot(img, dets, 0.5)}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*locate.Result
}

func (f *fakeStore) Save(_ context.Context, r *locate.Result) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, r)
	return int64(len(f.saved)), nil
}

func square(x, y, s float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x, y + s}, {x + s, y + s}, {x + s, y}, {x, y}}}
}

func newTestLocator(t *testing.T) *locate.Locator {
	t.Helper()
	cat := gallery.NewCatalogue("EPSG:27572", []gallery.Gallery{
		{ID: "A1", Geometry: square(0, 0, 10)},
		{ID: "B2", Geometry: square(10, 0, 10)},
		{ID: "C3", Geometry: square(100, 100, 10)},
	})
	style := render.DefaultStyle()
	style.PanelSize = 64
	l, err := locate.NewBuilder().WithEngine(fakeEngine{}).WithCatalogue(cat).WithStyle(style).Build()
	require.NoError(t, err)
	return l
}

func newTestServer(t *testing.T, cfg Config, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(cfg, newTestLocator(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imgutil.EncodePNG(testutil.Solid(w, h, color.White))
	require.NoError(t, err)
	return data
}

func uploadRequest(t *testing.T, target string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}
