package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{Version: "1.2.3"}, WithDetectors(&fakeDetector{name: "yolo"}, &fakeDetector{name: "rtm"}))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, 3, resp.Galleries)
	assert.Equal(t, []string{"rtm", "yolo"}, resp.Models)

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGalleries(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/galleries", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GalleriesResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, []string{"A1", "B2", "C3"}, resp.IDs)
	assert.Equal(t, []string{"B2"}, resp.Neighbors["A1"])
	assert.Empty(t, resp.Neighbors["C3"])
	assert.Equal(t, "EPSG:27572", resp.CRS)
}

func TestGalleriesGeoJSON(t *testing.T) {
	s := newTestServer(t, Config{Column: "NOM"})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/galleries/geojson", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	decodeJSON(t, rec, &fc)
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "A1", fc.Features[0].Properties["NOM"])
}

func TestLocateJSON(t *testing.T) {
	st := &fakeStore{}
	s := newTestServer(t, Config{}, WithStore(st))
	rec := serve(s, uploadRequest(t, "/locate", pngBytes(t, widthLocated, 40), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Result struct {
			Path      string   `json:"path"`
			Outcome   string   `json:"outcome"`
			Gallery   string   `json:"gallery"`
			Neighbors []string `json:"neighbors"`
		} `json:"result"`
		StoreID int64 `json:"store_id"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "photo.png", resp.Result.Path)
	assert.Equal(t, "located", resp.Result.Outcome)
	assert.Equal(t, "A1", resp.Result.Gallery)
	assert.Equal(t, []string{"B2"}, resp.Result.Neighbors)
	assert.Equal(t, int64(1), resp.StoreID)
	require.Len(t, st.saved, 1)
}

func TestLocatePNG(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, uploadRequest(t, "/locate?format=png", pngBytes(t, widthNoGallery, 40), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)

	rec = serve(s, uploadRequest(t, "/locate", pngBytes(t, widthNoText, 40), map[string]string{"format": "png"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e ErrorResponse
	decodeJSON(t, rec, &e)
	assert.Equal(t, http.StatusNotFound, e.Code)
	assert.Contains(t, e.Error, "no_text")
}

func TestLocateErrors(t *testing.T) {
	s := newTestServer(t, Config{MaxUploadMB: 1})

	tests := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"method", httptest.NewRequest(http.MethodGet, "/locate", nil), http.StatusMethodNotAllowed},
		{"no file", uploadRequest(t, "/locate", nil, map[string]string{"x": "y"}), http.StatusBadRequest},
		{"not an image", uploadRequest(t, "/locate", []byte("hello"), nil), http.StatusBadRequest},
		{"too large", uploadRequest(t, "/locate", make([]byte, 2*1024*1024), nil), http.StatusRequestEntityTooLarge},
		{"engine", uploadRequest(t, "/locate", pngBytes(t, widthFailing, 40), nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			var e ErrorResponse
			decodeJSON(t, rec, &e)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestDetect(t *testing.T) {
	s := newTestServer(t, Config{}, WithDetectors(&fakeDetector{name: "yolo"}, &fakeDetector{name: "broken", fail: true}))

	rec := serve(s, uploadRequest(t, "/detect", pngBytes(t, 40, 30), map[string]string{"model": "yolo"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp DetectResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "yolo", resp.Model)
	assert.Equal(t, 40, resp.Width)
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, "wall", resp.Detections[0].Label)

	rec = serve(s, uploadRequest(t, "/detect?format=png", pngBytes(t, 40, 30), map[string]string{"model": "yolo"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = serve(s, uploadRequest(t, "/detect", pngBytes(t, 40, 30), map[string]string{"model": "nope"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, uploadRequest(t, "/detect", pngBytes(t, 40, 30), map[string]string{"model": "broken"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The first model in name order is the default.
	rec = serve(s, uploadRequest(t, "/detect", pngBytes(t, 40, 30), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDetectWithoutModels(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := serve(s, uploadRequest(t, "/detect", pngBytes(t, 40, 30), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})
	serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tiresias_http_requests_total")
}

func TestNewServerNeedsLocalizer(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	require.Error(t, err)
}
