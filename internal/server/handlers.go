package server

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/locate"
	"github.com/MeKo-Tech/tiresias/internal/render"
)

const formatPNG = "png"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	models := append([]string{}, s.order...)
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Time:      time.Now().UTC().Format(time.RFC3339),
		Galleries: s.locator.Catalogue().Len(),
		Models:    models,
	})
}

// galleriesHandler lists the catalogue ids and their neighbours.
func (s *Server) galleriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cat := s.locator.Catalogue()
	writeJSON(w, http.StatusOK, GalleriesResponse{
		CRS:       cat.CRS,
		Count:     cat.Len(),
		IDs:       cat.IDs(),
		Neighbors: s.locator.Neighbors(),
	})
}

// geojsonHandler exports the catalogue as a GeoJSON feature collection.
func (s *Server) geojsonHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := s.locator.Catalogue().GeoJSON(s.column, s.locator.Neighbors())
	if err != nil {
		writeError(w, fmt.Sprintf("geojson export failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// locateHandler runs OCR and matching on an uploaded photo.
func (s *Server) locateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	img, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.locator.LocateImage(r.Context(), img, name)
	locateDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	if err != nil {
		locateTotal.WithLabelValues("http", "error").Inc()
		writeError(w, fmt.Sprintf("localisation failed: %v", err), http.StatusInternalServerError)
		return
	}
	locateTotal.WithLabelValues("http", res.Outcome.String()).Inc()
	ocrRowsDetected.Observe(float64(len(res.Rows)))

	storeID := s.save(r, res)

	if requestFormat(r) == formatPNG {
		if !res.HasFigure() {
			writeError(w, fmt.Sprintf("no figure for outcome %s", res.Outcome), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(res.Figure)
		return
	}
	writeJSON(w, http.StatusOK, LocateResponse{Result: res, StoreID: storeID})
}

// detectHandler runs one object detection model on an uploaded photo.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if len(s.order) == 0 {
		writeError(w, "no detection model configured", http.StatusServiceUnavailable)
		return
	}
	img, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	model := r.FormValue("model")
	if model == "" {
		model = s.order[0]
	}
	det, found := s.detectors[model]
	if !found {
		writeError(w, fmt.Sprintf("unknown model %q", model), http.StatusNotFound)
		return
	}

	pred, err := det.Predict(r.Context(), img, name)
	if err != nil {
		detectTotal.WithLabelValues(model, "error").Inc()
		writeError(w, fmt.Sprintf("detection failed: %v", err), http.StatusInternalServerError)
		return
	}
	detectTotal.WithLabelValues(model, "success").Inc()

	if requestFormat(r) == formatPNG {
		fig := render.SideBySide(render.Titled(img, name), render.Titled(pred.Plot, pred.Model))
		data, err := imgutil.EncodePNG(fig)
		if err != nil {
			writeError(w, "figure encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
		return
	}
	b := img.Bounds()
	writeJSON(w, http.StatusOK, DetectResponse{
		Model:      pred.Model,
		File:       name,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Detections: pred.Detections,
	})
}

// readUpload decodes the multipart "image" field. It writes the error reply
// itself and reports false on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (image.Image, string, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, "file too large", http.StatusRequestEntityTooLarge)
		} else {
			writeError(w, "failed to parse form data", http.StatusBadRequest)
		}
		return nil, "", false
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, "no image file provided", http.StatusBadRequest)
		return nil, "", false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := imgutil.Decode(file)
	if err != nil {
		writeError(w, "invalid image format", http.StatusBadRequest)
		return nil, "", false
	}
	return img, header.Filename, true
}

func (s *Server) save(r *http.Request, res *locate.Result) int64 {
	if s.store == nil {
		return 0
	}
	id, err := s.store.Save(r.Context(), res)
	if err != nil {
		slog.Error("Failed to store localisation", "path", res.Path, "error", err)
		return 0
	}
	return id
}

func requestFormat(r *http.Request) string {
	if f := r.FormValue("format"); f != "" {
		return f
	}
	return r.URL.Query().Get("format")
}
