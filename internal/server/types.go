// Package server exposes gallery localisation and object detection over HTTP
// and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sort"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/locate"
	"github.com/MeKo-Tech/tiresias/internal/objdet"
)

// localizer runs the OCR and gallery matching for one photo.
type localizer interface {
	LocateImage(ctx context.Context, img image.Image, name string) (*locate.Result, error)
	Catalogue() *gallery.Catalogue
	Neighbors() gallery.Neighbors
	Close() error
}

type objectDetector interface {
	Name() string
	Predict(ctx context.Context, img image.Image, file string) (objdet.Prediction, error)
	Close() error
}

type resultStore interface {
	Save(ctx context.Context, r *locate.Result) (int64, error)
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	CORSOrigin        string
	MaxUploadMB       int64
	TimeoutSec        int
	Column            string
	Version           string
	RateLimitEnabled  bool
	RequestsPerMinute int
	RequestsPerHour   int
}

// Addr is host:port.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Server holds the HTTP server state and dependencies.
type Server struct {
	locator     localizer
	detectors   map[string]objectDetector
	order       []string
	store       resultStore
	corsOrigin  string
	maxUploadMB int64
	column      string
	version     string
	rateLimiter *RateLimiter
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithDetectors registers object detection models by name.
func WithDetectors[D objectDetector](dets ...D) Option {
	return func(s *Server) {
		for _, d := range dets {
			if _, dup := s.detectors[d.Name()]; !dup {
				s.order = append(s.order, d.Name())
			}
			s.detectors[d.Name()] = d
		}
	}
}

// WithStore persists every localisation made through the API.
func WithStore(st resultStore) Option {
	return func(s *Server) { s.store = st }
}

// NewServer creates a server around a ready localizer.
func NewServer(cfg Config, loc localizer, opts ...Option) (*Server, error) {
	if loc == nil {
		return nil, errors.New("server needs a localizer")
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.Column == "" {
		cfg.Column = gallery.DefaultColumn
	}
	s := &Server{
		locator:     loc,
		detectors:   make(map[string]objectDetector),
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		column:      cfg.Column,
		version:     cfg.Version,
	}
	if cfg.RateLimitEnabled {
		s.rateLimiter = NewRateLimiter(cfg.RequestsPerMinute, cfg.RequestsPerHour)
	}
	for _, o := range opts {
		o(s)
	}
	sort.Strings(s.order)
	return s, nil
}

// Close releases the localizer and every detector.
func (s *Server) Close() error {
	errs := []error{s.locator.Close()}
	for _, name := range s.order {
		errs = append(errs, s.detectors[name].Close())
	}
	return errors.Join(errs...)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/galleries", s.corsMiddleware(s.galleriesHandler))
	mux.HandleFunc("/galleries/geojson", s.corsMiddleware(s.geojsonHandler))
	mux.HandleFunc("/locate", s.corsMiddleware(s.rateLimitMiddleware(s.locateHandler)))
	mux.HandleFunc("/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/ws/locate", s.locateWebSocketHandler)
	mux.Handle("/metrics", metricsHandler())
	slog.Debug("routes registered", "detectors", s.order)
}

// Handler returns a mux with every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version,omitempty"`
	Time      string   `json:"time"`
	Galleries int      `json:"galleries"`
	Models    []string `json:"models"`
}

// GalleriesResponse lists the catalogue and its neighbour map.
type GalleriesResponse struct {
	CRS       string              `json:"crs,omitempty"`
	Count     int                 `json:"count"`
	IDs       []string            `json:"ids"`
	Neighbors map[string][]string `json:"neighbors"`
}

// LocateResponse wraps one localisation.
type LocateResponse struct {
	Result  *locate.Result `json:"result"`
	StoreID int64          `json:"store_id,omitempty"`
}

// DetectResponse lists the detections of one model.
type DetectResponse struct {
	Model      string             `json:"model"`
	File       string             `json:"file"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Detections []objdet.Detection `json:"detections"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
