package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiresias_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiresias_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// outcome: no_text, no_gallery, ambiguous, located, error
	locateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiresias_locate_total",
			Help: "Localisations by outcome",
		},
		[]string{"source", "outcome"},
	)

	locateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiresias_locate_duration_seconds",
			Help:    "OCR and matching duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"source"},
	)

	ocrRowsDetected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tiresias_ocr_rows_detected",
			Help:    "Number of text rows recognized per photo",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	detectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiresias_detect_total",
			Help: "Object detection requests by model and status",
		},
		[]string{"model", "status"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiresias_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tiresias_upload_size_bytes",
			Help:    "Size of uploaded photos in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tiresias_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiresias_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)
)

func metricsHandler() http.Handler { return promhttp.Handler() }
