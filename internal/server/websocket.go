package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/locate"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketResponse is sent for every frame received on /ws/locate.
type WebSocketResponse struct {
	Type      string         `json:"type"`
	Status    string         `json:"status"` // "completed" or "error"
	Sequence  int            `json:"sequence"`
	Result    *locate.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty"`
}

// WebSocketConnWriter is the part of the connection used to reply.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// locateWebSocketHandler streams localisations: each binary frame is a
// photo, each reply a JSON result.
func (s *Server) locateWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for seq := 1; ; seq++ {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		s.handleFrame(r, conn, seq, messageType, data)
	}
}

func (s *Server) handleFrame(r *http.Request, conn WebSocketConnWriter, seq, messageType int, data []byte) {
	if messageType != websocket.BinaryMessage {
		s.sendWebSocket(conn, WebSocketResponse{Type: "error", Status: "error", Sequence: seq, ErrorType: "invalid_request", Error: "expected a binary image frame"})
		return
	}
	img, _, err := imgutil.Decode(bytes.NewReader(data))
	if err != nil {
		s.sendWebSocket(conn, WebSocketResponse{Type: "error", Status: "error", Sequence: seq, ErrorType: "invalid_image", Error: err.Error()})
		return
	}

	start := time.Now()
	res, err := s.locator.LocateImage(r.Context(), img, "frame-"+strconv.Itoa(seq))
	locateDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	if err != nil {
		locateTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocket(conn, WebSocketResponse{Type: "error", Status: "error", Sequence: seq, ErrorType: "processing_error", Error: err.Error()})
		return
	}
	locateTotal.WithLabelValues("websocket", res.Outcome.String()).Inc()
	s.save(r, res)
	s.sendWebSocket(conn, WebSocketResponse{Type: "locate_result", Status: "completed", Sequence: seq, Result: res})
}

func (s *Server) sendWebSocket(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
