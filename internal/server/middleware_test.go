package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, Config{CORSOrigin: "https://mines.example"})
	rec := serve(s, httptest.NewRequest(http.MethodOptions, "/locate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://mines.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, Config{RateLimitEnabled: true, RequestsPerMinute: 1})

	req := func() *http.Request {
		r := uploadRequest(t, "/locate", pngBytes(t, widthNoText, 20), nil)
		r.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
		return r
	}
	rec := serve(s, req())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, req())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "minute", rec.Header().Get("X-RateLimit-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := uploadRequest(t, "/locate", pngBytes(t, widthNoText, 20), nil)
	other.Header.Set("X-Real-IP", "10.0.0.8")
	assert.Equal(t, http.StatusOK, serve(s, other).Code)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(r))

	r.Header.Set("X-Real-IP", " 192.0.2.9 ")
	assert.Equal(t, "192.0.2.9", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.3")
	assert.Equal(t, "198.51.100.3", getClientIP(r))
}

func TestRateLimiterWindows(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 3)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.CheckRateLimit("a"))
	require.NoError(t, rl.CheckRateLimit("a"))
	err := rl.CheckRateLimit("a")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, time.Minute, rle.RetryAfter)

	require.NoError(t, rl.CheckRateLimit("b"))

	now = now.Add(61 * time.Second)
	require.NoError(t, rl.CheckRateLimit("a"))
	err = rl.CheckRateLimit("a")
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)

	now = now.Add(time.Hour)
	require.NoError(t, rl.CheckRateLimit("a"))
}

func TestRateLimiterDisabledWindows(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.CheckRateLimit("a"))
	}
}
