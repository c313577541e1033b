package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func request(r *gin.Engine, method, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ====================  限流 ====================

func TestNewShardedRateLimiterValidation(t *testing.T) {
	_, err := NewShardedRateLimiter(0, 10)
	assert.ErrorIs(t, err, ErrRateLimitInvalidRate)

	_, err = NewShardedRateLimiter(-1, 10)
	assert.ErrorIs(t, err, ErrRateLimitInvalidRate)

	_, err = NewShardedRateLimiter(1, 0)
	assert.ErrorIs(t, err, ErrRateLimitInvalidBurst)
}

func TestShardedRateLimiterAllow(t *testing.T) {
	limiter, err := NewShardedRateLimiter(0.001, 2)
	require.NoError(t, err)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	// 其他 IP 不受影响
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.True(t, limiter.Allow(""))

	assert.Equal(t, 2, limiter.Stats())
}

func TestRateLimitMiddlewareRejectsWithPlainText(t *testing.T) {
	limiter, err := NewShardedRateLimiter(0.001, 1)
	require.NoError(t, err)
	r := newTestEngine(RateLimitMiddleware(limiter))

	w := request(r, http.MethodGet, "/", "203.0.113.7:4000")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodGet, "/", "203.0.113.7:4001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too Many Requests", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	w = request(r, http.MethodGet, "/", "198.51.100.1:4000")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddlewareNilPassesThrough(t *testing.T) {
	r := newTestEngine(RateLimitMiddleware(nil))
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, request(r, http.MethodGet, "/", "").Code)
	}
}

// ====================  安全头 ====================

func TestSecurityHeaders(t *testing.T) {
	r := newTestEngine(SecurityHeaders())

	w := request(r, http.MethodGet, "/about", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=(), microphone=(), camera=()", w.Header().Get("Permissions-Policy"))
	assert.Equal(t, "frame-ancestors 'self'", w.Header().Get("Content-Security-Policy"))

	w = request(r, http.MethodGet, "/js/main.js", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestSecurityHeadersWithConfig(t *testing.T) {
	r := newTestEngine(SecurityHeadersWithConfig(SecurityConfig{
		EnableCSP: true,
		CustomCSP: "frame-ancestors 'none'",
	}))

	w := request(r, http.MethodGet, "/", "")
	assert.Equal(t, "frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("Referrer-Policy"))
	assert.Empty(t, w.Header().Get("Permissions-Policy"))
}

func TestIsHTMLPage(t *testing.T) {
	assert.True(t, isHTMLPage("/"))
	assert.True(t, isHTMLPage("/about"))
	assert.True(t, isHTMLPage("/docs/"))
	assert.True(t, isHTMLPage("/index.HTML"))
	assert.False(t, isHTMLPage("/css/styles.css"))
	assert.False(t, isHTMLPage(""))
}

// ====================  日志 ====================

func TestRequestLoggerPassesThrough(t *testing.T) {
	r := newTestEngine(RequestLogger())

	w := request(r, http.MethodGet, "/about", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestShouldSkipLog(t *testing.T) {
	assert.True(t, shouldSkipLog("/js/main.js"))
	assert.True(t, shouldSkipLog("/fonts/Inter.WOFF2"))
	assert.False(t, shouldSkipLog("/"))
	assert.False(t, shouldSkipLog("/about"))
}
