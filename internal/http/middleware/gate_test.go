package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUA     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	testAccept = "application/json, text/plain, */*"
)

func newGateRouter(g *gate.Gate) *gin.Engine {
	router := gin.New()
	router.Use(Gate(g, false))
	router.Any("/api/*path", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/assets/app.js", func(c *gin.Context) { c.String(http.StatusOK, "js") })
	return router
}

func gatedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("User-Agent", testUA)
	req.Header.Set("Accept", testAccept)
	return req
}

func TestGate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("rate limit returns 429 with Retry-After", func(t *testing.T) {
		router := newGateRouter(gate.New(gate.Options{Capacity: 2, RefillRate: 1, Interval: time.Minute}))

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, gatedRequest(http.MethodGet, "/api/products"))
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, gatedRequest(http.MethodGet, "/api/products"))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.JSONEq(t, `{"error":"Too many requests, please try again later"}`, w.Body.String())
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("bot returns 403", func(t *testing.T) {
		router := newGateRouter(gate.New(gate.Options{}))

		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("User-Agent", "python-requests/2.31.0")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"error":"Forbidden: Bot detected"}`, w.Body.String())
	})

	t.Run("shield returns 403 unknown reason", func(t *testing.T) {
		router := newGateRouter(gate.New(gate.Options{}))

		req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{"name":"<script>alert(1)</script>"}`))
		req.Header.Set("User-Agent", testUA)
		req.Header.Set("Accept", testAccept)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"error":"Forbidden: Unknown reason"}`, w.Body.String())
	})

	t.Run("missing client address returns 500", func(t *testing.T) {
		router := newGateRouter(gate.New(gate.Options{}))

		req := gatedRequest(http.MethodGet, "/api/products")
		req.RemoteAddr = ""
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	})

	t.Run("bypassed paths are not gated", func(t *testing.T) {
		router := newGateRouter(gate.New(gate.Options{HealthPath: "/api/health"}))

		for _, target := range []string{"/api/health", "/assets/app.js"} {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.Header.Set("User-Agent", "curl/8.4.0")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, target)
		}
	})

	t.Run("dry run lets denied requests through", func(t *testing.T) {
		router := newGateRouter(gate.New(gate.Options{Mode: gate.ModeDryRun}))

		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("User-Agent", "curl/8.4.0")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, "1", retryAfterSeconds(gate.Decision{}))
	assert.Equal(t, "2", retryAfterSeconds(gate.Decision{RetryAfter: 1500 * time.Millisecond}))
	assert.Equal(t, "10", retryAfterSeconds(gate.Decision{RetryAfter: 10 * time.Second}))
}
