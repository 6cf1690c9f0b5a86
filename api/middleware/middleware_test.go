package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anoixa/pattern-vault/database/models"
	"github.com/anoixa/pattern-vault/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newRouter(t *testing.T, jwtService *auth.JWTService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", TokenAuth(jwtService), func(c *gin.Context) {
		id, ok := GetUserID(c)
		require.True(t, ok)
		c.String(http.StatusOK, "%d:%s", id, c.GetString(ContextEmailKey))
	})
	return r
}

func TestTokenAuth(t *testing.T) {
	jwtService, err := auth.NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)
	r := newRouter(t, jwtService)

	token, _, err := jwtService.GenerateToken(&models.User{ID: 7, Email: "a@b.io"})
	require.NoError(t, err)

	expiredSvc, err := auth.NewJWTService(testSecret, time.Nanosecond)
	require.NoError(t, err)
	expired, _, err := expiredSvc.GenerateToken(&models.User{ID: 7, Email: "a@b.io"})
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	otherSvc, err := auth.NewJWTService(strings.Repeat("z", 32), time.Hour)
	require.NoError(t, err)
	foreign, _, err := otherSvc.GenerateToken(&models.User{ID: 7, Email: "a@b.io"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"bearer", "Authorization", "Bearer " + token, http.StatusOK},
		{"x-auth-token", TokenHeader, token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed", "Authorization", token, http.StatusUnauthorized},
		{"garbage", "Authorization", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"expired", "Authorization", "Bearer " + expired, http.StatusUnauthorized},
		{"foreign secret", TokenHeader, foreign, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "7:a@b.io", w.Body.String())
			}
		})
	}
}

func TestConcurrencyLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewConcurrencyLimiter(1)

	release := make(chan struct{})
	entered := make(chan struct{})
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusOK)
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	done := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
		done <- w.Code
	}()
	<-entered

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ResetMetrics()
	r := gin.New()
	r.Use(Metrics())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/ok", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	m := GetMetrics()
	assert.Equal(t, int64(3), m["request_count"])
	assert.Equal(t, int64(1), m["server_errors"])
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestMaxBytesReader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MaxBytesReader(8))
	r.POST("/", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"k":"a long value"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}
