package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d60-Lab/gin-blog/pkg/auth"
	"github.com/d60-Lab/gin-blog/pkg/logger"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIPRateLimiter_PerKeyBucket(t *testing.T) {
	l := NewIPRateLimiter(1, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "burst exhausted")
	assert.True(t, l.Allow("b"), "other clients have their own bucket")
}

func TestRateLimit_Returns429(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0.001, 1))
	r.GET("/x", func(c *gin.Context) { response.Success(c, nil) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, req).Code)

	req2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(r, req2).Code)
}

func TestRateLimit_DisabledWhenRPSZero(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0, 0))
	r.GET("/x", func(c *gin.Context) { response.Success(c, nil) })
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func authEngine(tokens *auth.TokenManager) *gin.Engine {
	r := gin.New()
	r.Use(Authenticate(tokens))
	r.GET("/open", func(c *gin.Context) {
		uid, ok := CurrentUserID(c)
		response.Success(c, gin.H{"uid": uid, "ok": ok})
	})
	r.GET("/private", RequireAuth(), func(c *gin.Context) {
		uid, _ := CurrentUserID(c)
		c.String(http.StatusOK, uid)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	r := authEngine(tokens)
	token, _, err := tokens.Issue("u-1", "alice")
	require.NoError(t, err)

	t.Run("anonymous passes through open routes", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/open", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ok":false`)
	})

	t.Run("anonymous is rejected on private routes", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/private", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"redirect":"/login"`)
	})

	t.Run("valid bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u-1", w.Body.String())
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		req.Header.Set("Authorization", "Token "+token)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other, _, err := auth.NewTokenManager("other", time.Hour).Issue("u-1", "alice")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ok", func(c *gin.Context) { response.Success(c, nil) })
	r.GET("/missing", func(c *gin.Context) { response.NotFound(c, "nope") })
	r.GET("/boom", func(c *gin.Context) { response.InternalError(c, errors.New("db down")) })

	serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Contains(t, entries[2].ContextMap()["errors"], "db down")
	assert.Equal(t, "/boom", entries[2].ContextMap()["path"])
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}
