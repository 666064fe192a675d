package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedEngine(rdb rd.Scripter, limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r.POST("/api/orders", OrderRateLimit(rdb, limit, time.Minute, log), func(c *gin.Context) {
		// 下游 handler 仍能读到完整 body
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusCreated, string(b))
	})
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestOrderRateLimitPerLineUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	r := limitedEngine(rdb, 2)

	alice := `{"line_user_id":"U-alice","items":[]}`
	for i := 0; i < 2; i++ {
		w := post(r, alice)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, alice, w.Body.String())
	}
	w := post(r, alice)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":429`)

	assert.Equal(t, http.StatusCreated, post(r, `{"line_user_id":"U-bob"}`).Code)
	assert.True(t, mr.Exists("rate_limit:orders:line:U-alice"))
}

func TestOrderRateLimitFallsBackToIP(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	r := limitedEngine(rdb, 1)

	assert.Equal(t, http.StatusCreated, post(r, `{}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(r, `not json`).Code)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "rate_limit:orders:ip:"))
}

func TestOrderRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	r := limitedEngine(rdb, 1)
	assert.Equal(t, http.StatusCreated, post(r, `{"line_user_id":"U1"}`).Code)
	assert.Equal(t, http.StatusCreated, post(r, `{"line_user_id":"U1"}`).Code)
}
