package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redisstore "github.com/loan-lifecycle-engine/internal/data/redis"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newIdempotencyRouter(t *testing.T, status int, calls *int32) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := redisstore.NewIdempotencyStore(logger, client, time.Hour)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(CallerKey, shared.Caller{ID: "borrower-1", Role: shared.RoleBorrower})
		c.Next()
	})
	router.Use(Idempotency(logger, store))
	router.POST("/loans/:id/repay", func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(status, gin.H{"call": n, "echo": string(body)})
	})
	router.GET("/loans/:id", func(c *gin.Context) {
		atomic.AddInt32(calls, 1)
		c.Status(http.StatusOK)
	})
	return router, mr
}

func post(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/loans/1/repay", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestIdempotencyMiddleware(t *testing.T) {
	t.Run("replays the first response", func(t *testing.T) {
		var calls int32
		router, _ := newIdempotencyRouter(t, http.StatusOK, &calls)

		first := post(router, "key-1", `{"amount":100}`)
		second := post(router, "key-1", `{"amount":100}`)

		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
		assert.Contains(t, first.Body.String(), `"echo":"{\"amount\":100}"`)
	})

	t.Run("rejects reuse with a different body", func(t *testing.T) {
		var calls int32
		router, _ := newIdempotencyRouter(t, http.StatusOK, &calls)

		post(router, "key-2", `{"amount":100}`)
		rr := post(router, "key-2", `{"amount":200}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "IDEMPOTENCY_KEY_REUSED")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("business errors are replayed too", func(t *testing.T) {
		var calls int32
		router, _ := newIdempotencyRouter(t, http.StatusUnprocessableEntity, &calls)

		post(router, "key-3", `{}`)
		rr := post(router, "key-3", `{}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("server errors release the key", func(t *testing.T) {
		var calls int32
		router, _ := newIdempotencyRouter(t, http.StatusInternalServerError, &calls)

		post(router, "key-4", `{}`)
		post(router, "key-4", `{}`)

		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("requests without a key pass through", func(t *testing.T) {
		var calls int32
		router, _ := newIdempotencyRouter(t, http.StatusOK, &calls)

		post(router, "", `{}`)
		post(router, "", `{}`)

		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("reads are not tracked", func(t *testing.T) {
		var calls int32
		router, mr := newIdempotencyRouter(t, http.StatusOK, &calls)

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/loans/1", nil)
			req.Header.Set(IdempotencyKeyHeader, "key-5")
			router.ServeHTTP(httptest.NewRecorder(), req)
		}

		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.Empty(t, mr.Keys())
	})

	t.Run("store unavailable", func(t *testing.T) {
		var calls int32
		router, mr := newIdempotencyRouter(t, http.StatusOK, &calls)
		mr.Close()

		rr := post(router, "key-6", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	})
}
