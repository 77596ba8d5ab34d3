package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redisstore "github.com/loan-lifecycle-engine/internal/data/redis"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength  = 255
	idempotencyStoreTimeout  = 2 * time.Second
)

// IdempotencyStore is satisfied by *redisstore.IdempotencyStore.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, requestHash string) (bool, *redisstore.IdempotencyEntry, error)
	Complete(ctx context.Context, key, requestHash string, statusCode int, body []byte) error
	Release(ctx context.Context, key string) error
}

var _ IdempotencyStore = (*redisstore.IdempotencyStore)(nil)

type bodyRecorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func abortIdempotency(c *gin.Context, status int, code, message string) {
	response := gin.H{"error": gin.H{"code": code, "message": message}}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}

// Idempotency replays the recorded response of a mutating request retried
// with the same Idempotency-Key. Keys are scoped to the caller and route, and
// a key reused with a different body is rejected. Requests without the header
// pass through. Server errors are not recorded so the client can retry them.
func Idempotency(logger *slog.Logger, store IdempotencyStore) gin.HandlerFunc {
	if store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		idempotencyKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if idempotencyKey == "" {
			c.Next()
			return
		}
		if len(idempotencyKey) > maxIdempotencyKeyLength {
			abortIdempotency(c, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key is too long")
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				abortIdempotency(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
				return
			}
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		callerID := ""
		if caller, ok := GetCaller(c); ok {
			callerID = caller.ID
		}
		key := strings.Join([]string{callerID, c.Request.Method, c.Request.URL.Path, idempotencyKey}, ":")
		requestHash := hashBody(append([]byte(c.Request.URL.RawQuery+"\n"), body...))

		ctx, cancel := context.WithTimeout(c.Request.Context(), idempotencyStoreTimeout)
		defer cancel()

		reserved, existing, err := store.Reserve(ctx, key, requestHash)
		if err != nil {
			abortIdempotency(c, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "Idempotency store is unavailable")
			return
		}
		if !reserved {
			switch {
			case existing == nil:
				abortIdempotency(c, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this Idempotency-Key is in progress")
			case existing.RequestHash != requestHash:
				abortIdempotency(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "Idempotency-Key was used with a different request")
			case existing.InProgress:
				abortIdempotency(c, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this Idempotency-Key is in progress")
			default:
				logger.Info("Replaying idempotent response",
					"idempotency_key", idempotencyKey,
					"status", existing.StatusCode,
					"correlation_id", GetCorrelationID(c),
				)
				c.Header(IdempotentReplayedHeader, "true")
				c.Data(existing.StatusCode, "application/json; charset=utf-8", existing.Body)
				c.Abort()
			}
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = recorder

		c.Next()

		storeCtx, storeCancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), idempotencyStoreTimeout)
		defer storeCancel()

		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(storeCtx, key); err != nil {
				logger.Warn("Failed to release idempotency key", "idempotency_key", idempotencyKey, "error", err)
			}
			return
		}
		if err := store.Complete(storeCtx, key, requestHash, status, recorder.buf.Bytes()); err != nil {
			logger.Warn("Failed to record idempotent response", "idempotency_key", idempotencyKey, "error", err)
		}
	}
}
