package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	// RequestIDHeader is accepted when a proxy set it instead of X-Correlation-ID.
	RequestIDHeader = "X-Request-ID"

	CorrelationIDKey = "correlation_id"

	maxCorrelationIDLength = 128
)

// CorrelationID adopts the inbound id or mints one. The id is echoed on the
// response and stored on the request context, from where it reaches outbox
// events, Kafka headers and log lines.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := inboundCorrelationID(c)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(shared.ContextWithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

func inboundCorrelationID(c *gin.Context) string {
	for _, header := range []string{CorrelationIDHeader, RequestIDHeader} {
		if id := c.GetHeader(header); id != "" && len(id) <= maxCorrelationIDLength && printable(id) {
			return id
		}
	}
	return ""
}

// printable keeps control characters out of logs and Kafka headers.
func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetCorrelationID returns the id set by CorrelationID, or "".
func GetCorrelationID(c *gin.Context) string {
	id, _ := c.Get(CorrelationIDKey)
	s, _ := id.(string)
	return s
}
