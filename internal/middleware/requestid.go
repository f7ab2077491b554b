package middleware

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "request_id"
)

// Upstream IDs are accepted only when they are short and header-safe.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// RequestIDConfig controls how request IDs are obtained.
type RequestIDConfig struct {
	// TrustUpstream reuses a valid incoming X-Request-ID instead of generating one.
	TrustUpstream bool
	// Generate creates new IDs. Defaults to a dashless random UUID.
	Generate func() string
}

// RequestID assigns a fresh ID to every request, ignoring upstream headers.
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig stores the request ID in the gin context under
// "request_id", echoes it in the X-Request-ID response header and attaches it
// to the request context with logger.WithContextAttrs, so repository and
// service logs of the request carry it.
func RequestIDWithConfig(cfg RequestIDConfig) gin.HandlerFunc {
	generate := cfg.Generate
	if generate == nil {
		generate = newRequestID
	}

	return func(c *gin.Context) {
		var id string
		if cfg.TrustUpstream {
			if upstream := c.GetHeader(requestIDHeader); requestIDPattern.MatchString(upstream) {
				id = upstream
			}
		}
		if id == "" {
			id = generate()
		}

		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(
			logger.WithContextAttrs(c.Request.Context(), slog.String("request_id", id)),
		)

		c.Next()
	}
}

// GetRequestID returns the request ID set by the middleware, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
