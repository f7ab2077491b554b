package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gorepo/internal/domain"
	"github.com/simp-lee/gorepo/internal/pkg"
)

var errPanic = domain.NewAppError(domain.CodeInternal, "internal server error", nil)

// Recovery returns a gin middleware that recovers from panics, logs the value
// with its stack trace and answers with the standard failure envelope:
//
//	{"is_success": false, "data": null, "error": "internal server error"}
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					slog.Any("panic", err),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				c.Abort()
				if !c.Writer.Written() {
					pkg.Failure(c, errPanic)
				}
			}
		}()
		c.Next()
	}
}
