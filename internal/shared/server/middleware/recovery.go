package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"code-analyzer/internal/shared/server/respond"
	"code-analyzer/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 response. The run id is logged
// when the panic happened after the run was recorded.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				fields := map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      fmt.Sprint(rec),
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
				}
				if runID := c.GetString(runIDKey); runID != "" {
					fields["run_id"] = runID
				}
				telemetry.Error("http.panic", fields)
				respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
				c.Abort()
			}
		}()
		c.Next()
	}
}
