package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"code-analyzer/internal/shared/telemetry"
)

const (
	runIDKey            = "runId"
	statusTransitionKey = "statusTransition"
	modelIDKey          = "modelId"
)

// TagRun records the analysis run a request touched so the request log can
// be joined with the run's own events.
func TagRun(c *gin.Context, runID, transition string) {
	if runID != "" {
		c.Set(runIDKey, runID)
	}
	if transition != "" {
		c.Set(statusTransitionKey, transition)
	}
}

// TagModel records the model used to answer the request.
func TagModel(c *gin.Context, modelID string) {
	if modelID != "" {
		c.Set(modelIDKey, modelID)
	}
}

// Logging emits one http.request event per request. Scrapes of /metrics and
// CORS preflights are not logged.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
		}
		for key, field := range map[string]string{
			runIDKey:            "run_id",
			statusTransitionKey: "status_transition",
			modelIDKey:          "model_id",
		} {
			if v := c.GetString(key); v != "" {
				fields[field] = v
			}
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("http.request", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("http.request", fields)
		default:
			telemetry.Info("http.request", fields)
		}
	}
}
