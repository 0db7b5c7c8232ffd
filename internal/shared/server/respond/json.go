package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status. Analysis results are
// per-request, so responses are never cached.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusOK, payload)
}

// Accepted writes a 202 for a queued run and points Location at the run.
func Accepted(c *gin.Context, location string, payload interface{}) {
	if location != "" {
		c.Header("Location", location)
	}
	JSON(c, http.StatusAccepted, payload)
}
