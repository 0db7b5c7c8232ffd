package llm

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"code-analyzer/internal/shared/errkind"
)

// ClassifyHTTPStatus maps an HTTP status from a model API to an error kind.
func ClassifyHTTPStatus(status int) errkind.Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return errkind.Throttled
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return errkind.Unavailable
	default:
		return errkind.ModelInvocationError
	}
}

// IsTransportError reports network failures that never got an answer from
// the service.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.HasSuffix(msg, "eof")
}
