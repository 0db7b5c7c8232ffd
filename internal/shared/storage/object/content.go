package object

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"code-analyzer/internal/shared/errkind"
)

const sniffLen = 3072

// SniffContentType detects a MIME type from the leading bytes of data.
func SniffContentType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return mimetype.Detect(data).String()
}

// ReadLimited reads at most limit+1 bytes so callers can tell an oversized
// object from one exactly at the limit without buffering all of it.
// A non-positive limit reads everything.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, limit+1))
}

// ContextError classifies a context failure seen inside a backend call as
// Transient; the retrying wrapper decides whether the caller's deadline, not
// the attempt's, has expired and reports Timeout in that case.
func ContextError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errkind.New(errkind.Transient, op, fmt.Errorf("attempt deadline: %w", err))
	}
	return nil
}
