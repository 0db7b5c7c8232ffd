package errkind

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestKindOfWalksWrappedChain(t *testing.T) {
	base := New(NotFound, "s3 get object", errors.New("NoSuchKey"))
	wrapped := fmt.Errorf("fetch source: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok || kind != NotFound {
		t.Fatalf("KindOf = %q, %v; want NotFound, true", kind, ok)
	}
	if !Is(wrapped, NotFound) {
		t.Fatalf("expected Is(NotFound)")
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("expected plain error to carry no kind")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{Transient, true},
		{Throttled, true},
		{Unavailable, true},
		{NotFound, false},
		{AccessDenied, false},
		{CircuitOpen, false},
		{ModelInvocationError, false},
		{Timeout, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.want {
			t.Fatalf("%s.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestFromContext(t *testing.T) {
	if err := FromContext(context.Background(), "fetch"); err != nil {
		t.Fatalf("expected nil for live context, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := FromContext(ctx, "fetch")
	if err == nil || err.Kind != Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize(errors.New("line one\nline two\r"))
	if got != "line one line two" {
		t.Fatalf("Sanitize = %q", got)
	}
	long := Sanitize(errors.New(strings.Repeat("x", 900)))
	if len(long) != 500 {
		t.Fatalf("expected truncation to 500, got %d", len(long))
	}
	if Sanitize(nil) != "" {
		t.Fatalf("expected empty string for nil error")
	}
}

func TestSanitizeKeepsRunesWhole(t *testing.T) {
	// 499 ASCII bytes followed by two-byte runes, so one straddles the limit.
	msg := strings.Repeat("x", 499) + strings.Repeat("é", 200)
	got := Sanitize(errors.New(msg))
	if !utf8.ValidString(got) {
		t.Fatalf("Sanitize produced invalid UTF-8: %q", got[len(got)-4:])
	}
	if len(got) > 500 {
		t.Fatalf("expected at most 500 bytes, got %d", len(got))
	}
	if len(got) != 499 {
		t.Fatalf("expected cut before the split rune at 499, got %d", len(got))
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(Throttled, "bedrock converse", errors.New("rate exceeded"))
	if err.Error() != "bedrock converse: rate exceeded" {
		t.Fatalf("Error() = %q", err.Error())
	}
	bare := &Error{Kind: CircuitOpen}
	if bare.Error() != "CircuitOpen" {
		t.Fatalf("Error() = %q", bare.Error())
	}
}
