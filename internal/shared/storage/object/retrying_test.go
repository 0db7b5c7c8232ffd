package object

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"code-analyzer/internal/shared/errkind"
)

type scriptedStore struct {
	fetchErrs []error
	putErrs   []error
	fetches   int
	puts      int
	content   Content
}

func (s *scriptedStore) Fetch(ctx context.Context, container, key string) (Content, error) {
	s.fetches++
	if s.fetches <= len(s.fetchErrs) && s.fetchErrs[s.fetches-1] != nil {
		return Content{}, s.fetchErrs[s.fetches-1]
	}
	return s.content, nil
}

func (s *scriptedStore) Put(ctx context.Context, container, key string, data []byte, opts PutOptions) (string, error) {
	s.puts++
	if s.puts <= len(s.putErrs) && s.putErrs[s.puts-1] != nil {
		return "", s.putErrs[s.puts-1]
	}
	return key, nil
}

func testRetryConfig(waits *[]time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.Sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return cfg
}

func transient() error {
	return errkind.New(errkind.Transient, "s3 get object", errors.New("connection reset"))
}

func TestRetryingFetchRetriesTransient(t *testing.T) {
	var waits []time.Duration
	base := &scriptedStore{
		fetchErrs: []error{transient(), transient()},
		content:   Content{Bytes: []byte("print(1)"), SizeBytes: 8},
	}
	store := NewRetrying(base, testRetryConfig(&waits))

	got, err := store.Fetch(context.Background(), "bucket", "a.py")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got.Bytes) != "print(1)" {
		t.Fatalf("unexpected content %q", got.Bytes)
	}
	if base.fetches != 3 {
		t.Fatalf("expected 3 attempts, got %d", base.fetches)
	}
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule %v", waits)
	}
}

func TestRetryingFetchDoesNotRetryTerminalKinds(t *testing.T) {
	tests := []struct {
		name string
		kind errkind.Kind
	}{
		{name: "not found", kind: errkind.NotFound},
		{name: "access denied", kind: errkind.AccessDenied},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var waits []time.Duration
			base := &scriptedStore{fetchErrs: []error{errkind.New(tt.kind, "fetch", errors.New("x"))}}
			store := NewRetrying(base, testRetryConfig(&waits))

			_, err := store.Fetch(context.Background(), "bucket", "a.py")
			if !errkind.Is(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if base.fetches != 1 {
				t.Fatalf("expected a single attempt, got %d", base.fetches)
			}
			if len(waits) != 0 {
				t.Fatalf("expected no backoff, got %v", waits)
			}
		})
	}
}

func TestRetryingPutExhaustsAttempts(t *testing.T) {
	var waits []time.Duration
	base := &scriptedStore{putErrs: []error{transient(), transient(), transient(), nil}}
	store := NewRetrying(base, testRetryConfig(&waits))

	_, err := store.Put(context.Background(), "out", "r.md", []byte("x"), PutOptions{})
	if !errkind.Is(err, errkind.Transient) {
		t.Fatalf("expected Transient after exhaustion, got %v", err)
	}
	if base.puts != 3 {
		t.Fatalf("expected 3 attempts, got %d", base.puts)
	}
}

func TestRetryingFetchCallerDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base := &scriptedStore{}
	store := NewRetrying(base, DefaultRetryConfig())

	_, err := store.Fetch(ctx, "bucket", "a.py")
	if !errkind.Is(err, errkind.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if base.fetches != 0 {
		t.Fatalf("expected no backend call after cancellation, got %d", base.fetches)
	}
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("abcdef"), 3)
	if err != nil {
		t.Fatalf("ReadLimited: %v", err)
	}
	if string(data) != "abcd" {
		t.Fatalf("expected limit+1 bytes, got %q", data)
	}
	all, _ := ReadLimited(strings.NewReader("abcdef"), 0)
	if string(all) != "abcdef" {
		t.Fatalf("expected full read, got %q", all)
	}
}

func TestContextError(t *testing.T) {
	if err := ContextError("op", context.DeadlineExceeded); !errkind.Is(err, errkind.Transient) {
		t.Fatalf("expected Transient, got %v", err)
	}
	if err := ContextError("op", errors.New("other")); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
