package errkind

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// Kind is the closed set of failure categories reported to callers and logs.
type Kind string

const (
	NotFound             Kind = "NotFound"
	AccessDenied         Kind = "AccessDenied"
	Transient            Kind = "Transient"
	UnsupportedType      Kind = "UnsupportedType"
	PayloadTooLarge      Kind = "PayloadTooLarge"
	Throttled            Kind = "Throttled"
	Unavailable          Kind = "Unavailable"
	CircuitOpen          Kind = "CircuitOpen"
	ModelInvocationError Kind = "ModelInvocationError"
	InvalidMetadata      Kind = "InvalidMetadata"
	Timeout              Kind = "Timeout"
	InvalidRequest       Kind = "InvalidRequest"
	Internal             Kind = "Internal"
)

// All lists every kind in declaration order.
var All = []Kind{
	NotFound, AccessDenied, Transient, UnsupportedType, PayloadTooLarge,
	Throttled, Unavailable, CircuitOpen, ModelInvocationError, InvalidMetadata,
	Timeout, InvalidRequest, Internal,
}

// Error is a failure tagged with its Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with a kind and operation label.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a kinded error from a plain message.
func Newf(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether the kind may be retried locally by a component.
func (k Kind) Retryable() bool {
	switch k {
	case Transient, Throttled, Unavailable:
		return true
	default:
		return false
	}
}

// FromContext maps an expired caller context to Timeout. It returns nil while
// the context is still live.
func FromContext(ctx context.Context, op string) *Error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return New(Timeout, op, err)
	}
	return nil
}

// Sanitize flattens an error message for callers: no newlines, bounded length.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
