package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/queue"
	"code-analyzer/internal/runs"
	"code-analyzer/internal/shared/telemetry"
)

// Processor executes one queued run.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) (runs.Result, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingRunID indicates a message without a run id.
type ErrMissingRunID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingRunID) Error() string { return "missing run id" }

// ErrProcess indicates processing failed after successful parsing. The
// message should be redelivered.
type ErrProcess struct {
	RunID     string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process run"
	}
	return "process run: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never be
// processed and should be dropped rather than redelivered.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var missing ErrMissingRunID
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.RunID) == "" {
		return msg, meta, ErrMissingRunID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload. A run
// that ends with an error outcome is still handled; only ledger failures
// come back as ErrProcess.
func HandleMessage(ctx context.Context, proc Processor, body string) error {
	if proc == nil {
		return errors.New("run processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.RunID) == "" {
		return ErrMissingRunID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := pipeline.WithRequestID(ctx, msg.RequestID)
	res, err := proc.Process(ctxWithRequest, msg)
	if err != nil {
		return ErrProcess{RunID: msg.RunID, RequestID: msg.RequestID, Err: err}
	}
	telemetry.Info("worker.run.finished", map[string]any{
		"run_id":     msg.RunID,
		"request_id": res.RequestID,
		"status":     string(res.Status),
		"error_kind": string(res.ErrorKind),
		"output_key": res.OutputKey,
	})
	return nil
}
