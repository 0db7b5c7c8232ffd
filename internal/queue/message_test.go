package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"code-analyzer/internal/pipeline"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		RunID: "run-123",
		Request: pipeline.AnalysisRequest{
			SourceContainer:      "src",
			SourceKey:            "code/calc.py",
			DestinationContainer: "dst",
			ModelID:              "model-a",
		},
		RequestID:  "request-456",
		EnqueuedAt: "2026-10-16T12:00:00Z",
		Version:    MessageVersion,
	}

	payload, err := EncodeMessage(msg)
	require.NoError(t, err)
	require.Contains(t, string(payload), `"runId":"run-123"`)
	require.Contains(t, string(payload), `"sourceKey":"code/calc.py"`)

	got, err := DecodeMessage(payload)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestDecodeMessageRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeMessage([]byte("{not json"))
	require.Error(t, err)
}

func TestDecodeMessageIgnoresUnknownFields(t *testing.T) {
	got, err := DecodeMessage([]byte(`{"runId":"r1","extra":true,"version":2}`))
	require.NoError(t, err)
	require.Equal(t, "r1", got.RunID)
	require.Equal(t, 2, got.Version)
	require.Empty(t, got.Request.SourceKey)
}
