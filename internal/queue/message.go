package queue

import (
	"encoding/json"

	"code-analyzer/internal/pipeline"
)

// MessageVersion is written into every message this build produces.
const MessageVersion = 1

// Message asks a worker to execute one queued run.
type Message struct {
	RunID      string                   `json:"runId"`
	Request    pipeline.AnalysisRequest `json:"request"`
	RequestID  string                   `json:"requestId"`
	EnqueuedAt string                   `json:"enqueuedAt"`
	Version    int                      `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
