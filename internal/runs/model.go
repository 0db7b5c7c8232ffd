package runs

import (
	"time"

	"code-analyzer/internal/pipeline"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSuccess    = string(pipeline.StatusSuccess)
	StatusError      = string(pipeline.StatusError)
)

// Run is the ledger record of one analysis request.
type Run struct {
	ID                    string     `json:"id"`
	RequestID             string     `json:"request_id,omitempty"`
	SourceContainer       string     `json:"source_container"`
	SourceKey             string     `json:"source_key"`
	DestinationContainer  string     `json:"destination_container"`
	ModelID               string     `json:"model_id,omitempty"`
	Status                string     `json:"status"`
	OutputKey             string     `json:"output_key,omitempty"`
	Summary               string     `json:"summary,omitempty"`
	DetectedLanguage      string     `json:"detected_language,omitempty"`
	ErrorKind             string     `json:"error_kind,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	ProcessingTimeSeconds float64    `json:"processing_time_seconds"`
	TokensUsed            *int       `json:"tokens_used,omitempty"`
	ModelAttempts         int        `json:"model_attempts"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the run has an outcome.
func (r Run) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}

// applyOutcome copies a pipeline outcome onto the run.
func (r Run) applyOutcome(out pipeline.AnalysisOutcome, completedAt time.Time) Run {
	r.Status = string(out.Status)
	r.OutputKey = out.OutputKey
	r.Summary = out.Summary
	r.DetectedLanguage = out.DetectedLanguage
	r.ErrorKind = string(out.ErrorKind)
	r.ErrorMessage = out.ErrorMessage
	r.ProcessingTimeSeconds = out.ProcessingTimeSeconds
	r.TokensUsed = out.TokensUsed
	r.ModelAttempts = out.ModelAttempts
	if out.ModelID != "" {
		r.ModelID = out.ModelID
	}
	if r.RequestID == "" {
		r.RequestID = out.RequestID
	}
	completed := completedAt.UTC()
	r.CompletedAt = &completed
	return r
}
