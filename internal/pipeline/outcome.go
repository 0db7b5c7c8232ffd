package pipeline

import (
	"code-analyzer/internal/shared/errkind"
)

// Status is the terminal result of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Stage is a step of the run state machine.
type Stage string

const (
	StageStart      Stage = "start"
	StageFetching   Stage = "fetching"
	StageValidating Stage = "validating"
	StageAnalyzing  Stage = "analyzing"
	StageFormatting Stage = "formatting"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// defaultKind is used when a stage returns an error that carries no kind.
func (s Stage) defaultKind() errkind.Kind {
	switch s {
	case StageFetching, StagePersisting:
		return errkind.Transient
	case StageValidating:
		return errkind.UnsupportedType
	case StageAnalyzing:
		return errkind.ModelInvocationError
	case StageFormatting:
		return errkind.InvalidMetadata
	default:
		return errkind.Internal
	}
}

// AnalysisOutcome is returned once per run and not changed afterwards.
type AnalysisOutcome struct {
	RequestID             string       `json:"request_id,omitempty"`
	Status                Status       `json:"status"`
	OutputKey             string       `json:"output_key,omitempty"`
	Summary               string       `json:"summary,omitempty"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds"`
	TokensUsed            *int         `json:"tokens_used,omitempty"`
	ErrorKind             errkind.Kind `json:"error_kind,omitempty"`
	ErrorMessage          string       `json:"error_message,omitempty"`
	DetectedLanguage      string       `json:"detected_language,omitempty"`
	ModelID               string       `json:"model_id,omitempty"`
	// ModelAttempts counts model service contacts, so retries are
	// ModelAttempts-1 on success.
	ModelAttempts int `json:"model_attempts"`
}

// Succeeded reports whether the run finished in StageDone.
func (o AnalysisOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}
