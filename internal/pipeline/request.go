package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"code-analyzer/internal/shared/errkind"
)

var requestValidate = validator.New()

// AnalysisRequest names the source object and where the report goes. Build
// it with NewAnalysisRequest and pass it by value.
type AnalysisRequest struct {
	SourceContainer      string `json:"sourceContainer" validate:"required,max=255"`
	SourceKey            string `json:"sourceKey" validate:"required,max=1024"`
	DestinationContainer string `json:"destinationContainer" validate:"required,max=255"`
	ModelID              string `json:"modelId,omitempty" validate:"max=256"`
	PromptAdditions      string `json:"promptAdditions,omitempty" validate:"max=4000"`
}

// NewAnalysisRequest trims and validates the fields. Failures are
// InvalidRequest errors.
func NewAnalysisRequest(sourceContainer, sourceKey, destinationContainer, modelID, promptAdditions string) (AnalysisRequest, error) {
	req := AnalysisRequest{
		SourceContainer:      strings.TrimSpace(sourceContainer),
		SourceKey:            strings.TrimSpace(sourceKey),
		DestinationContainer: strings.TrimSpace(destinationContainer),
		ModelID:              strings.TrimSpace(modelID),
		PromptAdditions:      strings.TrimSpace(promptAdditions),
	}
	if err := req.Validate(); err != nil {
		return AnalysisRequest{}, err
	}
	return req, nil
}

// Validate checks the struct tags. It is run again by the orchestrator so a
// request decoded from a queue message gets the same checks.
func (r AnalysisRequest) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return errkind.New(errkind.InvalidRequest, "analysis request", describeValidation(err))
	}
	return nil
}

func describeValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "max":
		return fmt.Errorf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
