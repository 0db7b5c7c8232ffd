package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-s3
//
// The function accepts S3 ObjectCreated notifications and direct
// invocations shaped like the HTTP analyze body.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"code-analyzer/internal/bootstrap"
	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/runs"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/telemetry"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	if err := telemetry.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		initErr = err
		return
	}
	if strings.TrimSpace(cfg.DefaultDestinationBucket) == "" {
		initErr = errors.New("DEFAULT_DESTINATION_BUCKET is required")
		return
	}
	built, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

type analyzer interface {
	Analyze(ctx context.Context, req pipeline.AnalysisRequest) (runs.Result, error)
	Ask(ctx context.Context, prompt, modelID string) (runs.PromptResult, error)
}

// directInvoke is the payload of a direct invocation, with the same fields
// as the HTTP analyze body.
type directInvoke struct {
	S3Bucket          string `json:"s3_bucket"`
	S3Key             string `json:"s3_key"`
	DestinationBucket string `json:"destination_bucket"`
	ModelID           string `json:"model_id"`
	PromptAdditions   string `json:"prompt_additions"`
	Prompt            string `json:"prompt"`
}

// invokeInfo answers a direct invocation that asks for nothing.
type invokeInfo struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

func handler(ctx context.Context, raw json.RawMessage) (any, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		return nil, initErr
	}
	out := output{
		container: app.Config.DefaultDestinationBucket,
		prefix:    bootstrap.PipelineConfig(app.Config).OutputPrefix,
	}
	return dispatch(ctx, app.RunsService, out, app.Config.Version, raw)
}

// dispatch routes S3 notifications to handleEvent and everything else to
// handleDirect.
func dispatch(ctx context.Context, svc analyzer, out output, version string, raw json.RawMessage) (any, error) {
	var envelope struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if envelope.Records != nil {
		var event events.S3Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("decode s3 event: %w", err)
		}
		return handleEvent(ctx, svc, out, event)
	}

	var in directInvoke
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode direct invoke: %w", err)
	}
	return handleDirect(ctx, svc, out, version, in)
}

// handleDirect runs a prompt or one source analysis. A payload with neither
// returns the function's identity.
func handleDirect(ctx context.Context, svc analyzer, out output, version string, in directInvoke) (any, error) {
	switch {
	case strings.TrimSpace(in.Prompt) != "":
		return svc.Ask(ctx, in.Prompt, strings.TrimSpace(in.ModelID))
	case strings.TrimSpace(in.S3Bucket) != "" || strings.TrimSpace(in.S3Key) != "":
		destination := in.DestinationBucket
		if strings.TrimSpace(destination) == "" {
			destination = out.container
		}
		req, err := pipeline.NewAnalysisRequest(in.S3Bucket, in.S3Key, destination, in.ModelID, in.PromptAdditions)
		if err != nil {
			return nil, err
		}
		return svc.Analyze(ctx, req)
	default:
		return invokeInfo{Status: "success", Message: "code analyzer invoked directly", Version: version}, nil
	}
}

// output is where reports are written.
type output struct {
	container string
	prefix    string
}

// owns reports whether the object is a report this function wrote.
func (o output) owns(bucket, key string) bool {
	return bucket == o.container && o.prefix != "" && strings.HasPrefix(key, o.prefix)
}

// handleEvent runs one analysis per uploaded object. Analysis failures are
// recorded in the ledger and returned in the results; only ledger failures
// fail the invocation so the event is retried. Reports landing under the
// output prefix are skipped.
func handleEvent(ctx context.Context, svc analyzer, out output, event events.S3Event) ([]runs.Result, error) {
	results := make([]runs.Result, 0, len(event.Records))
	var errs []error
	for _, record := range event.Records {
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			key = record.S3.Object.Key
		}
		if out.owns(record.S3.Bucket.Name, key) {
			telemetry.Info("lambda.s3.skip_own_output", map[string]any{
				"bucket": record.S3.Bucket.Name,
				"key":    key,
			})
			continue
		}
		req, err := pipeline.NewAnalysisRequest(record.S3.Bucket.Name, key, out.container, "", "")
		if err != nil {
			telemetry.Warn("lambda.s3.invalid_record", map[string]any{
				"bucket": record.S3.Bucket.Name,
				"key":    key,
				"error":  err.Error(),
			})
			continue
		}

		res, err := svc.Analyze(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", req.SourceContainer, req.SourceKey, err))
			continue
		}
		telemetry.Info("lambda.s3.analyzed", map[string]any{
			"run_id":     res.RunID,
			"request_id": res.RequestID,
			"source_key": req.SourceKey,
			"status":     string(res.Status),
			"output_key": res.OutputKey,
		})
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func main() {
	lambda.Start(handler)
}
