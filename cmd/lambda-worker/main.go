package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"code-analyzer/internal/bootstrap"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/telemetry"
	"code-analyzer/internal/workerproc"
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
	built, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleEvent(ctx, app.RunsService, app.Config.WorkerConcurrency, event), nil
}

func handleEvent(ctx context.Context, proc workerproc.Processor, concurrency int, event events.SQSEvent) events.SQSEventResponse {
	records := make([]workerproc.Record, 0, len(event.Records))
	for _, record := range event.Records {
		records = append(records, workerproc.Record{ID: record.MessageId, Body: record.Body})
	}

	failed := workerproc.HandleBatch(ctx, proc, records, concurrency)
	failures := make([]events.SQSBatchItemFailure, 0, len(failed))
	for _, id := range failed {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
