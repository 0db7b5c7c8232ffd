package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"code-analyzer/internal/bootstrap"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/metrics"
	"code-analyzer/internal/shared/telemetry"
	"code-analyzer/internal/workerproc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("worker.config", err)
	}
	if err := telemetry.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fatal("worker.logger", err)
	}
	defer telemetry.Sync()

	queueURL := strings.TrimSpace(cfg.AnalysisQueueURL)
	if queueURL == "" {
		fatal("worker.config", errors.New("ANALYSIS_QUEUE_URL is required"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fatal("worker.aws_config", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		fatal("worker.bootstrap", err)
	}

	concurrency := max(1, cfg.WorkerConcurrency)
	visibilitySeconds := int32(cfg.QueueVisibilityTimeout / time.Second)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.start", map[string]any{
		"queue_url":          queueURL,
		"concurrency":        concurrency,
		"visibility_seconds": visibilitySeconds,
	})

	// Runs in flight are not canceled by the shutdown signal.
	runCtx := context.WithoutCancel(ctx)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(queueURL),
			MaxNumberOfMessages:         10,
			WaitTimeSeconds:             20,
			VisibilityTimeout:           visibilitySeconds,
			MessageSystemAttributeNames: receiveAttributes,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(runCtx, sqsClient, queueURL, app.RunsService, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": cfg.WorkerShutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(cfg.WorkerShutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"message": "exiting with in-flight runs"})
	}
}

var receiveAttributes = []sqstypes.MessageSystemAttributeName{
	sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage processes one delivery. The message is deleted when the run
// reached an outcome or can never be processed; ledger failures leave it for
// redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, proc workerproc.Processor, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.RunID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.run.unrecoverable", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.RunID, decoded.RequestID) {
			metrics.IncJobsDeletedUnrecoverable()
		}
		return
	}

	telemetry.Info("worker.run.received", baseFields(msg, decoded.RunID, decoded.RequestID))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, proc, body); err != nil {
		fields := baseFields(msg, decoded.RunID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.run.failed", fields)
		metrics.IncJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.RunID, decoded.RequestID) {
		telemetry.Info("worker.run.completed", baseFields(msg, decoded.RunID, decoded.RequestID))
		metrics.IncJobsCompleted()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, runID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, runID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.run.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, runID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.run.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, runID, requestID string) map[string]any {
	fields := map[string]any{
		"run_id":         runID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func fatal(event string, err error) {
	telemetry.Error(event, map[string]any{"error": err.Error()})
	telemetry.Sync()
	os.Exit(1)
}
