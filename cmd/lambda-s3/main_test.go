package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/runs"
)

type fakeAnalyzer struct {
	reqs    []pipeline.AnalysisRequest
	prompts []string
	failKey string
}

func (f *fakeAnalyzer) Ask(ctx context.Context, prompt, modelID string) (runs.PromptResult, error) {
	f.prompts = append(f.prompts, prompt)
	return runs.PromptResult{Status: "success", Analysis: "looks fine", ModelID: modelID}, nil
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req pipeline.AnalysisRequest) (runs.Result, error) {
	f.reqs = append(f.reqs, req)
	if req.SourceKey == f.failKey {
		return runs.Result{}, errors.New("ledger down")
	}
	return runs.Result{
		RunID:           "run-" + req.SourceKey,
		AnalysisOutcome: pipeline.AnalysisOutcome{Status: pipeline.StatusSuccess},
	}, nil
}

func s3Record(bucket, key, decoded string) events.S3EventRecord {
	var rec events.S3EventRecord
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = key
	rec.S3.Object.URLDecodedKey = decoded
	return rec
}

var testOutput = output{container: "reports", prefix: "analyses/"}

func TestHandleEventAnalyzesEachObject(t *testing.T) {
	svc := &fakeAnalyzer{}
	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("uploads", "src/calc.py", "src/calc.py"),
		s3Record("uploads", "src/my+file.go", "src/my file.go"),
	}}

	results, err := handleEvent(context.Background(), svc, testOutput, event)

	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, svc.reqs, 2)
	require.Equal(t, "src/my file.go", svc.reqs[1].SourceKey)
	require.Equal(t, "reports", svc.reqs[0].DestinationContainer)
}

func TestHandleEventSkipsInvalidRecords(t *testing.T) {
	svc := &fakeAnalyzer{}
	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("", "calc.py", ""),
	}}

	results, err := handleEvent(context.Background(), svc, testOutput, event)

	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, svc.reqs)
}

func TestHandleEventReturnsLedgerFailures(t *testing.T) {
	svc := &fakeAnalyzer{failKey: "bad.py"}
	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("uploads", "bad.py", ""),
		s3Record("uploads", "good.py", ""),
	}}

	results, err := handleEvent(context.Background(), svc, testOutput, event)

	require.ErrorContains(t, err, "uploads/bad.py")
	require.Len(t, results, 1)
	require.Equal(t, "run-good.py", results[0].RunID)
}

func TestHandleEventSkipsOwnReports(t *testing.T) {
	svc := &fakeAnalyzer{}
	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("reports", "analyses/calc.py_20261016T120000Z.md", ""),
		s3Record("uploads", "analyses/notes.md", ""),
		s3Record("reports", "docs/readme.md", ""),
	}}

	results, err := handleEvent(context.Background(), svc, testOutput, event)

	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, svc.reqs, 2)
	require.Equal(t, "analyses/notes.md", svc.reqs[0].SourceKey)
	require.Equal(t, "docs/readme.md", svc.reqs[1].SourceKey)
}

func TestDispatchS3Notification(t *testing.T) {
	svc := &fakeAnalyzer{}
	raw := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"src/calc.py"}}}]}`

	got, err := dispatch(context.Background(), svc, testOutput, "1.0.0", json.RawMessage(raw))

	require.NoError(t, err)
	results, ok := got.([]runs.Result)
	require.True(t, ok)
	require.Len(t, results, 1)
	require.Equal(t, "src/calc.py", svc.reqs[0].SourceKey)
}

func TestDispatchDirectSourceAnalysis(t *testing.T) {
	svc := &fakeAnalyzer{}
	raw := `{"s3_bucket":"uploads","s3_key":"calc.py","model_id":"m1"}`

	got, err := dispatch(context.Background(), svc, testOutput, "1.0.0", json.RawMessage(raw))

	require.NoError(t, err)
	res, ok := got.(runs.Result)
	require.True(t, ok)
	require.Equal(t, "run-calc.py", res.RunID)
	require.Equal(t, "reports", svc.reqs[0].DestinationContainer)
	require.Equal(t, "m1", svc.reqs[0].ModelID)
}

func TestDispatchDirectPrompt(t *testing.T) {
	svc := &fakeAnalyzer{}

	got, err := dispatch(context.Background(), svc, testOutput, "1.0.0", json.RawMessage(`{"prompt":"review this"}`))

	require.NoError(t, err)
	require.Equal(t, []string{"review this"}, svc.prompts)
	require.Equal(t, "looks fine", got.(runs.PromptResult).Analysis)
	require.Empty(t, svc.reqs)
}

func TestDispatchDirectWithoutRequest(t *testing.T) {
	got, err := dispatch(context.Background(), &fakeAnalyzer{}, testOutput, "1.0.0", json.RawMessage(`{}`))

	require.NoError(t, err)
	require.Equal(t, invokeInfo{Status: "success", Message: "code analyzer invoked directly", Version: "1.0.0"}, got)
}

func TestDispatchDirectInvalidRequest(t *testing.T) {
	_, err := dispatch(context.Background(), &fakeAnalyzer{}, testOutput, "1.0.0", json.RawMessage(`{"s3_key":"calc.py"}`))
	require.Error(t, err)
}
