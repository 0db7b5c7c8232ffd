package pipeline

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/report"
	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/metrics"
	"code-analyzer/internal/shared/storage/object"
	"code-analyzer/internal/shared/telemetry"
	"code-analyzer/internal/shared/util"
	"code-analyzer/internal/validate"
)

// ReportContentType is attached to every stored report.
const ReportContentType = "text/markdown"

const suffixHashLen = 8

// Orchestrator runs fetch, validate, analyze, format and persist for one
// request at a time. It keeps no per-run state, so one value serves
// concurrent runs.
type Orchestrator struct {
	store     object.ContentStore
	validator *validate.Validator
	model     llm.Analyzer
	cfg       Config
}

// New builds an Orchestrator. store should already apply the store retry
// policy and model the model policy.
func New(store object.ContentStore, model llm.Analyzer, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		store:     store,
		validator: validate.New(cfg.MaxPayloadBytes),
		model:     model,
		cfg:       cfg,
	}
}

type run struct {
	req       AnalysisRequest
	requestID string
	started   time.Time
	stage     Stage
	language  validate.Language
	model     llm.Result
	outputKey string
	summary   string
}

// Run executes the pipeline and always returns an outcome. A failure in any
// stage ends the run; the report is written only after it rendered in full.
func (o *Orchestrator) Run(ctx context.Context, req AnalysisRequest) AnalysisOutcome {
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = WithRequestID(ctx, requestID)
	}
	r := &run{req: req, requestID: requestID, started: o.cfg.Now(), stage: StageStart}
	metrics.IncRunStarted()

	err := o.execute(ctx, r)
	return o.finish(ctx, r, err)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errkind.New(errkind.Internal, "pipeline", fmt.Errorf("panic during %s: %v", r.stage, p))
		}
	}()

	if err := r.req.Validate(); err != nil {
		return err
	}

	o.transition(r, StageFetching)
	if err := errkind.FromContext(ctx, "fetch"); err != nil {
		return err
	}
	content, err := o.store.Fetch(ctx, r.req.SourceContainer, r.req.SourceKey)
	if err != nil {
		return err
	}

	o.transition(r, StageValidating)
	lang, err := o.validator.Check(r.req.SourceKey, content.Bytes, content.SizeBytes)
	if err != nil {
		return err
	}
	r.language = lang

	o.transition(r, StageAnalyzing)
	if err := errkind.FromContext(ctx, "model analyze"); err != nil {
		return err
	}
	filename := path.Base(r.req.SourceKey)
	res, err := o.model.Analyze(ctx, llm.Input{
		Content:         content.Bytes,
		Filename:        filename,
		Language:        string(lang),
		PromptAdditions: r.req.PromptAdditions,
		ModelID:         r.req.ModelID,
	})
	// Source bytes are not needed past this point.
	content = object.Content{}
	r.model = res
	if err != nil {
		return err
	}

	o.transition(r, StageFormatting)
	analyzedAt := o.cfg.Now().UTC()
	doc, err := report.Render(res.Text, report.Metadata{
		Filename:   r.req.SourceKey,
		AnalyzedAt: analyzedAt,
		Language:   string(lang),
	})
	if err != nil {
		return err
	}
	suffix := ""
	if o.cfg.KeySuffix == KeySuffixHash {
		suffix = util.ShortHash(doc.Bytes(), suffixHashLen)
	}
	key, err := report.OutputKey(o.cfg.OutputPrefix, filename, analyzedAt, suffix)
	if err != nil {
		return err
	}
	r.summary = doc.Summary()

	o.transition(r, StagePersisting)
	if err := errkind.FromContext(ctx, "store put"); err != nil {
		return err
	}
	stored, err := o.store.Put(ctx, r.req.DestinationContainer, key, doc.Bytes(), object.PutOptions{
		ContentType: ReportContentType,
		Metadata: map[string]string{
			"original-file": headerSafe(r.req.SourceKey),
			"analysis-date": analyzedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		return err
	}
	r.outputKey = stored
	return nil
}

func (o *Orchestrator) transition(r *run, next Stage) {
	telemetry.Info("pipeline.stage", map[string]any{
		"request_id":        r.requestID,
		"source_container":  r.req.SourceContainer,
		"source_key":        r.req.SourceKey,
		"status_transition": string(r.stage) + "->" + string(next),
	})
	r.stage = next
}

func (o *Orchestrator) finish(ctx context.Context, r *run, err error) AnalysisOutcome {
	elapsed := o.cfg.Now().Sub(r.started)
	out := AnalysisOutcome{
		RequestID:             r.requestID,
		ProcessingTimeSeconds: math.Round(elapsed.Seconds()*1000) / 1000,
		DetectedLanguage:      string(r.language),
		ModelID:               r.model.ModelID,
		ModelAttempts:         r.model.Attempts,
	}
	if r.model.TokensUsed != nil {
		tokens := *r.model.TokensUsed
		out.TokensUsed = &tokens
	}
	metrics.ObserveRunDurationMs(float64(elapsed.Microseconds()) / 1000.0)

	fields := map[string]any{
		"request_id":       r.requestID,
		"source_container": r.req.SourceContainer,
		"source_key":       r.req.SourceKey,
		"duration_ms":      elapsed.Milliseconds(),
		"model_attempts":   r.model.Attempts,
	}

	if err == nil {
		out.Status = StatusSuccess
		out.OutputKey = r.outputKey
		out.Summary = r.summary
		metrics.IncRunSucceeded()
		fields["status_transition"] = string(r.stage) + "->" + string(StageDone)
		fields["output_key"] = r.outputKey
		fields["destination_container"] = r.req.DestinationContainer
		telemetry.Info("pipeline.stage", fields)
		return out
	}

	kind := classify(ctx, r.stage, err)
	out.Status = StatusError
	out.ErrorKind = kind
	out.ErrorMessage = errkind.Sanitize(err)
	metrics.IncRunFailed(string(kind))
	fields["status_transition"] = string(r.stage) + "->" + string(StageFailed)
	fields["error_kind"] = string(kind)
	fields["error"] = out.ErrorMessage
	if kind == errkind.Internal {
		telemetry.Error("pipeline.stage", fields)
	} else {
		telemetry.Warn("pipeline.stage", fields)
	}
	return out
}

// classify maps a stage error to exactly one kind.
func classify(ctx context.Context, stage Stage, err error) errkind.Kind {
	if kind, ok := errkind.KindOf(err); ok {
		return kind
	}
	if ctx.Err() != nil {
		return errkind.Timeout
	}
	return stage.defaultKind()
}

// headerSafe keeps metadata values within printable ASCII.
func headerSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			b.WriteByte('?')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
