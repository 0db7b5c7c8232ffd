package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal   atomic.Uint64
	runsSucceededTotal atomic.Uint64
	modelRetriesTotal  atomic.Uint64
	modelCallsTotal    atomic.Uint64
	circuitOpenTotal   atomic.Uint64
	storeRetriesTotal  atomic.Uint64
	runsQueuedTotal    atomic.Uint64

	jobsReceivedTotal             atomic.Uint64
	jobsCompletedTotal            atomic.Uint64
	jobsFailedTotal               atomic.Uint64
	jobsDeletedUnrecoverableTotal atomic.Uint64

	runsFailed = newLabeledCounter()

	runDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncRunStarted increments the started counter.
func IncRunStarted() {
	runsStartedTotal.Add(1)
}

// IncRunSucceeded increments the succeeded counter.
func IncRunSucceeded() {
	runsSucceededTotal.Add(1)
}

// IncRunFailed increments the failed counter for an error kind.
func IncRunFailed(kind string) {
	runsFailed.Inc(kind)
}

// IncModelCalls counts every contact with the model service.
func IncModelCalls() {
	modelCallsTotal.Add(1)
}

// IncModelRetries counts model calls retried after Throttled/Unavailable.
func IncModelRetries() {
	modelRetriesTotal.Add(1)
}

// IncCircuitOpen counts calls rejected by the open breaker.
func IncCircuitOpen() {
	circuitOpenTotal.Add(1)
}

// IncStoreRetries counts content store operations retried after Transient.
func IncStoreRetries() {
	storeRetriesTotal.Add(1)
}

// IncRunQueued counts runs handed to the worker queue.
func IncRunQueued() {
	runsQueuedTotal.Add(1)
}

// IncJobsReceived counts queue messages picked up by a worker.
func IncJobsReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobsCompleted counts queue messages processed and deleted.
func IncJobsCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobsFailed counts queue messages left for redelivery.
func IncJobsFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobsDeletedUnrecoverable counts malformed queue messages dropped.
func IncJobsDeletedUnrecoverable() {
	jobsDeletedUnrecoverableTotal.Add(1)
}

// ObserveRunDurationMs records a pipeline run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_runs_started_total", "Pipeline runs started", runsStartedTotal.Load())
	writeCounter(&buf, "analysis_runs_succeeded_total", "Pipeline runs that wrote a report", runsSucceededTotal.Load())
	writeLabeledCounter(&buf, "analysis_runs_failed_total", "Pipeline runs failed by error kind", "kind", runsFailed.Snapshot())
	writeCounter(&buf, "model_calls_total", "Model service contacts", modelCallsTotal.Load())
	writeCounter(&buf, "model_retries_total", "Model calls retried", modelRetriesTotal.Load())
	writeCounter(&buf, "model_circuit_open_total", "Model calls rejected by the open circuit", circuitOpenTotal.Load())
	writeCounter(&buf, "store_retries_total", "Content store operations retried", storeRetriesTotal.Load())
	writeCounter(&buf, "analysis_runs_queued_total", "Runs handed to the worker queue", runsQueuedTotal.Load())
	writeCounter(&buf, "analysis_jobs_received_total", "Queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Queue messages processed and deleted", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Queue messages left for redelivery", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_deleted_unrecoverable_total", "Malformed queue messages dropped", jobsDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "analysis_run_duration_ms", "Pipeline run duration in milliseconds", runDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: map[string]uint64{}}
}

func (c *labeledCounter) Inc(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[label]++
}

func (c *labeledCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound holds it; Render
// accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
