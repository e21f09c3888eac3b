// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Ingest runs are short-lived batch jobs, but long backfills do happen, so
// the backend buffers observations in memory, flushes on a ticker, and
// flushes one final time on Close. A run killed with SIGKILL loses the last
// window; nothing a client library can do about that.
//
// Concurrency model:
//   - the pipeline calls IncCounter/ObserveHistogram at any time
//   - Flush snapshots+resets buffers under a mutex, then submits out-of-lock
//   - the flush loop calls Flush periodically; Close stops the loop
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"eventetl/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "ingest".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"run_id:<uuid>"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; unit tests use
	// them to avoid real network submission and nondeterministic tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics. The SDK
// only exposes the concrete *datadogV2.MetricsApi, which cannot be stubbed
// without real HTTP; depending on this interface keeps tests deterministic.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	// counters and samples are keyed by "<metric>|<sorted tags>".
	counters map[string]*counterSeries
	samples  map[string]*sampleSeries
}

type counterSeries struct {
	metric string
	tags   []string
	value  float64
}

type sampleSeries struct {
	metric string
	tags   []string
	values []float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "ingest".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors:
//   - Client construction itself does not fail under normal conditions;
//     network errors surface from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "ingest"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[string]*counterSeries),
		samples:    make(map[string]*sampleSeries),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
// Close once; a second call panics on the closed stop channel.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	tags := labelTags(labels)
	key := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.counters[key]
	if !ok {
		s = &counterSeries{metric: name, tags: tags}
		b.counters[key] = s
	}
	s.value += delta
}

// ObserveHistogram implements metrics.Backend. Samples are submitted as
// gauge points; Datadog computes rollups server-side.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	tags := labelTags(labels)
	key := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.samples[key]
	if !ok {
		s = &sampleSeries{metric: name, tags: tags}
		b.samples[key] = s
	}
	s.values = append(s.values, value)
}

// snapshotAndReset grabs current buffered metrics and resets the buffers.
// Takes the lock internally and returns detached maps.
func (b *Backend) snapshotAndReset() (map[string]*counterSeries, map[string]*sampleSeries) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counters, samples := b.counters, b.samples
	b.counters = make(map[string]*counterSeries)
	b.samples = make(map[string]*sampleSeries)
	return counters, samples
}

// Flush submits buffered metrics and resets local buffers.
//
// Buffers are reset even if submission fails, to keep the pipeline fast and
// avoid blocking future writes; delivery here is best-effort.
func (b *Backend) Flush() error {
	counters, samples := b.snapshotAndReset()
	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(counters, samples, b.now().Unix())}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure (no locks, no network, no clocks), which keeps the
// naming/tagging contract unit-testable.
func (b *Backend) buildSeries(counters map[string]*counterSeries, samples map[string]*sampleSeries, nowUnix int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(counters)+len(samples))

	point := func(v float64) []datadogV2.MetricPoint {
		return []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(v)}}
	}

	for _, key := range sortedKeys(counters) {
		s := counters[key]
		if s.value == 0 {
			continue
		}
		out = append(out, datadogV2.MetricSeries{
			Metric: metricName(s.metric),
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: point(s.value),
			Tags:   withTags(b.baseTags, s.tags),
		})
	}

	for _, key := range sortedKeys(samples) {
		s := samples[key]
		for _, v := range s.values {
			out = append(out, datadogV2.MetricSeries{
				Metric: metricName(s.metric),
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(v),
				Tags:   withTags(b.baseTags, s.tags),
			})
		}
	}

	return out
}

// metricName converts the internal snake_case name to Datadog dot notation
// (ingest_files_total -> ingest.files.total).
func metricName(name string) string {
	return strings.ReplaceAll(name, "_", ".")
}

func labelTags(labels metrics.Labels) []string {
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		tags = append(tags, k+":"+v)
	}
	sort.Strings(tags)
	return tags
}

func bufferKey(name string, sortedTags []string) string {
	return name + "|" + strings.Join(sortedTags, ",")
}

func withTags(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	out = append(out, extra...)
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
