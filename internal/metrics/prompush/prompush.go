// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Batch jobs cannot be scraped, so observations
// accumulate in a private registry and Flush pushes the whole registry to the
// gateway under the job's grouping key.
package prompush

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"eventetl/internal/metrics"
)

// Backend implements metrics.Backend against a Pushgateway.
type Backend struct {
	pusher *push.Pusher

	mu       sync.Mutex
	reg      *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	hists    map[string]*prometheus.HistogramVec
}

// NewBackend constructs a backend pushing to gatewayURL under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL must be set")
	}
	if jobName == "" {
		jobName = "ingest"
	}

	reg := prometheus.NewRegistry()
	return &Backend{
		pusher:   push.New(gatewayURL, jobName).Gatherer(reg),
		reg:      reg,
		counters: make(map[string]*prometheus.CounterVec),
		hists:    make(map[string]*prometheus.HistogramVec),
	}, nil
}

// IncCounter implements metrics.Backend.
//
// The label key set of the first observation of a metric fixes that metric's
// schema; later observations must use the same keys (the Prometheus data
// model requires it). Mismatched observations are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	vec, ok := b.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labelKeys(labels))
		if err := b.reg.Register(vec); err != nil {
			b.mu.Unlock()
			return
		}
		b.counters[name] = vec
	}
	b.mu.Unlock()

	if m, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	vec, ok := b.hists[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name}, labelKeys(labels))
		if err := b.reg.Register(vec); err != nil {
			b.mu.Unlock()
			return
		}
		b.hists[name] = vec
	}
	b.mu.Unlock()

	if m, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Observe(value)
	}
}

// Flush pushes the registry to the gateway. Add (not Push) so concurrent jobs
// under the same job name don't clobber each other's groups.
func (b *Backend) Flush() error {
	return b.pusher.Add()
}

// Close pushes one final time.
func (b *Backend) Close() error {
	return b.Flush()
}

func labelKeys(labels metrics.Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
