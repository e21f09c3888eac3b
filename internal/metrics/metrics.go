// Package metrics is the thin seam between the ingest pipeline and whatever
// metrics system a deployment uses. The core depends only on Backend; actual
// emitters (Datadog, Prometheus Pushgateway) live in subpackages and are
// selected at startup. The default backend is a nop, so the pipeline never
// pays for metrics it doesn't use.
package metrics

import "sync"

// Labels are metric dimensions (e.g. dataset name, run id).
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use and must never block the
// caller on network I/O; buffer and submit on Flush instead.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names emitted by the run driver.
const (
	FilesTotal      = "ingest_files_total"
	ValidTotal      = "ingest_valid_total"
	InvalidTotal    = "ingest_invalid_total"
	RowsTotal       = "ingest_rows_written_total"
	DatasetDuration = "ingest_dataset_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Call once at startup,
// before the run begins.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forces submission of buffered metrics.
func Flush() error {
	return current().Flush()
}
