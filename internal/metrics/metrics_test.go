package metrics

import (
	"sync"
	"testing"
)

type captureBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	flushed  int
}

func newCaptureBackend() *captureBackend {
	return &captureBackend{
		counters: map[string]float64{},
		samples:  map[string][]float64{},
	}
}

func (b *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[name] += delta
}

func (b *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[name] = append(b.samples[name], value)
}

func (b *captureBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed++
	return nil
}

func TestSetBackendRoutesCalls(t *testing.T) {
	b := newCaptureBackend()
	SetBackend(b)
	t.Cleanup(func() { SetBackend(nil) })

	IncCounter(FilesTotal, 3, Labels{"dataset": "users"})
	ObserveHistogram(DatasetDuration, 1.5, Labels{"dataset": "users"})
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if b.counters[FilesTotal] != 3 {
		t.Errorf("counter = %v, want 3", b.counters[FilesTotal])
	}
	if len(b.samples[DatasetDuration]) != 1 || b.samples[DatasetDuration][0] != 1.5 {
		t.Errorf("samples = %v, want [1.5]", b.samples[DatasetDuration])
	}
	if b.flushed != 1 {
		t.Errorf("flushed = %d, want 1", b.flushed)
	}
}

// The nop default must swallow everything; SetBackend(nil) restores it.
func TestNopDefault(t *testing.T) {
	SetBackend(nil)

	IncCounter(ValidTotal, 1, nil)
	ObserveHistogram(DatasetDuration, 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush: %v", err)
	}
}
