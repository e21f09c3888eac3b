// Package runner drives a full ingest run: one pass over every configured
// dataset, in declaration order, with per-dataset summaries and a total
// elapsed time at the end.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventetl/internal/config"
	"eventetl/internal/metrics"
	"eventetl/internal/pipeline"
	"eventetl/internal/quarantine"
	"eventetl/internal/sink"
)

// Logger is the minimal logging seam used for progress output.
type Logger interface {
	Printf(format string, v ...any)
}

// Runner executes ingest runs. The zero value is not usable; construct with
// New and override seams as needed.
type Runner struct {
	Log Logger

	// RunID tags emitted metrics so overlapping runs can be told apart.
	RunID string

	// Seams; tests swap these for fakes.
	NewWriter     func(ctx context.Context, cfg sink.Config) (sink.Writer, error)
	NewQuarantine func(logPath string) pipeline.Quarantiner
	Now           func() time.Time
}

func New(log Logger) *Runner {
	return &Runner{
		Log:       log,
		NewWriter: sink.New,
		NewQuarantine: func(logPath string) pipeline.Quarantiner {
			return quarantine.New(logPath)
		},
		Now: time.Now,
	}
}

// Run processes every dataset in cfg, in declaration order.
//
// A dataset that fails (unreadable schema, missing input dir, sink failure)
// does not stop the run: its error is reported and the remaining datasets
// still execute. The combined error is returned at the end. An interrupt
// (context cancellation) stops the run immediately.
func (r *Runner) Run(ctx context.Context, cfg config.Config) error {
	r.Log.Printf("Running...")
	start := r.Now()

	writer, err := r.NewWriter(ctx, cfg.Sink)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer writer.Close()

	q := r.NewQuarantine(cfg.ErrorLog)

	var failures []error
	for _, ds := range cfg.Datasets {
		r.Log.Printf("\nProcessing %s's data...", ds.Name)
		dsStart := r.Now()

		p := &pipeline.Pipeline{
			Dataset:            ds,
			ReplaceMissingData: cfg.ReplaceMissingData,
			Layout:             cfg.Layout,
			Writer:             writer,
			Quarantine:         q,
		}
		counters, err := p.Run(ctx)

		r.emit(ds.Name, counters, r.Now().Sub(dsStart))
		r.summarize(ds.Name, counters)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Log.Printf("dataset %q failed: %v", ds.Name, err)
			failures = append(failures, err)
		}
	}

	r.Log.Printf("Elapsed Time: %s", FormatElapsed(r.Now().Sub(start)))
	return errors.Join(failures...)
}

func (r *Runner) summarize(name string, c pipeline.Counters) {
	r.Log.Printf("Total JSON data files for %q: %d", name, c.FilesSeen)
	r.Log.Printf("Number of files that match schema: %d", c.Valid)
	r.Log.Printf("Number of files with schema errors: %d\n", c.Invalid)
}

func (r *Runner) emit(name string, c pipeline.Counters, elapsed time.Duration) {
	labels := metrics.Labels{"dataset": name}
	if r.RunID != "" {
		labels["run_id"] = r.RunID
	}
	metrics.IncCounter(metrics.FilesTotal, float64(c.FilesSeen), labels)
	metrics.IncCounter(metrics.ValidTotal, float64(c.Valid), labels)
	metrics.IncCounter(metrics.InvalidTotal, float64(c.Invalid), labels)
	metrics.IncCounter(metrics.RowsTotal, float64(c.RowsWritten), labels)
	metrics.ObserveHistogram(metrics.DatasetDuration, elapsed.Seconds(), labels)
}
