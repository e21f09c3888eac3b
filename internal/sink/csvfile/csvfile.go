// Package csvfile implements the default sink backend: append-mode CSV files.
//
// Header contract (load-bearing for repeated runs):
//   - Output files are opened O_APPEND and never truncated.
//   - The header row is written exactly when the file is empty at open time
//     (position zero). Re-running against a non-empty file appends rows only,
//     never a second header.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"eventetl/internal/sink"
)

func init() {
	sink.Register("csv", New)
}

// Writer opens CSV tables. It holds no shared state; each table owns its file
// handle for the duration of the dataset loop.
type Writer struct{}

func New(ctx context.Context, cfg sink.Config) (sink.Writer, error) {
	return &Writer{}, nil
}

func (w *Writer) Close() error { return nil }

func (w *Writer) Open(ctx context.Context, spec sink.TableSpec) (sink.Table, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("csv table %q: path must be set", spec.Name)
	}
	if dir := filepath.Dir(spec.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.OpenFile(spec.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", spec.Path, err)
	}

	t := &table{f: f, w: csv.NewWriter(f), columns: spec.Columns}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat table %q: %w", spec.Path, err)
	}
	if st.Size() == 0 {
		if err := t.writeHeader(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header %q: %w", spec.Path, err)
		}
	}
	return t, nil
}

type table struct {
	f       *os.File
	w       *csv.Writer
	columns []string
}

func (t *table) writeHeader() error {
	if err := t.w.Write(t.columns); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

// Append aligns row to the column set: extra fields are dropped, missing
// fields render empty. Each row is flushed through to the file so an
// interrupted run loses at most the row in flight.
func (t *table) Append(row map[string]any) error {
	record := make([]string, len(t.columns))
	for i, col := range t.columns {
		if v, ok := row[col]; ok {
			record[i] = sink.Stringify(v)
		}
	}
	if err := t.w.Write(record); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

func (t *table) Close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		_ = t.f.Close()
		return err
	}
	return t.f.Close()
}
