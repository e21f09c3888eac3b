// Package sink defines the table-writer seam between the dataset pipeline and
// its output medium. Backends (csv file, sqlite, postgres, mssql) register
// themselves by kind; the pipeline only ever sees Writer and Table.
package sink

import (
	"context"
	"fmt"
	"sync"
)

// Config selects a backend. For the csv backend DSN is unused (paths come
// from each TableSpec); for SQL backends it is the connection string.
type Config struct {
	Kind string `json:"kind"`
	DSN  string `json:"dsn,omitempty"`
}

// TableSpec describes one output table.
type TableSpec struct {
	// Name is the logical table name; SQL backends use it as the table name.
	Name string

	// Path is the output file location; file-based backends use it and SQL
	// backends ignore it.
	Path string

	// Columns is the exact, ordered column set. Appended rows are aligned to
	// it: fields outside the set are dropped, absent fields render empty.
	Columns []string
}

// Table is one open output table.
//
// Append writes a single row. Values are stringified by the backend; callers
// pass them through untyped.
type Table interface {
	Append(row map[string]any) error
	Close() error
}

// Writer opens tables for one run. Close releases backend resources shared
// across tables (connections); tables must be closed first.
type Writer interface {
	Open(ctx context.Context, spec TableSpec) (Table, error)
	Close() error
}

type factory func(ctx context.Context, cfg Config) (Writer, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Backends call this from init().
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered. Duplicate
//     registration indicates ambiguous backend selection and must fail fast.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("sink: Register called with empty kind")
	}
	if f == nil {
		panic("sink: Register called with nil factory")
	}
	if _, dup := factories[kind]; dup {
		panic("sink: Register called twice for kind " + kind)
	}
	factories[kind] = f
}

// New constructs a Writer for cfg.Kind.
func New(ctx context.Context, cfg Config) (Writer, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("sink: unsupported kind %q", cfg.Kind)
	}
	return f(ctx, cfg)
}
