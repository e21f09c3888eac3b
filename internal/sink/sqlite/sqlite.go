// Package sqlite implements a sink backend writing rows into a SQLite
// database via modernc.org/sqlite (pure Go, no cgo).
//
// All columns are TEXT: the row model is untyped strings and SQLite's
// affinity rules make TEXT the reliable round-trip choice here, mirroring how
// timestamps and keys are handled elsewhere in this codebase.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"eventetl/internal/sink"
)

func init() {
	sink.Register("sqlite", New)
}

type Writer struct {
	db *sql.DB
}

func New(ctx context.Context, cfg sink.Config) (sink.Writer, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Writer{db: db}, nil
}

func (w *Writer) Close() error { return w.db.Close() }

func (w *Writer) Open(ctx context.Context, spec sink.TableSpec) (sink.Table, error) {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = quoteIdent(c) + " TEXT"
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(spec.Name), strings.Join(cols, ", "))
	if _, err := w.db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	return &table{db: w.db, insert: insertSQL(spec), columns: spec.Columns}, nil
}

func insertSQL(spec sink.TableSpec) string {
	quoted := make([]string, len(spec.Columns))
	marks := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(spec.Name), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

type table struct {
	db      *sql.DB
	insert  string
	columns []string
}

func (t *table) Append(row map[string]any) error {
	args := make([]any, len(t.columns))
	for i, col := range t.columns {
		args[i] = ""
		if v, ok := row[col]; ok {
			args[i] = sink.Stringify(v)
		}
	}
	_, err := t.db.Exec(t.insert, args...)
	return err
}

// Close is a no-op; the connection belongs to the Writer.
func (t *table) Close() error { return nil }

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
