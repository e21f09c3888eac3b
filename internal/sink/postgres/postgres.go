// Package postgres implements a sink backend writing rows into Postgres
// through a pgx pool. Tables are created if absent with all-TEXT columns,
// matching the untyped row model.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"eventetl/internal/sink"
)

func init() {
	sink.Register("postgres", New)
}

type Writer struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg sink.Config) (sink.Writer, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Writer{pool: pool}, nil
}

func (w *Writer) Close() error {
	w.pool.Close()
	return nil
}

func (w *Writer) Open(ctx context.Context, spec sink.TableSpec) (sink.Table, error) {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = quoteIdent(c) + " TEXT"
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(spec.Name), strings.Join(cols, ", "))
	if _, err := w.pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	return &table{pool: w.pool, insert: insertSQL(spec), columns: spec.Columns}, nil
}

func insertSQL(spec sink.TableSpec) string {
	quoted := make([]string, len(spec.Columns))
	marks := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		quoted[i] = quoteIdent(c)
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(spec.Name), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

type table struct {
	pool    *pgxpool.Pool
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
	_, err := t.pool.Exec(context.Background(), t.insert, args...)
	return err
}

// Close is a no-op; the pool belongs to the Writer.
func (t *table) Close() error { return nil }

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
