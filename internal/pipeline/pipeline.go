// Package pipeline runs the per-dataset ingest loop: discover input files,
// validate each against the dataset schema, quarantine failures, and append
// accepted (or partially accepted) records to the output table(s).
//
// Per-file state machine:
//
//	Discovered -> Validated -> {Accepted, PartiallyAccepted, Rejected}
//	           -> (Projected & Written | Skipped)
//
// A schema violation is never fatal to the run: the file is logged, copied
// aside, and either skipped or written with blanks, per policy. I/O failures
// on the dataset's own resources (schema, input dir, output tables) abort the
// dataset and surface to the caller.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"eventetl/internal/config"
	"eventetl/internal/project"
	"eventetl/internal/schema"
	"eventetl/internal/sink"
)

// inputExt is the only recognized input extension; other directory entries
// are skipped without touching the counters.
const inputExt = ".json"

// Counters accumulate per dataset and reset between datasets.
type Counters struct {
	FilesSeen   int
	Valid       int
	Invalid     int
	RowsWritten int
}

// Quarantiner persists one rejected input file.
type Quarantiner interface {
	Quarantine(mismatchDir, filePath, fileName, message string) error
}

// Pipeline processes one dataset. Construct with the dataset descriptor and
// run-wide policy, then call Run once.
type Pipeline struct {
	Dataset config.Dataset

	// ReplaceMissingData enables partial acceptance for documents whose only
	// violations are missing required properties.
	ReplaceMissingData bool

	Layout config.Layout

	Writer     sink.Writer
	Quarantine Quarantiner

	// NewValidator is a seam for tests; nil means schema.NewValidator.
	NewValidator func(path string) (*schema.Validator, error)
}

// Run executes the dataset loop and returns the final counters.
//
// Counters are also returned alongside an error so callers can report partial
// progress when a dataset aborts midway.
func (p *Pipeline) Run(ctx context.Context) (Counters, error) {
	var c Counters

	newValidator := p.NewValidator
	if newValidator == nil {
		newValidator = schema.NewValidator
	}
	validator, err := newValidator(p.Dataset.SchemaFile)
	if err != nil {
		return c, fmt.Errorf("dataset %q: %w", p.Dataset.Name, err)
	}

	normalizer, err := project.NormalizerFor(p.Dataset.Normalize)
	if err != nil {
		return c, fmt.Errorf("dataset %q: %w", p.Dataset.Name, err)
	}

	tables, err := p.openTables(ctx, validator.Raw())
	if err != nil {
		return c, fmt.Errorf("dataset %q: %w", p.Dataset.Name, err)
	}
	defer tables.close()

	entries, err := os.ReadDir(p.Dataset.DataDir)
	if err != nil {
		return c, fmt.Errorf("dataset %q: read input dir: %w", p.Dataset.Name, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		// Subdirectories are not recursed into.
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), inputExt) {
			continue
		}
		c.FilesSeen++

		filePath := filepath.Join(p.Dataset.DataDir, entry.Name())

		doc, outcome, msg, err := p.evaluate(validator, filePath)
		if err != nil {
			return c, fmt.Errorf("dataset %q: %w", p.Dataset.Name, err)
		}

		if outcome == accepted {
			c.Valid++
		} else {
			c.Invalid++
			// Invalid files are always quarantined, even when the record is
			// still written with blanks.
			if err := p.Quarantine.Quarantine(p.Dataset.MismatchDir, filePath, entry.Name(), msg); err != nil {
				return c, fmt.Errorf("dataset %q: quarantine %s: %w", p.Dataset.Name, entry.Name(), err)
			}
			if outcome == rejected {
				continue
			}
		}

		if err := tables.write(doc, normalizer); err != nil {
			return c, fmt.Errorf("dataset %q: write %s: %w", p.Dataset.Name, entry.Name(), err)
		}
		c.RowsWritten++
	}

	return c, nil
}

type outcome int

const (
	accepted outcome = iota
	partiallyAccepted
	rejected
)

// evaluate reads and validates one input file and applies the acceptance
// policy. The returned message describes the first violation (for the error
// log); err is reserved for file I/O failures, which abort the dataset.
func (p *Pipeline) evaluate(validator *schema.Validator, filePath string) (map[string]any, outcome, string, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return nil, rejected, "", fmt.Errorf("read %s: %w", filePath, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		// Unparseable input is handled like any other schema mismatch:
		// quarantined and rejected, never fatal.
		return nil, rejected, fmt.Sprintf("invalid JSON: %v", err), nil
	}

	res := validator.Validate(doc)
	switch {
	case res.Valid:
		return doc, accepted, res.Message(), nil
	case res.MissingRequiredOnly() && p.ReplaceMissingData:
		return doc, partiallyAccepted, res.Message(), nil
	default:
		return doc, rejected, res.Message(), nil
	}
}

// tableSet holds the open output table(s) for one dataset run. Split layout
// has payload+metadata; single layout has just the denormalized table.
type tableSet struct {
	layout   config.Layout
	payload  sink.Table
	metadata sink.Table
	single   sink.Table
}

func (p *Pipeline) openTables(ctx context.Context, rawSchema map[string]any) (*tableSet, error) {
	payloadFields, metadataFields, err := project.FieldNames(rawSchema)
	if err != nil {
		return nil, err
	}

	ts := &tableSet{layout: p.Layout}
	switch p.Layout {
	case config.LayoutSingle:
		// One denormalized table: payload columns then metadata columns, no
		// synthetic foreign key (event_id already sits among the metadata
		// fields).
		columns := append(payloadFields[:len(payloadFields)-1:len(payloadFields)-1], metadataFields...)
		ts.single, err = p.Writer.Open(ctx, sink.TableSpec{
			Name:    p.Dataset.Name,
			Path:    p.Dataset.OutputFile,
			Columns: columns,
		})
		if err != nil {
			return nil, err
		}

	default: // split
		ts.payload, err = p.Writer.Open(ctx, sink.TableSpec{
			Name:    p.Dataset.Name,
			Path:    p.Dataset.PayloadFile,
			Columns: payloadFields,
		})
		if err != nil {
			return nil, err
		}
		ts.metadata, err = p.Writer.Open(ctx, sink.TableSpec{
			Name:    p.Dataset.Name + "_metadata",
			Path:    p.Dataset.MetadataFile,
			Columns: metadataFields,
		})
		if err != nil {
			ts.close()
			return nil, err
		}
	}
	return ts, nil
}

func (ts *tableSet) write(doc map[string]any, n project.Normalizer) error {
	payloadRow, metadataRow := project.Rows(doc, n)

	if ts.layout == config.LayoutSingle {
		return ts.single.Append(project.Merge(payloadRow, metadataRow))
	}
	if err := ts.payload.Append(payloadRow); err != nil {
		return err
	}
	return ts.metadata.Append(metadataRow)
}

func (ts *tableSet) close() {
	for _, t := range []sink.Table{ts.payload, ts.metadata, ts.single} {
		if t != nil {
			_ = t.Close()
		}
	}
}
