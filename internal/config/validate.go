package config

import "fmt"

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one validation finding. Path is a dotted location into the config
// document (e.g. "datasets[1].schema_file").
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarn, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Validate checks cfg for structural problems and returns every issue found.
// Callers decide whether warnings are fatal; the CLI aborts only on
// SeverityError.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if cfg.Layout != LayoutSplit && cfg.Layout != LayoutSingle {
		issues = append(issues, errorf("layout", "must be %q or %q, got %q", LayoutSplit, LayoutSingle, cfg.Layout))
	}
	if cfg.Sink.Kind == "" {
		issues = append(issues, errorf("sink.kind", "must be set"))
	}
	if len(cfg.Datasets) == 0 {
		issues = append(issues, errorf("datasets", "must not be empty"))
	}

	seen := map[string]int{}
	metadataFiles := map[string]string{}

	for i, ds := range cfg.Datasets {
		path := fmt.Sprintf("datasets[%d]", i)

		if ds.Name == "" {
			issues = append(issues, errorf(path+".name", "must be set"))
		} else if prev, dup := seen[ds.Name]; dup {
			issues = append(issues, errorf(path+".name", "duplicate dataset name %q (also datasets[%d])", ds.Name, prev))
		} else {
			seen[ds.Name] = i
		}

		if ds.SchemaFile == "" {
			issues = append(issues, errorf(path+".schema_file", "must be set"))
		}
		if ds.DataDir == "" {
			issues = append(issues, errorf(path+".data_dir", "must be set"))
		}
		if ds.MismatchDir == "" {
			issues = append(issues, errorf(path+".schema_mismatch_dir", "must be set"))
		}

		switch cfg.Layout {
		case LayoutSplit:
			if ds.PayloadFile == "" {
				issues = append(issues, errorf(path+".payload_file", "must be set for split layout"))
			}
			if ds.MetadataFile == "" {
				issues = append(issues, errorf(path+".metadata_file", "must be set for split layout"))
			} else if other, shared := metadataFiles[ds.MetadataFile]; shared {
				// Legal (append mode) but almost always a mistake: the second
				// dataset appends rows under the first dataset's header.
				issues = append(issues, warnf(path+".metadata_file", "%q is also the metadata table of dataset %q; rows from both will be interleaved under one header", ds.MetadataFile, other))
			} else {
				metadataFiles[ds.MetadataFile] = ds.Name
			}
		case LayoutSingle:
			if ds.OutputFile == "" {
				issues = append(issues, errorf(path+".output_file", "must be set for single layout"))
			}
		}
	}

	return issues
}

// HasError reports whether any issue is SeverityError.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
