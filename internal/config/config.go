// Package config defines the ingest pipeline configuration: the dataset
// descriptors, the missing-data policy, the output layout, and the sink
// selection. The config is decoded once at startup and passed by value into
// the runner and pipelines; nothing in this package is mutable process state.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"eventetl/internal/sink"
)

// Layout selects how accepted records are laid out across output tables.
type Layout string

const (
	// LayoutSplit writes two tables per dataset: a payload table carrying a
	// synthetic event_id foreign key, and a metadata table keyed by event_id.
	LayoutSplit Layout = "split"

	// LayoutSingle writes one denormalized table per dataset whose columns are
	// the payload fields followed by the metadata fields.
	LayoutSingle Layout = "single"
)

// Dataset describes one named data source. Descriptors are fixed for the
// lifetime of a run.
type Dataset struct {
	Name       string `json:"name"`
	SchemaFile string `json:"schema_file"`
	DataDir    string `json:"data_dir"`

	// Split layout outputs. For SQL sinks these double as table names
	// (derived from Name); for the CSV sink they are file paths.
	PayloadFile  string `json:"payload_file,omitempty"`
	MetadataFile string `json:"metadata_file,omitempty"`

	// Single layout output.
	OutputFile string `json:"output_file,omitempty"`

	MismatchDir string `json:"schema_mismatch_dir"`

	// Normalize names the projector normalization strategy for this dataset
	// ("" for none). Strategies are registered in internal/project.
	Normalize string `json:"normalize,omitempty"`
}

// Config is the full pipeline configuration.
type Config struct {
	Job string `json:"job"`

	// ReplaceMissingData controls partial acceptance: when true, records that
	// fail validation solely because required properties are missing are still
	// written, with the missing fields blank. When false they are discarded
	// (but always quarantined either way).
	ReplaceMissingData bool `json:"replace_missing_data"`

	Layout   Layout      `json:"layout,omitempty"`
	ErrorLog string      `json:"error_log,omitempty"`
	Sink     sink.Config `json:"sink"`
	Datasets []Dataset   `json:"datasets"`
}

// envOverrides are deploy-varying values that may be supplied through the
// environment (or an optional .env file) instead of the config file.
type envOverrides struct {
	SinkDSN  string `envconfig:"INGEST_SINK_DSN"`
	ErrorLog string `envconfig:"INGEST_ERROR_LOG"`
}

// Load decodes the JSON config at path, applies defaults and environment
// overrides, and returns the result. Validation is a separate step (Validate)
// so callers can report all issues at once.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// .env is optional, mainly for local development.
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if env.SinkDSN != "" {
		cfg.Sink.DSN = env.SinkDSN
	}
	if env.ErrorLog != "" {
		cfg.ErrorLog = env.ErrorLog
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Layout == "" {
		cfg.Layout = LayoutSplit
	}
	if cfg.ErrorLog == "" {
		cfg.ErrorLog = "errors.log"
	}
	if cfg.Sink.Kind == "" {
		cfg.Sink.Kind = "csv"
	}
	cfg.Sink.DSN = os.ExpandEnv(cfg.Sink.DSN)
}
