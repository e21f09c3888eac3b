package config

import (
	"os"
	"path/filepath"
	"testing"

	"eventetl/internal/sink"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"job": "test",
		"datasets": [{
			"name": "users",
			"schema_file": "s.json",
			"data_dir": "users",
			"payload_file": "users.csv",
			"metadata_file": "users_metadata.csv",
			"schema_mismatch_dir": "users_schema_mismatches"
		}]
	}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Layout != LayoutSplit {
		t.Errorf("layout = %q, want default %q", cfg.Layout, LayoutSplit)
	}
	if cfg.ErrorLog != "errors.log" {
		t.Errorf("error log = %q, want default errors.log", cfg.ErrorLog)
	}
	if cfg.Sink.Kind != "csv" {
		t.Errorf("sink kind = %q, want default csv", cfg.Sink.Kind)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INGEST_SINK_DSN", "file:override.db")
	t.Setenv("INGEST_ERROR_LOG", "/var/log/ingest-errors.log")

	cfg, err := Load(writeConfig(t, `{
		"sink": {"kind": "sqlite", "dsn": "file:from-config.db"},
		"error_log": "from-config.log",
		"datasets": []
	}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Sink.DSN != "file:override.db" {
		t.Errorf("sink dsn = %q, want env override", cfg.Sink.DSN)
	}
	if cfg.ErrorLog != "/var/log/ingest-errors.log" {
		t.Errorf("error log = %q, want env override", cfg.ErrorLog)
	}
}

func TestLoad_ExpandsDSNEnv(t *testing.T) {
	t.Setenv("PGPASS", "hunter2")

	cfg, err := Load(writeConfig(t, `{
		"sink": {"kind": "postgres", "dsn": "postgres://etl:${PGPASS}@db/ingest"},
		"datasets": []
	}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sink.DSN != "postgres://etl:hunter2@db/ingest" {
		t.Errorf("dsn = %q, want env expanded", cfg.Sink.DSN)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, `{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func validConfig() Config {
	return Config{
		Layout:   LayoutSplit,
		ErrorLog: "errors.log",
		Sink:     sink.Config{Kind: "csv"},
		Datasets: []Dataset{{
			Name:         "users",
			SchemaFile:   "schema.json",
			DataDir:      "users",
			PayloadFile:  "users.csv",
			MetadataFile: "users_metadata.csv",
			MismatchDir:  "users_schema_mismatches",
		}},
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	if issues := Validate(validConfig()); len(issues) != 0 {
		t.Fatalf("issues = %+v, want none", issues)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{"bad layout", func(c *Config) { c.Layout = "both" }, "layout"},
		{"no datasets", func(c *Config) { c.Datasets = nil }, "datasets"},
		{"missing name", func(c *Config) { c.Datasets[0].Name = "" }, "datasets[0].name"},
		{"missing schema", func(c *Config) { c.Datasets[0].SchemaFile = "" }, "datasets[0].schema_file"},
		{"missing data dir", func(c *Config) { c.Datasets[0].DataDir = "" }, "datasets[0].data_dir"},
		{"missing mismatch dir", func(c *Config) { c.Datasets[0].MismatchDir = "" }, "datasets[0].schema_mismatch_dir"},
		{"split needs payload file", func(c *Config) { c.Datasets[0].PayloadFile = "" }, "datasets[0].payload_file"},
		{"split needs metadata file", func(c *Config) { c.Datasets[0].MetadataFile = "" }, "datasets[0].metadata_file"},
		{"single needs output file", func(c *Config) { c.Layout = LayoutSingle }, "datasets[0].output_file"},
		{"duplicate names", func(c *Config) { c.Datasets = append(c.Datasets, c.Datasets[0]) }, "datasets[1].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)

			issues := Validate(cfg)
			if !HasError(issues) {
				t.Fatalf("want an error issue, got %+v", issues)
			}
			found := false
			for _, iss := range issues {
				if iss.Path == tt.wantPath && iss.Severity == SeverityError {
					found = true
				}
			}
			if !found {
				t.Errorf("no error at path %q in %+v", tt.wantPath, issues)
			}
		})
	}
}

func TestValidate_SharedMetadataFileWarns(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	second := cfg.Datasets[0]
	second.Name = "cards"
	second.PayloadFile = "cards.csv"
	cfg.Datasets = append(cfg.Datasets, second) // same metadata_file

	issues := Validate(cfg)
	if HasError(issues) {
		t.Fatalf("shared metadata file must be a warning, got %+v", issues)
	}
	if len(issues) != 1 || issues[0].Severity != SeverityWarn {
		t.Fatalf("issues = %+v, want exactly one warning", issues)
	}
}
