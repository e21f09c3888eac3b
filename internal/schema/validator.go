// Package schema adapts a JSON Schema engine for the ingest pipeline.
//
// The accept/discard policy downstream depends on WHY a document failed, so
// this package exposes violations with a discriminated kind instead of a
// free-text message: KindMissingRequired covers "required" keyword failures,
// KindOther covers everything else (type, pattern, enum, ...). Classification
// reads the engine's structured keyword location, never the human-readable
// message.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind discriminates violation categories the pipeline policy cares about.
type Kind int

const (
	// KindOther is any violation that is not a missing required property.
	KindOther Kind = iota

	// KindMissingRequired is a failed "required" keyword: one or more
	// properties the schema demands are absent from the document.
	KindMissingRequired
)

// Violation is one leaf schema violation.
type Violation struct {
	Kind         Kind
	InstancePath string // JSON pointer into the document
	KeywordPath  string // JSON pointer into the schema (keyword location)
	Message      string
}

// Result is the outcome of validating one document.
type Result struct {
	Valid      bool
	Violations []Violation
}

// Message renders the result for the error log: "success" when valid,
// otherwise the first violation's description.
func (r Result) Message() string {
	if r.Valid {
		return "success"
	}
	if len(r.Violations) == 0 {
		return "schema violation"
	}
	v := r.Violations[0]
	if v.InstancePath == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.InstancePath, v.Message)
}

// MissingRequiredOnly reports whether the document failed solely because of
// missing required properties. Such documents are candidates for partial
// acceptance (missing fields written blank).
func (r Result) MissingRequiredOnly() bool {
	if r.Valid || len(r.Violations) == 0 {
		return false
	}
	for _, v := range r.Violations {
		if v.Kind != KindMissingRequired {
			return false
		}
	}
	return true
}

// Validator validates event documents against one dataset's schema.
type Validator struct {
	compiled *jsonschema.Schema
	raw      map[string]any
}

// NewValidator compiles the schema at path.
//
// Edge cases:
//   - The schema must require "payload" and "metadata" at the top level.
//     Projection assumes both members exist for every accepted document, and
//     that assumption has to be enforced here rather than patched over at
//     projection time.
//
// Errors:
//   - Unreadable or uncompilable schema files.
//   - Schemas missing the top-level payload/metadata requirement.
func NewValidator(path string) (*Validator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := checkTopLevelRequired(raw); err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(path, strings.NewReader(string(b))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{compiled: compiled, raw: raw}, nil
}

// Raw returns the decoded schema document. Callers must treat it as
// read-only; field-name derivation copies what it needs.
func (v *Validator) Raw() map[string]any { return v.raw }

// Validate checks doc (a decoded JSON value) against the schema.
// It never returns an error: engine failures surface as violations.
func (v *Validator) Validate(doc any) Result {
	err := v.compiled.Validate(doc)
	if err == nil {
		return Result{Valid: true}
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return Result{Violations: []Violation{{Kind: KindOther, Message: err.Error()}}}
	}
	return Result{Violations: collectLeaves(ve, nil)}
}

// collectLeaves walks the violation tree depth-first and keeps only leaf
// causes; interior nodes just restate their children.
func collectLeaves(ve *jsonschema.ValidationError, out []Violation) []Violation {
	if len(ve.Causes) == 0 {
		out = append(out, Violation{
			Kind:         classify(ve.KeywordLocation),
			InstancePath: ve.InstanceLocation,
			KeywordPath:  ve.KeywordLocation,
			Message:      ve.Message,
		})
		return out
	}
	for _, c := range ve.Causes {
		out = collectLeaves(c, out)
	}
	return out
}

func classify(keywordLocation string) Kind {
	if strings.HasSuffix(keywordLocation, "/required") {
		return KindMissingRequired
	}
	return KindOther
}

func checkTopLevelRequired(raw map[string]any) error {
	req, _ := raw["required"].([]any)
	have := map[string]bool{}
	for _, r := range req {
		if s, ok := r.(string); ok {
			have[s] = true
		}
	}
	if !have["payload"] || !have["metadata"] {
		return fmt.Errorf(`top-level "required" must include "payload" and "metadata"`)
	}
	return nil
}
