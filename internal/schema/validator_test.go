package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["payload", "metadata"],
  "properties": {
    "payload": {
      "type": "object",
      "required": ["name", "age"],
      "properties": {
        "name": { "type": "string" },
        "age": { "type": "integer" }
      }
    },
    "metadata": {
      "type": "object",
      "required": ["event_id"],
      "properties": {
        "event_id": { "type": "string" }
      }
    }
  }
}`

func writeSchema(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return path
}

func mustValidator(t *testing.T, body string) *Validator {
	t.Helper()
	v, err := NewValidator(writeSchema(t, body))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		t.Fatalf("decode doc: %v", err)
	}
	return v
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	v := mustValidator(t, testSchema)
	res := v.Validate(decode(t, `{
		"payload":  {"name": "Ada", "age": 36},
		"metadata": {"event_id": "E1"}
	}`))

	if !res.Valid {
		t.Fatalf("expected valid, got violations: %+v", res.Violations)
	}
	if got := res.Message(); got != "success" {
		t.Fatalf("Message() = %q, want %q", got, "success")
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	t.Parallel()

	v := mustValidator(t, testSchema)
	res := v.Validate(decode(t, `{
		"payload":  {"name": "Ada"},
		"metadata": {"event_id": "E1"}
	}`))

	if res.Valid {
		t.Fatal("expected invalid")
	}
	if !res.MissingRequiredOnly() {
		t.Fatalf("expected missing-required-only, got %+v", res.Violations)
	}
	for _, viol := range res.Violations {
		if viol.Kind != KindMissingRequired {
			t.Fatalf("violation kind = %v, want KindMissingRequired (%+v)", viol.Kind, viol)
		}
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	t.Parallel()

	v := mustValidator(t, testSchema)
	res := v.Validate(decode(t, `{
		"payload":  {"name": "Ada", "age": "thirty-six"},
		"metadata": {"event_id": "E1"}
	}`))

	if res.Valid {
		t.Fatal("expected invalid")
	}
	if res.MissingRequiredOnly() {
		t.Fatalf("type mismatch must not count as missing-required-only: %+v", res.Violations)
	}
}

// A document with BOTH a missing field and a type mismatch must not qualify
// for partial acceptance: every violation has to be a missing-required one.
func TestValidate_MixedViolations(t *testing.T) {
	t.Parallel()

	v := mustValidator(t, testSchema)
	res := v.Validate(decode(t, `{
		"payload":  {"age": "thirty-six"},
		"metadata": {"event_id": "E1"}
	}`))

	if res.Valid {
		t.Fatal("expected invalid")
	}
	if res.MissingRequiredOnly() {
		t.Fatalf("mixed violations must not be missing-required-only: %+v", res.Violations)
	}
}

func TestValidate_MessageNamesViolation(t *testing.T) {
	t.Parallel()

	v := mustValidator(t, testSchema)
	res := v.Validate(decode(t, `{
		"payload":  {"name": "Ada", "age": 36},
		"metadata": {}
	}`))

	msg := res.Message()
	if msg == "" || msg == "success" {
		t.Fatalf("Message() = %q, want a violation description", msg)
	}
	if !strings.Contains(msg, "event_id") {
		t.Fatalf("Message() = %q, want it to name the missing property", msg)
	}
}

func TestNewValidator_RejectsSchemaWithoutTopLevelRequired(t *testing.T) {
	t.Parallel()

	// Same schema but without the top-level required clause: projection could
	// then see documents lacking payload/metadata, so compilation must fail.
	stripped := strings.Replace(testSchema, `"required": ["payload", "metadata"],`, "", 1)
	if _, err := NewValidator(writeSchema(t, stripped)); err == nil {
		t.Fatal("expected error for schema without top-level payload/metadata requirement")
	}
}

func TestNewValidator_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := NewValidator(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing schema file")
	}
}
