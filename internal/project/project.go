// Package project maps validated event documents into flat table rows.
//
// A document has two sections, payload and metadata. Split layout produces one
// row per section, linked by a synthetic event_id foreign key on the payload
// row. Field values are copied through untyped; stringification is the table
// writer's job.
package project

import "fmt"

// ForeignKey is the synthetic payload column linking a payload row to its
// metadata row.
const ForeignKey = "event_id"

// Row maps field names to values for one output table row.
type Row map[string]any

// FieldNames derives the ordered payload and metadata column sets from a
// decoded schema document, reading properties.<section>.required in schema
// order. The payload set gets ForeignKey appended after the schema-derived
// fields. The schema document is not mutated; both returned slices are fresh.
func FieldNames(schema map[string]any) (payload, metadata []string, err error) {
	payload, err = requiredFields(schema, "payload")
	if err != nil {
		return nil, nil, err
	}
	metadata, err = requiredFields(schema, "metadata")
	if err != nil {
		return nil, nil, err
	}
	payload = append(payload, ForeignKey)
	return payload, metadata, nil
}

func requiredFields(schema map[string]any, section string) ([]string, error) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema: properties is missing or not an object")
	}
	sec, ok := props[section].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema: properties.%s is missing or not an object", section)
	}
	req, ok := sec["required"].([]any)
	if !ok {
		return nil, fmt.Errorf("schema: properties.%s.required is missing or not an array", section)
	}

	fields := make([]string, 0, len(req))
	for i, r := range req {
		s, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("schema: properties.%s.required[%d] is not a string", section, i)
		}
		fields = append(fields, s)
	}
	return fields, nil
}

// Rows flattens a document into a payload row and a metadata row.
//
// The payload row's ForeignKey is taken from metadata's event_id, or "" when
// absent. A missing or non-object payload/metadata section yields an empty
// row for that section (documents reaching projection have already passed the
// acceptance policy, which requires both; this is a guard, not a feature).
//
// When n is non-nil it is applied to the payload row after the copy.
func Rows(doc map[string]any, n Normalizer) (payloadRow, metadataRow Row) {
	payloadRow = copySection(doc, "payload")
	metadataRow = copySection(doc, "metadata")

	id, ok := metadataRow[ForeignKey]
	if !ok {
		id = ""
	}
	payloadRow[ForeignKey] = id

	if n != nil {
		n.Normalize(payloadRow)
	}
	return payloadRow, metadataRow
}

// Merge denormalizes the two rows into one, for the single-table layout.
// Metadata wins on field-name collisions.
func Merge(payloadRow, metadataRow Row) Row {
	merged := make(Row, len(payloadRow)+len(metadataRow))
	for k, v := range payloadRow {
		merged[k] = v
	}
	for k, v := range metadataRow {
		merged[k] = v
	}
	return merged
}

func copySection(doc map[string]any, section string) Row {
	src, _ := doc[section].(map[string]any)
	row := make(Row, len(src)+1)
	for k, v := range src {
		row[k] = v
	}
	return row
}
