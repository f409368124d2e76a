package record

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaJSON is the canonical JSON Schema for the candidate record. The
// extraction prompt embeds it and corrected records submitted through
// the review API are checked against it.
const SchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "Name": {"type": ["string", "null"]},
    "Email": {"type": ["string", "null"]},
    "Phone": {"type": ["string", "null"]},
    "Current_Position": {"type": ["string", "null"]},
    "Skills": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    },
    "Experience": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "company": {"type": ["string", "null"]},
          "title": {"type": ["string", "null"]},
          "years": {"type": ["string", "null"]}
        },
        "required": ["company", "title", "years"]
      }
    }
  },
  "required": ["Name", "Email", "Phone", "Skills", "Experience"]
}`

var compiledSchema = jsonschema.MustCompileString("record.json", SchemaJSON)

// ValidateSchema checks a record document against the canonical schema.
// doc may be a parsed object (map[string]any) or raw JSON bytes.
func ValidateSchema(doc any) error {
	if raw, ok := doc.([]byte); ok {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("invalid record JSON: %w", err)
		}
		doc = parsed
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
