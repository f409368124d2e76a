package correction

import (
	"fmt"
	"regexp"

	"github.com/vitaehq/vitae/internal/record"
)

// Issue codes.
const (
	CodeMissingField   = "missing_field"
	CodeInvalidType    = "invalid_type"
	CodeSuspectValue   = "suspect_value"
	CodeUnparseable    = "unparseable_output"
	CodeCoverageFailed = "coverage_failed"
)

// Issue is one structured diagnostic: which field, what kind of
// violation, and the human-readable message. Severity is "error" or
// "warning".
type Issue struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// ValidationResult is the schema-check outcome for one candidate record.
// Errors are blocking and ordered by check; warnings are advisory and
// never affect validity. Issues carries the same diagnostics in
// structured form for persistence.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Issues   []Issue  `json:"issues,omitempty"`
}

func (r *ValidationResult) addError(field, code, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Errors = append(r.Errors, msg)
	r.Issues = append(r.Issues, Issue{Field: field, Code: code, Severity: "error", Message: msg})
}

func (r *ValidationResult) addWarning(field, code, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	r.Issues = append(r.Issues, Issue{Field: field, Code: code, Severity: "warning", Message: msg})
}

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks a parsed candidate object against the record field
// contract. All violations are accumulated so one pass surfaces every
// problem for feedback. A key that is present with a null value is
// always valid; only the absence of a required key is an error, and the
// two are reported distinctly. Validate is pure: the same candidate
// always yields the same result.
func Validate(candidate map[string]any) *ValidationResult {
	res := &ValidationResult{}

	for _, key := range record.RequiredKeys {
		if _, ok := candidate[key]; !ok {
			res.addError(key, CodeMissingField, "required field %q is absent from the output", key)
		}
	}

	for _, key := range []string{record.KeyName, record.KeyEmail, record.KeyPhone, record.KeyCurrentPosition} {
		v, ok := candidate[key]
		if !ok || v == nil {
			continue
		}
		if _, isStr := v.(string); !isStr {
			res.addError(key, CodeInvalidType, "field %q must be a string or null, got %s", key, jsonType(v))
		}
	}

	validateSkills(candidate, res)
	validateExperience(candidate, res)

	if v, ok := candidate[record.KeyEmail]; ok {
		if email, isStr := v.(string); isStr && !emailShape.MatchString(email) {
			res.addWarning(record.KeyEmail, CodeSuspectValue, "field %q value %q does not look like an email address", record.KeyEmail, email)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func validateSkills(candidate map[string]any, res *ValidationResult) {
	v, ok := candidate[record.KeySkills]
	if !ok || v == nil {
		return
	}
	switch skills := v.(type) {
	case []any:
		for i, s := range skills {
			if s == nil {
				continue
			}
			if _, isStr := s.(string); !isStr {
				res.addError(record.KeySkills, CodeInvalidType, "field %q entry %d must be a string, got %s", record.KeySkills, i, jsonType(s))
			}
		}
	case string:
		res.addError(record.KeySkills, CodeInvalidType, "field %q must be a list of strings, not a single string", record.KeySkills)
	default:
		res.addError(record.KeySkills, CodeInvalidType, "field %q must be a list of strings, got %s", record.KeySkills, jsonType(v))
	}
}

func validateExperience(candidate map[string]any, res *ValidationResult) {
	v, ok := candidate[record.KeyExperience]
	if !ok || v == nil {
		return
	}
	entries, isList := v.([]any)
	if !isList {
		res.addError(record.KeyExperience, CodeInvalidType, "field %q must be a list of objects, got %s", record.KeyExperience, jsonType(v))
		return
	}
	for i, e := range entries {
		entry, isObj := e.(map[string]any)
		if !isObj {
			res.addError(record.KeyExperience, CodeInvalidType, "field %q entry %d must be an object, got %s", record.KeyExperience, i, jsonType(e))
			continue
		}
		for _, sub := range []string{"company", "title", "years"} {
			sv, present := entry[sub]
			if !present {
				res.addError(record.KeyExperience, CodeMissingField, "field %q entry %d is missing key %q", record.KeyExperience, i, sub)
				continue
			}
			if sv == nil {
				continue
			}
			if _, isStr := sv.(string); !isStr {
				res.addError(record.KeyExperience, CodeInvalidType, "field %q entry %d key %q must be a string or null, got %s", record.KeyExperience, i, sub, jsonType(sv))
			}
		}
	}
}

// jsonType names a decoded JSON value's type for diagnostics.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
