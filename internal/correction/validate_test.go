package correction

import (
	"reflect"
	"strings"
	"testing"
)

func completeNullRecord() map[string]any {
	return map[string]any{
		"Name": nil, "Email": nil, "Phone": nil, "Skills": nil, "Experience": nil,
	}
}

func TestValidate_NullsAreAlwaysValid(t *testing.T) {
	res := Validate(completeNullRecord())
	if !res.Valid {
		t.Errorf("all-null record invalid: %v", res.Errors)
	}
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Errorf("all-null record produced diagnostics: errors=%v warnings=%v", res.Errors, res.Warnings)
	}
}

func TestValidate_MissingKeyDistinctFromNull(t *testing.T) {
	missing := map[string]any{"Name": nil, "Phone": nil, "Skills": nil, "Experience": nil}
	res := Validate(missing)
	if res.Valid {
		t.Error("record missing Email key reported valid")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], `"Email"`) || !strings.Contains(res.Errors[0], "absent") {
		t.Errorf("Errors = %v, want single absent-Email error", res.Errors)
	}
}

func TestValidate_AllMissingKeysReported(t *testing.T) {
	res := Validate(map[string]any{})
	if res.Valid {
		t.Error("empty object reported valid")
	}
	if len(res.Errors) != 5 {
		t.Errorf("Errors = %v, want one per required key", res.Errors)
	}
	// Report order follows the required-key order.
	for i, key := range []string{"Name", "Email", "Phone", "Skills", "Experience"} {
		if !strings.Contains(res.Errors[i], `"`+key+`"`) {
			t.Errorf("Errors[%d] = %q, want mention of %s", i, res.Errors[i], key)
		}
	}
}

func TestValidate_SkillsShape(t *testing.T) {
	t.Run("single string flagged", func(t *testing.T) {
		rec := completeNullRecord()
		rec["Skills"] = "go, sql"
		res := Validate(rec)
		if res.Valid {
			t.Error("single-string Skills reported valid")
		}
		if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "not a single string") {
			t.Errorf("Errors = %v", res.Errors)
		}
	})

	t.Run("non-string entry flagged", func(t *testing.T) {
		rec := completeNullRecord()
		rec["Skills"] = []any{"go", 7.0}
		res := Validate(rec)
		if res.Valid {
			t.Error("numeric skill reported valid")
		}
		if !strings.Contains(res.Errors[0], "entry 1") {
			t.Errorf("Errors = %v, want entry index", res.Errors)
		}
	})

	t.Run("string list valid", func(t *testing.T) {
		rec := completeNullRecord()
		rec["Skills"] = []any{"go", "sql"}
		if res := Validate(rec); !res.Valid {
			t.Errorf("valid skills flagged: %v", res.Errors)
		}
	})
}

func TestValidate_ExperienceShape(t *testing.T) {
	t.Run("non-list flagged", func(t *testing.T) {
		rec := completeNullRecord()
		rec["Experience"] = "Acme"
		res := Validate(rec)
		if res.Valid || !strings.Contains(res.Errors[0], "list of objects") {
			t.Errorf("valid=%v errors=%v", res.Valid, res.Errors)
		}
	})

	t.Run("entry missing sub keys", func(t *testing.T) {
		rec := completeNullRecord()
		rec["Experience"] = []any{map[string]any{"company": "Acme"}}
		res := Validate(rec)
		if res.Valid {
			t.Error("entry missing title and years reported valid")
		}
		if len(res.Errors) != 2 {
			t.Errorf("Errors = %v, want 2 (title, years)", res.Errors)
		}
	})

	t.Run("null sub values valid", func(t *testing.T) {
		rec := completeNullRecord()
		rec["Experience"] = []any{map[string]any{"company": nil, "title": nil, "years": nil}}
		if res := Validate(rec); !res.Valid {
			t.Errorf("null sub-values flagged: %v", res.Errors)
		}
	})

	t.Run("numeric years flagged", func(t *testing.T) {
		rec := completeNullRecord()
		rec["Experience"] = []any{map[string]any{"company": "Acme", "title": "Engineer", "years": 3.0}}
		res := Validate(rec)
		if res.Valid || !strings.Contains(res.Errors[0], `"years"`) {
			t.Errorf("valid=%v errors=%v", res.Valid, res.Errors)
		}
	})
}

func TestValidate_EmailWarningDoesNotBlock(t *testing.T) {
	rec := completeNullRecord()
	rec["Email"] = "not-an-email"
	res := Validate(rec)
	if !res.Valid {
		t.Errorf("email-shape warning flipped validity: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "email") {
		t.Errorf("Warnings = %v, want one email-shape warning", res.Warnings)
	}

	rec["Email"] = "jane@acme.io"
	if res := Validate(rec); len(res.Warnings) != 0 {
		t.Errorf("well-formed email warned: %v", res.Warnings)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	rec := map[string]any{
		"Name":   "Jane",
		"Email":  "bad email",
		"Skills": "go",
		"Experience": []any{
			map[string]any{"company": "Acme"},
		},
	}
	first := Validate(rec)
	second := Validate(rec)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated validation differs:\n%+v\n%+v", first, second)
	}
}
