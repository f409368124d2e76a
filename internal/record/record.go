// Package record defines the structured candidate record extracted from
// resume text, its wire format, and helpers for parsing model output into
// it. This package has no dependencies on other vitae packages to avoid
// import cycles.
package record

import (
	"fmt"
	"sort"
	"strconv"
)

// Wire keys of the candidate record. Unknown fields are null, never
// invented placeholder text.
const (
	KeyName            = "Name"
	KeyEmail           = "Email"
	KeyPhone           = "Phone"
	KeyCurrentPosition = "Current_Position"
	KeySkills          = "Skills"
	KeyExperience      = "Experience"
)

// RequiredKeys lists the keys every record must carry, in report order.
// A key present with a null value satisfies the requirement; a missing
// key does not.
var RequiredKeys = []string{KeyName, KeyEmail, KeyPhone, KeySkills, KeyExperience}

// Experience is one employment entry. Years stays textual ("2 years",
// "2019-2023") because source resumes express duration in free form.
type Experience struct {
	Company *string `json:"company"`
	Title   *string `json:"title"`
	Years   *string `json:"years"`
}

// Record is the typed candidate record. Pointer fields distinguish a
// known-absent value (null on the wire) from an empty string.
type Record struct {
	Name            *string      `json:"Name"`
	Email           *string      `json:"Email"`
	Phone           *string      `json:"Phone"`
	CurrentPosition *string      `json:"Current_Position"`
	Skills          []string     `json:"Skills"`
	Experience      []Experience `json:"Experience"`
}

// FromMap converts a parsed JSON object into a typed Record. Conversion
// is lenient: scalar fields that are not strings are stringified and
// skill entries that are not strings are dropped. Validation is a
// separate concern.
func FromMap(m map[string]any) *Record {
	r := &Record{
		Name:            stringField(m[KeyName]),
		Email:           stringField(m[KeyEmail]),
		Phone:           stringField(m[KeyPhone]),
		CurrentPosition: stringField(m[KeyCurrentPosition]),
	}
	if skills, ok := m[KeySkills].([]any); ok {
		for _, s := range skills {
			if str, ok := s.(string); ok {
				r.Skills = append(r.Skills, str)
			}
		}
	}
	if exps, ok := m[KeyExperience].([]any); ok {
		for _, e := range exps {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			r.Experience = append(r.Experience, Experience{
				Company: stringField(em["company"]),
				Title:   stringField(em["title"]),
				Years:   stringField(em["years"]),
			})
		}
	}
	return r
}

// ToMap converts a typed Record back into its wire-format object with
// all required keys present, nulls included.
func (r *Record) ToMap() map[string]any {
	m := map[string]any{
		KeyName:            nullable(r.Name),
		KeyEmail:           nullable(r.Email),
		KeyPhone:           nullable(r.Phone),
		KeyCurrentPosition: nullable(r.CurrentPosition),
		KeySkills:          nil,
		KeyExperience:      nil,
	}
	if r.Skills != nil {
		skills := make([]any, len(r.Skills))
		for i, s := range r.Skills {
			skills[i] = s
		}
		m[KeySkills] = skills
	}
	if r.Experience != nil {
		exps := make([]any, len(r.Experience))
		for i, e := range r.Experience {
			exps[i] = map[string]any{
				"company": nullable(e.Company),
				"title":   nullable(e.Title),
				"years":   nullable(e.Years),
			}
		}
		m[KeyExperience] = exps
	}
	return m
}

// Flatten collects every textual leaf of a parsed record object: string
// values, string array elements, and numbers rendered as text. Nulls
// contribute nothing. Key order does not affect the result; output is
// sorted for determinism.
func Flatten(m map[string]any) []string {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			if val != "" {
				out = append(out, val)
			}
		case float64:
			out = append(out, strconv.FormatFloat(val, 'f', -1, 64))
		case map[string]any:
			keys := make([]string, 0, len(val))
			for k := range val {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(val[k])
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(m)
	sort.Strings(out)
	return out
}

// Summary returns a one-line description of the record for logs.
func (r *Record) Summary() string {
	name := "(unknown)"
	if r.Name != nil {
		name = *r.Name
	}
	return fmt.Sprintf("%s (%d skills, %d positions)", name, len(r.Skills), len(r.Experience))
}

func stringField(v any) *string {
	switch val := v.(type) {
	case string:
		return &val
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(val)
		return &s
	default:
		return nil
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
