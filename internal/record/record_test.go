package record

import (
	"encoding/json"
	"slices"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestFromMap(t *testing.T) {
	m := map[string]any{
		"Name":             "Jane Doe",
		"Email":            nil,
		"Phone":            "555-0100",
		"Current_Position": "Staff Engineer",
		"Skills":           []any{"go", "sql", 42.0},
		"Experience": []any{
			map[string]any{"company": "Acme", "title": "Engineer", "years": "2 years"},
			map[string]any{"company": "Initech", "title": nil, "years": 3.5},
			"not an object",
		},
	}

	r := FromMap(m)
	if r.Name == nil || *r.Name != "Jane Doe" {
		t.Errorf("Name = %v, want Jane Doe", r.Name)
	}
	if r.Email != nil {
		t.Errorf("Email = %v, want nil", *r.Email)
	}
	if len(r.Skills) != 2 {
		t.Errorf("Skills = %v, want 2 string entries", r.Skills)
	}
	if len(r.Experience) != 2 {
		t.Fatalf("Experience = %d entries, want 2", len(r.Experience))
	}
	if r.Experience[0].Years == nil || *r.Experience[0].Years != "2 years" {
		t.Errorf("Experience[0].Years = %v, want 2 years", r.Experience[0].Years)
	}
	if r.Experience[1].Years == nil || *r.Experience[1].Years != "3.5" {
		t.Errorf("Experience[1].Years = %v, want 3.5 (stringified)", r.Experience[1].Years)
	}
	if r.Experience[1].Title != nil {
		t.Errorf("Experience[1].Title = %v, want nil", r.Experience[1].Title)
	}
}

func TestToMap_KeepsRequiredKeysWithNulls(t *testing.T) {
	r := &Record{Name: strPtr("Jane")}
	m := r.ToMap()

	for _, key := range RequiredKeys {
		if _, ok := m[key]; !ok {
			t.Errorf("ToMap missing required key %s", key)
		}
	}
	if m["Email"] != nil {
		t.Errorf("Email = %v, want nil", m["Email"])
	}

	// Wire format must survive a JSON round trip with nulls intact.
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v, ok := back["Phone"]; !ok || v != nil {
		t.Errorf("Phone after round trip = %v (present=%v), want explicit null", v, ok)
	}
}

func TestFlatten(t *testing.T) {
	m := map[string]any{
		"Name":   "Jane Doe",
		"Email":  nil,
		"Skills": []any{"go", "sql"},
		"Experience": []any{
			map[string]any{"company": "Acme", "years": 3.0},
		},
	}

	got := Flatten(m)
	want := []string{"3", "Acme", "Jane Doe", "go", "sql"}
	if !slices.Equal(got, want) {
		t.Errorf("Flatten = %v, want %v", got, want)
	}
}

func TestFlatten_Empty(t *testing.T) {
	if got := Flatten(map[string]any{}); len(got) != 0 {
		t.Errorf("Flatten of empty object = %v, want empty", got)
	}
	if got := Flatten(map[string]any{"Name": nil}); len(got) != 0 {
		t.Errorf("Flatten of all-null object = %v, want empty", got)
	}
}

func TestSummary(t *testing.T) {
	r := &Record{Name: strPtr("Jane"), Skills: []string{"go"}, Experience: []Experience{{}}}
	if got := r.Summary(); got != "Jane (1 skills, 1 positions)" {
		t.Errorf("Summary = %q", got)
	}
	anon := &Record{}
	if got := anon.Summary(); got != "(unknown) (0 skills, 0 positions)" {
		t.Errorf("Summary = %q", got)
	}
}
