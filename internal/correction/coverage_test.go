package correction

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestScore_Bounds(t *testing.T) {
	s := NewScorer(0, 0)
	reference := "alpha bravo charlie delta"

	t.Run("all null candidate scores zero", func(t *testing.T) {
		cov, err := s.Score(reference, map[string]any{
			"Name": nil, "Email": nil, "Phone": nil, "Skills": nil, "Experience": nil,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if cov.Ratio != 0 {
			t.Errorf("Ratio = %f, want 0", cov.Ratio)
		}
	})

	t.Run("verbatim echo scores one", func(t *testing.T) {
		cov, err := s.Score(reference, map[string]any{"Name": "alpha bravo charlie delta"})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if cov.Ratio != 1 {
			t.Errorf("Ratio = %f, want 1", cov.Ratio)
		}
		if len(cov.Missing) != 0 {
			t.Errorf("Missing = %v, want empty", cov.Missing)
		}
	})

	t.Run("ratio stays in range", func(t *testing.T) {
		candidates := []map[string]any{
			{},
			{"Name": "alpha"},
			{"Name": "alpha", "Skills": []any{"bravo", "charlie"}},
			{"Name": "unrelated text entirely"},
		}
		for _, cand := range candidates {
			cov, err := s.Score(reference, cand)
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if cov.Ratio < 0 || cov.Ratio > 1 {
				t.Errorf("Ratio = %f out of [0,1] for %v", cov.Ratio, cand)
			}
		}
	})
}

func TestScore_SubstringMembership(t *testing.T) {
	s := NewScorer(0, 0)

	// "acme" and "corp" both live inside the single value "Acme Corp",
	// and "engineer" inside "Engineering Lead".
	cov, err := s.Score("acme corp engineer", map[string]any{
		"Experience": []any{
			map[string]any{"company": "Acme Corp", "title": "Engineering Lead", "years": nil},
		},
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if cov.Ratio != 1 {
		t.Errorf("Ratio = %f, want 1 (substring matches)", cov.Ratio)
	}
}

func TestScore_CaseAndPunctuationInsensitive(t *testing.T) {
	s := NewScorer(0, 0)
	cov, err := s.Score("JOHN-DOE, (Engineer)!", map[string]any{"Name": "john doe", "Current_Position": "engineer"})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if cov.Ratio != 1 {
		t.Errorf("Ratio = %f, want 1", cov.Ratio)
	}
}

func TestScore_MissingList(t *testing.T) {
	s := NewScorer(0, 2)
	cov, err := s.Score("alpha bravo charlie delta echo", map[string]any{"Name": "alpha"})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if cov.FoundTokens != 1 || cov.ReferenceTokens != 5 {
		t.Errorf("found/reference = %d/%d, want 1/5", cov.FoundTokens, cov.ReferenceTokens)
	}
	// Cap of 2, reference order preserved.
	want := []string{"bravo", "charlie"}
	if !slices.Equal(cov.Missing, want) {
		t.Errorf("Missing = %v, want %v", cov.Missing, want)
	}
}

func TestScore_NoReferenceTokens(t *testing.T) {
	s := NewScorer(0, 0)
	for _, reference := range []string{"", "a b c", "12 3456 99", "!!! ---"} {
		_, err := s.Score(reference, map[string]any{"Name": "anything"})
		if !errors.Is(err, ErrNoReferenceTokens) {
			t.Errorf("Score(%q) error = %v, want ErrNoReferenceTokens", reference, err)
		}
	}
}

func TestReferenceTokens(t *testing.T) {
	s := NewScorer(0, 0)

	tokens := s.ReferenceTokens("John Doe, Senior Engineer at Acme (2019). john@acme.io")
	// Short tokens ("at", "io") and pure digits ("2019") are dropped,
	// duplicates collapse, first-seen order is kept.
	want := []string{"john", "doe", "senior", "engineer", "acme"}
	if !slices.Equal(tokens, want) {
		t.Errorf("ReferenceTokens = %v, want %v", tokens, want)
	}
}

func TestReferenceTokens_MinLength(t *testing.T) {
	s := NewScorer(5, 0)
	tokens := s.ReferenceTokens("go rust python java")
	want := []string{"python"}
	if !slices.Equal(tokens, want) {
		t.Errorf("ReferenceTokens = %v, want %v", tokens, want)
	}
}

func TestNormalizeText(t *testing.T) {
	got := normalizeText("  Héllo, WORLD-42! ")
	if !strings.Contains(got, "héllo") || !strings.Contains(got, "world") || !strings.Contains(got, "42") {
		t.Errorf("normalizeText = %q", got)
	}
	if normalizeText("!!!") != "" {
		t.Errorf("normalizeText(!!!) = %q, want empty", normalizeText("!!!"))
	}
}
