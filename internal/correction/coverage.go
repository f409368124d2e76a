package correction

import (
	"errors"
	"strings"
	"unicode"

	"github.com/vitaehq/vitae/internal/record"
)

const (
	// DefaultMinTokenLength drops short stopword-like tokens from the
	// reference set so they cannot inflate or deflate coverage.
	DefaultMinTokenLength = 3

	// DefaultMissingTokenCap bounds the missing-token list carried in
	// feedback and diagnostics.
	DefaultMissingTokenCap = 50
)

// ErrNoReferenceTokens is returned when the reference text yields no
// scoreable tokens after normalization. That is a data problem in the
// input document, never to be read as full coverage.
var ErrNoReferenceTokens = errors.New("reference text has no scoreable tokens")

// CoverageResult reports how much of the reference text a candidate
// record accounts for.
type CoverageResult struct {
	Ratio           float64  `json:"ratio"`
	Missing         []string `json:"missing,omitempty"`
	ReferenceTokens int      `json:"reference_tokens"`
	FoundTokens     int      `json:"found_tokens"`
}

// Scorer computes coverage of reference OCR text by a candidate record.
type Scorer struct {
	minTokenLength int
	missingCap     int
}

// NewScorer creates a scorer. Non-positive arguments fall back to the
// package defaults.
func NewScorer(minTokenLength, missingCap int) *Scorer {
	if minTokenLength <= 0 {
		minTokenLength = DefaultMinTokenLength
	}
	if missingCap <= 0 {
		missingCap = DefaultMissingTokenCap
	}
	return &Scorer{minTokenLength: minTokenLength, missingCap: missingCap}
}

// Score compares the candidate's flattened string values against the
// normalized reference tokens. A reference token counts as found when it
// appears verbatim inside any candidate-derived string, so reformatted
// multi-word phrases still match. An empty or all-null candidate scores
// 0.0; a reference with no scoreable tokens is an error.
func (s *Scorer) Score(reference string, candidate map[string]any) (*CoverageResult, error) {
	tokens := s.ReferenceTokens(reference)
	if len(tokens) == 0 {
		return nil, ErrNoReferenceTokens
	}

	var values []string
	for _, v := range record.Flatten(candidate) {
		if n := normalizeText(v); n != "" {
			values = append(values, n)
		}
	}

	found := 0
	var missing []string
	for _, tok := range tokens {
		if containsToken(values, tok) {
			found++
			continue
		}
		if len(missing) < s.missingCap {
			missing = append(missing, tok)
		}
	}

	return &CoverageResult{
		Ratio:           float64(found) / float64(len(tokens)),
		Missing:         missing,
		ReferenceTokens: len(tokens),
		FoundTokens:     found,
	}, nil
}

// ReferenceTokens normalizes the reference text into the ordered set of
// unique tokens coverage is measured against. Tokens shorter than the
// minimum length and pure-digit runs (years, phone fragments) are
// dropped as noise.
func (s *Scorer) ReferenceTokens(reference string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(normalizeText(reference)) {
		if len(tok) < s.minTokenLength || isAllDigits(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// normalizeText lowercases and replaces every non-alphanumeric rune
// with a space. Reference tokens and candidate values go through the
// same normalization so membership checks compare like with like.
func normalizeText(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.TrimSpace(mapped)
}

func containsToken(values []string, token string) bool {
	for _, v := range values {
		if strings.Contains(v, token) {
			return true
		}
	}
	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
