package correction

// IterationReport is the per-iteration diagnostic entry carried in a
// FinalRecord's history, ordered by iteration.
type IterationReport struct {
	Iteration     int      `json:"iteration"`
	Parsed        bool     `json:"parsed"`
	Valid         bool     `json:"valid"`
	Coverage      float64  `json:"coverage"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Issues        []Issue  `json:"issues,omitempty"`
	MissingTokens []string `json:"missing_tokens,omitempty"`
}

// FinalRecord is the sole output surface of the correction loop: the
// selected candidate plus the provenance downstream consumers need.
// Record is nil when no iteration produced a parseable candidate.
type FinalRecord struct {
	DocumentID        string            `json:"document_id"`
	Outcome           Outcome           `json:"outcome"`
	Record            map[string]any    `json:"record,omitempty"`
	Valid             bool              `json:"valid"`
	Coverage          float64           `json:"coverage"`
	Iterations        int               `json:"iterations"`
	SelectedIteration int               `json:"selected_iteration,omitempty"`
	History           []IterationReport `json:"history,omitempty"`
}

// NeedsReview reports whether this record should be flagged for human
// review: anything not cleanly accepted, or accepted but below the
// review threshold.
func (fr *FinalRecord) NeedsReview(reviewThreshold float64) bool {
	return fr.Outcome != OutcomeAccepted || fr.Coverage < reviewThreshold
}

// Assemble packages a finished session into its FinalRecord. For an
// accepted session the accepting (last) iteration is selected; otherwise
// the best iteration by explicit comparison, never simply the last,
// since later iterations can regress.
func Assemble(s *Session) *FinalRecord {
	fr := &FinalRecord{
		DocumentID: s.DocumentID,
		Outcome:    s.Outcome,
		Iterations: len(s.Iterations),
		History:    make([]IterationReport, 0, len(s.Iterations)),
	}

	for _, it := range s.Iterations {
		report := IterationReport{
			Iteration: it.Index,
			Parsed:    it.Candidate != nil,
		}
		if it.Validation != nil {
			report.Valid = it.Validation.Valid
			report.Errors = it.Validation.Errors
			report.Warnings = it.Validation.Warnings
			report.Issues = it.Validation.Issues
		}
		if it.Coverage != nil {
			report.Coverage = it.Coverage.Ratio
			report.MissingTokens = it.Coverage.Missing
		}
		fr.History = append(fr.History, report)
	}

	selected := -1
	if s.Outcome == OutcomeAccepted {
		selected = len(s.Iterations) - 1
	} else {
		selected = bestIteration(s.Iterations)
	}
	if selected < 0 {
		return fr
	}

	it := s.Iterations[selected]
	fr.Record = it.Candidate
	fr.SelectedIteration = it.Index
	if it.Validation != nil {
		fr.Valid = it.Validation.Valid
	}
	if it.Coverage != nil {
		fr.Coverage = it.Coverage.Ratio
	}
	return fr
}

// bestIteration picks the iteration with the highest coverage among the
// schema-valid ones, falling back to highest coverage overall when none
// are valid. Ties keep the earliest iteration. Returns -1 for an empty
// history.
func bestIteration(iters []Iteration) int {
	best := -1
	bestValid := false
	bestRatio := -1.0
	for i, it := range iters {
		valid := it.Validation != nil && it.Validation.Valid
		ratio := 0.0
		if it.Coverage != nil {
			ratio = it.Coverage.Ratio
		}
		switch {
		case best < 0:
		case valid && !bestValid:
		case valid == bestValid && ratio > bestRatio:
		default:
			continue
		}
		best, bestValid, bestRatio = i, valid, ratio
	}
	return best
}
