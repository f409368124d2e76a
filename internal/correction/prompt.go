package correction

import (
	"strings"

	"github.com/vitaehq/vitae/internal/record"
)

// Feedback carries the prior iteration's failures into the next prompt.
type Feedback struct {
	MissingTokens  []string
	Errors         []string
	Warnings       []string
	PreviousOutput string
}

// maxPreviousOutput bounds how much of a runaway prior completion is
// echoed back to the backend.
const maxPreviousOutput = 12000

const promptHeader = `Extract a single JSON object describing the candidate from the resume text below.

The object must conform to this JSON Schema:

`

const promptRules = `

Rules:
- Copy values verbatim from the resume text.
- Set any field that is not clearly present in the text to null. Never invent a value.
- "Skills" is a JSON array of strings, not a comma-separated string.
- Reply with only the JSON object: no commentary, no markdown fences.

Resume text:

`

// BuildPrompt constructs the instruction text for one generation call.
// The first iteration passes nil feedback; retries embed the prior
// failures and the previous raw output so the backend revises rather
// than regenerates. Output is deterministic for identical inputs.
func BuildPrompt(reference string, fb *Feedback) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString(record.SchemaJSON)
	b.WriteString(promptRules)
	b.WriteString(reference)

	if fb == nil {
		return b.String()
	}

	prev := strings.TrimSpace(fb.PreviousOutput)
	if len(prev) > maxPreviousOutput {
		prev = prev[:maxPreviousOutput] + "\n...[truncated]"
	}

	b.WriteString("\n\nYour previous output:\n\n")
	if prev == "" {
		b.WriteString("(empty)")
	} else {
		b.WriteString(prev)
	}

	if len(fb.Errors) > 0 || len(fb.Warnings) > 0 {
		b.WriteString("\n\nStructural problems in your previous output:\n")
		for _, e := range fb.Errors {
			b.WriteString("- ")
			b.WriteString(e)
			b.WriteString("\n")
		}
		for _, w := range fb.Warnings {
			b.WriteString("- warning: ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}

	if len(fb.MissingTokens) > 0 {
		b.WriteString("\nThese terms from the resume text are missing from your previous output: ")
		b.WriteString(strings.Join(fb.MissingTokens, ", "))
		b.WriteString("\n")
	}

	b.WriteString("\nRevise your previous output to fix every problem listed above. Keep fields that are already correct unchanged. Reply with only the corrected JSON object.")
	return b.String()
}

// feedbackFrom derives the next iteration's feedback from a completed
// iteration.
func feedbackFrom(it Iteration) *Feedback {
	fb := &Feedback{PreviousOutput: it.RawOutput}
	if it.Validation != nil {
		fb.Errors = it.Validation.Errors
		fb.Warnings = it.Validation.Warnings
	}
	if it.Coverage != nil {
		fb.MissingTokens = it.Coverage.Missing
	}
	return fb
}
