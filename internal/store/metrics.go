package store

import (
	"context"
	"fmt"
	"time"
)

// Statuses for recorded calls and steps.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// CallRow is one generation call made while correcting a document.
type CallRow struct {
	DocumentID  string    `json:"document_id"`
	Iteration   int       `json:"iteration"`
	Model       string    `json:"model"`
	PromptChars int       `json:"prompt_chars"`
	OutputChars int       `json:"output_chars"`
	DurationMS  int64     `json:"duration_ms"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StepRow is one pipeline step execution for a document.
type StepRow struct {
	DocumentID string    `json:"document_id"`
	Step       string    `json:"step"`
	DurationMS int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordCall persists a generation call audit row.
func (s *Store) RecordCall(ctx context.Context, call *CallRow) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO generation_calls
		(document_id, iteration, model, prompt_chars, output_chars, duration_ms, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, call.DocumentID, call.Iteration,
		call.Model, call.PromptChars, call.OutputChars, call.DurationMS,
		call.Status, call.Error, call.CreatedAt); err != nil {
		return fmt.Errorf("failed to record call: %w", err)
	}
	return nil
}

// ListCalls returns a document's generation calls in execution order.
func (s *Store) ListCalls(ctx context.Context, documentID string) ([]CallRow, error) {
	const q = `SELECT document_id, iteration, model, prompt_chars, output_chars,
		duration_ms, status, error, created_at
		FROM generation_calls WHERE document_id = ? ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var out []CallRow
	for rows.Next() {
		var call CallRow
		if err := rows.Scan(&call.DocumentID, &call.Iteration, &call.Model,
			&call.PromptChars, &call.OutputChars, &call.DurationMS,
			&call.Status, &call.Error, &call.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		out = append(out, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calls: %w", err)
	}
	return out, nil
}

// RecordStep persists a pipeline step timing row.
func (s *Store) RecordStep(ctx context.Context, step *StepRow) error {
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO step_metrics (document_id, step, duration_ms, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, step.DocumentID, step.Step,
		step.DurationMS, step.Status, step.Detail, step.CreatedAt); err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// CallSummary aggregates generation call rows.
type CallSummary struct {
	Count         int     `json:"count"`
	ErrorCount    int     `json:"error_count"`
	TotalDuration int64   `json:"total_duration_ms"`
	AvgDuration   float64 `json:"avg_duration_ms"`
}

// StepSummary aggregates step rows for one step name.
type StepSummary struct {
	Count       int     `json:"count"`
	ErrorCount  int     `json:"error_count"`
	AvgDuration float64 `json:"avg_duration_ms"`
}

// Summary is the aggregate picture served by the metrics endpoint.
type Summary struct {
	Documents         int                    `json:"documents"`
	ByStatus          map[string]int         `json:"by_status,omitempty"`
	ByOutcome         map[string]int         `json:"by_outcome,omitempty"`
	Flagged           int                    `json:"flagged"`
	MeanCoverage      float64                `json:"mean_coverage"`
	MeanOCRConfidence float64                `json:"mean_ocr_confidence"`
	MeanIterations    float64                `json:"mean_iterations"`
	Calls             CallSummary            `json:"calls"`
	Steps             map[string]StepSummary `json:"steps,omitempty"`
}

// GetSummary computes corpus-wide aggregates. Coverage, confidence and
// iteration means cover only documents that have been through
// extraction (outcome set), so pending uploads do not drag them down.
func (s *Store) GetSummary(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		ByStatus:  make(map[string]int),
		ByOutcome: make(map[string]int),
		Steps:     make(map[string]StepSummary),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		sum.ByStatus[status] = n
		sum.Documents += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM documents WHERE outcome != '' GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by outcome: %w", err)
	}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		sum.ByOutcome[outcome] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcome counts: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE flagged_for_review = 1`).Scan(&sum.Flagged)
	if err != nil {
		return nil, fmt.Errorf("failed to count flagged: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(coverage), 0), COALESCE(AVG(ocr_confidence), 0), COALESCE(AVG(iterations), 0)
		FROM documents WHERE outcome != ''`).
		Scan(&sum.MeanCoverage, &sum.MeanOCRConfidence, &sum.MeanIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to compute document means: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status != 'ok' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(duration_ms), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM generation_calls`).
		Scan(&sum.Calls.Count, &sum.Calls.ErrorCount, &sum.Calls.TotalDuration, &sum.Calls.AvgDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize calls: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT step, COUNT(*),
			SUM(CASE WHEN status != 'ok' THEN 1 ELSE 0 END),
			COALESCE(AVG(duration_ms), 0)
		FROM step_metrics GROUP BY step`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize steps: %w", err)
	}
	for rows.Next() {
		var step string
		var ss StepSummary
		if err := rows.Scan(&step, &ss.Count, &ss.ErrorCount, &ss.AvgDuration); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan step summary: %w", err)
		}
		sum.Steps[step] = ss
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step summaries: %w", err)
	}

	return sum, nil
}
