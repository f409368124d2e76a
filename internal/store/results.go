package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vitaehq/vitae/internal/correction"
)

// IssueRow is a persisted validation issue from one iteration of a
// document's correction loop.
type IssueRow struct {
	Iteration int    `json:"iteration"`
	Field     string `json:"field,omitempty"`
	Code      string `json:"code"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// SaveResult writes the outcome of a correction run onto the document
// row and replaces its stored issues with the run's full history. A
// fresh result resets the review verdict to pending; flagged marks the
// document for the review queue.
func (s *Store) SaveResult(ctx context.Context, id string, fr *correction.FinalRecord, flagged bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	now := time.Now().UTC()
	const update = `UPDATE documents
		SET coverage = ?, schema_valid = ?, outcome = ?, iterations = ?,
			flagged_for_review = ?, review_status = ?, updated_at = ?
		WHERE id = ?`
	res, err := tx.ExecContext(ctx, update, fr.Coverage, fr.Valid,
		string(fr.Outcome), fr.Iterations, flagged, ReviewPending, now, id)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = ErrNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM document_issues WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear issues: %w", err)
	}

	const insert = `INSERT INTO document_issues
		(document_id, iteration, field, code, severity, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, report := range fr.History {
		for _, issue := range report.Issues {
			if _, err = tx.ExecContext(ctx, insert, id, report.Iteration,
				issue.Field, issue.Code, issue.Severity, issue.Message, now); err != nil {
				return fmt.Errorf("failed to insert issue: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	s.logger.Info("result saved", "document_id", id, "outcome", fr.Outcome,
		"coverage", fr.Coverage, "flagged", flagged)
	return nil
}

// ListIssues returns a document's stored issues ordered by iteration.
func (s *Store) ListIssues(ctx context.Context, id string) ([]IssueRow, error) {
	const q = `SELECT iteration, field, code, severity, message
		FROM document_issues WHERE document_id = ? ORDER BY iteration, id`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var out []IssueRow
	for rows.Next() {
		var issue IssueRow
		if err := rows.Scan(&issue.Iteration, &issue.Field, &issue.Code,
			&issue.Severity, &issue.Message); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		out = append(out, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}
	return out, nil
}
