package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Feedback is a reviewer's verdict on a document.
type Feedback struct {
	DocumentID string    `json:"document_id"`
	Reviewer   string    `json:"reviewer"`
	Verdict    string    `json:"verdict"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Correction is a single reviewer-supplied field fix.
type Correction struct {
	DocumentID string    `json:"document_id"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListReviewQueue returns flagged documents still awaiting a verdict,
// oldest first.
func (s *Store) ListReviewQueue(ctx context.Context) ([]*Document, error) {
	const q = `SELECT ` + docColumns + ` FROM documents
		WHERE flagged_for_review = 1 AND review_status = ?
		ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, ReviewPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review queue: %w", err)
	}
	return out, nil
}

// InsertFeedback records a reviewer verdict for a document.
func (s *Store) InsertFeedback(ctx context.Context, fb *Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO review_feedback (document_id, reviewer, verdict, notes, created_at)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, fb.DocumentID, fb.Reviewer,
		fb.Verdict, fb.Notes, fb.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns all feedback for a document, oldest first.
func (s *Store) ListFeedback(ctx context.Context, documentID string) ([]Feedback, error) {
	const q = `SELECT document_id, reviewer, verdict, notes, created_at
		FROM review_feedback WHERE document_id = ? ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.DocumentID, &fb.Reviewer, &fb.Verdict,
			&fb.Notes, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}
	return out, nil
}

// InsertCorrections records a batch of field fixes in one transaction.
func (s *Store) InsertCorrections(ctx context.Context, corrections []Correction) error {
	if len(corrections) == 0 {
		return nil
	}
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
	const q = `INSERT INTO field_corrections (document_id, field, old_value, new_value, created_at)
		VALUES (?, ?, ?, ?, ?)`
	for i := range corrections {
		c := &corrections[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err = tx.ExecContext(ctx, q, c.DocumentID, c.Field,
			c.OldValue, c.NewValue, c.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert correction: %w", err)
		}
	}
	return tx.Commit()
}

// ListCorrections returns all field fixes for a document, oldest first.
func (s *Store) ListCorrections(ctx context.Context, documentID string) ([]Correction, error) {
	const q = `SELECT document_id, field, old_value, new_value, created_at
		FROM field_corrections WHERE document_id = ? ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var c Correction
		if err := rows.Scan(&c.DocumentID, &c.Field, &c.OldValue,
			&c.NewValue, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate corrections: %w", err)
	}
	return out, nil
}

// ResolveReview sets the review verdict on a document. Approval also
// promotes the document to validated so it becomes dataset-eligible.
func (s *Store) ResolveReview(ctx context.Context, id, reviewStatus string) error {
	now := time.Now().UTC()
	var (
		res sql.Result
		err error
	)
	if reviewStatus == ReviewApproved {
		const q = `UPDATE documents SET review_status = ?, status = ?, updated_at = ? WHERE id = ?`
		res, err = s.db.ExecContext(ctx, q, reviewStatus, StatusValidated, now, id)
	} else {
		const q = `UPDATE documents SET review_status = ?, updated_at = ? WHERE id = ?`
		res, err = s.db.ExecContext(ctx, q, reviewStatus, now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve review: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return ErrNotFound
	}
	s.logger.Info("review resolved", "document_id", id, "review_status", reviewStatus)
	return nil
}
