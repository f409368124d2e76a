package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document id has no row.
var ErrNotFound = errors.New("document not found")

// Document is a row in the documents table.
type Document struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	Status           string    `json:"status"`
	Pages            int       `json:"pages"`
	OCRConfidence    float64   `json:"ocr_confidence"`
	Coverage         float64   `json:"coverage"`
	SchemaValid      bool      `json:"schema_valid"`
	Outcome          string    `json:"outcome,omitempty"`
	Iterations       int       `json:"iterations"`
	FlaggedForReview bool      `json:"flagged_for_review"`
	ReviewStatus     string    `json:"review_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const docColumns = `id, filename, status, pages, ocr_confidence, coverage,
	schema_valid, outcome, iterations, flagged_for_review, review_status,
	created_at, updated_at`

func scanDocument(row interface{ Scan(dest ...any) error }) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Filename, &d.Status, &d.Pages, &d.OCRConfidence,
		&d.Coverage, &d.SchemaValid, &d.Outcome, &d.Iterations,
		&d.FlaggedForReview, &d.ReviewStatus, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts a new document row. Status defaults to uploaded
// and timestamps are set when zero.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.Status == "" {
		doc.Status = StatusUploaded
	}
	if doc.ReviewStatus == "" {
		doc.ReviewStatus = ReviewPending
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	const q = `INSERT INTO documents (id, filename, status, pages, ocr_confidence,
		coverage, schema_valid, outcome, iterations, flagged_for_review,
		review_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, doc.ID, doc.Filename, doc.Status,
		doc.Pages, doc.OCRConfidence, doc.Coverage, doc.SchemaValid,
		doc.Outcome, doc.Iterations, doc.FlaggedForReview, doc.ReviewStatus,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	s.logger.Info("document registered", "document_id", doc.ID, "filename", doc.Filename)
	return nil
}

// GetDocument returns the document with the given id, or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	const q = `SELECT ` + docColumns + ` FROM documents WHERE id = ?`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns documents newest first, optionally filtered by
// status. An empty status returns everything.
func (s *Store) ListDocuments(ctx context.Context, status string) ([]*Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents ORDER BY created_at DESC, id`
	args := []any{}
	if status != "" {
		q = `SELECT ` + docColumns + ` FROM documents WHERE status = ? ORDER BY created_at DESC, id`
		args = append(args, status)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
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
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

// UpdateStatus moves a document to a new pipeline status.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	s.logger.Debug("document status updated", "document_id", id, "status", status)
	return nil
}

// SetOCRResult records the page count and aggregate confidence measured
// by the OCR step.
func (s *Store) SetOCRResult(ctx context.Context, id string, pages int, confidence float64) error {
	const q = `UPDATE documents SET pages = ?, ocr_confidence = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, pages, confidence, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record ocr result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document and everything hanging off it.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
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

	for _, table := range []string{
		"document_issues", "review_feedback", "field_corrections",
		"generation_calls", "step_metrics",
	} {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = ErrNotFound
		return err
	}
	return tx.Commit()
}
