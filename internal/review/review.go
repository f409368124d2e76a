// Package review implements the human review workflow over flagged
// documents: queue listing, reviewer feedback, schema-checked field
// corrections, and the approve/reject resolution that gates dataset
// eligibility. Flagging itself happens at extraction time, when a
// record's outcome is anything but accepted or its coverage falls below
// the review threshold.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/vitaehq/vitae/internal/correction"
	"github.com/vitaehq/vitae/internal/home"
	"github.com/vitaehq/vitae/internal/record"
	"github.com/vitaehq/vitae/internal/store"
)

// ErrUnknownField is returned when a correction targets a field outside
// the record contract.
var ErrUnknownField = errors.New("unknown record field")

// Service exposes the review operations. One Service serves the whole
// process.
type Service struct {
	store  *store.Store
	home   *home.Dir
	logger *slog.Logger
}

// NewService creates a review service.
func NewService(st *store.Store, h *home.Dir, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, home: h, logger: logger}
}

// Queue returns flagged documents awaiting review, oldest first.
func (s *Service) Queue(ctx context.Context) ([]*store.Document, error) {
	return s.store.ListReviewQueue(ctx)
}

// Detail is everything a reviewer needs for one document: the stored
// row, its structured diagnostics, and the extraction result artifact.
// Result is nil when no extraction has produced one yet.
type Detail struct {
	Document *store.Document         `json:"document"`
	Issues   []store.IssueRow        `json:"issues,omitempty"`
	Result   *correction.FinalRecord `json:"result,omitempty"`
}

// Get assembles the review detail for a document.
func (s *Service) Get(ctx context.Context, docID string) (*Detail, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	issues, err := s.store.ListIssues(ctx, docID)
	if err != nil {
		return nil, err
	}
	fr, err := s.loadResult(docID)
	if err != nil {
		return nil, err
	}
	return &Detail{Document: doc, Issues: issues, Result: fr}, nil
}

// SubmitFeedback records a reviewer verdict with optional notes.
func (s *Service) SubmitFeedback(ctx context.Context, docID, reviewer, verdict, notes string) error {
	if verdict == "" {
		return fmt.Errorf("verdict is required")
	}
	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		return err
	}
	fb := &store.Feedback{DocumentID: docID, Reviewer: reviewer, Verdict: verdict, Notes: notes}
	if err := s.store.InsertFeedback(ctx, fb); err != nil {
		return err
	}
	s.logger.Info("feedback recorded", "document", docID, "verdict", verdict)
	return nil
}

// ApplyCorrections merges reviewer-supplied field values into the
// document's record, validates the merged record against the canonical
// schema, and only then persists the correction rows and the updated
// artifact. A document that never produced a parseable record starts
// from an all-null base, so a reviewer can key in the whole record.
func (s *Service) ApplyCorrections(ctx context.Context, docID string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("no corrections given")
	}
	for field := range fields {
		if !knownField(field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	fr, err := s.loadResult(docID)
	if err != nil {
		return err
	}
	if fr == nil {
		fr = &correction.FinalRecord{DocumentID: docID, Outcome: correction.Outcome(doc.Outcome)}
	}

	base := fr.Record
	if base == nil {
		base = (&record.Record{}).ToMap()
	}
	merged := make(map[string]any, len(base)+len(fields))
	for k, v := range base {
		merged[k] = v
	}

	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)

	rows := make([]store.Correction, 0, len(names))
	for _, field := range names {
		rows = append(rows, store.Correction{
			DocumentID: docID,
			Field:      field,
			OldValue:   encodeValue(base[field]),
			NewValue:   encodeValue(fields[field]),
		})
		merged[field] = fields[field]
	}

	if err := record.ValidateSchema(merged); err != nil {
		return fmt.Errorf("corrected record rejected: %w", err)
	}

	if err := s.store.InsertCorrections(ctx, rows); err != nil {
		return err
	}

	// The artifact becomes the corrected ground truth the dataset builder
	// reads; extraction-time metrics on the document row stay untouched.
	fr.Record = merged
	fr.Valid = true
	if err := s.writeResult(docID, fr); err != nil {
		return err
	}
	s.logger.Info("corrections applied", "document", docID, "fields", names)
	return nil
}

// Approve marks the review approved and promotes the document to
// validated, making it eligible for the dataset builder.
func (s *Service) Approve(ctx context.Context, docID string) error {
	if err := s.store.ResolveReview(ctx, docID, store.ReviewApproved); err != nil {
		return err
	}
	s.logger.Info("document approved", "document", docID)
	return nil
}

// Reject marks the review rejected; the document keeps its status and
// never reaches the dataset.
func (s *Service) Reject(ctx context.Context, docID string) error {
	if err := s.store.ResolveReview(ctx, docID, store.ReviewRejected); err != nil {
		return err
	}
	s.logger.Info("document rejected", "document", docID)
	return nil
}

// loadResult reads the extraction result artifact, returning nil when
// none exists yet.
func (s *Service) loadResult(docID string) (*correction.FinalRecord, error) {
	data, err := os.ReadFile(s.home.RecordPath(docID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record artifact: %w", err)
	}
	var fr correction.FinalRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("failed to parse record artifact: %w", err)
	}
	return &fr, nil
}

func (s *Service) writeResult(docID string, fr *correction.FinalRecord) error {
	if err := s.home.EnsureDocumentDirs(docID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := os.WriteFile(s.home.RecordPath(docID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// knownField reports whether a field name belongs to the record
// contract.
func knownField(name string) bool {
	switch name {
	case record.KeyName, record.KeyEmail, record.KeyPhone,
		record.KeyCurrentPosition, record.KeySkills, record.KeyExperience:
		return true
	}
	return false
}

// encodeValue renders a correction value for the audit row.
func encodeValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
