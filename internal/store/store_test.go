package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitaehq/vitae/internal/correction"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "vitae.db"), testLogger())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitae.db")

	s1, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	if err := s1.CreateDocument(context.Background(), &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}
	s1.Close()

	s2, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer s2.Close()

	doc, err := s2.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() after reopen error: %v", err)
	}
	if doc.Filename != "a.pdf" {
		t.Errorf("Filename = %q, want a.pdf", doc.Filename)
	}
}

func TestCreateDocumentDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &Document{ID: "doc-1", Filename: "resume.pdf", Pages: 2}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if got.Status != StatusUploaded {
		t.Errorf("Status = %q, want %q", got.Status, StatusUploaded)
	}
	if got.ReviewStatus != ReviewPending {
		t.Errorf("ReviewStatus = %q, want %q", got.ReviewStatus, ReviewPending)
	}
	if got.Pages != 2 {
		t.Errorf("Pages = %d, want 2", got.Pages)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}
	if got.FlaggedForReview {
		t.Error("new document should not be flagged")
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDocument(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDocumentsStatusFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []struct{ id, status string }{
		{"doc-1", StatusUploaded},
		{"doc-2", StatusExtracted},
		{"doc-3", StatusUploaded},
	} {
		doc := &Document{ID: d.id, Filename: d.id + ".pdf", Status: d.status}
		if err := s.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument(%s) error: %v", d.id, err)
		}
	}

	all, err := s.ListDocuments(ctx, "")
	if err != nil {
		t.Fatalf("ListDocuments() error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered count = %d, want 3", len(all))
	}

	uploaded, err := s.ListDocuments(ctx, StatusUploaded)
	if err != nil {
		t.Fatalf("ListDocuments(uploaded) error: %v", err)
	}
	if len(uploaded) != 2 {
		t.Errorf("uploaded count = %d, want 2", len(uploaded))
	}
	for _, doc := range uploaded {
		if doc.Status != StatusUploaded {
			t.Errorf("document %s has status %q", doc.ID, doc.Status)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}

	if err := s.UpdateStatus(ctx, "doc-1", StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if doc.Status != StatusProcessing {
		t.Errorf("Status = %q, want %q", doc.Status, StatusProcessing)
	}

	if err := s.UpdateStatus(ctx, "missing", StatusFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus(missing) err = %v, want ErrNotFound", err)
	}
}

func TestSetOCRResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}
	if err := s.SetOCRResult(ctx, "doc-1", 3, 0.92); err != nil {
		t.Fatalf("SetOCRResult() error: %v", err)
	}

	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if doc.Pages != 3 {
		t.Errorf("Pages = %d, want 3", doc.Pages)
	}
	if doc.OCRConfidence != 0.92 {
		t.Errorf("OCRConfidence = %v, want 0.92", doc.OCRConfidence)
	}
}

func testFinalRecord() *correction.FinalRecord {
	return &correction.FinalRecord{
		DocumentID: "doc-1",
		Outcome:    correction.OutcomeExhausted,
		Valid:      false,
		Coverage:   0.61,
		Iterations: 2,
		History: []correction.IterationReport{
			{
				Iteration: 1,
				Parsed:    true,
				Coverage:  0.55,
				Issues: []correction.Issue{
					{Field: "Name", Code: correction.CodeMissingField, Severity: "error", Message: "required field Name is absent"},
				},
			},
			{
				Iteration: 2,
				Parsed:    true,
				Coverage:  0.61,
				Issues: []correction.Issue{
					{Field: "Email", Code: correction.CodeSuspectValue, Severity: "warning", Message: "Email does not look like an address"},
				},
			},
		},
	}
}

func TestSaveResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}
	if err := s.SaveResult(ctx, "doc-1", testFinalRecord(), true); err != nil {
		t.Fatalf("SaveResult() error: %v", err)
	}

	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if doc.Outcome != string(correction.OutcomeExhausted) {
		t.Errorf("Outcome = %q, want exhausted", doc.Outcome)
	}
	if doc.Coverage != 0.61 {
		t.Errorf("Coverage = %v, want 0.61", doc.Coverage)
	}
	if doc.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", doc.Iterations)
	}
	if !doc.FlaggedForReview {
		t.Error("document should be flagged for review")
	}
	if doc.ReviewStatus != ReviewPending {
		t.Errorf("ReviewStatus = %q, want pending", doc.ReviewStatus)
	}

	issues, err := s.ListIssues(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListIssues() error: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("issue count = %d, want 2", len(issues))
	}
	if issues[0].Iteration != 1 || issues[0].Code != correction.CodeMissingField {
		t.Errorf("first issue = %+v", issues[0])
	}
	if issues[1].Iteration != 2 || issues[1].Severity != "warning" {
		t.Errorf("second issue = %+v", issues[1])
	}
}

func TestSaveResultReplacesIssues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}
	if err := s.SaveResult(ctx, "doc-1", testFinalRecord(), true); err != nil {
		t.Fatalf("first SaveResult() error: %v", err)
	}

	// A rerun that converges cleanly should wipe the old diagnostics.
	fr := &correction.FinalRecord{
		DocumentID: "doc-1",
		Outcome:    correction.OutcomeAccepted,
		Valid:      true,
		Coverage:   0.95,
		Iterations: 1,
		History:    []correction.IterationReport{{Iteration: 1, Parsed: true, Valid: true, Coverage: 0.95}},
	}
	if err := s.SaveResult(ctx, "doc-1", fr, false); err != nil {
		t.Fatalf("second SaveResult() error: %v", err)
	}

	issues, err := s.ListIssues(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListIssues() error: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("issue count after clean rerun = %d, want 0", len(issues))
	}

	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if doc.FlaggedForReview {
		t.Error("clean rerun should clear the review flag")
	}
	if !doc.SchemaValid {
		t.Error("SchemaValid should be true after accepted rerun")
	}
}

func TestSaveResultNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveResult(context.Background(), "missing", testFinalRecord(), false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}
	if err := s.SaveResult(ctx, "doc-1", testFinalRecord(), true); err != nil {
		t.Fatalf("SaveResult() error: %v", err)
	}
	if err := s.RecordCall(ctx, &CallRow{DocumentID: "doc-1", Iteration: 1, Model: "m", Status: ResultOK}); err != nil {
		t.Fatalf("RecordCall() error: %v", err)
	}
	if err := s.RecordStep(ctx, &StepRow{DocumentID: "doc-1", Step: "ocr", Status: ResultOK, DurationMS: 10}); err != nil {
		t.Fatalf("RecordStep() error: %v", err)
	}

	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument() error: %v", err)
	}

	if _, err := s.GetDocument(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument() after delete err = %v, want ErrNotFound", err)
	}
	issues, err := s.ListIssues(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListIssues() error: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("issues survived delete: %d", len(issues))
	}
	calls, err := s.ListCalls(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListCalls() error: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("calls survived delete: %d", len(calls))
	}

	if err := s.DeleteDocument(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteDocument() err = %v, want ErrNotFound", err)
	}
}

func TestTimestampsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	if err := s.CreateDocument(ctx, &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}
	after := time.Now().UTC().Add(time.Second)

	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if doc.CreatedAt.Before(before) || doc.CreatedAt.After(after) {
		t.Errorf("CreatedAt = %v, want within [%v, %v]", doc.CreatedAt, before, after)
	}
}
