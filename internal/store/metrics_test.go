package store

import (
	"context"
	"testing"

	"github.com/vitaehq/vitae/internal/correction"
)

func TestRecordAndListCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, &Document{ID: "doc-1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}
	calls := []*CallRow{
		{DocumentID: "doc-1", Iteration: 1, Model: "mistral", PromptChars: 900, OutputChars: 300, DurationMS: 1200, Status: ResultOK},
		{DocumentID: "doc-1", Iteration: 2, Model: "mistral", PromptChars: 1100, OutputChars: 0, DurationMS: 80, Status: ResultError, Error: "backend unavailable"},
	}
	for i, call := range calls {
		if err := s.RecordCall(ctx, call); err != nil {
			t.Fatalf("RecordCall(%d) error: %v", i, err)
		}
	}

	got, err := s.ListCalls(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListCalls() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("call count = %d, want 2", len(got))
	}
	if got[0].Iteration != 1 || got[0].Status != ResultOK {
		t.Errorf("first call = %+v", got[0])
	}
	if got[1].Error != "backend unavailable" {
		t.Errorf("second call error = %q", got[1].Error)
	}
}

func TestGetSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two extracted documents with results, one untouched upload.
	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		if err := s.CreateDocument(ctx, &Document{ID: id, Filename: id + ".pdf"}); err != nil {
			t.Fatalf("CreateDocument(%s) error: %v", id, err)
		}
	}
	accepted := &correction.FinalRecord{
		DocumentID: "doc-1", Outcome: correction.OutcomeAccepted,
		Valid: true, Coverage: 0.9, Iterations: 1,
	}
	if err := s.SaveResult(ctx, "doc-1", accepted, false); err != nil {
		t.Fatalf("SaveResult(doc-1) error: %v", err)
	}
	if err := s.UpdateStatus(ctx, "doc-1", StatusExtracted); err != nil {
		t.Fatalf("UpdateStatus(doc-1) error: %v", err)
	}
	exhausted := &correction.FinalRecord{
		DocumentID: "doc-2", Outcome: correction.OutcomeExhausted,
		Valid: false, Coverage: 0.5, Iterations: 3,
	}
	if err := s.SaveResult(ctx, "doc-2", exhausted, true); err != nil {
		t.Fatalf("SaveResult(doc-2) error: %v", err)
	}
	if err := s.UpdateStatus(ctx, "doc-2", StatusExtracted); err != nil {
		t.Fatalf("UpdateStatus(doc-2) error: %v", err)
	}

	if err := s.RecordCall(ctx, &CallRow{DocumentID: "doc-1", Iteration: 1, Model: "m", DurationMS: 100, Status: ResultOK}); err != nil {
		t.Fatalf("RecordCall() error: %v", err)
	}
	if err := s.RecordCall(ctx, &CallRow{DocumentID: "doc-2", Iteration: 1, Model: "m", DurationMS: 300, Status: ResultError}); err != nil {
		t.Fatalf("RecordCall() error: %v", err)
	}
	if err := s.RecordStep(ctx, &StepRow{DocumentID: "doc-1", Step: "ocr", DurationMS: 40, Status: ResultOK}); err != nil {
		t.Fatalf("RecordStep() error: %v", err)
	}
	if err := s.RecordStep(ctx, &StepRow{DocumentID: "doc-2", Step: "ocr", DurationMS: 60, Status: ResultOK}); err != nil {
		t.Fatalf("RecordStep() error: %v", err)
	}
	if err := s.RecordStep(ctx, &StepRow{DocumentID: "doc-2", Step: "extract", DurationMS: 500, Status: ResultError, Detail: "exhausted"}); err != nil {
		t.Fatalf("RecordStep() error: %v", err)
	}

	sum, err := s.GetSummary(ctx)
	if err != nil {
		t.Fatalf("GetSummary() error: %v", err)
	}

	if sum.Documents != 3 {
		t.Errorf("Documents = %d, want 3", sum.Documents)
	}
	if sum.ByStatus[StatusExtracted] != 2 || sum.ByStatus[StatusUploaded] != 1 {
		t.Errorf("ByStatus = %v", sum.ByStatus)
	}
	if sum.ByOutcome["accepted"] != 1 || sum.ByOutcome["exhausted"] != 1 {
		t.Errorf("ByOutcome = %v", sum.ByOutcome)
	}
	if sum.Flagged != 1 {
		t.Errorf("Flagged = %d, want 1", sum.Flagged)
	}
	// Means cover only the two documents with outcomes: (0.9+0.5)/2 and (1+3)/2.
	if sum.MeanCoverage < 0.69 || sum.MeanCoverage > 0.71 {
		t.Errorf("MeanCoverage = %v, want 0.7", sum.MeanCoverage)
	}
	if sum.MeanIterations != 2 {
		t.Errorf("MeanIterations = %v, want 2", sum.MeanIterations)
	}

	if sum.Calls.Count != 2 || sum.Calls.ErrorCount != 1 {
		t.Errorf("Calls = %+v", sum.Calls)
	}
	if sum.Calls.TotalDuration != 400 {
		t.Errorf("Calls.TotalDuration = %d, want 400", sum.Calls.TotalDuration)
	}

	ocrSteps := sum.Steps["ocr"]
	if ocrSteps.Count != 2 || ocrSteps.ErrorCount != 0 {
		t.Errorf("Steps[ocr] = %+v", ocrSteps)
	}
	extractSteps := sum.Steps["extract"]
	if extractSteps.Count != 1 || extractSteps.ErrorCount != 1 {
		t.Errorf("Steps[extract] = %+v", extractSteps)
	}
}

func TestGetSummaryEmpty(t *testing.T) {
	s := newTestStore(t)

	sum, err := s.GetSummary(context.Background())
	if err != nil {
		t.Fatalf("GetSummary() on empty store error: %v", err)
	}
	if sum.Documents != 0 || sum.Flagged != 0 {
		t.Errorf("empty summary = %+v", sum)
	}
	if sum.MeanCoverage != 0 || sum.Calls.Count != 0 {
		t.Errorf("empty summary means = %+v", sum)
	}
}
