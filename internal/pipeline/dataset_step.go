package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/vitaehq/vitae/internal/correction"
	"github.com/vitaehq/vitae/internal/store"
)

// datasetStep promotes cleanly extracted documents to validated, which
// makes them eligible for the dataset builder. Documents flagged for
// review keep their extracted status until a reviewer approves them;
// holding one back is a normal outcome, not a step failure.
type datasetStep struct{}

func (datasetStep) Name() string            { return StepDataset }
func (datasetStep) CompletedStatus() string { return "" }

func (datasetStep) Run(ctx context.Context, deps *Deps, docID string) error {
	doc, err := deps.Store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Status == store.StatusValidated {
		return nil
	}
	if doc.FlaggedForReview || doc.Outcome != string(correction.OutcomeAccepted) {
		deps.Logger.Info("document held for review",
			"document", docID,
			"outcome", doc.Outcome,
			"coverage", doc.Coverage)
		return nil
	}

	// The builder reads the record artifact; a missing one means the
	// extract step was skipped or its output was deleted.
	if _, err := os.Stat(deps.Home.RecordPath(docID)); err != nil {
		return fmt.Errorf("record artifact missing: %w", err)
	}

	if err := deps.Store.UpdateStatus(ctx, docID, store.StatusValidated); err != nil {
		return err
	}
	deps.Logger.Info("document validated for dataset", "document", docID, "coverage", doc.Coverage)
	return nil
}
