package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vitaehq/vitae/internal/correction"
	"github.com/vitaehq/vitae/internal/ocr"
	"github.com/vitaehq/vitae/internal/providers"
	"github.com/vitaehq/vitae/internal/store"
)

// extractStep runs the correction loop over stored OCR text and persists
// the outcome twice: the result row plus issues in the store, and the
// full record with its iteration history as a JSON artifact on disk.
type extractStep struct{}

func (extractStep) Name() string            { return StepExtract }
func (extractStep) CompletedStatus() string { return store.StatusExtracted }

func (extractStep) Run(ctx context.Context, deps *Deps, docID string) error {
	doc, err := ocr.Load(deps.Home.OcrResultPath(docID))
	if err != nil {
		return fmt.Errorf("no stored OCR text, run the ocr step first: %w", err)
	}
	doc.ID = docID

	cfg := deps.effectiveConfig(ctx)
	gen := &generationAdapter{
		client:  deps.Registry.Generation(),
		limiter: deps.Registry.Limiter(),
	}

	ctrl := correction.NewController(gen, correction.Options{
		MaxIterations:     cfg.Correction.MaxIterations,
		CoverageThreshold: cfg.Correction.CoverageThreshold,
		MinTokenLength:    cfg.Correction.MinTokenLength,
		MissingTokenCap:   cfg.Correction.MissingTokenCap,
		Logger:            deps.Logger,
		OnCall: func(call correction.CallRecord) {
			model := gen.model
			if model == "" {
				model = deps.Registry.Backend()
			}
			row := &store.CallRow{
				DocumentID:  call.DocumentID,
				Iteration:   call.Iteration,
				Model:       model,
				PromptChars: len(call.Prompt),
				OutputChars: len(call.Output),
				DurationMS:  call.Duration.Milliseconds(),
				Status:      store.ResultOK,
			}
			if call.Err != nil {
				row.Status = store.ResultError
				row.Error = call.Err.Error()
			}
			if err := deps.Store.RecordCall(ctx, row); err != nil {
				deps.Logger.Warn("failed to record generation call", "document", call.DocumentID, "error", err)
			}
		},
	})

	fr, runErr := ctrl.Run(ctx, doc)
	if fr != nil {
		flagged := fr.NeedsReview(cfg.Correction.ReviewThreshold)
		if err := deps.Store.SaveResult(ctx, docID, fr, flagged); err != nil {
			return err
		}
		if err := deps.Home.EnsureDocumentDirs(docID); err != nil {
			return err
		}
		if err := writeRecord(deps.Home.RecordPath(docID), fr); err != nil {
			return err
		}
	}
	if runErr != nil {
		// Backend unavailable; the attempt is already persisted above.
		return runErr
	}

	deps.Logger.Info("extraction complete",
		"document", docID,
		"outcome", fr.Outcome,
		"coverage", fr.Coverage,
		"iterations", fr.Iterations)
	return nil
}

// writeRecord persists the full correction outcome, history included, as
// the document's record artifact.
func writeRecord(path string, fr *correction.FinalRecord) error {
	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// generationAdapter narrows a providers.GenerationClient to the
// correction loop's prompt-in, text-out contract, applying the shared
// rate limit before every call. One adapter serves one correction
// session, so tracking the model used needs no locking.
type generationAdapter struct {
	client  providers.GenerationClient
	limiter *providers.RateLimiter
	model   string
}

func (a *generationAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	res, err := a.client.Generate(ctx, &providers.GenerationRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	a.model = res.ModelUsed
	return res.Content, nil
}
