package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaehq/vitae/internal/store"
)

// DefaultWorkers bounds cross-document concurrency when neither options
// nor config set one.
const DefaultWorkers = 2

// Options selects the pipeline and optional step range for a run.
type Options struct {
	// Pipeline names the step sequence; empty selects the configured
	// default.
	Pipeline string

	// StartStep and EndStep narrow the run to an inclusive step range.
	StartStep string
	EndStep   string

	// Workers overrides the configured cross-document concurrency bound.
	Workers int
}

// DocumentResult is the per-document outcome of a run.
type DocumentResult struct {
	DocumentID     string   `json:"document_id"`
	Pipeline       string   `json:"pipeline"`
	CompletedSteps []string `json:"completed_steps,omitempty"`
	FailedStep     string   `json:"failed_step,omitempty"`
	Error          string   `json:"error,omitempty"`
	DurationMS     int64    `json:"duration_ms"`
}

// BatchResult summarizes a batch run. Skipped counts documents that were
// never scheduled because the batch was cancelled first.
type BatchResult struct {
	Pipeline  string           `json:"pipeline"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped,omitempty"`
	Results   []DocumentResult `json:"results"`
}

// Runner executes pipelines over documents. One Runner serves the whole
// process; it holds no per-run state.
type Runner struct {
	deps   *Deps
	logger *slog.Logger
}

// NewRunner creates a runner over the given dependencies.
func NewRunner(deps *Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
		deps.Logger = logger
	}
	return &Runner{deps: deps, logger: logger}
}

// ProcessDocument runs the selected pipeline for one document. The error
// return covers resolution failures and unknown documents; a step
// failure is reported inside the result.
func (r *Runner) ProcessDocument(ctx context.Context, docID string, opts Options) (*DocumentResult, error) {
	pipelineName, pipelineSteps, err := r.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	if _, err := r.deps.Store.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	res := r.runDocument(ctx, docID, pipelineName, pipelineSteps)
	return &res, nil
}

// ProcessBatch runs the selected pipeline over the given documents,
// processing up to the worker bound concurrently. Per-document failures
// are recorded and do not stop the batch; cancellation stops scheduling
// while in-flight documents wind down on their own.
func (r *Runner) ProcessBatch(ctx context.Context, docIDs []string, opts Options) (*BatchResult, error) {
	pipelineName, pipelineSteps, err := r.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = r.deps.effectiveConfig(ctx).Pipeline.Workers
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	r.logger.Info("starting batch",
		"pipeline", pipelineName,
		"documents", len(docIDs),
		"workers", workers)

	batch := &BatchResult{Pipeline: pipelineName, Total: len(docIDs)}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)

	for _, id := range docIDs {
		// Checked before the select: with a free worker slot and a done
		// context both ready, select alone would pick arbitrarily.
		if ctx.Err() != nil {
			batch.Skipped++
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			batch.Skipped++
			continue
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.runDocument(ctx, id, pipelineName, pipelineSteps)
			mu.Lock()
			batch.Results = append(batch.Results, res)
			if res.Error == "" {
				batch.Succeeded++
			} else {
				batch.Failed++
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	r.logger.Info("batch finished",
		"pipeline", pipelineName,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"skipped", batch.Skipped)
	return batch, nil
}

// resolve turns run options into a concrete step sequence, falling back
// to the configured default pipeline name.
func (r *Runner) resolve(ctx context.Context, opts Options) (string, []Step, error) {
	name := opts.Pipeline
	if name == "" {
		name = r.deps.effectiveConfig(ctx).Pipeline.Default
	}
	if name == "" {
		name = PipelineFull
	}
	resolved, err := Resolve(name, opts.StartStep, opts.EndStep)
	if err != nil {
		return "", nil, err
	}
	return name, resolved, nil
}

// runDocument executes the step sequence for one document, owning its
// status transitions: processing at entry, the per-step completion
// status after each step, failed on the first error.
func (r *Runner) runDocument(ctx context.Context, docID, pipelineName string, pipelineSteps []Step) DocumentResult {
	res := DocumentResult{DocumentID: docID, Pipeline: pipelineName}
	logger := r.logger.With("document", docID, "pipeline", pipelineName)
	start := time.Now()
	defer func() { res.DurationMS = time.Since(start).Milliseconds() }()

	if err := r.deps.Store.UpdateStatus(ctx, docID, store.StatusProcessing); err != nil {
		res.Error = err.Error()
		return res
	}

	for _, step := range pipelineSteps {
		if err := ctx.Err(); err != nil {
			r.failDocument(ctx, &res, logger, step.Name(), err)
			return res
		}

		stepStart := time.Now()
		err := step.Run(ctx, r.deps, docID)
		r.recordStep(ctx, docID, step.Name(), time.Since(stepStart), err)
		if err != nil {
			r.failDocument(ctx, &res, logger, step.Name(), err)
			return res
		}

		res.CompletedSteps = append(res.CompletedSteps, step.Name())
		if status := step.CompletedStatus(); status != "" {
			if err := r.deps.Store.UpdateStatus(ctx, docID, status); err != nil {
				r.failDocument(ctx, &res, logger, step.Name(), err)
				return res
			}
		}
		logger.Info("step complete", "step", step.Name(), "duration", time.Since(stepStart))
	}
	return res
}

// failDocument records a step failure and marks the document failed.
// The status write survives run cancellation so a cancelled batch still
// leaves accurate rows behind.
func (r *Runner) failDocument(ctx context.Context, res *DocumentResult, logger *slog.Logger, stepName string, err error) {
	res.FailedStep = stepName
	res.Error = err.Error()
	logger.Error("step failed", "step", stepName, "error", err)

	if uerr := r.deps.Store.UpdateStatus(context.WithoutCancel(ctx), res.DocumentID, store.StatusFailed); uerr != nil {
		logger.Warn("failed to mark document failed", "error", uerr)
	}
}

// recordStep persists one step metric row; metric write failures are
// logged, never fatal.
func (r *Runner) recordStep(ctx context.Context, docID, stepName string, d time.Duration, runErr error) {
	row := &store.StepRow{
		DocumentID: docID,
		Step:       stepName,
		DurationMS: d.Milliseconds(),
		Status:     store.ResultOK,
	}
	if runErr != nil {
		row.Status = store.ResultError
		row.Detail = runErr.Error()
	}
	if err := r.deps.Store.RecordStep(context.WithoutCancel(ctx), row); err != nil {
		r.logger.Warn("failed to record step metric", "document", docID, "step", stepName, "error", err)
	}
}

// ProcessByStatus runs the selected pipeline over every document in the
// given status. It lists matching documents first, so documents added
// mid-run are not picked up.
func (r *Runner) ProcessByStatus(ctx context.Context, status string, opts Options) (*BatchResult, error) {
	docs, err := r.deps.Store.ListDocuments(ctx, status)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no documents in status %q", status)
	}
	return r.ProcessBatch(ctx, ids, opts)
}
