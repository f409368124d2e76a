// Package pipeline defines the named step sequences that carry a document
// from uploaded PDF to dataset-ready record, and the batch runner that
// executes them across documents under a worker bound. Steps are strictly
// sequential within a document; concurrency exists only across documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vitaehq/vitae/internal/config"
	"github.com/vitaehq/vitae/internal/home"
	"github.com/vitaehq/vitae/internal/providers"
	"github.com/vitaehq/vitae/internal/store"
)

// Pipeline names.
const (
	PipelineFull      = "full"      // ocr -> extract -> dataset
	PipelineExtract   = "extract"   // ocr -> extract
	PipelineStructure = "structure" // extract only, over stored OCR text
)

// Step names.
const (
	StepOCR     = "ocr"
	StepExtract = "extract"
	StepDataset = "dataset"
)

// Sentinel errors for pipeline resolution.
var (
	ErrUnknownPipeline = errors.New("unknown pipeline")
	ErrUnknownStep     = errors.New("unknown step")
	ErrStepOrder       = errors.New("start step comes after end step")
)

// Step is one unit of per-document work. Steps are stateless; everything
// they need arrives through Deps and the document ID.
type Step interface {
	// Name identifies the step in pipeline definitions and step metrics.
	Name() string

	// CompletedStatus is the document status a successful run advances
	// to, or "" when the step manages status itself.
	CompletedStatus() string

	// Run executes the step for one document.
	Run(ctx context.Context, deps *Deps, docID string) error
}

// Deps bundles the services steps run against. The runner holds one Deps
// for its lifetime; steps must not retain it past a Run call.
type Deps struct {
	Store    *store.Store
	Registry *providers.Registry
	Home     *home.Dir
	Config   *config.Manager
	Settings config.Store // optional runtime-tunable overlay
	Logger   *slog.Logger
}

// effectiveConfig returns the file config with runtime settings overlaid.
// A damaged settings table falls back to the file config rather than
// stalling the pipeline.
func (d *Deps) effectiveConfig(ctx context.Context) *config.Config {
	cfg := d.Config.Get()
	if d.Settings == nil {
		return cfg
	}
	merged, err := config.Overlay(ctx, d.Settings, cfg)
	if err != nil {
		d.Logger.Warn("failed to overlay settings, using file config", "error", err)
		return cfg
	}
	return merged
}

// pipelines maps each pipeline name to its ordered step names.
var pipelines = map[string][]string{
	PipelineFull:      {StepOCR, StepExtract, StepDataset},
	PipelineExtract:   {StepOCR, StepExtract},
	PipelineStructure: {StepExtract},
}

// steps maps step names to their shared stateless implementations.
var steps = map[string]Step{
	StepOCR:     ocrStep{},
	StepExtract: extractStep{},
	StepDataset: datasetStep{},
}

// Names returns the known pipeline names, sorted.
func Names() []string {
	names := make([]string, 0, len(pipelines))
	for name := range pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Steps returns the ordered step names of a pipeline, or nil for an
// unknown name.
func Steps(pipeline string) []string {
	names, ok := pipelines[pipeline]
	if !ok {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Resolve returns the ordered steps of a named pipeline, optionally
// narrowed to the inclusive startStep..endStep range. Unknown names and
// an inverted range are errors.
func Resolve(pipeline, startStep, endStep string) ([]Step, error) {
	names, ok := pipelines[pipeline]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPipeline, pipeline, strings.Join(Names(), ", "))
	}

	start := 0
	end := len(names) - 1
	if startStep != "" {
		i := stepIndex(names, startStep)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q (pipeline %s runs %s)", ErrUnknownStep, startStep, pipeline, strings.Join(names, ", "))
		}
		start = i
	}
	if endStep != "" {
		i := stepIndex(names, endStep)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q (pipeline %s runs %s)", ErrUnknownStep, endStep, pipeline, strings.Join(names, ", "))
		}
		end = i
	}
	if start > end {
		return nil, fmt.Errorf("%w: %q after %q", ErrStepOrder, startStep, endStep)
	}

	resolved := make([]Step, 0, end-start+1)
	for _, name := range names[start : end+1] {
		resolved = append(resolved, steps[name])
	}
	return resolved, nil
}

func stepIndex(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
