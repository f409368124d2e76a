// Package dataset assembles Donut-style training data from validated
// documents. A build pairs each document's corrected record with its
// rendered page images, shuffles deterministically, splits into train
// and validation sets, and writes one metadata.jsonl line per sample
// alongside the copied images under the home dataset directory.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vitaehq/vitae/internal/correction"
	"github.com/vitaehq/vitae/internal/home"
	"github.com/vitaehq/vitae/internal/record"
	"github.com/vitaehq/vitae/internal/store"
)

const (
	// DefaultSplit is the train fraction when none is configured.
	DefaultSplit = 0.8

	// DefaultSeed shuffles reproducibly when none is configured.
	DefaultSeed = 42

	// TaskPrompt prefixes every sample; the fine-tuned model is prompted
	// with the same string at inference time.
	TaskPrompt = "<s_docvqa><s_resume_extraction>"
)

// Sample is one metadata.jsonl line: the images, the ground-truth
// record, and the target string the model learns to emit.
type Sample struct {
	ID         string         `json:"id"`
	Images     []string       `json:"images"`
	Record     map[string]any `json:"record"`
	GTParse    string         `json:"gt_parse"`
	TaskPrompt string         `json:"task_prompt"`
}

// Stats summarizes one build.
type Stats struct {
	TotalDocuments    int       `json:"total_documents"`
	ValidSamples      int       `json:"valid_samples"`
	TrainSamples      int       `json:"train_samples"`
	ValidationSamples int       `json:"validation_samples"`
	MultiPageSamples  int       `json:"multi_page_samples"`
	SinglePageSamples int       `json:"single_page_samples"`
	BuiltAt           time.Time `json:"built_at"`
}

// Status reports what is on disk from the last build.
type Status struct {
	Built          bool   `json:"built"`
	TrainPath      string `json:"train_path,omitempty"`
	ValidationPath string `json:"validation_path,omitempty"`
	Stats          *Stats `json:"stats,omitempty"`
}

// Options tune a build. Zero values fall back to the defaults.
type Options struct {
	Split float64 // train fraction (0-1)
	Seed  int64   // shuffle seed
}

// Builder turns validated documents into a training dataset.
type Builder struct {
	store  *store.Store
	home   *home.Dir
	logger *slog.Logger
}

func NewBuilder(st *store.Store, h *home.Dir, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: st, home: h, logger: logger}
}

// sample is a prepared candidate before it lands in a split.
type sample struct {
	doc    *store.Document
	record map[string]any
	target string
	images []string // absolute source paths, in page order
}

// Build rebuilds the dataset from every validated document. Documents
// with a missing or unusable record artifact are skipped with a
// warning, never failing the build. Both split directories are
// recreated from scratch so stale samples cannot linger.
func (b *Builder) Build(ctx context.Context, opts Options) (*Stats, error) {
	split := opts.Split
	if split <= 0 || split > 1 {
		split = DefaultSplit
	}
	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}

	docs, err := b.store.ListDocuments(ctx, store.StatusValidated)
	if err != nil {
		return nil, fmt.Errorf("list validated documents: %w", err)
	}

	stats := &Stats{TotalDocuments: len(docs), BuiltAt: time.Now().UTC()}
	if len(docs) == 0 {
		b.logger.Warn("no validated documents, dataset not built")
		return stats, nil
	}
	b.logger.Info("building dataset", "documents", len(docs), "split", split, "seed", seed)

	samples := make([]*sample, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := b.prepareSample(doc)
		if err != nil {
			b.logger.Warn("skipping document", "id", doc.ID, "reason", err)
			continue
		}
		samples = append(samples, s)
	}
	stats.ValidSamples = len(samples)
	if len(samples) == 0 {
		b.logger.Warn("no usable samples among validated documents")
		return stats, nil
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })

	idx := int(float64(len(samples)) * split)
	train, val := samples[:idx], samples[idx:]

	stats.TrainSamples, err = b.writeSplit("train", train, stats)
	if err != nil {
		return nil, err
	}
	stats.ValidationSamples, err = b.writeSplit("validation", val, stats)
	if err != nil {
		return nil, err
	}

	if err := b.writeStats(stats); err != nil {
		return nil, err
	}
	b.logger.Info("dataset build complete",
		"train", stats.TrainSamples, "validation", stats.ValidationSamples)
	return stats, nil
}

// Status reports whether a dataset exists and the stats of the last
// build.
func (b *Builder) Status() (*Status, error) {
	st := &Status{}
	trainDir := filepath.Join(b.home.DatasetDir(), "train")
	if _, err := os.Stat(filepath.Join(trainDir, "metadata.jsonl")); err == nil {
		st.Built = true
		st.TrainPath = trainDir
		st.ValidationPath = filepath.Join(b.home.DatasetDir(), "validation")
	}

	data, err := os.ReadFile(b.statsPath())
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset stats: %w", err)
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parse dataset stats: %w", err)
	}
	st.Stats = &stats
	return st, nil
}

// prepareSample loads a document's record artifact and locates its page
// images. An error means this document is skipped, not that the build
// fails.
func (b *Builder) prepareSample(doc *store.Document) (*sample, error) {
	data, err := os.ReadFile(b.home.RecordPath(doc.ID))
	if err != nil {
		return nil, fmt.Errorf("record artifact: %w", err)
	}
	var fr correction.FinalRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("parse record artifact: %w", err)
	}
	if !fr.Valid || fr.Record == nil {
		return nil, errors.New("record is not usable ground truth")
	}

	pages := doc.Pages
	if pages < 1 {
		pages = 1
	}
	var images []string
	for page := 1; page <= pages; page++ {
		path := b.home.PageImagePath(doc.ID, page)
		if _, err := os.Stat(path); err != nil {
			b.logger.Warn("page image missing", "id", doc.ID, "page", page)
			continue
		}
		images = append(images, path)
	}
	if len(images) == 0 {
		return nil, errors.New("no page images on disk")
	}

	return &sample{doc: doc, record: fr.Record, target: formatTarget(fr.Record), images: images}, nil
}

// writeSplit recreates one split directory and returns how many samples
// it wrote. A sample whose images cannot be copied is skipped with a
// warning.
func (b *Builder) writeSplit(name string, samples []*sample, stats *Stats) (int, error) {
	dir := filepath.Join(b.home.DatasetDir(), name)
	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("clear %s split: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s split: %w", name, err)
	}

	f, err := os.Create(filepath.Join(dir, "metadata.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("create %s metadata: %w", name, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	written := 0
	for _, s := range samples {
		images, err := b.copyImages(s, dir)
		if err != nil {
			b.logger.Warn("skipping sample, image copy failed", "id", s.doc.ID, "error", err)
			continue
		}
		line := &Sample{
			ID:         s.doc.ID,
			Images:     images,
			Record:     s.record,
			GTParse:    "<s_answer>" + s.target + "</s_answer>",
			TaskPrompt: TaskPrompt,
		}
		if err := enc.Encode(line); err != nil {
			return written, fmt.Errorf("write %s metadata: %w", name, err)
		}
		if len(s.images) > 1 {
			stats.MultiPageSamples++
		} else {
			stats.SinglePageSamples++
		}
		written++
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close %s metadata: %w", name, err)
	}
	return written, nil
}

// copyImages places a sample's page images into the split directory and
// returns their basenames. Multi-page samples keep an index suffix.
func (b *Builder) copyImages(s *sample, dir string) ([]string, error) {
	names := make([]string, 0, len(s.images))
	for i, src := range s.images {
		name := s.doc.ID + ".png"
		if len(s.images) > 1 {
			name = fmt.Sprintf("%s_%d.png", s.doc.ID, i)
		}
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (b *Builder) statsPath() string {
	return filepath.Join(b.home.DatasetDir(), "stats.json")
}

func (b *Builder) writeStats(stats *Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset stats: %w", err)
	}
	if err := os.WriteFile(b.statsPath(), data, 0o644); err != nil {
		return fmt.Errorf("write dataset stats: %w", err)
	}
	return nil
}

// formatTarget renders a record as the line-oriented string the model
// is trained to emit: scalar fields first, then skills on one line,
// then one indented line per experience entry.
func formatTarget(rec map[string]any) string {
	var lines []string
	for _, key := range []string{record.KeyName, record.KeyEmail, record.KeyPhone, record.KeyCurrentPosition} {
		if s, ok := rec[key].(string); ok && s != "" {
			lines = append(lines, key+": "+s)
		}
	}

	if skills := stringItems(rec[record.KeySkills]); len(skills) > 0 {
		lines = append(lines, "Skills: "+strings.Join(skills, ", "))
	}

	if exps, ok := rec[record.KeyExperience].([]any); ok && len(exps) > 0 {
		var entries []string
		for _, e := range exps {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			var parts []string
			for _, k := range []string{"company", "title", "years"} {
				if s, ok := em[k].(string); ok && s != "" {
					parts = append(parts, k+": "+s)
				}
			}
			if len(parts) > 0 {
				entries = append(entries, "  - "+strings.Join(parts, ", "))
			}
		}
		if len(entries) > 0 {
			lines = append(lines, "Experience:")
			lines = append(lines, entries...)
		}
	}

	return strings.Join(lines, "\n")
}

func stringItems(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
