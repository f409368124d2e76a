package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default runtime-tunable settings.
// These are seeded into the review store on first run.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Correction loop
		// ===================
		{
			Key:         "correction.max_iterations",
			Value:       3,
			Description: "Maximum correction iterations per document",
		},
		{
			Key:         "correction.coverage_threshold",
			Value:       0.9,
			Description: "Coverage ratio required to accept an extraction",
		},
		{
			Key:         "correction.review_threshold",
			Value:       0.75,
			Description: "Coverage below this flags a document for human review",
		},

		// ===================
		// Generation
		// ===================
		{
			Key:         "generation.temperature",
			Value:       0.1,
			Description: "Sampling temperature for the generation backend",
		},
		{
			Key:         "generation.max_tokens",
			Value:       2048,
			Description: "Maximum tokens requested per generation call",
		},

		// ===================
		// Pipeline
		// ===================
		{
			Key:         "pipeline.workers",
			Value:       2,
			Description: "Maximum documents processed concurrently in a batch",
		},
		{
			Key:         "dataset.split",
			Value:       0.8,
			Description: "Train fraction for dataset builds",
		},
	}
}

// SeedDefaults seeds default configuration entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		// Check if key already exists
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Create the entry
		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
