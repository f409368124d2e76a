package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
// This protects against typos and malformed keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store provides access to runtime-tunable settings.
// No caching - reads fresh from the database each time.
type Store interface {
	// Get returns a single config entry by key.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a config entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all config entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns config entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a config entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// SQLStore implements Store on the review store's settings table.
type SQLStore struct {
	db *sql.DB
}

// NewStore creates a settings store over an opened database handle.
// The settings table is created by the review store's schema bootstrap.
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get returns a single config entry by key.
func (s *SQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, description FROM settings WHERE key = ?`, key)

	var entry Entry
	var raw string
	if err := row.Scan(&entry.Key, &raw, &entry.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	entry.Value = decodeValue(raw)
	return &entry, nil
}

// Set creates or updates a config entry.
func (s *SQLStore) Set(ctx context.Context, key string, value any, description string) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP`,
		key, string(valueJSON), description)
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// GetAll returns all config entries.
func (s *SQLStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, description FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	result := make(map[string]Entry)
	for rows.Next() {
		var entry Entry
		var raw string
		if err := rows.Scan(&entry.Key, &raw, &entry.Description); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entry.Value = decodeValue(raw)
		result[entry.Key] = entry
	}
	return result, rows.Err()
}

// GetByPrefix returns config entries matching the prefix.
func (s *SQLStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Entry)
	for key, entry := range all {
		if strings.HasPrefix(key, prefix) {
			result[key] = entry
		}
	}
	return result, nil
}

// Delete removes a config entry by key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// decodeValue parses a stored JSON value, falling back to the raw string.
func decodeValue(raw string) any {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return raw
	}
	return parsed
}

// Overlay applies runtime-tunable settings from the store on top of a base
// config and returns the merged copy. Unknown keys are ignored so that stale
// entries never break a run.
func Overlay(ctx context.Context, store Store, base *Config) (*Config, error) {
	merged := *base

	all, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if v, ok := all["correction.max_iterations"]; ok {
		if n := asInt(v.Value); n > 0 {
			merged.Correction.MaxIterations = n
		}
	}
	if v, ok := all["correction.coverage_threshold"]; ok {
		if f, valid := asFloat(v.Value); valid {
			merged.Correction.CoverageThreshold = f
		}
	}
	if v, ok := all["correction.review_threshold"]; ok {
		if f, valid := asFloat(v.Value); valid {
			merged.Correction.ReviewThreshold = f
		}
	}
	if v, ok := all["pipeline.workers"]; ok {
		if n := asInt(v.Value); n > 0 {
			merged.Pipeline.Workers = n
		}
	}
	if v, ok := all["generation.temperature"]; ok {
		if f, valid := asFloat(v.Value); valid {
			merged.Generation.Temperature = f
		}
	}
	if v, ok := all["generation.max_tokens"]; ok {
		if n := asInt(v.Value); n > 0 {
			merged.Generation.MaxTokens = n
		}
	}

	return &merged, nil
}

// Helper functions to extract typed values from stored JSON
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
