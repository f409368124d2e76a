package config

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// openSettingsDB creates a throwaway database with the settings table.
func openSettingsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		t.Fatalf("failed to create settings table: %v", err)
	}
	return db
}

func TestSQLStore_GetSet(t *testing.T) {
	store := NewStore(openSettingsDB(t))
	ctx := t.Context()

	t.Run("get missing returns nil", func(t *testing.T) {
		entry, err := store.Get(ctx, "does.not.exist")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if entry != nil {
			t.Errorf("Get() = %v, want nil for non-existent key", entry)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := store.Set(ctx, "correction.max_iterations", 5, "max loop iterations"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		entry, err := store.Get(ctx, "correction.max_iterations")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if entry == nil {
			t.Fatal("Get() returned nil after Set")
		}
		// JSON round-trip turns ints into float64
		if entry.Value != float64(5) {
			t.Errorf("Value = %v (%T), want 5", entry.Value, entry.Value)
		}
		if entry.Description != "max loop iterations" {
			t.Errorf("Description = %q", entry.Description)
		}
	})

	t.Run("set overwrites", func(t *testing.T) {
		if err := store.Set(ctx, "correction.max_iterations", 7, "updated"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		entry, _ := store.Get(ctx, "correction.max_iterations")
		if entry.Value != float64(7) {
			t.Errorf("Value = %v, want 7 after overwrite", entry.Value)
		}
	})

	t.Run("string values survive", func(t *testing.T) {
		if err := store.Set(ctx, "generation.backend", "ollama", ""); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		entry, _ := store.Get(ctx, "generation.backend")
		if entry.Value != "ollama" {
			t.Errorf("Value = %v, want ollama", entry.Value)
		}
	})
}

func TestSQLStore_GetAllAndPrefix(t *testing.T) {
	store := NewStore(openSettingsDB(t))
	ctx := t.Context()

	seed := map[string]any{
		"correction.max_iterations":     3,
		"correction.coverage_threshold": 0.9,
		"pipeline.workers":              2,
	}
	for k, v := range seed {
		if err := store.Set(ctx, k, v, ""); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("GetAll() returned %d entries, want 3", len(all))
	}

	byPrefix, err := store.GetByPrefix(ctx, "correction.")
	if err != nil {
		t.Fatalf("GetByPrefix() error = %v", err)
	}
	if len(byPrefix) != 2 {
		t.Errorf("GetByPrefix('correction.') returned %d entries, want 2", len(byPrefix))
	}
	if _, ok := byPrefix["pipeline.workers"]; ok {
		t.Error("GetByPrefix() should not include non-matching prefix")
	}
}

func TestSQLStore_Delete(t *testing.T) {
	store := NewStore(openSettingsDB(t))
	ctx := t.Context()

	if err := store.Set(ctx, "pipeline.workers", 4, ""); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, "pipeline.workers"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	entry, err := store.Get(ctx, "pipeline.workers")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Error("Get() should return nil after Delete")
	}

	// Deleting a missing key is not an error
	if err := store.Delete(ctx, "never.existed"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestAsHelpers(t *testing.T) {
	if f, ok := asFloat(3.14); !ok || f != 3.14 {
		t.Errorf("asFloat(3.14) = %v, %v", f, ok)
	}
	if f, ok := asFloat(42); !ok || f != 42 {
		t.Errorf("asFloat(42) = %v, %v", f, ok)
	}
	if _, ok := asFloat("nope"); ok {
		t.Error("asFloat(string) should not be ok")
	}

	if n := asInt(float64(5)); n != 5 {
		t.Errorf("asInt(5.0) = %d", n)
	}
	if n := asInt("nope"); n != 0 {
		t.Errorf("asInt(string) = %d, want 0", n)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid simple key", "foo", false},
		{"valid dotted key", "correction.max_iterations", false},
		{"valid with underscore", "generation.max_tokens", false},
		{"valid with hyphen", "my-setting", false},
		{"valid with numbers", "backend1.config2", false},
		{"empty key", "", true},
		{"starts with dot", ".foo", true},
		{"ends with dot", "foo.", true},
		{"contains space", "foo bar", true},
		{"contains special char", "foo@bar", true},
		{"contains slash", "foo/bar", true},
		{"contains colon", "foo:bar", true},
		{"contains quote", "foo\"bar", true},
		{"contains curly brace", "foo{bar}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey(%q) error should wrap ErrInvalidKey, got %v", tt.key, err)
			}
		})
	}
}
