package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the vitae home directory.
	DefaultDirName = ".vitae"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// DatabaseFileName is the review store database file name.
	DatabaseFileName = "vitae.db"
)

// Dir represents the vitae home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.vitae).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// DatabaseDir returns the directory holding the review store.
func (d *Dir) DatabaseDir() string {
	return filepath.Join(d.path, "db")
}

// DatabasePath returns the path to the review store database file.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.DatabaseDir(), DatabaseFileName)
}

// UploadsDir returns the directory holding uploaded PDFs for a document.
func (d *Dir) UploadsDir(docID string) string {
	return filepath.Join(d.path, "uploads", docID)
}

// UploadPath returns the canonical path of a document's stored PDF.
// The original filename lives in the review store; on disk every
// upload keeps the same name so pipeline steps can find it.
func (d *Dir) UploadPath(docID string) string {
	return filepath.Join(d.UploadsDir(docID), "document.pdf")
}

// OcrDir returns the directory for raw OCR results of a document.
func (d *Dir) OcrDir(docID string) string {
	return filepath.Join(d.path, "ocr", docID)
}

// OcrResultPath returns the path to the stored OCR response for a document.
func (d *Dir) OcrResultPath(docID string) string {
	return filepath.Join(d.OcrDir(docID), "ocr.json")
}

// RecordDir returns the directory for extracted records of a document.
func (d *Dir) RecordDir(docID string) string {
	return filepath.Join(d.path, "records", docID)
}

// RecordPath returns the path to the final extracted record for a document.
func (d *Dir) RecordPath(docID string) string {
	return filepath.Join(d.RecordDir(docID), "record.json")
}

// PageImagePath returns the path to a rendered page image.
// Page numbers are 1-indexed.
func (d *Dir) PageImagePath(docID string, pageNum int) string {
	return filepath.Join(d.OcrDir(docID), fmt.Sprintf("page_%04d.png", pageNum))
}

// DatasetDir returns the root directory for built training datasets.
func (d *Dir) DatasetDir() string {
	return filepath.Join(d.path, "dataset")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DatabaseDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := os.MkdirAll(d.DatasetDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	return nil
}

// EnsureDocumentDirs creates the per-document directories.
func (d *Dir) EnsureDocumentDirs(docID string) error {
	for _, dir := range []string{d.UploadsDir(docID), d.OcrDir(docID), d.RecordDir(docID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create document directory %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
