// Package ingest registers PDFs for processing: the file is copied
// under the vitae home, checked to be a readable PDF, and a document
// row is created in the review store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/vitaehq/vitae/internal/home"
	"github.com/vitaehq/vitae/internal/store"
)

// Request contains the parameters for registering a PDF.
type Request struct {
	// SourcePath is a local PDF to register. Exactly one of SourcePath
	// or Source must be set.
	SourcePath string
	// Source streams the PDF bytes, e.g. from a multipart upload.
	Source io.Reader
	// Filename is the display name stored with the document. Derived
	// from SourcePath when empty.
	Filename string
	Logger   *slog.Logger
}

// Result contains the result of a successful registration.
type Result struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Pages      int    `json:"pages"`
}

// Register copies a PDF into the uploads area, validates it, and
// inserts the document row with status uploaded. On any failure the
// partially written upload directory is removed.
func Register(ctx context.Context, st *store.Store, homeDir *home.Dir, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	if req.SourcePath == "" && req.Source == nil {
		return nil, fmt.Errorf("no PDF source provided")
	}

	filename := req.Filename
	if filename == "" {
		if req.SourcePath == "" {
			return nil, fmt.Errorf("filename required when registering from a stream")
		}
		filename = filepath.Base(req.SourcePath)
	}

	docID := uuid.New().String()
	log.Info("registering document", "document_id", docID, "filename", filename)

	if err := homeDir.EnsureDocumentDirs(docID); err != nil {
		return nil, fmt.Errorf("failed to create document directories: %w", err)
	}
	dest := homeDir.UploadPath(docID)

	if err := copyPDF(req, dest); err != nil {
		os.RemoveAll(homeDir.UploadsDir(docID))
		return nil, err
	}

	pages, err := countPages(dest)
	if err != nil {
		os.RemoveAll(homeDir.UploadsDir(docID))
		return nil, fmt.Errorf("not a readable PDF: %w", err)
	}
	if pages == 0 {
		os.RemoveAll(homeDir.UploadsDir(docID))
		return nil, fmt.Errorf("PDF has no pages")
	}

	doc := &store.Document{
		ID:       docID,
		Filename: filename,
		Status:   store.StatusUploaded,
		Pages:    pages,
	}
	if err := st.CreateDocument(ctx, doc); err != nil {
		os.RemoveAll(homeDir.UploadsDir(docID))
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	log.Info("document registered", "document_id", docID, "pages", pages)

	return &Result{
		DocumentID: docID,
		Filename:   filename,
		Pages:      pages,
	}, nil
}

// copyPDF writes the request's PDF bytes to dest.
func copyPDF(req Request, dest string) error {
	src := req.Source
	if src == nil {
		f, err := os.Open(req.SourcePath)
		if err != nil {
			return fmt.Errorf("PDF not found: %s", req.SourcePath)
		}
		defer f.Close()
		src = f
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to write upload file: %w", err)
	}
	return out.Close()
}

// countPages opens the stored PDF and returns its page count.
func countPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}
