package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/vitaehq/vitae/internal/ocr"
	"github.com/vitaehq/vitae/internal/store"
)

// ocrStep submits the stored PDF to the OCR service and persists the
// recognized text under the document's home directory.
type ocrStep struct{}

func (ocrStep) Name() string            { return StepOCR }
func (ocrStep) CompletedStatus() string { return store.StatusOCRComplete }

func (ocrStep) Run(ctx context.Context, deps *Deps, docID string) error {
	pdfPath := deps.Home.UploadPath(docID)
	if _, err := os.Stat(pdfPath); err != nil {
		return fmt.Errorf("stored PDF missing: %w", err)
	}

	resp, err := deps.Registry.OCR().ProcessPDF(ctx, pdfPath)
	if err != nil {
		return fmt.Errorf("ocr service: %w", err)
	}

	// The service names results after the temp upload; the document ID is
	// the identity everything downstream keys on.
	doc := ocr.FromServiceResponse(resp)
	doc.ID = docID
	doc.SourcePath = pdfPath

	if err := deps.Home.EnsureDocumentDirs(docID); err != nil {
		return err
	}
	if err := ocr.Save(deps.Home.OcrResultPath(docID), doc); err != nil {
		return err
	}
	if err := deps.Store.SetOCRResult(ctx, docID, doc.PageCount, doc.MeanConfidence()); err != nil {
		return err
	}

	deps.Logger.Info("ocr complete",
		"document", docID,
		"pages", doc.PageCount,
		"elements", doc.ElementCount(),
		"mean_confidence", doc.MeanConfidence())
	return nil
}
