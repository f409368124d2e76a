// Package ocr models the output of the PaddleOCR service: recognized text
// elements grouped by page, plus the combined text used as reference input
// for record extraction. This package has no dependencies on other vitae
// packages to avoid import cycles.
package ocr

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ServiceElement is a single recognized text region as returned by the
// OCR service. BBox holds the four corner points of the region as
// [x, y] pairs in page coordinates.
type ServiceElement struct {
	Text       string      `json:"text"`
	BBox       [][]float64 `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// ServicePage is the per-page result from the OCR service.
type ServicePage struct {
	TextElements []ServiceElement `json:"text_elements"`
	FullText     string           `json:"full_text"`
	TextCount    int              `json:"text_count"`
}

// ServiceResponse is the wire format of the OCR service's process_pdf
// endpoint.
type ServiceResponse struct {
	FileID            string        `json:"file_id"`
	OriginalPath      string        `json:"original_path"`
	PageCount         int           `json:"page_count"`
	ImagePaths        []string      `json:"image_paths"`
	TotalTextElements int           `json:"total_text_elements"`
	PageResults       []ServicePage `json:"page_results"`
	CombinedText      string        `json:"combined_text"`
	ProcessingTime    float64       `json:"processing_time"`
}

// Element is a recognized text region.
type Element struct {
	Text       string      `json:"text"`
	BBox       [][]float64 `json:"bbox,omitempty"`
	Confidence float64     `json:"confidence"`
}

// Page holds the recognized elements of one page. Number is 1-based.
type Page struct {
	Number   int       `json:"number"`
	Elements []Element `json:"elements"`
	FullText string    `json:"full_text"`
}

// Document is the OCR output for one source PDF.
type Document struct {
	ID             string  `json:"id"`
	SourcePath     string  `json:"source_path,omitempty"`
	PageCount      int     `json:"page_count"`
	Pages          []Page  `json:"pages"`
	CombinedText   string  `json:"combined_text"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

// FromServiceResponse converts a service response into a Document.
func FromServiceResponse(resp *ServiceResponse) *Document {
	doc := &Document{
		ID:             resp.FileID,
		SourcePath:     resp.OriginalPath,
		PageCount:      resp.PageCount,
		CombinedText:   resp.CombinedText,
		ProcessingTime: resp.ProcessingTime,
	}
	for i, pr := range resp.PageResults {
		page := Page{
			Number:   i + 1,
			FullText: pr.FullText,
			Elements: make([]Element, 0, len(pr.TextElements)),
		}
		for _, el := range pr.TextElements {
			page.Elements = append(page.Elements, Element{
				Text:       el.Text,
				BBox:       el.BBox,
				Confidence: el.Confidence,
			})
		}
		doc.Pages = append(doc.Pages, page)
	}
	if doc.PageCount == 0 {
		doc.PageCount = len(doc.Pages)
	}
	return doc
}

// SourceText returns the raw text used as reference input for record
// extraction. Prefers the service's combined text; falls back to joining
// per-page text when the service did not provide one.
func (d *Document) SourceText() string {
	if d.CombinedText != "" {
		return d.CombinedText
	}
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.FullText != "" {
			parts = append(parts, p.FullText)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ElementCount returns the total number of recognized text elements.
func (d *Document) ElementCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Elements)
	}
	return n
}

// MeanConfidence returns the average recognition confidence across all
// elements, or 0 when the document has none.
func (d *Document) MeanConfidence() float64 {
	var sum float64
	n := 0
	for _, p := range d.Pages {
		for _, el := range p.Elements {
			sum += el.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Load reads a Document previously saved with Save.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR result: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse OCR result %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the Document as indented JSON to path.
func Save(path string, d *Document) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal OCR result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write OCR result: %w", err)
	}
	return nil
}
