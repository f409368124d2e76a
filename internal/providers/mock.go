package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vitaehq/vitae/internal/ocr"
)

const MockName = "mock"

// mockDefaultResponse is a schema-valid all-null record so a mock-backed
// server processes documents end to end without a model.
const mockDefaultResponse = `{"Name": null, "Email": null, "Phone": null, "Current_Position": null, "Skills": null, "Experience": null}`

// MockClient is a GenerationClient for testing and model-free runs.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int      // Fail after N requests (0 = never)
	FailWith     error    // Error returned on failure (defaults to a generic one)
	ResponseText string   // Returned when Responses is empty
	Responses    []string // Scripted per-call responses; the last repeats

	// State
	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: mockDefaultResponse,
	}
}

// Name returns the backend identifier.
func (c *MockClient) Name() string {
	return MockName
}

// HealthCheck reports healthy unless the client is configured to fail.
func (c *MockClient) HealthCheck(_ context.Context) error {
	if c.ShouldFail {
		return c.failure()
	}
	return nil
}

// Generate returns the next scripted response.
func (c *MockClient) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	if c.ShouldFail {
		return nil, c.failure()
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		if c.FailWith != nil {
			return nil, fmt.Errorf("mock client failed after %d requests: %w", c.FailAfter, c.FailWith)
		}
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	// Simulate latency
	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	content := c.ResponseText
	if len(c.Responses) > 0 {
		idx := int(count) - 1
		if idx >= len(c.Responses) {
			idx = len(c.Responses) - 1
		}
		content = c.Responses[idx]
	}
	if content == "" {
		content = mockDefaultResponse
	}

	return &GenerationResult{
		Content:          content,
		PromptTokens:     len(req.Prompt) / 4, // Rough estimate
		CompletionTokens: len(content) / 4,
		ExecutionTime:    time.Since(start),
		Provider:         MockName,
		ModelUsed:        "mock",
		RequestID:        req.RequestID,
		Attempts:         1,
	}, nil
}

func (c *MockClient) failure() error {
	if c.FailWith != nil {
		return fmt.Errorf("mock client configured to fail: %w", c.FailWith)
	}
	return fmt.Errorf("mock client configured to fail")
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
}

// Verify interface
var _ GenerationClient = (*MockClient)(nil)

// MockOCRClient is an OCRClient for testing.
type MockOCRClient struct {
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int
	ResponseText string  // Combined text of the fabricated result
	Confidence   float64 // Per-element confidence (default 0.95)

	requestCount atomic.Int64
}

// NewMockOCRClient creates a new mock OCR client.
func NewMockOCRClient() *MockOCRClient {
	return &MockOCRClient{
		Latency:      time.Millisecond,
		ResponseText: "mock ocr text",
		Confidence:   0.95,
	}
}

// Name returns the client identifier.
func (c *MockOCRClient) Name() string {
	return "mock-ocr"
}

// HealthCheck reports healthy unless the client is configured to fail.
func (c *MockOCRClient) HealthCheck(_ context.Context) error {
	if c.ShouldFail {
		return fmt.Errorf("mock ocr client configured to fail")
	}
	return nil
}

// ProcessPDF fabricates a single-page result whose combined text is
// ResponseText, one element per line.
func (c *MockOCRClient) ProcessPDF(ctx context.Context, pdfPath string) (*ocr.ServiceResponse, error) {
	count := c.requestCount.Add(1)

	if c.ShouldFail {
		return nil, fmt.Errorf("mock ocr client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock ocr client failed after %d requests", c.FailAfter)
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	page := ocr.ServicePage{FullText: c.ResponseText}
	for _, line := range strings.Split(c.ResponseText, "\n") {
		if line == "" {
			continue
		}
		page.TextElements = append(page.TextElements, ocr.ServiceElement{
			Text:       line,
			Confidence: c.Confidence,
		})
	}
	page.TextCount = len(page.TextElements)

	id := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return &ocr.ServiceResponse{
		FileID:            id,
		OriginalPath:      pdfPath,
		PageCount:         1,
		TotalTextElements: page.TextCount,
		PageResults:       []ocr.ServicePage{page},
		CombinedText:      c.ResponseText,
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockOCRClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset resets the request counter.
func (c *MockOCRClient) Reset() {
	c.requestCount.Store(0)
}

// Verify interface
var _ OCRClient = (*MockOCRClient)(nil)
