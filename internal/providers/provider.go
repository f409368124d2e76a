package providers

import (
	"context"
	"time"

	"github.com/vitaehq/vitae/internal/ocr"
)

// GenerationClient is a text-generation backend. Implementations own
// transport-level retries; errors that survive those retries are
// classified with the sentinels in errors.go so callers can tell a dead
// backend from a bad answer.
type GenerationClient interface {
	// Name returns the backend identifier (e.g., "ollama", "openai").
	Name() string

	// Generate produces a completion for the request prompt.
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)

	// HealthCheck verifies the backend is reachable and the configured
	// model is available.
	HealthCheck(ctx context.Context) error
}

// OCRClient submits PDFs to the OCR service and returns per-page text
// elements. Separate from GenerationClient because it speaks multipart
// uploads and has its own health semantics.
type OCRClient interface {
	// Name returns the client identifier (e.g., "paddle").
	Name() string

	// ProcessPDF uploads a PDF and returns the recognized text.
	ProcessPDF(ctx context.Context, pdfPath string) (*ocr.ServiceResponse, error)

	// HealthCheck verifies the service is up.
	HealthCheck(ctx context.Context) error
}

// GenerationRequest is a request to a generation backend.
type GenerationRequest struct {
	// Required
	Prompt string `json:"prompt"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters (use client defaults if zero)
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// GenerationResult is the complete response from a generation call.
type GenerationResult struct {
	// Response content
	Content string `json:"content"`

	// Token counts (zero when the backend does not report them)
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`
}
