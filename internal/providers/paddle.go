package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vitaehq/vitae/internal/ocr"
)

const PaddleName = "paddle"

// OCRServiceConfig holds configuration for the PaddleOCR service client.
type OCRServiceConfig struct {
	BaseURL        string  // "http://localhost:8866" (default)
	Language       string  // OCR language ("en" default)
	DPI            int     // PDF render resolution
	MinConfidence  float64 // Drop elements below this confidence
	UseGPU         bool
	TimeoutSeconds int // HTTP timeout; large PDFs take minutes

	HTTPClient *http.Client // Optional (tests)
}

// PaddleClient implements OCRClient against the PaddleOCR service.
type PaddleClient struct {
	baseURL       string
	language      string
	dpi           int
	minConfidence float64
	useGPU        bool
	client        *http.Client
}

// NewPaddleClient creates a new PaddleOCR service client.
func NewPaddleClient(cfg OCRServiceConfig) *PaddleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8866"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.5
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}

	return &PaddleClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		language:      cfg.Language,
		dpi:           cfg.DPI,
		minConfidence: cfg.MinConfidence,
		useGPU:        cfg.UseGPU,
		client:        httpClient,
	}
}

// Name returns the client identifier.
func (c *PaddleClient) Name() string {
	return PaddleName
}

// HealthCheck verifies the service answers /health and reports healthy.
func (c *PaddleClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ocr service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ocr service health returned status %d: %s", resp.StatusCode, string(body))
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("ocr service reports status %q", health.Status)
	}
	return nil
}

// ProcessPDF uploads a PDF to /v1/ocr/process_pdf and returns the
// recognized text. The service renders pages at the configured DPI,
// runs recognition, and drops elements below the confidence floor.
func (c *PaddleClient) ProcessPDF(ctx context.Context, pdfPath string) (*ocr.ServiceResponse, error) {
	file, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}

	fields := map[string]string{
		"use_gpu":        strconv.FormatBool(c.useGPU),
		"language":       c.language,
		"min_confidence": strconv.FormatFloat(c.minConfidence, 'f', -1, 64),
		"dpi":            strconv.Itoa(c.dpi),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/ocr/process_pdf", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var svcResp ocr.ServiceResponse
	if err := json.Unmarshal(respBody, &svcResp); err != nil {
		return nil, fmt.Errorf("failed to decode ocr response: %w", err)
	}
	return &svcResp, nil
}

var _ OCRClient = (*PaddleClient)(nil)
