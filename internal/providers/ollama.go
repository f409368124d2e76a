package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	OllamaName         = "ollama"
	ollamaDefaultModel = "mistral:7b-instruct-v0.2-q8_0"
)

// OllamaConfig holds configuration for the Ollama backend.
type OllamaConfig struct {
	BaseURL        string  // "http://localhost:11434" (default)
	Model          string  // Model tag as listed by /api/tags
	Temperature    float64 // Default sampling temperature
	MaxTokens      int     // Default completion budget
	TimeoutSeconds int     // HTTP timeout per attempt
	MaxRetries     int     // Transport-level retry attempts

	RetryDelay time.Duration // Base backoff delay (tests shorten it)
	HTTPClient *http.Client  // Optional (tests)
}

// OllamaClient implements GenerationClient against a local Ollama
// server using its native /api/generate endpoint.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	client      *http.Client
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.TimeoutSeconds <= 0 {
		// Large prompts on CPU-only hosts can take minutes.
		cfg.TimeoutSeconds = 300
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}

	return &OllamaClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      httpClient,
	}
}

// Name returns the backend identifier.
func (c *OllamaClient) Name() string {
	return OllamaName
}

// Model returns the configured model tag.
func (c *OllamaClient) Model() string {
	return c.model
}

// ollamaGenerateRequest is the /api/generate request body.
type ollamaGenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

// ollamaGenerateResponse is the /api/generate response body.
type ollamaGenerateResponse struct {
	Model           string  `json:"model"`
	Response        *string `json:"response"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error,omitempty"`
}

// ollamaTagsResponse is the /api/tags response body.
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HealthCheck verifies the server answers /api/tags and that the
// configured model is installed. A reachable server without the model
// is unhealthy: every generate call would fail.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %v: %w", err, ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama tags returned status %d: %s: %w", resp.StatusCode, string(body), ErrBackendUnavailable)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode tags response: %w", err)
	}
	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.model) {
			return nil
		}
	}
	return fmt.Errorf("model %q not installed on ollama server: %w", c.model, ErrBackendUnavailable)
}

// Generate produces a completion via /api/generate.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	start := time.Now()

	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	body := &ollamaGenerateRequest{
		Model:       model,
		Prompt:      req.Prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}

	genResp, attempts, err := c.doGenerate(ctx, body)
	if err != nil {
		return nil, err
	}

	// A 200 whose body lacks the response field is the model answering
	// badly, not the server being down. No transport retry: the caller's
	// correction loop owns that failure mode.
	if genResp.Response == nil {
		if genResp.Error != "" {
			return nil, fmt.Errorf("ollama reported %q: %w", genResp.Error, ErrMalformedResponse)
		}
		return nil, fmt.Errorf("missing response field: %w", ErrMalformedResponse)
	}

	return &GenerationResult{
		Content:          *genResp.Response,
		PromptTokens:     genResp.PromptEvalCount,
		CompletionTokens: genResp.EvalCount,
		ExecutionTime:    time.Since(start),
		Provider:         OllamaName,
		ModelUsed:        model,
		RequestID:        req.RequestID,
		Attempts:         attempts,
	}, nil
}

// doGenerate posts to /api/generate with retry on transport failures.
func (c *OllamaClient) doGenerate(ctx context.Context, body *ollamaGenerateRequest) (*ollamaGenerateResponse, int, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, attempt, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if c.shouldRetry(resp.StatusCode) {
			lastErr = fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = &RateLimitError{
					Message:    lastErr.Error(),
					RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
					StatusCode: resp.StatusCode,
				}
			}
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, attempt + 1, fmt.Errorf("ollama error (status %d): %s: %w", resp.StatusCode, string(respBody), ErrBackendUnavailable)
		}

		var genResp ollamaGenerateResponse
		if err := json.Unmarshal(respBody, &genResp); err != nil {
			return nil, attempt + 1, fmt.Errorf("failed to decode response: %v: %w", err, ErrMalformedResponse)
		}
		return &genResp, attempt + 1, nil
	}

	return nil, c.maxRetries, fmt.Errorf("max retries (%d) exceeded: %v: %w", c.maxRetries, lastErr, ErrBackendUnavailable)
}

// shouldRetry returns true for status codes that should be retried.
func (c *OllamaClient) shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

// sleepWithJitter sleeps for a duration with jitter, respecting context cancellation.
func (c *OllamaClient) sleepWithJitter(ctx context.Context, attempt int) {
	// Base delay with exponential backoff: 0.5s, 1s, 2s, ...
	baseDelay := c.retryDelay * time.Duration(1<<attempt)
	if baseDelay > 10*time.Second {
		baseDelay = 10 * time.Second
	}

	// Add jitter: -20% to +30%
	jitter := time.Duration(float64(baseDelay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

var _ GenerationClient = (*OllamaClient)(nil)
