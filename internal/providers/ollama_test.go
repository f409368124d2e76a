package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestOllamaGenerateSuccess(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"mistral:7b","response":"{\"Name\": null}","done":true,"prompt_eval_count":120,"eval_count":8}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{
		BaseURL:     server.URL,
		Model:       "mistral:7b",
		Temperature: 0.2,
		MaxTokens:   512,
	})

	result, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "extract the record"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Content != `{"Name": null}` {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if result.PromptTokens != 120 || result.CompletionTokens != 8 {
		t.Fatalf("unexpected token counts: %d/%d", result.PromptTokens, result.CompletionTokens)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", result.Attempts)
	}
	if result.ModelUsed != "mistral:7b" || result.Provider != OllamaName {
		t.Fatalf("unexpected provenance: %s/%s", result.Provider, result.ModelUsed)
	}

	if got, _ := payload["model"].(string); got != "mistral:7b" {
		t.Fatalf("expected model mistral:7b, got %q", got)
	}
	if got, _ := payload["prompt"].(string); got != "extract the record" {
		t.Fatalf("expected prompt pass-through, got %q", got)
	}
	if got, _ := payload["temperature"].(float64); got != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", got)
	}
	if got, _ := payload["max_tokens"].(float64); got != 512 {
		t.Fatalf("expected max_tokens 512, got %v", got)
	}
	if got, ok := payload["stream"].(bool); !ok || got {
		t.Fatalf("expected stream=false, got %v", payload["stream"])
	}
}

func TestOllamaGenerateRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("model loading"))
			return
		}
		_, _ = w.Write([]byte(`{"model":"m","response":"ok","done":true}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{
		BaseURL:    server.URL,
		Model:      "m",
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
	})

	result, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Content != "ok" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestOllamaGenerateUnavailableAfterRetries(t *testing.T) {
	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{
		BaseURL:    server.URL,
		Model:      "m",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	_, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestOllamaGenerateConnectionRefused(t *testing.T) {
	// Reserve a port, then close the listener so nothing is bound.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewOllamaClient(OllamaConfig{
		BaseURL:    url,
		Model:      "m",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	_, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestOllamaGenerateMissingResponseField(t *testing.T) {
	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"model":"m","done":true}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "m", RetryDelay: time.Millisecond})

	_, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	// Malformed bodies are the correction loop's failure mode, not a
	// transport problem, so there must be no retry.
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}

func TestOllamaGenerateNonRetryableStatus(t *testing.T) {
	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'missing' not found"}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "missing", RetryDelay: time.Millisecond})

	_, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected no retry on 404, got %d requests", got)
	}
}

func TestOllamaHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral:7b-instruct-v0.2-q8_0"},{"name":"llama3:8b"}]}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "mistral:7b-instruct-v0.2-q8_0"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	// Tag prefixes match the way a user would type them.
	partial := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "mistral:7b"})
	if err := partial.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() with partial tag error = %v", err)
	}

	missing := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "phi3:mini"})
	err := missing.HealthCheck(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable for missing model, got %v", err)
	}
}

func TestOllamaHealthCheckServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: url, Model: "m"})
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
