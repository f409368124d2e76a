package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRegistryBackendSelection(t *testing.T) {
	tests := []struct {
		backend string
		want    string
	}{
		{"ollama", OllamaName},
		{"", OllamaName}, // default
		{"openai", OpenAIName},
		{"mock", MockName},
	}
	for _, tt := range tests {
		r, err := NewRegistry(RegistryConfig{Backend: tt.backend}, testLogger())
		if err != nil {
			t.Fatalf("NewRegistry(%q) error = %v", tt.backend, err)
		}
		if got := r.Backend(); got != tt.want {
			t.Errorf("Backend() for %q = %s, want %s", tt.backend, got, tt.want)
		}
		if r.OCR() == nil || r.Limiter() == nil {
			t.Errorf("registry for %q missing ocr client or limiter", tt.backend)
		}
	}
}

func TestNewRegistryUnknownBackend(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{Backend: "bard"}, testLogger())
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRegistryReloadSwitchesBackend(t *testing.T) {
	r, err := NewRegistry(RegistryConfig{Backend: "mock", RateLimit: 2.0}, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	limiter := r.Limiter()

	cfg := RegistryConfig{
		Backend:   "ollama",
		Ollama:    OllamaConfig{BaseURL: "http://localhost:11434", Model: "m"},
		RateLimit: 2.0,
	}
	if err := r.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if r.Backend() != OllamaName {
		t.Fatalf("Backend() after reload = %s, want ollama", r.Backend())
	}
	if r.Limiter() != limiter {
		t.Fatal("unchanged rate limit must keep the limiter (and its accumulated state)")
	}

	cfg.RateLimit = 4.0
	if err := r.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if r.Limiter() == limiter {
		t.Fatal("changed rate limit must rebuild the limiter")
	}
}

func TestRegistryReloadUnchangedKeepsClients(t *testing.T) {
	cfg := RegistryConfig{
		Backend: "ollama",
		Ollama:  OllamaConfig{BaseURL: "http://localhost:11434", Model: "m"},
	}
	r, err := NewRegistry(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	generation := r.Generation()
	ocrClient := r.OCR()

	if err := r.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if r.Generation() != generation || r.OCR() != ocrClient {
		t.Fatal("identical config must not rebuild clients")
	}
}

func TestRegistrySetGeneration(t *testing.T) {
	r, err := NewRegistry(RegistryConfig{Backend: "ollama"}, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	mock := NewMockClient()
	r.SetGeneration(mock)
	if r.Backend() != MockName {
		t.Fatalf("Backend() after SetGeneration = %s", r.Backend())
	}
	if err := r.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() through mock error = %v", err)
	}
}

func TestMockClientScriptedResponses(t *testing.T) {
	client := NewMockClient()
	client.Latency = 0
	client.Responses = []string{"first", "second"}

	for i, want := range []string{"first", "second", "second"} {
		result, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"})
		if err != nil {
			t.Fatalf("call %d error = %v", i+1, err)
		}
		if result.Content != want {
			t.Errorf("call %d content = %q, want %q", i+1, result.Content, want)
		}
	}
	if client.RequestCount() != 3 {
		t.Fatalf("RequestCount() = %d, want 3", client.RequestCount())
	}
}

func TestMockClientFailAfterWithSentinel(t *testing.T) {
	client := NewMockClient()
	client.Latency = 0
	client.FailAfter = 1
	client.FailWith = ErrBackendUnavailable

	if _, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"}); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	_, err := client.Generate(context.Background(), &GenerationRequest{Prompt: "p"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("second call error = %v, want ErrBackendUnavailable", err)
	}
}

func TestMockOCRClientFabricatesPages(t *testing.T) {
	client := NewMockOCRClient()
	client.Latency = 0
	client.ResponseText = "John Doe\nSenior Engineer"

	resp, err := client.ProcessPDF(context.Background(), "/tmp/uploads/doc-1/resume.pdf")
	if err != nil {
		t.Fatalf("ProcessPDF() error = %v", err)
	}
	if resp.PageCount != 1 || resp.TotalTextElements != 2 {
		t.Fatalf("unexpected shape: %+v", resp)
	}
	if resp.CombinedText != "John Doe\nSenior Engineer" {
		t.Fatalf("unexpected combined text: %q", resp.CombinedText)
	}
	if resp.FileID != "resume" {
		t.Fatalf("unexpected file id: %q", resp.FileID)
	}
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	limiter := NewRateLimiter(2.0)

	// Burst of ceil(rps) tokens is available immediately.
	if !limiter.TryConsume() || !limiter.TryConsume() {
		t.Fatal("expected initial burst of 2 tokens")
	}
	if limiter.TryConsume() {
		t.Fatal("expected empty bucket after burst")
	}

	status := limiter.Status()
	if status.TotalConsumed != 2 {
		t.Fatalf("TotalConsumed = %d, want 2", status.TotalConsumed)
	}
	if status.TimeUntilToken <= 0 {
		t.Fatal("expected positive wait for next token")
	}
}

func TestRateLimiterWaitHonorsCancel(t *testing.T) {
	limiter := NewRateLimiter(0.001) // ~17 minutes per token
	if !limiter.TryConsume() {
		t.Fatal("expected one initial token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestRateLimiterRecord429Drains(t *testing.T) {
	limiter := NewRateLimiter(100)
	if !limiter.TryConsume() {
		t.Fatal("expected token")
	}
	limiter.Record429(5 * time.Second)
	if limiter.TryConsume() {
		t.Fatal("expected drained bucket after 429")
	}
	if limiter.Status().Last429Time.IsZero() {
		t.Fatal("expected last 429 time to be recorded")
	}
}
