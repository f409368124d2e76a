package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup, with
// ${ENV_VAR} references already resolved.
type RegistryConfig struct {
	// Backend selects the generation client: "ollama", "openai", "mock".
	Backend string

	Ollama OllamaConfig
	OpenAI OpenAIConfig

	// RateLimit throttles generation calls across the whole process,
	// in requests per second.
	RateLimit float64

	OCR OCRServiceConfig
}

// Registry holds the active generation backend, the OCR service client,
// and the shared rate limiter. It supports config-driven instantiation,
// hot-reload, and provides thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	cfg        RegistryConfig
	generation GenerationClient
	ocrClient  OCRClient
	limiter    *RateLimiter
	logger     *slog.Logger
}

// NewRegistry creates a registry with providers based on configuration.
func NewRegistry(cfg RegistryConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	generation, err := newGenerationClient(cfg)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		cfg:        cfg,
		generation: generation,
		ocrClient:  NewPaddleClient(cfg.OCR),
		limiter:    NewRateLimiter(cfg.RateLimit),
		logger:     logger,
	}
	logger.Info("registered generation backend", "backend", generation.Name())
	return r, nil
}

// newGenerationClient creates a generation client based on backend type.
func newGenerationClient(cfg RegistryConfig) (GenerationClient, error) {
	switch cfg.Backend {
	case OllamaName, "":
		return NewOllamaClient(cfg.Ollama), nil
	case OpenAIName:
		return NewOpenAIClient(cfg.OpenAI), nil
	case MockName:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown generation backend: %s", cfg.Backend)
	}
}

// Generation returns the active generation backend.
func (r *Registry) Generation() GenerationClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// OCR returns the OCR service client.
func (r *Registry) OCR() OCRClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ocrClient
}

// Limiter returns the shared generation rate limiter.
func (r *Registry) Limiter() *RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter
}

// Backend returns the active generation backend name.
func (r *Registry) Backend() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation.Name()
}

// SetGeneration swaps the generation backend. Used by tests to inject
// scripted clients.
func (r *Registry) SetGeneration(client GenerationClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation = client
}

// SetOCR swaps the OCR client. Used by tests.
func (r *Registry) SetOCR(client OCRClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrClient = client
}

// Reload updates the registry based on new configuration. Clients whose
// settings are unchanged are kept; changed ones are recreated. In-flight
// calls finish on the clients they started with.
func (r *Registry) Reload(cfg RegistryConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg == r.cfg {
		return nil
	}

	if cfg.Backend != r.cfg.Backend || generationChanged(r.cfg, cfg) {
		generation, err := newGenerationClient(cfg)
		if err != nil {
			return err
		}
		r.generation = generation
		r.logger.Info("updated generation backend", "backend", generation.Name())
	}

	if cfg.OCR != r.cfg.OCR {
		r.ocrClient = NewPaddleClient(cfg.OCR)
		r.logger.Info("updated ocr client")
	}

	if cfg.RateLimit != r.cfg.RateLimit {
		r.limiter = NewRateLimiter(cfg.RateLimit)
		r.logger.Info("updated rate limit", "requests_per_sec", cfg.RateLimit)
	}

	r.cfg = cfg
	return nil
}

// generationChanged reports whether the active backend's own settings
// differ between two configs.
func generationChanged(old, next RegistryConfig) bool {
	switch next.Backend {
	case OllamaName, "":
		return old.Ollama != next.Ollama
	case OpenAIName:
		return old.OpenAI != next.OpenAI
	default:
		return false
	}
}

// HealthCheck verifies the active generation backend is usable.
func (r *Registry) HealthCheck(ctx context.Context) error {
	return r.Generation().HealthCheck(ctx)
}
