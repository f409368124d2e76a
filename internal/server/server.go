package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/config"
	"github.com/vitaehq/vitae/internal/home"
	"github.com/vitaehq/vitae/internal/ocrsvc"
	"github.com/vitaehq/vitae/internal/pipeline"
	"github.com/vitaehq/vitae/internal/providers"
	"github.com/vitaehq/vitae/internal/server/endpoints"
	"github.com/vitaehq/vitae/internal/store"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// Server is the main Vitae HTTP server.
// When the OCR service is managed it also owns the container lifecycle,
// starting it on server start and stopping it on shutdown.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	ocrManager *ocrsvc.Manager // nil when the OCR service is unmanaged
	store      *store.Store
	registry   *providers.Registry
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// HomePath is the data directory (default: ~/.vitae)
	HomePath string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// OCRConfig overrides the configured OCR container settings.
	// A non-empty ContainerName forces a managed container even when
	// the config says otherwise. Used by tests.
	OCRConfig ocrsvc.Config
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	homeDir, err := home.New(cfg.HomePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	fileCfg := cfg.ConfigManager.Get()

	// Decide who runs the OCR service. An explicit override or a
	// managed config means we own the container.
	var ocrManager *ocrsvc.Manager
	switch {
	case cfg.OCRConfig.ContainerName != "":
		ocrManager, err = ocrsvc.NewManager(cfg.OCRConfig)
	case fileCfg.OCR.Managed:
		ocrManager, err = ocrsvc.NewManager(ocrsvc.Config{
			ContainerName: fileCfg.OCR.Container.Name,
			Image:         fileCfg.OCR.Container.Image,
			HostPort:      fileCfg.OCR.Container.Port,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR manager: %w", err)
	}

	s := &Server{
		home:       homeDir,
		ocrManager: ocrManager,
		configMgr:  cfg.ConfigManager,
		logger:     cfg.Logger,
	}

	registry, err := providers.NewRegistry(s.registryConfig(fileCfg), cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider registry: %w", err)
	}
	s.registry = registry

	// Watch for config changes
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		if err := registry.Reload(s.registryConfig(c)); err != nil {
			cfg.Logger.Error("provider registry reload failed", "error", err)
			return
		}
		cfg.Logger.Info("provider registry reloaded from config")
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		OCRManager:      ocrManager,
		SwaggerSpecPath: endpoints.GetSwaggerSpecPath(),
	}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// Extract and batch runs are synchronous and can hold a
		// response open for minutes, so no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// registryConfig derives the provider registry configuration. When we
// manage the OCR container, its published port wins over the configured
// service URL.
func (s *Server) registryConfig(c *config.Config) providers.RegistryConfig {
	rc := c.ToRegistryConfig()
	if s.ocrManager != nil {
		rc.OCR.BaseURL = s.ocrManager.URL()
	}
	return rc
}

// Start starts the server, opening the review store and, when managed,
// the OCR service container. It blocks until the context is cancelled
// or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	st, err := store.Open(s.home.DatabasePath(), s.logger)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open review store: %w", err)
	}
	s.store = st

	settingsStore := config.NewStore(st.DB())
	if err := config.SeedDefaults(ctx, settingsStore, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	if s.ocrManager != nil {
		// Validate any existing container matches our config
		if err := s.ocrManager.ValidateExisting(ctx); err != nil {
			_ = s.shutdown()
			return fmt.Errorf("existing OCR container incompatible: %w", err)
		}

		s.logger.Info("starting OCR service")
		if err := s.ocrManager.Start(ctx); err != nil {
			_ = s.shutdown()
			return fmt.Errorf("failed to start OCR service: %w", err)
		}
		s.logger.Info("OCR service is ready", "url", s.ocrManager.URL())
	}

	runner := pipeline.NewRunner(&pipeline.Deps{
		Store:    st,
		Registry: s.registry,
		Home:     s.home,
		Config:   s.configMgr,
		Settings: settingsStore,
		Logger:   s.logger,
	})

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Store:         st,
		SettingsStore: settingsStore,
		Config:        s.configMgr,
		Registry:      s.registry,
		Runner:        runner,
		OCRManager:    s.ocrManager,
		Logger:        s.logger,
		Home:          s.home,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up store and OCR container on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server, the review
// store and, when managed, the OCR service container.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.ocrManager != nil {
		s.logger.Info("stopping OCR service")
		if err := s.ocrManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("OCR service stop error", "error", err)
		}
		if err := s.ocrManager.Close(); err != nil {
			s.logger.Error("OCR manager close error", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("review store close error", "error", err)
		}
		s.store = nil
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Store returns the review store.
// Returns nil if the server hasn't started yet.
func (s *Server) Store() *store.Store {
	return s.store
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// OCRManager returns the OCR container manager, or nil when the OCR
// service is unmanaged.
func (s *Server) OCRManager() *ocrsvc.Manager {
	return s.ocrManager
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store and runner are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
