package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/vitaehq/vitae/internal/config"
	"github.com/vitaehq/vitae/internal/providers"
	"github.com/vitaehq/vitae/internal/testutil"
)

// newTestServer builds a server over a throwaway home with an unmanaged
// OCR service and the mock generation backend, so no Docker or model is
// needed.
func newTestServer(t *testing.T) (*Server, testutil.ServerConfig) {
	t.Helper()

	sc := testutil.NewServerConfig(t)

	cfgYAML := `ocr:
  managed: false
generation:
  backend: mock
`
	if err := os.WriteFile(sc.ConfigFile, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := config.NewManager(sc.ConfigFile)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	srv, err := New(Config{
		Host:          sc.Host,
		Port:          sc.Port,
		HomePath:      sc.HomePath,
		ConfigManager: mgr,
		Logger:        sc.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// The OCR client points at a dead URL; swap in a mock so readiness
	// reflects wiring rather than a missing service.
	srv.Registry().SetOCR(providers.NewMockOCRClient())

	return srv, sc
}

func TestNew_RequiresConfigManager(t *testing.T) {
	if _, err := New(Config{HomePath: t.TempDir()}); err == nil {
		t.Fatal("New() without config manager should return error")
	}
}

func TestServer_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	srv, sc := newTestServer(t)

	serverCtx, serverCancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Start(serverCtx) }()

	if err := testutil.WaitForServer(sc.URL(), 15*time.Second); err != nil {
		serverCancel()
		t.Fatalf("server did not become ready: %v", err)
	}

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(sc.URL() + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	t.Run("ready", func(t *testing.T) {
		resp, err := http.Get(sc.URL() + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	t.Run("status", func(t *testing.T) {
		status, err := testutil.GetStatus(sc.URL())
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		if status.Server != "running" {
			t.Errorf("Server = %q, want %q", status.Server, "running")
		}
		if status.Store.Health != "healthy" {
			t.Errorf("Store.Health = %q, want %q", status.Store.Health, "healthy")
		}
		if status.OCR.Container != "unmanaged" {
			t.Errorf("OCR.Container = %q, want %q", status.OCR.Container, "unmanaged")
		}
		if status.Generation.Backend != providers.MockName {
			t.Errorf("Generation.Backend = %q, want %q", status.Generation.Backend, providers.MockName)
		}
	})

	t.Run("documents_empty", func(t *testing.T) {
		resp, err := http.Get(sc.URL() + "/v1/documents")
		if err != nil {
			t.Fatalf("list documents failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var body struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Count != 0 {
			t.Errorf("Count = %d, want 0", body.Count)
		}
	})

	t.Run("settings_seeded", func(t *testing.T) {
		resp, err := http.Get(sc.URL() + "/v1/settings")
		if err != nil {
			t.Fatalf("list settings failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("settings status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var body struct {
			Settings map[string]config.Entry `json:"settings"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if _, ok := body.Settings["correction.max_iterations"]; !ok {
			t.Errorf("settings missing correction.max_iterations, got %d entries", len(body.Settings))
		}
	})

	t.Run("double_start", func(t *testing.T) {
		if err := srv.Start(ctx); err == nil {
			t.Error("second Start() should return error")
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
	})

	serverCancel()
	if err := testutil.WaitForShutdown(done, 30*time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown, want false")
	}
}

func TestServer_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	srv, sc := newTestServer(t)

	serverCtx, serverCancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Start(serverCtx) }()

	if err := testutil.WaitForServer(sc.URL(), 15*time.Second); err != nil {
		serverCancel()
		t.Fatalf("server did not become ready: %v", err)
	}

	// Cancel immediately; the server should wind down on its own.
	serverCancel()
	if err := testutil.WaitForShutdown(done, 30*time.Second); err != nil {
		t.Fatalf("server did not respond to cancellation: %v", err)
	}
}

func TestServer_UninitializedRoutesReturn503(t *testing.T) {
	// New() wires routes but Start() builds the services; a data-plane
	// request before Start must be refused, not crash.
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
