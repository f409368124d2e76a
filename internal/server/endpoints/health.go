package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/ocrsvc"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status     string `json:"status"`
	Store      string `json:"store,omitempty"`
	OCR        string `json:"ocr,omitempty"`
	Generation string `json:"generation,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
// Ready means the store answers a ping and both backends pass a health
// check, so a batch started now would not fail on its first call.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok", OCR: "ok", Generation: "ok"}
	degraded := func(field *string) {
		resp.Status = "degraded"
		*field = "unhealthy"
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		resp.Status = "degraded"
		resp.Store = "not_initialized"
	} else if err := st.Ping(r.Context()); err != nil {
		degraded(&resp.Store)
	}

	registry := svcctx.RegistryFrom(r.Context())
	if registry == nil {
		resp.Status = "degraded"
		resp.OCR = "not_initialized"
		resp.Generation = "not_initialized"
	} else {
		if err := registry.OCR().HealthCheck(r.Context()); err != nil {
			degraded(&resp.OCR)
		}
		if err := registry.Generation().HealthCheck(r.Context()); err != nil {
			degraded(&resp.Generation)
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (store, OCR and generation backends)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:     %s\n", resp.Status)
			fmt.Printf("Store:      %s\n", resp.Store)
			fmt.Printf("OCR:        %s\n", resp.OCR)
			fmt.Printf("Generation: %s\n", resp.Generation)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server     string           `json:"server"`
	Store      StoreStatus      `json:"store"`
	OCR        OCRStatus        `json:"ocr"`
	Generation GenerationStatus `json:"generation"`
}

// StoreStatus shows review store health.
type StoreStatus struct {
	Health string `json:"health"`
}

// OCRStatus shows OCR service container and health status.
type OCRStatus struct {
	Container string `json:"container"`
	Health    string `json:"health"`
	URL       string `json:"url"`
}

// GenerationStatus shows the active generation backend.
type GenerationStatus struct {
	Backend string `json:"backend"`
	Model   string `json:"model"`
	Health  string `json:"health"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// OCRManager is set by the server since it's not in Services
	// until startup completes. Nil when the OCR service is unmanaged.
	OCRManager *ocrsvc.Manager
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		resp.Store.Health = "not_initialized"
	} else if err := st.Ping(r.Context()); err != nil {
		resp.Store.Health = "unhealthy"
	} else {
		resp.Store.Health = "healthy"
	}

	// Container status only exists when we manage the OCR service.
	if e.OCRManager != nil {
		status, err := e.OCRManager.Status(r.Context())
		if err != nil {
			resp.OCR.Container = "error"
		} else {
			resp.OCR.Container = string(status)
		}
		resp.OCR.URL = e.OCRManager.URL()
	} else {
		resp.OCR.Container = "unmanaged"
		if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil {
			resp.OCR.URL = cfg.Get().OCR.ServiceURL
		}
	}

	registry := svcctx.RegistryFrom(r.Context())
	if registry == nil {
		resp.OCR.Health = "not_initialized"
		resp.Generation.Health = "not_initialized"
	} else {
		if err := registry.OCR().HealthCheck(r.Context()); err != nil {
			resp.OCR.Health = "unhealthy"
		} else {
			resp.OCR.Health = "healthy"
		}
		resp.Generation.Backend = registry.Backend()
		if err := registry.Generation().HealthCheck(r.Context()); err != nil {
			resp.Generation.Health = "unhealthy"
		} else {
			resp.Generation.Health = "healthy"
		}
	}

	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil {
		c := cfg.Get()
		switch c.Generation.Backend {
		case "openai":
			resp.Generation.Model = c.Generation.OpenAI.Model
		default:
			resp.Generation.Model = c.Generation.Ollama.Model
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Store:\n")
			fmt.Printf("  Health:    %s\n", resp.Store.Health)
			fmt.Printf("OCR:\n")
			fmt.Printf("  Container: %s\n", resp.OCR.Container)
			fmt.Printf("  Health:    %s\n", resp.OCR.Health)
			fmt.Printf("  URL:       %s\n", resp.OCR.URL)
			fmt.Printf("Generation:\n")
			fmt.Printf("  Backend:   %s\n", resp.Generation.Backend)
			fmt.Printf("  Model:     %s\n", resp.Generation.Model)
			fmt.Printf("  Health:    %s\n", resp.Generation.Health)
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
