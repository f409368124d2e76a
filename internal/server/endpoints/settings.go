package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/config"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// SettingsResponse contains all runtime-tunable settings.
type SettingsResponse struct {
	Settings map[string]config.Entry `json:"settings"`
}

// ListSettingsEndpoint handles GET /v1/settings.
type ListSettingsEndpoint struct{}

var _ api.Endpoint = (*ListSettingsEndpoint)(nil)

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List settings
//	@Description	Get all runtime-tunable settings with their current values
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	settingsStore := svcctx.SettingsStoreFrom(r.Context())
	if settingsStore == nil {
		writeError(w, http.StatusServiceUnavailable, "settings store not initialized")
		return
	}

	entries, err := settingsStore.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{Settings: entries})
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List runtime-tunable settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), "/v1/settings", &resp); err != nil {
				return err
			}

			keys := make([]string, 0, len(resp.Settings))
			for k := range resp.Settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				entry := resp.Settings[k]
				fmt.Printf("%-32s %v\n", k, entry.Value)
				if entry.Description != "" {
					fmt.Printf("%-32s   %s\n", "", entry.Description)
				}
			}
			return nil
		},
	}
}

// UpdateSettingsEndpoint handles PATCH /v1/settings.
// The body maps setting keys to new values. Only keys with a default
// (the runtime-tunable set) are accepted; a null value resets the key
// to its default.
type UpdateSettingsEndpoint struct{}

func (e *UpdateSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/v1/settings", e.handler
}

func (e *UpdateSettingsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update settings
//	@Description	Update runtime-tunable settings. Unknown keys are rejected; a null value resets the key to its default.
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		map[string]any	true	"Key to value updates"
//	@Success		200		{object}	SettingsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/settings [patch]
func (e *UpdateSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	settingsStore := svcctx.SettingsStoreFrom(r.Context())
	if settingsStore == nil {
		writeError(w, http.StatusServiceUnavailable, "settings store not initialized")
		return
	}

	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no settings to update")
		return
	}

	// Validate every key before writing any, so a bad batch changes nothing.
	for key := range updates {
		if err := config.ValidateKey(key); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if config.GetDefault(key) == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown setting %q", key))
			return
		}
	}

	updated := make(map[string]config.Entry, len(updates))
	for key, value := range updates {
		def := config.GetDefault(key)
		if value == nil {
			if err := config.ResetToDefault(r.Context(), settingsStore, key); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		} else {
			if err := settingsStore.Set(r.Context(), key, value, def.Description); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		entry, err := settingsStore.Get(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entry != nil {
			updated[key] = *entry
		}
	}

	writeJSON(w, http.StatusOK, SettingsResponse{Settings: updated})
}

func (e *UpdateSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Update a runtime-tunable setting (omit the value to reset to default)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			var value any
			if len(args) == 2 {
				// Parse value as JSON; bare strings pass through as-is.
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					value = args[1]
				}
			}

			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Patch(cmd.Context(), "/v1/settings", map[string]any{key: value}, &resp); err != nil {
				return err
			}
			if entry, ok := resp.Settings[key]; ok {
				return api.Output(entry)
			}
			return api.Output(resp)
		},
	}
}
