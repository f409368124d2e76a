package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/dataset"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// datasetBuilder builds the dataset builder from request context services.
func datasetBuilder(r *http.Request) *dataset.Builder {
	st := svcctx.StoreFrom(r.Context())
	homeDir := svcctx.HomeFrom(r.Context())
	if st == nil || homeDir == nil {
		return nil
	}
	return dataset.NewBuilder(st, homeDir, svcctx.LoggerFrom(r.Context()))
}

// DatasetBuildRequest optionally overrides the configured build options.
type DatasetBuildRequest struct {
	Split *float64 `json:"split,omitempty"`
	Seed  *int64   `json:"seed,omitempty"`
}

// DatasetBuildEndpoint handles POST /v1/dataset/build.
type DatasetBuildEndpoint struct{}

var _ api.Endpoint = (*DatasetBuildEndpoint)(nil)

func (e *DatasetBuildEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/dataset/build", e.handler
}

func (e *DatasetBuildEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Build the training dataset
//	@Description	Assemble Donut-style training data from validated documents. Split and seed default from config; the request body overrides both.
//	@Tags			dataset
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DatasetBuildRequest	false	"Build overrides"
//	@Success		200		{object}	dataset.Stats
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/dataset/build [post]
func (e *DatasetBuildEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	builder := datasetBuilder(r)
	if builder == nil {
		writeError(w, http.StatusServiceUnavailable, "dataset builder not initialized")
		return
	}

	opts := dataset.Options{}
	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil {
		c := cfg.Get()
		opts.Split = c.Dataset.Split
		opts.Seed = c.Dataset.Seed
	}

	// The train split is runtime-tunable through settings.
	if ss := svcctx.SettingsStoreFrom(r.Context()); ss != nil {
		if entry, err := ss.Get(r.Context(), "dataset.split"); err == nil && entry != nil {
			if f, ok := entry.Value.(float64); ok && f > 0 && f <= 1 {
				opts.Split = f
			}
		}
	}

	if r.Body != nil && r.ContentLength > 0 {
		var req DatasetBuildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Split != nil {
			opts.Split = *req.Split
		}
		if req.Seed != nil {
			opts.Seed = *req.Seed
		}
	}

	stats, err := builder.Build(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (e *DatasetBuildEndpoint) Command(getServerURL func() string) *cobra.Command {
	var split float64
	var seed int64
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the training dataset from validated documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			req := DatasetBuildRequest{}
			if cmd.Flags().Changed("split") {
				req.Split = &split
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			var resp dataset.Stats
			if err := client.Post(cmd.Context(), "/v1/dataset/build", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().Float64Var(&split, "split", 0, "Train fraction (0-1)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Shuffle seed")
	return cmd
}

// DatasetStatusEndpoint handles GET /v1/dataset/status.
type DatasetStatusEndpoint struct{}

func (e *DatasetStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/dataset/status", e.handler
}

func (e *DatasetStatusEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get dataset status
//	@Description	Report whether a dataset exists on disk and the stats of the last build
//	@Tags			dataset
//	@Produce		json
//	@Success		200	{object}	dataset.Status
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/dataset/status [get]
func (e *DatasetStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	builder := datasetBuilder(r)
	if builder == nil {
		writeError(w, http.StatusServiceUnavailable, "dataset builder not initialized")
		return
	}

	status, err := builder.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (e *DatasetStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show dataset build status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp dataset.Status
			if err := client.Get(cmd.Context(), "/v1/dataset/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
