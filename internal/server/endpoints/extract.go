package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/pipeline"
	"github.com/vitaehq/vitae/internal/store"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// ExtractEndpoint handles POST /v1/documents/{id}/extract.
// The run is synchronous: the response carries the per-step outcome.
type ExtractEndpoint struct{}

var _ api.Endpoint = (*ExtractEndpoint)(nil)

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/documents/{id}/extract", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Run a pipeline for one document
//	@Description	Run the selected pipeline (or the configured default) for a document
//	@Tags			documents
//	@Produce		json
//	@Param			id			path		string	true	"Document ID"
//	@Param			pipeline	query		string	false	"Pipeline name (full, extract, structure)"
//	@Param			start		query		string	false	"First step to run"
//	@Param			end			query		string	false	"Last step to run"
//	@Success		200			{object}	pipeline.DocumentResult
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/v1/documents/{id}/extract [post]
func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline runner not initialized")
		return
	}

	q := r.URL.Query()
	opts := pipeline.Options{
		Pipeline:  q.Get("pipeline"),
		StartStep: q.Get("start"),
		EndStep:   q.Get("end"),
	}

	res, err := runner.ProcessDocument(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, pipeline.ErrUnknownPipeline),
			errors.Is(err, pipeline.ErrUnknownStep),
			errors.Is(err, pipeline.ErrStepOrder):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var pipelineName, startStep, endStep string
	cmd := &cobra.Command{
		Use:   "extract <document-id>",
		Short: "Run an extraction pipeline for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			path := fmt.Sprintf("/v1/documents/%s/extract%s", args[0], runQuery(pipelineName, startStep, endStep, 0, ""))
			var resp pipeline.DocumentResult
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			if err := api.Output(resp); err != nil {
				return err
			}
			if resp.Error != "" {
				return fmt.Errorf("step %s failed: %s", resp.FailedStep, resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "Pipeline name (full, extract, structure)")
	cmd.Flags().StringVar(&startStep, "start", "", "First step to run")
	cmd.Flags().StringVar(&endStep, "end", "", "Last step to run")
	return cmd
}

// BatchEndpoint handles POST /v1/batch.
// It runs the selected pipeline over every document in a status, with
// bounded concurrency, and blocks until the batch finishes.
type BatchEndpoint struct{}

var _ api.Endpoint = (*BatchEndpoint)(nil)

func (e *BatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/batch", e.handler
}

func (e *BatchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Run a pipeline over a status
//	@Description	Run the selected pipeline for every document in the given status
//	@Tags			documents
//	@Produce		json
//	@Param			status		query		string	true	"Document status to select (e.g. uploaded)"
//	@Param			pipeline	query		string	false	"Pipeline name (full, extract, structure)"
//	@Param			start		query		string	false	"First step to run"
//	@Param			end			query		string	false	"Last step to run"
//	@Param			workers		query		int		false	"Concurrent documents (default from config)"
//	@Success		200			{object}	pipeline.BatchResult
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/v1/batch [post]
func (e *BatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline runner not initialized")
		return
	}

	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		writeError(w, http.StatusBadRequest, "status query parameter is required")
		return
	}

	opts := pipeline.Options{
		Pipeline:  q.Get("pipeline"),
		StartStep: q.Get("start"),
		EndStep:   q.Get("end"),
	}
	if ws := q.Get("workers"); ws != "" {
		n, err := strconv.Atoi(ws)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "workers must be a positive integer")
			return
		}
		opts.Workers = n
	}

	res, err := runner.ProcessByStatus(r.Context(), status, opts)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrUnknownPipeline),
			errors.Is(err, pipeline.ErrUnknownStep),
			errors.Is(err, pipeline.ErrStepOrder):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (e *BatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var status, pipelineName, startStep, endStep string
	var workers int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a pipeline over every document in a status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			path := "/v1/batch" + runQuery(pipelineName, startStep, endStep, workers, status)
			var resp pipeline.BatchResult
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			if err := api.Output(resp); err != nil {
				return err
			}
			if resp.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", resp.Failed, resp.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "uploaded", "Document status to select")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "Pipeline name (full, extract, structure)")
	cmd.Flags().StringVar(&startStep, "start", "", "First step to run")
	cmd.Flags().StringVar(&endStep, "end", "", "Last step to run")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent documents (default from config)")
	return cmd
}

// runQuery assembles the shared pipeline-run query string.
func runQuery(pipelineName, startStep, endStep string, workers int, status string) string {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if pipelineName != "" {
		params.Set("pipeline", pipelineName)
	}
	if startStep != "" {
		params.Set("start", startStep)
	}
	if endStep != "" {
		params.Set("end", endStep)
	}
	if workers > 0 {
		params.Set("workers", strconv.Itoa(workers))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}
