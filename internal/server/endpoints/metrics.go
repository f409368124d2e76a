package endpoints

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/store"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// MetricsSummaryEndpoint handles GET /v1/metrics/summary.
type MetricsSummaryEndpoint struct{}

var _ api.Endpoint = (*MetricsSummaryEndpoint)(nil)

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get processing metrics
//	@Description	Summarize documents by status and outcome, coverage and iteration means, and call/step rollups
//	@Tags			metrics
//	@Produce		json
//	@Success		200	{object}	store.Summary
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/metrics/summary [get]
func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return
	}

	summary, err := st.GetSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Get processing metrics summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp store.Summary
			if err := client.Get(cmd.Context(), "/v1/metrics/summary", &resp); err != nil {
				return err
			}

			fmt.Printf("Documents: %d (flagged: %d)\n", resp.Documents, resp.Flagged)
			printCounts("By status", resp.ByStatus)
			printCounts("By outcome", resp.ByOutcome)
			fmt.Println()
			fmt.Printf("Mean coverage:       %.3f\n", resp.MeanCoverage)
			fmt.Printf("Mean OCR confidence: %.3f\n", resp.MeanOCRConfidence)
			fmt.Printf("Mean iterations:     %.2f\n", resp.MeanIterations)
			fmt.Println()
			fmt.Printf("Generation calls: %d (errors: %d, avg %.0fms)\n",
				resp.Calls.Count, resp.Calls.ErrorCount, resp.Calls.AvgDuration)

			steps := make([]string, 0, len(resp.Steps))
			for name := range resp.Steps {
				steps = append(steps, name)
			}
			sort.Strings(steps)
			for _, name := range steps {
				s := resp.Steps[name]
				fmt.Printf("Step %-10s %d runs (errors: %d, avg %.0fms)\n",
					name+":", s.Count, s.ErrorCount, s.AvgDuration)
			}
			return nil
		},
	}
}

// printCounts prints a labelled count map with sorted keys.
func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", label)
	for _, k := range keys {
		fmt.Printf("  %-14s %d\n", k+":", counts[k])
	}
}
