package main

import (
	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Vitae server via HTTP.

These commands require a running server (vitae serve).
Use --server to specify a custom server URL.

Examples:
  vitae api health                  # Check server health
  vitae api documents upload a.pdf  # Upload a resume PDF
  vitae api extract <id>            # Run the extraction pipeline
  vitae api review queue            # List documents awaiting review`,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Document management commands",
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Human review commands",
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Training dataset commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Runtime settings commands",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Pipeline metrics commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Pipeline runs at top level of api
	apiCmd.AddCommand((&endpoints.ExtractEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.BatchEndpoint{}).Command(getServerURL))

	// Documents as subcommand group
	documentsCmd.AddCommand((&endpoints.UploadDocumentsEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.ListDocumentsEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.GetDocumentEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.GetRecordEndpoint{}).Command(getServerURL))

	// Review as subcommand group
	reviewCmd.AddCommand((&endpoints.ReviewQueueEndpoint{}).Command(getServerURL))
	reviewCmd.AddCommand((&endpoints.GetReviewEndpoint{}).Command(getServerURL))
	reviewCmd.AddCommand((&endpoints.FeedbackEndpoint{}).Command(getServerURL))
	reviewCmd.AddCommand((&endpoints.CorrectionsEndpoint{}).Command(getServerURL))
	reviewCmd.AddCommand((&endpoints.ApproveEndpoint{}).Command(getServerURL))
	reviewCmd.AddCommand((&endpoints.RejectEndpoint{}).Command(getServerURL))

	// Dataset as subcommand group
	datasetCmd.AddCommand((&endpoints.DatasetBuildEndpoint{}).Command(getServerURL))
	datasetCmd.AddCommand((&endpoints.DatasetStatusEndpoint{}).Command(getServerURL))

	// Settings as subcommand group
	settingsCmd.AddCommand((&endpoints.ListSettingsEndpoint{}).Command(getServerURL))
	settingsCmd.AddCommand((&endpoints.UpdateSettingsEndpoint{}).Command(getServerURL))

	// Metrics as subcommand group
	metricsCmd.AddCommand((&endpoints.MetricsSummaryEndpoint{}).Command(getServerURL))

	// OpenAPI spec helpers at top level
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerUIEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(documentsCmd)
	apiCmd.AddCommand(reviewCmd)
	apiCmd.AddCommand(datasetCmd)
	apiCmd.AddCommand(settingsCmd)
	apiCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(apiCmd)
}
