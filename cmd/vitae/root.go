package main

import (
	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "vitae",
	Short: "Resume extraction pipeline with OCR and LLM-powered structuring",
	Long: `Vitae is a resume extraction pipeline that transforms resume PDFs into
validated structured records using OCR and LLM-powered extraction.

The pipeline includes:
  - PaddleOCR text recognition with per-page confidence
  - LLM extraction into a fixed resume record schema
  - Schema validation, coverage scoring and bounded correction retries
  - Human review queue and fine-tuning dataset assembly`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.vitae/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "vitae home directory (default: ~/.vitae)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
