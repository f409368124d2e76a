package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/config"
	"github.com/vitaehq/vitae/internal/ocrsvc"
	"github.com/vitaehq/vitae/internal/providers"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr",
	Short: "Manage the PaddleOCR service container",
	Long: `Manage the PaddleOCR service container lifecycle.

The OCR step sends PDFs to a PaddleOCR service running in a Docker
container. 'vitae serve' manages the container itself when ocr.managed is
enabled in the config; these commands run it standalone.

Examples:
  vitae ocr start   # Start the OCR service container
  vitae ocr stop    # Stop the container
  vitae ocr status  # Check container status
  vitae ocr logs    # View container logs`,
}

var ocrStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the OCR service container",
	Long: `Start the PaddleOCR service container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting OCR service...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start OCR service: %w", err)
		}

		fmt.Printf("OCR service is running at %s\n", mgr.URL())
		return nil
	},
}

var ocrStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the OCR service container",
	Long: `Stop the PaddleOCR service container.

This stops the container but keeps it around. Use 'vitae ocr start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping OCR service...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop OCR service: %w", err)
		}

		fmt.Println("OCR service stopped")
		return nil
	},
}

var ocrStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show OCR service container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case ocrsvc.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			// Try health check
			client := providers.NewPaddleClient(providers.OCRServiceConfig{BaseURL: mgr.URL()})
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
			}
		case ocrsvc.StatusStopped:
			fmt.Printf("Status: %s (use 'vitae ocr start' to start)\n", status)
		case ocrsvc.StatusNotFound:
			fmt.Printf("Status: %s (use 'vitae ocr start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var (
	ocrLogsTail   string
	ocrLogsFollow bool
)

var ocrLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show OCR service container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, ocrLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var ocrRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the OCR service container",
	Long: `Remove the PaddleOCR service container.

This stops and removes the container. The image is kept, so the next
'vitae ocr start' recreates it without a pull.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing OCR service container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("OCR service container removed")
		return nil
	},
}

var ocrWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the OCR service to be ready",
	Long: `Wait for the PaddleOCR service to be ready to accept requests.

This is useful in scripts to ensure the OCR service is fully started
before uploading documents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for OCR service (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return fmt.Errorf("OCR service not ready: %w", err)
		}

		fmt.Println("OCR service is ready")
		return nil
	},
}

func init() {
	// Add subcommands
	ocrCmd.AddCommand(ocrStartCmd)
	ocrCmd.AddCommand(ocrStopCmd)
	ocrCmd.AddCommand(ocrStatusCmd)
	ocrCmd.AddCommand(ocrLogsCmd)
	ocrCmd.AddCommand(ocrRemoveCmd)
	ocrCmd.AddCommand(ocrWaitCmd)

	// Logs flags
	ocrLogsCmd.Flags().StringVar(&ocrLogsTail, "tail", "100", "Number of lines to show from the end")
	ocrLogsCmd.Flags().BoolVarP(&ocrLogsFollow, "follow", "f", false, "Follow log output (not yet implemented)")

	// Wait flags
	ocrWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for the OCR service")

	// Add to root
	rootCmd.AddCommand(ocrCmd)
}

// getOCRManager creates an OCR container manager from the configured
// container settings.
func getOCRManager() (*ocrsvc.Manager, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	return ocrsvc.NewManager(ocrsvc.Config{
		ContainerName: cfg.OCR.Container.Name,
		Image:         cfg.OCR.Container.Image,
		HostPort:      cfg.OCR.Container.Port,
	})
}
