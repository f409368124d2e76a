package endpoints

import (
	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/ocrsvc"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// OCRManager reports container status on /status. Nil when the OCR
	// service is unmanaged.
	OCRManager      *ocrsvc.Manager
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{OCRManager: cfg.OCRManager},

		// Document endpoints
		&UploadDocumentsEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&GetRecordEndpoint{},

		// Pipeline run endpoints
		&ExtractEndpoint{},
		&BatchEndpoint{},

		// Review endpoints
		&ReviewQueueEndpoint{},
		&GetReviewEndpoint{},
		&FeedbackEndpoint{},
		&CorrectionsEndpoint{},
		&ApproveEndpoint{},
		&RejectEndpoint{},

		// Dataset endpoints
		&DatasetBuildEndpoint{},
		&DatasetStatusEndpoint{},

		// Metrics endpoints
		&MetricsSummaryEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
		&UpdateSettingsEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	}
}
