package config

// Config holds vitae configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server     ServerCfg     `mapstructure:"server" yaml:"server"`
	OCR        OCRCfg        `mapstructure:"ocr" yaml:"ocr"`
	Generation GenerationCfg `mapstructure:"generation" yaml:"generation"`
	Correction CorrectionCfg `mapstructure:"correction" yaml:"correction"`
	Pipeline   PipelineCfg   `mapstructure:"pipeline" yaml:"pipeline"`
	Dataset    DatasetCfg    `mapstructure:"dataset" yaml:"dataset"`
	Logging    LoggingCfg    `mapstructure:"logging" yaml:"logging"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// OCRCfg configures the OCR service collaborator.
type OCRCfg struct {
	ServiceURL     string       `mapstructure:"service_url" yaml:"service_url"`         // PaddleOCR service base URL
	Language       string       `mapstructure:"language" yaml:"language"`               // OCR language
	DPI            int          `mapstructure:"dpi" yaml:"dpi"`                         // PDF render resolution
	MinConfidence  float64      `mapstructure:"min_confidence" yaml:"min_confidence"`   // Drop elements below this confidence
	UseGPU         bool         `mapstructure:"use_gpu" yaml:"use_gpu"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Managed        bool         `mapstructure:"managed" yaml:"managed"` // serve manages the service container
	Container      ContainerCfg `mapstructure:"container" yaml:"container"`
}

// ContainerCfg holds OCR service container configuration.
type ContainerCfg struct {
	// Name is the Docker container name (default: vitae-paddleocr)
	Name string `mapstructure:"name" yaml:"name"`
	// Image is the Docker image to use
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 8866)
	Port string `mapstructure:"port" yaml:"port"`
}

// GenerationCfg configures the text-generation backend.
type GenerationCfg struct {
	Backend        string    `mapstructure:"backend" yaml:"backend"` // "ollama", "openai", "mock"
	Ollama         OllamaCfg `mapstructure:"ollama" yaml:"ollama"`
	OpenAI         OpenAICfg `mapstructure:"openai" yaml:"openai"`
	Temperature    float64   `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int       `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int       `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int       `mapstructure:"max_retries" yaml:"max_retries"` // Transport-level retries
	RateLimit      float64   `mapstructure:"rate_limit" yaml:"rate_limit"`   // Requests per second
}

// OllamaCfg configures the Ollama backend.
type OllamaCfg struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Model string `mapstructure:"model" yaml:"model"`
}

// OpenAICfg configures an OpenAI-compatible backend.
type OpenAICfg struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // Empty means api.openai.com
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`   // Supports ${ENV_VAR} syntax
	Model   string `mapstructure:"model" yaml:"model"`
}

// CorrectionCfg configures the correction loop.
type CorrectionCfg struct {
	MaxIterations     int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	CoverageThreshold float64 `mapstructure:"coverage_threshold" yaml:"coverage_threshold"`
	// ReviewThreshold flags accepted documents whose coverage still looks weak.
	ReviewThreshold float64 `mapstructure:"review_threshold" yaml:"review_threshold"`
	MinTokenLength  int     `mapstructure:"min_token_length" yaml:"min_token_length"`
	MissingTokenCap int     `mapstructure:"missing_token_cap" yaml:"missing_token_cap"`
}

// PipelineCfg configures batch pipeline execution.
type PipelineCfg struct {
	Workers int    `mapstructure:"workers" yaml:"workers"` // Max documents processed concurrently
	Default string `mapstructure:"default" yaml:"default"` // Default pipeline name
}

// DatasetCfg configures dataset building.
type DatasetCfg struct {
	Split float64 `mapstructure:"split" yaml:"split"` // Train fraction (0-1)
	Seed  int64   `mapstructure:"seed" yaml:"seed"`   // Shuffle seed for reproducible splits
}

// LoggingCfg configures logging output.
type LoggingCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "localhost",
			Port: 8080,
		},
		OCR: OCRCfg{
			ServiceURL:     "http://localhost:8866",
			Language:       "en",
			DPI:            300,
			MinConfidence:  0.5,
			UseGPU:         false,
			TimeoutSeconds: 300,
			Managed:        true,
			Container: ContainerCfg{
				Name:  "vitae-paddleocr",
				Image: "vitaehq/paddleocr-service:latest",
				Port:  "8866",
			},
		},
		Generation: GenerationCfg{
			Backend: "ollama",
			Ollama: OllamaCfg{
				URL:   "http://localhost:11434",
				Model: "mistral:7b-instruct-v0.2-q8_0",
			},
			OpenAI: OpenAICfg{
				APIKey: "${OPENAI_API_KEY}",
				Model:  "gpt-4o-mini",
			},
			Temperature:    0.1,
			MaxTokens:      2048,
			TimeoutSeconds: 300,
			MaxRetries:     5,
			RateLimit:      2.0,
		},
		Correction: CorrectionCfg{
			MaxIterations:     3,
			CoverageThreshold: 0.9,
			ReviewThreshold:   0.75,
			MinTokenLength:    3,
			MissingTokenCap:   50,
		},
		Pipeline: PipelineCfg{
			Workers: 2,
			Default: "full",
		},
		Dataset: DatasetCfg{
			Split: 0.8,
			Seed:  42,
		},
		Logging: LoggingCfg{
			Level:  "info",
			Format: "text",
		},
	}
}
