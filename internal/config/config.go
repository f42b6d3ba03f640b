package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pdf2md/internal/logger"
)

// Supported OCR backends.
const (
	BackendOpenAI     = "openai"
	BackendGemini     = "gemini"
	BackendVision     = "vision"
	BackendDocumentAI = "documentai"
)

type Config struct {
	OCR    OCRConfig
	Render RenderConfig
	Google GoogleConfig
	Gemini GeminiConfig
	S3     S3Config
	Log    logger.LogConfig
}

// OCRConfig holds the remote endpoint and the per-request retry policy.
type OCRConfig struct {
	Backend               string
	Endpoint              string
	Model                 string
	APIKey                string
	Prompt                string
	MaxTokens             int
	Temperature           float32
	TopP                  float32
	MaxWorkers            int
	RequestTimeoutSeconds float64
	MaxRetries            int
	BackoffBase           time.Duration
	BackoffMax            time.Duration
	RequestsPerSecond     float64
	Preflight             bool
}

// RequestTimeout returns the per-request timeout as a duration.
func (o OCRConfig) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutSeconds * float64(time.Second))
}

// RenderConfig controls page rasterization.
type RenderConfig struct {
	DPI     int
	Command string
}

// GoogleConfig holds Google Cloud settings for the vision and documentai backends.
type GoogleConfig struct {
	Project         string
	Location        string
	ProcessorID     string
	Credentials     string
	CredentialsFile string
}

// GeminiConfig holds the Gemini API key.
type GeminiConfig struct {
	APIKey string
}

// S3Config is used when an output path is an s3:// URL.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var defaults = map[string]any{
	"ocr.backend":                 BackendOpenAI,
	"ocr.endpoint":                "http://localhost:9090/v1",
	"ocr.model":                   "LightOnOCR-2-1B",
	"ocr.api_key":                 "",
	"ocr.prompt":                  "Extract all text from this page and return it as Markdown.",
	"ocr.max_tokens":              4096,
	"ocr.temperature":             0.2,
	"ocr.top_p":                   0.9,
	"ocr.max_workers":             8,
	"ocr.request_timeout_seconds": 120,
	"ocr.max_retries":             3,
	"ocr.backoff_base":            "100ms",
	"ocr.backoff_max":             "10s",
	"ocr.requests_per_second":     0,
	"ocr.preflight":               false,
	"render.dpi":                  200,
	"render.command":              "pdftoppm",
	"google.location":             "us",
	"s3.region":                   "us-east-1",
	"log.level":                   "info",
	"log.format":                  "console",
	"log.time_format":             time.RFC3339,
	"log.output":                  "stderr",
}

var envBindings = map[string][]string{
	"ocr.backend":                 {"OCR_BACKEND"},
	"ocr.endpoint":                {"OCR_ENDPOINT"},
	"ocr.model":                   {"OCR_MODEL"},
	"ocr.api_key":                 {"OCR_API_KEY", "OPENAI_API_KEY"},
	"ocr.prompt":                  {"OCR_PROMPT"},
	"ocr.max_tokens":              {"OCR_MAX_TOKENS"},
	"ocr.temperature":             {"OCR_TEMPERATURE"},
	"ocr.top_p":                   {"OCR_TOP_P"},
	"ocr.max_workers":             {"OCR_MAX_WORKERS"},
	"ocr.request_timeout_seconds": {"OCR_REQUEST_TIMEOUT_SECONDS"},
	"ocr.max_retries":             {"OCR_MAX_RETRIES"},
	"ocr.backoff_base":            {"OCR_BACKOFF_BASE"},
	"ocr.backoff_max":             {"OCR_BACKOFF_MAX"},
	"ocr.requests_per_second":     {"OCR_REQUESTS_PER_SECOND"},
	"ocr.preflight":               {"OCR_PREFLIGHT"},
	"render.dpi":                  {"RENDER_DPI"},
	"render.command":              {"RENDER_COMMAND"},
	"google.project":              {"GOOGLE_CLOUD_PROJECT", "GOOGLE_PROJECT_ID"},
	"google.location":             {"GOOGLE_CLOUD_LOCATION", "GOOGLE_LOCATION"},
	"google.processor_id":         {"DOCUMENT_AI_PROCESSOR_ID"},
	"google.credentials":          {"GOOGLE_CREDENTIALS"},
	"google.credentials_file":     {"GOOGLE_APPLICATION_CREDENTIALS"},
	"gemini.api_key":              {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"s3.region":                   {"AWS_REGION"},
	"s3.endpoint":                 {"S3_ENDPOINT"},
	"s3.access_key":               {"S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID"},
	"s3.secret_key":               {"S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"},
	"log.level":                   {"LOG_LEVEL"},
	"log.format":                  {"LOG_FORMAT"},
	"log.time_format":             {"LOG_TIME_FORMAT"},
	"log.output":                  {"LOG_OUTPUT"},
}

// FlagKeys maps command-line flag names to configuration keys. Flags that are
// set explicitly take precedence over the environment.
var FlagKeys = map[string]string{
	"backend":     "ocr.backend",
	"endpoint":    "ocr.endpoint",
	"model":       "ocr.model",
	"prompt":      "ocr.prompt",
	"workers":     "ocr.max_workers",
	"timeout":     "ocr.request_timeout_seconds",
	"max-retries": "ocr.max_retries",
	"rps":         "ocr.requests_per_second",
	"preflight":   "ocr.preflight",
	"dpi":         "render.dpi",
	"log-level":   "log.level",
}

// Load reads configuration from defaults, the environment and, when flags is
// non-nil, the matching command-line flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		OCR: OCRConfig{
			Backend:               strings.ToLower(v.GetString("ocr.backend")),
			Endpoint:              strings.TrimSuffix(v.GetString("ocr.endpoint"), "/"),
			Model:                 v.GetString("ocr.model"),
			APIKey:                v.GetString("ocr.api_key"),
			Prompt:                v.GetString("ocr.prompt"),
			MaxTokens:             v.GetInt("ocr.max_tokens"),
			Temperature:           float32(v.GetFloat64("ocr.temperature")),
			TopP:                  float32(v.GetFloat64("ocr.top_p")),
			MaxWorkers:            v.GetInt("ocr.max_workers"),
			RequestTimeoutSeconds: v.GetFloat64("ocr.request_timeout_seconds"),
			MaxRetries:            v.GetInt("ocr.max_retries"),
			BackoffBase:           v.GetDuration("ocr.backoff_base"),
			BackoffMax:            v.GetDuration("ocr.backoff_max"),
			RequestsPerSecond:     v.GetFloat64("ocr.requests_per_second"),
			Preflight:             v.GetBool("ocr.preflight"),
		},
		Render: RenderConfig{
			DPI:     v.GetInt("render.dpi"),
			Command: v.GetString("render.command"),
		},
		Google: GoogleConfig{
			Project:         v.GetString("google.project"),
			Location:        v.GetString("google.location"),
			ProcessorID:     v.GetString("google.processor_id"),
			Credentials:     v.GetString("google.credentials"),
			CredentialsFile: v.GetString("google.credentials_file"),
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString("gemini.api_key"),
		},
		S3: S3Config{
			Region:    v.GetString("s3.region"),
			Endpoint:  v.GetString("s3.endpoint"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
		},
		Log: logger.LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			TimeFormat: v.GetString("log.time_format"),
			Output:     v.GetString("log.output"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.OCR.Backend {
	case BackendOpenAI:
		if c.OCR.Endpoint == "" {
			return fmt.Errorf("OCR_ENDPOINT is required")
		}
		if c.OCR.Model == "" {
			return fmt.Errorf("OCR_MODEL is required")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini backend")
		}
		if c.OCR.Model == "" {
			return fmt.Errorf("OCR_MODEL is required")
		}
	case BackendVision:
	case BackendDocumentAI:
		if c.Google.Project == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai backend")
		}
		if c.Google.ProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai backend")
		}
	default:
		return fmt.Errorf("unknown OCR_BACKEND %q (want %s, %s, %s or %s)",
			c.OCR.Backend, BackendOpenAI, BackendGemini, BackendVision, BackendDocumentAI)
	}
	if c.OCR.MaxWorkers <= 0 {
		return fmt.Errorf("OCR_MAX_WORKERS must be positive, got %d", c.OCR.MaxWorkers)
	}
	if c.OCR.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("OCR_REQUEST_TIMEOUT_SECONDS must be positive, got %g", c.OCR.RequestTimeoutSeconds)
	}
	if c.OCR.MaxRetries < 0 {
		return fmt.Errorf("OCR_MAX_RETRIES must not be negative, got %d", c.OCR.MaxRetries)
	}
	if c.OCR.RequestsPerSecond < 0 {
		return fmt.Errorf("OCR_REQUESTS_PER_SECOND must not be negative, got %g", c.OCR.RequestsPerSecond)
	}
	if c.Render.DPI <= 0 {
		return fmt.Errorf("RENDER_DPI must be positive, got %d", c.Render.DPI)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return c.Log
}
