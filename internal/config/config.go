package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"corpus/internal/logger"
)

// Supported OCR providers
const (
	OCRProviderTesseract  = "tesseract"
	OCRProviderVision     = "vision"
	OCRProviderDocumentAI = "documentai"
	OCRProviderNone       = "none"
)

type Config struct {
	// Pipeline I/O
	InputPath  string `mapstructure:"input_path"`
	OutputPath string `mapstructure:"output_path"`
	BackupPath string `mapstructure:"backup_path"`

	// External-service retry policy
	RetryCount     int `mapstructure:"retry_count"`
	BackoffSeconds int `mapstructure:"backoff_seconds"`

	// Word-count bounds
	MinWords        int `mapstructure:"min_words"`
	MaxWords        int `mapstructure:"max_words"`
	SectionMinWords int `mapstructure:"section_min_words"`

	// Segmentation
	DefaultChapter string `mapstructure:"default_chapter"`

	// Documents processed concurrently; export order is kept
	Workers int `mapstructure:"workers"`

	// OCR fallback
	OCRProvider      string   `mapstructure:"ocr_provider"`
	OCRLanguage      string   `mapstructure:"ocr_language"`
	OCREngineMode    int      `mapstructure:"ocr_engine_mode"`
	OCRPageSegMode   int      `mapstructure:"ocr_page_seg_mode"`
	OCRDPI           int      `mapstructure:"ocr_dpi"`
	OCRLanguageHints []string `mapstructure:"ocr_language_hints"`

	// OpenAI Configuration
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	OpenAIModel    string `mapstructure:"openai_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	PromptFile     string `mapstructure:"prompt_file"`

	// Google Cloud Configuration
	GoogleCloudProject    string `mapstructure:"google_cloud_project"`
	GoogleCloudLocation   string `mapstructure:"google_cloud_location"`
	DocumentAIProcessorID string `mapstructure:"document_ai_processor_id"`

	// Logging Configuration
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogTimeFormat string `mapstructure:"log_time_format"`
	LogOutput     string `mapstructure:"log_output"`
}

// defaults and their environment variable names. The first env name is the
// prefixed one; the second, when present, is the plain name shared with other tools.
var keys = []struct {
	key   string
	value interface{}
	env   []string
}{
	{"input_path", "", []string{"CORPUS_INPUT_PATH"}},
	{"output_path", "", []string{"CORPUS_OUTPUT_PATH"}},
	{"backup_path", "", []string{"CORPUS_BACKUP_PATH"}},
	{"retry_count", 3, []string{"CORPUS_RETRY_COUNT"}},
	{"backoff_seconds", 30, []string{"CORPUS_BACKOFF_SECONDS"}},
	{"min_words", 300, []string{"CORPUS_MIN_WORDS"}},
	{"max_words", 700, []string{"CORPUS_MAX_WORDS"}},
	{"section_min_words", 50, []string{"CORPUS_SECTION_MIN_WORDS"}},
	{"default_chapter", "Giới thiệu", []string{"CORPUS_DEFAULT_CHAPTER"}},
	{"workers", 1, []string{"CORPUS_WORKERS"}},
	{"ocr_provider", OCRProviderTesseract, []string{"CORPUS_OCR_PROVIDER"}},
	{"ocr_language", "vie", []string{"CORPUS_OCR_LANGUAGE"}},
	{"ocr_engine_mode", 3, []string{"CORPUS_OCR_ENGINE_MODE"}},
	{"ocr_page_seg_mode", 6, []string{"CORPUS_OCR_PAGE_SEG_MODE"}},
	{"ocr_dpi", 300, []string{"CORPUS_OCR_DPI"}},
	{"ocr_language_hints", []string{"vi"}, []string{"CORPUS_OCR_LANGUAGE_HINTS"}},
	{"openai_api_key", "", []string{"CORPUS_OPENAI_API_KEY", "OPENAI_API_KEY"}},
	{"openai_model", "gpt-4o-mini", []string{"CORPUS_OPENAI_MODEL", "OPENAI_MODEL"}},
	{"embedding_model", "text-embedding-3-small", []string{"CORPUS_EMBEDDING_MODEL"}},
	{"prompt_file", "", []string{"CORPUS_PROMPT_FILE"}},
	{"google_cloud_project", "", []string{"CORPUS_GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_PROJECT"}},
	{"google_cloud_location", "us", []string{"CORPUS_GOOGLE_CLOUD_LOCATION", "GOOGLE_CLOUD_LOCATION"}},
	{"document_ai_processor_id", "", []string{"CORPUS_DOCUMENT_AI_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_ID"}},
	{"log_level", "info", []string{"CORPUS_LOG_LEVEL", "LOG_LEVEL"}},
	{"log_format", "console", []string{"CORPUS_LOG_FORMAT", "LOG_FORMAT"}},
	{"log_time_format", time.RFC3339, []string{"CORPUS_LOG_TIME_FORMAT", "LOG_TIME_FORMAT"}},
	{"log_output", "stderr", []string{"CORPUS_LOG_OUTPUT", "LOG_OUTPUT"}},
}

// Load reads defaults, the optional file named by CORPUS_CONFIG and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CORPUS_CONFIG"))
}

// LoadFile is Load with an explicit config file path; empty means no file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for _, k := range keys {
		v.SetDefault(k.key, k.value)
		if err := v.BindEnv(append([]string{k.key}, k.env...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", k.key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks the bounds every pipeline relies on
func (c *Config) Validate() error {
	if c.MinWords <= 0 {
		return fmt.Errorf("min_words must be positive, got %d", c.MinWords)
	}
	if c.MaxWords < c.MinWords {
		return fmt.Errorf("max_words (%d) must not be below min_words (%d)", c.MaxWords, c.MinWords)
	}
	if c.SectionMinWords < 0 {
		return fmt.Errorf("section_min_words must not be negative, got %d", c.SectionMinWords)
	}
	if c.RetryCount < 1 {
		return fmt.Errorf("retry_count must be at least 1, got %d", c.RetryCount)
	}
	if c.BackoffSeconds < 0 {
		return fmt.Errorf("backoff_seconds must not be negative, got %d", c.BackoffSeconds)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch c.OCRProvider {
	case OCRProviderTesseract, OCRProviderVision, OCRProviderDocumentAI, OCRProviderNone:
	default:
		return fmt.Errorf("unknown ocr_provider %q", c.OCRProvider)
	}
	return nil
}

// ValidateOpenAI checks the settings needed by the summarize and evaluate commands
func (c *Config) ValidateOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

// Backoff returns the fixed wait between retries
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}
