package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when no Anthropic API key is configured.
var ErrMissingCredential = errors.New("ANTHROPIC_API_KEY is not set")

type Config struct {
	Port string

	// Document
	PDFPath          string
	MaxPagesPerChunk int

	// Claude
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	MaxTokens        int
	Temperature      float64
	RequestTimeout   time.Duration
	LLMStatsWindow   time.Duration

	// Auth for /api routes; empty disables it.
	APIKey string

	Debug bool
}

// fileConfig mirrors Config for the optional YAML file.
type fileConfig struct {
	Port             string   `yaml:"port"`
	PDFPath          string   `yaml:"pdf_path"`
	MaxPagesPerChunk int      `yaml:"max_pages_per_chunk"`
	AnthropicModel   string   `yaml:"anthropic_model"`
	AnthropicBaseURL string   `yaml:"anthropic_base_url"`
	MaxTokens        int      `yaml:"max_tokens"`
	Temperature      *float64 `yaml:"temperature"`
	RequestTimeout   string   `yaml:"request_timeout"`
	LLMStatsWindow   string   `yaml:"llm_stats_window"`
	Debug            bool     `yaml:"debug"`
}

func defaults() Config {
	return Config{
		Port:             "8090",
		PDFPath:          "documents/document.pdf",
		MaxPagesPerChunk: 100,
		AnthropicModel:   "claude-sonnet-4-5-20250929",
		AnthropicBaseURL: "https://api.anthropic.com",
		MaxTokens:        4000,
		Temperature:      0.3,
		RequestTimeout:   120 * time.Second,
		LLMStatsWindow:   1 * time.Hour,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// PDFCHAT_CONFIG, and the environment, in increasing precedence. A .env file
// in the working directory is loaded into the environment first.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("PDFCHAT_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.PDFPath = envOr("PDF_PATH", cfg.PDFPath)
	cfg.MaxPagesPerChunk = envInt("MAX_PAGES_PER_CHUNK", cfg.MaxPagesPerChunk)

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.AnthropicModel = envOr("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.AnthropicBaseURL = envOr("ANTHROPIC_BASE_URL", cfg.AnthropicBaseURL)
	cfg.MaxTokens = envInt("MAX_TOKENS", cfg.MaxTokens)
	cfg.Temperature = envFloat("TEMPERATURE", cfg.Temperature)
	cfg.RequestTimeout = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.LLMStatsWindow = envDuration("LLM_STATS_WINDOW", cfg.LLMStatsWindow)

	cfg.APIKey = os.Getenv("PDFCHAT_API_KEY")
	cfg.Debug = envBool("DEBUG", cfg.Debug)

	d := defaults()
	if cfg.MaxPagesPerChunk <= 0 {
		cfg.MaxPagesPerChunk = d.MaxPagesPerChunk
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.LLMStatsWindow <= 0 {
		cfg.LLMStatsWindow = d.LLMStatsWindow
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.PDFPath != "" {
		c.PDFPath = fc.PDFPath
	}
	if fc.MaxPagesPerChunk > 0 {
		c.MaxPagesPerChunk = fc.MaxPagesPerChunk
	}
	if fc.AnthropicModel != "" {
		c.AnthropicModel = fc.AnthropicModel
	}
	if fc.AnthropicBaseURL != "" {
		c.AnthropicBaseURL = fc.AnthropicBaseURL
	}
	if fc.MaxTokens > 0 {
		c.MaxTokens = fc.MaxTokens
	}
	if fc.Temperature != nil {
		c.Temperature = *fc.Temperature
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	if fc.LLMStatsWindow != "" {
		d, err := time.ParseDuration(fc.LLMStatsWindow)
		if err != nil {
			return fmt.Errorf("parse llm_stats_window: %w", err)
		}
		c.LLMStatsWindow = d
	}
	c.Debug = c.Debug || fc.Debug
	return nil
}

// Validate checks settings the service cannot start without. A missing API
// key is not one of them: it can be entered at runtime.
func (c Config) Validate() error {
	if c.PDFPath == "" {
		return fmt.Errorf("PDF_PATH is required")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("TEMPERATURE must be within [0, 1], got %g", c.Temperature)
	}
	return nil
}

// CheckCredential reports ErrMissingCredential when no API key is set.
func (c Config) CheckCredential() error {
	if c.AnthropicAPIKey == "" {
		return ErrMissingCredential
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
