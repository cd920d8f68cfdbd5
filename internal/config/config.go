// Package config provides Viper-based hierarchical configuration management
// for the import pipeline: defaults, then an optional config file, then
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Provider kinds selectable through configuration.
const (
	ProviderRemoteLLM = "remote-llm"
	ProviderLocalLLM  = "local-llm"
	ProviderOCR       = "ocr"
)

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	// Provider selects the extraction backend: remote-llm, local-llm or ocr.
	Provider string `mapstructure:"provider" yaml:"provider"`

	Gemini struct {
		APIKey         string `mapstructure:"api_key" yaml:"-"` // never serialize the API key
		Model          string `mapstructure:"model" yaml:"model"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"gemini" yaml:"gemini"`

	Local struct {
		BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
		Model          string `mapstructure:"model" yaml:"model"`
		Multimodal     bool   `mapstructure:"multimodal" yaml:"multimodal"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"local" yaml:"local"`

	OCR struct {
		Binary string `mapstructure:"binary" yaml:"binary"`
	} `mapstructure:"ocr" yaml:"ocr"`

	Mail struct {
		Server   string   `mapstructure:"server" yaml:"server"`
		Username string   `mapstructure:"username" yaml:"username"`
		Password string   `mapstructure:"password" yaml:"-"`
		Folder   string   `mapstructure:"folder" yaml:"folder"`
		Days     int      `mapstructure:"days" yaml:"days"`
		Senders  []string `mapstructure:"senders" yaml:"senders"`
		Keywords []string `mapstructure:"keywords" yaml:"keywords"`
	} `mapstructure:"mail" yaml:"mail"`

	Dedup struct {
		WindowDays    int     `mapstructure:"window_days" yaml:"window_days"`
		Similarity    float64 `mapstructure:"similarity" yaml:"similarity"`
		MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	} `mapstructure:"dedup" yaml:"dedup"`

	Ledger struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"ledger" yaml:"ledger"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.budget-import")
	v.AddConfigPath(".budget-import")
	v.AddConfigPath(".")

	// 3. Environment variables
	v.SetEnvPrefix("BUDGET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Continue with defaults and env vars; the file is optional.
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. Secrets always come from unprefixed env vars
	if err := v.BindEnv("gemini.api_key", "GEMINI_API_KEY"); err != nil {
		fmt.Printf("Warning: failed to bind GEMINI_API_KEY environment variable: %v\n", err)
	}
	if err := v.BindEnv("mail.password", "MAIL_APP_PASSWORD"); err != nil {
		fmt.Printf("Warning: failed to bind MAIL_APP_PASSWORD environment variable: %v\n", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Provider defaults: OCR is the no-external-dependency fallback.
	v.SetDefault("provider", ProviderOCR)

	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout_seconds", 30)

	// Local LLM defaults (LM Studio / Ollama style OpenAI-compatible API)
	v.SetDefault("local.base_url", "http://localhost:1234/v1")
	v.SetDefault("local.model", "local-model")
	v.SetDefault("local.multimodal", false)
	v.SetDefault("local.timeout_seconds", 120)

	// OCR defaults
	v.SetDefault("ocr.binary", "tesseract")

	// Mail defaults. Server, username and senders default empty but must
	// be registered: AutomaticEnv only surfaces BUDGET_* variables for
	// keys viper already knows about.
	v.SetDefault("mail.server", "")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.senders", []string{})
	v.SetDefault("mail.folder", "INBOX")
	v.SetDefault("mail.days", 30)
	v.SetDefault("mail.keywords", []string{
		"receipt", "payment", "order", "transaction", "purchase", "invoice",
	})

	// Dedup tuning. The window and similarity threshold are heuristics,
	// kept configurable on purpose.
	v.SetDefault("dedup.window_days", 1)
	v.SetDefault("dedup.similarity", 0.6)
	v.SetDefault("dedup.min_confidence", 0.2)

	// Ledger defaults
	v.SetDefault("ledger.file", "ledger.yaml")
}

// validateConfig validates configuration values.
func validateConfig(config *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(config.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	switch config.Provider {
	case ProviderRemoteLLM, ProviderLocalLLM, ProviderOCR:
	default:
		return fmt.Errorf("invalid provider: %s (must be %s, %s or %s)",
			config.Provider, ProviderRemoteLLM, ProviderLocalLLM, ProviderOCR)
	}

	if config.Dedup.WindowDays < 0 {
		return fmt.Errorf("dedup.window_days must not be negative")
	}
	if config.Dedup.Similarity < 0 || config.Dedup.Similarity > 1 {
		return fmt.Errorf("dedup.similarity must be between 0 and 1")
	}
	if config.Dedup.MinConfidence < 0 || config.Dedup.MinConfidence > 1 {
		return fmt.Errorf("dedup.min_confidence must be between 0 and 1")
	}

	return nil
}
