// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, ATLAS_ prefix plus the
//     provider secrets OPENROUTER_API_KEY and RESEND_API_KEY)
//  2. Config file (~/.atlasbot/config.yaml or ./config.yaml)
//  3. Default values
//
// Error Handling: sentinel errors checked with errors.Is(), wrapped with
// fmt.Errorf("%w: details", ErrXxx). Secrets are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model identifier is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the sampling temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the completion token cap is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidMinScore indicates the relevance threshold is out of range.
	ErrInvalidMinScore = errors.New("invalid retrieval min score")

	// ErrInvalidRateLimit indicates a rate-limit policy is not positive.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidRetry indicates the retry policy is not positive.
	ErrInvalidRetry = errors.New("invalid retry policy")

	// ErrInvalidDataDir indicates the data directory is empty.
	ErrInvalidDataDir = errors.New("invalid data directory")
)

// Default model identifiers, matching the OpenRouter catalog.
const (
	DefaultChatModel  = "google/gemini-2.0-flash-001"
	DefaultEmbedModel = "openai/text-embedding-3-small"
)

// Config stores application configuration.
// SENSITIVE fields (API keys) are read from the environment and must never
// be written to logs or responses.
type Config struct {
	// HTTP server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)

	// OpenRouter provider
	BaseURL         string        `mapstructure:"base_url" json:"base_url"`
	APIKey          string        `mapstructure:"api_key" json:"-"` // SENSITIVE
	ChatModel       string        `mapstructure:"chat_model" json:"chat_model"`
	EmbedModel      string        `mapstructure:"embed_model" json:"embed_model"`
	Temperature     float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens" json:"max_tokens"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts" json:"max_attempts"`
	EmbedBackoff    time.Duration `mapstructure:"embed_backoff" json:"embed_backoff"`
	CompleteBackoff time.Duration `mapstructure:"complete_backoff" json:"complete_backoff"`

	// Knowledge base layout
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// Retrieval policy
	TopK     int     `mapstructure:"top_k" json:"top_k"`
	MinScore float64 `mapstructure:"min_score" json:"min_score"`

	// Rate-limit policies (fixed window, per client IP)
	ChatRateLimit     int           `mapstructure:"chat_rate_limit" json:"chat_rate_limit"`
	ChatRateWindow    time.Duration `mapstructure:"chat_rate_window" json:"chat_rate_window"`
	ContactRateLimit  int           `mapstructure:"contact_rate_limit" json:"contact_rate_limit"`
	ContactRateWindow time.Duration `mapstructure:"contact_rate_window" json:"contact_rate_window"`

	// Contact form mail delivery
	ResendAPIKey string `mapstructure:"resend_api_key" json:"-"` // SENSITIVE
	MailFrom     string `mapstructure:"mail_from" json:"mail_from"`
	MailTo       string `mapstructure:"mail_to" json:"mail_to"`
}

// StorePath returns the path of the persisted vector store file.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "vector-store.json")
}

// KnowledgeDir returns the directory holding the human-readable Markdown
// renderings written by the knowledge builder.
func (c *Config) KnowledgeDir() string {
	return filepath.Join(c.DataDir, "knowledge")
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".atlasbot")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("addr", ":8080")
	viper.SetDefault("cors_origins", []string{"https://walson.dev"})
	viper.SetDefault("trust_proxy", false)

	viper.SetDefault("base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("chat_model", DefaultChatModel)
	viper.SetDefault("embed_model", DefaultEmbedModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 500)
	viper.SetDefault("request_timeout", "30s")
	viper.SetDefault("max_attempts", 3)
	viper.SetDefault("embed_backoff", "500ms")
	viper.SetDefault("complete_backoff", "1s")

	viper.SetDefault("data_dir", "data")

	viper.SetDefault("top_k", 3)
	viper.SetDefault("min_score", 0.25)

	// Chat: 12 requests / minute. Contact: 3 messages / 10 minutes.
	viper.SetDefault("chat_rate_limit", 12)
	viper.SetDefault("chat_rate_window", "60s")
	viper.SetDefault("contact_rate_limit", 3)
	viper.SetDefault("contact_rate_window", "10m")

	viper.SetDefault("mail_from", "Portfolio Contact <onboarding@resend.dev>")
	viper.SetDefault("mail_to", "walson.a.rene@gmail.com")
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment, never from the config file
// checked into a dotfile directory.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_key", "OPENROUTER_API_KEY")
	mustBind("resend_api_key", "RESEND_API_KEY")
	mustBind("chat_model", "OPENROUTER_MODEL")
	mustBind("embed_model", "EMBEDDING_MODEL")
	mustBind("addr", "ATLAS_ADDR")
	mustBind("data_dir", "ATLAS_DATA_DIR")
	mustBind("cors_origins", "ATLAS_CORS_ORIGINS")
	mustBind("trust_proxy", "ATLAS_TRUST_PROXY")
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// The provider API key is deliberately NOT required here: the server can
// start without it and the chat handler degrades to a generic error. The
// knowledge builder does require it; see ValidateBuild.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ChatModel == "" {
		return fmt.Errorf("%w: chat_model cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedModel == "" {
		return fmt.Errorf("%w: embed_model cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: must be between 1 and 32,768, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.TopK < 1 || c.TopK > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidTopK, c.TopK)
	}

	// Cosine similarity lives in [-1, 1].
	if c.MinScore < -1.0 || c.MinScore > 1.0 {
		return fmt.Errorf("%w: must be between -1.0 and 1.0, got %.2f", ErrInvalidMinScore, c.MinScore)
	}

	if c.ChatRateLimit < 1 || c.ContactRateLimit < 1 {
		return fmt.Errorf("%w: limits must be positive, got chat=%d contact=%d",
			ErrInvalidRateLimit, c.ChatRateLimit, c.ContactRateLimit)
	}
	if c.ChatRateWindow <= 0 || c.ContactRateWindow <= 0 {
		return fmt.Errorf("%w: windows must be positive, got chat=%s contact=%s",
			ErrInvalidRateLimit, c.ChatRateWindow, c.ContactRateWindow)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1, got %d", ErrInvalidRetry, c.MaxAttempts)
	}
	if c.EmbedBackoff < 0 || c.CompleteBackoff < 0 {
		return fmt.Errorf("%w: backoff steps cannot be negative", ErrInvalidRetry)
	}

	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir cannot be empty", ErrInvalidDataDir)
	}

	return nil
}

// ValidateBuild validates the additional requirements of the knowledge
// builder, which cannot degrade gracefully without a provider key.
func (c *Config) ValidateBuild() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: OPENROUTER_API_KEY environment variable is required to build the knowledge base",
			ErrMissingAPIKey)
	}
	return nil
}
