// Package config provides configuration management for llmproc.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported completion providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Defaults shared with the CLI flag definitions.
const (
	DefaultConcurrency = 5
	DefaultMaxRetries  = 3
	DefaultTimeout     = 2 * time.Minute
)

var (
	// ErrMissingPrompt is returned when neither prompt text nor a prompt file is given.
	ErrMissingPrompt = errors.New("either --prompt or --prompt-file must be provided")

	// ErrInvalid marks a configuration value that cannot be used.
	ErrInvalid = errors.New("invalid configuration")
)

// Config holds all configuration for an llmproc invocation.
type Config struct {
	// Provider selects the completion backend: "openai" (default) or "anthropic".
	Provider string

	// APIKey, BaseURL and Model are resolved for the selected provider.
	APIKey  string
	BaseURL string
	Model   string

	// Timeout bounds a single completion request.
	Timeout time.Duration

	// Concurrency is the default number of in-flight requests in batch mode.
	Concurrency int

	// MaxRetries is the default number of retries per file in batch mode.
	MaxRetries int

	// DataDir holds config.env and the history database.
	DataDir string

	// DatabasePath is the full path to the SQLite history database.
	DatabasePath string

	// HistoryEnabled controls whether runs are recorded in the database.
	HistoryEnabled bool

	// Slack notification (optional).
	SlackBotToken string
	SlackChannel  string

	// Telegram notification (optional).
	TelegramBotToken string
	TelegramChatID   int64
}

// Load creates a Config from config files and environment variables.
// Values are resolved in order: environment variable > ./.env >
// <data dir>/config.env > default. CLI flags are applied by the caller.
func Load() (*Config, error) {
	// Files only set variables that are not already in the environment,
	// so the first file loaded wins over later ones.
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	dataDir := envOr("LLMPROC_DATA_DIR", defaultDataDir())
	if err := loadEnvFile(filepath.Join(dataDir, "config.env")); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Provider:         strings.ToLower(envOr("LLMPROC_PROVIDER", ProviderOpenAI)),
		Timeout:          envOrDuration("LLMPROC_TIMEOUT", DefaultTimeout),
		Concurrency:      envOrInt("MAX_CONCURRENT_REQUESTS", DefaultConcurrency),
		MaxRetries:       envOrInt("MAX_RETRIES", DefaultMaxRetries),
		DataDir:          dataDir,
		DatabasePath:     filepath.Join(dataDir, "llmproc.db"),
		HistoryEnabled:   envOrBool("LLMPROC_HISTORY", true),
		SlackBotToken:    os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannel:     os.Getenv("SLACK_CHANNEL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   envOrInt64("TELEGRAM_CHAT_ID", 0),
	}

	cfg.resolveProvider()

	return cfg, nil
}

// SetProvider switches provider and re-reads its key, base URL and model
// from the environment.
func (c *Config) SetProvider(provider string) {
	c.Provider = strings.ToLower(provider)
	c.resolveProvider()
}

func (c *Config) resolveProvider() {
	switch c.Provider {
	case ProviderAnthropic:
		c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		c.BaseURL = os.Getenv("ANTHROPIC_BASE_URL")
		c.Model = os.Getenv("ANTHROPIC_MODEL")
	default:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
		c.BaseURL = os.Getenv("OPENAI_BASE_URL")
		c.Model = os.Getenv("OPENAI_MODEL")
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown provider %q (want openai or anthropic)", ErrInvalid, c.Provider)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalid, c.Concurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: retries must not be negative, got %d", ErrInvalid, c.MaxRetries)
	}
	// Self-hosted compatible endpoints often run without a key.
	if c.APIKey == "" && c.BaseURL == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, c.APIKeyEnv())
	}
	return nil
}

// APIKeyEnv names the environment variable holding the selected provider's key.
func (c *Config) APIKeyEnv() string {
	if c.Provider == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// SlackEnabled returns true if Slack notifications are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// TelegramEnabled returns true if Telegram notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// ResolvePrompt returns the system prompt. A prompt file takes precedence
// over inline text.
func ResolvePrompt(text, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", fmt.Errorf("prompt file %s is empty: %w", file, ErrMissingPrompt)
		}
		return string(data), nil
	}
	if text == "" {
		return "", ErrMissingPrompt
	}
	return text, nil
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "on", "yes":
		return true
	case "0", "false", "off", "no":
		return false
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".llmproc"
	}
	return filepath.Join(home, ".llmproc")
}
