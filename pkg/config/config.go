// Package config loads bot settings from a JSON file merged over defaults,
// with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/bottylabs/botty/pkg/agent"
)

const defaultInstructions = "You are Botty McBotface, a bot powered by OpenAI's API. " +
	"You are a friendly, helpful bot that is always willing to chat and help out. " +
	"You are not perfect, but you are trying your best."

// ProviderOpenAI and ProviderAnthropic select the completion backend.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the full bot configuration. Settings come from settings.json,
// secrets come from the environment only.
type Config struct {
	Model             string   `json:"model" env:"BOTTY_MODEL"`
	Provider          string   `json:"provider" env:"BOTTY_PROVIDER"`
	Instructions      string   `json:"instructions" env:"BOTTY_INSTRUCTIONS"`
	ReasoningLevel    string   `json:"reasoning_level" env:"BOTTY_REASONING_LEVEL"`
	EnableWebSearch   bool     `json:"enable_web_search" env:"BOTTY_ENABLE_WEB_SEARCH"`
	MaximumTurns      int      `json:"maximum_turns" env:"BOTTY_MAXIMUM_TURNS"`
	HistoryCharBudget int      `json:"history_char_budget" env:"BOTTY_HISTORY_CHAR_BUDGET"`
	MaxOutputTokens   int      `json:"max_output_tokens" env:"BOTTY_MAX_OUTPUT_TOKENS"`
	ImageModel        string   `json:"image_model" env:"BOTTY_IMAGE_MODEL"`
	DatabasePath      string   `json:"database_path" env:"BOTTY_DATABASE_PATH"`
	LogLevel          string   `json:"log_level" env:"BOTTY_LOG_LEVEL"`

	AutoRespondChannels []string `json:"auto_respond_channels" env:"BOTTY_AUTO_RESPOND_CHANNELS"`
	DMWhitelist         []string `json:"dm_whitelist" env:"BOTTY_DM_WHITELIST"`

	DiscordToken      string `json:"-" env:"DISCORD_TOKEN"`
	OpenAIAPIKey      string `json:"-" env:"OPENAI_API_KEY"`
	OpenAIAPIBase     string `json:"-" env:"OPENAI_API_BASE"`
	AnthropicAPIKey   string `json:"-" env:"ANTHROPIC_API_KEY"`
	ReplicateAPIToken string `json:"-" env:"REPLICATE_API_TOKEN"`

	R2 R2Settings `json:"-"`
	S3 S3Settings `json:"-"`
}

// R2Settings are the Cloudflare R2 credentials, environment only.
type R2Settings struct {
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	AccountID       string `env:"R2_ACCOUNT_ID"`
	PublicURL       string `env:"R2_PUBLIC_URL"`
}

// S3Settings are the AWS S3 credentials, environment only.
type S3Settings struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `env:"S3_BUCKET_NAME"`
	Region          string `env:"AWS_REGION"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:             "gpt-5-mini",
		Provider:          ProviderOpenAI,
		Instructions:      defaultInstructions,
		ReasoningLevel:    string(agent.DefaultReasoningLevel),
		EnableWebSearch:   false,
		MaximumTurns:      10,
		HistoryCharBudget: 64 * 1024,
		ImageModel:        "seedream",
		DatabasePath:      "botty.db",
		LogLevel:          "info",
	}
}

// LoadConfig reads settings from path, merges them over the defaults, then
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate fails fast on configuration that would break at runtime.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}

	switch strings.ToLower(c.Provider) {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
	default:
		return fmt.Errorf("unknown provider %q, valid options: %s, %s", c.Provider, ProviderOpenAI, ProviderAnthropic)
	}

	if _, err := agent.ParseReasoningLevel(c.ReasoningLevel); err != nil {
		return fmt.Errorf("invalid reasoning_level: %w", err)
	}
	if c.MaximumTurns <= 0 {
		return fmt.Errorf("maximum_turns must be positive, got %d", c.MaximumTurns)
	}
	if c.HistoryCharBudget < 0 {
		return fmt.Errorf("history_char_budget must not be negative, got %d", c.HistoryCharBudget)
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}
