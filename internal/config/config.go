package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance, reading config.yaml from the
// usual locations with PHISHGUARD_* environment overrides.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phishguard/")
	v.AddConfigPath("$HOME/.phishguard")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("PHISHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a configuration instance from an existing Viper
// instance. Used by the CLI tools, which populate viper from flags.
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults applied.
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// HTTP server
	v.SetDefault("server.listen_address", "0.0.0.0:8080")

	// LLM provider selection
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.fallback_reason", "model response could not be parsed")

	// Gemini
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.max_tokens", 2048)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 8192)

	// OpenAI
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 8192)

	// Bedrock
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 2048)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 8192)

	// Embedding service
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "all-minilm")
	v.SetDefault("embedding.dimensions", 384)

	// Vector index
	v.SetDefault("vector.address", "localhost:6334")
	v.SetDefault("vector.collection", "phishing-emails")
	v.SetDefault("vector.top_k", 5)

	// Gmail
	v.SetDefault("gmail.client_id", "")
	v.SetDefault("gmail.client_secret", "")
	v.SetDefault("gmail.pubsub_topic", "")
	v.SetDefault("gmail.history_page_size", 100)

	// Result storage
	v.SetDefault("storage.backend", "gcs")
	v.SetDefault("storage.bucket", "rescam-dataset-bucket")
	v.SetDefault("storage.prefix", "email-classifications")
	v.SetDefault("storage.fs_root", "./data/classifications")

	// Watch state / tokens
	v.SetDefault("state.backend", "memory")
	v.SetDefault("state.sqlite_path", "/data/phishguard.db")
	v.SetDefault("state.mysql_dsn", "user:password@tcp(localhost:3306)/phishguard")
	v.SetDefault("state.redis_addr", "localhost:6379")

	// Pipeline policy
	v.SetDefault("pipeline.max_workers", 4)
	v.SetDefault("pipeline.queue_size", 16)
	v.SetDefault("pipeline.max_attempts", 2)
	v.SetDefault("pipeline.retry_backoff", "2s")
	v.SetDefault("pipeline.stage_timeout", "60s")

	// Local SMTP ingestion (demo mode)
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("smtp.demo_user", "demo@phishguard.local")

	// Whitelist
	v.SetDefault("spam.whitelisted_domains", []string{})

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration.
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration.
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration parses a duration value from the configuration.
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance.
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
