package config

import "time"

// LLMConfig selects and tunes the generative model provider.
type LLMConfig struct {
	Provider       string
	FallbackReason string
}

// GeminiConfig configures the Google Gemini provider.
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig configures the Amazon Bedrock provider.
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// EmbeddingConfig configures the embedding service client.
type EmbeddingConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
}

// VectorConfig configures the vector index client.
type VectorConfig struct {
	Address    string
	Collection string
	TopK       int
}

// GmailConfig configures the Gmail mail source.
type GmailConfig struct {
	ClientID        string
	ClientSecret    string
	PubSubTopic     string
	HistoryPageSize int
}

// StorageConfig configures the result store.
type StorageConfig struct {
	Backend string
	Bucket  string
	Prefix  string
	FSRoot  string
}

// StateConfig configures the watch-state and token repositories.
type StateConfig struct {
	Backend    string
	SQLitePath string
	MySQLDSN   string
	RedisAddr  string
}

// PipelineConfig carries the orchestrator and dispatcher policy.
type PipelineConfig struct {
	MaxWorkers   int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
	StageTimeout time.Duration
}

// SMTPConfig configures the optional local SMTP ingestion listener.
type SMTPConfig struct {
	Enabled       bool
	ListenAddress string
	DemoUser      string
}

// GetLLM returns the LLM provider selection.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:       c.GetString("llm.provider"),
		FallbackReason: c.GetString("llm.fallback_reason"),
	}
}

// GetGemini returns the Gemini configuration.
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration.
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration.
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetEmbedding returns the embedding service configuration.
func (c *Config) GetEmbedding() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:    c.GetString("embedding.base_url"),
		Model:      c.GetString("embedding.model"),
		Dimensions: c.GetInt("embedding.dimensions"),
	}
}

// GetVector returns the vector index configuration.
func (c *Config) GetVector() VectorConfig {
	return VectorConfig{
		Address:    c.GetString("vector.address"),
		Collection: c.GetString("vector.collection"),
		TopK:       c.GetInt("vector.top_k"),
	}
}

// GetGmail returns the Gmail source configuration.
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		ClientID:        c.GetString("gmail.client_id"),
		ClientSecret:    c.GetString("gmail.client_secret"),
		PubSubTopic:     c.GetString("gmail.pubsub_topic"),
		HistoryPageSize: c.GetInt("gmail.history_page_size"),
	}
}

// GetStorage returns the result store configuration.
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Backend: c.GetString("storage.backend"),
		Bucket:  c.GetString("storage.bucket"),
		Prefix:  c.GetString("storage.prefix"),
		FSRoot:  c.GetString("storage.fs_root"),
	}
}

// GetState returns the state repository configuration.
func (c *Config) GetState() StateConfig {
	return StateConfig{
		Backend:    c.GetString("state.backend"),
		SQLitePath: c.GetString("state.sqlite_path"),
		MySQLDSN:   c.GetString("state.mysql_dsn"),
		RedisAddr:  c.GetString("state.redis_addr"),
	}
}

// GetPipeline returns the pipeline policy. Invalid durations fall back to
// the defaults.
func (c *Config) GetPipeline() PipelineConfig {
	backoff, err := c.GetDuration("pipeline.retry_backoff")
	if err != nil {
		backoff = 2 * time.Second
	}
	timeout, err := c.GetDuration("pipeline.stage_timeout")
	if err != nil {
		timeout = 60 * time.Second
	}
	return PipelineConfig{
		MaxWorkers:   c.GetInt("pipeline.max_workers"),
		QueueSize:    c.GetInt("pipeline.queue_size"),
		MaxAttempts:  c.GetInt("pipeline.max_attempts"),
		RetryBackoff: backoff,
		StageTimeout: timeout,
	}
}

// GetSMTP returns the SMTP ingestion configuration.
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:       c.GetBool("smtp.enabled"),
		ListenAddress: c.GetString("smtp.listen_address"),
		DemoUser:      c.GetString("smtp.demo_user"),
	}
}
