package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/adapters/embed"
	"github.com/rescam/phishguard/internal/adapters/vector"
	"github.com/rescam/phishguard/internal/config"
	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/factory"
	"github.com/rescam/phishguard/internal/logging"
	"github.com/rescam/phishguard/internal/mailparse"
	"github.com/rescam/phishguard/internal/utils"
	"github.com/rescam/phishguard/internal/whitelist"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "gemini", "LLM provider (gemini, openai, bedrock)")
	maxTokens   = flag.Int("max-tokens", 2048, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 8192, "Maximum email body size to send to LLM")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-2.0-flash", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o-mini", "OpenAI model name")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Retrieval flags
	embedURL      = flag.String("embed-url", "http://localhost:11434", "Embedding service base URL")
	embedModel    = flag.String("embed-model", "all-minilm", "Embedding model name")
	embedDims     = flag.Int("embed-dims", 384, "Embedding dimensions")
	vectorAddr    = flag.String("vector-addr", "localhost:6334", "Qdrant gRPC address")
	vectorColl    = flag.String("vector-collection", "phishing-emails", "Qdrant collection name")
	topK          = flag.Int("top-k", 5, "Number of similar emails to retrieve")
	skipRetrieval = flag.Bool("no-retrieval", false, "Classify without similar-email context")

	// Input flags
	whitelistDomains = flag.String("whitelist", "", "Comma-separated list of whitelisted domains")
	inputFile        = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose          = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog          = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile       = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	textProcessor := utils.NewTextProcessor(logger)
	llmFactory := factory.NewLLMFactory(cfg, logger, textProcessor)
	llmClient, err := llmFactory.CreateLLMClient()
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	var embedder core.Embedder
	var searcher core.NeighborSearcher
	if *skipRetrieval {
		embedder = noopEmbedder{}
		searcher = noopSearcher{}
	} else {
		embedCfg := cfg.GetEmbedding()
		embedder = embed.NewClient(embedCfg.BaseURL, embedCfg.Model, embedCfg.Dimensions, logger)

		vectorCfg := cfg.GetVector()
		index, err := vector.New(vectorCfg.Address, vectorCfg.Collection, logger)
		if err != nil {
			logger.Fatal("Failed to connect to vector index", zap.Error(err))
		}
		defer index.Close()
		searcher = index
	}

	var whitelistedDomains []string
	if *whitelistDomains != "" {
		whitelistedDomains = strings.Split(*whitelistDomains, ",")
		for i, domain := range whitelistedDomains {
			whitelistedDomains[i] = strings.TrimSpace(domain)
		}
	} else {
		whitelistedDomains = cfg.GetStringSlice("spam.whitelisted_domains")
	}
	checker := whitelist.NewChecker(whitelistedDomains, logger)

	service := core.NewClassifierService(
		embedder,
		searcher,
		llmClient,
		checker,
		logger,
		cfg.GetVector().TopK,
		cfg.GetLLM().FallbackReason,
	)

	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
	} else {
		emailReader = os.Stdin
	}

	email, err := mailparse.ParseMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	startTime := time.Now()
	classification, err := service.Classify(context.Background(), email)
	if err != nil {
		logger.Fatal("Failed to classify email", zap.Error(err))
	}
	duration := time.Since(startTime)

	out, err := json.MarshalIndent(classification, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode classification", zap.Error(err))
	}
	fmt.Println(string(out))
	logger.Info("Classification complete",
		zap.String("category", string(classification.Category)),
		zap.Duration("took", duration))

	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
}

// noopEmbedder and noopSearcher bypass retrieval so the model classifies on
// the email alone.
type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, nil
}

type noopSearcher struct{}

func (noopSearcher) Search(context.Context, []float32, int) (*core.RetrievalResult, error) {
	return &core.RetrievalResult{}, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)

	switch *provider {
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	}

	v.Set("embedding.base_url", *embedURL)
	v.Set("embedding.model", *embedModel)
	v.Set("embedding.dimensions", *embedDims)
	v.Set("vector.address", *vectorAddr)
	v.Set("vector.collection", *vectorColl)
	v.Set("vector.top_k", *topK)

	if *whitelistDomains != "" {
		domains := strings.Split(*whitelistDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("spam.whitelisted_domains", domains)
	} else {
		v.Set("spam.whitelisted_domains", []string{})
	}

	return config.NewFromViper(v)
}
