package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/config"
	"github.com/rescam/phishguard/internal/utils"
)

// NewFromConfig builds a BedrockClient from the application configuration,
// loading the default AWS credential chain for the configured region.
func NewFromConfig(cfg config.BedrockConfig, logger *zap.Logger, textProcessor *utils.TextProcessor) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)

	return NewBedrockClient(
		client,
		cfg.ModelID,
		cfg.MaxTokens,
		cfg.Temperature,
		cfg.TopP,
		cfg.MaxBodySize,
		logger,
		textProcessor,
	), nil
}
