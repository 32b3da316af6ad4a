// Package openai implements the classifier client using OpenAI.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/utils"
)

// OpenAIClient is an implementation of the core.LLMClient interface using
// OpenAI chat completions.
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        openai.NewClient(apiKey),
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyEmail sends the email plus retrieved context to OpenAI and parses
// the structured verdict.
func (c *OpenAIClient) ClassifyEmail(ctx context.Context, email *core.Email, ragContext string) (*core.Classification, error) {
	body := c.textProcessor.ProcessText(email.Body, c.maxBodySize)
	prompt := core.BuildClassificationPrompt(email, body, ragContext)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email risk classifier. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from OpenAI", core.ErrUnparsableResponse)
	}

	responseText := resp.Choices[0].Message.Content

	classification, err := core.ParseClassification(responseText)
	if err != nil {
		c.logger.Debug("unparsable OpenAI response",
			zap.String("message_id", email.ID),
			zap.Int("response_size", len(responseText)))
		return nil, err
	}
	classification.ModelUsed = c.modelName
	classification.AnalyzedAt = time.Now().UTC()
	return classification, nil
}
