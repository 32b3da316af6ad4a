// Package gemini implements the classifier client using Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/utils"
)

// GeminiClient is an implementation of the core.LLMClient interface using
// Google Gemini.
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyEmail sends the email plus retrieved context to Gemini and parses
// the structured verdict.
func (c *GeminiClient) ClassifyEmail(ctx context.Context, email *core.Email, ragContext string) (*core.Classification, error) {
	body := c.textProcessor.ProcessText(email.Body, c.maxBodySize)
	prompt := core.BuildClassificationPrompt(email, body, ragContext)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty response from Gemini", core.ErrUnparsableResponse)
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	classification, err := core.ParseClassification(responseText)
	if err != nil {
		c.logger.Debug("unparsable Gemini response",
			zap.String("message_id", email.ID),
			zap.Int("response_size", len(responseText)))
		return nil, err
	}
	classification.ModelUsed = c.modelName
	classification.AnalyzedAt = time.Now().UTC()
	return classification, nil
}
