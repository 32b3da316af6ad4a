package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/whitelist"
)

// ClassifierService runs the classification sequence for a single email:
// embed, retrieve neighbors, assemble context, ask the model.
type ClassifierService struct {
	embedder  Embedder
	searcher  NeighborSearcher
	llm       LLMClient
	whitelist *whitelist.Checker
	logger    *zap.Logger
	topK      int
	fallback  string
}

// NewClassifierService creates a new classifier service.
func NewClassifierService(
	embedder Embedder,
	searcher NeighborSearcher,
	llm LLMClient,
	wl *whitelist.Checker,
	logger *zap.Logger,
	topK int,
	fallbackReason string,
) *ClassifierService {
	if topK <= 0 {
		topK = 5
	}
	return &ClassifierService{
		embedder:  embedder,
		searcher:  searcher,
		llm:       llm,
		whitelist: wl,
		logger:    logger,
		topK:      topK,
		fallback:  fallbackReason,
	}
}

// Classify runs the full sequence for one email. Embedding and retrieval
// errors propagate to the caller (the orchestrator decides whether to retry
// or skip); an unparsable model response is re-asked once and then degraded
// to the fallback record.
func (s *ClassifierService) Classify(ctx context.Context, email *Email) (*Classification, error) {
	if s.whitelist != nil && s.whitelist.IsWhitelisted(email.From) {
		s.logger.Info("skipping classification for whitelisted sender",
			zap.String("sender", email.From),
			zap.String("message_id", email.ID))
		return &Classification{
			Category:          CategoryBenign,
			Confidence:        1.0,
			PrimaryReason:     "Sender domain is whitelisted",
			Indicators:        []string{"known_contact_match"},
			RecommendedAction: ActionAllow,
			ModelUsed:         "whitelist",
			AnalyzedAt:        time.Now().UTC(),
		}, nil
	}

	vector, err := s.embedder.Embed(ctx, email.EmbeddingText())
	if err != nil {
		return nil, err
	}

	result, err := s.searcher.Search(ctx, vector, s.topK)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("retrieved neighbors",
		zap.String("message_id", email.ID),
		zap.Int("count", len(result.Neighbors)))

	ragContext := result.Context()

	classification, err := s.llm.ClassifyEmail(ctx, email, ragContext)
	if errors.Is(err, ErrUnparsableResponse) {
		s.logger.Warn("model response unparsable, re-asking once",
			zap.String("message_id", email.ID),
			zap.Error(err))
		classification, err = s.llm.ClassifyEmail(ctx, email, ragContext)
	}
	if errors.Is(err, ErrUnparsableResponse) {
		s.logger.Warn("model response unparsable after re-ask, using fallback record",
			zap.String("message_id", email.ID))
		return FallbackClassification(s.fallback, ""), nil
	}
	if err != nil {
		return nil, err
	}
	return classification, nil
}
