package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ProcessorConfig carries the orchestrator's retry and timeout policy.
type ProcessorConfig struct {
	// MaxAttempts is the number of tries per message before it is dropped
	// and recorded as a failure.
	MaxAttempts int
	// RetryBackoff is the pause between attempts for the same message.
	RetryBackoff time.Duration
	// StageTimeout bounds each message's end-to-end processing.
	StageTimeout time.Duration
}

// Processor orchestrates the pipeline for a batch of newly-available
// messages: fetch, classify, persist, notify, advance the watch cursor.
type Processor struct {
	source     MailSource
	classifier *ClassifierService
	store      ResultStore
	watch      WatchStateRepository
	notifier   Notifier
	logger     *zap.Logger
	cfg        ProcessorConfig
}

// NewProcessor creates a pipeline processor.
func NewProcessor(
	source MailSource,
	classifier *ClassifierService,
	store ResultStore,
	watch WatchStateRepository,
	notifier Notifier,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 60 * time.Second
	}
	return &Processor{
		source:     source,
		classifier: classifier,
		store:      store,
		watch:      watch,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// ProcessNotification handles one push notification: list the messages added
// since the stored cursor, process each in source order, then advance the
// cursor to the notification's history id. A message that still fails after
// the retry budget is recorded and skipped; it is not retried on the next
// notification because the cursor has moved past it.
func (p *Processor) ProcessNotification(ctx context.Context, user string, historyID uint64) error {
	state, err := p.watch.Get(ctx, user)
	if err != nil {
		return err
	}
	if state == nil || state.HistoryID == 0 {
		// First notification for this user: anchor the cursor without
		// back-processing the mailbox.
		p.logger.Info("initializing watch cursor",
			zap.String("user", user),
			zap.Uint64("history_id", historyID))
		return p.watch.Set(ctx, &WatchState{User: user, HistoryID: historyID, UpdatedAt: time.Now().UTC()})
	}

	ids, err := p.source.ListHistory(ctx, user, state.HistoryID)
	if errors.Is(err, ErrNoCredentials) {
		p.logger.Warn("dropping notification, no credentials on file",
			zap.String("user", user),
			zap.Uint64("history_id", historyID))
		p.recordFailure(ctx, user, "", "credentials", err)
		return nil
	}
	if err != nil {
		return err
	}

	p.logger.Info("processing notification batch",
		zap.String("user", user),
		zap.Uint64("history_id", historyID),
		zap.Int("messages", len(ids)))

	for _, id := range ids {
		if err := p.processWithRetry(ctx, user, id); err != nil {
			p.logger.Error("message dropped after retries",
				zap.String("user", user),
				zap.String("message_id", id),
				zap.Error(err))
			p.recordFailure(ctx, user, id, "pipeline", err)
		}
	}

	// Advance to the notification's value, not the last successful message.
	return p.watch.Set(ctx, &WatchState{User: user, HistoryID: historyID, UpdatedAt: time.Now().UTC()})
}

func (p *Processor) processWithRetry(ctx context.Context, user, messageID string) error {
	var err error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.RetryBackoff):
			}
		}
		if err = p.processMessage(ctx, user, messageID); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		p.logger.Warn("message processing attempt failed",
			zap.String("user", user),
			zap.String("message_id", messageID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return err
}

func (p *Processor) processMessage(ctx context.Context, user, messageID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	email, err := p.source.GetMessage(ctx, user, messageID)
	if err != nil {
		return err
	}
	return p.IngestEmail(ctx, user, email)
}

// IngestEmail classifies an already-fetched email, persists the record and
// notifies live dashboard connections. Used by the notification path and by
// the local SMTP ingestion adapter.
func (p *Processor) IngestEmail(ctx context.Context, user string, email *Email) error {
	classification, err := p.classifier.Classify(ctx, email)
	if err != nil {
		return err
	}

	rec := &StoredRecord{
		ID:             email.ID,
		ThreadID:       email.ThreadID,
		Sender:         email.From,
		Subject:        email.Subject,
		Snippet:        email.Snippet,
		ReceivedAt:     email.ReceivedAt,
		ProcessedAt:    time.Now().UTC(),
		Classification: classification,
	}
	if err := p.store.Save(ctx, user, rec); err != nil {
		return err
	}
	if p.notifier != nil {
		p.notifier.Publish(user, rec)
	}

	p.logger.Info("classified email",
		zap.String("user", user),
		zap.String("message_id", email.ID),
		zap.String("category", string(classification.Category)),
		zap.Float64("confidence", classification.Confidence))
	return nil
}

// RegisterWatch registers an upstream mailbox watch for the user and anchors
// the cursor at the registration's history id.
func (p *Processor) RegisterWatch(ctx context.Context, user string) (*WatchRegistration, error) {
	reg, err := p.source.Watch(ctx, user)
	if err != nil {
		return nil, err
	}
	state := &WatchState{User: user, HistoryID: reg.HistoryID, UpdatedAt: time.Now().UTC()}
	if err := p.watch.Set(ctx, state); err != nil {
		return nil, err
	}
	return reg, nil
}

func (p *Processor) recordFailure(ctx context.Context, user, messageID, stage string, cause error) {
	f := &FailureRecord{
		MessageID:  messageID,
		Stage:      stage,
		Error:      cause.Error(),
		OccurredAt: time.Now().UTC(),
	}
	if err := p.store.SaveFailure(ctx, user, f); err != nil {
		p.logger.Error("failed to record failure",
			zap.String("user", user),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}
