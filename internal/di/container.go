package di

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/adapters/embed"
	"github.com/rescam/phishguard/internal/adapters/gmail"
	"github.com/rescam/phishguard/internal/adapters/httpapi"
	"github.com/rescam/phishguard/internal/adapters/vector"
	"github.com/rescam/phishguard/internal/config"
	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/factory"
	"github.com/rescam/phishguard/internal/logging"
	"github.com/rescam/phishguard/internal/realtime"
	"github.com/rescam/phishguard/internal/utils"
	"github.com/rescam/phishguard/internal/whitelist"
)

// repositories bundles the two per-user state repositories created together
// by the state factory.
type repositories struct {
	dig.Out

	Watch  core.WatchStateRepository
	Tokens core.TokenRepository
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStateFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register embedding client
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.Embedder {
		embedCfg := cfg.GetEmbedding()
		return embed.NewClient(embedCfg.BaseURL, embedCfg.Model, embedCfg.Dimensions, logger)
	}); err != nil {
		return nil, err
	}

	// Register vector index
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*vector.Index, error) {
		vectorCfg := cfg.GetVector()
		return vector.New(vectorCfg.Address, vectorCfg.Collection, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(idx *vector.Index) core.NeighborSearcher {
		return idx
	}); err != nil {
		return nil, err
	}

	// Register whitelist checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		domains := cfg.GetStringSlice("spam.whitelisted_domains")
		if len(domains) > 0 {
			logger.Info("Loaded whitelisted domains", zap.Strings("domains", domains))
		}
		return whitelist.NewChecker(domains, logger)
	}); err != nil {
		return nil, err
	}

	// Register state repositories
	if err := container.Provide(func(f *factory.StateFactory) (repositories, error) {
		watch, tokens, err := f.CreateRepositories()
		if err != nil {
			return repositories{}, err
		}
		return repositories{Watch: watch, Tokens: tokens}, nil
	}); err != nil {
		return nil, err
	}

	// Register result store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ResultStore, error) {
		return f.CreateResultStore()
	}); err != nil {
		return nil, err
	}

	// Register realtime hub
	if err := container.Provide(realtime.NewHub); err != nil {
		return nil, err
	}
	if err := container.Provide(func(hub *realtime.Hub) core.Notifier {
		return hub
	}); err != nil {
		return nil, err
	}

	// Register Gmail source
	if err := container.Provide(func(cfg *config.Config, tokens core.TokenRepository, logger *zap.Logger) core.MailSource {
		gmailCfg := cfg.GetGmail()
		return gmail.NewSource(
			tokens,
			gmailCfg.ClientID,
			gmailCfg.ClientSecret,
			gmailCfg.PubSubTopic,
			gmailCfg.HistoryPageSize,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register classifier service
	if err := container.Provide(func(
		cfg *config.Config,
		embedder core.Embedder,
		searcher core.NeighborSearcher,
		llm core.LLMClient,
		wl *whitelist.Checker,
		logger *zap.Logger,
	) *core.ClassifierService {
		return core.NewClassifierService(
			embedder,
			searcher,
			llm,
			wl,
			logger,
			cfg.GetVector().TopK,
			cfg.GetLLM().FallbackReason,
		)
	}); err != nil {
		return nil, err
	}

	// Register pipeline processor
	if err := container.Provide(func(
		cfg *config.Config,
		source core.MailSource,
		classifier *core.ClassifierService,
		store core.ResultStore,
		watch core.WatchStateRepository,
		notifier core.Notifier,
		logger *zap.Logger,
	) *core.Processor {
		pipelineCfg := cfg.GetPipeline()
		return core.NewProcessor(source, classifier, store, watch, notifier, logger, core.ProcessorConfig{
			MaxAttempts:  pipelineCfg.MaxAttempts,
			RetryBackoff: pipelineCfg.RetryBackoff,
			StageTimeout: pipelineCfg.StageTimeout,
		})
	}); err != nil {
		return nil, err
	}

	// Register dispatcher
	if err := container.Provide(func(cfg *config.Config, processor *core.Processor, logger *zap.Logger) *core.Dispatcher {
		pipelineCfg := cfg.GetPipeline()
		return core.NewDispatcher(
			pipelineCfg.MaxWorkers,
			pipelineCfg.QueueSize,
			func(ctx context.Context, job core.Job) {
				if err := processor.ProcessNotification(ctx, job.User, job.HistoryID); err != nil {
					logger.Error("Failed to process notification",
						zap.String("user", job.User),
						zap.Uint64("history_id", job.HistoryID),
						zap.Error(err))
				}
			},
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register webhook deduplicator
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) httpapi.Deduplicator {
		stateCfg := cfg.GetState()
		if stateCfg.Backend == "redis" {
			client := redis.NewClient(&redis.Options{Addr: stateCfg.RedisAddr})
			return httpapi.NewRedisDeduplicator(client, 10*time.Minute)
		}
		return httpapi.NewMemoryDeduplicator(10 * time.Minute)
	}); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(func(
		cfg *config.Config,
		processor *core.Processor,
		store core.ResultStore,
		hub *realtime.Hub,
		dedupe httpapi.Deduplicator,
		dispatcher *core.Dispatcher,
		logger *zap.Logger,
	) *httpapi.Server {
		return httpapi.NewServer(
			cfg.GetString("server.listen_address"),
			processor,
			store,
			hub,
			dedupe,
			dispatcher.Enqueue,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
