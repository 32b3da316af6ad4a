package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/adapters/httpapi"
	"github.com/rescam/phishguard/internal/adapters/smtpingest"
	"github.com/rescam/phishguard/internal/config"
	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	server *httpapi.Server,
	dispatcher *core.Dispatcher,
	processor *core.Processor,
	llmClient core.LLMClient,
) error {
	defer logger.Sync()

	// Start the optional SMTP demo listener
	var ingest *smtpingest.Ingest
	smtpCfg := cfg.GetSMTP()
	if smtpCfg.Enabled {
		ingest = smtpingest.NewIngest(processor, smtpCfg.ListenAddress, smtpCfg.DemoUser, logger)
		if err := ingest.Start(); err != nil {
			logger.Error("Failed to start SMTP listener", zap.Error(err))
			return err
		}
	}

	// Start the HTTP server
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Shutting down...")
	case err := <-serverErr:
		logger.Error("HTTP server stopped", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}
	if ingest != nil {
		if err := ingest.Stop(); err != nil {
			logger.Error("Failed to stop SMTP listener", zap.Error(err))
		}
	}

	// Let queued notifications finish before tearing down adapters.
	dispatcher.Stop()

	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
