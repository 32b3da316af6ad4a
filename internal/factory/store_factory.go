package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/adapters/store"
	"github.com/rescam/phishguard/internal/config"
	"github.com/rescam/phishguard/internal/core"
)

// StoreFactory creates result stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateResultStore creates a result store based on the configured backend
func (f *StoreFactory) CreateResultStore() (core.ResultStore, error) {
	storageCfg := f.cfg.GetStorage()

	switch storageCfg.Backend {
	case "gcs":
		return store.NewGCSStore(context.Background(), storageCfg.Bucket, storageCfg.Prefix, f.logger)
	case "fs":
		return store.NewFSStore(storageCfg.FSRoot, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", storageCfg.Backend)
	}
}
