package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rescam/phishguard/internal/adapters/state"
	"github.com/rescam/phishguard/internal/config"
	"github.com/rescam/phishguard/internal/core"
)

// StateFactory creates watch-state and token repositories based on
// configuration. The sqlite backend serves both repositories from one file;
// the other backends pair with in-memory tokens, which suits single-node
// demo deployments where tokens are seeded at startup.
type StateFactory struct {
	cfg *config.Config
}

// NewStateFactory creates a new state factory
func NewStateFactory(cfg *config.Config) *StateFactory {
	return &StateFactory{cfg: cfg}
}

// CreateRepositories creates the watch-state and token repositories
func (f *StateFactory) CreateRepositories() (core.WatchStateRepository, core.TokenRepository, error) {
	stateCfg := f.cfg.GetState()

	switch stateCfg.Backend {
	case "memory":
		return state.NewMemoryWatchRepository(), state.NewMemoryTokenRepository(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(stateCfg.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		repo, err := state.NewSQLiteStateRepository(stateCfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.TokenView(), nil
	case "mysql":
		repo, err := state.NewMySQLWatchRepository(stateCfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, state.NewMemoryTokenRepository(), nil
	case "redis":
		repo, err := state.NewRedisWatchRepository(stateCfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return repo, state.NewMemoryTokenRepository(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported state backend: %s", stateCfg.Backend)
	}
}
