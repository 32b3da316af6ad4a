package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
)

// FSStore mirrors the bucket layout on the local filesystem. Intended for
// development and the demo SMTP pathway where no cloud credentials exist.
type FSStore struct {
	root   string
	logger *zap.Logger

	mu sync.Mutex
}

func NewFSStore(root string, logger *zap.Logger) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FSStore{root: root, logger: logger}, nil
}

func (s *FSStore) Save(_ context.Context, user string, rec *core.StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var env recordEnvelope
	if err := s.readJSON(user, recordsObject, &env); err != nil {
		return err
	}
	env.Emails = upsertRecord(env.Emails, rec)

	if err := s.writeJSON(user, recordsObject, &env); err != nil {
		return err
	}
	if err := s.writeFile(user, timestampObject, timestampPayload(time.Now())); err != nil {
		s.logger.Warn("Failed to update latest timestamp",
			zap.String("user", user),
			zap.Error(err))
	}
	return nil
}

func (s *FSStore) List(_ context.Context, user string) ([]core.StoredRecord, error) {
	var env recordEnvelope
	if err := s.readJSON(user, recordsObject, &env); err != nil {
		return nil, err
	}
	return env.Emails, nil
}

func (s *FSStore) SaveFailure(_ context.Context, user string, f *core.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var env failureEnvelope
	if err := s.readJSON(user, failuresObject, &env); err != nil {
		return err
	}
	env.Failures = append([]core.FailureRecord{*f}, env.Failures...)
	return s.writeJSON(user, failuresObject, &env)
}

func (s *FSStore) ListFailures(_ context.Context, user string) ([]core.FailureRecord, error) {
	var env failureEnvelope
	if err := s.readJSON(user, failuresObject, &env); err != nil {
		return nil, err
	}
	return env.Failures, nil
}

func (s *FSStore) readJSON(user, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, user, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

func (s *FSStore) writeJSON(user, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.writeFile(user, name, data)
}

func (s *FSStore) writeFile(user, name string, data []byte) error {
	dir := filepath.Join(s.root, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}
	tmp := filepath.Join(dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return os.Rename(tmp, filepath.Join(dir, name))
}
