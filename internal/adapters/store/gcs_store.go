package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
)

const (
	recordsObject   = "emails.json"
	failuresObject  = "failures.json"
	timestampObject = "latest-timestamp.txt"
)

// GCSStore persists classification results as per-user JSON objects in a
// Google Cloud Storage bucket. Layout:
//
//	<prefix>/<user>/emails.json
//	<prefix>/<user>/failures.json
//	<prefix>/<user>/latest-timestamp.txt
type GCSStore struct {
	client *gcstorage.Client
	bucket string
	prefix string
	logger *zap.Logger

	// mu serializes read-modify-write cycles on the JSON objects. GCS has
	// no append, so concurrent writers for the same user would lose
	// records without it.
	mu sync.Mutex
}

func NewGCSStore(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCSStore, error) {
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Save(ctx context.Context, user string, rec *core.StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var env recordEnvelope
	if err := s.readJSON(ctx, objectPath(s.prefix, user, recordsObject), &env); err != nil {
		return err
	}
	env.Emails = upsertRecord(env.Emails, rec)

	if err := s.writeJSON(ctx, objectPath(s.prefix, user, recordsObject), &env); err != nil {
		return err
	}
	if err := s.writeObject(ctx, objectPath(s.prefix, user, timestampObject), timestampPayload(time.Now())); err != nil {
		s.logger.Warn("Failed to update latest timestamp",
			zap.String("user", user),
			zap.Error(err))
	}

	s.logger.Debug("Saved classification record",
		zap.String("user", user),
		zap.String("message_id", rec.ID),
		zap.Int("total_records", len(env.Emails)))
	return nil
}

func (s *GCSStore) List(ctx context.Context, user string) ([]core.StoredRecord, error) {
	var env recordEnvelope
	if err := s.readJSON(ctx, objectPath(s.prefix, user, recordsObject), &env); err != nil {
		return nil, err
	}
	return env.Emails, nil
}

func (s *GCSStore) SaveFailure(ctx context.Context, user string, f *core.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var env failureEnvelope
	if err := s.readJSON(ctx, objectPath(s.prefix, user, failuresObject), &env); err != nil {
		return err
	}
	env.Failures = append([]core.FailureRecord{*f}, env.Failures...)
	return s.writeJSON(ctx, objectPath(s.prefix, user, failuresObject), &env)
}

func (s *GCSStore) ListFailures(ctx context.Context, user string) ([]core.FailureRecord, error) {
	var env failureEnvelope
	if err := s.readJSON(ctx, objectPath(s.prefix, user, failuresObject), &env); err != nil {
		return nil, err
	}
	return env.Failures, nil
}

// readJSON decodes the object into v. A missing object is not an error: v is
// left at its zero value so first writes start an empty file.
func (s *GCSStore) readJSON(ctx context.Context, path string, v any) error {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open object %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode object %s: %w", path, err)
	}
	return nil
}

func (s *GCSStore) writeJSON(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode object %s: %w", path, err)
	}
	return s.writeObject(ctx, path, data)
}

func (s *GCSStore) writeObject(ctx context.Context, path string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", path, err)
	}
	return nil
}
