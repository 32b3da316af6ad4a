package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSource struct {
	mu       sync.Mutex
	emails   map[string]*Email
	history  []string
	listErr  error
	getFails map[string]int // message id -> remaining failures
	listFrom []uint64
}

func newFakeSource(emails ...*Email) *fakeSource {
	s := &fakeSource{
		emails:   make(map[string]*Email),
		getFails: make(map[string]int),
	}
	for _, e := range emails {
		s.emails[e.ID] = e
		s.history = append(s.history, e.ID)
	}
	return s
}

func (s *fakeSource) GetMessage(_ context.Context, _ string, messageID string) (*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.getFails[messageID]; n > 0 {
		s.getFails[messageID] = n - 1
		return nil, errors.New("transient fetch failure")
	}
	email, ok := s.emails[messageID]
	if !ok {
		return nil, errors.New("message not found")
	}
	return email, nil
}

func (s *fakeSource) ListHistory(_ context.Context, _ string, sinceHistoryID uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listFrom = append(s.listFrom, sinceHistoryID)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]string(nil), s.history...), nil
}

func (s *fakeSource) Watch(_ context.Context, _ string) (*WatchRegistration, error) {
	return &WatchRegistration{HistoryID: 500, Expiration: time.Now().Add(time.Hour)}, nil
}

type fakeWatchRepo struct {
	mu     sync.Mutex
	states map[string]*WatchState
}

func newFakeWatchRepo() *fakeWatchRepo {
	return &fakeWatchRepo{states: make(map[string]*WatchState)}
}

func (r *fakeWatchRepo) Get(_ context.Context, user string) (*WatchState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[user]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (r *fakeWatchRepo) Set(_ context.Context, state *WatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *state
	r.states[state.User] = &copied
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	published []*StoredRecord
}

func (n *fakeNotifier) Publish(_ string, rec *StoredRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, rec)
}

func fixedLLM(cat Category) *stubLLM {
	return &stubLLM{responses: []func() (*Classification, error){okResponse(cat)}}
}

func newTestProcessor(source MailSource, store ResultStore, watch WatchStateRepository, notifier Notifier) *Processor {
	svc := newService(&stubEmbedder{vector: []float32{1}}, &stubSearcher{}, fixedLLM(CategoryScam), nil)
	return NewProcessor(source, svc, store, watch, notifier, zap.NewNop(), ProcessorConfig{
		MaxAttempts:  2,
		RetryBackoff: time.Millisecond,
		StageTimeout: time.Second,
	})
}

func TestProcessNotificationAnchorsCursorOnFirstContact(t *testing.T) {
	source := newFakeSource(&Email{ID: "m1"})
	watch := newFakeWatchRepo()
	store := newMemResultStore()

	p := newTestProcessor(source, store, watch, nil)
	if err := p.ProcessNotification(context.Background(), "alice", 100); err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}

	state, _ := watch.Get(context.Background(), "alice")
	if state == nil || state.HistoryID != 100 {
		t.Errorf("state = %+v, want anchored at 100", state)
	}
	if len(source.listFrom) != 0 {
		t.Error("first notification should not list history")
	}
	if len(store.records["alice"]) != 0 {
		t.Error("first notification should not process messages")
	}
}

func TestProcessNotificationProcessesBatchAndAdvancesCursor(t *testing.T) {
	source := newFakeSource(
		&Email{ID: "m1", From: "a@x.example", Subject: "one"},
		&Email{ID: "m2", From: "b@y.example", Subject: "two"},
	)
	watch := newFakeWatchRepo()
	watch.Set(context.Background(), &WatchState{User: "alice", HistoryID: 50})
	store := newMemResultStore()
	notifier := &fakeNotifier{}

	p := newTestProcessor(source, store, watch, notifier)
	if err := p.ProcessNotification(context.Background(), "alice", 120); err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}

	if len(source.listFrom) != 1 || source.listFrom[0] != 50 {
		t.Errorf("listed from %v, want [50]", source.listFrom)
	}
	if got := len(store.records["alice"]); got != 2 {
		t.Errorf("stored %d records, want 2", got)
	}
	if len(notifier.published) != 2 {
		t.Errorf("published %d records, want 2", len(notifier.published))
	}

	state, _ := watch.Get(context.Background(), "alice")
	if state.HistoryID != 120 {
		t.Errorf("cursor = %d, want advanced to 120", state.HistoryID)
	}
}

func TestProcessNotificationRetriesTransientFailure(t *testing.T) {
	source := newFakeSource(&Email{ID: "m1", From: "a@x.example"})
	source.getFails["m1"] = 1
	watch := newFakeWatchRepo()
	watch.Set(context.Background(), &WatchState{User: "alice", HistoryID: 50})
	store := newMemResultStore()

	p := newTestProcessor(source, store, watch, nil)
	if err := p.ProcessNotification(context.Background(), "alice", 60); err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}

	if got := len(store.records["alice"]); got != 1 {
		t.Errorf("stored %d records, want 1 after retry", got)
	}
	if got := len(store.failures["alice"]); got != 0 {
		t.Errorf("recorded %d failures, want 0", got)
	}
}

func TestProcessNotificationRecordsFailureAndStillAdvances(t *testing.T) {
	source := newFakeSource(
		&Email{ID: "m1", From: "a@x.example"},
		&Email{ID: "m2", From: "b@y.example"},
	)
	source.getFails["m1"] = 10 // exceeds the retry budget
	watch := newFakeWatchRepo()
	watch.Set(context.Background(), &WatchState{User: "alice", HistoryID: 50})
	store := newMemResultStore()

	p := newTestProcessor(source, store, watch, nil)
	if err := p.ProcessNotification(context.Background(), "alice", 60); err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}

	if got := len(store.records["alice"]); got != 1 {
		t.Errorf("stored %d records, want the healthy message only", got)
	}
	failures := store.failures["alice"]
	if len(failures) != 1 || failures[0].MessageID != "m1" {
		t.Errorf("failures = %+v", failures)
	}
	if failures[0].Stage != "pipeline" {
		t.Errorf("failure stage = %q", failures[0].Stage)
	}

	state, _ := watch.Get(context.Background(), "alice")
	if state.HistoryID != 60 {
		t.Errorf("cursor = %d, a dropped message must not wedge the cursor", state.HistoryID)
	}
}

func TestProcessNotificationNoCredentials(t *testing.T) {
	source := newFakeSource(&Email{ID: "m1"})
	source.listErr = ErrNoCredentials
	watch := newFakeWatchRepo()
	watch.Set(context.Background(), &WatchState{User: "alice", HistoryID: 50})
	store := newMemResultStore()

	p := newTestProcessor(source, store, watch, nil)
	if err := p.ProcessNotification(context.Background(), "alice", 60); err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}

	if got := len(store.failures["alice"]); got != 1 {
		t.Fatalf("recorded %d failures, want 1", got)
	}
	if store.failures["alice"][0].Stage != "credentials" {
		t.Errorf("stage = %q", store.failures["alice"][0].Stage)
	}

	// The cursor stays put so the mailbox is re-examined once credentials
	// show up.
	state, _ := watch.Get(context.Background(), "alice")
	if state.HistoryID != 50 {
		t.Errorf("cursor = %d, want unchanged 50", state.HistoryID)
	}
}

func TestIngestEmailStoresAndNotifies(t *testing.T) {
	store := newMemResultStore()
	notifier := &fakeNotifier{}
	p := newTestProcessor(newFakeSource(), store, newFakeWatchRepo(), notifier)

	email := &Email{ID: "m1", From: "a@x.example", Subject: "hello", ThreadID: "t1"}
	if err := p.IngestEmail(context.Background(), "alice", email); err != nil {
		t.Fatalf("IngestEmail: %v", err)
	}

	recs := store.records["alice"]
	if len(recs) != 1 {
		t.Fatalf("stored %d records, want 1", len(recs))
	}
	if recs[0].ID != "m1" || recs[0].ThreadID != "t1" || recs[0].Classification == nil {
		t.Errorf("record = %+v", recs[0])
	}
	if recs[0].ProcessedAt.IsZero() {
		t.Error("processedAt not set")
	}
	if len(notifier.published) != 1 {
		t.Errorf("published %d, want 1", len(notifier.published))
	}
}

func TestRegisterWatchAnchorsCursor(t *testing.T) {
	watch := newFakeWatchRepo()
	p := newTestProcessor(newFakeSource(), newMemResultStore(), watch, nil)

	reg, err := p.RegisterWatch(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RegisterWatch: %v", err)
	}
	if reg.HistoryID != 500 {
		t.Errorf("registration = %+v", reg)
	}

	state, _ := watch.Get(context.Background(), "alice")
	if state == nil || state.HistoryID != 500 {
		t.Errorf("state = %+v, want cursor at 500", state)
	}
}

// memResultStore is a map-backed ResultStore for pipeline tests.
type memResultStore struct {
	mu       sync.Mutex
	records  map[string][]StoredRecord
	failures map[string][]FailureRecord
}

func newMemResultStore() *memResultStore {
	return &memResultStore{
		records:  make(map[string][]StoredRecord),
		failures: make(map[string][]FailureRecord),
	}
}

func (s *memResultStore) Save(_ context.Context, user string, rec *StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[user] = append(s.records[user], *rec)
	return nil
}

func (s *memResultStore) List(_ context.Context, user string) ([]StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[user], nil
}

func (s *memResultStore) SaveFailure(_ context.Context, user string, f *FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[user] = append(s.failures[user], *f)
	return nil
}

func (s *memResultStore) ListFailures(_ context.Context, user string) ([]FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[user], nil
}
