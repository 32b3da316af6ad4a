package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/rescam/phishguard/internal/core"
)

func TestMemoryWatchRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryWatchRepository()
	ctx := context.Background()

	got, err := repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil state for unknown user, got %+v", got)
	}

	state := &core.WatchState{
		User:      "alice",
		HistoryID: 42,
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Set(ctx, state); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err = repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.HistoryID != 42 {
		t.Errorf("got %+v, want historyID 42", got)
	}
}

func TestMemoryWatchRepositoryOverwrite(t *testing.T) {
	repo := NewMemoryWatchRepository()
	ctx := context.Background()

	for _, id := range []uint64{10, 20} {
		if err := repo.Set(ctx, &core.WatchState{User: "alice", HistoryID: id}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	got, err := repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.HistoryID != 20 {
		t.Errorf("historyID = %d, want latest cursor 20", got.HistoryID)
	}
}

func TestMemoryTokenRepository(t *testing.T) {
	repo := NewMemoryTokenRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "alice")
	if !errors.Is(err, core.ErrNoCredentials) {
		t.Fatalf("err = %v, want ErrNoCredentials", err)
	}

	token := &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}
	if err := repo.Save(ctx, "alice", token); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != "at" {
		t.Errorf("access token = %q", got.AccessToken)
	}
}
