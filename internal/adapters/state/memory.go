package state

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/rescam/phishguard/internal/core"
)

// MemoryWatchRepository is an in-memory implementation of the
// WatchStateRepository interface. History cursors do not survive a restart,
// so the first notification after startup re-anchors each user.
type MemoryWatchRepository struct {
	states map[string]core.WatchState
	mu     sync.RWMutex
}

// NewMemoryWatchRepository creates a new in-memory watch state repository
func NewMemoryWatchRepository() *MemoryWatchRepository {
	return &MemoryWatchRepository{
		states: make(map[string]core.WatchState),
	}
}

// Get retrieves the watch state for a user, returning (nil, nil) when none exists
func (r *MemoryWatchRepository) Get(_ context.Context, user string) (*core.WatchState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[user]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Set stores the watch state for a user
func (r *MemoryWatchRepository) Set(_ context.Context, state *core.WatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.User] = *state
	return nil
}

// MemoryTokenRepository is an in-memory implementation of the
// TokenRepository interface
type MemoryTokenRepository struct {
	tokens map[string]*oauth2.Token
	mu     sync.RWMutex
}

// NewMemoryTokenRepository creates a new in-memory token repository
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		tokens: make(map[string]*oauth2.Token),
	}
}

// Get retrieves the OAuth token for a user
func (r *MemoryTokenRepository) Get(_ context.Context, user string) (*oauth2.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[user]
	if !ok {
		return nil, core.ErrNoCredentials
	}
	return token, nil
}

// Save stores the OAuth token for a user
func (r *MemoryTokenRepository) Save(_ context.Context, user string, token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[user] = token
	return nil
}
