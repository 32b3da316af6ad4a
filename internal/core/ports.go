package core

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// ErrNoCredentials is returned by MailSource and TokenRepository when no
// OAuth token is on file for the user. Notifications for such users are
// dropped (logged and recorded, never retried).
var ErrNoCredentials = errors.New("no credentials on file for user")

// ErrUnparsableResponse is returned by an LLMClient when the model's text
// response could not be parsed into a valid Classification.
var ErrUnparsableResponse = errors.New("model response is not a valid classification")

// Embedder converts email text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NeighborSearcher queries the managed vector index for the most similar
// previously-indexed emails.
type NeighborSearcher interface {
	Search(ctx context.Context, vector []float32, topK int) (*RetrievalResult, error)
}

// LLMClient classifies an email given the retrieved supporting context.
type LLMClient interface {
	ClassifyEmail(ctx context.Context, email *Email, ragContext string) (*Classification, error)
}

// MailSource fetches message content and history from the upstream mailbox.
type MailSource interface {
	// GetMessage fetches a single message and parses it into an Email.
	GetMessage(ctx context.Context, user, messageID string) (*Email, error)

	// ListHistory returns the ids of messages added since the given cursor,
	// in source order.
	ListHistory(ctx context.Context, user string, sinceHistoryID uint64) ([]string, error)

	// Watch registers a push-notification watch for the user's mailbox.
	Watch(ctx context.Context, user string) (*WatchRegistration, error)
}

// ResultStore persists classification records per user. Save overwrites an
// existing record with the same message id rather than duplicating it.
type ResultStore interface {
	Save(ctx context.Context, user string, rec *StoredRecord) error
	List(ctx context.Context, user string) ([]StoredRecord, error)
	SaveFailure(ctx context.Context, user string, f *FailureRecord) error
	ListFailures(ctx context.Context, user string) ([]FailureRecord, error)
}

// WatchStateRepository stores the per-user history cursor.
type WatchStateRepository interface {
	// Get returns the stored state, or (nil, nil) when none exists yet.
	Get(ctx context.Context, user string) (*WatchState, error)
	Set(ctx context.Context, state *WatchState) error
}

// TokenRepository stores per-user OAuth tokens.
type TokenRepository interface {
	// Get returns ErrNoCredentials when no token is on file.
	Get(ctx context.Context, user string) (*oauth2.Token, error)
	Save(ctx context.Context, user string, token *oauth2.Token) error
}

// Notifier pushes a freshly stored record to any live dashboard connections
// for the user. Delivery is best effort.
type Notifier interface {
	Publish(user string, rec *StoredRecord)
}
