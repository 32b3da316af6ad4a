package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/oauth2"

	"github.com/rescam/phishguard/internal/core"
)

// SQLiteStateRepository persists watch cursors and OAuth tokens in a local
// SQLite database. It implements both WatchStateRepository and
// TokenRepository so a single file carries all durable per-user state.
type SQLiteStateRepository struct {
	db *sql.DB
}

// NewSQLiteStateRepository opens (or creates) the database at dbPath
func NewSQLiteStateRepository(dbPath string) (*SQLiteStateRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS watch_state (
			user TEXT PRIMARY KEY,
			history_id INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create watch_state table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS oauth_tokens (
			user TEXT PRIMARY KEY,
			token_json TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create oauth_tokens table: %w", err)
	}

	return &SQLiteStateRepository{db: db}, nil
}

// Get retrieves the watch state for a user, returning (nil, nil) when none exists
func (r *SQLiteStateRepository) Get(ctx context.Context, user string) (*core.WatchState, error) {
	var historyID uint64
	var updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT history_id, updated_at FROM watch_state WHERE user = ?
	`, user).Scan(&historyID, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch state: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &core.WatchState{
		User:      user,
		HistoryID: historyID,
		UpdatedAt: ts,
	}, nil
}

// Set stores the watch state for a user
func (r *SQLiteStateRepository) Set(ctx context.Context, state *core.WatchState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO watch_state (user, history_id, updated_at)
		VALUES (?, ?, ?)
	`, state.User, state.HistoryID, state.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store watch state: %w", err)
	}
	return nil
}

// GetToken retrieves the OAuth token for a user
func (r *SQLiteStateRepository) GetToken(ctx context.Context, user string) (*oauth2.Token, error) {
	var raw string

	err := r.db.QueryRowContext(ctx, `
		SELECT token_json FROM oauth_tokens WHERE user = ?
	`, user).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, core.ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	return &token, nil
}

// SaveToken stores the OAuth token for a user
func (r *SQLiteStateRepository) SaveToken(ctx context.Context, user string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO oauth_tokens (user, token_json, updated_at)
		VALUES (?, ?, ?)
	`, user, string(raw), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *SQLiteStateRepository) Close() error {
	return r.db.Close()
}

// TokenView adapts the repository to the TokenRepository interface
func (r *SQLiteStateRepository) TokenView() *SQLiteTokenRepository {
	return &SQLiteTokenRepository{repo: r}
}

// SQLiteTokenRepository exposes the token half of SQLiteStateRepository
// under the TokenRepository method names.
type SQLiteTokenRepository struct {
	repo *SQLiteStateRepository
}

func (r *SQLiteTokenRepository) Get(ctx context.Context, user string) (*oauth2.Token, error) {
	return r.repo.GetToken(ctx, user)
}

func (r *SQLiteTokenRepository) Save(ctx context.Context, user string, token *oauth2.Token) error {
	return r.repo.SaveToken(ctx, user, token)
}
