package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rescam/phishguard/internal/core"
)

// MySQLWatchRepository is a MySQL implementation of the
// WatchStateRepository interface, for deployments where several detector
// instances share one cursor table.
type MySQLWatchRepository struct {
	db *sql.DB
}

// NewMySQLWatchRepository connects to MySQL using the given DSN
func NewMySQLWatchRepository(dsn string) (*MySQLWatchRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS watch_state (
			user VARCHAR(255) PRIMARY KEY,
			history_id BIGINT UNSIGNED NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create watch_state table: %w", err)
	}

	return &MySQLWatchRepository{db: db}, nil
}

// Get retrieves the watch state for a user, returning (nil, nil) when none exists
func (r *MySQLWatchRepository) Get(ctx context.Context, user string) (*core.WatchState, error) {
	var historyID uint64
	var updatedAt time.Time

	err := r.db.QueryRowContext(ctx, `
		SELECT history_id, updated_at FROM watch_state WHERE user = ?
	`, user).Scan(&historyID, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch state: %w", err)
	}

	return &core.WatchState{
		User:      user,
		HistoryID: historyID,
		UpdatedAt: updatedAt,
	}, nil
}

// Set stores the watch state for a user
func (r *MySQLWatchRepository) Set(ctx context.Context, state *core.WatchState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_state (user, history_id, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE history_id = VALUES(history_id), updated_at = VALUES(updated_at)
	`, state.User, state.HistoryID, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store watch state: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *MySQLWatchRepository) Close() error {
	return r.db.Close()
}
