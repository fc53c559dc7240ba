package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/paths"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/validation"

	_ "modernc.org/sqlite"
)

//nolint:gochecknoinits // Backend self-registration is the intended pattern
func init() {
	Register(BackendSQLite, func(home string) (Backend, error) {
		if err := paths.EnsureDir(home); err != nil {
			return nil, err //nolint:wrapcheck // already wrapped by paths
		}
		return OpenSQLiteBackend(filepath.Join(home, paths.SQLiteStateFile))
	})
}

// SQLiteBackend keeps keys in a single kv table.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend opens (creating if needed) the database at dsn.
// ":memory:" works for tests.
func OpenSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite state: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers from this process.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate sqlite state: %w", err)
	}
	return nil
}

// Get implements Backend.
func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validation.ValidateStoreKey(key); err != nil {
		return "", false, err //nolint:wrapcheck // already descriptive
	}
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Backend.
func (b *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	if err := validation.ValidateStoreKey(key); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := b.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}
	return nil
}

// Delete implements Backend.
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if err := validation.ValidateStoreKey(key); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close() //nolint:wrapcheck // thin delegation
}
