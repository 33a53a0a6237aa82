package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

const usageSchema = `
CREATE TABLE IF NOT EXISTS usage_counts (
	query TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	count INTEGER NOT NULL CHECK (count > 0),
	PRIMARY KEY (query, candidate_id)
);
`

// SQLiteStore persists counters in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Persister = (*SQLiteStore)(nil)

// validateSQLiteIntegrity returns nil if the database at path is usable or
// absent, and an error describing the corruption otherwise.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens (or creates) the usage database at path.
// An empty path opens an in-memory database. A corrupted file is removed so
// counters start empty.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("usage_db_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, lerrors.New(lerrors.ErrCodeStateCorrupt,
					fmt.Sprintf("usage database %s is corrupted and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("usage_db_cleared", slog.String("path", path))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; also keeps an in-memory database alive on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(usageSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create usage schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Load reads every counter.
func (s *SQLiteStore) Load(ctx context.Context) (Counters, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT query, candidate_id, count FROM usage_counts`)
	if err != nil {
		return nil, fmt.Errorf("query usage counts: %w", err)
	}
	defer rows.Close()

	counts := make(Counters)
	for rows.Next() {
		var query, id string
		var n int64
		if err := rows.Scan(&query, &id, &n); err != nil {
			return nil, lerrors.New(lerrors.ErrCodeStateCorrupt, "malformed usage row", err)
		}
		bucket, ok := counts[query]
		if !ok {
			bucket = make(map[string]int64)
			counts[query] = bucket
		}
		bucket[id] = n
	}
	return counts, rows.Err()
}

// OnChanged replaces the stored counters with counters in one transaction.
func (s *SQLiteStore) OnChanged(ctx context.Context, counters Counters) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_counts`); err != nil {
		return fmt.Errorf("clear usage counts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_counts (query, candidate_id, count)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for query, bucket := range counters {
		for id, n := range bucket {
			if n <= 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, query, id, n); err != nil {
				return fmt.Errorf("insert usage count: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}
