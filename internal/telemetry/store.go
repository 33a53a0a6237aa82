package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// DefaultFileName is the metrics database name inside the data directory.
const DefaultFileName = "metrics.db"

const telemetrySchema = `
-- Turn outcomes (aggregated daily)
CREATE TABLE IF NOT EXISTS turn_outcome_stats (
	date TEXT NOT NULL,
	outcome TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, outcome)
);

-- Latency histogram (buckets: <10ms, 10-50ms, 50-100ms, 100-500ms, >500ms)
CREATE TABLE IF NOT EXISTS query_latency_stats (
	date TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, bucket)
);

-- Per-source outcomes (aggregated daily)
CREATE TABLE IF NOT EXISTS source_stats (
	date TEXT NOT NULL,
	source_id TEXT NOT NULL,
	ok INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	timeout INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	canceled INTEGER NOT NULL DEFAULT 0,
	total_ns INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, source_id)
);

-- Top query terms (with frequency count)
CREATE TABLE IF NOT EXISTS query_terms (
	term TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);
`

// SQLiteMetricsStore implements QueryMetricsStore using SQLite.
type SQLiteMetricsStore struct {
	db   *sql.DB
	path string
}

var _ QueryMetricsStore = (*SQLiteMetricsStore)(nil)

// OpenSQLiteMetricsStore opens (or creates) the metrics database at path.
// An empty path opens an in-memory database.
func OpenSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(telemetrySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	return &SQLiteMetricsStore{db: db, path: path}, nil
}

// inTx runs fn with a prepared statement inside one transaction.
func (s *SQLiteMetricsStore) inTx(query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveOutcomeCounts adds daily turn outcome counts.
func (s *SQLiteMetricsStore) SaveOutcomeCounts(date string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	return s.inTx(`
		INSERT INTO turn_outcome_stats (date, outcome, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, outcome) DO UPDATE SET count = count + excluded.count
	`, func(stmt *sql.Stmt) error {
		for outcome, count := range counts {
			if _, err := stmt.Exec(date, outcome, count); err != nil {
				return fmt.Errorf("insert outcome count: %w", err)
			}
		}
		return nil
	})
}

// GetOutcomeCounts sums outcome counts for a date range (inclusive).
func (s *SQLiteMetricsStore) GetOutcomeCounts(from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT outcome, SUM(count) as total
		FROM turn_outcome_stats
		WHERE date >= ? AND date <= ?
		GROUP BY outcome
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}

// SaveLatencyCounts adds daily latency histogram counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	if len(counts) == 0 {
		return nil
	}
	return s.inTx(`
		INSERT INTO query_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`, func(stmt *sql.Stmt) error {
		for bucket, count := range counts {
			if _, err := stmt.Exec(date, string(bucket), count); err != nil {
				return fmt.Errorf("insert latency count: %w", err)
			}
		}
		return nil
	})
}

// GetLatencyCounts retrieves latency distribution for a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	rows, err := s.db.Query(`
		SELECT bucket, SUM(count) as total
		FROM query_latency_stats
		WHERE date >= ? AND date <= ?
		GROUP BY bucket
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[LatencyBucket]int64)
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[LatencyBucket(bucket)] = count
	}
	return counts, rows.Err()
}

// SaveSourceStats adds daily per-source outcome counts.
func (s *SQLiteMetricsStore) SaveSourceStats(date string, stats map[string]SourceStats) error {
	if len(stats) == 0 {
		return nil
	}
	return s.inTx(`
		INSERT INTO source_stats (date, source_id, ok, failed, timeout, skipped, canceled, total_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, source_id) DO UPDATE SET
			ok = ok + excluded.ok,
			failed = failed + excluded.failed,
			timeout = timeout + excluded.timeout,
			skipped = skipped + excluded.skipped,
			canceled = canceled + excluded.canceled,
			total_ns = total_ns + excluded.total_ns
	`, func(stmt *sql.Stmt) error {
		for id, st := range stats {
			if _, err := stmt.Exec(date, id, st.OK, st.Failed, st.Timeout, st.Skipped, st.Canceled, int64(st.Total)); err != nil {
				return fmt.Errorf("insert source stats: %w", err)
			}
		}
		return nil
	})
}

// GetSourceStats sums per-source stats for a date range.
func (s *SQLiteMetricsStore) GetSourceStats(from, to string) (map[string]SourceStats, error) {
	rows, err := s.db.Query(`
		SELECT source_id, SUM(ok), SUM(failed), SUM(timeout), SUM(skipped), SUM(canceled), SUM(total_ns)
		FROM source_stats
		WHERE date >= ? AND date <= ?
		GROUP BY source_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query source stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]SourceStats)
	for rows.Next() {
		var id string
		var st SourceStats
		var total int64
		if err := rows.Scan(&id, &st.OK, &st.Failed, &st.Timeout, &st.Skipped, &st.Canceled, &total); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		st.Total = time.Duration(total)
		stats[id] = st
	}
	return stats, rows.Err()
}

// UpsertTermCounts updates term frequency counts.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}
	return s.inTx(`
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`, func(stmt *sql.Stmt) error {
		for term, count := range terms {
			if _, err := stmt.Exec(term, count); err != nil {
				return fmt.Errorf("upsert term count: %w", err)
			}
		}
		return nil
	})
}

// GetTopTerms retrieves the top N terms by frequency.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteMetricsStore) Close() error {
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}
