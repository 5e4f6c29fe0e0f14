// Package cache stores acquired forecast results in SQLite so repeated
// runs against the same configuration and task skip the model entirely.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/forecast"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecast_results (
	id TEXT PRIMARY KEY,
	cache_key TEXT NOT NULL,
	task_fingerprint TEXT NOT NULL,
	result TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(cache_key, task_fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_results_key ON forecast_results(cache_key);
`

// Store is a SQLite-backed result cache keyed by forecaster configuration
// and task fingerprint.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get looks up a cached result. The second return value reports whether
// the entry was found.
func (s *Store) Get(cacheKey, fingerprint string) (*forecast.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(
		`SELECT result FROM forecast_results WHERE cache_key = ? AND task_fingerprint = ?`,
		cacheKey, fingerprint,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}

	var result forecast.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return &result, true, nil
}

// Put stores a result, replacing any existing entry for the same cache key
// and fingerprint.
func (s *Store) Put(cacheKey, fingerprint string, result *forecast.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO forecast_results (id, cache_key, task_fingerprint, result, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key, task_fingerprint) DO UPDATE SET
		   result = excluded.result,
		   created_at = excluded.created_at`,
		uuid.NewString(), cacheKey, fingerprint, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing result: %w", err)
	}
	return nil
}

// Stats summarizes cache contents.
type Stats struct {
	Total int
	ByKey map[string]int
}

// Stats reports how many entries the cache holds, per cache key.
func (s *Store) Stats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{ByKey: make(map[string]int)}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM forecast_results`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("counting cache entries: %w", err)
	}

	rows, err := s.db.Query(`SELECT cache_key, COUNT(*) FROM forecast_results GROUP BY cache_key`)
	if err != nil {
		return nil, fmt.Errorf("grouping cache entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scanning cache stats: %w", err)
		}
		stats.ByKey[key] = count
	}
	return stats, rows.Err()
}

// Clear removes entries for the given cache key, or every entry when the
// key is empty.
func (s *Store) Clear(cacheKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res sql.Result
	var err error
	if cacheKey == "" {
		res, err = s.db.Exec(`DELETE FROM forecast_results`)
	} else {
		res, err = s.db.Exec(`DELETE FROM forecast_results WHERE cache_key = ?`, cacheKey)
	}
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
