package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists the engine's durable records: weight profiles, feedback,
// the dispatch ledger and saved searches. Listings live in the inventory
// package; the engine only reads them.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and prepares it for
// use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle so collaborating repositories can share
// one database file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) EnsureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS weight_profiles (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  weights_json TEXT NOT NULL DEFAULT '{}',
  is_default INTEGER NOT NULL DEFAULT 0
);`,
		`CREATE TABLE IF NOT EXISTS feedback (
  client_id TEXT NOT NULL,
  property_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (client_id, property_id)
);`,
		// No unique constraint on (client_id, property_id): re-sends over
		// time are allowed and concurrent duplicates are benign.
		`CREATE TABLE IF NOT EXISTS sent_matches (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  property_id TEXT NOT NULL,
  match_score INTEGER NOT NULL,
  compatibility TEXT NOT NULL,
  channel TEXT NOT NULL DEFAULT '',
  sent_at TEXT NOT NULL,
  sent_by TEXT NOT NULL DEFAULT '',
  client_response TEXT NOT NULL DEFAULT 'pending'
);`,
		`CREATE INDEX IF NOT EXISTS idx_sent_matches_client ON sent_matches(client_id);`,
		`CREATE TABLE IF NOT EXISTS saved_searches (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  name TEXT NOT NULL,
  criteria_json TEXT NOT NULL DEFAULT '{}',
  alerts_enabled INTEGER NOT NULL DEFAULT 0,
  alert_frequency TEXT NOT NULL DEFAULT 'daily',
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_saved_searches_client ON saved_searches(client_id);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
