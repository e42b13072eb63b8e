package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is recorded in the metadata table by Migrate.
const SchemaVersion = "1"

// Store is the SQLite persistence layer for engine snapshots.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := s.SetMetadata("schema_version", SchemaVersion); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
  id              TEXT PRIMARY KEY,
  created_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS packages (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  idx             INTEGER NOT NULL,
  name            TEXT NOT NULL,
  PRIMARY KEY (snapshot_id, idx)
);

CREATE TABLE IF NOT EXISTS stems (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  stem            INTEGER NOT NULL,
  text            TEXT NOT NULL,
  PRIMARY KEY (snapshot_id, package, stem)
);

CREATE TABLE IF NOT EXISTS branches (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  id              INTEGER NOT NULL,
  name            TEXT NOT NULL,
  parent_branch   INTEGER,
  parent_revision INTEGER,
  PRIMARY KEY (snapshot_id, package, id)
);

CREATE TABLE IF NOT EXISTS revisions (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  branch          INTEGER NOT NULL,
  number          INTEGER NOT NULL,
  ring_modules    INTEGER NOT NULL,
  ring_symbols    INTEGER NOT NULL,
  ring_articles   INTEGER NOT NULL,
  hash            TEXT NOT NULL,
  tag             TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (snapshot_id, package, branch, number)
);

CREATE TABLE IF NOT EXISTS pins (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  branch          INTEGER NOT NULL,
  revision        INTEGER NOT NULL,
  dep_package     INTEGER NOT NULL,
  dep_branch      INTEGER NOT NULL,
  dep_revision    INTEGER NOT NULL,
  PRIMARY KEY (snapshot_id, package, branch, revision, dep_package)
);

CREATE TABLE IF NOT EXISTS modules (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  branch          INTEGER NOT NULL,
  ordinal         INTEGER NOT NULL,
  external_id     TEXT NOT NULL,
  culture_package INTEGER NOT NULL,
  culture_offset  INTEGER NOT NULL DEFAULT 0,
  payload         BLOB,
  PRIMARY KEY (snapshot_id, package, branch, ordinal)
);

CREATE TABLE IF NOT EXISTS symbols (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  branch          INTEGER NOT NULL,
  ordinal         INTEGER NOT NULL,
  external_id     TEXT NOT NULL,
  culture_package INTEGER NOT NULL,
  culture_offset  INTEGER NOT NULL DEFAULT 0,
  payload         BLOB,
  PRIMARY KEY (snapshot_id, package, branch, ordinal)
);

CREATE TABLE IF NOT EXISTS articles (
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  branch          INTEGER NOT NULL,
  ordinal         INTEGER NOT NULL,
  external_id     TEXT NOT NULL,
  culture_package INTEGER NOT NULL,
  culture_offset  INTEGER NOT NULL DEFAULT 0,
  payload         BLOB,
  PRIMARY KEY (snapshot_id, package, branch, ordinal)
);

CREATE TABLE IF NOT EXISTS routes (
  id              INTEGER PRIMARY KEY,
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  branch          INTEGER NOT NULL,
  module_package  INTEGER NOT NULL,
  module_offset   INTEGER NOT NULL,
  stem            INTEGER NOT NULL,
  leaf            INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  target          BLOB NOT NULL,
  since           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS keyframes (
  id              INTEGER PRIMARY KEY,
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  package         INTEGER NOT NULL,
  field           TEXT NOT NULL,
  branch          INTEGER NOT NULL,
  entity_key      BLOB NOT NULL,
  seq             INTEGER NOT NULL,
  since           INTEGER NOT NULL,
  value           BLOB
);

-- Indexes

CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
CREATE INDEX IF NOT EXISTS idx_routes_package ON routes(snapshot_id, package, branch);
CREATE INDEX IF NOT EXISTS idx_keyframes_package ON keyframes(snapshot_id, package, field);
`
