// Package index is the knowledge store: an append-only SQLite table of
// insight records with an in-memory vector and topic index for queries,
// plus the verdict audit log and the submission ledger.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS insights (
	id             TEXT PRIMARY KEY,
	statement      TEXT NOT NULL,
	topic_tags     TEXT NOT NULL DEFAULT '[]',
	embedding      BLOB,
	provenance_ref TEXT NOT NULL,
	owner_ref      TEXT NOT NULL,
	verdict_refs   TEXT NOT NULL DEFAULT '[]',
	supersedes     TEXT NOT NULL DEFAULT '',
	share_score    INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_insights_owner ON insights(owner_ref);
CREATE INDEX IF NOT EXISTS idx_insights_supersedes ON insights(supersedes);

CREATE TABLE IF NOT EXISTS insight_tags (
	insight_id TEXT NOT NULL,
	tag        TEXT NOT NULL,
	UNIQUE(insight_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_insight_tags_tag ON insight_tags(tag);

CREATE TABLE IF NOT EXISTS audit_log (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	fragment_hash TEXT NOT NULL,
	label         TEXT NOT NULL,
	transform     TEXT NOT NULL,
	timestamp     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id         TEXT PRIMARY KEY,
	owner_ref  TEXT NOT NULL,
	status     TEXT NOT NULL,
	records    INTEGER NOT NULL DEFAULT 0,
	attempts   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);

CREATE TRIGGER IF NOT EXISTS insights_append_only_update BEFORE UPDATE ON insights
BEGIN SELECT RAISE(ABORT, 'insights are append-only'); END;
CREATE TRIGGER IF NOT EXISTS insights_append_only_delete BEFORE DELETE ON insights
BEGIN SELECT RAISE(ABORT, 'insights are append-only'); END;
CREATE TRIGGER IF NOT EXISTS audit_append_only_update BEFORE UPDATE ON audit_log
BEGIN SELECT RAISE(ABORT, 'audit log is append-only'); END;
CREATE TRIGGER IF NOT EXISTS audit_append_only_delete BEFORE DELETE ON audit_log
BEGIN SELECT RAISE(ABORT, 'audit log is append-only'); END;
`

// DB wraps a sql.DB with knowledge-store operations. The in-memory index
// mirrors committed rows only.
type DB struct {
	conn *sql.DB
	puts singleflight.Group

	mu         sync.RWMutex
	records    map[string]*entry
	byTag      map[string]map[string]struct{}
	superseded map[string]struct{}
}

// Open opens (or creates) the SQLite database, applies the schema and loads
// the in-memory index.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}

	db := &DB{
		conn:       conn,
		records:    make(map[string]*entry),
		byTag:      make(map[string]map[string]struct{}),
		superseded: make(map[string]struct{}),
	}
	if err := db.load(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// load rebuilds the in-memory index from the insights table.
func (db *DB) load(ctx context.Context) error {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+insightColumns+` FROM insights`)
	if err != nil {
		return fmt.Errorf("index: load: %w", err)
	}
	defer rows.Close()

	db.mu.Lock()
	defer db.mu.Unlock()
	for rows.Next() {
		rec, err := scanInsight(rows)
		if err != nil {
			return fmt.Errorf("index: load: %w", err)
		}
		db.addLocked(rec)
	}
	return rows.Err()
}
