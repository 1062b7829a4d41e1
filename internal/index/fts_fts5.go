//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS insights_fts USING fts5(
			id UNINDEXED,
			statement,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(ctx context.Context, tx *sql.Tx, id, statement string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO insights_fts (id, statement) VALUES (?, ?)`, id, statement)
	return err
}

// SearchStatements performs an FTS5 search over abstracted statements.
func (db *DB) SearchStatements(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id,
		       snippet(insights_fts, 1, '<b>', '</b>', '...', 32)
		FROM insights_fts
		WHERE insights_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, storeErr("search", err)
	}
	return scanSearch(rows)
}
