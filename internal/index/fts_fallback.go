//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; statement search uses LIKE on insights.statement.
	return nil
}

func ftsInsert(_ context.Context, _ *sql.Tx, _, _ string) error {
	// Statement is already stored in the insights table; nothing extra to do.
	return nil
}

// SearchStatements performs a LIKE-based search over abstracted statements
// (fallback when FTS5 is not compiled in). Superseded records are included.
func (db *DB) SearchStatements(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, statement
		FROM insights
		WHERE statement LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, storeErr("search", err)
	}
	return scanSearch(rows)
}
