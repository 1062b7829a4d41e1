package index

import "database/sql"

// SearchResult is one statement search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
}

func scanSearch(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Snippet); err != nil {
			return nil, storeErr("search: scan", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
