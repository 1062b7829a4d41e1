package index

import (
	"context"
	"time"

	"github.com/starford/mindyard/internal/models"
)

// AppendAudit appends one verdict entry. Entries are never updated or deleted.
func (db *DB) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO audit_log (fragment_hash, label, transform, timestamp) VALUES (?, ?, ?, ?)`,
		e.FragmentHash, e.Label.String(), e.Transform, e.Timestamp.UTC())
	if err != nil {
		return storeErr("append audit", err)
	}
	return nil
}

// ListAudit returns up to limit entries with seq greater than afterSeq, in
// append order.
func (db *DB) ListAudit(ctx context.Context, limit int, afterSeq int64) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT seq, fragment_hash, label, transform, timestamp
		FROM audit_log
		WHERE seq > ?
		ORDER BY seq
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, storeErr("list audit", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var (
			e     models.AuditEntry
			label string
		)
		if err := rows.Scan(&e.Seq, &e.FragmentHash, &label, &e.Transform, &e.Timestamp); err != nil {
			return nil, storeErr("list audit: scan", err)
		}
		// Unknown labels read back as REJECT.
		e.Label, _ = models.ParseLabel(label)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list audit", err)
	}
	return out, nil
}
