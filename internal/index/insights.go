package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/models"
)

const insightColumns = `id, statement, topic_tags, embedding, provenance_ref, owner_ref, verdict_refs, supersedes, share_score, created_at`

// entry is an immutable in-memory copy of a committed record.
type entry struct {
	rec models.InsightRecord
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInsight(s scanner) (models.InsightRecord, error) {
	var (
		rec       models.InsightRecord
		tagsJSON  string
		refsJSON  string
		embedding []byte
	)
	err := s.Scan(&rec.ID, &rec.Statement, &tagsJSON, &embedding, &rec.ProvenanceRef,
		&rec.OwnerRef, &refsJSON, &rec.Supersedes, &rec.ShareScore, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &rec.TopicTags); err != nil {
		return rec, fmt.Errorf("decode topic tags: %w", err)
	}
	if err := json.Unmarshal([]byte(refsJSON), &rec.VerdictRefs); err != nil {
		return rec, fmt.Errorf("decode verdict refs: %w", err)
	}
	rec.Embedding = decodeVector(embedding)
	return rec, nil
}

// Put appends rec. A record whose id already exists is left untouched and
// Put returns nil. Concurrent puts of one id are collapsed into a single
// write. The record becomes visible to Query only after the commit.
func (db *DB) Put(ctx context.Context, rec models.InsightRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("index: put: %w: empty id", apperr.ErrInvalidInput)
	}
	_, err, _ := db.puts.Do(rec.ID, func() (any, error) {
		return nil, db.put(ctx, rec)
	})
	return err
}

func (db *DB) put(ctx context.Context, rec models.InsightRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	tagsJSON, _ := json.Marshal(nonNil(rec.TopicTags))
	refsJSON, _ := json.Marshal(nonNil(rec.VerdictRefs))

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("put: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO insights (`+insightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Statement, string(tagsJSON), encodeVector(rec.Embedding), rec.ProvenanceRef,
		rec.OwnerRef, string(refsJSON), rec.Supersedes, rec.ShareScore, rec.CreatedAt.UTC())
	if err != nil {
		return storeErr("put: insert insight", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("put: rows affected", err)
	}
	if n == 0 {
		return nil
	}

	if len(rec.TopicTags) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO insight_tags (insight_id, tag) VALUES (?, ?)`)
		if err != nil {
			return storeErr("put: prepare tag insert", err)
		}
		defer stmt.Close()
		for _, tag := range rec.TopicTags {
			if _, err := stmt.ExecContext(ctx, rec.ID, tag); err != nil {
				return storeErr("put: insert tag", err)
			}
		}
	}
	if err := ftsInsert(ctx, tx, rec.ID, rec.Statement); err != nil {
		return storeErr("put: fts insert", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("put: commit", err)
	}

	db.mu.Lock()
	db.addLocked(rec)
	db.mu.Unlock()
	return nil
}

// addLocked indexes rec in memory. Callers hold db.mu for writing.
func (db *DB) addLocked(rec models.InsightRecord) {
	if _, ok := db.records[rec.ID]; ok {
		return
	}
	db.records[rec.ID] = &entry{rec: rec}
	for _, tag := range rec.TopicTags {
		set, ok := db.byTag[tag]
		if !ok {
			set = make(map[string]struct{})
			db.byTag[tag] = set
		}
		set[rec.ID] = struct{}{}
	}
	if rec.Supersedes != "" {
		db.superseded[rec.Supersedes] = struct{}{}
	}
}

// Get returns a record by id, including superseded records.
func (db *DB) Get(ctx context.Context, id string) (*models.InsightRecord, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM insights WHERE id = ?`, id)
	rec, err := scanInsight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	return &rec, nil
}

// SupersededBy reports the id of the record that replaced id, if any.
func (db *DB) SupersededBy(ctx context.Context, id string) (string, error) {
	var newer string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM insights WHERE supersedes = ? ORDER BY created_at DESC LIMIT 1`, id).Scan(&newer)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storeErr("superseded by", err)
	}
	return newer, nil
}

// ListByOwner returns the owner's current (not superseded) records, newest first.
func (db *DB) ListByOwner(ctx context.Context, ownerRef string) ([]models.InsightRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	var out []models.InsightRecord
	for id, e := range db.records {
		if e.rec.OwnerRef != ownerRef {
			continue
		}
		if _, gone := db.superseded[id]; gone {
			continue
		}
		out = append(out, e.rec)
	}
	db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListInsights pages through stored records, newest first, optionally
// restricted to a topic. It returns the page and the total count.
func (db *DB) ListInsights(ctx context.Context, limit, offset int, topic string) ([]models.InsightRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := "", []any{}
	if topic != "" {
		where = `WHERE id IN (SELECT insight_id FROM insight_tags WHERE tag = ?)`
		args = append(args, topic)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM insights `+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("list: count", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+insightColumns+` FROM insights `+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, storeErr("list", err)
	}
	defer rows.Close()

	var out []models.InsightRecord
	for rows.Next() {
		rec, err := scanInsight(rows)
		if err != nil {
			return nil, 0, storeErr("list: scan", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list", err)
	}
	return out, total, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("index: %s: %w: %w", op, apperr.ErrStoreUnavailable, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
