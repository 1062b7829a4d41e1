package index

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, _ := testDBAt(t)
	return db
}

func testDBAt(t *testing.T) (*DB, string) {
	t.Helper()
	f, err := os.CreateTemp("", "mindyard-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, f.Name()
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id, owner string, vec []float32, tags ...string) models.InsightRecord {
	return models.InsightRecord{
		ID:            id,
		Statement:     "Someone is reflecting on " + id,
		TopicTags:     tags,
		Embedding:     vec,
		ProvenanceRef: "prov-" + id,
		OwnerRef:      owner,
		VerdictRefs:   []string{"hash-" + id},
		CreatedAt:     t0,
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"insights", "insight_tags", "audit_log", "submissions"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestPutAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	rec := record("r1", "owner-a", []float32{0.6, 0.8}, "career-transition", "work")
	rec.ShareScore = 72
	if err := db.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := db.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Statement != rec.Statement || got.OwnerRef != "owner-a" || got.ShareScore != 72 {
		t.Errorf("got %+v", got)
	}
	if len(got.TopicTags) != 2 || got.TopicTags[0] != "career-transition" {
		t.Errorf("topic tags = %v", got.TopicTags)
	}
	if len(got.Embedding) != 2 || got.Embedding[1] != 0.8 {
		t.Errorf("embedding = %v", got.Embedding)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, t0)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPut_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	first := record("dup", "owner-a", []float32{1, 0}, "health")
	second := first
	second.Statement = "a different statement"
	second.TopicTags = []string{"legal"}

	if err := db.Put(ctx, first); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put(ctx, second); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, _ := db.Get(ctx, "dup")
	if got.Statement != first.Statement {
		t.Errorf("duplicate put overwrote statement: %q", got.Statement)
	}
	var rows, tags int
	db.conn.QueryRow(`SELECT count(*) FROM insights`).Scan(&rows)
	db.conn.QueryRow(`SELECT count(*) FROM insight_tags`).Scan(&tags)
	if rows != 1 || tags != 1 || db.Len() != 1 {
		t.Errorf("rows=%d tags=%d len=%d, want 1/1/1", rows, tags, db.Len())
	}
	hits, _ := db.Query(ctx, nil, TopicFilter{Any: []string{"legal"}}, 10)
	if len(hits) != 0 {
		t.Errorf("duplicate put leaked into tag index: %+v", hits)
	}
}

func TestPut_ConcurrentSameID(t *testing.T) {
	db := testDB(t)
	rec := record("same", "owner-a", []float32{1, 0}, "work")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.Put(context.Background(), rec)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	var rows int
	db.conn.QueryRow(`SELECT count(*) FROM insights WHERE id = 'same'`).Scan(&rows)
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestPut_EmptyID(t *testing.T) {
	db := testDB(t)
	err := db.Put(context.Background(), models.InsightRecord{})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPut_StoreUnavailable(t *testing.T) {
	db := testDB(t)
	db.Close()
	err := db.Put(context.Background(), record("r1", "o", nil, "work"))
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestAppendOnly(t *testing.T) {
	db := testDB(t)
	_ = db.Put(context.Background(), record("r1", "o", nil, "work"))
	if _, err := db.conn.Exec(`UPDATE insights SET statement = 'x' WHERE id = 'r1'`); err == nil {
		t.Error("update on insights should be rejected")
	}
	if _, err := db.conn.Exec(`DELETE FROM insights`); err == nil {
		t.Error("delete on insights should be rejected")
	}
}

func TestQuery_Ranking(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	near := record("near", "owner-b", []float32{1, 0}, "career-transition")
	mid := record("mid", "owner-c", []float32{0.6, 0.8}, "career-transition")
	far := record("far", "owner-d", []float32{0, 1}, "learning")
	older := record("older", "owner-e", []float32{1, 0}, "career-transition")
	older.CreatedAt = t0.Add(-time.Hour)
	for _, r := range []models.InsightRecord{far, older, mid, near} {
		if err := db.Put(ctx, r); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	hits, err := db.Query(ctx, []float32{1, 0}, TopicFilter{}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"near", "older", "mid"}
	if len(hits) != len(want) {
		t.Fatalf("hits = %d, want %d", len(hits), len(want))
	}
	for i, id := range want {
		if hits[i].Record.ID != id {
			t.Errorf("hit %d = %s, want %s", i, hits[i].Record.ID, id)
		}
	}

	hits, _ = db.Query(ctx, []float32{1, 0}, TopicFilter{Any: []string{"learning"}}, 10)
	if len(hits) != 1 || hits[0].Record.ID != "far" {
		t.Errorf("topic filter hits = %+v", hits)
	}

	hits, _ = db.Query(ctx, []float32{1, 0}, TopicFilter{ExcludeID: "near", ExcludeOwner: "owner-e"}, 10)
	for _, h := range hits {
		if h.Record.ID == "near" || h.Record.ID == "older" {
			t.Errorf("excluded record returned: %s", h.Record.ID)
		}
	}
}

func TestQuery_ExcludesSuperseded(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	old := record("old", "owner-a", []float32{1, 0}, "work")
	fix := record("fix", "owner-a", []float32{1, 0}, "work")
	fix.Supersedes = "old"
	_ = db.Put(ctx, old)
	_ = db.Put(ctx, fix)

	hits, _ := db.Query(ctx, []float32{1, 0}, TopicFilter{}, 10)
	if len(hits) != 1 || hits[0].Record.ID != "fix" {
		t.Fatalf("hits = %+v, want only fix", hits)
	}
	if _, err := db.Get(ctx, "old"); err != nil {
		t.Errorf("superseded record should stay readable: %v", err)
	}
	newer, _ := db.SupersededBy(ctx, "old")
	if newer != "fix" {
		t.Errorf("SupersededBy = %q", newer)
	}
	mine, _ := db.ListByOwner(ctx, "owner-a")
	if len(mine) != 1 || mine[0].ID != "fix" {
		t.Errorf("ListByOwner = %+v", mine)
	}
}

func TestQuery_CancelledContextReturnsPartial(t *testing.T) {
	db := testDB(t)
	_ = db.Put(context.Background(), record("r1", "o", []float32{1, 0}, "work"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := db.Query(ctx, []float32{1, 0}, TopicFilter{}, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReopenLoadsIndex(t *testing.T) {
	db, path := testDBAt(t)
	_ = db.Put(context.Background(), record("r1", "owner-a", []float32{1, 0}, "work"))
	db.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	hits, err := again.Query(context.Background(), []float32{1, 0}, TopicFilter{Any: []string{"work"}}, 5)
	if err != nil || len(hits) != 1 {
		t.Fatalf("hits = %+v err = %v", hits, err)
	}
}

func TestListInsights(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		r := record(id, "o", nil, "work")
		if id == "c" {
			r.TopicTags = []string{"health"}
		}
		r.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		_ = db.Put(ctx, r)
	}
	page, total, err := db.ListInsights(ctx, 1, 0, "work")
	if err != nil {
		t.Fatalf("ListInsights: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].ID != "b" {
		t.Errorf("total=%d page=%+v", total, page)
	}
}

func TestSearchStatements(t *testing.T) {
	db := testDB(t)
	r := record("s1", "o", nil, "creativity")
	r.Statement = "Someone is exploring ideas about a creative project"
	_ = db.Put(context.Background(), r)

	results, err := db.SearchStatements(context.Background(), "creative", 10)
	if err != nil {
		t.Fatalf("SearchStatements: %v", err)
	}
	if len(results) != 1 || results[0].ID != "s1" {
		t.Errorf("results = %+v, want 1 hit for s1", results)
	}
}

func TestAuditLog(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	entries := []models.AuditEntry{
		{FragmentHash: "h1", Label: models.LabelRedact, Transform: "redact:person", Timestamp: t0},
		{FragmentHash: "h2", Label: models.LabelReject, Transform: "reject:location", Timestamp: t0},
	}
	for _, e := range entries {
		if err := db.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	got, err := db.ListAudit(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(got) != 2 || got[0].Label != models.LabelRedact || got[1].Transform != "reject:location" {
		t.Fatalf("audit = %+v", got)
	}
	rest, _ := db.ListAudit(ctx, 10, got[0].Seq)
	if len(rest) != 1 || rest[0].FragmentHash != "h2" {
		t.Errorf("after seq = %+v", rest)
	}
	if _, err := db.conn.Exec(`DELETE FROM audit_log`); err == nil {
		t.Error("audit log should be append-only")
	}
}

func TestSubmissions(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := models.Submission{ID: "sub-1", OwnerRef: "o", Status: models.SubmissionPending, CreatedAt: t0}
	if err := db.CreateSubmission(ctx, s); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if err := db.CreateSubmission(ctx, s); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v", err)
	}

	s.Status = models.SubmissionCompleted
	s.Records = 2
	s.Attempts = 1
	if err := db.UpdateSubmission(ctx, s); err != nil {
		t.Fatalf("UpdateSubmission: %v", err)
	}
	got, err := db.GetSubmission(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Status != models.SubmissionCompleted || got.Records != 2 || got.Attempts != 1 {
		t.Errorf("got %+v", got)
	}

	if _, err := db.GetSubmission(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if err := db.UpdateSubmission(ctx, models.Submission{ID: "nope"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}

	_ = db.CreateSubmission(ctx, models.Submission{ID: "sub-2", OwnerRef: "o", Status: models.SubmissionDelayed, CreatedAt: t0})
	pending, err := db.PendingSubmissions(ctx)
	if err != nil || len(pending) != 1 || pending[0].ID != "sub-2" {
		t.Errorf("pending = %+v err = %v", pending, err)
	}
}
