// Package testutil provides shared test helpers for the knowledge store and pipeline.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"github.com/starford/mindyard/internal/embedding"
	"github.com/starford/mindyard/internal/index"
)

// TestStore creates a temporary SQLite knowledge store that is automatically cleaned up.
func TestStore(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mindyard-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StaticEmbedder returns the same vector for every input and counts calls.
type StaticEmbedder struct {
	Vector []float32
	Err    error
	calls  atomic.Int64
}

var _ embedding.Embedder = (*StaticEmbedder)(nil)

// Embed returns a copy of Vector, or Err when set.
func (e *StaticEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}
	return append([]float32(nil), e.Vector...), nil
}

// Name implements embedding.Embedder.
func (e *StaticEmbedder) Name() string { return "static" }

// Calls returns the number of Embed calls so far.
func (e *StaticEmbedder) Calls() int { return int(e.calls.Load()) }
