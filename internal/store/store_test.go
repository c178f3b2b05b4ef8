package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdsearch/internal/store"
	pkgerrors "mdsearch/pkg/errors"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAssignsStableID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	doc := &store.Document{Path: "a/b.md", Title: "B", Summary: "s", Body: "body", MTime: time.Now()}
	id1, err := s.Upsert(ctx, doc)
	require.NoError(t, err)
	require.Positive(t, id1)

	doc.Title = "B v2"
	id2, err := s.Upsert(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "B v2", got.Title)
	assert.Equal(t, "a/b.md", got.Path)
}

func TestGetNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)

	_, err = s.GetByPath(context.Background(), "missing.md")
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Upsert(ctx, &store.Document{Path: "x.md", Title: "x", MTime: time.Now()})
	require.NoError(t, err)

	gotID, existed, err := s.Delete(ctx, "x.md")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, id, gotID)

	_, err = s.GetByID(ctx, id)
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)

	// Deleting a path that was never indexed is a no-op, not an error.
	_, existed, err = s.Delete(ctx, "never-there.md")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestListAndClear(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, p := range []string{"one.md", "two.md", "three.md"} {
		_, err := s.Upsert(ctx, &store.Document{Path: p, Title: p, MTime: time.Now()})
		require.NoError(t, err)
	}

	docs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "one.md", docs[0].Path)

	require.NoError(t, s.Clear(ctx))
	docs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMTimeRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mtime := time.Date(2025, 6, 1, 12, 30, 0, 123456789, time.UTC)
	id, err := s.Upsert(ctx, &store.Document{Path: "t.md", Title: "t", MTime: mtime})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.MTime.Equal(mtime))
}
