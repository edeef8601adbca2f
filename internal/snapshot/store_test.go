package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-matcher/internal/listings"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "snapshots.db"), time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sample() *Snapshot {
	return &Snapshot{
		ID:    "session-1",
		Query: listings.Query{Title: "Go  Engineer", Location: "Berlin", Limit: 3},
		Model: "hashing-4",
		Jobs: []listings.Job{
			{Title: "Go Engineer", Company: "Acme", Description: "Go"},
			{Title: "SRE", Company: "Initech", Description: "Kubernetes"},
			{Title: "Backend", Company: "Globex", Description: "APIs"},
		},
		Vectors: [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0.5}},
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Save(ctx, sample()))

	got, err := store.Load(ctx, listings.Query{Title: "go engineer", Location: " berlin ", Limit: 3}, "hashing-4")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "session-1", got.ID)
	assert.Equal(t, sample().Jobs, got.Jobs)
	assert.Equal(t, sample().Vectors, got.Vectors)
}

func TestLoadTruncatesToSmallerLimit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, sample()))

	got, err := store.Load(ctx, listings.Query{Title: "Go Engineer", Location: "Berlin", Limit: 2}, "hashing-4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Jobs, 2)
	assert.Len(t, got.Vectors, 2)
	assert.Equal(t, "SRE", got.Jobs[1].Title)
}

func TestLoadMisses(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, sample()))

	tests := []struct {
		name  string
		query listings.Query
		model string
	}{
		{"other model", listings.Query{Title: "Go Engineer", Location: "Berlin", Limit: 3}, "gemini-embedding-001"},
		{"other location", listings.Query{Title: "Go Engineer", Location: "Paris", Limit: 3}, "hashing-4"},
		{"bigger limit", listings.Query{Title: "Go Engineer", Location: "Berlin", Limit: 10}, "hashing-4"},
		{"zero limit", listings.Query{Title: "Go Engineer", Location: "Berlin", Limit: 0}, "hashing-4"},
		{"negative limit", listings.Query{Title: "Go Engineer", Location: "Berlin", Limit: -1}, "hashing-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Load(ctx, tt.query, tt.model)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestExpiredSnapshotsAreIgnoredAndPruned(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	snap := sample()
	snap.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx, snap.Query, snap.Model)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := store.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSaveReplacesExistingSession(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, sample()))

	next := sample()
	next.ID = "session-2"
	next.Jobs = next.Jobs[:1]
	next.Vectors = next.Vectors[:1]
	require.NoError(t, store.Save(ctx, next))

	got, err := store.Load(ctx, listings.Query{Title: "Go Engineer", Location: "Berlin", Limit: 1}, "hashing-4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "session-2", got.ID)
	assert.Len(t, got.Jobs, 1)
}

func TestSaveRejectsUnpairedInput(t *testing.T) {
	store := openTestStore(t)
	snap := sample()
	snap.Vectors = snap.Vectors[:2]
	assert.Error(t, store.Save(context.Background(), snap))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ", 0, nil)
	assert.Error(t, err)
}
