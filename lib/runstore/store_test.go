package runstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestStore(t *testing.T) {
	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	store, err := NewStore(sqlite)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Empty(t, runs)

	first := Run{
		ID:               "run-1",
		Provider:         "google",
		TargetSite:       "mykitsch.com",
		QueriesUsed:      12,
		QueriesLimit:     50,
		TotalResults:     87,
		CollectionsFound: 6,
		ProductsFound:    31,
		CategoriesFound:  2,
		PagesFound:       3,
		QuotaLimited:     false,
		StartedAt:        time.Unix(1700000000, 0),
		FinishedAt:       time.Unix(1700000120, 0),
	}
	require.NoError(t, store.RecordRun(ctx, first))
	require.NoError(t, store.RecordRun(ctx, Run{
		ID:           "run-2",
		Provider:     "searchapi",
		TargetSite:   "mykitsch.com",
		QueriesUsed:  50,
		QueriesLimit: 50,
		QuotaLimited: true,
		StartedAt:    time.Unix(1700010000, 0),
		FinishedAt:   time.Unix(1700010300, 0),
	}))

	runs, err = store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// most recent first
	require.Equal(t, "run-2", runs[0].ID)
	require.True(t, runs[0].QuotaLimited)
	require.Equal(t, first, runs[1])
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.RecordRun(ctx, Run{
		ID:        "run-1",
		Provider:  "google",
		StartedAt: time.Now(),
	}))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
