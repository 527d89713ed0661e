package catalog

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	agg := NewAggregate()
	agg.Add(Result{Title: "Hair", Link: "https://example.com/collections/hair"})
	agg.Add(Result{Title: "Clip", Link: "https://example.com/collections/hair/products/clip-1"})
	agg.Add(Result{Title: "Shipping", Link: "https://example.com/pages/shipping"})

	meta := Metadata{
		RunID:        "run-1",
		Provider:     "google",
		TargetSite:   "example.com",
		QueriesUsed:  3,
		QueriesLimit: 50,
		TotalResults: 3,
		Timestamp:    "2024-01-01 00:00:00",
	}
	snap := agg.Snapshot(meta)

	require.Equal(t, []string{"hair"}, snap.Metadata.DiscoveredCollections)
	require.Equal(t, []string{"clip-1"}, snap.Metadata.DiscoveredProducts)
	require.Len(t, snap.Metadata.ProcessedURLs, 3)
	require.Len(t, snap.Results, 3)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, snap.WriteFile(path))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	diff := cmp.Diff(snap, loaded)
	require.Empty(t, diff)
}

func TestSummaryCounts(t *testing.T) {
	agg := NewAggregate()
	agg.Add(Result{Link: "https://example.com/collections/hair"})
	agg.Add(Result{Link: "https://example.com/products/clip-1"})
	agg.Add(Result{Link: "https://example.com/pages/about"})
	agg.Add(Result{Link: "https://example.com/blogs/news"})

	summary := agg.Summarize(Metadata{
		QueriesUsed:  4,
		QueriesLimit: 50,
		TotalResults: 4,
	})

	require.Equal(t, 1, summary.CollectionsFound)
	require.Equal(t, 1, summary.ProductsFound)
	require.Equal(t, 1, summary.PagesFound)
	require.Equal(t, 1, summary.CategoriesFound)
	require.Equal(t, 4, summary.UniqueURLs)
	require.Equal(t, 4, summary.TotalQueries)
	require.False(t, summary.QuotaLimited)
}
