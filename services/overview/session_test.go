package overview

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	liboverview "storescout/lib/overview"
	"storescout/lib/serp"

	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	calls []string
	err   error
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) FetchOverview(ctx context.Context, query string) (*liboverview.Record, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	return &liboverview.Record{
		Query:       query,
		ExtractedAt: time.Now(),
		Content:     "answer for " + query,
	}, nil
}

func newSession(t *testing.T, extractor liboverview.Extractor, maxQueries int) *Session {
	s, err := NewSession(Options{
		Extractor:  extractor,
		MaxQueries: maxQueries,
		MinDelay:   time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func TestFetchDedupesQueries(t *testing.T) {
	extractor := &fakeExtractor{}
	s := newSession(t, extractor, 10)

	record, err := s.Fetch(context.Background(), "what is satin")
	require.NoError(t, err)
	require.NotNil(t, record)

	record, err = s.Fetch(context.Background(), "what is satin")
	require.NoError(t, err)
	require.Nil(t, record)

	require.Len(t, extractor.calls, 1)
	require.Equal(t, 1, s.QueriesUsed())
	require.Len(t, s.Records(), 1)
}

func TestFetchStopsAtBudget(t *testing.T) {
	extractor := &fakeExtractor{}
	s := newSession(t, extractor, 1)

	_, err := s.Fetch(context.Background(), "a")
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), "b")
	require.ErrorIs(t, err, serp.ErrQuotaExceeded)
	require.True(t, s.QuotaLimited())
}

func TestProcessSkipsMisses(t *testing.T) {
	extractor := &fakeExtractor{err: liboverview.ErrNotFound}
	s := newSession(t, extractor, 10)

	err := s.Process(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, extractor.calls, 2)
	require.Empty(t, s.Records())
}

func TestProcessStopsOnProviderQuota(t *testing.T) {
	extractor := &fakeExtractor{err: serp.ErrQuotaExceeded}
	s := newSession(t, extractor, 10)

	err := s.Process(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, extractor.calls, 1)
	require.True(t, s.QuotaLimited())
}

func TestResumeAppendsToExistingRecords(t *testing.T) {
	extractor := &fakeExtractor{}
	s := newSession(t, extractor, 10)

	s.Resume([]liboverview.Record{{Query: "old", Content: "kept"}})
	_, err := s.Fetch(context.Background(), "new")
	require.NoError(t, err)

	records := s.Records()
	require.Len(t, records, 2)
	require.Equal(t, "old", records[0].Query)
	require.Equal(t, "new", records[1].Query)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overviews.json")

	require.Nil(t, LoadRecords(path))

	extractor := &fakeExtractor{}
	s := newSession(t, extractor, 10)
	_, err := s.Fetch(context.Background(), "what is satin")
	require.NoError(t, err)
	require.NoError(t, s.Save(path))

	loaded := LoadRecords(path)
	require.Len(t, loaded, 1)
	require.Equal(t, "what is satin", loaded[0].Query)
	require.Equal(t, "answer for what is satin", loaded[0].Content)
}

func TestSummary(t *testing.T) {
	extractor := &fakeExtractor{}
	s := newSession(t, extractor, 2)

	require.NoError(t, s.Process(context.Background(), []string{"a", "b", "c"}))

	summary := s.Summary()
	require.Equal(t, "fake", summary.Extractor)
	require.Equal(t, 2, summary.TotalQueries)
	require.Equal(t, 2, summary.QueryLimit)
	require.True(t, summary.QuotaLimited)
	require.Equal(t, 2, summary.TotalOverviews)
	require.Equal(t, []string{"a", "b"}, summary.Queries)
}
