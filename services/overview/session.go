// Package overview runs AI-overview extraction sessions: one
// extractor, a query budget, deduped queries, and an appendable
// results file.
package overview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	liboverview "storescout/lib/overview"
	"storescout/lib/serp"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/overview")

type Options struct {
	Extractor liboverview.Extractor
	// MaxQueries is the query budget. Defaults to 20.
	MaxQueries int
	// MinDelay/MaxDelay bound the randomized pause between queries.
	// Default 1s-2s.
	MinDelay time.Duration
	MaxDelay time.Duration
}

type Session struct {
	opts Options

	records      []liboverview.Record
	processed    map[string]struct{}
	queryCount   int
	quotaLimited bool
}

func NewSession(opts Options) (*Session, error) {
	if opts.Extractor == nil {
		return nil, fmt.Errorf("an extractor is required")
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 20
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay + time.Second
	}

	return &Session{
		opts:      opts,
		processed: map[string]struct{}{},
	}, nil
}

// Resume seeds the session with records from a previous run so the
// results file grows across runs instead of being replaced.
func (s *Session) Resume(records []liboverview.Record) {
	s.records = append(s.records, records...)
}

func (s *Session) Records() []liboverview.Record {
	return s.records
}

func (s *Session) QuotaLimited() bool {
	return s.quotaLimited
}

func (s *Session) QueriesUsed() int {
	return s.queryCount
}

// CheckQuota reports whether another query fits the budget.
func (s *Session) CheckQuota() bool {
	if s.queryCount >= s.opts.MaxQueries {
		if !s.quotaLimited {
			slog.Warn("query limit reached, stopping further requests",
				"limit", s.opts.MaxQueries)
		}
		s.quotaLimited = true
		return false
	}
	return true
}

// Fetch extracts the overview for one query and appends it to the
// session's records. Repeat queries are skipped without spending
// budget.
func (s *Session) Fetch(ctx context.Context, query string) (*liboverview.Record, error) {
	ctx, span := tracer.Start(ctx, "session:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	if _, seen := s.processed[query]; seen {
		slog.Info("query already processed, skipping", "query", query)
		return nil, nil
	}
	s.processed[query] = struct{}{}

	if !s.CheckQuota() {
		span.SetStatus(codes.Error, "quota exhausted")
		return nil, serp.ErrQuotaExceeded
	}

	slog.Info("fetching overview",
		"extractor", s.opts.Extractor.Name(),
		"query", query,
		"used", s.queryCount+1,
		"limit", s.opts.MaxQueries,
	)
	s.queryCount++

	record, err := s.opts.Extractor.FetchOverview(ctx, query)
	if err != nil {
		if err == serp.ErrQuotaExceeded {
			slog.Error("api quota exceeded, stopping further requests")
			s.quotaLimited = true
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}

	s.records = append(s.records, *record)
	return record, nil
}

// Process walks a query list, pausing a random 1-2s between queries.
// Extraction misses are logged and skipped.
func (s *Session) Process(ctx context.Context, queries []string) error {
	ctx, span := tracer.Start(ctx, "session:Process")
	defer span.End()

	for _, query := range queries {
		if !s.CheckQuota() {
			return nil
		}

		_, err := s.Fetch(ctx, query)
		switch {
		case err == nil:
		case err == serp.ErrQuotaExceeded:
			return nil
		case err == liboverview.ErrNotFound:
			slog.Warn("no overview found", "query", query)
		case ctx.Err() != nil:
			span.SetStatus(codes.Error, "cancelled")
			return ctx.Err()
		default:
			slog.Error("extraction failed, continuing", "query", query, "err", err)
		}

		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) sleep(ctx context.Context) error {
	minMs := int(s.opts.MinDelay.Milliseconds())
	maxMs := int(s.opts.MaxDelay.Milliseconds())
	pause := minMs
	if extra, err := random.IntRange(0, maxMs-minMs+1); err == nil {
		pause += extra
	}

	timer := time.NewTimer(time.Duration(pause) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Save rewrites the results file with everything accumulated so far.
func (s *Session) Save(path string) error {
	err := SaveRecords(path, s.records)
	if err != nil {
		return err
	}
	slog.Info("results saved", "path", path, "records", len(s.records))
	return nil
}

// Summary reports the session's outcome.
type Summary struct {
	Extractor      string   `json:"extractor"`
	TotalQueries   int      `json:"total_queries"`
	QueryLimit     int      `json:"query_limit"`
	QuotaLimited   bool     `json:"quota_limited"`
	TotalOverviews int      `json:"total_overviews"`
	Queries        []string `json:"queries_with_overviews"`
}

func (s *Session) Summary() Summary {
	queries := make([]string, 0, len(s.records))
	for _, record := range s.records {
		queries = append(queries, record.Query)
	}
	return Summary{
		Extractor:      s.opts.Extractor.Name(),
		TotalQueries:   s.queryCount,
		QueryLimit:     s.opts.MaxQueries,
		QuotaLimited:   s.quotaLimited,
		TotalOverviews: len(s.records),
		Queries:        queries,
	}
}
