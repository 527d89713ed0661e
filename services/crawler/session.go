// Package crawler drives a SERP provider against a storefront,
// classifying every on-site result into the run's catalog aggregate
// while staying inside a caller-set query budget.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storescout/lib/catalog"
	"storescout/lib/serp"

	"github.com/google/uuid"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/crawler")

const resultsPerPage = 10

// maxPages caps pagination; the API serves at most 100 results per
// query.
const maxPages = 10

// Enricher fills metadata gaps on a result before it is classified,
// typically by fetching the page from the storefront itself.
type Enricher interface {
	Enrich(ctx context.Context, res catalog.Result) (catalog.Result, error)
}

// Plan is the prioritized query sequence a crawl walks through until
// the budget runs out.
type Plan struct {
	// KeyPaths are site paths searched as site:<site>/<path>.
	KeyPaths []string
	// ProductTerms are searched as site:<site> <term>.
	ProductTerms []string
	// ExploreLimit caps how many discovered collections get a
	// follow-up query.
	ExploreLimit int
}

// DefaultPlan covers the storefront sections and product vocabulary
// of a typical hair-accessory shop.
func DefaultPlan() Plan {
	return Plan{
		KeyPaths: []string{
			"collections/best-sellers",
			"collections/hair",
			"collections/accessories",
			"products",
		},
		ProductTerms: []string{
			"scrunchies",
			"headbands",
			"hair clips",
			"pillowcases",
			"shower caps",
		},
		ExploreLimit: 10,
	}
}

type Options struct {
	Provider   serp.Provider
	TargetSite string
	// MaxQueries is the query budget for the whole session. Defaults
	// to 50.
	MaxQueries int
	// Delay is the pause between consecutive queries. Defaults to 1s.
	Delay time.Duration
	// Jitter adds up to this much extra random pause on top of Delay.
	Jitter time.Duration
	// Enricher is optional; results pass through it before
	// classification.
	Enricher Enricher
}

type Session struct {
	opts Options

	RunID     string
	StartedAt time.Time

	agg          *catalog.Aggregate
	queryCount   int
	totalQueries int
	totalResults int
	quotaLimited bool
}

func NewSession(opts Options) (*Session, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("a provider is required")
	}
	if opts.TargetSite == "" {
		return nil, fmt.Errorf("a target site is required")
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 50
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}

	return &Session{
		opts:      opts,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		agg:       catalog.NewAggregate(),
	}, nil
}

func (s *Session) Aggregate() *catalog.Aggregate {
	return s.agg
}

func (s *Session) QuotaLimited() bool {
	return s.quotaLimited
}

func (s *Session) QueriesUsed() int {
	return s.queryCount
}

// CheckQuota reports whether another query fits the budget, flipping
// the quota flag when it does not.
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

// Search runs one provider query and feeds the on-site results into
// the aggregate. Off-site results are dropped.
func (s *Session) Search(ctx context.Context, query serp.Query) (*serp.Page, error) {
	ctx, span := tracer.Start(ctx, "session:Search")
	defer span.End()
	span.SetAttributes(attribute.String("query", query.Text))

	if !s.CheckQuota() {
		span.SetStatus(codes.Error, "quota exhausted")
		return nil, serp.ErrQuotaExceeded
	}

	slog.Info("searching",
		"query", query.Text,
		"start", query.Start,
		"page", query.Page,
		"used", s.queryCount+1,
		"limit", s.opts.MaxQueries,
	)
	s.queryCount++

	page, err := s.opts.Provider.Search(ctx, query)
	if err != nil {
		if err == serp.ErrQuotaExceeded {
			slog.Error("api quota exceeded, stopping further requests")
			s.quotaLimited = true
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider search failed")
		return nil, err
	}

	s.totalQueries++
	s.totalResults += len(page.Results)
	slog.Info("found results", "count", len(page.Results))

	for _, res := range page.Results {
		if !strings.Contains(res.DisplayLink, s.opts.TargetSite) {
			continue
		}
		res = s.enrich(ctx, res)
		s.agg.Add(res)
	}
	return page, nil
}

func (s *Session) enrich(ctx context.Context, res catalog.Result) catalog.Result {
	if s.opts.Enricher == nil || s.agg.SeenURL(res.Link) {
		return res
	}
	enriched, err := s.opts.Enricher.Enrich(ctx, res)
	if err != nil {
		slog.Warn("failed to enrich result", "link", res.Link, "err", err)
		return res
	}
	return enriched
}

// SearchPages pages through a query ten results at a time until
// totalResults are collected, results run out, or the budget stops
// the crawl.
func (s *Session) SearchPages(ctx context.Context, text string, totalResults int) ([]catalog.Result, error) {
	ctx, span := tracer.Start(ctx, "session:SearchPages")
	defer span.End()

	pagesNeeded := (totalResults + resultsPerPage - 1) / resultsPerPage
	if pagesNeeded > maxPages {
		pagesNeeded = maxPages
	}

	var all []catalog.Result
	for page := 0; page < pagesNeeded; page++ {
		if !s.CheckQuota() {
			break
		}

		slog.Info("fetching page", "page", page+1, "of", pagesNeeded)
		res, err := s.Search(ctx, serp.Query{
			Text:  text,
			Num:   resultsPerPage,
			Start: page*resultsPerPage + 1,
			Page:  page + 1,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "page fetch failed")
			return all, err
		}
		if len(res.Results) == 0 {
			break
		}
		all = append(all, res.Results...)

		if page < pagesNeeded-1 {
			if err := s.sleep(ctx); err != nil {
				return all, err
			}
		}
	}

	slog.Info("total results fetched", "count", len(all))
	return all, nil
}

func (s *Session) sleep(ctx context.Context) error {
	pause := s.opts.Delay
	if s.opts.Jitter > 0 {
		extra, err := random.IntRange(0, int(s.opts.Jitter.Milliseconds())+1)
		if err == nil {
			pause += time.Duration(extra) * time.Millisecond
		}
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunPlan executes searches in priority order until the plan is done
// or the quota is reached. Individual query failures are logged and
// skipped; quota exhaustion ends the run.
func (s *Session) RunPlan(ctx context.Context, plan Plan) error {
	ctx, span := tracer.Start(ctx, "session:RunPlan")
	defer span.End()

	site := s.opts.TargetSite

	slog.Info("priority 1: site overview", "site", site)
	if err := s.planStep(ctx, fmt.Sprintf("site:%s", site)); err != nil {
		span.SetStatus(codes.Error, "plan aborted")
		return err
	}

	for _, path := range plan.KeyPaths {
		if !s.CheckQuota() {
			return nil
		}
		slog.Info("priority 2: key path", "path", path)
		if err := s.planStep(ctx, fmt.Sprintf("site:%s/%s", site, path)); err != nil {
			span.SetStatus(codes.Error, "plan aborted")
			return err
		}
	}

	for _, term := range plan.ProductTerms {
		if !s.CheckQuota() {
			return nil
		}
		slog.Info("priority 3: product term", "term", term)
		if err := s.planStep(ctx, fmt.Sprintf("site:%s %s", site, term)); err != nil {
			span.SetStatus(codes.Error, "plan aborted")
			return err
		}
	}

	collections := s.agg.DiscoveredCollections()
	if plan.ExploreLimit > 0 && len(collections) > plan.ExploreLimit {
		collections = collections[:plan.ExploreLimit]
	}
	for _, name := range collections {
		if !s.CheckQuota() {
			return nil
		}
		slog.Info("priority 4: exploring collection", "collection", name)
		if err := s.planStep(ctx, fmt.Sprintf("site:%s/collections/%s", site, name)); err != nil {
			span.SetStatus(codes.Error, "plan aborted")
			return err
		}
	}

	return nil
}

// planStep runs one plan query. Only quota exhaustion and context
// cancellation abort the plan.
func (s *Session) planStep(ctx context.Context, text string) error {
	_, err := s.Search(ctx, serp.Query{Text: text})
	switch {
	case err == nil:
	case err == serp.ErrQuotaExceeded:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		slog.Error("search failed, continuing plan", "query", text, "err", err)
		return nil
	}
	return s.sleep(ctx)
}

// Metadata assembles the snapshot header for the session's current
// state.
func (s *Session) Metadata() catalog.Metadata {
	return catalog.Metadata{
		RunID:        s.RunID,
		Provider:     s.opts.Provider.Name(),
		TargetSite:   s.opts.TargetSite,
		TotalQueries: s.totalQueries,
		TotalResults: s.totalResults,
		Timestamp:    s.StartedAt.Format("2006-01-02 15:04:05"),
		QuotaLimited: s.quotaLimited,
		QueriesUsed:  s.queryCount,
		QueriesLimit: s.opts.MaxQueries,
	}
}

func (s *Session) Snapshot() catalog.Snapshot {
	return s.agg.Snapshot(s.Metadata())
}

func (s *Session) Summary() catalog.Summary {
	return s.agg.Summarize(s.Metadata())
}

// SaveResults writes the snapshot document to path.
func (s *Session) SaveResults(path string) error {
	err := s.Snapshot().WriteFile(path)
	if err != nil {
		return err
	}
	slog.Info("results saved", "path", path)
	return nil
}

// SaveSummary writes the companion summary document to path.
func (s *Session) SaveSummary(path string) error {
	err := s.Summary().WriteFile(path)
	if err != nil {
		return err
	}
	slog.Info("summary saved", "path", path)
	return nil
}
