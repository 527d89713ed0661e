package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storescout/lib/runstore"
	"storescout/lib/serp"
	"storescout/lib/serp/googlecse"
	"storescout/lib/serp/searchapi"
	"storescout/lib/serviceutil"
	"storescout/lib/storefront"
	"storescout/services/crawler"

	"github.com/spf13/cobra"
)

var (
	crawlProvider   *string
	crawlSite       *string
	crawlMaxQueries *int
	crawlEnrich     *bool
	crawlOut        *string
	crawlSummary    *string
	crawlRunsDb     *string
	crawlKeyPaths   *[]string
	crawlTerms      *[]string
)

func init() {
	crawlProvider = crawlCmd.Flags().String("provider", "google", "SERP provider to crawl with (google or searchapi).")
	crawlSite = crawlCmd.Flags().String("site", "", "Target storefront domain, e.g. mykitsch.com.")
	crawlMaxQueries = crawlCmd.Flags().Int("max-queries", 50, "Query budget for the run.")
	crawlEnrich = crawlCmd.Flags().Bool("enrich", false, "Fetch product pages from the storefront to fill metadata gaps.")
	crawlOut = crawlCmd.Flags().String("out", "site_data.json", "The file to write the catalog snapshot to.")
	crawlSummary = crawlCmd.Flags().String("summary", "search_summary.json", "The file to write the run summary to.")
	crawlRunsDb = crawlCmd.Flags().String("runs-db", "", "Optional SQLite file recording run history.")
	crawlKeyPaths = crawlCmd.Flags().StringArray("key-path", nil, "Override the default key site paths to search.")
	crawlTerms = crawlCmd.Flags().StringArray("term", nil, "Override the default product terms to search.")
	crawlCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(crawlCmd)
}

func newCrawlProvider(name string) (serp.Provider, error) {
	switch name {
	case "google":
		return googlecse.NewClientFromEnv()
	case "searchapi":
		return searchapi.NewClientFromEnv()
	default:
		return nil, fmt.Errorf("unknown provider %q (expected google or searchapi)", name)
	}
}

var crawlCmd = &cobra.Command{
	Use:   "crawl --site <domain> [--provider google|searchapi]",
	Short: "Crawls a storefront's catalog through a SERP provider and writes a classified snapshot.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		provider, err := newCrawlProvider(*crawlProvider)
		if err != nil {
			serviceutil.Fatal("failed to initialize provider", err)
		}

		// the probe costs one query but catches bad credentials
		// before the plan burns budget on them
		if probe, ok := provider.(interface{ TestConnection(context.Context) error }); ok {
			probeCtx, cancel := context.WithTimeout(ctx, time.Second*30)
			err := probe.TestConnection(probeCtx)
			cancel()
			if err != nil {
				serviceutil.Fatal("api connection test failed", err)
			}
			slog.Info("api connection test passed")
		}

		opts := crawler.Options{
			Provider:   provider,
			TargetSite: *crawlSite,
			MaxQueries: *crawlMaxQueries,
			Delay:      time.Second,
		}
		if *crawlEnrich {
			enricher, err := storefront.NewClient(storefront.ClientOptions{
				BaseUrl: "https://" + *crawlSite,
			})
			if err != nil {
				serviceutil.Fatal("failed to initialize storefront client", err)
			}
			opts.Enricher = enricher
		}

		session, err := crawler.NewSession(opts)
		if err != nil {
			serviceutil.Fatal("failed to initialize session", err)
		}

		plan := crawler.DefaultPlan()
		if len(*crawlKeyPaths) > 0 {
			plan.KeyPaths = *crawlKeyPaths
		}
		if len(*crawlTerms) > 0 {
			plan.ProductTerms = *crawlTerms
		}

		err = session.RunPlan(ctx, plan)
		if err != nil && !errors.Is(err, serp.ErrQuotaExceeded) {
			serviceutil.Fatal("crawl failed", err)
		}

		if err := session.SaveResults(*crawlOut); err != nil {
			serviceutil.Fatal("failed to save results", err)
		}
		if err := session.SaveSummary(*crawlSummary); err != nil {
			serviceutil.Fatal("failed to save summary", err)
		}
		if *crawlRunsDb != "" {
			recordCrawlRun(session, *crawlRunsDb)
		}

		summary := session.Summary()
		slog.Info("crawl finished",
			"queries", fmt.Sprintf("%d/%d", summary.TotalQueries, summary.QueryLimit),
			"quota_limited", summary.QuotaLimited,
			"results", summary.TotalResults,
			"collections", summary.CollectionsFound,
			"products", summary.ProductsFound,
			"categories", summary.CategoriesFound,
			"pages", summary.PagesFound,
			"unique_urls", summary.UniqueURLs,
		)
	},
}

func recordCrawlRun(session *crawler.Session, path string) {
	store, err := runstore.Open(path)
	if err != nil {
		slog.Error("failed to open run history", "path", path, "err", err)
		return
	}
	defer store.Close()

	meta := session.Metadata()
	summary := session.Summary()
	err = store.RecordRun(context.Background(), runstore.Run{
		ID:               session.RunID,
		Provider:         meta.Provider,
		TargetSite:       meta.TargetSite,
		QueriesUsed:      meta.QueriesUsed,
		QueriesLimit:     meta.QueriesLimit,
		TotalResults:     meta.TotalResults,
		CollectionsFound: summary.CollectionsFound,
		ProductsFound:    summary.ProductsFound,
		CategoriesFound:  summary.CategoriesFound,
		PagesFound:       summary.PagesFound,
		QuotaLimited:     meta.QuotaLimited,
		StartedAt:        session.StartedAt,
		FinishedAt:       time.Now(),
	})
	if err != nil {
		slog.Error("failed to record run", "err", err)
	}
}
