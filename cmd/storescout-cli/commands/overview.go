package commands

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	liboverview "storescout/lib/overview"
	"storescout/lib/serp"
	"storescout/lib/serp/scraperapi"
	"storescout/lib/serp/serpapi"
	"storescout/lib/serviceutil"
	"storescout/services/overview"

	"github.com/spf13/cobra"
)

var (
	overviewProvider   *string
	overviewMaxQueries *int
	overviewOut        *string
)

func init() {
	overviewProvider = overviewCmd.Flags().String("provider", "serpapi", "Extraction backend (serpapi or scraperapi).")
	overviewMaxQueries = overviewCmd.Flags().Int("max-queries", 20, "Query budget for the session.")
	overviewOut = overviewCmd.Flags().String("out", "ai_overviews.json", "The file to append overview records to.")
	rootCmd.AddCommand(overviewCmd)
}

func newOverviewExtractor(name string) (liboverview.Extractor, error) {
	switch name {
	case "serpapi":
		return serpapi.NewClientFromEnv()
	case "scraperapi":
		return scraperapi.NewClientFromEnv()
	default:
		return nil, fmt.Errorf("unknown provider %q (expected serpapi or scraperapi)", name)
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// readQueries walks stdin until a sentinel word or EOF ends the loop.
func readQueries(handle func(query string) bool) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nEnter a Google query (or 'exit' to stop): ")
		if !scanner.Scan() {
			return
		}
		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "", "exit", "quit", "done":
			fmt.Println("Goodbye!")
			return
		}
		if !handle(query) {
			return
		}
	}
}

var overviewCmd = &cobra.Command{
	Use:   "overview [--provider serpapi|scraperapi]",
	Short: "Interactively extracts Google AI overviews through a SERP API.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		extractor, err := newOverviewExtractor(*overviewProvider)
		if err != nil {
			serviceutil.Fatal("failed to initialize extractor", err)
		}

		session, err := overview.NewSession(overview.Options{
			Extractor:  extractor,
			MaxQueries: *overviewMaxQueries,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize session", err)
		}
		session.Resume(overview.LoadRecords(*overviewOut))

		readQueries(func(query string) bool {
			record, err := session.Fetch(ctx, query)
			switch {
			case errors.Is(err, serp.ErrQuotaExceeded):
				fmt.Println("Query limit reached.")
				return false
			case errors.Is(err, liboverview.ErrNotFound):
				fmt.Println("No AI Overview returned for this query.")
				return true
			case err != nil:
				slog.Error("extraction failed", "query", query, "err", err)
				return ctx.Err() == nil
			case record == nil:
				// repeat query, nothing new to save
				return true
			}

			preview := record.Content
			if preview == "" && record.Raw != nil {
				preview = string(record.Raw)
			}
			preview = truncate(preview, 400)
			if preview == "" {
				fmt.Println("No AI Overview field found; full SERP saved.")
			} else {
				fmt.Printf("AI Overview: %s\n", preview)
			}

			if err := session.Save(*overviewOut); err != nil {
				slog.Error("failed to save results", "err", err)
			}
			return true
		})

		summary := session.Summary()
		slog.Info("session finished",
			"extractor", summary.Extractor,
			"queries", fmt.Sprintf("%d/%d", summary.TotalQueries, summary.QueryLimit),
			"overviews", summary.TotalOverviews,
			"quota_limited", summary.QuotaLimited,
		)
	},
}
