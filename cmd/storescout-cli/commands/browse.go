package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"storescout/lib/browser"
	"storescout/lib/captcha"
	liboverview "storescout/lib/overview"
	"storescout/lib/serviceutil"
	"storescout/services/overview"

	"github.com/mazen160/go-random"
	"github.com/spf13/cobra"
)

var (
	browseHeadless   *bool
	browseProxies    *[]string
	browseDebugDir   *string
	browseMaxQueries *int
	browseOut        *string
)

func init() {
	browseHeadless = browseCmd.Flags().Bool("headless", true, "Run the browser headless.")
	browseProxies = browseCmd.Flags().StringArray("proxy", nil, "Proxy pool entry in user:pass@host:port form. Repeatable.")
	browseDebugDir = browseCmd.Flags().String("debug-dir", "debug", "Directory for screenshots and page dumps of missed overviews.")
	browseMaxQueries = browseCmd.Flags().Int("max-queries", 20, "Query budget for the session.")
	browseOut = browseCmd.Flags().String("out", "ai_overviews_browser.json", "The file to append overview records to.")
	rootCmd.AddCommand(browseCmd)
}

var browseCmd = &cobra.Command{
	Use:   "browse [--proxy user:pass@host:port ...]",
	Short: "Scrapes Google AI overviews with a headless browser instead of a SERP API.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		proxies, err := browser.ParseProxies(*browseProxies)
		if err != nil {
			serviceutil.Fatal("failed to parse proxy pool", err)
		}

		var solver *captcha.Client
		if os.Getenv("CAPTCHA_API_KEY") != "" {
			solver, err = captcha.NewClientFromEnv()
			if err != nil {
				serviceutil.Fatal("failed to initialize captcha solver", err)
			}
		} else {
			slog.Warn("CAPTCHA_API_KEY not set, captcha challenges will fail the fetch")
		}

		fetcher := browser.NewFetcher(browser.Options{
			Headless: *browseHeadless,
			Proxies:  proxies,
			Solver:   solver,
			DebugDir: *browseDebugDir,
		})

		session, err := overview.NewSession(overview.Options{
			Extractor:  fetcher,
			MaxQueries: *browseMaxQueries,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize session", err)
		}
		session.Resume(overview.LoadRecords(*browseOut))

		readQueries(func(query string) bool {
			record, err := session.Fetch(ctx, query)
			switch {
			case errors.Is(err, liboverview.ErrNotFound):
				fmt.Println("No AI Overview captured; debug artifacts saved.")
			case err != nil:
				slog.Error("fetch failed", "query", query, "err", err)
				if ctx.Err() != nil {
					return false
				}
			case record != nil:
				preview := truncate(record.PlainText, 500)
				fmt.Printf("Overview text:\n%s\n", preview)
				if err := session.Save(*browseOut); err != nil {
					slog.Error("failed to save results", "err", err)
				}
			}

			if !session.CheckQuota() {
				fmt.Println("Query limit reached.")
				return false
			}

			// long irregular pauses keep the browser traffic from
			// looking machine-paced
			pauseSec, err := random.IntRange(13, 28)
			if err != nil {
				pauseSec = 13
			}
			slog.Info("sleeping before next request", "seconds", pauseSec)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Duration(pauseSec) * time.Second):
			}
			return true
		})

		summary := session.Summary()
		slog.Info("session finished",
			"extractor", summary.Extractor,
			"queries", fmt.Sprintf("%d/%d", summary.TotalQueries, summary.QueryLimit),
			"overviews", summary.TotalOverviews,
		)
	},
}
