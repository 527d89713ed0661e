package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"storescout/lib/catalog"
	"storescout/lib/runstore"
	"storescout/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	summarySnapshot *string
	summaryRunsDb   *string
)

func init() {
	summarySnapshot = summaryCmd.Flags().String("snapshot", "", "Snapshot file to summarize.")
	summaryRunsDb = summaryCmd.Flags().String("runs-db", "", "Run history database to list.")
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary [--snapshot file.json] [--runs-db runs.db]",
	Short: "Prints a table summary of a crawl snapshot or the run history.",
	Run: func(cmd *cobra.Command, args []string) {
		if *summarySnapshot == "" && *summaryRunsDb == "" {
			fmt.Fprintln(os.Stderr, "nothing to summarize: pass --snapshot and/or --runs-db")
			os.Exit(1)
		}
		if *summarySnapshot != "" {
			summarizeSnapshot(*summarySnapshot)
		}
		if *summaryRunsDb != "" {
			summarizeRuns(*summaryRunsDb)
		}
	},
}

func summarizeSnapshot(path string) {
	snap, err := catalog.ReadSnapshot(path)
	if err != nil {
		serviceutil.Fatal("failed to read snapshot", err)
	}

	meta := snap.Metadata
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Crawl of %s (%s)", meta.TargetSite, meta.Provider)
	t.AppendRows([]table.Row{
		{"Run", meta.RunID},
		{"Timestamp", meta.Timestamp},
		{"Queries used", fmt.Sprintf("%d/%d", meta.QueriesUsed, meta.QueriesLimit)},
		{"Quota limited", meta.QuotaLimited},
		{"Total results", meta.TotalResults},
		{"Collections", len(snap.Collections)},
		{"Products", len(snap.Products)},
		{"Categories", len(snap.Categories)},
		{"Pages", len(snap.Pages)},
		{"Unique URLs", len(meta.ProcessedURLs)},
	})
	t.Render()

	if len(snap.Collections) == 0 {
		return
	}
	ct := table.NewWriter()
	ct.SetOutputMirror(os.Stdout)
	ct.AppendHeader(table.Row{"Collection", "Products", "URL"})
	for _, name := range meta.DiscoveredCollections {
		coll, ok := snap.Collections[name]
		if !ok {
			continue
		}
		ct.AppendRow(table.Row{coll.Name, len(coll.Products), coll.URL})
	}
	ct.Render()
}

func summarizeRuns(path string) {
	store, err := runstore.Open(path)
	if err != nil {
		serviceutil.Fatal("failed to open run history", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background())
	if err != nil {
		serviceutil.Fatal("failed to list runs", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Started", "Provider", "Site", "Queries", "Results", "Collections", "Products", "Quota limited"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.StartedAt.Format(time.DateTime),
			run.Provider,
			run.TargetSite,
			fmt.Sprintf("%d/%d", run.QueriesUsed, run.QueriesLimit),
			run.TotalResults,
			run.CollectionsFound,
			run.ProductsFound,
			run.QuotaLimited,
		})
	}
	t.Render()
}
