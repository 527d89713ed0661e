package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"storescout/lib/captcha"
	"storescout/lib/restyutil"
	"storescout/lib/serp/googlecse"
	"storescout/lib/serp/scraperapi"
	"storescout/lib/serp/searchapi"
	"storescout/lib/serp/serpapi"
	"storescout/lib/storefront"
	"storescout/lib/telemetry"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose      *bool
	restyDumpDir *string
)

var rootCmd = &cobra.Command{
	Use:   "storescout-cli",
	Short: "storescout-cli maps storefront catalogs through search APIs and captures Google AI overviews.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		if *restyDumpDir != "" {
			setRestyDumpDir(*restyDumpDir)
		}
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", "err", err)
		}
	},
}

// setRestyDumpDir fans a filesystem request-dump output out to every
// http client package, one subdirectory each. Must run before the
// commands construct their clients.
func setRestyDumpDir(dir string) {
	googlecse.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(filepath.Join(dir, "googlecse")))
	searchapi.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(filepath.Join(dir, "searchapi")))
	serpapi.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(filepath.Join(dir, "serpapi")))
	scraperapi.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(filepath.Join(dir, "scraperapi")))
	captcha.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(filepath.Join(dir, "captcha")))
	storefront.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(filepath.Join(dir, "storefront")))
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
	restyDumpDir = rootCmd.PersistentFlags().String("resty-dump-dir", "", "Dump every http request/response to per-client subdirectories of this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
