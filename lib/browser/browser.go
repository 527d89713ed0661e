// Package browser drives a headless Chrome through a Google search
// and scrapes the rendered AI-overview block directly, as a fallback
// for queries where the SERP APIs return nothing.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storescout/lib/captcha"
	"storescout/lib/overview"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("storescout.lib.browser")

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 12_3) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// overviewSelectors are tried in order; Google reshuffles these
// attributes regularly so a text-content scan backs them up.
var overviewSelectors = []string{
	`div[data-md="311"]`,
	`div[data-attrid*="ai_overview"]`,
	`div[aria-label*="AI Overview"]`,
}

type Options struct {
	Headless  bool
	UserAgent string
	// Proxies is an optional pool; one is picked at random per fetch.
	Proxies []Proxy
	// Solver handles reCAPTCHA challenges when set. Without it a
	// challenge page fails the fetch.
	Solver *captcha.Client
	// DebugDir receives a screenshot and page dump when no overview
	// block is found.
	DebugDir string
}

type Fetcher struct {
	opts Options
}

func NewFetcher(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Fetcher{opts: opts}
}

func (f *Fetcher) Name() string {
	return "browser"
}

func (f *Fetcher) pickProxy() *Proxy {
	if len(f.opts.Proxies) == 0 {
		return nil
	}
	idx, err := random.IntRange(0, len(f.opts.Proxies))
	if err != nil {
		idx = 0
	}
	return &f.opts.Proxies[idx]
}

func randomSleep(minMs, maxMs int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ms, err := random.IntRange(minMs, maxMs)
		if err != nil {
			ms = minMs
		}
		return chromedp.Sleep(time.Duration(ms) * time.Millisecond).Do(ctx)
	})
}

// FetchOverview opens a fresh browser, searches Google for the query
// and extracts the AI-overview block.
func (f *Fetcher) FetchOverview(ctx context.Context, query string) (*overview.Record, error) {
	ctx, span := tracer.Start(ctx, "fetcher:FetchOverview")
	defer span.End()

	proxy := f.pickProxy()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("window-size", "1320,850"),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(f.opts.UserAgent),
	)
	if proxy != nil {
		slog.Info("using proxy", "server", proxy.Server(), "query", query)
		opts = append(opts, chromedp.Flag("proxy-server", proxy.Server()))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if proxy != nil && proxy.Username != "" {
		handleProxyAuth(browserCtx, proxy)
	}

	searchURL := fmt.Sprintf(
		"https://www.google.com/search?q=%s&hl=en",
		url.QueryEscape(query),
	)

	var html string
	err := chromedp.Run(browserCtx,
		enableAuthDomain(proxy),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		randomSleep(3000, 6000),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return nil, err
	}

	if isChallengePage(html) {
		html, err = f.solveChallenge(browserCtx, query, proxy, html)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "captcha solve failed")
			return nil, err
		}
	}

	blockHTML, err := findOverviewBlock(browserCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "block query failed")
		return nil, err
	}
	if blockHTML == "" {
		f.saveDebugArtifacts(browserCtx, query, html)
		span.SetStatus(codes.Error, "no overview block found")
		return nil, overview.ErrNotFound
	}

	record, err := parseOverviewBlock(blockHTML)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse block")
		return nil, err
	}
	record.Query = query
	record.ExtractedAt = time.Now()
	if proxy != nil {
		record.ProxyUsed = proxy.Server()
	}
	return record, nil
}

// enableAuthDomain turns on the fetch domain so proxy auth challenges
// can be answered. A no-op without authenticated proxies.
func enableAuthDomain(proxy *Proxy) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if proxy == nil || proxy.Username == "" {
			return nil
		}
		return fetch.Enable().WithHandleAuthRequests(true).Do(ctx)
	})
}

func handleProxyAuth(ctx context.Context, proxy *Proxy) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				err := chromedp.Run(ctx,
					fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
						Response: fetch.AuthChallengeResponseResponseProvideCredentials,
						Username: proxy.Username,
						Password: proxy.Password,
					}),
				)
				if err != nil {
					slog.Warn("proxy auth failed", "err", err)
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				err := chromedp.Run(ctx, fetch.ContinueRequest(ev.RequestID))
				if err != nil {
					slog.Warn("failed to continue paused request", "err", err)
				}
			}()
		}
	})
}

func isChallengePage(html string) bool {
	return strings.Contains(html, "recaptcha") || strings.Contains(html, "I'm not a robot")
}

func (f *Fetcher) solveChallenge(ctx context.Context, query string, proxy *Proxy, html string) (string, error) {
	if f.opts.Solver == nil {
		return "", fmt.Errorf("hit a captcha for %q and no solver is configured", query)
	}

	sitekey := captcha.ExtractSiteKey(html)
	if sitekey == "" {
		return "", fmt.Errorf("captcha page for %q carries no sitekey", query)
	}
	slog.Warn("captcha encountered", "query", query, "sitekey", sitekey)

	var pageURL string
	err := chromedp.Run(ctx, chromedp.Location(&pageURL))
	if err != nil {
		return "", err
	}

	req := captcha.SolveRequest{
		SiteKey:   sitekey,
		PageURL:   pageURL,
		UserAgent: f.opts.UserAgent,
	}
	if proxy != nil {
		req.Proxy = &captcha.Proxy{
			Host:     proxy.Host,
			Port:     proxy.Port,
			Username: proxy.Username,
			Password: proxy.Password,
		}
	}
	token, err := f.opts.Solver.SolveRecaptcha(ctx, req)
	if err != nil {
		return "", err
	}
	slog.Info("captcha solved", "query", query)

	var refreshed string
	err = chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(injectTokenScript, token), nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Reload(),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		randomSleep(4000, 7000),
		chromedp.OuterHTML("html", &refreshed, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return refreshed, nil
}

func findOverviewBlock(ctx context.Context) (string, error) {
	for _, selector := range overviewSelectors {
		script := fmt.Sprintf(
			`(function() { const el = document.querySelector(%q); return el ? el.outerHTML : ''; })();`,
			selector,
		)
		var blockHTML string
		err := chromedp.Run(ctx, chromedp.Evaluate(script, &blockHTML))
		if err != nil {
			return "", err
		}
		if blockHTML != "" {
			return blockHTML, nil
		}
	}

	var blockHTML string
	err := chromedp.Run(ctx, chromedp.Evaluate(findOverviewByTextScript, &blockHTML))
	if err != nil {
		return "", err
	}
	return blockHTML, nil
}

// parseOverviewBlock lifts the plain text and hyperlinks out of the
// block's HTML.
func parseOverviewBlock(blockHTML string) (*overview.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(blockHTML))
	if err != nil {
		return nil, err
	}

	record := &overview.Record{
		HTML:      blockHTML,
		PlainText: strings.TrimSpace(doc.Text()),
	}
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		record.Hyperlinks = append(record.Hyperlinks, overview.Link{
			Text: strings.TrimSpace(sel.Text()),
			URL:  href,
		})
	})
	return record, nil
}

func (f *Fetcher) saveDebugArtifacts(ctx context.Context, query, html string) {
	if f.opts.DebugDir == "" {
		return
	}
	err := os.MkdirAll(f.opts.DebugDir, 0755)
	if err != nil {
		slog.Warn("failed to create debug dir", "err", err)
		return
	}

	name := strings.ReplaceAll(query, " ", "_")

	var screenshot []byte
	err = chromedp.Run(ctx, chromedp.FullScreenshot(&screenshot, 90))
	if err != nil {
		slog.Warn("failed to capture debug screenshot", "query", query, "err", err)
	} else {
		path := filepath.Join(f.opts.DebugDir, "debug_"+name+".png")
		if err := os.WriteFile(path, screenshot, 0644); err != nil {
			slog.Warn("failed to write debug screenshot", "path", path, "err", err)
		}
	}

	path := filepath.Join(f.opts.DebugDir, "debug_"+name+".html")
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		slog.Warn("failed to write debug page", "path", path, "err", err)
	}
}
