// Package storefront fetches product pages straight from the store
// and lifts their og:/product meta tags, so results from providers
// that report no pagemap can still be enriched before classification.
package storefront

import (
	"bytes"
	"context"
	"net/http/cookiejar"
	"net/url"
	"time"

	"storescout/lib/catalog"
	"storescout/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

type ClientOptions struct {
	BaseUrl string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	// 2 requests max per second
	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(2, 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

// Enrich fetches the result's URL and merges the page's meta tags
// into a copy of the result. Fields the result already carries are
// kept; only gaps are filled.
func (c *Client) Enrich(ctx context.Context, res catalog.Result) (catalog.Result, error) {
	ctx, span := tracer.Start(ctx, "client:Enrich")
	defer span.End()

	httpRes, err := c.Http.R().
		SetContext(ctx).
		Get(res.Link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return res, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(httpRes.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return res, err
	}

	meta := scrapeMeta(doc)
	if meta == nil {
		return res, nil
	}
	if res.Meta == nil {
		res.Meta = meta
		return res, nil
	}

	merged := *res.Meta
	fillGap(&merged.Description, meta.Description)
	fillGap(&merged.Type, meta.Type)
	fillGap(&merged.SiteName, meta.SiteName)
	fillGap(&merged.Price, meta.Price)
	fillGap(&merged.Currency, meta.Currency)
	fillGap(&merged.Availability, meta.Availability)
	fillGap(&merged.Image, meta.Image)
	res.Meta = &merged
	return res, nil
}

func fillGap(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func scrapeMeta(doc *goquery.Document) *catalog.Meta {
	content := func(property string) string {
		value, _ := doc.Find("meta[property='" + property + "']").Attr("content")
		return value
	}

	meta := &catalog.Meta{
		Description:  content("og:description"),
		Type:         content("og:type"),
		SiteName:     content("og:site_name"),
		Price:        content("og:price:amount"),
		Currency:     content("og:price:currency"),
		Availability: content("og:availability"),
		Image:        content("og:image"),
	}
	if meta.Description == "" {
		meta.Description, _ = doc.Find("meta[name='description']").Attr("content")
	}
	if meta.Price == "" {
		meta.Price = content("product:price:amount")
	}
	if meta.Currency == "" {
		meta.Currency = content("product:price:currency")
	}
	if meta.Availability == "" {
		meta.Availability = content("product:availability")
	}

	if *meta == (catalog.Meta{}) {
		return nil
	}
	return meta
}
