// Package googlecse queries the Google Custom Search JSON API and
// normalizes its items, including pagemap metatags and structured
// product/offer blocks, into catalog results.
package googlecse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"storescout/lib/catalog"
	"storescout/lib/restyutil"
	"storescout/lib/serp"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// the API caps num at 10 results per request
const maxPerRequest = 10

type Client struct {
	http           *resty.Client
	key            string
	searchEngineID string
}

type ClientOptions struct {
	Key            string
	SearchEngineID string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("google search api key is required")
	}
	if opts.SearchEngineID == "" {
		return nil, fmt.Errorf("google search engine id is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://www.googleapis.com"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		http:           client,
		key:            opts.Key,
		searchEngineID: opts.SearchEngineID,
	}, nil
}

// NewClientFromEnv reads GOOGLE_SEARCH_API_KEY and
// GOOGLE_SEARCH_ENGINE_ID from the environment.
func NewClientFromEnv() (*Client, error) {
	return NewClient(ClientOptions{
		Key:            os.Getenv("GOOGLE_SEARCH_API_KEY"),
		SearchEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
	})
}

func (c *Client) Name() string {
	return "google"
}

type searchItem struct {
	Title        string  `json:"title"`
	Link         string  `json:"link"`
	Snippet      string  `json:"snippet"`
	HtmlSnippet  string  `json:"htmlSnippet"`
	DisplayLink  string  `json:"displayLink"`
	FormattedUrl string  `json:"formattedUrl"`
	Pagemap      pagemap `json:"pagemap"`
}

type pagemap struct {
	CseImage []struct {
		Src string `json:"src"`
	} `json:"cse_image"`
	Metatags []map[string]string `json:"metatags"`
	Product  []map[string]string `json:"product"`
	Offer    []map[string]string `json:"offer"`
}

type searchResponse struct {
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
	Items []searchItem `json:"items"`
}

func (c *Client) Search(ctx context.Context, query serp.Query) (*serp.Page, error) {
	ctx, span := tracer.Start(ctx, "client:Search")
	defer span.End()

	num := query.Num
	if num <= 0 || num > maxPerRequest {
		num = maxPerRequest
	}
	start := query.Start
	if start <= 0 {
		start = 1
	}

	params := map[string]string{
		"key":   c.key,
		"cx":    c.searchEngineID,
		"q":     query.Text,
		"num":   strconv.Itoa(num),
		"start": strconv.Itoa(start),
	}
	if query.SearchType != "" {
		params["searchType"] = query.SearchType
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/customsearch/v1")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	if res.StatusCode() == http.StatusTooManyRequests {
		span.SetStatus(codes.Error, "quota exceeded")
		return nil, serp.ErrQuotaExceeded
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, &serp.StatusError{
			StatusCode: res.StatusCode(),
			Body:       res.String(),
		}
	}

	var data searchResponse
	err = json.Unmarshal(res.Body(), &data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal response")
		return nil, err
	}

	page := &serp.Page{}
	page.TotalResults, _ = strconv.ParseInt(data.SearchInformation.TotalResults, 10, 64)
	for _, item := range data.Items {
		page.Results = append(page.Results, normalizeItem(item))
	}
	return page, nil
}

// TestConnection issues a cheap one-result probe. It counts against the
// daily quota.
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:TestConnection")
	defer span.End()

	_, err := c.Search(ctx, serp.Query{Text: "test", Num: 1})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe query failed")
	}
	return err
}

func normalizeItem(item searchItem) catalog.Result {
	out := catalog.Result{
		Title:        item.Title,
		Link:         item.Link,
		Snippet:      item.Snippet,
		HTMLSnippet:  item.HtmlSnippet,
		DisplayLink:  item.DisplayLink,
		FormattedURL: item.FormattedUrl,
	}

	if len(item.Pagemap.CseImage) > 0 {
		out.Image = item.Pagemap.CseImage[0].Src
	}

	if len(item.Pagemap.Metatags) > 0 {
		tags := item.Pagemap.Metatags[0]
		description := tags["og:description"]
		if description == "" {
			description = tags["description"]
		}
		out.Meta = &catalog.Meta{
			Description:  description,
			Type:         tags["og:type"],
			SiteName:     tags["og:site_name"],
			Price:        tags["og:price:amount"],
			Currency:     tags["og:price:currency"],
			Availability: tags["og:availability"],
			Image:        tags["og:image"],
		}
	}

	if len(item.Pagemap.Product) > 0 {
		product := item.Pagemap.Product[0]
		out.Product = &catalog.ProductMarkup{
			Name:         product["name"],
			Description:  product["description"],
			Price:        product["price"],
			Availability: product["availability"],
			SKU:          product["sku"],
			Brand:        product["brand"],
		}
	}

	if len(item.Pagemap.Offer) > 0 {
		offer := item.Pagemap.Offer[0]
		out.Offer = &catalog.OfferMarkup{
			Price:        offer["price"],
			Currency:     offer["pricecurrency"],
			Availability: offer["availability"],
		}
	}

	return out
}

// IsProductPage reports whether a result's og:type marks it as a
// product page.
func IsProductPage(res catalog.Result) bool {
	return res.Meta != nil && strings.Contains(strings.ToLower(res.Meta.Type), "product")
}
