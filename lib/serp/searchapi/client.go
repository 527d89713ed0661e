// Package searchapi queries searchapi.io's google engine. Unlike the
// Custom Search API it reports no pagemap, so pricing only surfaces
// through rich snippet attributes.
package searchapi

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

// searchapi.io allows up to 100 results per request
const maxPerRequest = 100

type Client struct {
	http *resty.Client
	key  string
}

type ClientOptions struct {
	Key string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("searchapi key is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://www.searchapi.io"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{http: client, key: opts.Key}, nil
}

// NewClientFromEnv reads SEARCHAPI_KEY from the environment.
func NewClientFromEnv() (*Client, error) {
	return NewClient(ClientOptions{Key: os.Getenv("SEARCHAPI_KEY")})
}

func (c *Client) Name() string {
	return "searchapi"
}

type organicResult struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Snippet       string `json:"snippet"`
	DisplayedLink string `json:"displayed_link"`
	Position      int    `json:"position"`
	Thumbnail     string `json:"thumbnail"`
	RichSnippet   *struct {
		DetectedExtensions map[string]json.Number `json:"detected_extensions"`
		Attributes         []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"attributes"`
	} `json:"rich_snippet"`
}

type searchResponse struct {
	SearchInformation struct {
		TotalResults int64 `json:"total_results"`
	} `json:"search_information"`
	OrganicResults []organicResult `json:"organic_results"`
}

func (c *Client) Search(ctx context.Context, query serp.Query) (*serp.Page, error) {
	ctx, span := tracer.Start(ctx, "client:Search")
	defer span.End()

	num := query.Num
	if num <= 0 || num > maxPerRequest {
		num = maxPerRequest
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	country := query.Country
	if country == "" {
		country = "us"
	}
	language := query.Language
	if language == "" {
		language = "en"
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":       c.key,
			"engine":        "google",
			"q":             query.Text,
			"num":           strconv.Itoa(num),
			"page":          strconv.Itoa(page),
			"device":        "desktop",
			"google_domain": "google.com",
			"gl":            country,
			"hl":            language,
		}).
		Get("/api/v1/search")
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

	out := &serp.Page{TotalResults: data.SearchInformation.TotalResults}
	for _, item := range data.OrganicResults {
		out.Results = append(out.Results, normalizeResult(item))
	}
	return out, nil
}

func normalizeResult(item organicResult) catalog.Result {
	out := catalog.Result{
		Title:       item.Title,
		Link:        item.Link,
		Snippet:     item.Snippet,
		DisplayLink: item.DisplayedLink,
		Position:    item.Position,
		Image:       item.Thumbnail,
	}
	if item.RichSnippet == nil {
		return out
	}

	attributes := map[string]string{}
	for key, value := range item.RichSnippet.DetectedExtensions {
		attributes[key] = value.String()
	}
	for _, attr := range item.RichSnippet.Attributes {
		if attr.Name == "" {
			continue
		}
		attributes[attr.Name] = attr.Value

		switch strings.ToLower(attr.Name) {
		case "price", "cost":
			out.Meta = &catalog.Meta{Price: attr.Value}
		}
	}
	if len(attributes) > 0 {
		out.Attributes = attributes
	}
	return out
}
