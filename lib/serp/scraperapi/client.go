// Package scraperapi fetches Google SERPs through api.scraperapi.com's
// structured search endpoint. The parsed document has no stable slot
// for AI-overview material, so the client scans for it and always
// keeps the full SERP for manual inspection.
package scraperapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"storescout/lib/overview"
	"storescout/lib/restyutil"
	"storescout/lib/serp"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

type Client struct {
	http *resty.Client
	key  string

	Country  string
	Language string
}

type ClientOptions struct {
	Key      string
	Country  string
	Language string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("scraperapi key is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.scraperapi.com"
	}
	country := opts.Country
	if country == "" {
		country = "us"
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(time.Second * 70)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		http:     client,
		key:      opts.Key,
		Country:  country,
		Language: language,
	}, nil
}

// NewClientFromEnv reads SCRAPERAPI_KEY from the environment.
func NewClientFromEnv() (*Client, error) {
	return NewClient(ClientOptions{Key: os.Getenv("SCRAPERAPI_KEY")})
}

func (c *Client) Name() string {
	return "scraperapi"
}

// FetchOverview fetches the structured SERP and scans it for
// AI-overview material. A record is returned even when none is found,
// carrying the full SERP so the miss can be inspected later.
func (c *Client) FetchOverview(ctx context.Context, query string) (*overview.Record, error) {
	ctx, span := tracer.Start(ctx, "client:FetchOverview")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":   c.key,
			"autoparse": "true",
			"country":   c.Country,
			"query":     query,
			"hl":        c.Language,
		}).
		Get("/structured/google/search")
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

	var fields map[string]json.RawMessage
	err = json.Unmarshal(res.Body(), &fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal response")
		return nil, err
	}

	record := &overview.Record{
		Query:       query,
		ExtractedAt: time.Now(),
		FullSERP:    json.RawMessage(res.Body()),
		Raw:         findOverview(fields),
	}
	return record, nil
}

// findOverview scans top-level keys, then organic results, for a
// field that carries AI-overview or generative-answer content.
func findOverview(fields map[string]json.RawMessage) json.RawMessage {
	for key, value := range fields {
		if strings.Contains(key, "ai_overview") || strings.Contains(key, "generative") {
			return value
		}
	}

	organic, ok := fields["organic_results"]
	if !ok {
		return nil
	}
	var results []map[string]json.RawMessage
	if json.Unmarshal(organic, &results) != nil {
		return nil
	}
	for _, result := range results {
		if block, ok := result["ai_overview"]; ok {
			return block
		}
		if block, ok := result["generative"]; ok {
			return block
		}
	}
	return nil
}
