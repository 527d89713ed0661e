// Package serpapi queries serpapi.com's google engine, both for plain
// organic results and for AI-overview extraction.
package serpapi

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
	"storescout/lib/overview"
	"storescout/lib/restyutil"
	"storescout/lib/serp"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

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
		return nil, fmt.Errorf("serpapi key is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://serpapi.com"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(time.Second * 60)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{http: client, key: opts.Key}, nil
}

// NewClientFromEnv reads SERPAPI_KEY from the environment.
func NewClientFromEnv() (*Client, error) {
	return NewClient(ClientOptions{Key: os.Getenv("SERPAPI_KEY")})
}

func (c *Client) Name() string {
	return "serpapi"
}

type organicResult struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Snippet       string `json:"snippet"`
	DisplayedLink string `json:"displayed_link"`
	Position      int    `json:"position"`
	Thumbnail     string `json:"thumbnail"`
}

type searchResponse struct {
	SearchInformation struct {
		TotalResults int64 `json:"total_results"`
	} `json:"search_information"`
	OrganicResults []organicResult `json:"organic_results"`

	AIOverview     json.RawMessage `json:"ai_overview"`
	KnowledgeGraph *struct {
		Description string `json:"description"`
		Source      struct {
			Link string `json:"link"`
		} `json:"source"`
	} `json:"knowledge_graph"`
	AnswerBox *struct {
		Answer                  string   `json:"answer"`
		Snippet                 string   `json:"snippet"`
		SnippetHighlightedWords []string `json:"snippet_highlighted_words"`
		Link                    string   `json:"link"`
	} `json:"answer_box"`
	FeaturedSnippet *struct {
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"featured_snippet"`
	RelatedQuestions []struct {
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"related_questions"`
}

func (c *Client) search(ctx context.Context, query serp.Query) (*searchResponse, error) {
	params := map[string]string{
		"api_key":       c.key,
		"engine":        "google",
		"q":             query.Text,
		"google_domain": "google.com",
		"gl":            "us",
		"hl":            "en",
	}
	if query.Country != "" {
		params["gl"] = query.Country
	}
	if query.Language != "" {
		params["hl"] = query.Language
	}
	if query.Num > 0 {
		params["num"] = strconv.Itoa(query.Num)
	}
	if query.Start > 1 {
		params["start"] = strconv.Itoa(query.Start - 1)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/search")
	if err != nil {
		return nil, err
	}
	if res.StatusCode() == http.StatusTooManyRequests {
		return nil, serp.ErrQuotaExceeded
	}
	if res.StatusCode() != http.StatusOK {
		return nil, &serp.StatusError{
			StatusCode: res.StatusCode(),
			Body:       res.String(),
		}
	}

	var data searchResponse
	err = json.Unmarshal(res.Body(), &data)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) Search(ctx context.Context, query serp.Query) (*serp.Page, error) {
	ctx, span := tracer.Start(ctx, "client:Search")
	defer span.End()

	data, err := c.search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	page := &serp.Page{TotalResults: data.SearchInformation.TotalResults}
	for _, item := range data.OrganicResults {
		page.Results = append(page.Results, catalog.Result{
			Title:       item.Title,
			Link:        item.Link,
			Snippet:     item.Snippet,
			DisplayLink: item.DisplayedLink,
			Position:    item.Position,
			Image:       item.Thumbnail,
		})
	}
	return page, nil
}

// FetchOverview searches for the query and extracts AI-overview
// material, starting with the dedicated ai_overview block and falling
// back through the response features that tend to carry it.
func (c *Client) FetchOverview(ctx context.Context, query string) (*overview.Record, error) {
	ctx, span := tracer.Start(ctx, "client:FetchOverview")
	defer span.End()

	data, err := c.search(ctx, serp.Query{Text: query})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	record := extractOverview(data)
	if record == nil {
		span.SetStatus(codes.Error, "no overview in response")
		return nil, overview.ErrNotFound
	}
	record.Query = query
	record.ExtractedAt = time.Now()
	return record, nil
}

func extractOverview(data *searchResponse) *overview.Record {
	if len(data.AIOverview) > 0 && string(data.AIOverview) != "null" {
		record := &overview.Record{Raw: data.AIOverview}

		// the block's shape varies; summary and text are the common
		// free-text fields
		var fields struct {
			Summary string `json:"summary"`
			Text    string `json:"text"`
		}
		if json.Unmarshal(data.AIOverview, &fields) == nil {
			record.Content = fields.Summary
			if record.Content == "" {
				record.Content = fields.Text
			}
		}
		return record
	}

	if kg := data.KnowledgeGraph; kg != nil && kg.Description != "" {
		record := &overview.Record{Content: kg.Description}
		if kg.Source.Link != "" {
			record.Links = []string{kg.Source.Link}
		}
		return record
	}

	if answer := data.AnswerBox; answer != nil {
		content := answer.Answer
		if content == "" {
			content = answer.Snippet
		}
		if content == "" && len(answer.SnippetHighlightedWords) > 0 {
			content = joinWords(answer.SnippetHighlightedWords)
		}
		if content != "" {
			record := &overview.Record{Content: content}
			if answer.Link != "" {
				record.Links = []string{answer.Link}
			}
			return record
		}
	}

	if snippet := data.FeaturedSnippet; snippet != nil && snippet.Snippet != "" {
		record := &overview.Record{Content: snippet.Snippet}
		if snippet.Link != "" {
			record.Links = []string{snippet.Link}
		}
		return record
	}

	if len(data.RelatedQuestions) > 0 && data.RelatedQuestions[0].Snippet != "" {
		first := data.RelatedQuestions[0]
		record := &overview.Record{Content: first.Snippet}
		if first.Link != "" {
			record.Links = []string{first.Link}
		}
		return record
	}

	// generated answers occasionally surface as a pseudo organic
	// result
	if len(data.OrganicResults) > 0 {
		first := data.OrganicResults[0]
		if first.Snippet != "" && looksLikeOverviewTitle(first.Title) {
			record := &overview.Record{Content: first.Snippet}
			if first.Link != "" {
				record.Links = []string{first.Link}
			}
			return record
		}
	}

	return nil
}

func looksLikeOverviewTitle(title string) bool {
	return strings.Contains(title, "AI") || strings.Contains(title, "Gemini")
}

func joinWords(words []string) string {
	return strings.Join(words, " ")
}
