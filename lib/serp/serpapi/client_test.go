package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storescout/lib/overview"
	"storescout/lib/serp"
	"storescout/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, response string) *Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "google", r.URL.Query().Get("engine"))
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{Key: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return client
}

func TestSearch(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:lib/serp/serpapi")
	defer cleanup()

	client := newTestClient(t, `{
		"search_information": {"total_results": 42},
		"organic_results": [
			{
				"position": 1,
				"title": "Kitsch | Satin & Silk",
				"link": "https://mykitsch.com/collections/satin",
				"snippet": "Satin sleep essentials.",
				"displayed_link": "mykitsch.com"
			}
		]
	}`)

	page, err := client.Search(context.Background(), serp.Query{Text: "kitsch satin"})
	require.NoError(t, err)
	require.EqualValues(t, 42, page.TotalResults)
	require.Len(t, page.Results, 1)
	require.Equal(t, "Kitsch | Satin & Silk", page.Results[0].Title)
}

func TestFetchOverview(t *testing.T) {
	for _, tc := range []struct {
		name         string
		response     string
		wantContent  string
		wantLinks    []string
		wantRaw      bool
		wantNotFound bool
	}{
		{
			name: "dedicated block",
			response: `{
				"ai_overview": {"summary": "Satin reduces friction on hair.", "references": []}
			}`,
			wantContent: "Satin reduces friction on hair.",
			wantRaw:     true,
		},
		{
			name: "dedicated block text field",
			response: `{
				"ai_overview": {"text": "Generated answer text."}
			}`,
			wantContent: "Generated answer text.",
			wantRaw:     true,
		},
		{
			name: "knowledge graph",
			response: `{
				"knowledge_graph": {
					"description": "Kitsch is a hair accessory brand.",
					"source": {"link": "https://en.wikipedia.org/wiki/Kitsch_(brand)"}
				}
			}`,
			wantContent: "Kitsch is a hair accessory brand.",
			wantLinks:   []string{"https://en.wikipedia.org/wiki/Kitsch_(brand)"},
		},
		{
			name: "answer box answer",
			response: `{
				"answer_box": {"answer": "About $19.", "link": "https://example.com/a"}
			}`,
			wantContent: "About $19.",
			wantLinks:   []string{"https://example.com/a"},
		},
		{
			name: "answer box highlighted words",
			response: `{
				"answer_box": {"snippet_highlighted_words": ["satin", "pillowcase"]}
			}`,
			wantContent: "satin pillowcase",
		},
		{
			name: "featured snippet",
			response: `{
				"featured_snippet": {"snippet": "Featured text.", "link": "https://example.com/f"}
			}`,
			wantContent: "Featured text.",
			wantLinks:   []string{"https://example.com/f"},
		},
		{
			name: "related questions",
			response: `{
				"related_questions": [
					{"snippet": "First related answer.", "link": "https://example.com/r"}
				]
			}`,
			wantContent: "First related answer.",
			wantLinks:   []string{"https://example.com/r"},
		},
		{
			name: "organic heuristic",
			response: `{
				"organic_results": [
					{"title": "AI Overview", "snippet": "Overview-like snippet.", "link": "https://example.com/o"}
				]
			}`,
			wantContent: "Overview-like snippet.",
			wantLinks:   []string{"https://example.com/o"},
		},
		{
			name: "plain organic results carry no overview",
			response: `{
				"organic_results": [
					{"title": "Regular result", "snippet": "Nothing generated here.", "link": "https://example.com/p"}
				]
			}`,
			wantNotFound: true,
		},
		{
			name:         "empty response",
			response:     `{}`,
			wantNotFound: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.response)

			record, err := client.FetchOverview(context.Background(), "test query")
			if tc.wantNotFound {
				require.ErrorIs(t, err, overview.ErrNotFound)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "test query", record.Query)
			require.False(t, record.ExtractedAt.IsZero())
			require.Equal(t, tc.wantContent, record.Content)
			require.Equal(t, tc.wantLinks, record.Links)
			if tc.wantRaw {
				require.NotEmpty(t, record.Raw)
			}
		})
	}
}

func TestFetchOverviewQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{Key: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.FetchOverview(context.Background(), "q")
	require.ErrorIs(t, err, serp.ErrQuotaExceeded)
}
