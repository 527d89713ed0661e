package googlecse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"storescout/lib/restyutil"
	"storescout/lib/serp"
	"storescout/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const searchFixture = `{
	"searchInformation": {"totalResults": "128"},
	"items": [
		{
			"title": "Satin Pillowcase | Kitsch",
			"link": "https://mykitsch.com/products/satin-pillowcase",
			"snippet": "Sleep on satin.",
			"htmlSnippet": "Sleep on <b>satin</b>.",
			"displayLink": "mykitsch.com",
			"formattedUrl": "https://mykitsch.com/products/satin-pillowcase",
			"pagemap": {
				"cse_image": [{"src": "https://cdn.example.com/satin.jpg"}],
				"metatags": [{
					"og:description": "Softer hair while you sleep.",
					"og:type": "product",
					"og:site_name": "Kitsch",
					"og:price:amount": "19.00",
					"og:price:currency": "USD",
					"og:image": "https://cdn.example.com/og.jpg"
				}],
				"product": [{
					"name": "Satin Pillowcase",
					"price": "19.00",
					"brand": "Kitsch"
				}],
				"offer": [{
					"price": "17.10",
					"pricecurrency": "USD",
					"availability": "InStock"
				}]
			}
		},
		{
			"title": "Kitsch | Hair Accessories",
			"link": "https://mykitsch.com/",
			"snippet": "Shop hair accessories.",
			"displayLink": "mykitsch.com"
		}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		Key:            "test-key",
		SearchEngineID: "test-cx",
		BaseURL:        server.URL,
	})
	require.NoError(t, err)
	return client
}

func TestSearch(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:lib/serp/googlecse")
	defer cleanup()

	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customsearch/v1", r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchFixture))
	})

	page, err := client.Search(context.Background(), serp.Query{
		Text:  "site:mykitsch.com pillowcases",
		Num:   10,
		Start: 11,
	})
	require.NoError(t, err)

	require.Equal(t, "test-key", gotQuery["key"])
	require.Equal(t, "test-cx", gotQuery["cx"])
	require.Equal(t, "site:mykitsch.com pillowcases", gotQuery["q"])
	require.Equal(t, "10", gotQuery["num"])
	require.Equal(t, "11", gotQuery["start"])

	require.EqualValues(t, 128, page.TotalResults)
	require.Len(t, page.Results, 2)

	product := page.Results[0]
	require.Equal(t, "Satin Pillowcase | Kitsch", product.Title)
	require.Equal(t, "https://cdn.example.com/satin.jpg", product.Image)
	require.NotNil(t, product.Meta)
	require.Equal(t, "Softer hair while you sleep.", product.Meta.Description)
	require.Equal(t, "19.00", product.Meta.Price)
	require.NotNil(t, product.Product)
	require.Equal(t, "Kitsch", product.Product.Brand)
	require.NotNil(t, product.Offer)
	require.Equal(t, "17.10", product.Offer.Price)
	require.True(t, IsProductPage(product))

	home := page.Results[1]
	require.Nil(t, home.Meta)
	require.Nil(t, home.Product)
	require.Nil(t, home.Offer)
	require.False(t, IsProductPage(home))
}

func TestSearchWritesInstrumentDump(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:lib/serp/googlecse")
	defer cleanup()

	dumpDir := filepath.Join(t.TempDir(), "resty")
	SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(dumpDir))
	t.Cleanup(func() { SetRestyInstrumentOutput(nil) })

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": []}`))
	})

	_, err := client.Search(context.Background(), serp.Query{Text: "q"})
	require.NoError(t, err)

	entries, err := os.ReadDir(dumpDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestSearchClampsNum(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "10", r.URL.Query().Get("num"))
		w.Write([]byte(`{"items": []}`))
	})

	page, err := client.Search(context.Background(), serp.Query{Text: "q", Num: 50})
	require.NoError(t, err)
	require.Empty(t, page.Results)
}

func TestSearchQuotaExceeded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "Quota exceeded"}}`))
	})

	_, err := client.Search(context.Background(), serp.Query{Text: "q"})
	require.ErrorIs(t, err, serp.ErrQuotaExceeded)
}

func TestSearchApiError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "API key invalid"}}`))
	})

	_, err := client.Search(context.Background(), serp.Query{Text: "q"})

	var statusErr *serp.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	require.Contains(t, statusErr.Body, "API key invalid")
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(ClientOptions{SearchEngineID: "cx"})
	require.Error(t, err)

	_, err = NewClient(ClientOptions{Key: "key"})
	require.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("num"))
		w.Write([]byte(`{"items": [{"title": "ok", "link": "https://example.com"}]}`))
	})

	require.NoError(t, client.TestConnection(context.Background()))
}
