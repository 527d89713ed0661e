package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDuplicateURLIsNoop(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{
		Title:   "Shipping",
		Link:    "https://example.com/pages/shipping",
		Snippet: "shipping info",
	})
	require.Len(t, agg.Pages, 1)

	agg.Classify(Result{
		Title:   "Shipping (updated)",
		Link:    "https://example.com/pages/shipping",
		Snippet: "changed",
	})
	require.Len(t, agg.Pages, 1)
	require.Equal(t, "Shipping", agg.Pages["shipping"].Title)
	require.Equal(t, 1, agg.UniqueURLCount())
}

func TestPagesAreNeverEnriched(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{
		Title:   "Shipping",
		Link:    "https://example.com/pages/shipping",
		Snippet: "how we ship",
	})

	page := agg.Pages["shipping"]
	require.Equal(t, "shipping", page.Name)
	require.Equal(t, "https://example.com/pages/shipping", page.URL)
	require.Equal(t, "Shipping", page.Title)
	require.Equal(t, "how we ship", page.Description)

	// same page name under a different URL, updated title
	agg.Classify(Result{
		Title:   "Shipping v2",
		Link:    "https://example.com/pages/shipping?v=2",
		Snippet: "updated",
	})
	require.Equal(t, "Shipping", agg.Pages["shipping"].Title)
}

func TestCollectionProductNesting(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{
		Title: "Clip 1",
		Link:  "https://example.com/collections/hair/products/clip-1",
	})

	require.Len(t, agg.Collections, 1)
	coll := agg.Collections["hair"]
	require.Len(t, coll.Products, 1)
	require.Equal(t, "clip-1", coll.Products[0].Name)

	require.Len(t, agg.Products, 1)
	require.Equal(t, "hair", agg.Products["clip-1"].Collection)
}

func TestBareProductHasNoCollection(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{
		Title: "Clip 2",
		Link:  "https://example.com/products/clip-2",
	})

	require.Len(t, agg.Products, 1)
	require.Empty(t, agg.Products["clip-2"].Collection)
	require.Empty(t, agg.Collections)
}

func TestProductEnrichmentPrecedence(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{
		Title:   "Satin Pillowcase",
		Link:    "https://example.com/products/satin-pillowcase",
		Snippet: "a pillowcase",
		Image:   "https://cdn.example.com/base.jpg",
		Meta: &Meta{
			Description: "softer description",
			Price:       "10",
			Currency:    "USD",
			Image:       "https://cdn.example.com/meta.jpg",
		},
		Product: &ProductMarkup{
			Name:  "Satin Pillowcase Deluxe",
			Price: "11",
			SKU:   "SP-100",
			Brand: "Example",
		},
		Offer: &OfferMarkup{
			Price:        "12",
			Availability: "instock",
		},
	})

	p := agg.Products["satin-pillowcase"]
	require.NotNil(t, p)
	// later sources win field-by-field
	require.Equal(t, "12", p.Price)
	require.Equal(t, "Satin Pillowcase Deluxe", p.Name)
	require.Equal(t, "instock", p.Availability)
	// fields only present in looser sources survive
	require.Equal(t, "USD", p.Currency)
	require.Equal(t, "softer description", p.Description)
	require.Equal(t, "https://cdn.example.com/meta.jpg", p.Image)
	require.Equal(t, "SP-100", p.SKU)
}

func TestProductKeyIsFirstWriteWins(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{
		Title: "Clip 1",
		Link:  "https://example.com/products/clip-1",
		Meta:  &Meta{Price: "10"},
	})
	agg.Classify(Result{
		Title: "Clip 1 (restocked)",
		Link:  "https://example.com/products/clip-1?variant=2",
		Meta:  &Meta{Price: "99"},
	})

	require.Len(t, agg.Products, 1)
	require.Equal(t, "10", agg.Products["clip-1"].Price)
	require.Equal(t, "Clip 1", agg.Products["clip-1"].Title)
}

func TestEmptyAndSearchPathsAreIgnored(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{Title: "Home", Link: "https://example.com/"})
	agg.Classify(Result{Title: "Search", Link: "https://example.com/search?q=clips"})

	require.Empty(t, agg.Categories)
	require.Empty(t, agg.Collections)
	require.Empty(t, agg.Products)
	require.Empty(t, agg.Pages)
	// both URLs still count as processed
	require.Equal(t, 2, agg.UniqueURLCount())
}

func TestUnknownPathBecomesCategory(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{
		Title:   "Blog post",
		Link:    "https://example.com/blogs/news/sale",
		Snippet: "big sale",
	})

	require.Len(t, agg.Categories, 1)
	cat := agg.Categories["blogs/news/sale"]
	require.NotNil(t, cat)
	require.Equal(t, "blogs/news/sale", cat.Name)
	require.Equal(t, "big sale", cat.Description)
}

func TestPrefixMatchIsNotTokenExact(t *testing.T) {
	// "products-info" matches the products prefix via startswith, the
	// same way the path classifier has always behaved.
	agg := NewAggregate()
	agg.Classify(Result{
		Title: "Product info",
		Link:  "https://example.com/products-info",
	})

	require.Empty(t, agg.Categories)
	require.Empty(t, agg.Products) // single segment, no identifier
}

func TestEndToEndScenario(t *testing.T) {
	agg := NewAggregate()

	agg.Add(Result{Title: "Hair", Link: "https://example.com/collections/hair"})
	agg.Add(Result{Title: "Clip 1", Link: "https://example.com/collections/hair/products/clip-1"})
	// same product key via a different classification path: duplicate
	// URL would be a no-op; a distinct URL is a non-enriching second
	// attempt at an existing key.
	agg.Add(Result{Title: "Clip 1 direct", Link: "https://example.com/products/clip-1"})

	require.Len(t, agg.Collections, 1)
	coll := agg.Collections["hair"]
	require.Len(t, coll.Products, 1)
	require.Equal(t, "clip-1", coll.Products[0].Name)

	require.Len(t, agg.Products, 1)
	product := agg.Products["clip-1"]
	require.Equal(t, "hair", product.Collection)
	require.Equal(t, "Clip 1", product.Title)

	// the flat list keeps everything that was accepted
	require.Len(t, agg.Results, 3)
	require.Equal(t, 3, agg.UniqueURLCount())
}

func TestMalformedURLFallsThroughToCategory(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{Title: "broken", Link: "::not a url::"})

	require.Len(t, agg.Categories, 1)
	require.Empty(t, agg.Products)
}

func TestDiscoveredSetsAreSorted(t *testing.T) {
	agg := NewAggregate()
	agg.Classify(Result{Link: "https://example.com/collections/zebra"})
	agg.Classify(Result{Link: "https://example.com/collections/apple"})

	diff := cmp.Diff([]string{"apple", "zebra"}, agg.DiscoveredCollections())
	require.Empty(t, diff)
}
