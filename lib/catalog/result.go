// Package catalog classifies search results from a storefront into a
// catalog of collections, products, pages and categories based on their
// URL paths, and accumulates them into a per-run aggregate.
package catalog

// Meta is the loose metatag block (og:* and friends) a provider may
// attach to a result.
type Meta struct {
	Description  string `json:"description,omitempty"`
	Type         string `json:"type,omitempty"`
	SiteName     string `json:"site_name,omitempty"`
	Price        string `json:"price,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Availability string `json:"availability,omitempty"`
	Image        string `json:"image,omitempty"`
}

// ProductMarkup is structured product schema data extracted from a
// result page, more specific than Meta.
type ProductMarkup struct {
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price,omitempty"`
	Availability string `json:"availability,omitempty"`
	SKU          string `json:"sku,omitempty"`
	Brand        string `json:"brand,omitempty"`
}

// OfferMarkup is structured offer schema data, the most specific
// pricing source a result can carry.
type OfferMarkup struct {
	Price        string `json:"price,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Availability string `json:"availability,omitempty"`
}

// Result is a single normalized search result. Providers map their raw
// response items into this shape; the aggregate never mutates it.
type Result struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet"`
	HTMLSnippet  string `json:"htmlSnippet,omitempty"`
	DisplayLink  string `json:"displayLink,omitempty"`
	FormattedURL string `json:"formattedUrl,omitempty"`
	Position     int    `json:"position,omitempty"`
	Image        string `json:"image,omitempty"`

	Meta    *Meta          `json:"metadata,omitempty"`
	Product *ProductMarkup `json:"structured_product,omitempty"`
	Offer   *OfferMarkup   `json:"structured_offer,omitempty"`

	// Attributes holds free-form rich snippet attributes keyed by
	// their display name, e.g. "Rating" or "Price".
	Attributes map[string]string `json:"attributes,omitempty"`
}
