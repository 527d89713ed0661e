// Package overview holds the shared record shape for Google
// AI-overview extraction, which several backends implement: paid SERP
// APIs that return structured JSON and a headless browser that scrapes
// the rendered block.
package overview

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a query produced a SERP but no
// AI-overview material could be located in it.
var ErrNotFound = errors.New("no ai overview found")

// Link is a hyperlink lifted out of a rendered overview block.
type Link struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url"`
}

// Record is one extracted overview. Backends fill the fields they can:
// API extractors set Content/Links and optionally Raw/FullSERP, the
// browser backend sets HTML/PlainText/Hyperlinks.
type Record struct {
	Query       string    `json:"searchQuery"`
	ExtractedAt time.Time `json:"extractedAt"`

	Content string   `json:"content,omitempty"`
	Links   []string `json:"links,omitempty"`

	// Raw is the provider's ai_overview document verbatim, when one
	// was present.
	Raw json.RawMessage `json:"ai_overview,omitempty"`
	// FullSERP carries the whole response for manual inspection when
	// no overview block was identified.
	FullSERP json.RawMessage `json:"full_serp,omitempty"`

	HTML       string `json:"raw_html,omitempty"`
	PlainText  string `json:"plain_text,omitempty"`
	Hyperlinks []Link `json:"hyperlinks,omitempty"`
	ProxyUsed  string `json:"proxy_used,omitempty"`
}

// Extractor fetches the AI overview for a query. Implementations
// return ErrNotFound when the search succeeded but carried no
// overview.
type Extractor interface {
	Name() string
	FetchOverview(ctx context.Context, query string) (*Record, error)
}
