// Package serp defines the provider-neutral interface to paid search
// APIs. Each provider package normalizes its raw response items into
// catalog.Result values so the session layer can treat providers
// interchangeably.
package serp

import (
	"context"
	"errors"
	"fmt"

	"storescout/lib/catalog"
)

// ErrQuotaExceeded is returned when a provider answers 429. Sessions
// treat it as a signal to flip their quota flag and stop issuing
// queries.
var ErrQuotaExceeded = errors.New("api quota exceeded")

// StatusError is a non-200 provider response that is not a quota
// rejection. Body carries the provider's error document verbatim.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Query is one search request. Zero values mean "provider default";
// Num is clamped to the provider's per-request maximum.
type Query struct {
	Text string
	// Num is the requested number of results per page.
	Num int
	// Start is a 1-based result offset, used by offset-paginated
	// providers. Ignored by page-paginated ones.
	Start int
	// Page is a 1-based page number, used by page-paginated providers.
	Page int
	// SearchType switches result type where supported, e.g. "image".
	SearchType string
	Country    string
	Language   string
}

// Page is one page of normalized results.
type Page struct {
	Results []catalog.Result
	// TotalResults is the provider's estimate of total matches, when
	// reported. Zero when unknown.
	TotalResults int64
}

type Provider interface {
	Name() string
	Search(ctx context.Context, query Query) (*Page, error)
}
