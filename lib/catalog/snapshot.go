package catalog

import (
	"encoding/json"
	"os"
)

// Metadata is the header block of a snapshot file.
type Metadata struct {
	RunID                 string   `json:"run_id,omitempty"`
	Provider              string   `json:"provider,omitempty"`
	TargetSite            string   `json:"target_site,omitempty"`
	TotalQueries          int      `json:"total_queries"`
	TotalResults          int      `json:"total_results"`
	Timestamp             string   `json:"timestamp"`
	QuotaLimited          bool     `json:"quota_limited"`
	QueriesUsed           int      `json:"queries_used"`
	QueriesLimit          int      `json:"queries_limit"`
	DiscoveredCollections []string `json:"discovered_collections"`
	DiscoveredProducts    []string `json:"discovered_products"`
	ProcessedURLs         []string `json:"processed_urls"`
}

// Snapshot is the full JSON document persisted at the end of a run.
type Snapshot struct {
	Metadata    Metadata               `json:"metadata"`
	Categories  map[string]*Category   `json:"categories"`
	Collections map[string]*Collection `json:"collections"`
	Products    map[string]*Product    `json:"products"`
	Pages       map[string]*Page       `json:"pages"`
	Results     []Result               `json:"search_results"`
}

// Summary is the companion counts document.
type Summary struct {
	TotalQueries     int  `json:"total_queries"`
	QueryLimit       int  `json:"query_limit"`
	QuotaLimited     bool `json:"quota_limited"`
	TotalResults     int  `json:"total_results"`
	CollectionsFound int  `json:"collections_found"`
	ProductsFound    int  `json:"products_found"`
	CategoriesFound  int  `json:"categories_found"`
	PagesFound       int  `json:"pages_found"`
	UniqueURLs       int  `json:"unique_urls"`
}

// Snapshot renders the aggregate with the given metadata. The
// aggregate itself stays untouched; snapshots are terminal output,
// never merged back.
func (a *Aggregate) Snapshot(meta Metadata) Snapshot {
	meta.DiscoveredCollections = a.DiscoveredCollections()
	meta.DiscoveredProducts = a.DiscoveredProducts()
	meta.ProcessedURLs = a.ProcessedURLs()

	results := a.Results
	if results == nil {
		results = []Result{}
	}

	return Snapshot{
		Metadata:    meta,
		Categories:  a.Categories,
		Collections: a.Collections,
		Products:    a.Products,
		Pages:       a.Pages,
		Results:     results,
	}
}

func (a *Aggregate) Summarize(meta Metadata) Summary {
	return Summary{
		TotalQueries:     meta.QueriesUsed,
		QueryLimit:       meta.QueriesLimit,
		QuotaLimited:     meta.QuotaLimited,
		TotalResults:     meta.TotalResults,
		CollectionsFound: len(a.Collections),
		ProductsFound:    len(a.Products),
		CategoriesFound:  len(a.Categories),
		PagesFound:       len(a.Pages),
		UniqueURLs:       len(a.seenURLs),
	}
}

// WriteFile persists the snapshot as indented JSON.
func (s Snapshot) WriteFile(path string) error {
	return writeJSON(path, s)
}

func (s Summary) WriteFile(path string) error {
	return writeJSON(path, s)
}

// ReadSnapshot loads a previously written snapshot file.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	raw, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	err = json.Unmarshal(raw, &snap)
	return snap, err
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
