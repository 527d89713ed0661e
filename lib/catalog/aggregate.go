package catalog

import (
	"net/url"
	"sort"
	"strings"
)

// Collection is a storefront collection page and the products
// discovered underneath it.
type Collection struct {
	Name        string       `json:"name"`
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Products    []ProductRef `json:"products"`
}

// ProductRef is the short form of a product nested inside a collection.
type ProductRef struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Product is a fully built product entry.
type Product struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Image        string `json:"image,omitempty"`
	Price        string `json:"price,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Availability string `json:"availability,omitempty"`
	SKU          string `json:"sku,omitempty"`
	Brand        string `json:"brand,omitempty"`
	// Collection backreferences the collection this product was first
	// discovered under, when it came from a collections/.../products/...
	// path.
	Collection string `json:"collection,omitempty"`
}

// Page is a static storefront page (shipping, about, ...).
type Page struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Category is any other non-empty path that didn't match a known
// entity prefix, keyed by the full trimmed path.
type Category struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Aggregate is the mutable per-run accumulation of classified results.
// It is owned by a single session and is not safe for concurrent use.
type Aggregate struct {
	Categories  map[string]*Category
	Collections map[string]*Collection
	Products    map[string]*Product
	Pages       map[string]*Page
	Results     []Result

	seenURLs        map[string]struct{}
	seenCollections map[string]struct{}
	seenProducts    map[string]struct{}
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		Categories:      map[string]*Category{},
		Collections:     map[string]*Collection{},
		Products:        map[string]*Product{},
		Pages:           map[string]*Page{},
		seenURLs:        map[string]struct{}{},
		seenCollections: map[string]struct{}{},
		seenProducts:    map[string]struct{}{},
	}
}

// Add appends the result to the flat result list and classifies it.
// The flat list keeps every accepted result, duplicates included;
// only classification is deduplicated.
func (a *Aggregate) Add(res Result) {
	a.Results = append(a.Results, res)
	a.Classify(res)
}

// Classify buckets a result by its URL path. A URL is classified at
// most once; repeat sightings are no-ops. Entity keys are
// first-write-wins: once a collection/product/page/category exists
// under a key, later sightings never replace or merge into it.
func (a *Aggregate) Classify(res Result) {
	link := res.Link
	if _, ok := a.seenURLs[link]; ok {
		return
	}
	a.seenURLs[link] = struct{}{}

	path := entityPath(link)
	parts := strings.Split(path, "/")

	// prefix matching on the joined path, not the first segment alone:
	// a path like "products-info" still lands in the products branch.
	switch {
	case strings.HasPrefix(path, "collections"):
		if len(parts) < 2 {
			return
		}
		name := parts[1]
		if _, seen := a.seenCollections[name]; !seen {
			a.seenCollections[name] = struct{}{}
			if _, ok := a.Collections[name]; !ok {
				a.Collections[name] = &Collection{
					Name:        name,
					URL:         link,
					Title:       res.Title,
					Description: res.Snippet,
					Products:    []ProductRef{},
				}
			}
		}
		coll, ok := a.Collections[name]
		if !ok || len(parts) < 4 || parts[2] != "products" {
			return
		}
		product := parts[3]
		if _, seen := a.seenProducts[product]; seen {
			return
		}
		a.seenProducts[product] = struct{}{}
		coll.Products = append(coll.Products, ProductRef{
			Name:  product,
			URL:   link,
			Title: res.Title,
		})
		if _, ok := a.Products[product]; !ok {
			a.Products[product] = buildProduct(res, product, name)
		}

	case strings.HasPrefix(path, "products"):
		if len(parts) < 2 {
			return
		}
		name := parts[1]
		if _, seen := a.seenProducts[name]; seen {
			return
		}
		a.seenProducts[name] = struct{}{}
		a.Products[name] = buildProduct(res, name, "")

	case strings.HasPrefix(path, "pages"):
		if len(parts) < 2 {
			return
		}
		name := parts[1]
		if _, ok := a.Pages[name]; !ok {
			a.Pages[name] = &Page{
				Name:        name,
				URL:         link,
				Title:       res.Title,
				Description: res.Snippet,
			}
		}

	case path == "" || strings.HasPrefix(path, "search"):
		// homepage or on-site search results, not a content entity

	default:
		if _, ok := a.Categories[path]; !ok {
			a.Categories[path] = &Category{
				Name:        path,
				URL:         link,
				Title:       res.Title,
				Description: res.Snippet,
			}
		}
	}
}

// entityPath extracts the slash-trimmed URL path used for
// classification. Unparseable links fall back to the trimmed link
// itself so they land in the category bucket instead of erroring.
func entityPath(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return strings.Trim(link, "/")
	}
	return strings.Trim(parsed.Path, "/")
}

// buildProduct layers the result's data sources into a product record.
// Later sources override earlier ones field by field, but only when
// the later source actually has a value; fields present only in a
// looser source survive.
func buildProduct(res Result, name, collection string) *Product {
	p := &Product{
		Name:        name,
		URL:         res.Link,
		Title:       res.Title,
		Description: res.Snippet,
		Image:       res.Image,
		Collection:  collection,
	}

	if m := res.Meta; m != nil {
		overlay(&p.Description, m.Description)
		overlay(&p.Price, m.Price)
		overlay(&p.Currency, m.Currency)
		overlay(&p.Availability, m.Availability)
		overlay(&p.Image, m.Image)
	}
	if sp := res.Product; sp != nil {
		overlay(&p.Name, sp.Name)
		overlay(&p.Description, sp.Description)
		overlay(&p.Price, sp.Price)
		overlay(&p.Availability, sp.Availability)
		overlay(&p.SKU, sp.SKU)
		overlay(&p.Brand, sp.Brand)
	}
	if of := res.Offer; of != nil {
		overlay(&p.Price, of.Price)
		overlay(&p.Currency, of.Currency)
		overlay(&p.Availability, of.Availability)
	}

	return p
}

func overlay(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// SeenURL reports whether a link has already been classified.
func (a *Aggregate) SeenURL(link string) bool {
	_, ok := a.seenURLs[link]
	return ok
}

func (a *Aggregate) UniqueURLCount() int {
	return len(a.seenURLs)
}

// DiscoveredCollections returns the collection identifiers seen so
// far, sorted for stable output.
func (a *Aggregate) DiscoveredCollections() []string {
	return sortedKeys(a.seenCollections)
}

func (a *Aggregate) DiscoveredProducts() []string {
	return sortedKeys(a.seenProducts)
}

func (a *Aggregate) ProcessedURLs() []string {
	return sortedKeys(a.seenURLs)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
