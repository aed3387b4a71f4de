package crawler

import (
	"context"
	"maps"
)

// Item represents a single listed gloom and whatever the rarity source told us about it
type Item struct {
	Number string            `json:"number"`
	Price  string            `json:"price"`
	Rank   string            `json:"rank,omitempty"`
	URL    string            `json:"url"`
	Traits map[string]string `json:"traits,omitempty"`
}

// Enrichment is the rarity data fetched for one item
type Enrichment struct {
	Rank   string            `json:"rank"`
	Traits map[string]string `json:"traits"`
}

// Result is the settlement of one enrichment request
type Result struct {
	Item Item
	Err  error
}

// NewItem creates an item whose URL is derived from the number.
// The number is substituted verbatim, without escaping.
func NewItem(number, price, rarityBaseURL string) Item {
	return Item{
		Number: number,
		Price:  price,
		URL:    rarityBaseURL + number,
	}
}

// Enriched reports whether rarity data has been applied to the item
func (i Item) Enriched() bool {
	return i.Traits != nil
}

// WithEnrichment returns a copy of the item carrying the rank and traits
func (i Item) WithEnrichment(e Enrichment) Item {
	traits := make(map[string]string, len(e.Traits))
	maps.Copy(traits, e.Traits)
	i.Rank = e.Rank
	i.Traits = traits
	return i
}

// Field returns the value of a column by name: the fixed item fields first, then traits
func (i Item) Field(name string) (string, bool) {
	switch name {
	case "number":
		return i.Number, true
	case "price":
		return i.Price, true
	case "rank":
		return i.Rank, i.Rank != ""
	case "url":
		return i.URL, true
	}
	v, ok := i.Traits[name]
	return v, ok
}

// Enricher fetches rarity data for one item
type Enricher interface {
	Enrich(ctx context.Context, item Item) (Enrichment, error)
}

// EnricherFunc adapts a function to the Enricher interface
type EnricherFunc func(ctx context.Context, item Item) (Enrichment, error)

// Enrich calls f
func (f EnricherFunc) Enrich(ctx context.Context, item Item) (Enrichment, error) {
	return f(ctx, item)
}

// Selectors contains CSS selectors for the two page shapes
type Selectors struct {
	ListingReady string
	ListingCard  string
	Rank         string
	TraitLine    string
	TraitValue   string
}

// DefaultSelectors are the selectors of the marketplace collection page and the rarity page
var DefaultSelectors = Selectors{
	ListingReady: ".cardbouge-img img",
	ListingCard:  ".card-body",
	Rank:         ".self-end",
	TraitLine:    ".bg-gray-900 .text-lg",
	TraitValue:   "span",
}

// DefaultUserAgent is sent by every browser page
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/94.0.4606.81 Safari/537.36"
