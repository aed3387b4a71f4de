package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/gloomfloor/helpers"
	apperrors "sjsage522/gloomfloor/pkg/errors"
	"sjsage522/gloomfloor/services/cache"
)

// StaticEnricher reads the server-rendered rarity page over plain HTTP and
// parses it with goquery, using the same selectors as the browser.
type StaticEnricher struct {
	Selectors Selectors
	CacheSvc  cache.CacheService
	CacheKey  string
	BlockTime time.Duration

	fetch func(ctx context.Context, url string) (io.Reader, error)
}

var _ Enricher = (*StaticEnricher)(nil)

// NewStaticEnricher creates an HTTP enricher. When cacheSvc is set, a rate
// limited response blocks further fetches for blockTime.
func NewStaticEnricher(cacheSvc cache.CacheService, blockTime time.Duration) *StaticEnricher {
	return &StaticEnricher{
		Selectors: DefaultSelectors,
		CacheSvc:  cacheSvc,
		CacheKey:  "rarity_rate_limited",
		BlockTime: blockTime,
		fetch:     helpers.FetchWithRandomHeaders,
	}
}

// Enrich fetches and parses the item's rarity page
func (e *StaticEnricher) Enrich(ctx context.Context, item Item) (Enrichment, error) {
	body, err := e.fetchWithCache(ctx, item.URL)
	if err != nil {
		return Enrichment{}, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Enrichment{}, apperrors.NewParsing(item.Number, "failed to parse rarity page", err)
	}
	return e.parse(item, doc)
}

func (e *StaticEnricher) parse(item Item, doc *goquery.Document) (Enrichment, error) {
	rankSel := doc.Find(e.Selectors.Rank).First()
	if rankSel.Length() == 0 {
		return Enrichment{}, apperrors.NewParsing(item.Number, fmt.Sprintf("no %q element on rarity page", e.Selectors.Rank), nil)
	}

	var lines []string
	doc.Find(e.Selectors.TraitLine).Each(func(_ int, row *goquery.Selection) {
		span := row.Find(e.Selectors.TraitValue).First()
		if span.Length() == 0 {
			return
		}
		lines = append(lines, span.Text())
	})

	return Enrichment{
		Rank:   ParseRank(rankSel.Text()),
		Traits: ParseTraits(lines),
	}, nil
}

// fetchWithCache fetches url unless a previous rate limited response is still blocking us
func (e *StaticEnricher) fetchWithCache(ctx context.Context, url string) (io.Reader, error) {
	if e.CacheSvc != nil && e.CacheKey != "" {
		if _, err := e.CacheSvc.Get(e.CacheKey); err == nil {
			return nil, apperrors.NewRateLimit(url, e.BlockTime)
		}
	}

	body, err := e.fetch(ctx, url)
	if err != nil {
		if errors.Is(err, helpers.ErrRateLimited) {
			if e.CacheSvc != nil && e.CacheKey != "" {
				blocked := []byte(fmt.Sprintf("%d", e.BlockTime/time.Second))
				if setErr := e.CacheSvc.Set(e.CacheKey, blocked, e.BlockTime); setErr != nil {
					return nil, apperrors.NewCache(url, "failed to set rate limit block", errors.Join(setErr, err))
				}
			}
			return nil, apperrors.New(apperrors.ErrorTypeRateLimit, url, "rarity source rate limited us", err)
		}
		return nil, apperrors.NewNetwork(url, "failed to fetch rarity page", err)
	}
	return body, nil
}
