package crawler

import (
	"context"
	"fmt"

	"sjsage522/gloomfloor/logger"
	apperrors "sjsage522/gloomfloor/pkg/errors"
)

// PageEnricher reads rank and traits from the rarity page in a fresh browser tab
type PageEnricher struct {
	Browser   Browser
	Selectors Selectors
}

var _ Enricher = (*PageEnricher)(nil)

// NewPageEnricher creates an enricher that opens one tab per item
func NewPageEnricher(browser Browser) *PageEnricher {
	return &PageEnricher{
		Browser:   browser,
		Selectors: DefaultSelectors,
	}
}

// Enrich opens the item's rarity page, waits for the rank and parses the trait
// lines. The tab is closed whether or not this succeeds.
func (e *PageEnricher) Enrich(ctx context.Context, item Item) (Enrichment, error) {
	page, err := e.Browser.NewPage(ctx)
	if err != nil {
		return Enrichment{}, apperrors.NewBrowser(item.Number, "failed to open rarity page", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.ForEnricher("page").Debug().Err(cerr).Str("number", item.Number).Msg("Failed to close rarity page")
		}
	}()

	if err := page.Navigate(item.URL); err != nil {
		return Enrichment{}, apperrors.NewBrowser(item.Number, fmt.Sprintf("failed to navigate to %s", item.URL), err)
	}
	if err := page.WaitFor(e.Selectors.Rank); err != nil {
		return Enrichment{}, apperrors.NewBrowser(item.Number, "rank never rendered", err)
	}

	rankText, err := page.Text(e.Selectors.Rank)
	if err != nil {
		return Enrichment{}, apperrors.NewBrowser(item.Number, "failed to read rank", err)
	}

	lines, err := e.traitLines(page)
	if err != nil {
		return Enrichment{}, apperrors.NewBrowser(item.Number, "failed to read traits", err)
	}

	return Enrichment{
		Rank:   ParseRank(rankText),
		Traits: ParseTraits(lines),
	}, nil
}

// traitLines returns the text of the value span inside every trait row; rows
// without one are skipped
func (e *PageEnricher) traitLines(page Page) ([]string, error) {
	rows, err := page.Elements(e.Selectors.TraitLine)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		span, ok, err := row.Child(e.Selectors.TraitValue)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		text, err := span.Text()
		if err != nil {
			return nil, err
		}
		lines = append(lines, text)
	}
	return lines, nil
}
