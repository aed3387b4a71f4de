package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"sjsage522/gloomfloor/logger"
	apperrors "sjsage522/gloomfloor/pkg/errors"
)

// ErrNotEnoughListings is returned when MaxScrolls runs out before enough cards loaded
var ErrNotEnoughListings = errors.New("not enough listing cards")

// Collector scrolls the marketplace collection page until enough listing cards are loaded
type Collector struct {
	Browser     Browser
	URL         string
	Selectors   Selectors
	ScrollPause time.Duration
	// MaxScrolls bounds the scroll loop; zero keeps scrolling until enough cards show up
	MaxScrolls int
	UserAgent  string

	// randFloat is swapped out in tests
	randFloat func() float64
}

// NewCollector creates a collector for the listing page at url
func NewCollector(browser Browser, url string, scrollPause time.Duration, maxScrolls int) *Collector {
	return &Collector{
		Browser:     browser,
		URL:         url,
		Selectors:   DefaultSelectors,
		ScrollPause: scrollPause,
		MaxScrolls:  maxScrolls,
		UserAgent:   DefaultUserAgent,
		randFloat:   rand.Float64,
	}
}

// Collect returns the text of every loaded listing card, at least minimum of them
func (c *Collector) Collect(ctx context.Context, minimum int) (texts []string, err error) {
	log := logger.ForCollector()

	page, err := c.Browser.NewPage(ctx)
	if err != nil {
		return nil, apperrors.NewBrowser("collector", "failed to open listing page", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Failed to close listing page")
		}
	}()

	if err := page.SetViewport(1280, 926); err != nil {
		return nil, apperrors.NewBrowser("collector", "failed to set viewport", err)
	}
	if c.UserAgent != "" {
		if err := page.SetUserAgent(c.UserAgent); err != nil {
			return nil, apperrors.NewBrowser("collector", "failed to set user agent", err)
		}
	}

	log.Info().Str("url", c.URL).Int("minimum", minimum).Msg("Let's get those Glooms from the floor!")

	if err := page.Navigate(c.URL); err != nil {
		return nil, apperrors.NewBrowser("collector", fmt.Sprintf("failed to navigate to %s", c.URL), err)
	}
	if err := page.WaitFor(c.Selectors.ListingReady); err != nil {
		return nil, apperrors.NewBrowser("collector", "listing never rendered", err)
	}

	var cards []Element
	for scrolls := 0; ; scrolls++ {
		cards, err = page.Elements(c.Selectors.ListingCard)
		if err != nil {
			return nil, apperrors.NewBrowser("collector", "failed to query listing cards", err)
		}
		log.Debug().Int("cards", len(cards)).Int("scrolls", scrolls).Msg("Listing progress")

		if len(cards) >= minimum {
			break
		}
		if c.MaxScrolls > 0 && scrolls >= c.MaxScrolls {
			return nil, fmt.Errorf("%w: have %d, want %d after %d scrolls", ErrNotEnoughListings, len(cards), minimum, scrolls)
		}

		if err := page.Scroll(c.scrollFraction()); err != nil {
			return nil, apperrors.NewBrowser("collector", "failed to scroll listing", err)
		}
		if err := sleep(ctx, c.ScrollPause); err != nil {
			return nil, err
		}
	}

	log.Info().Int("cards", len(cards)).Msgf("Getting information from the cheapest %d Glooms", len(cards))

	texts = make([]string, 0, len(cards))
	for _, card := range cards {
		text, err := card.Text()
		if err != nil {
			return nil, apperrors.NewBrowser("collector", "failed to read card text", err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// scrollFraction picks where to scroll next: a random point between 50% and
// 90% of the page, or 75% when the draw falls outside that band.
func (c *Collector) scrollFraction() float64 {
	draw := c.randFloat
	if draw == nil {
		draw = rand.Float64
	}
	r := draw()
	if r > 0.5 && r < 0.9 {
		return r
	}
	return 0.75
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
