package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/gloomfloor/pkg/errors"
)

const listingURL = "https://market.test/collection/gloompunk"

func listingCards(n int) []Element {
	cards := make([]Element, n)
	for i := range cards {
		cards[i] = fakeElement{text: fmt.Sprintf("#%d Gloom PunkClub%d.5", i+1, i+1)}
	}
	return cards
}

func listingDoc(total, perScroll int) *fakeDoc {
	return &fakeDoc{
		elements: map[string][]Element{
			DefaultSelectors.ListingReady: {fakeElement{}},
			DefaultSelectors.ListingCard:  listingCards(total),
		},
		visible: func(selector string, scrolls int) int {
			if selector != DefaultSelectors.ListingCard {
				return total
			}
			return perScroll * (scrolls + 1)
		},
	}
}

func TestCollectorScrollsUntilEnoughCards(t *testing.T) {
	browser := newFakeBrowser()
	browser.docs[listingURL] = listingDoc(50, 10)

	c := NewCollector(browser, listingURL, 0, 0)
	draws := []float64{0.6, 0.95, 0.2, 0.5}
	c.randFloat = func() float64 {
		d := draws[0]
		draws = append(draws[1:], d)
		return d
	}

	texts, err := c.Collect(context.Background(), 35)
	require.NoError(t, err)

	// 10, 20, 30 cards visible before the fourth query shows 40
	assert.Len(t, texts, 40)
	assert.Equal(t, "#1 Gloom PunkClub1.5", texts[0])
	assert.Equal(t, "#40 Gloom PunkClub40.5", texts[39])

	page := browser.lastPage
	assert.Equal(t, []float64{0.6, 0.75, 0.75}, page.scrolls)
	assert.Equal(t, [2]int{1280, 926}, page.viewport)
	assert.Equal(t, DefaultUserAgent, page.userAgent)
	assert.True(t, page.closed)
	assert.Equal(t, []string{listingURL}, browser.visited)
}

func TestCollectorReturnsWithoutScrollingWhenEnoughLoaded(t *testing.T) {
	browser := newFakeBrowser()
	browser.docs[listingURL] = listingDoc(12, 100)

	texts, err := NewCollector(browser, listingURL, time.Hour, 0).Collect(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, texts, 12)
	assert.Empty(t, browser.lastPage.scrolls)
}

func TestCollectorGivesUpAfterMaxScrolls(t *testing.T) {
	browser := newFakeBrowser()
	browser.docs[listingURL] = listingDoc(15, 5)

	_, err := NewCollector(browser, listingURL, 0, 3).Collect(context.Background(), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEnoughListings)
	assert.Contains(t, err.Error(), "have 15, want 100 after 3 scrolls")
	assert.Len(t, browser.lastPage.scrolls, 3)
	assert.True(t, browser.lastPage.closed)
}

func TestCollectorStopsOnCancel(t *testing.T) {
	browser := newFakeBrowser()
	browser.docs[listingURL] = listingDoc(10, 1)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(browser, listingURL, time.Hour, 0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Collect(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, browser.lastPage.closed)
}

func TestCollectorBrowserErrors(t *testing.T) {
	t.Run("new page", func(t *testing.T) {
		browser := newFakeBrowser()
		browser.newPageErr = errors.New("browser crashed")

		_, err := NewCollector(browser, listingURL, 0, 0).Collect(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBrowser))
	})

	t.Run("navigation", func(t *testing.T) {
		browser := newFakeBrowser()

		_, err := NewCollector(browser, listingURL, 0, 0).Collect(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBrowser))
		assert.Contains(t, err.Error(), "404")
		assert.True(t, browser.lastPage.closed)
	})

	t.Run("listing never renders", func(t *testing.T) {
		browser := newFakeBrowser()
		browser.docs[listingURL] = &fakeDoc{}

		_, err := NewCollector(browser, listingURL, 0, 0).Collect(context.Background(), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing never rendered")
	})

	t.Run("card text", func(t *testing.T) {
		browser := newFakeBrowser()
		browser.docs[listingURL] = &fakeDoc{
			elements: map[string][]Element{
				DefaultSelectors.ListingReady: {fakeElement{}},
				DefaultSelectors.ListingCard:  {fakeElement{err: errors.New("detached node")}},
			},
		}

		_, err := NewCollector(browser, listingURL, 0, 0).Collect(context.Background(), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "detached node")
	})
}

func TestScrollFraction(t *testing.T) {
	tests := map[float64]float64{
		0.0:  0.75,
		0.5:  0.75,
		0.51: 0.51,
		0.89: 0.89,
		0.9:  0.75,
		0.99: 0.75,
	}
	for draw, want := range tests {
		c := &Collector{randFloat: func() float64 { return draw }}
		assert.Equal(t, want, c.scrollFraction(), "draw %v", draw)
	}

	// zero value collector still picks a fraction in range
	f := (&Collector{}).scrollFraction()
	assert.True(t, f > 0.5 && f < 0.9 || f == 0.75)
}
