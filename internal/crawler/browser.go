package crawler

import "context"

// Browser is a live headless browsing context that hands out pages
type Browser interface {
	// NewPage opens a fresh tab bound to ctx
	NewPage(ctx context.Context) (Page, error)

	// Close shuts the browser down
	Close() error
}

// Page is one open tab
type Page interface {
	SetViewport(width, height int) error
	SetUserAgent(userAgent string) error

	// Navigate loads url and waits for the document to finish loading
	Navigate(url string) error

	// WaitFor blocks until at least one element matches selector
	WaitFor(selector string) error

	// Text returns the text content of the first element matching selector
	Text(selector string) (string, error)

	// Elements returns every element currently matching selector, without waiting
	Elements(selector string) ([]Element, error)

	// Scroll smoothly scrolls to fraction of the document height
	Scroll(fraction float64) error

	Close() error
}

// Element is a node inside a page
type Element interface {
	// Text returns the element's text content
	Text() (string, error)

	// Child returns the first descendant matching selector; ok is false when there is none
	Child(selector string) (el Element, ok bool, err error)
}
