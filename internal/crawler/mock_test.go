package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sjsage522/gloomfloor/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu     sync.Mutex
	cache  map[string][]byte
	getErr error
	sets   int
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// fakeDoc is what a fake page shows after navigating to a URL
type fakeDoc struct {
	texts    map[string]string
	elements map[string][]Element
	navErr   error
	delay    time.Duration
	// visible, when set, limits how many elements of a selector are loaded after n scrolls
	visible func(selector string, scrolls int) int
}

// fakeBrowser records how many pages are open at once
type fakeBrowser struct {
	mu         sync.Mutex
	docs       map[string]*fakeDoc
	newPageErr error
	open       int
	maxOpen    int
	opened     int
	closed     int
	visited    []string
	lastPage   *fakePage
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{docs: make(map[string]*fakeDoc)}
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	b.open++
	b.opened++
	if b.open > b.maxOpen {
		b.maxOpen = b.open
	}
	p := &fakePage{browser: b, ctx: ctx}
	b.lastPage = p
	return p, nil
}

func (b *fakeBrowser) Close() error { return nil }

func (b *fakeBrowser) stats() (open, maxOpen, opened, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open, b.maxOpen, b.opened, b.closed
}

type fakePage struct {
	browser   *fakeBrowser
	ctx       context.Context
	doc       *fakeDoc
	scrolls   []float64
	viewport  [2]int
	userAgent string
	closed    bool
}

func (p *fakePage) SetViewport(width, height int) error {
	p.viewport = [2]int{width, height}
	return nil
}

func (p *fakePage) SetUserAgent(userAgent string) error {
	p.userAgent = userAgent
	return nil
}

func (p *fakePage) Navigate(url string) error {
	p.browser.mu.Lock()
	doc, ok := p.browser.docs[url]
	p.browser.visited = append(p.browser.visited, url)
	p.browser.mu.Unlock()

	if !ok {
		return fmt.Errorf("navigation to %s failed: 404", url)
	}
	if doc.delay > 0 {
		select {
		case <-time.After(doc.delay):
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
	if doc.navErr != nil {
		return doc.navErr
	}
	p.doc = doc
	return nil
}

func (p *fakePage) WaitFor(selector string) error {
	if p.doc == nil {
		return errors.New("no document")
	}
	if _, ok := p.doc.texts[selector]; ok {
		return nil
	}
	if len(p.doc.elements[selector]) > 0 {
		return nil
	}
	return fmt.Errorf("timeout waiting for %q", selector)
}

func (p *fakePage) Text(selector string) (string, error) {
	if p.doc == nil {
		return "", errors.New("no document")
	}
	text, ok := p.doc.texts[selector]
	if !ok {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return text, nil
}

func (p *fakePage) Elements(selector string) ([]Element, error) {
	if p.doc == nil {
		return nil, errors.New("no document")
	}
	els := p.doc.elements[selector]
	if p.doc.visible != nil {
		n := p.doc.visible(selector, len(p.scrolls))
		if n < len(els) {
			els = els[:n]
		}
	}
	return els, nil
}

func (p *fakePage) Scroll(fraction float64) error {
	p.scrolls = append(p.scrolls, fraction)
	return nil
}

func (p *fakePage) Close() error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	if p.closed {
		return errors.New("page already closed")
	}
	p.closed = true
	p.browser.open--
	p.browser.closed++
	return nil
}

type fakeElement struct {
	text     string
	children map[string]Element
	err      error
}

func (e fakeElement) Text() (string, error) {
	return e.text, e.err
}

func (e fakeElement) Child(selector string) (Element, bool, error) {
	child, ok := e.children[selector]
	return child, ok, nil
}

// traitRow builds a ".text-lg" row holding a value span
func traitRow(text string) Element {
	return fakeElement{children: map[string]Element{"span": fakeElement{text: text}}}
}

// rarityDoc builds a rarity page showing rank and trait lines
func rarityDoc(rank string, lines ...string) *fakeDoc {
	rows := make([]Element, len(lines))
	for i, line := range lines {
		rows[i] = traitRow(line)
	}
	return &fakeDoc{
		texts:    map[string]string{DefaultSelectors.Rank: rank},
		elements: map[string][]Element{DefaultSelectors.TraitLine: rows},
	}
}
