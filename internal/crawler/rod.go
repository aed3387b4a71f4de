package crawler

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"sjsage522/gloomfloor/logger"
	apperrors "sjsage522/gloomfloor/pkg/errors"
)

const scrollScript = `(f) => window.scrollTo({top: document.body.scrollHeight * f, behavior: "smooth"})`

// BrowserOptions configures how the headless browser is obtained
type BrowserOptions struct {
	// ControlURL connects to an already running browser instead of launching one
	ControlURL string
	Bin        string
	Headless   bool
	// PageTimeout bounds every page operation; zero means no bound
	PageTimeout time.Duration
}

// RodBrowser implements Browser on top of go-rod
type RodBrowser struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	pageTimeout time.Duration
}

var _ Browser = (*RodBrowser)(nil)

// NewRodBrowser launches (or connects to) a Chromium instance
func NewRodBrowser(opts BrowserOptions) (*RodBrowser, error) {
	log := logger.ForComponent("browser")

	var (
		controlURL string
		l          *launcher.Launcher
		err        error
	)
	if opts.ControlURL != "" {
		controlURL, err = launcher.ResolveURL(opts.ControlURL)
		if err != nil {
			return nil, apperrors.NewBrowser("rod", "failed to resolve control url", err)
		}
	} else {
		l = launcher.New().
			Headless(opts.Headless).
			NoSandbox(true)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		controlURL, err = l.Launch()
		if err != nil {
			return nil, apperrors.NewBrowser("rod", "failed to launch browser", err)
		}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, apperrors.NewBrowser("rod", "failed to connect browser", err)
	}

	log.Info().
		Str("control_url", controlURL).
		Bool("launched", l != nil).
		Msg("Browser ready")

	return &RodBrowser{
		browser:     browser,
		launcher:    l,
		pageTimeout: opts.PageTimeout,
	}, nil
}

// NewPage opens a stealth tab bound to ctx
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	root, err := stealth.Page(b.browser)
	if err != nil {
		return nil, apperrors.NewBrowser("rod", "failed to open page", err)
	}
	page := root.Context(ctx)
	if b.pageTimeout > 0 {
		page = page.Timeout(b.pageTimeout)
	}
	return &rodPage{root: root, page: page}, nil
}

// Close shuts the browser down and removes a launched browser's profile
func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return err
}

// rodPage keeps the untimed root page so Close still works after ctx is done
type rodPage struct {
	root *rod.Page
	page *rod.Page
}

func (p *rodPage) SetViewport(width, height int) error {
	return p.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  width,
		Height: height,
	})
}

func (p *rodPage) SetUserAgent(userAgent string) error {
	return p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})
}

func (p *rodPage) Navigate(url string) error {
	if err := p.page.Navigate(url); err != nil {
		return err
	}
	return p.page.WaitLoad()
}

func (p *rodPage) WaitFor(selector string) error {
	_, err := p.page.Element(selector)
	return err
}

func (p *rodPage) Text(selector string) (string, error) {
	el, err := p.page.Element(selector)
	if err != nil {
		return "", err
	}
	return textContent(el)
}

func (p *rodPage) Elements(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = rodElement{el: el}
	}
	return out, nil
}

func (p *rodPage) Scroll(fraction float64) error {
	_, err := p.page.Eval(scrollScript, fraction)
	return err
}

func (p *rodPage) Close() error {
	return p.root.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) Text() (string, error) {
	return textContent(e.el)
}

func (e rodElement) Child(selector string) (Element, bool, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, false, err
	}
	if len(els) == 0 {
		return nil, false, nil
	}
	return rodElement{el: els.First()}, true, nil
}

// textContent reads the DOM textContent, which unlike innerText keeps the
// card text on a single line.
func textContent(el *rod.Element) (string, error) {
	obj, err := el.Eval(`() => this.textContent`)
	if err != nil {
		return "", err
	}
	return obj.Value.Str(), nil
}
