package e2ekit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Page is the handle page objects are built around. It wraps a session's
// browsing context (shared, not owned) plus the base URL and the action
// timeout. Constructing a Page, or any Locator from it, performs no browser
// interaction; locators resolve lazily on each action.
type Page struct {
	ctx      context.Context
	baseURL  string
	timeout  time.Duration
	recorder *Recorder
}

// NewPage binds a Page to a session. Pure binding: no CDP traffic happens
// until an action method is called.
func NewPage(s *Session) *Page {
	return &Page{
		ctx:     s.ctx,
		baseURL: s.cfg.BaseURL,
		timeout: s.cfg.ActionTimeout,
	}
}

// WithRecorder returns a copy of the page that records action timings into
// rec. The browsing-context binding is unchanged.
func (p *Page) WithRecorder(rec *Recorder) *Page {
	copied := *p
	copied.recorder = rec
	return &copied
}

// WithBaseURL returns a copy of the page whose relative navigation
// resolves against the given base, e.g. the address of a server fixture
// started on a free port. The browsing-context binding is unchanged.
func (p *Page) WithBaseURL(baseURL string) *Page {
	copied := *p
	copied.baseURL = baseURL
	return &copied
}

// Context exposes the browsing-context handle. Page objects returned by
// navigation actions must be bound to this same context.
func (p *Page) Context() context.Context {
	return p.ctx
}

// resolveURL joins a relative path (query string included) with the base
// URL. Absolute URLs pass through untouched.
func (p *Page) resolveURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		// Naive join; the navigation error will say more.
		return strings.TrimSuffix(p.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	return base.ResolveReference(ref).String()
}

// run executes chromedp actions under the configured action timeout and
// records the timing. Errors from the automation engine propagate unchanged.
func (p *Page) run(name string, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := chromedp.Run(ctx, actions...)
	if p.recorder != nil {
		p.recorder.RecordAction(name, time.Since(start), err)
	}
	return err
}

// Navigate loads the given path (joined with the base URL) and waits for
// the page to be ready.
func (p *Page) Navigate(path string) error {
	return p.run("navigate "+path, chromedp.Navigate(p.resolveURL(path)))
}

// Reload reloads the current page.
func (p *Page) Reload() error {
	return p.run("reload", chromedp.Reload())
}

// URL returns the current location of the browsing context.
func (p *Page) URL() (string, error) {
	var loc string
	err := p.run("url", chromedp.Location(&loc))
	return loc, err
}

// Title returns the current document title.
func (p *Page) Title() (string, error) {
	var title string
	err := p.run("title", chromedp.Title(&title))
	return title, err
}

// HTML returns the document's outer HTML.
func (p *Page) HTML() (string, error) {
	var html string
	err := p.run("html", chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Screenshot captures the current viewport as PNG.
func (p *Page) Screenshot() ([]byte, error) {
	var buf []byte
	if err := p.run("screenshot", chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Evaluate runs a javascript expression and stores the result in res
// (pass nil to discard it).
func (p *Page) Evaluate(expr string, res any) error {
	return p.run("evaluate", chromedp.Evaluate(expr, res))
}

// Locator builds a deferred element reference from a CSS selector.
func (p *Page) Locator(selector string) *Locator {
	return &Locator{page: p, strategy: byCSS, value: selector}
}

// ByText locates an element whose normalized text equals the given string.
func (p *Page) ByText(text string) *Locator {
	return &Locator{page: p, strategy: byText, value: text}
}

// ByRole locates an element by ARIA role and accessible name. Implicit
// roles of native elements (button, link, heading...) are honored.
func (p *Page) ByRole(role, name string) *Locator {
	return &Locator{page: p, strategy: byRole, value: role, qualifier: name}
}

// ByLabel locates the form control associated with a <label> of the given
// text, or carrying it as an aria-label.
func (p *Page) ByLabel(label string) *Locator {
	return &Locator{page: p, strategy: byLabel, value: label}
}

// ByTestID locates an element by its data-testid attribute.
func (p *Page) ByTestID(id string) *Locator {
	return &Locator{page: p, strategy: byTestID, value: id}
}
