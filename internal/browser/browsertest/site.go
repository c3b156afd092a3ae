// Package browsertest provides an in-memory browser.Driver backed by goquery.
// A Site is a set of HTML routes plus scripted behavior (click handlers and
// delayed DOM mutations). Each Driver holds its own copy of the DOM, so
// concurrent scenarios never share state.
package browsertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

// DefaultOrigin is the scheme and host the fake engine answers for.
const DefaultOrigin = "https://hrm.test"

// Handler runs when an element matching its locator is clicked.
type Handler func(p *Page)

type clickHandler struct {
	loc browser.Locator
	fn  Handler
}

// Site is the scripted application served by the fake engine. Configure it
// before creating drivers.
type Site struct {
	mu       sync.Mutex
	routes   map[string]string
	handlers []clickHandler
	onLoad   map[string]Handler
	launched int
}

// NewSite returns an empty site.
func NewSite() *Site {
	return &Site{
		routes: make(map[string]string),
		onLoad: make(map[string]Handler),
	}
}

// Route serves html at path. Paths are matched without query strings.
func (s *Site) Route(path, html string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = html
	return s
}

// OnLoad runs fn every time path is loaded, after the HTML is parsed.
func (s *Site) OnLoad(path string, fn Handler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLoad[path] = fn
	return s
}

// OnClick runs fn when the first match of a click is also matched by loc.
func (s *Site) OnClick(loc browser.Locator, fn Handler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, clickHandler{loc: loc, fn: fn})
	return s
}

// NewDriver opens a fresh session on the site.
func (s *Site) NewDriver() *Driver {
	s.mu.Lock()
	s.launched++
	s.mu.Unlock()
	return &Driver{site: s, viewport: browser.Viewport{Width: 1920, Height: 1080}}
}

// Launched reports how many drivers have been created.
func (s *Site) Launched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launched
}

func (s *Site) route(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	html, ok := s.routes[path]
	return html, ok
}

func (s *Site) loadHook(path string) Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onLoad[path]
}

func (s *Site) clickHandlers() []clickHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]clickHandler(nil), s.handlers...)
}

// Launcher adapts a Site to browser.Launcher.
type Launcher struct {
	Site *Site

	mu      sync.Mutex
	drivers []*Driver
	closed  bool
}

var _ browser.Launcher = (*Launcher)(nil)

func (l *Launcher) Launch(ctx context.Context) (browser.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errors.New("launcher is closed")
	}
	d := l.Site.NewDriver()
	l.drivers = append(l.drivers, d)
	return d, nil
}

func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Drivers returns every driver launched so far.
func (l *Launcher) Drivers() []*Driver {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Driver(nil), l.drivers...)
}

type mutation struct {
	due time.Time
	fn  Handler
}

// Driver is an in-memory browser session.
type Driver struct {
	site *Site

	mu            sync.Mutex
	doc           *goquery.Document
	url           string
	viewport      browser.Viewport
	pending       []mutation
	navigations   int
	actions       []string
	inspectErrors int
	closed        bool
}

var _ browser.Driver = (*Driver)(nil)

// Page is the handle scripted behavior uses to mutate the session.
type Page struct {
	d *Driver
}

// Find runs a CSS query against the live document.
func (p *Page) Find(css string) *goquery.Selection { return p.d.doc.Find(css) }

// Value returns the value of the first input matching css.
func (p *Page) Value(css string) string {
	v, _ := p.d.doc.Find(css).First().Attr("value")
	return v
}

// Show removes the hidden attribute from every match.
func (p *Page) Show(css string) { p.d.doc.Find(css).RemoveAttr("hidden") }

// Hide marks every match hidden.
func (p *Page) Hide(css string) { p.d.doc.Find(css).SetAttr("hidden", "") }

// SetHTML replaces the content of every match.
func (p *Page) SetHTML(css, html string) { p.d.doc.Find(css).SetHtml(html) }

// Append adds html at the end of every match.
func (p *Page) Append(css, html string) { p.d.doc.Find(css).AppendHtml(html) }

// Go loads path as if the application redirected there. The path is
// resolved against the current URL.
func (p *Page) Go(path string) {
	base, err := url.Parse(p.d.url)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(DefaultOrigin)
	}
	ref, err := url.Parse(path)
	if err != nil {
		p.d.load(DefaultOrigin + path)
		return
	}
	p.d.load(base.ResolveReference(ref).String())
}

// After schedules fn to run once delay has passed. Mutations are applied
// lazily on the next driver call, so no goroutines are involved.
func (p *Page) After(delay time.Duration, fn Handler) {
	p.d.pending = append(p.d.pending, mutation{due: time.Now().Add(delay), fn: fn})
}

// Navigations reports how many times Navigate or Reload was called.
func (d *Driver) Navigations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.navigations
}

// Actions lists the fills and clicks performed, in order.
func (d *Driver) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.actions...)
}

// FailNextInspections makes the next n Inspect calls return an error.
func (d *Driver) FailNextInspections(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inspectErrors = n
}

// Viewport returns the current viewport.
func (d *Driver) Viewport() browser.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Do runs fn against the live document, applying due mutations first.
func (d *Driver) Do(fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settle()
	fn(&Page{d: d})
}

// enter locks the driver and applies due mutations. Callers must unlock.
func (d *Driver) enter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("browsertest: session is closed")
	}
	d.settle()
	return nil
}

func (d *Driver) settle() {
	now := time.Now()
	for {
		idx := -1
		for i, m := range d.pending {
			if !m.due.After(now) && (idx < 0 || m.due.Before(d.pending[idx].due)) {
				idx = i
			}
		}
		if idx < 0 {
			return
		}
		m := d.pending[idx]
		d.pending = append(d.pending[:idx], d.pending[idx+1:]...)
		m.fn(&Page{d: d})
	}
}

func (d *Driver) load(rawURL string) {
	d.url = rawURL
	d.pending = nil

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	html, ok := d.site.route(path)
	if !ok {
		html = "<html><head><title>404 Not Found</title></head><body><h1>Not Found</h1></body></html>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		d.doc = nil
		return
	}
	d.doc = doc

	if hook := d.site.loadHook(path); hook != nil {
		hook(&Page{d: d})
	}
}

// resolve returns the matches of loc in document order.
func (d *Driver) resolve(loc browser.Locator) *goquery.Selection {
	if d.doc == nil {
		return &goquery.Selection{}
	}
	sel := d.doc.Find(loc.Query)
	if loc.HasText == "" {
		return sel
	}
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), loc.HasText)
	})
}

// visible treats an element as rendered unless it or an ancestor is hidden.
func visible(sel *goquery.Selection) bool {
	hidden := func(s *goquery.Selection) bool {
		if _, ok := s.Attr("hidden"); ok {
			return true
		}
		style, _ := s.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
	}
	if hidden(sel) {
		return false
	}
	visibleChain := true
	sel.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if hidden(p) {
			visibleChain = false
		}
		return visibleChain
	})
	return visibleChain
}

func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	if err := d.enter(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.navigations++
	d.load(rawURL)
	return nil
}

func (d *Driver) Reload(ctx context.Context) error {
	if err := d.enter(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if d.url == "" {
		return errors.New("browsertest: nothing to reload")
	}
	d.navigations++
	d.load(d.url)
	return nil
}

func (d *Driver) WaitForNetworkIdle(ctx context.Context) error {
	if err := d.enter(ctx); err != nil {
		return err
	}
	d.mu.Unlock()
	return nil
}

func (d *Driver) Inspect(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	if err := d.enter(ctx); err != nil {
		return browser.ElementState{}, err
	}
	defer d.mu.Unlock()
	if d.inspectErrors > 0 {
		d.inspectErrors--
		return browser.ElementState{}, fmt.Errorf("browsertest: injected failure inspecting %s", loc)
	}
	sel := d.resolve(loc)
	if sel.Length() == 0 {
		return browser.ElementState{}, nil
	}
	return browser.ElementState{Count: sel.Length(), Visible: visible(sel.First())}, nil
}

func (d *Driver) first(loc browser.Locator) (*goquery.Selection, error) {
	sel := d.resolve(loc)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("browsertest: no element matches %s", loc)
	}
	return sel.First(), nil
}

func (d *Driver) Fill(ctx context.Context, loc browser.Locator, value string) error {
	if err := d.enter(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()
	el, err := d.first(loc)
	if err != nil {
		return err
	}
	el.SetAttr("value", value)
	d.actions = append(d.actions, fmt.Sprintf("fill %s=%s", loc, value))
	return nil
}

func (d *Driver) Click(ctx context.Context, loc browser.Locator) error {
	if err := d.enter(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()
	el, err := d.first(loc)
	if err != nil {
		return err
	}
	d.actions = append(d.actions, "click "+loc.String())

	target := el.Nodes[0]
	for _, h := range d.site.clickHandlers() {
		for _, n := range d.resolve(h.loc).Nodes {
			if n == target {
				h.fn(&Page{d: d})
				break
			}
		}
	}
	return nil
}

func (d *Driver) Text(ctx context.Context, loc browser.Locator) (*string, error) {
	if err := d.enter(ctx); err != nil {
		return nil, err
	}
	defer d.mu.Unlock()
	el, err := d.first(loc)
	if err != nil {
		return nil, err
	}
	text := el.Text()
	return &text, nil
}

func (d *Driver) AllTexts(ctx context.Context, loc browser.Locator) ([]string, error) {
	if err := d.enter(ctx); err != nil {
		return nil, err
	}
	defer d.mu.Unlock()
	var texts []string
	d.resolve(loc).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	return texts, nil
}

// Screenshot returns a PNG sized to the viewport.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.enter(ctx); err != nil {
		return nil, err
	}
	vp := d.viewport
	d.mu.Unlock()
	vp.Width, vp.Height = max(vp.Width, 1), max(vp.Height, 1)

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, vp.Width, vp.Height))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	if err := d.enter(ctx); err != nil {
		return "", err
	}
	defer d.mu.Unlock()
	if d.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	if err := d.enter(ctx); err != nil {
		return "", err
	}
	defer d.mu.Unlock()
	if d.url == "" {
		return "about:blank", nil
	}
	return d.url, nil
}

func (d *Driver) SetViewport(ctx context.Context, vp browser.Viewport) error {
	if err := d.enter(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.viewport = vp
	return nil
}

func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
