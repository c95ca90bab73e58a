package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// modalSelector matches overlays that intercept clicks on the rest of the page.
const modalSelector = `dialog[open], [aria-modal="true"]`

// dismissSelector matches the container removed when a control inside it is
// clicked and the control is not a link.
const dismissSelector = `dialog, [role="dialog"], [role="alertdialog"], [aria-modal="true"]`

// Static is a script-less session over fetched HTML. It keeps a history
// stack of parsed documents; every navigation (load, link click or back)
// makes previously returned elements stale.
type Static struct {
	fetcher Fetcher
	history []*staticDoc
	gen     uint64
	closed  bool
}

type staticDoc struct {
	url string
	doc *goquery.Document
	gen uint64
}

// NewStatic creates a static session that retrieves pages through f.
func NewStatic(f Fetcher) *Static {
	return &Static{fetcher: f}
}

var _ Session = (*Static)(nil)

func (s *Static) current() *staticDoc {
	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1]
}

func (s *Static) URL() string {
	if cur := s.current(); cur != nil {
		return cur.url
	}
	return "about:blank"
}

// Load fetches rawURL (resolved against the current document) and pushes it
// onto the history.
func (s *Static) Load(ctx context.Context, rawURL string) error {
	if s.closed {
		return ErrClosed
	}
	target, err := s.resolve(rawURL)
	if err != nil {
		return err
	}
	fetched, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return fmt.Errorf("static: load %s: %w", target, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetched.Body))
	if err != nil {
		return fmt.Errorf("static: parse %s: %w", fetched.URL, err)
	}
	s.gen++
	s.history = append(s.history, &staticDoc{url: fetched.URL, doc: doc, gen: s.gen})
	slog.Debug("static session loaded", "url", fetched.URL, "depth", len(s.history))
	return nil
}

func (s *Static) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("static: bad url %q: %w", rawURL, err)
	}
	cur := s.current()
	if cur == nil || ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(cur.url)
	if err != nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// HistoryBack returns to the previous document. With a single document in
// the history it does nothing, like a browser's back button.
func (s *Static) HistoryBack(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.history) <= 1 {
		return nil
	}
	s.history = s.history[:len(s.history)-1]
	s.gen++
	s.current().gen = s.gen
	return nil
}

func (s *Static) Find(ctx context.Context, loc Locator) ([]Element, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := s.current()
	if cur == nil {
		return nil, nil
	}
	nodes, err := s.query(cur, cur.doc.Selection, loc)
	if err != nil {
		return nil, err
	}
	return s.wrap(cur, nodes), nil
}

// query evaluates loc against the descendants of scope.
func (s *Static) query(cur *staticDoc, scope *goquery.Selection, loc Locator) ([]*html.Node, error) {
	switch loc.By {
	case ByXPath:
		var out []*html.Node
		for _, n := range scope.Nodes {
			found, err := htmlquery.QueryAll(n, loc.Value)
			if err != nil {
				return nil, fmt.Errorf("static: xpath %q: %w", loc.Value, err)
			}
			out = append(out, found...)
		}
		return out, nil
	case ByLinkText:
		var out []*html.Node
		scope.Find("a").Each(func(_ int, a *goquery.Selection) {
			n := a.Get(0)
			if !hidden(n) && renderText(n) == loc.Value {
				out = append(out, n)
			}
		})
		return out, nil
	default:
		sel, ok := loc.CSSSelector()
		if !ok {
			return nil, fmt.Errorf("static: unsupported locator %s", loc)
		}
		m, err := cascadia.Compile(sel)
		if err != nil {
			return nil, fmt.Errorf("static: selector %q: %w", sel, err)
		}
		return scope.FindMatcher(m).Nodes, nil
	}
}

func (s *Static) wrap(cur *staticDoc, nodes []*html.Node) []Element {
	els := make([]Element, len(nodes))
	for i, n := range nodes {
		els[i] = &staticElement{s: s, doc: cur, node: n, gen: cur.gen}
	}
	return els
}

// Click follows a link element (or the link enclosing it). Any other element
// closes the dialog it sits in, which is how consent controls behave.
func (s *Static) Click(ctx context.Context, el Element) error {
	if s.closed {
		return ErrClosed
	}
	se, ok := el.(*staticElement)
	if !ok {
		return fmt.Errorf("static: foreign element %T", el)
	}
	if err := se.check(); err != nil {
		return err
	}
	clickable, _ := se.Clickable()
	if !clickable {
		return fmt.Errorf("static: element <%s> is not clickable", se.node.Data)
	}

	sel := se.doc.doc.FindNodes(se.node)
	if link := sel.Closest("a[href]"); link.Length() > 0 {
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil
		}
		return s.Load(ctx, href)
	}
	if box := sel.Closest(dismissSelector); box.Length() > 0 {
		box.Remove()
	}
	return nil
}

// Close drops every document. Closing twice is harmless.
func (s *Static) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.history = nil
	if c, ok := s.fetcher.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

type staticElement struct {
	s    *Static
	doc  *staticDoc
	node *html.Node
	gen  uint64
}

func (e *staticElement) check() error {
	if e.s.closed {
		return ErrClosed
	}
	if cur := e.s.current(); cur != e.doc || e.doc.gen != e.gen {
		return ErrStale
	}
	return nil
}

func (e *staticElement) Text() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return renderText(e.node), nil
}

func (e *staticElement) Attribute(name string) (string, bool, error) {
	if err := e.check(); err != nil {
		return "", false, err
	}
	v, ok := attr(e.node, name)
	return v, ok, nil
}

func (e *staticElement) Find(loc Locator) ([]Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	nodes, err := e.s.query(e.doc, e.doc.doc.FindNodes(e.node), loc)
	if err != nil {
		return nil, err
	}
	return e.s.wrap(e.doc, nodes), nil
}

func (e *staticElement) Children() ([]Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	var nodes []*html.Node
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			nodes = append(nodes, c)
		}
	}
	return e.s.wrap(e.doc, nodes), nil
}

func (e *staticElement) Visible() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	return !hidden(e.node), nil
}

// Clickable is false for hidden or inert elements and for elements outside
// an open modal overlay.
func (e *staticElement) Clickable() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	if hidden(e.node) || inert(e.node) {
		return false, nil
	}
	for _, modal := range e.doc.doc.Find(modalSelector).Nodes {
		if hidden(modal) {
			continue
		}
		if !contains(modal, e.node) {
			return false, nil
		}
	}
	return true, nil
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
