// Package session provides the browsing session capability the harvester
// drives: page loads, element lookup, clicks and history navigation against a
// single live document.
package session

import (
	"context"
	"errors"
	"fmt"
)

// By selects how a Locator's value is interpreted.
type By int

const (
	ByCSS By = iota
	ByXPath
	ByID
	ByClass
	// ByLinkText matches anchors whose visible text equals the value.
	ByLinkText
)

func (b By) String() string {
	switch b {
	case ByCSS:
		return "css"
	case ByXPath:
		return "xpath"
	case ByID:
		return "id"
	case ByClass:
		return "class"
	case ByLinkText:
		return "link text"
	default:
		return fmt.Sprintf("By(%d)", int(b))
	}
}

// Locator identifies zero or more elements in the current document.
type Locator struct {
	By    By
	Value string
}

func CSS(sel string) Locator       { return Locator{By: ByCSS, Value: sel} }
func XPath(expr string) Locator    { return Locator{By: ByXPath, Value: expr} }
func ID(id string) Locator         { return Locator{By: ByID, Value: id} }
func Class(name string) Locator    { return Locator{By: ByClass, Value: name} }
func LinkText(text string) Locator { return Locator{By: ByLinkText, Value: text} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Value == ""
}

// CSSSelector returns the CSS form of ID, Class and CSS locators.
func (l Locator) CSSSelector() (string, bool) {
	switch l.By {
	case ByCSS:
		return l.Value, true
	case ByID:
		return "#" + cssEscape(l.Value), true
	case ByClass:
		return "." + cssEscape(l.Value), true
	default:
		return "", false
	}
}

// LinkTextXPath returns an XPath that preselects anchors for a link text
// locator. Callers still compare rendered text exactly.
func LinkTextXPath(text string) string {
	return "//a[normalize-space(.)=" + xpathLiteral(text) + "]"
}

// Session is one live browsing context. It is not safe for concurrent use:
// the harvester runs a single goroutine against it.
type Session interface {
	// Load performs a full navigation and returns once the document loaded.
	Load(ctx context.Context, url string) error
	// Find returns every element matching loc in document order.
	Find(ctx context.Context, loc Locator) ([]Element, error)
	// Click activates el. Clicking a link blocks until the new document loaded.
	Click(ctx context.Context, el Element) error
	// HistoryBack pops exactly one history entry.
	HistoryBack(ctx context.Context) error
	// URL is the address of the current document.
	URL() string
	// Close releases the session and every resource it launched.
	Close() error
}

// Element is a handle into the document that was current when it was found.
// It must not be used after the next navigation.
type Element interface {
	// Text is the rendered text of the element.
	Text() (string, error)
	// Attribute returns the named attribute and whether it is present.
	Attribute(name string) (string, bool, error)
	// Find returns descendants matching loc.
	Find(loc Locator) ([]Element, error)
	// Children returns the element children in document order.
	Children() ([]Element, error)
	// Visible reports whether the element is rendered.
	Visible() (bool, error)
	// Clickable reports whether a click would reach the element.
	Clickable() (bool, error)
}

// ErrStale is returned when an element is used after the document it came
// from was replaced.
var ErrStale = errors.New("session: element belongs to a previous document")

// ErrClosed is returned by every operation on a closed session.
var ErrClosed = errors.New("session: closed")

func cssEscape(s string) string {
	var out []rune
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-', r > 0x7f:
			out = append(out, r)
		case r >= '0' && r <= '9' && i > 0:
			out = append(out, r)
		case r >= '0' && r <= '9':
			// a leading digit must be hex-escaped
			out = append(out, []rune(fmt.Sprintf("\\%x ", r))...)
		default:
			out = append(out, '\\', r)
		}
	}
	return string(out)
}

func xpathLiteral(s string) string {
	hasSingle := false
	hasDouble := false
	for _, r := range s {
		if r == '\'' {
			hasSingle = true
		}
		if r == '"' {
			hasDouble = true
		}
	}
	switch {
	case !hasSingle:
		return "'" + s + "'"
	case !hasDouble:
		return `"` + s + `"`
	}
	// both quote kinds: concat('...', "'", '...')
	out := "concat("
	part := ""
	for _, r := range s {
		if r == '\'' {
			out += "'" + part + "', \"'\", "
			part = ""
			continue
		}
		part += string(r)
	}
	return out + "'" + part + "')"
}
