// internal/browser/driver.go
//
// Package browser defines the contract between the harness core and the
// external UI engine that actually renders pages. The core never talks to a
// browser directly: every navigation, inspection and action goes through a
// Driver, which lets the same page objects run on top of chromedp, playwright,
// or the in-memory engine used by the test suites.
package browser

import (
	"context"
	"fmt"
	"strconv"
)

// Locator is a re-resolvable reference to an element. It is a query, not a
// cached node: drivers evaluate it again on every inspection and action, which
// keeps references valid across DOM mutations.
type Locator struct {
	// Query is a CSS selector.
	Query string
	// HasText, when set, keeps only elements whose text content contains it.
	HasText string
}

// Query builds a Locator from a CSS selector.
func Query(css string) Locator {
	return Locator{Query: css}
}

// WithText narrows the locator to elements containing text.
func (l Locator) WithText(text string) Locator {
	l.HasText = text
	return l
}

func (l Locator) String() string {
	if l.HasText == "" {
		return l.Query
	}
	return fmt.Sprintf("%s :has-text(%s)", l.Query, strconv.Quote(l.HasText))
}

// Condition is a readiness state an element can be waited for.
type Condition int

const (
	// Visible means at least one match is rendered with a non-empty box.
	Visible Condition = iota
	// Attached means at least one match exists in the DOM.
	Attached
)

func (c Condition) String() string {
	switch c {
	case Visible:
		return "visible"
	case Attached:
		return "attached"
	default:
		return "condition(" + strconv.Itoa(int(c)) + ")"
	}
}

// ElementState is a point-in-time snapshot of what a Locator resolves to.
type ElementState struct {
	// Count is the number of matching elements.
	Count int
	// Visible reports whether the first match is visible.
	Visible bool
}

// Attached reports whether anything matched.
func (s ElementState) Attached() bool { return s.Count > 0 }

// Satisfies reports whether the snapshot meets c.
func (s ElementState) Satisfies(c Condition) bool {
	switch c {
	case Visible:
		return s.Attached() && s.Visible
	case Attached:
		return s.Attached()
	default:
		return false
	}
}

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Driver is the capability surface of one browser session. Implementations
// are not required to be safe for concurrent use; each scenario owns its own.
// Element actions target the first match of a Locator.
type Driver interface {
	// Navigate loads url and returns once the main document has committed.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current document.
	Reload(ctx context.Context) error
	// WaitForNetworkIdle blocks until no network activity has been seen for a
	// short quiet window, or ctx is done.
	WaitForNetworkIdle(ctx context.Context) error
	// Inspect resolves loc and reports its current state. It never waits.
	Inspect(ctx context.Context, loc Locator) (ElementState, error)
	// Fill replaces the value of the first input matching loc.
	Fill(ctx context.Context, loc Locator, value string) error
	// Click clicks the first element matching loc.
	Click(ctx context.Context, loc Locator) error
	// Text returns the text content of the first match, or nil when it has none.
	Text(ctx context.Context, loc Locator) (*string, error)
	// AllTexts returns the text content of every match, in document order.
	AllTexts(ctx context.Context, loc Locator) ([]string, error)
	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Title returns the document title.
	Title(ctx context.Context) (string, error)
	// URL returns the current document URL.
	URL(ctx context.Context) (string, error)
	// SetViewport resizes the page.
	SetViewport(ctx context.Context, vp Viewport) error
	// Close releases the session. It is idempotent.
	Close(ctx context.Context) error
}

// Launcher creates isolated Driver sessions that share one browser process.
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
	Close() error
}
