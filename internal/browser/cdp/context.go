// internal/browser/cdp/context.go
package cdp

import (
	"context"
	"time"
)

// CombineContext returns a context derived from session that is also canceled
// when op is canceled. Values, including the chromedp target, come from
// session; op usually carries the per-operation deadline.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)

	go func() {
		select {
		case <-op.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// valueOnlyContext keeps the values of its parent but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is never
// canceled by it. Cleanup of a browser tab runs on a detached context so it
// still happens after the scenario's context has expired.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
