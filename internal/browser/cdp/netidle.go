// internal/browser/cdp/netidle.go
package cdp

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

const (
	// networkQuietPeriod is how long the page must go without network
	// activity before it counts as idle.
	networkQuietPeriod = 500 * time.Millisecond
	// networkIdleCheckFrequency is how often the in-flight count is sampled.
	networkIdleCheckFrequency = 50 * time.Millisecond
)

// netTracker counts in-flight requests of one tab from CDP network events.
type netTracker struct {
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
}

func newNetTracker(logger *zap.Logger) *netTracker {
	return &netTracker{
		logger:   logger,
		inflight: make(map[network.RequestID]struct{}),
	}
}

// handle consumes one target event. It is registered with chromedp.ListenTarget.
func (t *netTracker) handle(ev interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		// Redirects reuse the request ID, so a set keeps the count honest.
		t.inflight[ev.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, ev.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, ev.RequestID)
	}
}

func (t *netTracker) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// waitIdle blocks until no request has been in flight for quietPeriod.
func (t *netTracker) waitIdle(ctx context.Context, quietPeriod time.Duration) error {
	t.logger.Debug("Waiting for network to become idle.")

	// The timer only runs while the page is idle; any activity stops it.
	timer := time.NewTimer(quietPeriod)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()

	isIdle := false
	ticker := time.NewTicker(networkIdleCheckFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.active() > 0 {
				if isIdle {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					isIdle = false
				}
				continue
			}
			if !isIdle {
				timer.Reset(quietPeriod)
				isIdle = true
			}
		case <-timer.C:
			t.logger.Debug("Network is idle.")
			return nil
		}
	}
}
