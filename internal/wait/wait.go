// Package wait is the single synchronization primitive of the harness. Every
// element interaction passes through Waiter.For, which polls the browser
// engine until a readiness condition holds or a bounded timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

const (
	// DefaultTimeout bounds a wait when the caller passes no timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultPollInterval paces successive inspections.
	DefaultPollInterval = 100 * time.Millisecond
)

// TimeoutError reports a bounded wait that expired before its condition held.
type TimeoutError struct {
	// Target is the awaited element, or "url"/"title" for page-level waits.
	Target string
	// Condition is the awaited state, phrased to follow "to", e.g. "be visible".
	Condition string
	Timeout   time.Duration
	// Observed is the last value seen by a page-level wait.
	Observed string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s to %s", e.Timeout, e.Target, e.Condition)
	if e.Observed != "" {
		msg += fmt.Sprintf(" (last seen %q)", e.Observed)
	}
	return msg
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) recognize timeouts.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Waiter polls one driver. It holds no per-wait state and is safe to reuse
// for sequential waits on the same session.
type Waiter struct {
	driver   browser.Driver
	logger   *zap.Logger
	timeout  time.Duration
	interval time.Duration
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithTimeout overrides the default timeout.
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithPollInterval overrides the poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// New builds a Waiter for driver.
func New(driver browser.Driver, logger *zap.Logger, opts ...Option) *Waiter {
	w := &Waiter{
		driver:   driver,
		logger:   logger.Named("wait"),
		timeout:  DefaultTimeout,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DefaultTimeout returns the timeout used when a wait passes none.
func (w *Waiter) DefaultTimeout() time.Duration { return w.timeout }

// For blocks until loc satisfies cond or timeout elapses (timeout <= 0 means
// the default). Expiry yields a *TimeoutError; cancellation of ctx itself
// yields ctx.Err().
func (w *Waiter) For(ctx context.Context, loc browser.Locator, cond browser.Condition, timeout time.Duration) error {
	check := func(ctx context.Context) (bool, string, error) {
		state, err := w.driver.Inspect(ctx, loc)
		if err != nil {
			return false, "", err
		}
		return state.Satisfies(cond), "", nil
	}
	return w.poll(ctx, loc.String(), "be "+cond.String(), timeout, check)
}

// Probe is the non-throwing variant of For. It reports whether cond held
// before timeout and never returns an error.
func (w *Waiter) Probe(ctx context.Context, loc browser.Locator, cond browser.Condition, timeout time.Duration) bool {
	err := w.For(ctx, loc, cond, timeout)
	if err != nil {
		w.logger.Debug("Probe negative.", zap.Stringer("target", loc), zap.Stringer("condition", cond), zap.Error(err))
		return false
	}
	return true
}

// ForURL waits for the current URL to satisfy m.
func (w *Waiter) ForURL(ctx context.Context, m browser.Matcher, timeout time.Duration) error {
	return w.poll(ctx, "url", "match "+m.String(), timeout, func(ctx context.Context) (bool, string, error) {
		u, err := w.driver.URL(ctx)
		if err != nil {
			return false, "", err
		}
		return m.Match(u), u, nil
	})
}

// ForTitle waits for the document title to satisfy m.
func (w *Waiter) ForTitle(ctx context.Context, m browser.Matcher, timeout time.Duration) error {
	return w.poll(ctx, "title", "match "+m.String(), timeout, func(ctx context.Context) (bool, string, error) {
		title, err := w.driver.Title(ctx)
		if err != nil {
			return false, "", err
		}
		return m.Match(title), title, nil
	})
}

type checkFunc func(ctx context.Context) (ok bool, observed string, err error)

func (w *Waiter) poll(ctx context.Context, target, condition string, timeout time.Duration, check checkFunc) error {
	if timeout <= 0 {
		timeout = w.timeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A burst of one lets the first check run immediately.
	limiter := rate.NewLimiter(rate.Every(w.interval), 1)
	var observed string
	attempts := 0

	for {
		if err := limiter.Wait(waitCtx); err != nil {
			// The limiter refuses a slot that lies past the deadline. Take one
			// last look just before expiry so a late change is still seen.
			if waitCtx.Err() == nil && w.lastLook(waitCtx, check, &observed) {
				return nil
			}
			break
		}
		attempts++
		ok, seen, err := check(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				break
			}
			w.logger.Debug("Transient inspection error, retrying.", zap.String("target", target), zap.Error(err))
			continue
		}
		observed = seen
		if ok {
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	w.logger.Debug("Wait timed out.",
		zap.String("target", target),
		zap.String("condition", condition),
		zap.Duration("timeout", timeout),
		zap.Int("attempts", attempts))
	return &TimeoutError{Target: target, Condition: condition, Timeout: timeout, Observed: observed}
}

// lastLookMargin is how far ahead of the deadline the final check starts.
const lastLookMargin = 10 * time.Millisecond

func (w *Waiter) lastLook(ctx context.Context, check checkFunc, observed *string) bool {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl) - lastLookMargin; d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return false
			}
		}
	}
	ok, seen, err := check(ctx)
	if err != nil {
		return false
	}
	*observed = seen
	return ok
}
