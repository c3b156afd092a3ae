package wait

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/browser/browsertest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fixture = `<html><head><title>Fixture | OrangeHRM</title></head><body>
<p id="shown">hello</p>
<p id="hidden" hidden>later</p>
</body></html>`

func setup(t *testing.T, opts ...Option) (*Waiter, *browsertest.Driver) {
	t.Helper()
	d := browsertest.NewSite().Route("/", fixture).NewDriver()
	require.NoError(t, d.Navigate(context.Background(), browsertest.DefaultOrigin+"/"))
	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	return New(d, zaptest.NewLogger(t), opts...), d
}

func TestFor(t *testing.T) {
	ctx := context.Background()

	t.Run("AlreadySatisfied", func(t *testing.T) {
		w, _ := setup(t)
		start := time.Now()
		require.NoError(t, w.For(ctx, browser.Query("#shown"), browser.Visible, time.Second))
		assert.Less(t, time.Since(start), 100*time.Millisecond, "first check runs immediately")
	})

	t.Run("AttachedButHidden", func(t *testing.T) {
		w, _ := setup(t)
		require.NoError(t, w.For(ctx, browser.Query("#hidden"), browser.Attached, time.Second))

		err := w.For(ctx, browser.Query("#hidden"), browser.Visible, 50*time.Millisecond)
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
	})

	t.Run("BecomesVisible", func(t *testing.T) {
		w, d := setup(t)
		d.Do(func(p *browsertest.Page) {
			p.After(80*time.Millisecond, func(p *browsertest.Page) { p.Show("#hidden") })
		})

		start := time.Now()
		require.NoError(t, w.For(ctx, browser.Query("#hidden"), browser.Visible, time.Second))
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	})

	t.Run("TimeoutErrorNamesTargetAndCondition", func(t *testing.T) {
		w, _ := setup(t)
		loc := browser.Query(`input[placeholder="Username"]`)

		start := time.Now()
		err := w.For(ctx, loc, browser.Visible, 60*time.Millisecond)
		elapsed := time.Since(start)

		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, loc.String(), te.Target)
		assert.Equal(t, "be visible", te.Condition)
		assert.Equal(t, 60*time.Millisecond, te.Timeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), `input[placeholder="Username"]`)
		assert.Contains(t, err.Error(), "visible")
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	})

	t.Run("NonPositiveTimeoutUsesDefault", func(t *testing.T) {
		w, _ := setup(t, WithTimeout(40*time.Millisecond))
		assert.Equal(t, 40*time.Millisecond, w.DefaultTimeout())

		err := w.For(ctx, browser.Query("#missing"), browser.Attached, 0)
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 40*time.Millisecond, te.Timeout)
	})

	t.Run("TransientErrorsAreRetried", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		d := browsertest.NewSite().Route("/", fixture).NewDriver()
		require.NoError(t, d.Navigate(ctx, browsertest.DefaultOrigin+"/"))
		w := New(d, zap.New(core), WithPollInterval(5*time.Millisecond))

		d.FailNextInspections(3)
		require.NoError(t, w.For(ctx, browser.Query("#shown"), browser.Visible, time.Second))
		assert.Equal(t, 3, logs.FilterMessage("Transient inspection error, retrying.").Len())
	})

	t.Run("ParentCancellationIsNotATimeout", func(t *testing.T) {
		w, _ := setup(t)
		cctx, cancel := context.WithCancel(ctx)
		time.AfterFunc(30*time.Millisecond, cancel)

		err := w.For(cctx, browser.Query("#missing"), browser.Visible, time.Second)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsTimeout(err))
	})
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	w, d := setup(t)

	assert.True(t, w.Probe(ctx, browser.Query("#shown"), browser.Visible, time.Second))

	start := time.Now()
	assert.False(t, w.Probe(ctx, browser.Query("#missing"), browser.Visible, 50*time.Millisecond))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "a negative probe returns at its timeout")

	require.NoError(t, d.Close(ctx))
	assert.False(t, w.Probe(ctx, browser.Query("#shown"), browser.Visible, 30*time.Millisecond), "engine errors are absorbed")
}

func TestPageLevelWaits(t *testing.T) {
	ctx := context.Background()
	w, d := setup(t)

	require.NoError(t, w.ForTitle(ctx, browser.MustRegexp("OrangeHRM"), time.Second))
	require.NoError(t, w.ForURL(ctx, browser.Glob("https://*.test/"), time.Second))

	err := w.ForURL(ctx, browser.Glob("**/auth/login"), 40*time.Millisecond)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "url", te.Target)
	assert.Equal(t, "match glob(**/auth/login)", te.Condition)
	assert.Equal(t, browsertest.DefaultOrigin+"/", te.Observed)

	d.Do(func(p *browsertest.Page) {
		p.After(30*time.Millisecond, func(p *browsertest.Page) { p.SetHTML("title", "Changed") })
	})
	require.NoError(t, w.ForTitle(ctx, browser.Exact("Changed"), time.Second))
}

func TestIsTimeout(t *testing.T) {
	te := &TimeoutError{Target: "h6", Condition: "be visible", Timeout: time.Second}
	assert.True(t, IsTimeout(te))
	assert.True(t, IsTimeout(fmt.Errorf("login: %w", te)))
	assert.False(t, IsTimeout(errors.New("boom")))
	assert.False(t, IsTimeout(context.DeadlineExceeded))
	assert.Equal(t, "timed out after 1s waiting for h6 to be visible", te.Error())
}
