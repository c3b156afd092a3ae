package pwdriver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/config"
)

func TestSelector(t *testing.T) {
	assert.Equal(t, "h6", selector(browser.Query("h6")))
	assert.Equal(t, `.oxd-dropdown-menu a:has-text("Logout")`, selector(browser.Query(".oxd-dropdown-menu a").WithText("Logout")))
	assert.Equal(t, `li:has-text("say \"hi\"")`, selector(browser.Query("li").WithText(`say "hi"`)))
}

func TestTimeoutMS(t *testing.T) {
	assert.Nil(t, timeoutMS(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ms := timeoutMS(ctx)
	require.NotNil(t, ms)
	assert.InDelta(t, 2000, *ms, 100)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, float64(1), *timeoutMS(expired), "an expired deadline still gives playwright a positive timeout")
}

func TestLaunchOptions(t *testing.T) {
	cfg := config.BrowserConfig{Headless: true, Args: []string{"--lang=de-DE"}, ExecPath: "/opt/chrome"}

	opts := launchOptions(cfg)
	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)
	assert.Equal(t, []string{"--disable-gpu", "--no-sandbox", "--disable-dev-shm-usage", "--lang=de-DE"}, opts.Args)
	require.NotNil(t, opts.ExecutablePath)
	assert.Equal(t, "/opt/chrome", *opts.ExecutablePath)

	ctxOpts := contextOptions(config.BrowserConfig{Viewport: config.ViewportConfig{Width: 375, Height: 667}})
	require.NotNil(t, ctxOpts.Viewport)
	assert.Equal(t, 375, ctxOpts.Viewport.Width)
	assert.False(t, *ctxOpts.IgnoreHttpsErrors)
}

func TestCloseWithoutLaunch(t *testing.T) {
	l := NewLauncher(config.BrowserConfig{}, zaptest.NewLogger(t))
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())

	_, err := l.Launch(context.Background())
	assert.ErrorContains(t, err, "closed")
}

// TestDriverEndToEnd downloads and drives Chromium; it only runs with HRMCHECK_E2E=1.
func TestDriverEndToEnd(t *testing.T) {
	if os.Getenv("HRMCHECK_E2E") != "1" {
		t.Skip("set HRMCHECK_E2E=1 to run browser tests")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>OrangeHRM</title></head><body>
<input placeholder="Username"><h6>Dashboard</h6><p class="x" hidden>gone</p></body></html>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	l := NewLauncher(config.NewDefaultConfig().Browser, zaptest.NewLogger(t))
	defer l.Close()

	d, err := l.Launch(ctx)
	require.NoError(t, err)
	defer d.Close(ctx)

	require.NoError(t, d.Navigate(ctx, srv.URL))
	require.NoError(t, d.WaitForNetworkIdle(ctx))

	state, err := d.Inspect(ctx, browser.Query("h6").WithText("Dashboard"))
	require.NoError(t, err)
	assert.True(t, state.Satisfies(browser.Visible))

	state, err = d.Inspect(ctx, browser.Query(".x"))
	require.NoError(t, err)
	assert.False(t, state.Visible)

	require.NoError(t, d.Fill(ctx, browser.Query(`input[placeholder="Username"]`), "Admin"))

	png, err := d.Screenshot(ctx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	title, err := d.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OrangeHRM", title)
}
