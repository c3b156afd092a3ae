package pages

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/browser/browsertest"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSettings(t *testing.T) Settings {
	return Settings{
		BaseURL:           browsertest.DefaultOrigin + browsertest.BasePath,
		ElementTimeout:    500 * time.Millisecond,
		ProbeTimeout:      150 * time.Millisecond,
		ErrorProbeTimeout: 300 * time.Millisecond,
		NavigationTimeout: time.Second,
		AssertionTimeout:  200 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		ScreenshotDir:     t.TempDir(),
	}
}

type fixture struct {
	driver *browsertest.Driver
	base   *Base
	login  *LoginPage
}

func newFixture(t *testing.T, opts browsertest.OrangeHRMOptions, tweak ...func(*Settings)) *fixture {
	t.Helper()
	settings := testSettings(t)
	for _, fn := range tweak {
		fn(&settings)
	}
	logger := zaptest.NewLogger(t)
	d := browsertest.OrangeHRM(opts).NewDriver()
	base := NewBase(d, settings, logger)
	return &fixture{driver: d, base: base, login: NewLoginPage(base, logger)}
}

func (f *fixture) url(t *testing.T) string {
	t.Helper()
	u, err := f.driver.URL(context.Background())
	require.NoError(t, err)
	return u
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	s := SettingsFromConfig(cfg)
	assert.Equal(t, cfg.App.BaseURL, s.BaseURL)
	assert.Equal(t, 10*time.Second, s.ElementTimeout)
	assert.Equal(t, 3*time.Second, s.ErrorProbeTimeout)
	assert.Equal(t, filepath.Join("test-results", "screenshots"), s.ScreenshotDir)

	filled := Settings{}.withDefaults()
	assert.Equal(t, wait.DefaultTimeout, filled.ElementTimeout)
	assert.Equal(t, 5*time.Second, filled.ProbeTimeout)
	assert.Equal(t, "screenshots", filled.ScreenshotDir)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://hrm.test/web", "", "https://hrm.test/web/"},
		{"https://hrm.test/web", "/", "https://hrm.test/web/"},
		{"https://hrm.test/web/", "/index.php/auth/login", "https://hrm.test/web/index.php/auth/login"},
		{"https://hrm.test/web", "index.php", "https://hrm.test/web/index.php"},
		{"https://hrm.test/web", "https://other.test/x", "https://other.test/x"},
	}
	for _, tt := range tests {
		b := &Base{settings: Settings{BaseURL: tt.base}}
		assert.Equal(t, tt.want, b.resolve(tt.path), "%s + %s", tt.base, tt.path)
	}
}

func TestBase(t *testing.T) {
	ctx := context.Background()

	t.Run("NavigateRootFollowsRedirect", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, f.base.Navigate(ctx, ""))
		require.NoError(t, f.base.WaitForReady(ctx))
		assert.Equal(t, browsertest.DefaultOrigin+browsertest.LoginPath, f.url(t))
	})

	t.Run("InteractWaitsForTheElement", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, f.base.Navigate(ctx, ""))

		err := f.base.Interact(ctx, browser.Query("#nowhere"), Click())
		require.Error(t, err)
		assert.True(t, wait.IsTimeout(err))
		assert.Empty(t, f.driver.Actions(), "no action without a satisfied wait")

		require.NoError(t, f.base.Interact(ctx, usernameInput, Fill("Admin")))
		assert.Equal(t, []string{`fill input[placeholder="Username"]=Admin`}, f.driver.Actions())
	})

	t.Run("ReadText", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, f.base.Navigate(ctx, ""))

		text, err := f.base.ReadText(ctx, forgotPassword)
		require.NoError(t, err)
		assert.Equal(t, "Forgot your password?", text)

		_, err = f.base.ReadText(ctx, loginAlert)
		assert.True(t, wait.IsTimeout(err), "hidden alert cannot be read")
	})

	t.Run("Count", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, f.base.Navigate(ctx, ""))
		n, err := f.base.Count(ctx, browser.Query("input"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("Assertions", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, f.base.Navigate(ctx, ""))

		require.NoError(t, f.base.AssertTitle(ctx, browser.MustRegexp("OrangeHRM")))
		require.NoError(t, f.base.AssertURL(ctx, browser.Glob("**/auth/login")))

		err := f.base.AssertTitle(ctx, browser.Exact("Dashboard"))
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "title", ae.Subject)
		assert.Equal(t, `"Dashboard"`, ae.Expected)
		assert.Equal(t, "OrangeHRM", ae.Actual)

		err = f.base.AssertURL(ctx, browser.Glob("**/dashboard/*"))
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, browsertest.DefaultOrigin+browsertest.LoginPath, ae.Actual)
	})

	t.Run("CaptureScreenshot", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{})
		f.base.now = func() time.Time { return time.UnixMilli(1700000000000) }
		require.NoError(t, f.base.Navigate(ctx, ""))

		path, err := f.base.CaptureScreenshot(ctx, "login/admin")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(f.base.Settings().ScreenshotDir, "login_admin-1700000000000.png"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
	})

	t.Run("CaptureScreenshotCreatesDirectory", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{}, func(s *Settings) {
			s.ScreenshotDir = filepath.Join(t.TempDir(), "nested", "shots")
		})
		require.NoError(t, f.base.Navigate(ctx, ""))
		path, err := f.base.CaptureScreenshot(ctx, "")
		require.NoError(t, err)
		assert.FileExists(t, path)
		assert.Contains(t, filepath.Base(path), "screenshot-")
	})

	t.Run("SetViewport", func(t *testing.T) {
		f := newFixture(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, f.base.SetViewport(ctx, browser.Viewport{Width: 375, Height: 667}))
		assert.Equal(t, browser.Viewport{Width: 375, Height: 667}, f.driver.Viewport())
	})
}
