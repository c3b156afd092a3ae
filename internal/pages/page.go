// Package pages holds the page objects. Concrete pages compose a Page (the
// capability interface implemented by Base) and declare the locators and
// business operations of one screen.
package pages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/wait"
)

// Settings carries what page objects need from the configuration.
type Settings struct {
	BaseURL           string
	ElementTimeout    time.Duration
	ProbeTimeout      time.Duration
	ErrorProbeTimeout time.Duration
	NavigationTimeout time.Duration
	AssertionTimeout  time.Duration
	PollInterval      time.Duration
	ScreenshotDir     string
}

// SettingsFromConfig extracts page settings from the application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		BaseURL:           cfg.App.BaseURL,
		ElementTimeout:    cfg.Timeouts.Element,
		ProbeTimeout:      cfg.Timeouts.Probe,
		ErrorProbeTimeout: cfg.Timeouts.ErrorProbe,
		NavigationTimeout: cfg.Timeouts.Navigation,
		AssertionTimeout:  cfg.Timeouts.Assertion,
		PollInterval:      cfg.Timeouts.PollInterval,
		ScreenshotDir:     filepath.Join(cfg.Artifacts.Dir, cfg.Artifacts.Screenshots),
	}
}

func (s Settings) withDefaults() Settings {
	fallback := func(d *time.Duration, def time.Duration) {
		if *d <= 0 {
			*d = def
		}
	}
	fallback(&s.ElementTimeout, wait.DefaultTimeout)
	fallback(&s.ProbeTimeout, 5*time.Second)
	fallback(&s.ErrorProbeTimeout, 3*time.Second)
	fallback(&s.NavigationTimeout, 30*time.Second)
	fallback(&s.AssertionTimeout, 5*time.Second)
	fallback(&s.PollInterval, wait.DefaultPollInterval)
	if s.ScreenshotDir == "" {
		s.ScreenshotDir = "screenshots"
	}
	return s
}

// Action is an element interaction performed after the element is ready.
type Action struct {
	name string
	do   func(ctx context.Context, d browser.Driver, loc browser.Locator) error
}

func (a Action) String() string { return a.name }

// Fill replaces the value of an input.
func Fill(value string) Action {
	return Action{name: "fill", do: func(ctx context.Context, d browser.Driver, loc browser.Locator) error {
		return d.Fill(ctx, loc, value)
	}}
}

// Click clicks an element.
func Click() Action {
	return Action{name: "click", do: func(ctx context.Context, d browser.Driver, loc browser.Locator) error {
		return d.Click(ctx, loc)
	}}
}

// Page is the capability surface page objects delegate to.
type Page interface {
	Navigate(ctx context.Context, path string) error
	WaitForReady(ctx context.Context) error
	WaitFor(ctx context.Context, loc browser.Locator, cond browser.Condition, timeout time.Duration) error
	Interact(ctx context.Context, loc browser.Locator, action Action) error
	ReadText(ctx context.Context, loc browser.Locator) (string, error)
	ReadAllTexts(ctx context.Context, loc browser.Locator) ([]string, error)
	ProbeVisible(ctx context.Context, loc browser.Locator, timeout time.Duration) bool
	Count(ctx context.Context, loc browser.Locator) (int, error)
	CaptureScreenshot(ctx context.Context, name string) (string, error)
	AssertTitle(ctx context.Context, expected browser.Matcher) error
	AssertURL(ctx context.Context, expected browser.Matcher) error
	WaitForURL(ctx context.Context, expected browser.Matcher, timeout time.Duration) error
	Reload(ctx context.Context) error
	SetViewport(ctx context.Context, vp browser.Viewport) error
	URL(ctx context.Context) (string, error)
	Settings() Settings
}

// Base implements Page on top of a driver and a waiter.
type Base struct {
	driver   browser.Driver
	waiter   *wait.Waiter
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

var _ Page = (*Base)(nil)

// NewBase binds a Page to one browser session.
func NewBase(driver browser.Driver, settings Settings, logger *zap.Logger) *Base {
	settings = settings.withDefaults()
	logger = logger.Named("pages")
	return &Base{
		driver: driver,
		waiter: wait.New(driver, logger,
			wait.WithTimeout(settings.ElementTimeout),
			wait.WithPollInterval(settings.PollInterval)),
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

func (b *Base) Settings() Settings { return b.settings }

// resolve joins path onto the base URL. Absolute URLs pass through.
func (b *Base) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		path = "/"
	}
	return strings.TrimRight(b.settings.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Navigate requests navigation to path ("" means the root). It does not wait
// for the page to settle.
func (b *Base) Navigate(ctx context.Context, path string) error {
	target := b.resolve(path)
	ctx, cancel := context.WithTimeout(ctx, b.settings.NavigationTimeout)
	defer cancel()
	b.logger.Debug("Navigating.", zap.String("url", target))
	if err := b.driver.Navigate(ctx, target); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	return nil
}

// WaitForReady waits for the page-level network idle condition.
func (b *Base) WaitForReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.settings.NavigationTimeout)
	defer cancel()
	if err := b.driver.WaitForNetworkIdle(ctx); err != nil {
		return fmt.Errorf("page did not become ready: %w", err)
	}
	return nil
}

func (b *Base) WaitFor(ctx context.Context, loc browser.Locator, cond browser.Condition, timeout time.Duration) error {
	return b.waiter.For(ctx, loc, cond, timeout)
}

// Interact waits for loc to be visible, then performs action on it.
func (b *Base) Interact(ctx context.Context, loc browser.Locator, action Action) error {
	if err := b.waiter.For(ctx, loc, browser.Visible, 0); err != nil {
		return err
	}
	b.logger.Debug("Interacting.", zap.Stringer("action", action), zap.Stringer("target", loc))
	if err := action.do(ctx, b.driver, loc); err != nil {
		return fmt.Errorf("%s %s: %w", action, loc, err)
	}
	return nil
}

// ReadText waits for loc, then returns its text. A null text reads as "".
func (b *Base) ReadText(ctx context.Context, loc browser.Locator) (string, error) {
	if err := b.waiter.For(ctx, loc, browser.Visible, 0); err != nil {
		return "", err
	}
	text, err := b.driver.Text(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", loc, err)
	}
	if text == nil {
		return "", nil
	}
	return strings.TrimSpace(*text), nil
}

// ReadAllTexts waits for the first match, then returns every match's text.
func (b *Base) ReadAllTexts(ctx context.Context, loc browser.Locator) ([]string, error) {
	if err := b.waiter.For(ctx, loc, browser.Visible, 0); err != nil {
		return nil, err
	}
	texts, err := b.driver.AllTexts(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("read texts of %s: %w", loc, err)
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts, nil
}

// ProbeVisible reports whether loc becomes visible within timeout (default
// 5s). It never fails.
func (b *Base) ProbeVisible(ctx context.Context, loc browser.Locator, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = b.settings.ProbeTimeout
	}
	return b.waiter.Probe(ctx, loc, browser.Visible, timeout)
}

// Count returns how many elements match loc right now.
func (b *Base) Count(ctx context.Context, loc browser.Locator) (int, error) {
	state, err := b.driver.Inspect(ctx, loc)
	if err != nil {
		return 0, err
	}
	return state.Count, nil
}

// CaptureScreenshot writes a full-page PNG to <dir>/<name>-<unix-millis>.png
// and returns the path.
func (b *Base) CaptureScreenshot(ctx context.Context, name string) (string, error) {
	dir, err := homedir.Expand(b.settings.ScreenshotDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand screenshot directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	png, err := b.driver.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%d.png", sanitizeName(name), b.now().UnixMilli()))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	b.logger.Info("Screenshot captured.", zap.String("path", path))
	return path, nil
}

// sanitizeName keeps screenshot names to a single path segment.
func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "screenshot"
	}
	return name
}

func (b *Base) AssertTitle(ctx context.Context, expected browser.Matcher) error {
	return asAssertion("title", expected, b.waiter.ForTitle(ctx, expected, b.settings.AssertionTimeout))
}

func (b *Base) AssertURL(ctx context.Context, expected browser.Matcher) error {
	return asAssertion("url", expected, b.waiter.ForURL(ctx, expected, b.settings.AssertionTimeout))
}

// asAssertion turns an expired page-level wait into an AssertionError.
func asAssertion(subject string, expected browser.Matcher, err error) error {
	var te *wait.TimeoutError
	if errors.As(err, &te) {
		return &AssertionError{Subject: subject, Expected: expected.String(), Actual: te.Observed}
	}
	return err
}

func (b *Base) WaitForURL(ctx context.Context, expected browser.Matcher, timeout time.Duration) error {
	return b.waiter.ForURL(ctx, expected, timeout)
}

func (b *Base) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.settings.NavigationTimeout)
	defer cancel()
	return b.driver.Reload(ctx)
}

func (b *Base) SetViewport(ctx context.Context, vp browser.Viewport) error {
	return b.driver.SetViewport(ctx, vp)
}

func (b *Base) URL(ctx context.Context) (string, error) {
	return b.driver.URL(ctx)
}
